package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pawzhub/pawd/internal/config"
	"github.com/pawzhub/pawd/internal/session"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("pawd version")
		fmt.Printf("Version: %s\n", version)
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List persisted conversation sessions",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config warning: %v (using defaults)\n", err)
		}
		infos := session.NewManager(cfg.Paths.DataDir).List()
		if len(infos) == 0 {
			fmt.Println("No sessions.")
			return
		}
		for _, info := range infos {
			fmt.Printf("%-24s updated %s\n", info.Key, info.UpdatedAt.Format("2006-01-02 15:04"))
		}
	},
}
