// Package cli implements the pawd command line interface.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/pawzhub/pawd/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"  _ __   __ ___      ____| |\n" +
		" | '_ \\ / _` \\ \\ /\\ / / _` |\n" +
		" | |_) | (_| |\\ V  V / (_| |\n" +
		" | .__/ \\__,_| \\_/\\_/ \\__,_|\n" +
		" |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "pawd",
	Short: "pawd - autonomous agent runtime",
	Long:  color.CyanString(logo) + "\nA round-based tool-calling agent runtime with human-in-the-loop approval.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}
