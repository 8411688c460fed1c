package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pawzhub/pawd/internal/config"
	"github.com/pawzhub/pawd/internal/engine"
	"github.com/pawzhub/pawd/internal/provider"
	"github.com/pawzhub/pawd/internal/session"
)

var (
	chatMessage    string
	chatSessionKey string
	chatYes        bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent directly in the CLI",
	Run:   runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Message to send to the agent")
	chatCmd.Flags().StringVarP(&chatSessionKey, "session", "s", "cli:default", "Session key")
	chatCmd.Flags().BoolVarP(&chatYes, "yes", "y", false, "Auto-approve tool requests")
}

func runChat(cmd *cobra.Command, args []string) {
	if chatMessage == "" {
		fmt.Println("Error: --message is required")
		os.Exit(1)
	}

	printHeader("pawd chat")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config warning: %v (using defaults)\n", err)
	}

	prov, err := provider.Resolve(cfg)
	if err != nil {
		fmt.Printf("Provider error: %v\n", err)
		os.Exit(1)
	}

	st, err := openStore(cfg)
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	pending := engine.NewPendingApprovals()
	sink, closeSink := buildSink(cfg, pending, st, chatYes)
	defer closeSink()

	runID := "run_" + uuid.NewString()[:8]
	_, modelName := provider.ParseModelString(cfg.Model.Name)
	eng := engine.New(engine.Options{
		Provider:            prov,
		Executor:            buildRegistry(cfg),
		Sink:                sink,
		Pending:             pending,
		Role:                engine.Boss(),
		RunID:               runID,
		Model:               modelName,
		MaxTokens:           cfg.Model.MaxTokens,
		Temperature:         cfg.Model.Temperature,
		MaxRounds:           cfg.Engine.MaxRounds,
		ContextWindowTokens: cfg.Engine.ContextWindowTokens,
		SafeTools:           cfg.Engine.SafeTools,
		ApprovalTimeout:     cfg.Engine.ApprovalTimeout(),
		ToolTimeout:         cfg.Engine.ToolTimeout(),
	})

	sessions := session.NewManager(cfg.Paths.DataDir)
	sess := sessions.GetOrCreate(chatSessionKey)
	sess.Append(provider.Message{Role: provider.RoleUser, Content: chatMessage})

	fmt.Printf("pawd (%s)\n\n", cfg.Model.Name)

	_, messages, err := eng.RunTurn(context.Background(), sess.History(0))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	sess.Replace(messages)
	if err := sessions.Save(sess); err != nil {
		fmt.Printf("Session save warning: %v\n", err)
	}
}
