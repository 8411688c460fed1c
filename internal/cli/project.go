package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pawzhub/pawd/internal/bus"
	"github.com/pawzhub/pawd/internal/channels"
	"github.com/pawzhub/pawd/internal/config"
	"github.com/pawzhub/pawd/internal/engine"
	"github.com/pawzhub/pawd/internal/orchestrator"
	"github.com/pawzhub/pawd/internal/provider"
	"github.com/pawzhub/pawd/internal/store"
	"github.com/pawzhub/pawd/internal/trace"
)

var (
	projectTask string
	projectYes  bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Run a multi-agent project with a boss and delegated workers",
	Run:   runProject,
}

func init() {
	projectCmd.Flags().StringVarP(&projectTask, "task", "t", "", "Project description for the boss agent")
	projectCmd.Flags().BoolVarP(&projectYes, "yes", "y", false, "Auto-approve tool requests")
}

func runProject(cmd *cobra.Command, args []string) {
	if projectTask == "" {
		fmt.Println("Error: --task is required")
		os.Exit(1)
	}

	printHeader("pawd project")

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
	sink, closeSink := buildSink(cfg, pending, st, projectYes)
	defer closeSink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Slack mirror + bus approval routing when configured.
	if cfg.Channels.Slack.Enabled {
		messageBus := bus.NewMessageBus()
		slackCh := channels.NewSlackChannel(cfg.Channels.Slack, messageBus)
		if err := slackCh.Start(ctx); err != nil {
			fmt.Printf("Slack warning: %v\n", err)
		}
		go messageBus.DispatchOutbound(ctx)
		go routeApprovalReplies(ctx, messageBus, pending, st)
		// Slack prompt first so the bus reply path is live before the
		// terminal approver starts waiting on the same request.
		sink = trace.Fanout{channels.NewApprovalSink(slackCh), sink}
	}

	registry := buildRegistry(cfg)
	coord, err := orchestrator.NewCoordinator(orchestrator.Options{
		Store:           st,
		Provider:        prov,
		Executor:        registry,
		Sink:            sink,
		Pending:         pending,
		MaxWorkers:      cfg.Orchestrator.MaxWorkers,
		WorkerMaxRounds: cfg.Orchestrator.WorkerMaxRounds,
		WorkerModel:     workerModelName(cfg),
		SafeTools:       cfg.Engine.SafeTools,
		ApprovalTimeout: cfg.Engine.ApprovalTimeout(),
		ToolTimeout:     cfg.Engine.ToolTimeout(),
	})
	if err != nil {
		fmt.Printf("Orchestrator error: %v\n", err)
		os.Exit(1)
	}

	projectID, err := coord.StartProject(projectTask)
	if err != nil {
		fmt.Printf("Project error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Project %s started (%s)\n\n", projectID, cfg.Model.Name)

	_, modelName := provider.ParseModelString(cfg.Model.Name)
	eng := engine.New(engine.Options{
		Provider:            prov,
		Executor:            orchestrator.NewVerbExecutor(registry, engine.RoleBoss),
		Sink:                sink,
		Pending:             pending,
		Interceptor:         coord,
		Role:                engine.Boss(),
		RunID:               projectID,
		Model:               modelName,
		MaxTokens:           cfg.Model.MaxTokens,
		Temperature:         cfg.Model.Temperature,
		MaxRounds:           cfg.Engine.MaxRounds,
		ContextWindowTokens: cfg.Engine.ContextWindowTokens,
		SafeTools:           cfg.Engine.SafeTools,
		ApprovalTimeout:     cfg.Engine.ApprovalTimeout(),
		ToolTimeout:         cfg.Engine.ToolTimeout(),
	})

	messages := []provider.Message{
		{Role: provider.RoleSystem, Content: bossSystemPrompt()},
		{Role: provider.RoleUser, Content: projectTask},
	}
	text, _, err := eng.RunTurn(ctx, messages)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	coord.Wait()
	fmt.Printf("\n%s\n%s\n", color.GreenString("Project finished:"), text)
}

// routeApprovalReplies resolves approve/deny replies arriving on the bus.
func routeApprovalReplies(ctx context.Context, messageBus *bus.MessageBus, pending *engine.PendingApprovals, st *store.Store) {
	for {
		msg, err := messageBus.ConsumeInbound(ctx)
		if err != nil {
			return
		}
		reply, ok := bus.ParseApprovalReply(msg.Content)
		if !ok {
			continue
		}
		pending.Resolve(reply.CallID, reply.Approved)
		status := store.ApprovalApproved
		if !reply.Approved {
			status = store.ApprovalDenied
		}
		if err := st.ResolveApproval(reply.CallID, status); err != nil {
			fmt.Printf("approval audit failed: %v\n", err)
		}
	}
}

func workerModelName(cfg *config.Config) string {
	name := cfg.Orchestrator.WorkerModel
	if name == "" {
		name = cfg.Model.Name
	}
	_, model := provider.ParseModelString(name)
	return model
}

func bossSystemPrompt() string {
	return "You are the boss agent of a multi-agent project. Break the project into tasks and delegate them with delegate_task (or create_sub_agent for a specific model). Poll workers with check_agent_status, guide them with send_agent_message, and call project_complete with the final result once every task is done. Do the small parts yourself with the regular tools."
}
