package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sable-dev/sable/pkg/models"
)

func buildRunCmd() *cobra.Command {
	var (
		sessionID     string
		maxIterations int
		verbose       bool
		allowedTools  []string
	)

	cmd := &cobra.Command{
		Use:   "run [task...]",
		Short: "Run a task through the agentic loop",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg.Logging)

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			a, err := buildApp(cfg, sessionID, verbose)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.watchConfig(ctx, path)

			result := a.orch.HandleTurn(ctx, models.Request{
				Task:          strings.Join(args, " "),
				MaxIterations: maxIterations,
				Verbose:       verbose,
				AllowedTools:  allowedTools,
			})

			a.close()
			summarize(result)
			if !result.Success {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session identifier for cross-turn continuation")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Iteration cap (default from config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show thinking text")
	cmd.Flags().StringSliceVar(&allowedTools, "tools", nil, "Restrict dispatch to these tools")
	return cmd
}

func buildModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List configured providers and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg.Logging)

			a, err := buildApp(cfg, "models", false)
			if err != nil {
				return err
			}
			defer a.close()

			for _, desc := range a.router.Providers() {
				p := a.providers[desc.Name]
				state := "unavailable"
				if !desc.Enabled {
					state = "disabled"
				} else if p.Available() {
					state = "ready"
				}
				marker := " "
				if desc.Name == a.router.Default() {
					marker = "*"
				}
				fmt.Printf("%s %-12s priority=%d  %s\n", marker, desc.Name, desc.Priority, state)

				current := a.router.CurrentModel(desc.Name)
				for _, m := range p.Models() {
					sel := " "
					if m.ID == current {
						sel = ">"
					}
					caps := strings.Join(m.Capabilities, ",")
					fmt.Printf("  %s %-40s ctx=%-7d %s\n", sel, m.ID, m.ContextSize, caps)
				}
			}
			return nil
		},
	}
}
