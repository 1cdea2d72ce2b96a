package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sqlines/studio/internal/session"
	"github.com/sqlines/studio/internal/ui"
)

var runCmd = &cobra.Command{
	Use:     "run",
	GroupID: "session",
	Short:   "Keep the session live until interrupted",
	Long: `Open the saved session and keep it running in the foreground.

While running:
  - open files are reloaded when they change on disk
  - the converter license is re-checked when license.txt changes
  - the session is checkpointed every intervals.checkpoint

With --dashboard, session events are served over WebSocket:
  ws://localhost:<port>/ws       live tab, file and license events
  http://localhost:<port>/api/tabs   current tabs as JSON
  http://localhost:<port>/metrics    Prometheus metrics

Press Ctrl+C to save and exit.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		s, err := session.Open(cfg, &session.Options{
			ConfigPath: configPath,
			Logger:     logger,
		})
		if err != nil {
			fatal("failed to open session: %v", err)
		}

		opts := &session.RunOptions{}
		if cmd.Flags().Changed("dashboard") {
			enabled, _ := cmd.Flags().GetBool("dashboard")
			opts.Dashboard = &enabled
		}
		opts.Port, _ = cmd.Flags().GetInt("port")
		opts.Ready = func() {
			state := "new session"
			if s.Restored() {
				state = "restored session"
			}
			fmt.Printf("%s %s with %d tab(s)\n", ui.RenderAccent("▶"), state, s.Store().CountTabs())
			dashboard := cfg.Dashboard.Enabled
			if opts.Dashboard != nil {
				dashboard = *opts.Dashboard
			}
			if dashboard {
				port := cfg.Dashboard.Port
				if opts.Port != 0 {
					port = opts.Port
				}
				fmt.Printf("Dashboard: http://localhost:%d\n", port)
			}
			fmt.Println("\nPress Ctrl+C to stop...")
		}

		runErr := s.Run(ctx, opts)

		fmt.Println("\nSaving session...")
		if err := s.Close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderWarn("Warning:"), err)
		}
		if runErr != nil {
			fatal("%v", runErr)
		}
		fmt.Println(ui.RenderPass("Session saved"))
	},
}

func init() {
	runCmd.Flags().Bool("dashboard", false, "Serve the WebSocket dashboard (default: dashboard.enabled)")
	runCmd.Flags().IntP("port", "p", 0, "Dashboard port (default: dashboard.port)")

	rootCmd.AddCommand(runCmd)
}
