package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ravenbrook/helixmirror/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Serve the mirror status dashboard without syncing",
	Long: `Start the WebSocket dashboard server on its own.

Serves the JSON status snapshot at /status and broadcasts mirror events
over /ws. Run "hmx daemon --dashboard-port N" instead to serve the
dashboard from the same process that mirrors, so clients see live events.

Example usage:
  hmx dashboard                  # Start on default port 8080
  hmx dashboard --port 9000      # Start on custom port

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		logger := newLogger("[hmx] ")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := openApp(ctx, repoConfigPath(), logger, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		status := func(ctx context.Context) (*dashboard.Status, error) {
			s := &dashboard.Status{
				Repo:     a.cfg.Repo.Name,
				Branch:   a.cfg.Repo.Branch,
				ServerID: a.mirror.ServerID(),
			}
			var err error
			if s.ChangesCopied, err = a.db.ChangeCount(ctx); err != nil {
				return nil, err
			}
			if s.LastChange, err = a.db.LastCopiedChange(ctx); err != nil {
				return nil, err
			}
			ops, err := a.db.RecentOps(ctx, 5)
			if err != nil {
				return nil, err
			}
			for _, op := range ops {
				s.RecentOps = append(s.RecentOps, dashboard.StatusOp{
					StartedAt:     op.StartedAt,
					FinishedAt:    op.FinishedAt,
					ChangesCopied: op.ChangesCopied,
					Error:         op.Error,
				})
			}
			return s, nil
		}

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Status: status,
			Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
		})

		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Dashboard started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Printf("Status: http://localhost:%d/status\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		<-ctx.Done()

		fmt.Println("\nShutting down dashboard...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	rootCmd.AddCommand(dashboardCmd)
}
