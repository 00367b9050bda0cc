package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ravenbrook/helixmirror/internal/daemon"
	"github.com/ravenbrook/helixmirror/internal/dashboard"
	"github.com/ravenbrook/helixmirror/internal/mirror"
	"github.com/ravenbrook/helixmirror/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "mirror",
	Short:   "Mirror continuously, polling Perforce for new changes",
	Long: `Run the mirror as a long-lived process.

The daemon:
- Syncs once at startup, then polls Perforce on the configured interval
- Reloads when the repo config file changes
- Optionally serves the WebSocket dashboard for live monitoring

Example usage:
  hmx daemon                      # Poll using the repo config's interval
  hmx daemon --dashboard-port 8080  # Also serve the live dashboard`,
	Run: func(cmd *cobra.Command, args []string) {
		dashPort, _ := cmd.Flags().GetInt("dashboard-port")
		logger := newLogger("[hmx] ")
		configPath := repoConfigPath()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		var events chan<- mirror.Event
		var dash *dashboard.Server
		if dashPort > 0 {
			dash = dashboard.NewServer(&dashboard.Config{
				Port:   dashPort,
				Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
			})
			if err := dash.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
				os.Exit(1)
			}
			defer func() {
				if err := dash.Stop(); err != nil {
					logger.Printf("Dashboard shutdown: %v", err)
				}
			}()
			events = dash.Events()
			fmt.Printf("%s Dashboard on http://localhost:%d (ws: /ws)\n",
				ui.RenderAccent("◆"), dashPort)
		}

		a, err := openApp(ctx, configPath, logger, events)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		// A reload rebuilds the whole stack from the config file. The old
		// app is closed only after the new one came up, so a broken config
		// leaves the running mirror untouched.
		reload := func() (daemon.Syncer, error) {
			next, err := openApp(ctx, configPath, logger, events)
			if err != nil {
				return nil, err
			}
			a.Close()
			a = next
			return next.mirror, nil
		}

		cfg := daemon.DefaultConfig()
		cfg.PollInterval = a.cfg.Copy.PollInterval.Duration
		cfg.Logger = logger

		d, err := daemon.New(a.mirror, configPath, reload, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Mirroring %s from %s every %v\n",
			ui.RenderAccent("→"), a.cfg.Repo.Name, a.mirror.ServerID(), cfg.PollInterval)
		fmt.Println("Press Ctrl+C to stop...")

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%s Daemon failed: %v\n", ui.RenderError("✗"), err)
			os.Exit(1)
		}
	},
}

func init() {
	daemonCmd.Flags().Int("dashboard-port", 0, "Also serve the WebSocket dashboard on this port")
	rootCmd.AddCommand(daemonCmd)
}
