package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ravenbrook/helixmirror/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "mirror",
	Short:   "Copy new Perforce changelists to Git once",
	Long: `Copy all submitted changelists newer than the last mirrored one into
the Git repository, then exit.

Each changelist becomes one commit on the configured branch. The commit
message is the changelist description plus a provenance block naming the
changelist number and the originating Perforce server.

Example usage:
  hmx sync                       # Use ./hmx.toml
  hmx sync -c /etc/hmx/mps.toml  # Use another repo config`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		logger := newLogger("[hmx] ")

		a, err := openApp(ctx, repoConfigPath(), logger, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		fmt.Printf("%s Mirroring %s from %s...\n",
			ui.RenderAccent("→"), a.cfg.Repo.Name, a.mirror.ServerID())
		start := time.Now()

		result, err := a.mirror.Sync(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Sync failed: %v\n", ui.RenderError("✗"), err)
			os.Exit(1)
		}

		elapsed := time.Since(start)
		if result.Copied == 0 {
			fmt.Printf("%s Already up to date (%v)\n",
				ui.RenderPass("✓"), elapsed.Round(time.Millisecond))
			return
		}
		fmt.Printf("%s Copied %d changes in %v, head %s at change %d\n",
			ui.RenderPass("✓"), result.Copied, elapsed.Round(time.Millisecond),
			result.HeadSHA1[:12], result.LastChange)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
