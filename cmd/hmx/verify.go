package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ravenbrook/helixmirror/internal/ui"
)

var verifyCmd = &cobra.Command{
	Use:     "verify",
	GroupID: "mirror",
	Short:   "Check that mirrored commits record their Perforce provenance",
	Long: `Walk the mirrored branch and check every commit message for the
"Copied from Perforce" block: it must be present, must name this mirror's
Perforce server, and must agree with the local record of which commit each
changelist became.

Example usage:
  hmx verify             # Check the whole branch
  hmx verify --limit 50  # Check only the newest 50 commits`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		logger := newLogger("[hmx] ")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp(ctx, repoConfigPath(), logger, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		report, err := a.mirror.Verify(ctx, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if report.OK() {
			fmt.Printf("%s All %d commits carry valid provenance for %s\n",
				ui.RenderPass("✓"), report.Checked, a.mirror.ServerID())
			return
		}

		fmt.Printf("%s %d of %d commits failed verification:\n",
			ui.RenderError("✗"), len(report.Problems), report.Checked)
		for _, p := range report.Problems {
			where := p.SHA1[:12]
			if p.Change > 0 {
				where = fmt.Sprintf("%s (change %d)", where, p.Change)
			}
			fmt.Printf("  %s: %s\n", where, p.Reason)
		}
		os.Exit(1)
	},
}

func init() {
	verifyCmd.Flags().Int("limit", 0, "Check only the newest N commits (0 = all)")
	rootCmd.AddCommand(verifyCmd)
}
