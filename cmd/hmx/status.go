package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ravenbrook/helixmirror/internal/ui"
)

// statusReport is what "hmx status" prints, in text or YAML form.
type statusReport struct {
	Repo          string     `yaml:"repo"`
	Branch        string     `yaml:"branch"`
	ServerID      string     `yaml:"server-id"`
	ChangesCopied int        `yaml:"changes-copied"`
	LastChange    int64      `yaml:"last-change"`
	HeadSHA1      string     `yaml:"head,omitempty"`
	RecentOps     []statusOp `yaml:"recent-ops,omitempty"`
}

type statusOp struct {
	StartedAt     time.Time `yaml:"started-at"`
	ChangesCopied int       `yaml:"changes-copied"`
	Error         string    `yaml:"error,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "mirror",
	Short:   "Show mirror state and recent sync history",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		logger := newLogger("[hmx] ")
		format, _ := cmd.Flags().GetString("format")

		a, err := openApp(ctx, repoConfigPath(), logger, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		report := statusReport{
			Repo:     a.cfg.Repo.Name,
			Branch:   a.cfg.Repo.Branch,
			ServerID: a.mirror.ServerID(),
		}
		report.ChangesCopied, err = a.db.ChangeCount(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		report.LastChange, err = a.db.LastCopiedChange(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if sha1, err := a.git.ResolveRef(ctx, "refs/heads/"+a.cfg.Repo.Branch); err == nil {
			report.HeadSHA1 = sha1
		}

		ops, err := a.db.RecentOps(ctx, 5)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, op := range ops {
			report.RecentOps = append(report.RecentOps, statusOp{
				StartedAt:     op.StartedAt,
				ChangesCopied: op.ChangesCopied,
				Error:         op.Error,
			})
		}

		if format == "yaml" {
			out, err := yaml.Marshal(report)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(string(out))
			return
		}

		fmt.Printf("\n%s Mirror Status\n\n", ui.RenderAccent("◆"))
		fmt.Printf("  Repo:           %s (branch %s)\n", report.Repo, report.Branch)
		fmt.Printf("  Server:         %s\n", report.ServerID)
		fmt.Printf("  Changes copied: %d\n", report.ChangesCopied)
		if report.LastChange > 0 {
			fmt.Printf("  Last change:    %d\n", report.LastChange)
		}
		if report.HeadSHA1 != "" {
			fmt.Printf("  Head:           %s\n", report.HeadSHA1[:12])
		}

		if len(report.RecentOps) > 0 {
			fmt.Printf("\n  Recent syncs:\n")
			for _, op := range report.RecentOps {
				mark := ui.RenderPass("✓")
				detail := fmt.Sprintf("%d changes", op.ChangesCopied)
				if op.Error != "" {
					mark = ui.RenderError("✗")
					detail = op.Error
				}
				fmt.Printf("  %s %s  %s\n",
					mark, op.StartedAt.Local().Format("2006-01-02 15:04:05"), detail)
			}
		}
		fmt.Println()
	},
}

func init() {
	statusCmd.Flags().String("format", "text", "Output format: text or yaml")
	rootCmd.AddCommand(statusCmd)
}
