package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/ravenbrook/helixmirror/internal/repocfg"
	"github.com/ravenbrook/helixmirror/internal/ui"
	"github.com/ravenbrook/helixmirror/internal/view"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "mirror",
	Short:   "Create a repo config file interactively",
	Long: `Create the TOML config file describing one mirrored repo.

Runs an interactive form by default. With --no-input, all values come
from flags:

  hmx init --no-input \
      --name mps \
      --git-dir /var/hmx/mps.git \
      --port perforce.example.com:1666 \
      --p4user hmx \
      --depot-path "//depot/mps/master/..."`,
	Run: func(cmd *cobra.Command, args []string) {
		noInput, _ := cmd.Flags().GetBool("no-input")

		cfg := repocfg.Default()
		cfg.Repo.Name, _ = cmd.Flags().GetString("name")
		cfg.Repo.GitDir, _ = cmd.Flags().GetString("git-dir")
		cfg.Repo.Branch, _ = cmd.Flags().GetString("branch")
		cfg.Perforce.Port, _ = cmd.Flags().GetString("port")
		cfg.Perforce.User, _ = cmd.Flags().GetString("p4user")
		cfg.ServerID.Override, _ = cmd.Flags().GetString("serverid")
		depotPath, _ := cmd.Flags().GetString("depot-path")

		if !noInput {
			if err := runInitForm(cfg, &depotPath); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		depotPath = strings.TrimSpace(depotPath)
		if depotPath != "" {
			if !strings.HasSuffix(depotPath, "/...") {
				depotPath = strings.TrimSuffix(depotPath, "/") + "/..."
			}
			cfg.Repo.View = []string{depotPath + " ..."}
		}
		if _, err := view.Parse(cfg.Repo.View); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		path := repoConfigPath()
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(os.Stderr, "Error: %s already exists\n", path)
			os.Exit(1)
		}
		if err := cfg.Write(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
		fmt.Printf("Next: run %s to copy the history\n", ui.RenderAccent("hmx sync"))
	},
}

// runInitForm collects the config interactively, seeded with any flag
// values already set.
func runInitForm(cfg *repocfg.Config, depotPath *string) error {
	required := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("required")
		}
		return nil
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Repository name").
				Description("Short name for this mirror, e.g. mps").
				Value(&cfg.Repo.Name).
				Validate(required),
			huh.NewInput().
				Title("Git directory").
				Description("Bare repository to mirror into; created if missing").
				Value(&cfg.Repo.GitDir).
				Validate(required),
			huh.NewInput().
				Title("Branch").
				Value(&cfg.Repo.Branch),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Perforce server (P4PORT)").
				Description("e.g. ssl:perforce.example.com:1666").
				Value(&cfg.Perforce.Port).
				Validate(required),
			huh.NewInput().
				Title("Perforce user").
				Value(&cfg.Perforce.User),
			huh.NewInput().
				Title("Depot path to mirror").
				Description("e.g. //depot/mps/master/...").
				Value(depotPath).
				Validate(required),
			huh.NewInput().
				Title("Server identity override").
				Description("Leave empty to resolve from the server itself").
				Value(&cfg.ServerID.Override),
		),
	)
	return form.Run()
}

func init() {
	initCmd.Flags().Bool("no-input", false, "Use flags only, no interactive form")
	initCmd.Flags().String("name", "", "Repository name")
	initCmd.Flags().String("git-dir", "", "Bare Git repository path")
	initCmd.Flags().String("branch", repocfg.DefaultBranch, "Git branch to mirror into")
	initCmd.Flags().String("port", "", "P4PORT of the Perforce server")
	initCmd.Flags().String("p4user", "", "Perforce user")
	initCmd.Flags().String("depot-path", "", "Depot path to mirror, e.g. //depot/project/...")
	initCmd.Flags().String("serverid", "", "Override the recorded server identity")
	rootCmd.AddCommand(initCmd)
}
