package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:   "hmx",
	Short: "Mirror Perforce changelists into Git",
	Long: `hmx copies submitted Perforce changelists into a Git repository,
one commit per changelist.

Every generated commit message records which changelist it came from and
the identity of the originating Perforce server, so commit provenance
survives cloning and server migrations:

    Copied from Perforce
     Change: 187048
     ServerID: perforce.ravenbrook.com

Each mirrored repo is described by a TOML config file (see "hmx init").
Global settings live in ~/.hmx.yaml or HMX_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddGroup(
		&cobra.Group{ID: "mirror", Title: "Mirroring:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)

	rootCmd.PersistentFlags().StringP("config", "c", "hmx.toml", "Repo config file")
	rootCmd.PersistentFlags().String("log-file", "", "Append logs to this file instead of stderr")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig loads global settings from ~/.hmx.yaml and HMX_* variables.
func initConfig() {
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".hmx")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("HMX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: reading ~/.hmx.yaml: %v\n", err)
		}
	}
}

// repoConfigPath returns the repo config file for this invocation.
func repoConfigPath() string {
	path := viper.GetString("config")
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// newLogger builds the logger commands share. With --log-file (or
// HMX_LOG_FILE) set, logs rotate at 10 MB keeping three generations.
func newLogger(prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if logFile := viper.GetString("log-file"); logFile != "" {
		out = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}
	return log.New(out, prefix, log.LstdFlags)
}
