// Package repocfg loads and validates per-repo mirror configuration.
//
// Each mirrored repo is described by a TOML file:
//
//	[repo]
//	name = "mps"
//	git-dir = "/var/hmx/mps.git"
//	branch = "master"
//	view = [
//	    "//depot/mps/master/... ...",
//	]
//
//	[perforce]
//	port = "perforce.example.com:1666"
//	user = "hmx"
//
//	[perforce-to-git]
//	enable-add-copied-from-perforce = true
//	batch-size = 100
//	poll-interval = "60s"
//
//	[serverid]
//	override = ""
package repocfg

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied when a file omits the corresponding settings.
const (
	DefaultBranch       = "master"
	DefaultBatchSize    = 100
	DefaultPollInterval = 60 * time.Second
)

// Duration is a time.Duration that round-trips through TOML as a string
// like "90s" or "5m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is one repo's mirror configuration.
type Config struct {
	Repo     Repo     `toml:"repo"`
	Perforce Perforce `toml:"perforce"`
	Copy     Copy     `toml:"perforce-to-git"`
	ServerID ServerID `toml:"serverid"`
}

// Repo names the Git side of the mirror.
type Repo struct {
	Name   string   `toml:"name"`
	GitDir string   `toml:"git-dir"`
	Branch string   `toml:"branch"`
	View   []string `toml:"view"`
}

// Perforce names the Perforce side of the mirror.
type Perforce struct {
	Port    string `toml:"port"`
	User    string `toml:"user"`
	Client  string `toml:"client"`
	Charset string `toml:"charset"`
}

// Copy controls how changelists become commits.
type Copy struct {
	EnableAddCopiedFromPerforce bool     `toml:"enable-add-copied-from-perforce"`
	EnableGitP4Emulation        bool     `toml:"enable-git-p4-emulation"`
	BatchSize                   int      `toml:"batch-size"`
	PollInterval                Duration `toml:"poll-interval"`
	UserMapFile                 string   `toml:"usermap"`
}

// ServerID controls how the originating server is named in commit messages.
// An empty Override means resolve it from the server itself.
type ServerID struct {
	Override string `toml:"override"`
}

// Default returns a Config with all defaults applied and no repo identity.
func Default() *Config {
	return &Config{
		Repo: Repo{Branch: DefaultBranch},
		Copy: Copy{
			EnableAddCopiedFromPerforce: true,
			BatchSize:                   DefaultBatchSize,
			PollInterval:                Duration{DefaultPollInterval},
		},
	}
}

// Load reads and validates a repo config file. Missing optional settings
// get defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("loading repo config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("loading repo config %s: unknown key %q", path, undecoded[0].String())
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid repo config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Repo.Branch == "" {
		c.Repo.Branch = DefaultBranch
	}
	if c.Copy.BatchSize <= 0 {
		c.Copy.BatchSize = DefaultBatchSize
	}
	if c.Copy.PollInterval.Duration <= 0 {
		c.Copy.PollInterval = Duration{DefaultPollInterval}
	}
}

// Validate checks that the config names everything a mirror run needs.
func (c *Config) Validate() error {
	if c.Repo.Name == "" {
		return fmt.Errorf("repo.name is required")
	}
	if c.Repo.GitDir == "" {
		return fmt.Errorf("repo.git-dir is required")
	}
	if len(c.Repo.View) == 0 {
		return fmt.Errorf("repo.view must have at least one mapping line")
	}
	if c.Perforce.Port == "" {
		return fmt.Errorf("perforce.port is required")
	}
	return nil
}

// Write writes the config as TOML to path, creating or truncating it.
func (c *Config) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing repo config %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	enc.Indent = ""
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding repo config %s: %w", path, err)
	}
	return nil
}
