package repocfg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repo.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

const validConfig = `
[repo]
name = "mps"
git-dir = "/var/hmx/mps.git"
view = [
    "//depot/mps/master/... ...",
]

[perforce]
port = "perforce.example.com:1666"
user = "hmx"
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Repo.Branch != "master" {
		t.Errorf("Branch = %q, want default %q", cfg.Repo.Branch, "master")
	}
	if !cfg.Copy.EnableAddCopiedFromPerforce {
		t.Error("EnableAddCopiedFromPerforce = false, want default true")
	}
	if cfg.Copy.EnableGitP4Emulation {
		t.Error("EnableGitP4Emulation = true, want default false")
	}
	if cfg.Copy.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want default 100", cfg.Copy.BatchSize)
	}
	if cfg.Copy.PollInterval.Duration != 60*time.Second {
		t.Errorf("PollInterval = %v, want default 60s", cfg.Copy.PollInterval.Duration)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig+`
[perforce-to-git]
enable-add-copied-from-perforce = false
enable-git-p4-emulation = true
batch-size = 25
poll-interval = "5m"

[serverid]
override = "perforce.ravenbrook.com"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Copy.EnableAddCopiedFromPerforce {
		t.Error("EnableAddCopiedFromPerforce = true, want false")
	}
	if !cfg.Copy.EnableGitP4Emulation {
		t.Error("EnableGitP4Emulation = false, want true")
	}
	if cfg.Copy.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", cfg.Copy.BatchSize)
	}
	if cfg.Copy.PollInterval.Duration != 5*time.Minute {
		t.Errorf("PollInterval = %v, want 5m", cfg.Copy.PollInterval.Duration)
	}
	if cfg.ServerID.Override != "perforce.ravenbrook.com" {
		t.Errorf("ServerID.Override = %q, want perforce.ravenbrook.com", cfg.ServerID.Override)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name:    "missing name",
			config:  strings.Replace(validConfig, `name = "mps"`, "", 1),
			wantErr: "repo.name",
		},
		{
			name:    "missing git-dir",
			config:  strings.Replace(validConfig, `git-dir = "/var/hmx/mps.git"`, "", 1),
			wantErr: "repo.git-dir",
		},
		{
			name:    "missing view",
			config:  strings.Replace(validConfig, `"//depot/mps/master/... ...",`, "", 1),
			wantErr: "repo.view",
		},
		{
			name:    "missing port",
			config:  strings.Replace(validConfig, `port = "perforce.example.com:1666"`, "", 1),
			wantErr: "perforce.port",
		},
		{
			name:    "unknown key",
			config:  validConfig + "\n[repo2]\nname = \"x\"\n",
			wantErr: "unknown key",
		},
		{
			name:    "bad duration",
			config:  validConfig + "\n[perforce-to-git]\npoll-interval = \"soon\"\n",
			wantErr: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.config))
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Repo.Name = "mps"
	cfg.Repo.GitDir = "/var/hmx/mps.git"
	cfg.Repo.View = []string{"//depot/mps/master/... ..."}
	cfg.Perforce.Port = "perforce:1666"
	cfg.Perforce.User = "hmx"
	cfg.Copy.PollInterval = Duration{90 * time.Second}

	path := filepath.Join(t.TempDir(), "out.toml")
	if err := cfg.Write(path); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after Write error = %v", err)
	}
	if got.Repo.Name != "mps" || got.Perforce.Port != "perforce:1666" {
		t.Errorf("round trip lost identity: %+v", got)
	}
	if got.Copy.PollInterval.Duration != 90*time.Second {
		t.Errorf("round trip PollInterval = %v, want 90s", got.Copy.PollInterval.Duration)
	}
	if len(got.Repo.View) != 1 || got.Repo.View[0] != "//depot/mps/master/... ..." {
		t.Errorf("round trip view = %v", got.Repo.View)
	}
}
