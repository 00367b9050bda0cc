// Package gitx manages the Git side of a mirror: the repository that
// receives commits generated from Perforce changelists.
//
// Like the Perforce side, this package wraps the git command-line binary
// rather than reimplementing the object store.
package gitx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
)

// MinGitVersion is the oldest git release the mirror supports.
// git fast-import's --export-marks behavior is stable from 2.0 on.
const MinGitVersion = "v2.0.0"

// Common errors returned by repository operations.
var (
	// ErrNotARepo is returned when the path is not a Git repository.
	ErrNotARepo = errors.New("not a git repository")

	// ErrGitNotAvailable is returned when the git binary is missing.
	ErrGitNotAvailable = errors.New("git binary not available")

	// ErrRefNotFound is returned when a reference does not exist.
	ErrRefNotFound = errors.New("reference not found")
)

// Repo is a Git repository receiving mirrored commits. Mirrored repos are
// bare: nobody edits a working tree on the gateway host.
type Repo struct {
	gitDir string
}

// Init creates a new bare repository at path.
func Init(path string) (*Repo, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating repo directory: %w", err)
	}
	cmd := exec.Command("git", "init", "--bare", "--quiet", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("git init --bare failed: %w\n%s", err, out)
	}
	return &Repo{gitDir: path}, nil
}

// Open opens an existing repository. path may be a bare repo directory or
// a working tree containing .git.
func Open(path string) (*Repo, error) {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = path
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotARepo, path)
	}
	gitDir := strings.TrimSpace(string(out))
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(path, gitDir)
	}
	return &Repo{gitDir: gitDir}, nil
}

// GitDir returns the repository's git directory.
func (r *Repo) GitDir() string {
	return r.gitDir
}

// git runs a git command against this repository.
func (r *Repo) git(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"--git-dir", r.gitDir}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("git %s failed: %w\n%s",
			strings.Join(args, " "), err, string(out))
	}
	return out, nil
}

// ResolveRef returns the commit hash a reference points at.
func (r *Repo) ResolveRef(ctx context.Context, ref string) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--verify", "--quiet", ref)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrRefNotFound, ref)
	}
	return strings.TrimSpace(string(out)), nil
}

// RefExists reports whether the reference exists.
func (r *Repo) RefExists(ctx context.Context, ref string) bool {
	_, err := r.ResolveRef(ctx, ref)
	return err == nil
}

// UpdateRef points a reference at a commit, creating it if needed.
func (r *Repo) UpdateRef(ctx context.Context, ref, sha1 string) error {
	_, err := r.git(ctx, "update-ref", ref, sha1)
	return err
}

// Commit is one commit read back from the repository.
type Commit struct {
	SHA1    string
	Message string
}

// Log returns up to limit commits reachable from ref, newest first.
// limit <= 0 means no limit.
func (r *Repo) Log(ctx context.Context, ref string, limit int) ([]Commit, error) {
	args := []string{"log", "--format=%H%x00%B%x00"}
	if limit > 0 {
		args = append(args, fmt.Sprintf("-n%d", limit))
	}
	args = append(args, ref)

	out, err := r.git(ctx, args...)
	if err != nil {
		return nil, err
	}

	var commits []Commit
	fields := strings.Split(string(out), "\x00")
	for i := 0; i+1 < len(fields); i += 2 {
		sha1 := strings.TrimSpace(fields[i])
		if sha1 == "" {
			continue
		}
		commits = append(commits, Commit{SHA1: sha1, Message: fields[i+1]})
	}
	return commits, nil
}

// Version returns the installed git version, e.g. "2.39.0".
func Version() (string, error) {
	out, err := exec.Command("git", "--version").Output()
	if err != nil {
		return "", ErrGitNotAvailable
	}
	version := strings.TrimSpace(string(out))
	version = strings.TrimPrefix(version, "git version ")
	return version, nil
}

// CheckVersion verifies the installed git meets MinGitVersion.
func CheckVersion() error {
	version, err := Version()
	if err != nil {
		return err
	}
	if semver.Compare(canonicalVersion(version), MinGitVersion) < 0 {
		return fmt.Errorf("git %s is too old, need %s or newer",
			version, strings.TrimPrefix(MinGitVersion, "v"))
	}
	return nil
}

// canonicalVersion converts git's version output to a semver string.
// "2.39.0 (Apple Git-145)" becomes "v2.39.0".
func canonicalVersion(version string) string {
	if i := strings.IndexByte(version, ' '); i >= 0 {
		version = version[:i]
	}
	// Some builds report four components, e.g. 2.39.0.1.
	parts := strings.Split(version, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return "v" + strings.Join(parts, ".")
}
