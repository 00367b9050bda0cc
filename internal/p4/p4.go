// Package p4 provides a Perforce client built on the p4 command-line
// binary.
//
// The package wraps p4 commands to provide the operations helixmirror
// needs: server identity discovery, changelist queries, file content
// retrieval, key bookkeeping, and user listing. Structured results come
// from p4's tagged (-ztag) output format.
package p4

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Config holds the connection settings for a Perforce server.
type Config struct {
	// Port is the P4PORT value, e.g. "ssl:perforce.example.com:1666".
	Port string

	// User is the Perforce user to run commands as.
	User string

	// Client is the optional client workspace name.
	Client string

	// Charset is the optional P4CHARSET for unicode-mode servers.
	Charset string

	// Bin overrides the p4 binary path. Empty means "p4" from PATH.
	Bin string
}

// P4 runs commands against one Perforce server.
type P4 struct {
	cfg Config
}

// New creates a client for the given connection settings.
func New(cfg Config) (*P4, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("p4: port is required")
	}
	if cfg.Bin == "" {
		cfg.Bin = "p4"
	}
	return &P4{cfg: cfg}, nil
}

// Port returns the configured P4PORT.
func (p *P4) Port() string {
	return p.cfg.Port
}

// globalArgs returns the connection arguments prepended to every command.
func (p *P4) globalArgs() []string {
	args := []string{"-p", p.cfg.Port}
	if p.cfg.User != "" {
		args = append(args, "-u", p.cfg.User)
	}
	if p.cfg.Client != "" {
		args = append(args, "-c", p.cfg.Client)
	}
	if p.cfg.Charset != "" {
		args = append(args, "-C", p.cfg.Charset)
	}
	return args
}

// Output runs a p4 command and returns its stdout. stderr is folded into
// the returned error, classified against the package's sentinel errors.
func (p *P4) Output(ctx context.Context, args ...string) ([]byte, error) {
	full := append(p.globalArgs(), args...)
	cmd := exec.CommandContext(ctx, p.cfg.Bin, full...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("p4 %s failed: %w: %s",
			strings.Join(args, " "), classify(err, stderr.String()), strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// RunTagged runs a p4 command with -ztag and parses the tagged output into
// records.
func (p *P4) RunTagged(ctx context.Context, args ...string) ([]Record, error) {
	full := append([]string{"-ztag"}, args...)
	out, err := p.Output(ctx, full...)
	if err != nil {
		return nil, err
	}
	return ParseTagged(out), nil
}

// Version returns the p4 client binary's version string, e.g. "2023.1".
func (p *P4) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, p.cfg.Bin, "-V")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("p4 -V failed: %w", ErrBinaryNotAvailable)
	}
	// Output contains a line like "Rev. P4/LINUX26X86_64/2023.1/2468153".
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "Rev. ") {
			continue
		}
		parts := strings.Split(strings.TrimPrefix(line, "Rev. "), "/")
		if len(parts) >= 3 {
			return parts[2], nil
		}
	}
	return "", fmt.Errorf("p4 -V: unrecognized output")
}
