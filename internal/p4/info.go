package p4

import (
	"context"
	"fmt"
	"strings"
)

// Info holds the subset of "p4 info" fields the gateway cares about.
type Info struct {
	// ServerID is the server's configured identity (the serverid
	// configurable). Often empty on servers that never set one.
	ServerID string

	// ServerAddress is the address the server reports for itself.
	ServerAddress string

	// ServerVersion is the full server version string.
	ServerVersion string

	// CaseHandling is "sensitive" or "insensitive".
	CaseHandling string

	// Unicode reports whether the server runs in unicode mode.
	Unicode bool
}

// Info fetches server information.
func (p *P4) Info(ctx context.Context) (*Info, error) {
	records, err := p.RunTagged(ctx, "info")
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("p4 info returned no output")
	}
	r := records[0]
	return &Info{
		ServerID:      r["ServerID"],
		ServerAddress: r["serverAddress"],
		ServerVersion: r["serverVersion"],
		CaseHandling:  r["caseHandling"],
		Unicode:       r["unicode"] == "enabled",
	}, nil
}

// ResolveServerID determines the identity recorded for this server in
// mirrored commit messages.
//
// Precedence: explicit override from the repo config, then the server's
// own ServerID from p4 info, then the host portion of P4PORT. The final
// fallback means commits always carry a usable identity even against
// servers whose administrators never ran "p4 serverid".
func (p *P4) ResolveServerID(ctx context.Context, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	info, err := p.Info(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving server identity: %w", err)
	}
	if info.ServerID != "" {
		return info.ServerID, nil
	}
	if host := portHost(p.cfg.Port); host != "" {
		return host, nil
	}
	return "", fmt.Errorf("cannot determine server identity for %q", p.cfg.Port)
}

// portHost extracts the host from a P4PORT value such as
// "ssl:perforce.example.com:1666" or "perforce:1666".
func portHost(port string) string {
	parts := strings.Split(port, ":")
	switch len(parts) {
	case 1:
		return ""
	case 2:
		return parts[0]
	default:
		// Leading transport prefix (tcp:, ssl:, tcp6:, ...).
		return parts[len(parts)-2]
	}
}
