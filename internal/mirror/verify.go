package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ravenbrook/helixmirror/internal/descinfo"
)

// Problem describes one commit that fails provenance verification.
type Problem struct {
	SHA1   string
	Change int64
	Reason string
}

// VerifyReport is the outcome of a Verify pass.
type VerifyReport struct {
	// Checked counts the commits examined.
	Checked int

	// Problems lists commits whose provenance block is missing, names a
	// different server, or disagrees with the local state database.
	Problems []Problem
}

// OK reports whether every checked commit verified cleanly.
func (r *VerifyReport) OK() bool {
	return len(r.Problems) == 0
}

// Verify walks the mirrored branch and checks that every commit message
// carries a "Copied from Perforce" block naming this mirror's server, and
// that the block agrees with the local record of which commit each
// changelist became. limit <= 0 checks the whole branch.
func (m *Mirror) Verify(ctx context.Context, limit int) (*VerifyReport, error) {
	commits, err := m.git.Log(ctx, m.branchRef(), limit)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.branchRef(), err)
	}

	report := &VerifyReport{}
	for _, c := range commits {
		report.Checked++

		exp := descinfo.ParseExport(c.Message)
		if exp == nil {
			report.Problems = append(report.Problems, Problem{
				SHA1:   c.SHA1,
				Reason: "no Copied from Perforce block",
			})
			continue
		}
		if exp.ServerID != m.serverID {
			report.Problems = append(report.Problems, Problem{
				SHA1:   c.SHA1,
				Change: exp.Change,
				Reason: fmt.Sprintf("server identity %q, want %q", exp.ServerID, m.serverID),
			})
			continue
		}

		cc, err := m.state.LookupChange(ctx, exp.Change)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				report.Problems = append(report.Problems, Problem{
					SHA1:   c.SHA1,
					Change: exp.Change,
					Reason: "change not in local state database",
				})
				continue
			}
			return nil, err
		}
		if cc.SHA1 != c.SHA1 {
			report.Problems = append(report.Problems, Problem{
				SHA1:   c.SHA1,
				Change: exp.Change,
				Reason: fmt.Sprintf("state database records commit %s for this change", cc.SHA1),
			})
		}
	}
	return report, nil
}
