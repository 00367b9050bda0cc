package p4

import (
	"context"
	"fmt"
)

// PrintFile returns the content of one depot file revision.
//
// The revision is addressed explicitly (#rev rather than @change) so the
// result is stable even if later changelists touched the file.
func (p *P4) PrintFile(ctx context.Context, depotPath string, rev int) ([]byte, error) {
	spec := fmt.Sprintf("%s#%d", depotPath, rev)
	out, err := p.Output(ctx, "print", "-q", spec)
	if err != nil {
		return nil, fmt.Errorf("print %s: %w", spec, err)
	}
	return out, nil
}
