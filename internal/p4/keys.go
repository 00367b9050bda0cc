package p4

import (
	"context"
	"fmt"
	"strings"
)

// GetKey reads a p4 key's value. Perforce reports unset keys as "0";
// GetKey preserves that convention and returns "0" for unset keys.
func (p *P4) GetKey(ctx context.Context, name string) (string, error) {
	records, err := p.RunTagged(ctx, "key", name)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "0", nil
	}
	v := records[0]["value"]
	if v == "" {
		return "0", nil
	}
	return v, nil
}

// SetKey writes a p4 key.
func (p *P4) SetKey(ctx context.Context, name, value string) error {
	if strings.ContainsAny(name, " \t") {
		return fmt.Errorf("key name %q contains whitespace", name)
	}
	_, err := p.Output(ctx, "key", name, value)
	return err
}
