package p4

import (
	"context"

	"github.com/ravenbrook/helixmirror/internal/usermap"
)

// Users lists all user specs on the server, including service users,
// for usermap fallback lookups.
func (p *P4) Users(ctx context.Context) ([]usermap.User, error) {
	records, err := p.RunTagged(ctx, "users", "-a")
	if err != nil {
		return nil, err
	}
	users := make([]usermap.User, 0, len(records))
	for _, r := range records {
		if r["User"] == "" {
			continue
		}
		users = append(users, usermap.User{
			P4User:   r["User"],
			Email:    r["Email"],
			FullName: r["FullName"],
		})
	}
	return users, nil
}
