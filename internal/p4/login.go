package p4

import "context"

// LoggedIn reports whether the configured user holds a valid ticket,
// using "p4 login -s".
func (p *P4) LoggedIn(ctx context.Context) (bool, error) {
	_, err := p.Output(ctx, "login", "-s")
	if err != nil {
		if IsFatal(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
