package p4

import (
	"errors"
	"strings"
)

// Common errors returned by Perforce operations.
//
// Check with errors.Is():
//
//	if errors.Is(err, p4.ErrNotLoggedIn) {
//	    // prompt for p4 login
//	}
var (
	// ErrBinaryNotAvailable is returned when the p4 binary is not
	// installed or not in PATH.
	ErrBinaryNotAvailable = errors.New("p4 binary not available")

	// ErrNotConnected is returned when the server cannot be reached.
	ErrNotConnected = errors.New("cannot connect to Perforce server")

	// ErrNotLoggedIn is returned when the ticket is missing or expired.
	ErrNotLoggedIn = errors.New("not logged in to Perforce server")

	// ErrNoSuchChange is returned when a changelist does not exist.
	ErrNoSuchChange = errors.New("no such changelist")

	// ErrNoSuchFile is returned when a depot file or revision does not
	// exist.
	ErrNoSuchFile = errors.New("no such depot file")

	// ErrAccessDenied is returned when the user lacks permission for the
	// requested paths.
	ErrAccessDenied = errors.New("access denied by Perforce protections")
)

// classify maps p4 stderr text onto the package's sentinel errors so
// callers can branch on error kind rather than message text.
func classify(err error, stderr string) error {
	switch {
	case strings.Contains(stderr, "Connect to server failed"),
		strings.Contains(stderr, "TCP connect to"):
		return ErrNotConnected
	case strings.Contains(stderr, "Your session has expired"),
		strings.Contains(stderr, "Perforce password (P4PASSWD) invalid"),
		strings.Contains(stderr, "please login again"):
		return ErrNotLoggedIn
	case strings.Contains(stderr, "no such changelist"),
		strings.Contains(stderr, "Change") && strings.Contains(stderr, "unknown"):
		return ErrNoSuchChange
	case strings.Contains(stderr, "no such file(s)"),
		strings.Contains(stderr, "file(s) not in client view"):
		return ErrNoSuchFile
	case strings.Contains(stderr, "You don't have permission"),
		strings.Contains(stderr, "Access for user"):
		return ErrAccessDenied
	}
	return err
}

// IsRetryable returns true if the error is likely to succeed on retry,
// such as a transient connection failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNotConnected)
}

// IsFatal returns true if no amount of retrying will help without
// operator intervention.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrBinaryNotAvailable) ||
		errors.Is(err, ErrNotLoggedIn) ||
		errors.Is(err, ErrAccessDenied)
}
