// Package usermap maps Perforce users to the Git author identities that
// appear in mirrored commit logs.
//
// The map is seeded from an optional usermap file maintained by the
// Perforce administrator, one entry per line:
//
//	# p4user    email                full name
//	jdoe        jane@example.com     "Jane Doe"
//
// Users absent from the file fall back to their Perforce user spec (email
// and full name from "p4 users -a"). Users unknown to Perforce entirely get
// a placeholder identity so mirroring never stalls on an unmapped author.
package usermap

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// User is one Perforce-user-to-Git-identity mapping.
type User struct {
	P4User   string
	Email    string
	FullName string
}

// entryRe matches "p4user email full name", with the full name optionally
// double-quoted.
var entryRe = regexp.MustCompile(`([^ \t]+)[ \t]+([^ \t]+)[ \t]+"?([^"]+)"?`)

// illegalEmailChars would corrupt git-fast-import identity lines.
const illegalEmailChars = "<>,"

// ValidateEmail rejects addresses that cannot appear inside the angle
// brackets of a Git identity.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is empty")
	}
	if strings.ContainsAny(email, illegalEmailChars) {
		return fmt.Errorf("email %q contains one of %q", email, illegalEmailChars)
	}
	return nil
}

// ParseFile reads usermap entries from r. Blank lines and # comments are
// skipped. Entries with invalid email addresses are rejected.
func ParseFile(r io.Reader) ([]User, error) {
	var users []User
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := entryRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("usermap line %d: cannot parse %q", lineNum, line)
		}
		u := User{
			P4User:   m[1],
			Email:    m[2],
			FullName: strings.TrimSpace(m[3]),
		}
		if err := ValidateEmail(u.Email); err != nil {
			return nil, fmt.Errorf("usermap line %d: %w", lineNum, err)
		}
		users = append(users, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading usermap: %w", err)
	}
	return users, nil
}

// Map resolves Perforce users to Git identities. Usermap file entries take
// precedence over Perforce user specs.
type Map struct {
	entries []User
	p4Users map[string]User
}

// New builds a Map from usermap file entries and the server's user specs.
func New(entries []User, p4Users []User) *Map {
	m := &Map{
		entries: entries,
		p4Users: make(map[string]User, len(p4Users)),
	}
	for _, u := range p4Users {
		m.p4Users[u.P4User] = u
	}
	return m
}

// Lookup returns the Git identity for a Perforce user. A user found in
// neither the usermap nor the server's user list gets a placeholder
// identity derived from the user name, so the caller always has something
// valid to hand to git-fast-import.
func (m *Map) Lookup(p4user string) User {
	for _, u := range m.entries {
		if u.P4User == p4user {
			return u
		}
	}
	if u, ok := m.p4Users[p4user]; ok {
		if ValidateEmail(u.Email) == nil {
			return u
		}
		// A bad email in the user spec still yields a usable identity.
		return User{P4User: p4user, Email: placeholderEmail(p4user), FullName: u.FullName}
	}
	return User{
		P4User:   p4user,
		Email:    placeholderEmail(p4user),
		FullName: p4user,
	}
}

// LookupByEmail finds the Perforce user owning an email address,
// case-insensitively. Used for attributing Git-originated changes.
func (m *Map) LookupByEmail(email string) (User, bool) {
	lower := strings.ToLower(email)
	for _, u := range m.entries {
		if strings.ToLower(u.Email) == lower {
			return u, true
		}
	}
	for _, u := range m.p4Users {
		if strings.ToLower(u.Email) == lower {
			return u, true
		}
	}
	return User{}, false
}

func placeholderEmail(p4user string) string {
	// Sanitize just in case the user name itself carries illegal characters.
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(illegalEmailChars+" \t", r) {
			return '_'
		}
		return r
	}, p4user)
	return clean + "@unknown"
}
