package usermap

import (
	"strings"
	"testing"
)

func TestParseFile(t *testing.T) {
	input := `
# Administrator-maintained mappings.
jdoe     jane@example.com    "Jane Doe"
bbuild	 builder@ci.example  Build Bot
`
	users, err := ParseFile(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
	if users[0] != (User{P4User: "jdoe", Email: "jane@example.com", FullName: "Jane Doe"}) {
		t.Errorf("users[0] = %+v", users[0])
	}
	if users[1] != (User{P4User: "bbuild", Email: "builder@ci.example", FullName: "Build Bot"}) {
		t.Errorf("users[1] = %+v", users[1])
	}
}

func TestParseFileRejectsBadEmail(t *testing.T) {
	input := `jdoe jane<@example.com "Jane Doe"`
	if _, err := ParseFile(strings.NewReader(input)); err == nil {
		t.Error("expected error for email with angle bracket")
	}
}

func TestLookupPrecedence(t *testing.T) {
	entries := []User{{P4User: "jdoe", Email: "jane@corp.example", FullName: "Jane D."}}
	p4Users := []User{
		{P4User: "jdoe", Email: "jane@old.example", FullName: "Jane Doe"},
		{P4User: "sam", Email: "sam@corp.example", FullName: "Sam Smith"},
	}
	m := New(entries, p4Users)

	// Usermap file wins over user spec.
	if got := m.Lookup("jdoe"); got.Email != "jane@corp.example" {
		t.Errorf("Lookup(jdoe).Email = %q", got.Email)
	}

	// User spec used when no file entry exists.
	if got := m.Lookup("sam"); got.FullName != "Sam Smith" {
		t.Errorf("Lookup(sam) = %+v", got)
	}
}

func TestLookupUnknownUser(t *testing.T) {
	m := New(nil, nil)
	got := m.Lookup("ghost")
	if got.Email != "ghost@unknown" {
		t.Errorf("placeholder email = %q", got.Email)
	}
	if got.FullName != "ghost" {
		t.Errorf("placeholder full name = %q", got.FullName)
	}
	if err := ValidateEmail(got.Email); err != nil {
		t.Errorf("placeholder email invalid: %v", err)
	}
}

func TestLookupBadSpecEmail(t *testing.T) {
	p4Users := []User{{P4User: "odd", Email: "odd<mail", FullName: "Odd One"}}
	m := New(nil, p4Users)
	got := m.Lookup("odd")
	if err := ValidateEmail(got.Email); err != nil {
		t.Errorf("Lookup returned invalid email %q: %v", got.Email, err)
	}
	if got.FullName != "Odd One" {
		t.Errorf("FullName = %q, want full name preserved", got.FullName)
	}
}

func TestLookupByEmail(t *testing.T) {
	entries := []User{{P4User: "jdoe", Email: "Jane@Example.com", FullName: "Jane Doe"}}
	m := New(entries, nil)

	u, ok := m.LookupByEmail("jane@example.com")
	if !ok || u.P4User != "jdoe" {
		t.Errorf("LookupByEmail = (%+v, %v)", u, ok)
	}
	if _, ok := m.LookupByEmail("nobody@example.com"); ok {
		t.Error("unexpected match for unknown email")
	}
}
