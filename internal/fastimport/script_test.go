package fastimport

import (
	"fmt"
	"strings"
	"testing"
)

func TestScriptCommitStream(t *testing.T) {
	s := NewScript()

	blobMark := s.Blob([]byte("package main\n"))
	commitMark := s.NextMark()
	s.Commit(CommitOptions{
		Ref:  "refs/heads/main",
		Mark: commitMark,
		Committer: Identity{
			Name: "Jane Doe", Email: "jane@example.com",
			Time: "1609459200", Offset: "+0000",
		},
		Message: "Add main.go\n",
	})
	s.FileModify(ModeFile, blobMark, "src/main.go")

	got := string(s.Bytes())
	want := "blob\n" +
		"mark :1\n" +
		"data 13\n" +
		"package main\n" +
		"\n" +
		"commit refs/heads/main\n" +
		"mark :2\n" +
		"committer Jane Doe <jane@example.com> 1609459200 +0000\n" +
		"data 12\n" +
		"Add main.go\n" +
		"\n" +
		"M 100644 :1 src/main.go\n"
	if got != want {
		t.Errorf("stream mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestScriptCommitWithParentsAndAuthor(t *testing.T) {
	s := NewScript()
	mark := s.NextMark()
	s.Commit(CommitOptions{
		Ref:  "refs/heads/main",
		Mark: mark,
		Author: &Identity{
			Name: "Author A", Email: "a@example.com",
			Time: "100", Offset: "-0700",
		},
		Committer: Identity{
			Name: "Committer C", Email: "c@example.com",
			Time: "200", Offset: "-0700",
		},
		Message: "Merge.",
		From:    "abc123",
		Merge:   []string{":5"},
	})

	got := string(s.Bytes())
	for _, want := range []string{
		"author Author A <a@example.com> 100 -0700\n",
		"committer Committer C <c@example.com> 200 -0700\n",
		"from abc123\n",
		"merge :5\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("stream missing %q:\n%s", want, got)
		}
	}
}

func TestScriptDataByteCount(t *testing.T) {
	// data length must count bytes, not runes.
	s := NewScript()
	s.Blob([]byte("héllo"))
	got := string(s.Bytes())
	if !strings.Contains(got, fmt.Sprintf("data %d\n", len("héllo"))) {
		t.Errorf("data count should be byte length: %s", got)
	}
}

func TestScriptDeleteallAndFileDelete(t *testing.T) {
	s := NewScript()
	s.Commit(CommitOptions{
		Ref:       "refs/heads/main",
		Mark:      s.NextMark(),
		Committer: Identity{Name: "C", Email: "c@x", Time: "1", Offset: "+0000"},
		Message:   "m",
		Deleteall: true,
	})
	s.FileDelete("old/file.txt")

	got := string(s.Bytes())
	if !strings.Contains(got, "deleteall\n") {
		t.Error("missing deleteall")
	}
	if !strings.Contains(got, "D old/file.txt\n") {
		t.Error("missing filedelete")
	}
}

func TestQuotePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain/path.txt", "plain/path.txt"},
		{"with space.txt", "with space.txt"},
		{`has"quote.txt`, `"has\"quote.txt"`},
		{"has\ttab.txt", `"has\ttab.txt"`},
		{`back\slash`, `"back\\slash"`},
	}
	for _, tt := range tests {
		if got := quotePath(tt.in); got != tt.want {
			t.Errorf("quotePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseMarks(t *testing.T) {
	data := []byte(":1 8d2a2b7b0c3f4e5d6a7b8c9d0e1f2a3b4c5d6e7f\n" +
		":2 1111111111111111111111111111111111111111\n")
	result, err := parseMarks(data)
	if err != nil {
		t.Fatalf("parseMarks: %v", err)
	}
	sha1, err := result.SHA1(2)
	if err != nil || sha1 != "1111111111111111111111111111111111111111" {
		t.Errorf("SHA1(2) = (%q, %v)", sha1, err)
	}
	if _, err := result.SHA1(3); err == nil {
		t.Error("expected error for unknown mark")
	}
}

func TestParseMarksBadLine(t *testing.T) {
	if _, err := parseMarks([]byte("not-a-mark abc\n")); err == nil {
		t.Error("expected error for malformed marks line")
	}
}
