package descinfo

import (
	"strings"
	"testing"
)

func TestAppendExport(t *testing.T) {
	got := AppendExport("Fix the frobnicator.", 1234, "perforce.example.com")

	want := "Fix the frobnicator.\n" +
		"\n" +
		"Copied from Perforce\n" +
		" Change: 1234\n" +
		" ServerID: perforce.example.com\n"
	if got != want {
		t.Errorf("AppendExport mismatch:\ngot:\n%q\nwant:\n%q", got, want)
	}
}

func TestAppendExportPreservesCRLF(t *testing.T) {
	got := AppendExport("Line one.\r\nLine two.\r\n", 7, "p4d-east")

	if strings.Contains(strings.ReplaceAll(got, "\r\n", ""), "\n") {
		t.Errorf("expected CRLF-only output, got %q", got)
	}
	if !strings.HasSuffix(got, " ServerID: p4d-east\r\n") {
		t.Errorf("missing CRLF ServerID line: %q", got)
	}
}

func TestAppendExportNoDoubleBlankLine(t *testing.T) {
	// A description already ending in a blank line gets no extra one.
	got := AppendExport("Tidy.\n\n", 9, "p4")
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("expected single blank separator, got %q", got)
	}
}

func TestParseExport(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		want     *Export
		serverID string
	}{
		{
			name: "full block",
			msg: "Fix the frobnicator.\n\nCopied from Perforce\n" +
				" Change: 1234\n ServerID: perforce.example.com\n",
			want: &Export{Change: 1234, ServerID: "perforce.example.com"},
		},
		{
			name: "no block",
			msg:  "Just a regular commit message.\n",
			want: nil,
		},
		{
			name: "change without server id",
			msg:  "Old mirror.\n\nCopied from Perforce\n Change: 42\n",
			want: &Export{Change: 42},
		},
		{
			name: "header in body, real block last",
			msg: "Discussing the Copied from Perforce trailer format.\n\n" +
				"Copied from Perforce\n Change: 8\n ServerID: p4main\n",
			want: &Export{Change: 8, ServerID: "p4main"},
		},
		{
			name: "header without change line",
			msg:  "Mentions Copied from Perforce but has no fields.\n",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseExport(tt.msg)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseExport = %+v, want %+v", got, tt.want)
			}
			if got == nil {
				return
			}
			if got.Change != tt.want.Change {
				t.Errorf("Change = %d, want %d", got.Change, tt.want.Change)
			}
			if got.ServerID != tt.want.ServerID {
				t.Errorf("ServerID = %q, want %q", got.ServerID, tt.want.ServerID)
			}
		})
	}
}

func TestExportRoundTrip(t *testing.T) {
	msg := AppendExport("Rework the widget cache.", 98765, "commander.perforce.example")
	e := ParseExport(msg)
	if e == nil {
		t.Fatal("ParseExport returned nil for freshly appended block")
	}
	if e.Change != 98765 {
		t.Errorf("Change = %d, want 98765", e.Change)
	}
	if e.ServerID != "commander.perforce.example" {
		t.Errorf("ServerID = %q, want commander.perforce.example", e.ServerID)
	}
}

func TestParseImport(t *testing.T) {
	desc := "Add login retry logic.\n" +
		"\n" +
		"Imported from Git\n" +
		" Author: Jane Doe <jane@example.com> 1381882756 -0700\n" +
		" Committer: Jane Doe <jane@example.com> 1381882760 -0700\n" +
		" Pusher: jdoe\n" +
		" sha1: 6c5b2e7f0d9a8b7c6d5e4f3a2b1c0d9e8f7a6b5c\n" +
		" push-state: complete\n"

	imp := ParseImport(desc)
	if imp == nil {
		t.Fatal("ParseImport returned nil")
	}
	if imp.CleanDesc != "Add login retry logic." {
		t.Errorf("CleanDesc = %q", imp.CleanDesc)
	}
	if imp.Author == nil || imp.Author.FullName != "Jane Doe" {
		t.Errorf("Author = %+v", imp.Author)
	}
	if imp.Author != nil && imp.Author.Email != "<jane@example.com>" {
		t.Errorf("Author.Email = %q", imp.Author.Email)
	}
	if imp.Committer == nil || imp.Committer.Time != "1381882760" {
		t.Errorf("Committer = %+v", imp.Committer)
	}
	if imp.Pusher != "jdoe" {
		t.Errorf("Pusher = %q", imp.Pusher)
	}
	if imp.SHA1 != "6c5b2e7f0d9a8b7c6d5e4f3a2b1c0d9e8f7a6b5c" {
		t.Errorf("SHA1 = %q", imp.SHA1)
	}
	if imp.PushState != "complete" {
		t.Errorf("PushState = %q", imp.PushState)
	}
}

func TestParseImportNoFullName(t *testing.T) {
	desc := "x\n\nImported from Git\n Author: <bot@example.com> 1400000000 +0000\n"
	imp := ParseImport(desc)
	if imp == nil || imp.Author == nil {
		t.Fatal("expected author")
	}
	if imp.Author.FullName != " " {
		t.Errorf("FullName = %q, want single space placeholder", imp.Author.FullName)
	}
}

func TestParseImportAbsent(t *testing.T) {
	if imp := ParseImport("A plain Perforce changelist description."); imp != nil {
		t.Errorf("expected nil, got %+v", imp)
	}
}

func TestAppendGitP4(t *testing.T) {
	got := AppendGitP4("Msg.", 55, []string{"//depot/main/", "//depot/proj/"})
	want := "[git-p4: depot-paths = \"//depot/main/,//depot/proj/\": change = 55]"
	if !strings.Contains(got, want) {
		t.Errorf("missing git-p4 line:\n%q", got)
	}
}

func TestCleanOffset(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"-0700", "-0700"},
		{"+0530", "+0530"},
		{"+051800", "+0001"},
		{"0000", "+0001"},
		{"", "+0001"},
	}
	for _, tt := range tests {
		if got := CleanOffset(tt.in); got != tt.want {
			t.Errorf("CleanOffset(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIdentityString(t *testing.T) {
	id := Identity{FullName: "Jane Doe", Email: "<jane@example.com>", Time: "1381882756", Offset: "+051800"}
	want := "Jane Doe <jane@example.com> 1381882756 +0001"
	if got := id.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
