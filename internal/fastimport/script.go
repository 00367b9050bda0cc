// Package fastimport builds and runs git fast-import streams.
//
// A Script accumulates blob and commit commands for one mirror batch; Run
// feeds the finished stream to "git fast-import" and returns the mark-to-
// SHA1 assignments git reports back.
package fastimport

import (
	"bytes"
	"fmt"
	"strings"
)

// Mode is a Git file mode for a filemodify command.
type Mode string

const (
	// ModeFile is a regular file.
	ModeFile Mode = "100644"
	// ModeExec is an executable file.
	ModeExec Mode = "100755"
	// ModeSymlink is a symbolic link; the blob holds the target path.
	ModeSymlink Mode = "120000"
)

// Identity is a name/email/timestamp triple formatted for fast-import
// identity lines. Time and Offset are kept as strings so identities parsed
// from import blocks reproduce byte-exactly.
type Identity struct {
	Name   string
	Email  string // without angle brackets
	Time   string // seconds since epoch
	Offset string // e.g. "-0700"
}

func (id Identity) line() string {
	return fmt.Sprintf("%s <%s> %s %s", id.Name, id.Email, id.Time, id.Offset)
}

// CommitOptions configures one commit command in the stream.
type CommitOptions struct {
	// Ref is the full reference name, e.g. "refs/heads/main".
	Ref string

	// Mark is this commit's mark number, assigned by the caller via
	// Script.NextMark.
	Mark int

	// Author is optional; fast-import falls back to Committer.
	Author *Identity

	// Committer is required.
	Committer Identity

	// Message is the full commit message.
	Message string

	// From is the first parent: a ":mark" reference, a SHA1, or empty for
	// a root commit.
	From string

	// Merge lists additional parents for merge commits.
	Merge []string

	// Deleteall clears the inherited tree before filemodify commands.
	Deleteall bool
}

// Script is an in-memory fast-import stream.
type Script struct {
	buf      bytes.Buffer
	nextMark int
}

// NewScript returns an empty script. Marks start at 1.
func NewScript() *Script {
	return &Script{nextMark: 1}
}

// NextMark reserves and returns the next mark number.
func (s *Script) NextMark() int {
	m := s.nextMark
	s.nextMark++
	return m
}

// Len returns the current stream size in bytes.
func (s *Script) Len() int {
	return s.buf.Len()
}

// Bytes returns the accumulated stream.
func (s *Script) Bytes() []byte {
	return s.buf.Bytes()
}

// Blob emits a blob command for data and returns its mark.
func (s *Script) Blob(data []byte) int {
	mark := s.NextMark()
	fmt.Fprintf(&s.buf, "blob\nmark :%d\n", mark)
	s.data(data)
	return mark
}

// Commit emits a commit command. File commands (FileModify, FileDelete)
// must follow immediately after.
func (s *Script) Commit(opts CommitOptions) {
	fmt.Fprintf(&s.buf, "commit %s\n", opts.Ref)
	fmt.Fprintf(&s.buf, "mark :%d\n", opts.Mark)
	if opts.Author != nil {
		fmt.Fprintf(&s.buf, "author %s\n", opts.Author.line())
	}
	fmt.Fprintf(&s.buf, "committer %s\n", opts.Committer.line())
	s.data([]byte(opts.Message))
	if opts.From != "" {
		fmt.Fprintf(&s.buf, "from %s\n", opts.From)
	}
	for _, parent := range opts.Merge {
		fmt.Fprintf(&s.buf, "merge %s\n", parent)
	}
	if opts.Deleteall {
		s.buf.WriteString("deleteall\n")
	}
}

// Reset emits a reset command, moving ref to from (or marking an orphan
// branch start when from is empty).
func (s *Script) Reset(ref, from string) {
	fmt.Fprintf(&s.buf, "reset %s\n", ref)
	if from != "" {
		fmt.Fprintf(&s.buf, "from %s\n", from)
	}
}

// FileModify emits a filemodify command pointing path at a previously
// emitted blob mark.
func (s *Script) FileModify(mode Mode, mark int, path string) {
	fmt.Fprintf(&s.buf, "M %s :%d %s\n", mode, mark, quotePath(path))
}

// FileDelete emits a filedelete command for path.
func (s *Script) FileDelete(path string) {
	fmt.Fprintf(&s.buf, "D %s\n", quotePath(path))
}

// data emits a counted data block. fast-import counts bytes, not runes.
func (s *Script) data(b []byte) {
	fmt.Fprintf(&s.buf, "data %d\n", len(b))
	s.buf.Write(b)
	s.buf.WriteByte('\n')
}

// quotePath C-style-quotes a path when fast-import requires it: paths
// containing double quotes, backslashes, or control characters.
func quotePath(path string) string {
	if !strings.ContainsAny(path, "\"\\\n\r\t") && !strings.HasPrefix(path, "\"") {
		return path
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range path {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
