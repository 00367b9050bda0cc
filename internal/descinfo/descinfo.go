// Package descinfo encodes and decodes the structured trailer blocks that
// helixmirror writes into Git commit messages and reads back out of Perforce
// changelist descriptions.
//
// Two blocks exist:
//
//   - The export block ("Copied from Perforce") is appended to every Git
//     commit message generated from a Perforce changelist. It records the
//     originating changelist number and the identity of the Perforce server
//     the change came from, so a reader of the Git history can always tell
//     which server and which change produced a commit.
//
//   - The import block ("Imported from Git") appears in changelist
//     descriptions for changes that were originally submitted to Perforce
//     through a Git gateway. When such a changelist is mirrored back to Git,
//     the block supplies the original author and committer identities and is
//     stripped from the visible message so the round trip is lossless.
package descinfo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Export block header and keys.
const (
	ExportHeader = "Copied from Perforce"
	KeyChange    = "Change"
	KeyServerID  = "ServerID"
)

// Import block header and keys.
const (
	ImportHeader = "Imported from Git"
	KeyAuthor    = "Author"
	KeyCommitter = "Committer"
	KeyPusher    = "Pusher"
	KeySHA1      = "sha1"
	KeyPushState = "push-state"
)

// chooseEOL returns either \n or \r\n depending on what the description
// already uses, so appended lines match the existing line endings.
func chooseEOL(desc string) string {
	if strings.Contains(desc, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

// appendLines appends lines to a description, forcing a blank line between
// the human-authored text and the appended block.
func appendLines(desc string, lines []string) string {
	eol := chooseEOL(desc)
	out := desc
	if !strings.HasSuffix(out, eol) {
		out += eol
	}
	if !strings.HasSuffix(out, eol+eol) {
		out += eol
	}
	return out + strings.Join(lines, eol) + eol
}

// AppendExport appends the "Copied from Perforce" block to a changelist
// description, recording the changelist number and the originating server's
// identity.
func AppendExport(desc string, change int64, serverID string) string {
	lines := []string{
		ExportHeader,
		fmt.Sprintf(" %s: %d", KeyChange, change),
		fmt.Sprintf(" %s: %s", KeyServerID, serverID),
	}
	return appendLines(desc, lines)
}

// Export is a parsed "Copied from Perforce" block.
type Export struct {
	// Change is the originating Perforce changelist number.
	Change int64

	// ServerID identifies the Perforce server the change came from.
	ServerID string
}

var (
	exportChangeRe   = regexp.MustCompile(KeyChange + `: (\d+)`)
	exportServerIDRe = regexp.MustCompile(KeyServerID + `: (.+)`)
)

// ParseExport scans a Git commit message for the "Copied from Perforce"
// block and returns the recorded changelist number and server identity.
// Returns nil if the message carries no export block.
//
// The last occurrence of the header wins, in case a human intentionally
// used the same phrase in their own text.
func ParseExport(msg string) *Export {
	idx := strings.LastIndex(msg, ExportHeader)
	if idx < 0 {
		return nil
	}
	suffix := msg[idx:]

	m := exportChangeRe.FindStringSubmatch(suffix)
	if m == nil {
		return nil
	}
	change, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}

	e := &Export{Change: change}
	if m := exportServerIDRe.FindStringSubmatch(suffix); m != nil {
		e.ServerID = strings.TrimSpace(m[1])
	}
	return e
}

// AppendGitP4 appends a git-p4 style annotation line for tools that parse
// git-p4's output format. depotPaths should come from the branch view's
// Roots(), change is the changelist number.
//
// git-p4 sorts its depot paths and quote-wraps the whole comma-delimited
// list, not the individual paths. We do the same.
func AppendGitP4(desc string, change int64, depotPaths []string) string {
	line := fmt.Sprintf("[git-p4: depot-paths = \"%s\": change = %d]",
		strings.Join(depotPaths, ","), change)
	return appendLines(desc, []string{line})
}

// Identity is an author or committer identity recorded in an import block,
// already formatted for git-fast-import: the raw time and timezone fields
// are kept as strings so a byte-exact identity line can be reproduced.
type Identity struct {
	FullName string
	Email    string // includes angle brackets, e.g. "<a@example.com>"
	Time     string // seconds since epoch, as written
	Offset   string // timezone offset, e.g. "-0700"
}

// String formats the identity as a git-fast-import identity suffix.
func (id Identity) String() string {
	return fmt.Sprintf("%s %s %s %s", id.FullName, id.Email, id.Time, CleanOffset(id.Offset))
}

// Import is a parsed "Imported from Git" block plus the description text
// that precedes it.
type Import struct {
	// CleanDesc is the description with the import block stripped.
	CleanDesc string

	// Author and Committer are the identities recorded when the change was
	// originally pushed from Git. Either may be nil for old gateways that
	// recorded less detail.
	Author    *Identity
	Committer *Identity

	// Pusher is the Perforce user who pushed the change, when recorded.
	Pusher string

	// SHA1 is the original Git commit the changelist was created from.
	SHA1 string

	// PushState records whether the push that created the change completed.
	PushState string
}

// identityRe matches "Author: Full Name <email> 1381882756 -0700".
// The full name is optional.
var identityRe = `:(.+)? (<.*>) (\d+) ([-+\d]+)`

var (
	importAuthorRe    = regexp.MustCompile(KeyAuthor + identityRe)
	importCommitterRe = regexp.MustCompile(KeyCommitter + identityRe)
	importPusherRe    = regexp.MustCompile(KeyPusher + `: (.+)`)
	importSHA1Re      = regexp.MustCompile(KeySHA1 + `: (.+)`)
	importPushStateRe = regexp.MustCompile(KeyPushState + `: (.+)`)
)

// ParseImport scans a changelist description for the "Imported from Git"
// block. Returns nil if the description carries no import block, meaning
// the changelist originated in Perforce.
func ParseImport(desc string) *Import {
	idx := strings.LastIndex(desc, ImportHeader)
	if idx < 0 {
		return nil
	}
	suffix := desc[idx:]

	imp := &Import{}
	if idx > 0 {
		imp.CleanDesc = strings.TrimRight(desc[:idx], "\r\n")
	}

	imp.Author = parseIdentity(importAuthorRe, suffix)
	imp.Committer = parseIdentity(importCommitterRe, suffix)

	if m := importPusherRe.FindStringSubmatch(suffix); m != nil {
		imp.Pusher = strings.TrimSpace(m[1])
	}
	if m := importSHA1Re.FindStringSubmatch(suffix); m != nil {
		imp.SHA1 = strings.TrimSpace(m[1])
	}
	if m := importPushStateRe.FindStringSubmatch(suffix); m != nil {
		imp.PushState = strings.TrimSpace(m[1])
	}
	return imp
}

func parseIdentity(re *regexp.Regexp, suffix string) *Identity {
	m := re.FindStringSubmatch(suffix)
	if m == nil {
		return nil
	}
	fullname := strings.TrimSpace(m[1])
	if fullname == "" {
		fullname = " "
	}
	return &Identity{
		FullName: fullname,
		Email:    m[2],
		Time:     m[3],
		Offset:   m[4],
	}
}

var offsetRe = regexp.MustCompile(`^[-+]\d{4}$`)

// CleanOffset replaces an invalid timezone offset with +0001.
//
// Submitting clients occasionally write offsets like +051800 that
// git-fast-import rejects. We substitute a near-zero but non-zero offset
// rather than +0000 so that the substitution remains identifiable instead
// of masquerading as UTC.
func CleanOffset(tz string) string {
	if offsetRe.MatchString(tz) {
		return tz
	}
	return "+0001"
}
