package mirror

import (
	"strconv"
	"strings"

	"github.com/ravenbrook/helixmirror/internal/descinfo"
	"github.com/ravenbrook/helixmirror/internal/fastimport"
	"github.com/ravenbrook/helixmirror/internal/p4"
)

// commitMessage builds the Git commit message for a changelist.
//
// Changes that originally came from Git carry an "Imported from Git" block;
// the block is stripped so the commit reads as it did before the round
// trip. Every message then gains the "Copied from Perforce" block naming
// the changelist and this mirror's server identity, unless the repo config
// disables it.
func (m *Mirror) commitMessage(cl *p4.Changelist) string {
	desc := cl.Description
	if imp := descinfo.ParseImport(desc); imp != nil {
		desc = imp.CleanDesc
	}
	if m.repo.Copy.EnableGitP4Emulation {
		desc = descinfo.AppendGitP4(desc, cl.Change, m.view.Roots())
	}
	if m.repo.Copy.EnableAddCopiedFromPerforce {
		desc = descinfo.AppendExport(desc, cl.Change, m.serverID)
	}
	return desc
}

// identities derives the author and committer for a changelist.
//
// A change that carries an import block keeps its original Git identities
// byte for byte. A native Perforce change gets its identity from the
// usermap and its timestamp from the changelist.
func (m *Mirror) identities(cl *p4.Changelist) (*fastimport.Identity, fastimport.Identity) {
	if imp := descinfo.ParseImport(cl.Description); imp != nil {
		committer := imp.Committer
		if committer == nil {
			committer = imp.Author
		}
		if committer != nil {
			c := toFastImport(*committer)
			var author *fastimport.Identity
			if imp.Author != nil {
				a := toFastImport(*imp.Author)
				author = &a
			}
			return author, c
		}
	}

	u := m.users.Lookup(cl.User)
	committer := fastimport.Identity{
		Name:   u.FullName,
		Email:  u.Email,
		Time:   strconv.FormatInt(cl.Time.Unix(), 10),
		Offset: cl.Time.Format("-0700"),
	}
	return nil, committer
}

// toFastImport converts a recorded identity, whose email still carries
// angle brackets and whose offset may be malformed, into a fast-import one.
func toFastImport(id descinfo.Identity) fastimport.Identity {
	return fastimport.Identity{
		Name:   id.FullName,
		Email:  strings.Trim(id.Email, "<>"),
		Time:   id.Time,
		Offset: descinfo.CleanOffset(id.Offset),
	}
}
