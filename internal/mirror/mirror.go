// Package mirror copies submitted Perforce changelists into a Git
// repository, one commit per changelist, preserving descriptions, authors,
// and file contents.
//
// Every generated commit message ends with a "Copied from Perforce" block
// recording the changelist number and the identity of the originating
// Perforce server, so the provenance of a commit survives cloning,
// re-hosting, and server migrations.
package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/ravenbrook/helixmirror/internal/descinfo"
	"github.com/ravenbrook/helixmirror/internal/fastimport"
	"github.com/ravenbrook/helixmirror/internal/gitx"
	"github.com/ravenbrook/helixmirror/internal/p4"
	"github.com/ravenbrook/helixmirror/internal/repocfg"
	"github.com/ravenbrook/helixmirror/internal/state"
	"github.com/ravenbrook/helixmirror/internal/usermap"
	"github.com/ravenbrook/helixmirror/internal/view"
)

// Config wires up one mirror.
type Config struct {
	P4    *p4.P4
	Git   *gitx.Repo
	State *state.DB
	Repo  *repocfg.Config
	Users *usermap.Map
	View  *view.Map

	// ServerID identifies the Perforce server in generated commit
	// messages. See p4.ResolveServerID.
	ServerID string

	Logger *log.Logger

	// Events receives progress notifications when non-nil. Sends never
	// block; a full channel drops events.
	Events chan<- Event
}

// Mirror copies changelists from one Perforce view into one Git branch.
type Mirror struct {
	p4       *p4.P4
	git      *gitx.Repo
	state    *state.DB
	repo     *repocfg.Config
	users    *usermap.Map
	view     *view.Map
	serverID string
	logger   *log.Logger
	events   chan<- Event
}

// New validates the wiring and returns a Mirror.
func New(cfg Config) (*Mirror, error) {
	if cfg.P4 == nil || cfg.Git == nil || cfg.State == nil {
		return nil, fmt.Errorf("mirror: p4, git, and state are all required")
	}
	if cfg.Repo == nil {
		return nil, fmt.Errorf("mirror: repo config is required")
	}
	if cfg.View == nil {
		return nil, fmt.Errorf("mirror: branch view is required")
	}
	if cfg.ServerID == "" {
		return nil, fmt.Errorf("mirror: server identity is required")
	}
	if cfg.Users == nil {
		cfg.Users = usermap.New(nil, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Mirror{
		p4:       cfg.P4,
		git:      cfg.Git,
		state:    cfg.State,
		repo:     cfg.Repo,
		users:    cfg.Users,
		view:     cfg.View,
		serverID: cfg.ServerID,
		logger:   cfg.Logger,
		events:   cfg.Events,
	}, nil
}

// ServerID returns the server identity recorded in commit messages.
func (m *Mirror) ServerID() string {
	return m.serverID
}

// lastCopiedKey is the server-side counter tracking the newest changelist
// this repo has copied. It survives a lost state database.
func (m *Mirror) lastCopiedKey() string {
	id := strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', ' ':
			return '-'
		}
		return r
	}, m.serverID)
	return fmt.Sprintf("helixmirror-%s-%s-last-copied-change", m.repo.Repo.Name, id)
}

// branchRef returns the full name of the mirrored branch.
func (m *Mirror) branchRef() string {
	return "refs/heads/" + m.repo.Repo.Branch
}

// SyncResult summarizes one mirror run.
type SyncResult struct {
	// Copied is the number of changelists turned into commits.
	Copied int

	// LastChange is the newest changelist copied, 0 if none.
	LastChange int64

	// HeadSHA1 is the branch head after the run, empty if nothing copied.
	HeadSHA1 string
}

// Sync copies all submitted changelists newer than the last copied one,
// up to the configured batch size per fast-import run, until caught up.
func (m *Mirror) Sync(ctx context.Context) (*SyncResult, error) {
	opID, err := m.state.BeginOp(ctx)
	if err != nil {
		return nil, err
	}

	result, err := m.sync(ctx)
	if err != nil {
		copied := 0
		if result != nil {
			copied = result.Copied
		}
		if ferr := m.state.FinishOp(ctx, opID, copied, err.Error()); ferr != nil {
			m.logger.Printf("recording failed sync: %v", ferr)
		}
		m.emit(Event{Kind: EventSyncError, Error: err.Error()})
		return result, err
	}

	if err := m.state.FinishOp(ctx, opID, result.Copied, ""); err != nil {
		return result, err
	}
	m.emit(Event{Kind: EventSyncComplete, Copied: result.Copied, Change: result.LastChange})
	return result, nil
}

func (m *Mirror) sync(ctx context.Context) (*SyncResult, error) {
	last, err := m.lastCopied(ctx)
	if err != nil {
		return nil, err
	}
	m.emit(Event{Kind: EventSyncStarted, Change: last})

	result := &SyncResult{}
	for {
		changes, err := m.p4.Changes(ctx, m.view.InViewPaths(), last, m.repo.Copy.BatchSize)
		if err != nil {
			return result, fmt.Errorf("listing changes after %d: %w", last, err)
		}
		if len(changes) == 0 {
			return result, nil
		}

		m.logger.Printf("%s: copying %d changes (%d..%d)",
			m.repo.Repo.Name, len(changes), changes[0].Change, changes[len(changes)-1].Change)

		batch, err := m.copyBatch(ctx, changes)
		if err != nil {
			return result, err
		}

		result.Copied += batch.Copied
		result.LastChange = batch.LastChange
		result.HeadSHA1 = batch.HeadSHA1
		last = batch.LastChange

		if err := m.p4.SetKey(ctx, m.lastCopiedKey(), strconv.FormatInt(last, 10)); err != nil {
			m.logger.Printf("%s: setting last-copied key: %v", m.repo.Repo.Name, err)
		}

		if len(changes) < m.repo.Copy.BatchSize {
			return result, nil
		}
	}
}

// lastCopied returns the newest changelist already mirrored, taking the
// maximum of the local state database, the server-side key, and the
// provenance block on the branch head. Any one of the three is enough to
// avoid importing a change twice: the head commit covers the case where a
// crash after fast-import advanced the ref but recorded nothing.
func (m *Mirror) lastCopied(ctx context.Context) (int64, error) {
	last, err := m.state.LastCopiedChange(ctx)
	if err != nil {
		return 0, err
	}

	val, err := m.p4.GetKey(ctx, m.lastCopiedKey())
	if err != nil {
		m.logger.Printf("%s: reading last-copied key: %v", m.repo.Repo.Name, err)
	} else if n, perr := strconv.ParseInt(val, 10, 64); perr == nil && n > last {
		last = n
	}

	if head := m.headChange(ctx); head > last {
		last = head
	}
	return last, nil
}

// headChange reads the changelist recorded on the branch head commit, or 0
// when the branch is empty or its head carries no provenance block.
func (m *Mirror) headChange(ctx context.Context) int64 {
	commits, err := m.git.Log(ctx, m.branchRef(), 1)
	if err != nil || len(commits) == 0 {
		return 0
	}
	exp := descinfo.ParseExport(commits[0].Message)
	if exp == nil {
		return 0
	}
	return exp.Change
}

// copyBatch turns one batch of changelists into one fast-import run.
func (m *Mirror) copyBatch(ctx context.Context, changes []p4.Changelist) (*SyncResult, error) {
	parent, err := m.currentParent(ctx)
	if err != nil {
		return nil, err
	}

	script := fastimport.NewScript()
	marks := make(map[int64]int, len(changes))

	for _, cl := range changes {
		detail, files, err := m.p4.Describe(ctx, cl.Change)
		if err != nil {
			return nil, fmt.Errorf("describing change %d: %w", cl.Change, err)
		}

		mark, err := m.appendCommit(ctx, script, detail, files, parent)
		if err != nil {
			return nil, fmt.Errorf("staging change %d: %w", cl.Change, err)
		}
		marks[cl.Change] = mark
		parent = fmt.Sprintf(":%d", mark)
	}

	lastChange := changes[len(changes)-1].Change
	res, err := fastimport.Run(ctx, m.git.GitDir(), script)
	if err != nil {
		return nil, fmt.Errorf("importing batch ending at %d: %w", lastChange, err)
	}

	result := &SyncResult{}
	for _, cl := range changes {
		sha1, err := res.SHA1(marks[cl.Change])
		if err != nil {
			return result, m.recoverBatch(ctx, lastChange, err)
		}
		if err := m.state.RecordChange(ctx, cl.Change, sha1, m.repo.Repo.Branch); err != nil {
			return result, m.recoverBatch(ctx, lastChange, err)
		}
		m.emit(Event{Kind: EventChangeCopied, Change: cl.Change, SHA1: sha1})
		result.Copied++
		result.LastChange = cl.Change
		result.HeadSHA1 = sha1
	}
	return result, nil
}

// recoverBatch handles bookkeeping failures after fast-import already
// advanced the branch. The commits exist, so the server-side key still
// moves to the end of the batch; otherwise the next run would import the
// same changes again on top of the advanced ref.
func (m *Mirror) recoverBatch(ctx context.Context, lastChange int64, cause error) error {
	if err := m.p4.SetKey(ctx, m.lastCopiedKey(), strconv.FormatInt(lastChange, 10)); err != nil {
		m.logger.Printf("%s: advancing last-copied key after failed batch bookkeeping: %v",
			m.repo.Repo.Name, err)
	}
	return cause
}

// currentParent resolves the branch head, or "" for an empty repository.
func (m *Mirror) currentParent(ctx context.Context) (string, error) {
	sha1, err := m.git.ResolveRef(ctx, m.branchRef())
	if err != nil {
		if errors.Is(err, gitx.ErrRefNotFound) {
			return "", nil
		}
		return "", err
	}
	return sha1, nil
}

// appendCommit stages one changelist as blob and commit commands.
func (m *Mirror) appendCommit(ctx context.Context, script *fastimport.Script,
	cl *p4.Changelist, files []p4.FileRev, parent string) (int, error) {

	type staged struct {
		path string
		mode fastimport.Mode
		mark int
		del  bool
	}
	var stagedFiles []staged

	for _, f := range files {
		gitPath, ok := m.view.Translate(f.DepotPath)
		if !ok {
			continue
		}
		if f.Action.IsDelete() {
			stagedFiles = append(stagedFiles, staged{path: gitPath, del: true})
			continue
		}
		data, err := m.p4.PrintFile(ctx, f.DepotPath, f.Rev)
		if err != nil {
			return 0, fmt.Errorf("printing %s#%d: %w", f.DepotPath, f.Rev, err)
		}
		stagedFiles = append(stagedFiles, staged{
			path: gitPath,
			mode: fileMode(f.Type),
			mark: script.Blob(data),
		})
	}

	author, committer := m.identities(cl)
	mark := script.NextMark()
	script.Commit(fastimport.CommitOptions{
		Ref:       m.branchRef(),
		Mark:      mark,
		Author:    author,
		Committer: committer,
		Message:   m.commitMessage(cl),
		From:      parent,
	})
	for _, f := range stagedFiles {
		if f.del {
			script.FileDelete(f.path)
		} else {
			script.FileModify(f.mode, f.mark, f.path)
		}
	}
	return mark, nil
}

// fileMode maps a Perforce filetype to a Git file mode. The filetype is a
// base type with optional +modifiers, e.g. "text", "xtext", "text+kx",
// "symlink".
func fileMode(p4type string) fastimport.Mode {
	base, modifiers, _ := strings.Cut(p4type, "+")
	if base == "symlink" {
		return fastimport.ModeSymlink
	}
	if strings.HasPrefix(base, "x") || strings.ContainsRune(modifiers, 'x') {
		return fastimport.ModeExec
	}
	return fastimport.ModeFile
}

// SHA1ForChange reports the commit a changelist was copied as.
func (m *Mirror) SHA1ForChange(ctx context.Context, change int64) (string, error) {
	cc, err := m.state.LookupChange(ctx, change)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("change %d has not been copied", change)
		}
		return "", err
	}
	return cc.SHA1, nil
}
