package p4

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Changelist is one submitted Perforce changelist.
type Changelist struct {
	Change      int64
	User        string
	Client      string
	Time        time.Time
	Description string
	Status      string
}

// FileAction is the action a changelist took on one file.
type FileAction string

const (
	ActionAdd       FileAction = "add"
	ActionEdit      FileAction = "edit"
	ActionDelete    FileAction = "delete"
	ActionBranch    FileAction = "branch"
	ActionIntegrate FileAction = "integrate"
	ActionImport    FileAction = "import"
	ActionPurge     FileAction = "purge"
	ActionMoveAdd   FileAction = "move/add"
	ActionMoveDel   FileAction = "move/delete"
)

// IsDelete reports whether the action removes the file from the head
// revision.
func (a FileAction) IsDelete() bool {
	return a == ActionDelete || a == ActionMoveDel || a == ActionPurge
}

// FileRev is one file revision within a changelist.
type FileRev struct {
	DepotPath string
	Rev       int
	Action    FileAction
	Type      string // Perforce filetype, e.g. "text", "xtext", "binary", "symlink"
}

// Changes lists submitted changelists under the given depot paths,
// strictly after the given changelist number, in ascending order.
// max limits the result count, keeping the OLDEST max changes (0 = no
// limit).
//
// The limit is applied locally rather than with p4's -m flag: -m keeps the
// newest changes in the range, and mirroring from the newest end would
// leave holes in the copied history.
func (p *P4) Changes(ctx context.Context, paths []string, after int64, max int) ([]Changelist, error) {
	args := []string{"changes", "-l", "-s", "submitted"}
	for _, path := range paths {
		args = append(args, fmt.Sprintf("%s@%d,#head", path, after+1))
	}

	records, err := p.RunTagged(ctx, args...)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var changes []Changelist
	for _, r := range records {
		cl, err := parseChangeRecord(r)
		if err != nil {
			return nil, err
		}
		if cl.Change <= after || seen[cl.Change] {
			continue
		}
		seen[cl.Change] = true
		changes = append(changes, cl)
	}

	// p4 changes reports newest first; mirroring wants oldest first.
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Change < changes[j].Change
	})
	if max > 0 && len(changes) > max {
		changes = changes[:max]
	}
	return changes, nil
}

// Describe fetches a changelist's metadata and its file revisions.
func (p *P4) Describe(ctx context.Context, change int64) (*Changelist, []FileRev, error) {
	records, err := p.RunTagged(ctx, "describe", "-s", strconv.FormatInt(change, 10))
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("describe %d: %w", change, ErrNoSuchChange)
	}
	r := records[0]

	cl, err := parseChangeRecord(r)
	if err != nil {
		return nil, nil, fmt.Errorf("describe %d: %w", change, err)
	}

	files, err := parseFileRevs(r)
	if err != nil {
		return nil, nil, fmt.Errorf("describe %d: %w", change, err)
	}
	return &cl, files, nil
}

func parseChangeRecord(r Record) (Changelist, error) {
	changeStr := r["change"]
	if changeStr == "" {
		return Changelist{}, fmt.Errorf("change record missing change number")
	}
	change, err := strconv.ParseInt(changeStr, 10, 64)
	if err != nil {
		return Changelist{}, fmt.Errorf("bad change number %q: %w", changeStr, err)
	}

	cl := Changelist{
		Change:      change,
		User:        r["user"],
		Client:      r["client"],
		Description: r["desc"],
		Status:      r["status"],
	}
	if ts := r["time"]; ts != "" {
		secs, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return Changelist{}, fmt.Errorf("bad change time %q: %w", ts, err)
		}
		cl.Time = time.Unix(secs, 0)
	}
	return cl, nil
}

func parseFileRevs(r Record) ([]FileRev, error) {
	depotFiles := indexedField(r, "depotFile")
	actions := indexedField(r, "action")
	types := indexedField(r, "type")
	revs := indexedField(r, "rev")

	if len(actions) != len(depotFiles) || len(types) != len(depotFiles) || len(revs) != len(depotFiles) {
		return nil, fmt.Errorf("uneven describe fields: %d files, %d actions, %d types, %d revs",
			len(depotFiles), len(actions), len(types), len(revs))
	}

	files := make([]FileRev, 0, len(depotFiles))
	for i, depotFile := range depotFiles {
		rev, err := strconv.Atoi(revs[i])
		if err != nil {
			return nil, fmt.Errorf("bad rev %q for %s: %w", revs[i], depotFile, err)
		}
		files = append(files, FileRev{
			DepotPath: depotFile,
			Rev:       rev,
			Action:    FileAction(actions[i]),
			Type:      types[i],
		})
	}
	return files, nil
}
