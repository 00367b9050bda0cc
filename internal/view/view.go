// Package view implements branch view mappings: the two-sided Perforce map
// that decides which depot paths belong to a mirrored repo and where each
// file lands in the Git working tree.
//
// A view is an ordered list of mapping lines. Each line maps a depot-side
// path to a repo-side path, both usually ending in the "..." wildcard:
//
//	//depot/main/...      ...
//	-//depot/main/big/... big/...
//	+//depot/overlay/...  ...
//
// Later lines win, matching Perforce map semantics. Lines prefixed with "-"
// exclude paths from the view; lines prefixed with "+" overlay additional
// depot paths onto the repo.
package view

import (
	"fmt"
	"sort"
	"strings"
)

// Line is a single parsed view mapping line.
type Line struct {
	// Exclude marks a "-" line that removes paths from the view.
	Exclude bool

	// Overlay marks a "+" line that maps additional depot paths on top of
	// earlier lines.
	Overlay bool

	// Depot is the depot-side path, without the +/- prefix.
	Depot string

	// Repo is the repo-side path, relative to the repo root.
	Repo string
}

// wild reports whether the path ends in the "..." wildcard and returns the
// path with the wildcard stripped.
func wild(path string) (string, bool) {
	if strings.HasSuffix(path, "...") {
		return strings.TrimSuffix(path, "..."), true
	}
	return path, false
}

// Map is an ordered branch view.
type Map struct {
	lines []Line
}

// Parse builds a Map from raw view lines as they appear in a repo config.
// Blank lines and # comments are skipped.
func Parse(raw []string) (*Map, error) {
	m := &Map{}
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		lhs, rhs, err := splitLine(line)
		if err != nil {
			return nil, err
		}

		l := Line{}
		switch {
		case strings.HasPrefix(lhs, "-"):
			l.Exclude = true
			lhs = lhs[1:]
		case strings.HasPrefix(lhs, "+"):
			l.Overlay = true
			lhs = lhs[1:]
		}

		if !strings.HasPrefix(lhs, "//") {
			return nil, fmt.Errorf("view line %q: depot side must start with //", line)
		}

		_, lw := wild(lhs)
		_, rw := wild(rhs)
		if lw != rw {
			return nil, fmt.Errorf("view line %q: wildcard must appear on both sides or neither", line)
		}

		l.Depot = lhs
		l.Repo = strings.TrimPrefix(rhs, "/")
		m.lines = append(m.lines, l)
	}
	if len(m.lines) == 0 {
		return nil, fmt.Errorf("view has no mapping lines")
	}
	return m, nil
}

// splitLine splits a view line into depot and repo sides, honoring
// double-quoted paths that contain spaces.
func splitLine(line string) (string, string, error) {
	fields, err := quotedFields(line)
	if err != nil {
		return "", "", fmt.Errorf("view line %q: %w", line, err)
	}
	if len(fields) != 2 {
		return "", "", fmt.Errorf("view line %q: want 2 paths, got %d", line, len(fields))
	}
	return fields[0], fields[1], nil
}

func quotedFields(line string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
		case (r == ' ' || r == '\t') && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	flush()
	return fields, nil
}

// Translate maps a depot path to its repo-side path. The second return is
// false when the path is excluded or outside the view.
func (m *Map) Translate(depotPath string) (string, bool) {
	matched := false
	var repoPath string

	// Later lines win.
	for _, l := range m.lines {
		rest, ok := matchDepot(l.Depot, depotPath)
		if !ok {
			continue
		}
		if l.Exclude {
			matched = false
			continue
		}
		base, w := wild(l.Repo)
		if w {
			repoPath = base + rest
		} else {
			repoPath = base
		}
		matched = true
	}
	if !matched {
		return "", false
	}
	return repoPath, true
}

// matchDepot reports whether depotPath falls under the mapping's depot side,
// returning the wildcard remainder.
func matchDepot(pattern, depotPath string) (string, bool) {
	base, w := wild(pattern)
	if w {
		if strings.HasPrefix(depotPath, base) {
			return depotPath[len(base):], true
		}
		return "", false
	}
	if depotPath == pattern {
		return "", true
	}
	return "", false
}

// InViewPaths returns the depot-side paths of all non-exclusion lines,
// suitable as path arguments to "p4 changes".
func (m *Map) InViewPaths() []string {
	var paths []string
	for _, l := range m.lines {
		if l.Exclude {
			continue
		}
		paths = append(paths, l.Depot)
	}
	return paths
}

// Roots returns the sorted depot roots of the view in the form git-p4 uses:
// exclusion lines skipped, overlay markers stripped, and the trailing "..."
// wildcard removed.
func (m *Map) Roots() []string {
	var roots []string
	for _, l := range m.lines {
		if l.Exclude {
			continue
		}
		root, _ := wild(l.Depot)
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}
