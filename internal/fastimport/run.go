package fastimport

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Result holds the mark assignments git fast-import reported.
type Result struct {
	// Marks maps each mark number to the SHA1 git assigned it.
	Marks map[int]string
}

// SHA1 returns the commit hash assigned to mark.
func (r *Result) SHA1(mark int) (string, error) {
	sha1, ok := r.Marks[mark]
	if !ok {
		return "", fmt.Errorf("fast-import exported no SHA1 for mark :%d", mark)
	}
	return sha1, nil
}

// Run feeds the script to "git fast-import" in the given git directory and
// parses the exported marks.
func Run(ctx context.Context, gitDir string, script *Script) (*Result, error) {
	marksFile, err := os.CreateTemp("", "hmx-marks-")
	if err != nil {
		return nil, fmt.Errorf("creating marks file: %w", err)
	}
	defer os.Remove(marksFile.Name())
	defer marksFile.Close()

	cmd := exec.CommandContext(ctx, "git", "--git-dir", gitDir,
		"fast-import", "--quiet", "--export-marks="+marksFile.Name())
	cmd.Stdin = bytes.NewReader(script.Bytes())

	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("git fast-import failed: %w\n%s", err, out)
	}

	marks, err := os.ReadFile(marksFile.Name())
	if err != nil {
		return nil, fmt.Errorf("reading exported marks: %w", err)
	}
	return parseMarks(marks)
}

// parseMarks parses fast-import's exported marks file, one ":mark sha1"
// pair per line.
func parseMarks(data []byte) (*Result, error) {
	result := &Result{Marks: make(map[int]string)}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		markStr, sha1, ok := strings.Cut(line, " ")
		if !ok || !strings.HasPrefix(markStr, ":") {
			return nil, fmt.Errorf("bad marks line %q", line)
		}
		mark, err := strconv.Atoi(markStr[1:])
		if err != nil {
			return nil, fmt.Errorf("bad mark in %q: %w", line, err)
		}
		result.Marks[mark] = sha1
	}
	return result, nil
}
