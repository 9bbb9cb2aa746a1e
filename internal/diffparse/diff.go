// Package diffparse parses unified-diff text into hunks with absolute line
// numbers, and detects binary patches.
package diffparse

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/corvid-labs/mrsentry/internal/errs"
)

// LineKind classifies one line inside a hunk body.
type LineKind string

const (
	LineAdded   LineKind = "added"
	LineRemoved LineKind = "removed"
	LineContext LineKind = "context"
)

// Line is one line of a hunk, stamped with both old- and new-side line
// numbers. Unused sides are 0.
type Line struct {
	Kind    LineKind
	OldLine int
	NewLine int
	Text    string
}

// Hunk is a contiguous diff region, `@@ -a,b +c,d @@`.
type Hunk struct {
	OldStart, OldLines int
	NewStart, NewLines int
	Lines              []Line
}

// FileDiff is the parsed unified diff for one file change.
type FileDiff struct {
	OldPath  string
	NewPath  string
	IsBinary bool
	Hunks    []Hunk
}

var (
	hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)
	oldPathRe    = regexp.MustCompile(`^--- (?:a/)?(\S+)`)
	newPathRe    = regexp.MustCompile(`^\+\+\+ (?:b/)?(\S+)`)
)

// ParseUnifiedDiff parses the full unified-diff text for a single file. It
// detects binary patches via the "GIT binary patch" / "Binary files ...
// differ" markers or embedded NUL bytes, in which case hunks is empty and
// IsBinary is true.
func ParseUnifiedDiff(text string) (*FileDiff, error) {
	if strings.Contains(text, "GIT binary patch") ||
		strings.Contains(text, "Binary files") && strings.Contains(text, "differ") ||
		bytes.ContainsRune([]byte(text), 0) {
		fd := &FileDiff{IsBinary: true}
		fd.OldPath, fd.NewPath = extractPaths(text)
		return fd, nil
	}

	fd := &FileDiff{}
	fd.OldPath, fd.NewPath = extractPaths(text)

	lines := strings.Split(text, "\n")
	var cur *Hunk
	oldLine, newLine := 0, 0

	for _, raw := range lines {
		if strings.HasPrefix(raw, "@@") {
			m := hunkHeaderRe.FindStringSubmatch(raw)
			if m == nil {
				continue
			}
			if cur != nil {
				fd.Hunks = append(fd.Hunks, *cur)
			}
			oldStart := atoiDefault(m[1], 0)
			oldLines := atoiDefault(m[2], 1)
			newStart := atoiDefault(m[3], 0)
			newLines := atoiDefault(m[4], 1)
			cur = &Hunk{OldStart: oldStart, OldLines: oldLines, NewStart: newStart, NewLines: newLines}
			oldLine, newLine = oldStart, newStart
			continue
		}
		if cur == nil {
			continue // preamble ("diff --git", "index ...", "---", "+++")
		}
		switch {
		case strings.HasPrefix(raw, "+"):
			cur.Lines = append(cur.Lines, Line{Kind: LineAdded, NewLine: newLine, Text: raw[1:]})
			newLine++
		case strings.HasPrefix(raw, "-"):
			cur.Lines = append(cur.Lines, Line{Kind: LineRemoved, OldLine: oldLine, Text: raw[1:]})
			oldLine++
		case strings.HasPrefix(raw, " "):
			cur.Lines = append(cur.Lines, Line{Kind: LineContext, OldLine: oldLine, NewLine: newLine, Text: raw[1:]})
			oldLine++
			newLine++
		case raw == "" || strings.HasPrefix(raw, "\\"):
			// trailing blank line or "\ No newline at end of file"
		default:
			return nil, errs.New(errs.Parse, "diffparse", fmt.Sprintf("unrecognized diff line: %q", raw))
		}
	}
	if cur != nil {
		fd.Hunks = append(fd.Hunks, *cur)
	}
	return fd, nil
}

// AddedLines returns the new-side line numbers of every Added line across
// all hunks, in ascending order.
func (fd *FileDiff) AddedLines() []int {
	var out []int
	for _, h := range fd.Hunks {
		for _, l := range h.Lines {
			if l.Kind == LineAdded {
				out = append(out, l.NewLine)
			}
		}
	}
	return out
}

func extractPaths(text string) (oldPath, newPath string) {
	for _, line := range strings.Split(text, "\n") {
		if oldPath == "" {
			if m := oldPathRe.FindStringSubmatch(line); m != nil {
				oldPath = m[1]
			}
		}
		if newPath == "" {
			if m := newPathRe.FindStringSubmatch(line); m != nil {
				newPath = m[1]
			}
		}
		if oldPath != "" && newPath != "" {
			break
		}
	}
	return
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
