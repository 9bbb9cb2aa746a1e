// Package mapper clusters added diff lines into semantic review targets
// (Symbol/Range/Line) against the delta symbol index.
package mapper

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/corvid-labs/mrsentry/internal/model"
	"github.com/corvid-labs/mrsentry/internal/provider"
	"github.com/corvid-labs/mrsentry/internal/review/deltaindex"
)

const clusterGap = 2

type addedLine struct {
	path       string
	line       int
	symbolID   string // "" when no enclosing symbol
	touchesDecl bool
}

type cluster struct {
	path       string
	symbolID   string
	touchesDecl bool
	lines      []int
}

// Map turns a change request's added lines into review targets: find each
// added line's enclosing symbol, cluster nearby lines together, classify
// each cluster as a symbol/range/line target, and hash a snippet window
// around its anchor. readLines returns the materialized HEAD file's lines
// for snippet hashing (1-based line numbers expected by callers; index 0
// is line 1).
func Map(changes []provider.ChangeMeta, idx *deltaindex.Index, readLines func(path string) ([]string, error)) []model.MappedTarget {
	var allLines []addedLine
	for _, change := range changes {
		if change.Diff == nil {
			continue
		}
		for _, line := range change.Diff.AddedLines() {
			al := addedLine{path: change.NewPath, line: line}
			if sym := idx.FindEnclosingByLine(change.NewPath, line); sym != nil {
				al.symbolID = sym.ID
				al.touchesDecl = line == sym.Span.StartRow+1
			}
			allLines = append(allLines, al)
		}
	}

	clusters := clusterLines(allLines)

	var targets []model.MappedTarget
	for _, cl := range clusters {
		minLine, maxLine := cl.lines[0], cl.lines[len(cl.lines)-1]
		target := classify(cl, minLine, maxLine, idx)

		lines, err := readLines(cl.path)
		var snippetHash, preview string
		if err == nil {
			snippetHash, preview = hashWindow(lines, target.AnchorLine())
		}

		var owner *model.OwnerSymbol
		if cl.symbolID != "" {
			if i, ok := idx.ByID[cl.symbolID]; ok {
				c := idx.Chunks[i]
				owner = &model.OwnerSymbol{
					SymbolID:  c.ID,
					Kind:      c.Kind,
					Name:      c.Symbol,
					DeclLine:  c.Span.StartRow + 1,
					BodyStart: c.Span.StartRow + 1,
					BodyEnd:   c.Span.EndRow + 1,
				}
			}
		}

		targets = append(targets, model.MappedTarget{
			Target:      target,
			Owner:       owner,
			SnippetHash: snippetHash,
			Preview:     preview,
			Evidence: model.Evidence{
				AddedLines:  cl.lines,
				TouchesDecl: cl.touchesDecl,
			},
		})
	}

	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].Target.Path != targets[j].Target.Path {
			return targets[i].Target.Path < targets[j].Target.Path
		}
		return startLine(targets[i].Target) < startLine(targets[j].Target)
	})
	return targets
}

// clusterLines groups consecutive added lines keyed by (path,
// enclosing_symbol_id?), merging when the new line is within clusterGap of
// the current max.
func clusterLines(lines []addedLine) []cluster {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].path != lines[j].path {
			return lines[i].path < lines[j].path
		}
		return lines[i].line < lines[j].line
	})

	byKey := map[string]*cluster{}
	var order []string
	for _, al := range lines {
		key := al.path + "\x00" + al.symbolID
		cl, ok := byKey[key]
		if !ok || al.line-cl.lines[len(cl.lines)-1] > clusterGap {
			newCluster := cluster{path: al.path, symbolID: al.symbolID, touchesDecl: al.touchesDecl, lines: []int{al.line}}
			byKey[key] = &newCluster
			order = append(order, key)
			continue
		}
		cl.lines = append(cl.lines, al.line)
		if al.touchesDecl {
			cl.touchesDecl = true
		}
	}

	out := make([]cluster, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// classify picks a cluster's TargetRef kind: Symbol when it touches the
// symbol's declaration line, Range when it spans multiple lines, else Line.
func classify(cl cluster, minLine, maxLine int, idx *deltaindex.Index) model.TargetRef {
	if cl.touchesDecl && cl.symbolID != "" {
		declLine := minLine
		if i, ok := idx.ByID[cl.symbolID]; ok {
			declLine = idx.Chunks[i].Span.StartRow + 1
		}
		return model.TargetRef{Kind: model.TargetSymbol, Path: cl.path, SymbolID: cl.symbolID, DeclLine: declLine}
	}
	if minLine < maxLine {
		return model.TargetRef{Kind: model.TargetRange, Path: cl.path, StartLine: minLine, EndLine: maxLine}
	}
	return model.TargetRef{Kind: model.TargetLine, Path: cl.path, Line: minLine}
}

func startLine(t model.TargetRef) int {
	switch t.Kind {
	case model.TargetLine:
		return t.Line
	case model.TargetRange:
		return t.StartLine
	case model.TargetSymbol:
		return t.DeclLine
	default:
		return 0
	}
}

// hashWindow hashes a 7-line window (anchor ±3) read from lines, and
// returns the first non-empty line of that window truncated to ~120 chars.
func hashWindow(lines []string, anchorLine int) (hash, preview string) {
	if anchorLine <= 0 {
		return "", ""
	}
	start := max(1, anchorLine-3)
	end := min(len(lines), anchorLine+3)
	if start > len(lines) {
		return "", ""
	}

	var window []string
	for i := start; i <= end; i++ {
		window = append(window, lines[i-1])
	}
	joined := strings.Join(window, "\n")
	sum := sha256.Sum256([]byte(joined))
	hash = hex.EncodeToString(sum[:])

	for _, l := range window {
		if trimmed := strings.TrimSpace(l); trimmed != "" {
			preview = truncate(trimmed, 120)
			break
		}
	}
	return hash, preview
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "…"
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
