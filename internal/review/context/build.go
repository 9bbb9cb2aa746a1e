package context

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/corvid-labs/mrsentry/internal/model"
	"github.com/corvid-labs/mrsentry/internal/review/deltaindex"
)

const primaryPadLines = 20

// Build reads the materialized HEAD file, cuts a numbered window around
// the target, derives allowed anchors, decides on full-file inclusion, and
// computes code facts. RAG-augmented context is attached separately by the
// caller via a Retriever (kept out of Build so this stays synchronous and
// retrieval stays swappable/mockable).
func Build(headRoot string, target model.MappedTarget, idx *deltaindex.Index) (PrimaryCtx, error) {
	path := target.Target.Path
	if path == "" {
		return PrimaryCtx{}, nil // File/Global targets carry no per-file context
	}

	raw, err := os.ReadFile(filepath.Join(headRoot, filepath.FromSlash(path)))
	if err != nil {
		return PrimaryCtx{}, fmt.Errorf("read materialized file %s: %w", path, err)
	}
	code := string(raw)
	lines := strings.Split(code, "\n")

	startLine, endLine := targetLineWindow(target.Target)
	s, e := windowBounds(startLine, endLine, len(lines), primaryPadLines)
	numbered := renderNumbered(lines, s, e)

	allowed := coarseAllowedAnchors(target.Target, path, idx, lines)

	nearTop := false
	for _, a := range allowed {
		if a.Start <= 30 {
			nearTop = true
			break
		}
	}
	mentionsImportLike := containsImportLike(numbered)

	var fullFile string
	if nearTop || mentionsImportLike {
		fullFile = code
	}

	facts := buildCodeFacts(code, path, allowed, idx)

	return PrimaryCtx{
		Path:             path,
		NumberedSnippet:  numbered,
		AllowedAnchors:   allowed,
		FullFileReadOnly: fullFile,
		CodeFacts:        facts,
	}, nil
}

// windowBounds returns an inclusive [start-pad, end+pad] window clamped to
// [1, total].
func windowBounds(start, end, total, pad int) (int, int) {
	s := start - pad
	if s < 1 {
		s = 1
	}
	e := end + pad
	top := total
	if top < 1 {
		top = 1
	}
	if e > top {
		e = top
	}
	return s, e
}

func renderNumbered(lines []string, from, to int) string {
	var b strings.Builder
	for i, l := range lines {
		lineno := i + 1
		if lineno >= from && lineno <= to {
			fmt.Fprintf(&b, "%6d | %s\n", lineno, l)
		}
	}
	return b.String()
}

func targetLineWindow(t model.TargetRef) (int, int) {
	switch t.Kind {
	case model.TargetLine:
		return t.Line, t.Line
	case model.TargetRange:
		return t.StartLine, t.EndLine
	case model.TargetSymbol:
		return t.DeclLine, t.DeclLine
	default:
		return 1, 1
	}
}

// coarseAllowedAnchors computes the anchors a drafted comment is allowed to
// cite: Line/Symbol targets expand to the enclosing body span (delta
// index, else brace-matching); Range targets keep the diff range verbatim.
func coarseAllowedAnchors(t model.TargetRef, path string, idx *deltaindex.Index, lines []string) []AnchorRange {
	switch t.Kind {
	case model.TargetLine:
		if r, ok := enclosingBodyRange(path, t.Line, idx, lines); ok {
			return []AnchorRange{r}
		}
		return []AnchorRange{{Start: t.Line, End: t.Line}}
	case model.TargetRange:
		return []AnchorRange{{Start: t.StartLine, End: t.EndLine}}
	case model.TargetSymbol:
		if r, ok := enclosingBodyRange(path, t.DeclLine, idx, lines); ok {
			return []AnchorRange{r}
		}
		return []AnchorRange{{Start: t.DeclLine, End: t.DeclLine}}
	default:
		return nil
	}
}

func enclosingBodyRange(path string, line1based int, idx *deltaindex.Index, lines []string) (AnchorRange, bool) {
	if idx != nil {
		if sym := idx.FindEnclosingByLine(path, line1based); sym != nil {
			start, end := sym.Span.StartRow+1, sym.Span.EndRow+1
			if end >= start {
				return AnchorRange{Start: start, End: end}, true
			}
		}
	}
	if start, end, ok := guessBodyByBraces(lines, line1based); ok {
		return AnchorRange{Start: start, End: end}, true
	}
	return AnchorRange{}, false
}

// guessBodyByBraces scans forward a few lines from declLine1b for the first
// '{' and matches the corresponding '}' by nesting depth.
func guessBodyByBraces(lines []string, declLine1b int) (start, end int, ok bool) {
	if declLine1b <= 0 || declLine1b > len(lines) {
		return 0, 0, false
	}

	i := declLine1b - 1
	openLine := -1
	for ; i < len(lines); i++ {
		pos := strings.IndexByte(lines[i], '{')
		if pos < 0 {
			if i >= declLine1b-1+4 {
				break
			}
			continue
		}
		openLine = i + 1
		if strings.Count(lines[i], "{") == 1 && strings.Contains(lines[i][pos+1:], "}") {
			return openLine, openLine, true
		}
		break
	}
	if openLine < 0 {
		return 0, 0, false
	}

	depth := 0
	for idx := openLine - 1; idx < len(lines); idx++ {
		for _, ch := range lines[idx] {
			switch ch {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return openLine, idx + 1, true
				}
			}
		}
	}
	return 0, 0, false
}
