package context

import (
	"regexp"
	"strings"

	"github.com/corvid-labs/mrsentry/internal/review/deltaindex"
)

const (
	codeFactsChunkSize     = 160
	codeFactsScopeFallback = 80
)

var (
	callRe   = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	writeRe  = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*[+\-*/%]?=[^=]`)
	returnRe = regexp.MustCompile(`(?i)\breturn\b([^\n;]*)`)
)

var cleanupNames = []string{"dispose", "close", "finalize", "deinit", "__del__", "Drop", "free", "cancel", "unsubscribe"}

// buildCodeFacts derives CodeFacts for the first allowed anchor: an
// enclosing scope (symbol body or a wide fallback window), split into
// fixed-size chunks, plus lightweight call/write/return/cleanup signals
// over the whole scope.
func buildCodeFacts(code, path string, allowed []AnchorRange, idx *deltaindex.Index) *CodeFacts {
	anchor := AnchorRange{Start: 1, End: 1}
	if len(allowed) > 0 {
		anchor = allowed[0]
	}

	lines := strings.Split(code, "\n")
	total := len(lines)

	scopeFrom, scopeTo := anchor.Start, anchor.End
	var enclosing *EnclosingInfo
	if idx != nil {
		if sym := idx.FindEnclosingByLine(path, anchor.Start); sym != nil {
			scopeFrom, scopeTo = sym.Span.StartRow+1, sym.Span.EndRow+1
			enclosing = &EnclosingInfo{Kind: sym.Kind, Name: sym.Symbol, StartLine: scopeFrom, EndLine: scopeTo}
		}
	}
	if enclosing == nil {
		scopeFrom, scopeTo = windowBounds(anchor.Start, anchor.End, total, codeFactsScopeFallback)
	}
	scopeFrom = max(scopeFrom, 1)
	scopeTo = max(scopeTo, scopeFrom)
	scopeLen := scopeTo - scopeFrom + 1

	enclosingSnippet := sliceByLines(lines, scopeFrom, scopeTo)

	totalChunks := (scopeLen + codeFactsChunkSize - 1) / codeFactsChunkSize
	if totalChunks < 1 {
		totalChunks = 1
	}
	anchorRel := anchor.Start - scopeFrom + 1
	if anchorRel < 1 {
		anchorRel = 1
	}
	chunkIndex := (anchorRel-1)/codeFactsChunkSize + 1

	chunkStartRel := (chunkIndex-1)*codeFactsChunkSize + 1
	chunkEndRel := min(chunkStartRel+codeFactsChunkSize-1, scopeLen)

	chunkFrom := scopeFrom + chunkStartRel - 1
	chunkTo := scopeFrom + chunkEndRel - 1
	chunkSnippet := sliceByLines(lines, chunkFrom, chunkTo)

	return &CodeFacts{
		File:             path,
		Anchor:           anchor,
		Enclosing:        enclosing,
		EnclosingSnippet: enclosingSnippet,
		Chunk: ChunkInfo{
			Index:   chunkIndex,
			Total:   totalChunks,
			From:    chunkFrom,
			To:      chunkTo,
			Snippet: chunkSnippet,
		},
		CallsTop:    topByFrequency(callRe, enclosingSnippet, 6),
		Writes:      topByFrequency(writeRe, enclosingSnippet, 6),
		ControlFlow: returnsOutline(enclosingSnippet, 6),
		CleanupLike: cleanupLikePresent(enclosingSnippet),
	}
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

func sliceByLines(lines []string, from, to int) string {
	var b strings.Builder
	for i, l := range lines {
		ln := i + 1
		if ln >= from && ln <= to {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func topByFrequency(re *regexp.Regexp, s string, k int) []string {
	freq := map[string]int{}
	var order []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		name := m[1]
		if _, ok := freq[name]; !ok {
			order = append(order, name)
		}
		freq[name]++
	}
	// stable sort by descending frequency, ties broken by first-seen order
	sorted := append([]string(nil), order...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && freq[sorted[j]] > freq[sorted[j-1]]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

func returnsOutline(s string, k int) []string {
	var out []string
	for _, m := range returnRe.FindAllStringSubmatch(s, -1) {
		tail := strings.TrimSpace(m[1])
		if tail == "" {
			out = append(out, "return")
		} else {
			out = append(out, "return "+tail)
		}
		if len(out) >= k {
			break
		}
	}
	return out
}

func cleanupLikePresent(s string) []string {
	var found []string
	for _, name := range cleanupNames {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
		if re.MatchString(s) {
			found = append(found, name)
		}
	}
	return found
}
