package rag

import (
	"bufio"
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/corvid-labs/mrsentry/internal/model"
)

// CodeSearchResult is one reconstructed contiguous block of source, the
// stitcher's output.
type CodeSearchResult struct {
	File      string
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
	Content   string
	Score     float64
	Symbol    string
	SymbolPath string
}

// StitchChunks groups hits by file, resolves each hit to its CodeChunk by
// streaming chunksJSONL once, merges overlapping or adjacent (<=1 line gap)
// spans per file keeping the highest-scoring piece's metadata, then slices
// the materialized file's lines to produce CodeSearchResults sorted by
// score. limit <= 0 means unbounded.
func StitchChunks(chunksJSONL io.Reader, hits []Hit, readFile func(path string) ([]string, error), limit int) ([]CodeSearchResult, error) {
	byID, err := loadChunksByID(chunksJSONL, hitIDSet(hits))
	if err != nil {
		return nil, err
	}

	type scoredChunk struct {
		chunk model.CodeChunk
		score float64
	}
	byFile := map[string][]scoredChunk{}
	for _, h := range hits {
		c, ok := byID[h.ID]
		if !ok {
			continue
		}
		byFile[c.File] = append(byFile[c.File], scoredChunk{chunk: c, score: h.Score})
	}

	var results []CodeSearchResult
	for file, entries := range byFile {
		sort.Slice(entries, func(i, j int) bool { return entries[i].chunk.Span.StartRow < entries[j].chunk.Span.StartRow })

		lines, err := readFile(file)
		if err != nil {
			continue
		}

		type block struct {
			startRow, endRow int
			best             scoredChunk
		}
		var blocks []block
		for _, e := range entries {
			startRow, endRow := e.chunk.Span.StartRow, e.chunk.Span.EndRow
			if len(blocks) > 0 {
				last := &blocks[len(blocks)-1]
				if startRow <= last.endRow+1 {
					if endRow > last.endRow {
						last.endRow = endRow
					}
					if e.score > last.best.score {
						last.best = e
					}
					continue
				}
			}
			blocks = append(blocks, block{startRow: startRow, endRow: endRow, best: e})
		}

		for _, b := range blocks {
			startLine, endLine := b.startRow+1, b.endRow+1
			if startLine < 1 {
				startLine = 1
			}
			if endLine > len(lines) {
				endLine = len(lines)
			}
			if endLine < startLine {
				continue
			}
			results = append(results, CodeSearchResult{
				File:       file,
				StartLine:  startLine,
				EndLine:    endLine,
				Content:    strings.Join(lines[startLine-1:endLine], "\n"),
				Score:      b.best.score,
				Symbol:     b.best.chunk.Symbol,
				SymbolPath: b.best.chunk.SymbolPath,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func hitIDSet(hits []Hit) map[string]bool {
	set := make(map[string]bool, len(hits))
	for _, h := range hits {
		set[h.ID] = true
	}
	return set
}

func loadChunksByID(r io.Reader, want map[string]bool) (map[string]model.CodeChunk, error) {
	out := make(map[string]model.CodeChunk, len(want))
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c model.CodeChunk
		if err := json.Unmarshal(line, &c); err != nil {
			continue
		}
		if want[c.ID] {
			out[c.ID] = c
			if len(out) == len(want) {
				break
			}
		}
	}
	return out, scanner.Err()
}
