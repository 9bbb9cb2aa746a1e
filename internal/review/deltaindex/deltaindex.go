// Package deltaindex builds the per-MR symbol index at HEAD: it
// materializes changed files into a HEAD-scoped temp root, extracts
// symbolic chunks, and exposes by-path/by-name/by-id lookups.
package deltaindex

import (
	"context"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/corvid-labs/mrsentry/internal/errs"
	"github.com/corvid-labs/mrsentry/internal/extractor"
	"github.com/corvid-labs/mrsentry/internal/model"
	"github.com/corvid-labs/mrsentry/internal/provider"
)

// Index holds the symbolic chunks extracted from every changed file at
// HEAD, plus by-path, by-name, and by-id lookup maps over them.
type Index struct {
	TempRoot string
	Chunks   []model.CodeChunk
	ByPath   map[string][]int
	ByName   map[string][]int
	ByID     map[string]int
}

// Build materializes every changed file's HEAD content under tempRoot and
// extracts symbolic chunks from it. client fetches raw bytes at headSHA;
// tempRoot must already exist and be scoped to this run.
func Build(ctx context.Context, client provider.Client, projectPath string, changes []provider.ChangeMeta, headSHA, tempRoot string) (*Index, error) {
	headDir := filepath.Join(tempRoot, shortSHA(headSHA))
	if err := os.MkdirAll(headDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.Storage, "review.deltaindex", "create head temp root", err)
	}

	idx := &Index{
		TempRoot: headDir,
		ByPath:   map[string][]int{},
		ByName:   map[string][]int{},
		ByID:     map[string]int{},
	}

	for _, change := range candidatePaths(changes) {
		content, err := client.FetchFileRawAtRef(ctx, projectPath, change.NewPath, headSHA)
		if err != nil {
			return nil, errs.Wrap(errs.ProviderHTTP, "review.deltaindex", "fetch file at head", err)
		}
		if content == nil {
			continue // missing at head -> skip silently
		}
		if !utf8.Valid(content) {
			continue // non-UTF-8 -> skip
		}

		localPath := filepath.Join(headDir, filepath.FromSlash(change.NewPath))
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return nil, errs.Wrap(errs.Storage, "review.deltaindex", "create file directory", err)
		}
		if err := os.WriteFile(localPath, content, 0o644); err != nil {
			return nil, errs.Wrap(errs.Storage, "review.deltaindex", "materialize file", err)
		}

		chunks, err := extractor.ExtractFile(change.NewPath, content)
		if err != nil {
			continue // per-file extraction failure: local recovery
		}
		for _, c := range chunks {
			if !c.Kind.IsSymbolic() {
				continue
			}
			i := len(idx.Chunks)
			idx.Chunks = append(idx.Chunks, c)
			idx.ByPath[c.File] = append(idx.ByPath[c.File], i)
			idx.ByName[c.Symbol] = append(idx.ByName[c.Symbol], i)
			idx.ByID[c.ID] = i
		}
	}
	return idx, nil
}

// candidatePaths filters changes to text, non-deleted files with at least
// one added line.
func candidatePaths(changes []provider.ChangeMeta) []provider.ChangeMeta {
	var out []provider.ChangeMeta
	for _, c := range changes {
		if c.IsBinary || c.IsDeleted {
			continue
		}
		if c.Diff == nil || len(c.Diff.AddedLines()) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FindEnclosingByLine returns the smallest symbol in path whose body-line
// span contains line (1-based).
func (idx *Index) FindEnclosingByLine(path string, line int) *model.CodeChunk {
	var best *model.CodeChunk
	for _, i := range idx.ByPath[path] {
		c := &idx.Chunks[i]
		startLine, endLine := c.Span.StartRow+1, c.Span.EndRow+1
		if line < startLine || line > endLine {
			continue
		}
		if best == nil || (c.Span.EndByte-c.Span.StartByte) < (best.Span.EndByte-best.Span.StartByte) {
			best = c
		}
	}
	return best
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
