package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/mrsentry/internal/diffparse"
	"github.com/corvid-labs/mrsentry/internal/model"
	"github.com/corvid-labs/mrsentry/internal/provider"
	"github.com/corvid-labs/mrsentry/internal/review/deltaindex"
)

func parseDiff(t *testing.T, text string) *diffparse.FileDiff {
	t.Helper()
	fd, err := diffparse.ParseUnifiedDiff(text)
	require.NoError(t, err)
	return fd
}

func indexWithFunc(path, name string, startRow, endRow int) *deltaindex.Index {
	chunk := model.CodeChunk{
		ID:     "sym-1",
		File:   path,
		Symbol: name,
		Kind:   model.KindFunction,
		Span:   model.Span{StartRow: startRow, EndRow: endRow},
	}
	return &deltaindex.Index{
		Chunks: []model.CodeChunk{chunk},
		ByPath: map[string][]int{path: {0}},
		ByName: map[string][]int{name: {0}},
		ByID:   map[string]int{"sym-1": 0},
	}
}

func TestMapClassifiesSymbolTargetOnDeclLine(t *testing.T) {
	diffText := "--- a/main.go\n+++ b/main.go\n@@ -1,2 +1,3 @@\n context\n+func handler() {\n+    return\n }\n"
	fd := parseDiff(t, diffText)
	changes := []provider.ChangeMeta{{NewPath: "main.go", Diff: fd}}

	idx := indexWithFunc("main.go", "handler", 1, 3) // 0-based: decl line 2 (1-based)

	readLines := func(path string) ([]string, error) {
		return []string{"package main", "", "func handler() {", "    return", "}"}, nil
	}

	targets := Map(changes, idx, readLines)
	require.Len(t, targets, 1)
	assert.Equal(t, model.TargetSymbol, targets[0].Target.Kind)
	assert.Equal(t, "sym-1", targets[0].Target.SymbolID)
	assert.True(t, targets[0].Evidence.TouchesDecl)
	assert.NotEmpty(t, targets[0].SnippetHash)
}

func TestMapClassifiesRangeWhenNoSymbolOwner(t *testing.T) {
	diffText := "--- a/notes.txt\n+++ b/notes.txt\n@@ -1,1 +1,3 @@\n line1\n+line2\n+line3\n"
	fd := parseDiff(t, diffText)
	changes := []provider.ChangeMeta{{NewPath: "notes.txt", Diff: fd}}

	idx := &deltaindex.Index{ByPath: map[string][]int{}, ByName: map[string][]int{}, ByID: map[string]int{}}
	readLines := func(path string) ([]string, error) {
		return []string{"line1", "line2", "line3"}, nil
	}

	targets := Map(changes, idx, readLines)
	require.Len(t, targets, 1)
	assert.Equal(t, model.TargetRange, targets[0].Target.Kind)
	assert.Equal(t, 2, targets[0].Target.StartLine)
	assert.Equal(t, 3, targets[0].Target.EndLine)
}

func TestMapClassifiesLineWhenSingleAddedLine(t *testing.T) {
	diffText := "--- a/notes.txt\n+++ b/notes.txt\n@@ -1,1 +1,2 @@\n line1\n+line2\n"
	fd := parseDiff(t, diffText)
	changes := []provider.ChangeMeta{{NewPath: "notes.txt", Diff: fd}}

	idx := &deltaindex.Index{ByPath: map[string][]int{}, ByName: map[string][]int{}, ByID: map[string]int{}}
	readLines := func(path string) ([]string, error) {
		return []string{"line1", "line2"}, nil
	}

	targets := Map(changes, idx, readLines)
	require.Len(t, targets, 1)
	assert.Equal(t, model.TargetLine, targets[0].Target.Kind)
	assert.Equal(t, 2, targets[0].Target.Line)
}

func TestMapMergesClustersWithinGap(t *testing.T) {
	diffText := "--- a/notes.txt\n+++ b/notes.txt\n@@ -1,3 +1,6 @@\n line1\n+added2\n context\n+added4\n context\n+added6\n"
	fd := parseDiff(t, diffText)
	changes := []provider.ChangeMeta{{NewPath: "notes.txt", Diff: fd}}

	idx := &deltaindex.Index{ByPath: map[string][]int{}, ByName: map[string][]int{}, ByID: map[string]int{}}
	readLines := func(path string) ([]string, error) {
		return []string{"line1", "added2", "context", "added4", "context", "added6"}, nil
	}

	targets := Map(changes, idx, readLines)
	require.Len(t, targets, 1, "lines 2, 4 and 6 are each within gap<=2 of the previous added line and should merge into one cluster")
	assert.Equal(t, model.TargetRange, targets[0].Target.Kind)
	assert.Equal(t, 2, targets[0].Target.StartLine)
	assert.Equal(t, 6, targets[0].Target.EndLine)
}

func TestMapSortsByPathThenStartLine(t *testing.T) {
	diffB := parseDiff(t, "--- a/b.txt\n+++ b/b.txt\n@@ -1,1 +1,2 @@\n x\n+y\n")
	diffA := parseDiff(t, "--- a/a.txt\n+++ b/a.txt\n@@ -1,1 +1,2 @@\n x\n+y\n")
	changes := []provider.ChangeMeta{
		{NewPath: "b.txt", Diff: diffB},
		{NewPath: "a.txt", Diff: diffA},
	}
	idx := &deltaindex.Index{ByPath: map[string][]int{}, ByName: map[string][]int{}, ByID: map[string]int{}}
	readLines := func(path string) ([]string, error) { return []string{"x", "y"}, nil }

	targets := Map(changes, idx, readLines)
	require.Len(t, targets, 2)
	assert.Equal(t, "a.txt", targets[0].Target.Path)
	assert.Equal(t, "b.txt", targets[1].Target.Path)
}
