package context

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/mrsentry/internal/model"
	"github.com/corvid-labs/mrsentry/internal/review/deltaindex"
)

func writeFile(t *testing.T, root, path, content string) {
	t.Helper()
	full := filepath.Join(root, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestBuildRendersNumberedWindowAndFullFileNearTop(t *testing.T) {
	root := t.TempDir()
	content := "import \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n"
	writeFile(t, root, "main.go", content)

	target := model.MappedTarget{Target: model.TargetRef{Kind: model.TargetLine, Path: "main.go", Line: 4}}
	idx := &deltaindex.Index{ByPath: map[string][]int{}}

	pctx, err := Build(root, target, idx)
	require.NoError(t, err)
	assert.Contains(t, pctx.NumberedSnippet, "4 | \tfmt.Println")
	assert.NotEmpty(t, pctx.FullFileReadOnly, "anchor near top or import-like snippet should include full file")
}

func TestBuildExpandsLineTargetToEnclosingSymbolFromIndex(t *testing.T) {
	root := t.TempDir()
	content := "package main\n\nfunc Handler() {\n\tdoWork()\n\treturn\n}\n"
	writeFile(t, root, "h.go", content)

	idx := &deltaindex.Index{
		Chunks: []model.CodeChunk{{ID: "s1", File: "h.go", Symbol: "Handler", Kind: model.KindFunction, Span: model.Span{StartRow: 2, EndRow: 5}}},
		ByPath: map[string][]int{"h.go": {0}},
	}
	target := model.MappedTarget{Target: model.TargetRef{Kind: model.TargetLine, Path: "h.go", Line: 4}}

	pctx, err := Build(root, target, idx)
	require.NoError(t, err)
	require.Len(t, pctx.AllowedAnchors, 1)
	assert.Equal(t, 3, pctx.AllowedAnchors[0].Start)
	assert.Equal(t, 6, pctx.AllowedAnchors[0].End)
	require.NotNil(t, pctx.CodeFacts)
	assert.Equal(t, "Handler", pctx.CodeFacts.Enclosing.Name)
	assert.Contains(t, pctx.CodeFacts.CallsTop, "doWork")
	assert.Contains(t, pctx.CodeFacts.ControlFlow, "return")
}

func TestBuildFallsBackToBraceMatchingWithoutIndex(t *testing.T) {
	root := t.TempDir()
	content := "package main\n\nfunc Handler() {\n\tdoWork()\n}\n"
	writeFile(t, root, "h.go", content)

	idx := &deltaindex.Index{ByPath: map[string][]int{}}
	target := model.MappedTarget{Target: model.TargetRef{Kind: model.TargetLine, Path: "h.go", Line: 3}}

	pctx, err := Build(root, target, idx)
	require.NoError(t, err)
	require.Len(t, pctx.AllowedAnchors, 1)
	assert.Equal(t, 3, pctx.AllowedAnchors[0].Start)
	assert.Equal(t, 5, pctx.AllowedAnchors[0].End)
}

func TestBuildKeepsRangeTargetVerbatim(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.txt", "a\nb\nc\nd\ne\n")

	idx := &deltaindex.Index{ByPath: map[string][]int{}}
	target := model.MappedTarget{Target: model.TargetRef{Kind: model.TargetRange, Path: "notes.txt", StartLine: 2, EndLine: 4}}

	pctx, err := Build(root, target, idx)
	require.NoError(t, err)
	require.Len(t, pctx.AllowedAnchors, 1)
	assert.Equal(t, AnchorRange{Start: 2, End: 4}, pctx.AllowedAnchors[0])
}

func TestExtractImportsBlockStopsAtFirstNonImportLine(t *testing.T) {
	code := "import \"fmt\"\nimport \"os\"\n\nfunc main() {}\n"
	block := ExtractImportsBlock(code)
	assert.Contains(t, block, "import \"fmt\"")
	assert.Contains(t, block, "import \"os\"")
	assert.NotContains(t, block, "func main")
}

func TestAstFactsForListsSiblingsWithinEnclosing(t *testing.T) {
	idx := &deltaindex.Index{
		Chunks: []model.CodeChunk{
			{ID: "outer", File: "f.go", Symbol: "Outer", Kind: model.KindClass, Span: model.Span{StartByte: 0, EndByte: 200, StartRow: 0, EndRow: 10}},
			{ID: "inner", File: "f.go", Symbol: "Inner", Kind: model.KindMethod, Span: model.Span{StartByte: 20, EndByte: 60, StartRow: 2, EndRow: 4}},
		},
		ByPath: map[string][]int{"f.go": {0, 1}},
	}
	facts := astFactsFor(idx, "f.go", 3)
	assert.Contains(t, facts, "enclosing: method Inner")
	assert.Contains(t, facts, "file: f.go")
}
