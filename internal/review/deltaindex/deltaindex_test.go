package deltaindex

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/mrsentry/internal/diffparse"
	"github.com/corvid-labs/mrsentry/internal/provider"
)

// fakeClient is a manual stub implementing provider.Client, grounded on the
// pack's fake-struct mocking style.
type fakeClient struct {
	files map[string][]byte
}

func (f *fakeClient) FetchAll(ctx context.Context, id string) (*provider.Bundle, error) {
	return nil, nil
}

func (f *fakeClient) FetchFileRawAtRef(ctx context.Context, projectPath, path, ref string) ([]byte, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, nil
	}
	return content, nil
}

func (f *fakeClient) ListExistingComments(ctx context.Context, id string) ([]provider.ExistingComment, error) {
	return nil, nil
}

func (f *fakeClient) PostInlineComments(ctx context.Context, meta provider.CRMeta, comments []provider.InlineComment) ([]provider.PostResult, error) {
	return nil, nil
}

var _ provider.Client = (*fakeClient)(nil)

// diffAddingLines builds a minimal synthetic unified diff adding len(lines)
// lines, just enough for candidatePaths to see AddedLines() non-empty.
func diffAddingLines(t *testing.T, path string, n int) provider.ChangeMeta {
	t.Helper()
	var b strings.Builder
	b.WriteString("--- a/" + path + "\n")
	b.WriteString("+++ b/" + path + "\n")
	b.WriteString("@@ -0,0 +1," + itoa(n) + " @@\n")
	for i := 0; i < n; i++ {
		b.WriteString("+x\n")
	}
	fd, err := diffparse.ParseUnifiedDiff(b.String())
	require.NoError(t, err)
	return provider.ChangeMeta{NewPath: path, Diff: fd}
}

func TestBuildMaterializesFilesAndFiltersSymbolicChunks(t *testing.T) {
	src := []byte("package main\n\nfunc Greet() string {\n\treturn \"hi\"\n}\n")
	client := &fakeClient{files: map[string][]byte{"main.go": src}}
	changes := []provider.ChangeMeta{diffAddingLines(t, "main.go", 2)}

	tmp := t.TempDir()
	idx, err := Build(context.Background(), client, "org/repo", changes, "abc123def4567890", tmp)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(tmp, "abc123def456", "main.go"))
	for _, c := range idx.Chunks {
		assert.True(t, c.Kind.IsSymbolic())
	}
	assert.NotEmpty(t, idx.ByPath["main.go"])
}

func TestBuildSkipsMissingFileAtHead(t *testing.T) {
	client := &fakeClient{files: map[string][]byte{}}
	changes := []provider.ChangeMeta{diffAddingLines(t, "gone.go", 1)}

	tmp := t.TempDir()
	idx, err := Build(context.Background(), client, "org/repo", changes, "deadbeef0000", tmp)
	require.NoError(t, err)
	assert.Empty(t, idx.Chunks)
}

func TestFindEnclosingByLinePicksSmallestContaining(t *testing.T) {
	src := []byte("package main\n\nfunc Outer() {\n\tinner()\n}\n")
	client := &fakeClient{files: map[string][]byte{"f.go": src}}
	changes := []provider.ChangeMeta{diffAddingLines(t, "f.go", 4)}

	tmp := t.TempDir()
	idx, err := Build(context.Background(), client, "org/repo", changes, "cafebabe0000", tmp)
	require.NoError(t, err)

	got := idx.FindEnclosingByLine("f.go", 4)
	require.NotNil(t, got)
	assert.LessOrEqual(t, got.Span.StartRow+1, 4)
	assert.GreaterOrEqual(t, got.Span.EndRow+1, 4)
}

func TestFindEnclosingByLineReturnsNilOutsideAnySpan(t *testing.T) {
	idx := &Index{ByPath: map[string][]int{}}
	got := idx.FindEnclosingByLine("nowhere.go", 10)
	assert.Nil(t, got)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
