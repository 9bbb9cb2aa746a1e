package review

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/mrsentry/internal/llmrouter"
	"github.com/corvid-labs/mrsentry/internal/provider"
)

type fakeProviderClient struct {
	bundle         *provider.Bundle
	fileAtHead     []byte
	repoConfigYAML []byte
}

func (f *fakeProviderClient) FetchAll(ctx context.Context, id string) (*provider.Bundle, error) {
	return f.bundle, nil
}
func (f *fakeProviderClient) FetchFileRawAtRef(ctx context.Context, projectPath, path, ref string) ([]byte, error) {
	if path == ".mrsentry.yml" {
		return f.repoConfigYAML, nil
	}
	return f.fileAtHead, nil
}
func (f *fakeProviderClient) ListExistingComments(ctx context.Context, id string) ([]provider.ExistingComment, error) {
	return nil, nil
}
func (f *fakeProviderClient) PostInlineComments(ctx context.Context, meta provider.CRMeta, comments []provider.InlineComment) ([]provider.PostResult, error) {
	out := make([]provider.PostResult, len(comments))
	for i, c := range comments {
		out[i] = provider.PostResult{Comment: c, Posted: true}
	}
	return out, nil
}

var _ provider.Client = (*fakeProviderClient)(nil)

type fakeGenClient struct {
	text string
}

func (f *fakeGenClient) Generate(ctx context.Context, req llmrouter.GenerateRequest) (*llmrouter.GenerateResult, error) {
	return &llmrouter.GenerateResult{Text: f.text}, nil
}
func (f *fakeGenClient) Embed(ctx context.Context, texts []string) ([][]float32, error) { return nil, nil }
func (f *fakeGenClient) HealthCheck(ctx context.Context) error                         { return nil }

var _ llmrouter.Client = (*fakeGenClient)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipelineRunEndToEnd(t *testing.T) {
	fileContent := strings.Join([]string{
		"line one",
		"line two",
		"line three",
		"line four",
		"renamed the helper function here",
		"line six",
	}, "\n")

	diff := strings.Join([]string{
		"--- a/notes.go",
		"+++ b/notes.go",
		"@@ -1,4 +1,6 @@",
		" line one",
		" line two",
		" line three",
		" line four",
		"+renamed the helper function here",
		"+line six",
	}, "\n")

	client := &fakeProviderClient{
		bundle: &provider.Bundle{
			Meta: provider.CRMeta{
				ID:          "x",
				ProjectPath: "acme/widgets",
				DiffRefs:    provider.DiffRefs{HeadSHA: "abc123abc123"},
			},
			Changes: []provider.ChangeMeta{
				{OldPath: "notes.go", NewPath: "notes.go", RawUnidiff: diff},
			},
		},
		fileAtHead: []byte(fileContent),
	}

	gen := &fakeGenClient{text: "### Severity\nMedium\n### Confidence\n0.9\n### Comment\nConsider a clearer name for this helper.\n"}

	p := NewPipeline(client, llmrouter.Profiles{Fast: gen}, llmrouter.EscalationPolicy{Enabled: false}, discardLogger())

	result, err := p.Run(context.Background(), "x")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.TargetCount)
	assert.Equal(t, 1, result.DraftCount)
	require.Len(t, result.Posted, 1)
	assert.True(t, result.Posted[0].Posted)
}

func TestPipelineRunHonorsRepoConfigExcludeDirs(t *testing.T) {
	fileContent := strings.Join([]string{
		"line one",
		"line two",
		"line three",
		"line four",
		"renamed the helper function here",
		"line six",
	}, "\n")

	diff := strings.Join([]string{
		"--- a/vendor/notes.go",
		"+++ b/vendor/notes.go",
		"@@ -1,4 +1,6 @@",
		" line one",
		" line two",
		" line three",
		" line four",
		"+renamed the helper function here",
		"+line six",
	}, "\n")

	client := &fakeProviderClient{
		bundle: &provider.Bundle{
			Meta: provider.CRMeta{
				ID:          "x",
				ProjectPath: "acme/widgets",
				DiffRefs:    provider.DiffRefs{HeadSHA: "abc123abc123"},
			},
			Changes: []provider.ChangeMeta{
				{OldPath: "vendor/notes.go", NewPath: "vendor/notes.go", RawUnidiff: diff},
			},
		},
		fileAtHead:     []byte(fileContent),
		repoConfigYAML: []byte("exclude_dirs:\n  - vendor\n"),
	}

	gen := &fakeGenClient{text: "### Severity\nMedium\n### Confidence\n0.9\n### Comment\nConsider a clearer name for this helper.\n"}
	p := NewPipeline(client, llmrouter.Profiles{Fast: gen}, llmrouter.EscalationPolicy{Enabled: false}, discardLogger())

	result, err := p.Run(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 0, result.TargetCount)
	assert.Equal(t, 0, result.DraftCount)
}

func TestPipelineRunSkipsWhenModelFindsNoIssue(t *testing.T) {
	fileContent := "a\nb\nc\nd\ne\nf\n"
	diff := strings.Join([]string{
		"--- a/notes.go",
		"+++ b/notes.go",
		"@@ -1,2 +1,3 @@",
		" a",
		" b",
		"+c",
	}, "\n")

	client := &fakeProviderClient{
		bundle: &provider.Bundle{
			Meta: provider.CRMeta{
				ID:          "x",
				ProjectPath: "acme/widgets",
				DiffRefs:    provider.DiffRefs{HeadSHA: "abc123abc123"},
			},
			Changes: []provider.ChangeMeta{
				{OldPath: "notes.go", NewPath: "notes.go", RawUnidiff: diff},
			},
		},
		fileAtHead: []byte(fileContent),
	}

	gen := &fakeGenClient{text: "### Severity\nLow\n### Confidence\n0.9\n### Comment\nNo issues found.\n"}
	p := NewPipeline(client, llmrouter.Profiles{Fast: gen}, llmrouter.EscalationPolicy{Enabled: false}, discardLogger())

	result, err := p.Run(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 0, result.DraftCount)
	assert.Empty(t, result.Posted)
}
