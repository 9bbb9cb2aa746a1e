package drafter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/mrsentry/internal/llmrouter"
	"github.com/corvid-labs/mrsentry/internal/model"
	rcontext "github.com/corvid-labs/mrsentry/internal/review/context"
)

type stubClient struct {
	text  string
	err   error
	calls int
}

func (s *stubClient) Generate(ctx context.Context, req llmrouter.GenerateRequest) (*llmrouter.GenerateResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &llmrouter.GenerateResult{Text: s.text}, nil
}
func (s *stubClient) Embed(ctx context.Context, texts []string) ([][]float32, error) { return nil, nil }
func (s *stubClient) HealthCheck(ctx context.Context) error                          { return nil }

var _ llmrouter.Client = (*stubClient)(nil)

func lineTarget(path string, line int) model.MappedTarget {
	return model.MappedTarget{
		Target:      model.TargetRef{Kind: model.TargetLine, Path: path, Line: line},
		SnippetHash: "deadbeef",
		Preview:     "x := 1",
	}
}

func disabledPolicy() llmrouter.EscalationPolicy {
	return llmrouter.EscalationPolicy{Enabled: false}
}

func TestParseDraftResponseExtractsFields(t *testing.T) {
	raw := "### Severity\nHigh\n### Confidence\n0.91\n### Comment\nThis leaks a file handle.\n\nConsider closing it.\n"
	result, err := parseDraftResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, model.SeverityHigh, result.severity)
	assert.InDelta(t, 0.91, result.confidence, 0.001)
	assert.Contains(t, result.body, "leaks a file handle")
	assert.False(t, result.noIssue)
}

func TestParseDraftResponseDetectsNoIssue(t *testing.T) {
	raw := "### Severity\nLow\n### Confidence\n0.8\n### Comment\nNo issues found.\n"
	result, err := parseDraftResponse(raw)
	require.NoError(t, err)
	assert.True(t, result.noIssue)
}

func TestParseDraftResponseErrorsWithoutCommentSection(t *testing.T) {
	_, err := parseDraftResponse("### Severity\nLow\n### Confidence\n0.8\n")
	assert.Error(t, err)
}

func TestGenerateReturnsNilWhenNoIssueFound(t *testing.T) {
	fast := &stubClient{text: "### Severity\nLow\n### Confidence\n0.9\n### Comment\nNo issues found.\n"}
	profiles := llmrouter.Profiles{Fast: fast}
	used := 0

	draft, err := Generate(context.Background(), profiles, disabledPolicy(), lineTarget("a.go", 10), rcontext.PrimaryCtx{Path: "a.go", NumberedSnippet: "     1 | x := 1\n"}, nil, &used)
	require.NoError(t, err)
	assert.Nil(t, draft)
	assert.Equal(t, 1, fast.calls)
}

func TestGenerateBuildsDraftFromFastResponse(t *testing.T) {
	fast := &stubClient{text: "### Severity\nMedium\n### Confidence\n0.95\n### Comment\nRename this variable for clarity.\n"}
	profiles := llmrouter.Profiles{Fast: fast}
	used := 0

	draft, err := Generate(context.Background(), profiles, disabledPolicy(), lineTarget("a.go", 10), rcontext.PrimaryCtx{Path: "a.go"}, nil, &used)
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, model.SeverityMedium, draft.Severity)
	assert.Equal(t, "deadbeef", draft.SnippetHash)
	assert.False(t, draft.HasPatch)
	assert.Equal(t, 0, used)
}

func TestGenerateEscalatesOnLowConfidenceFastResult(t *testing.T) {
	fast := &stubClient{text: "### Severity\nHigh\n### Confidence\n0.1\n### Comment\nSomething looks wrong here.\n"}
	slow := &stubClient{text: "### Severity\nHigh\n### Confidence\n0.9\n### Comment\n```diff\n-old\n+new\n```\n"}
	profiles := llmrouter.Profiles{Fast: fast, Slow: slow}
	policy := llmrouter.EscalationPolicy{Enabled: true, MaxEscalations: 2, MinSeverity: llmrouter.SeverityLow, MinConfidence: 0.6, LongPromptTokens: 10000}
	used := 0

	target := model.MappedTarget{
		Target:      model.TargetRef{Kind: model.TargetSymbol, Path: "a.go", DeclLine: 10},
		Evidence:    model.Evidence{TouchesDecl: true},
		SnippetHash: "h",
	}

	draft, err := Generate(context.Background(), profiles, policy, target, rcontext.PrimaryCtx{Path: "a.go"}, nil, &used)
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, 1, fast.calls)
	assert.Equal(t, 1, slow.calls)
	assert.Equal(t, 1, used)
	assert.True(t, draft.HasPatch)
}
