package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/mrsentry/internal/llmrouter"
	"github.com/corvid-labs/mrsentry/internal/model"
)

type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Generate(ctx context.Context, req llmrouter.GenerateRequest) (*llmrouter.GenerateResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llmrouter.GenerateResult{Text: f.response}, nil
}
func (f *fakeLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) { return nil, nil }
func (f *fakeLLM) HealthCheck(ctx context.Context) error                         { return nil }

var _ llmrouter.Client = (*fakeLLM)(nil)

func lineTarget(path string, line int) model.TargetRef {
	return model.TargetRef{Kind: model.TargetLine, Path: path, Line: line}
}

func TestSimHashDropsNearIdenticalBodies(t *testing.T) {
	drafts := []model.DraftComment{
		{Path: "a.go", Target: lineTarget("a.go", 1), BodyMarkdown: "This function never closes the file handle after use, causing a leak."},
		{Path: "a.go", Target: lineTarget("a.go", 1), BodyMarkdown: "this function never closes the file handle after use -- causing a leak"},
	}
	kept := dropNearIdentical(drafts)
	assert.Len(t, kept, 1)
}

func TestSimHashKeepsDistinctBodies(t *testing.T) {
	drafts := []model.DraftComment{
		{BodyMarkdown: "Missing nil check before dereferencing the pointer argument."},
		{BodyMarkdown: "The loop bound is off by one and will skip the last element."},
	}
	kept := dropNearIdentical(drafts)
	assert.Len(t, kept, 2)
}

func TestClusterByProximityMergesCloseAnchors(t *testing.T) {
	drafts := []model.DraftComment{
		{Path: "a.go", Target: lineTarget("a.go", 10)},
		{Path: "a.go", Target: lineTarget("a.go", 15)},
		{Path: "a.go", Target: lineTarget("a.go", 40)},
	}
	clusters := clusterByProximity(drafts)
	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0], 2)
	assert.Len(t, clusters[1], 1)
}

func TestClassifyThemeMatchesKeywords(t *testing.T) {
	assert.Equal(t, ThemeCleanup, classifyTheme("Remember to dispose of the controller."))
	assert.Equal(t, ThemeRouting, classifyTheme("This route handler never validates the request."))
	assert.Equal(t, ThemeOther, classifyTheme("Consider renaming this variable."))
}

func TestCollapseUsesLLMWhenBudgetAvailable(t *testing.T) {
	drafts := []model.DraftComment{
		{BodyMarkdown: "first candidate", Severity: model.SeverityLow},
		{BodyMarkdown: "second candidate", Severity: model.SeverityHigh},
	}
	llm := &fakeLLM{response: "1"}
	budget := NewBudget(1)

	winner, err := collapse(context.Background(), drafts, llm, budget)
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, "second candidate", winner.BodyMarkdown)
	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, 0, budget.Remaining())
}

func TestCollapseFallsBackToHeuristicWithoutBudget(t *testing.T) {
	drafts := []model.DraftComment{
		{BodyMarkdown: "low severity candidate", Severity: model.SeverityLow},
		{BodyMarkdown: "high severity candidate", Severity: model.SeverityHigh},
	}
	budget := NewBudget(0)

	winner, err := collapse(context.Background(), drafts, &fakeLLM{}, budget)
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, "high severity candidate", winner.BodyMarkdown)
}

func TestHeuristicWinnerPrefersPatchThenLongerBody(t *testing.T) {
	drafts := []model.DraftComment{
		{BodyMarkdown: "short", Severity: model.SeverityMedium, HasPatch: false},
		{BodyMarkdown: "a much longer explanation with a patch", Severity: model.SeverityMedium, HasPatch: true},
	}
	winner := heuristicWinner(drafts)
	assert.True(t, winner.HasPatch)
}

func TestRunProducesOneDraftPerThemeCluster(t *testing.T) {
	drafts := []model.DraftComment{
		{Path: "a.go", Target: lineTarget("a.go", 10), BodyMarkdown: "Dispose the stream controller here.", Severity: model.SeverityMedium},
		{Path: "a.go", Target: lineTarget("a.go", 11), BodyMarkdown: "Remember to dispose of the stream controller after use.", Severity: model.SeverityMedium},
		{Path: "a.go", Target: lineTarget("a.go", 200), BodyMarkdown: "This route handler is missing auth middleware.", Severity: model.SeverityHigh},
	}
	out, err := Run(context.Background(), drafts, nil, nil)
	require.NoError(t, err)
	assert.Len(t, out, 2, "the two nearby cleanup drafts should collapse to one, the distant routing draft stays separate")
}
