package publish

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/mrsentry/internal/errs"
	"github.com/corvid-labs/mrsentry/internal/model"
	"github.com/corvid-labs/mrsentry/internal/provider"
)

type fakeClient struct {
	existing        []provider.ExistingComment
	rejectAddedSide bool
	posted          []provider.InlineComment
}

func (f *fakeClient) FetchAll(ctx context.Context, id string) (*provider.Bundle, error) { return nil, nil }
func (f *fakeClient) FetchFileRawAtRef(ctx context.Context, projectPath, path, ref string) ([]byte, error) {
	return nil, nil
}
func (f *fakeClient) ListExistingComments(ctx context.Context, id string) ([]provider.ExistingComment, error) {
	return f.existing, nil
}
func (f *fakeClient) PostInlineComments(ctx context.Context, meta provider.CRMeta, comments []provider.InlineComment) ([]provider.PostResult, error) {
	out := make([]provider.PostResult, len(comments))
	for i, c := range comments {
		if f.rejectAddedSide && c.OnAddedSide {
			out[i] = provider.PostResult{Comment: c, Err: errs.New(errs.Validation, "fake", "line-code rejected")}
			continue
		}
		f.posted = append(f.posted, c)
		out[i] = provider.PostResult{Comment: c, Posted: true}
	}
	return out, nil
}

var _ provider.Client = (*fakeClient)(nil)

func draft(path string, line int, hash string) model.DraftComment {
	return model.DraftComment{
		Target:      model.TargetRef{Kind: model.TargetLine, Path: path, Line: line},
		Path:        path,
		BodyMarkdown: "looks off",
		SnippetHash: hash,
	}
}

func TestMarkerRoundTrips(t *testing.T) {
	target := model.TargetRef{Kind: model.TargetLine, Path: "a.go", Line: 10}
	body := "some comment\n\n" + Marker(target, "abc123")

	key, hash, ok := ParseMarker(body)
	require.True(t, ok)
	assert.Equal(t, "abc123", hash)
	assert.Equal(t, KeyFor(target), key)
}

func TestRunSkipsAlreadyPublishedWithMatchingHash(t *testing.T) {
	target := model.TargetRef{Kind: model.TargetLine, Path: "a.go", Line: 10}
	client := &fakeClient{existing: []provider.ExistingComment{{Body: "old\n\n" + Marker(target, "abc1")}}}

	out, err := Run(context.Background(), client, provider.CRMeta{ID: "x"}, []model.DraftComment{draft("a.go", 10, "abc1")}, Options{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Skipped)
	assert.Equal(t, "already published", out[0].Reason)
	assert.Empty(t, client.posted)
}

func TestRunRepublishesWhenHashChanged(t *testing.T) {
	target := model.TargetRef{Kind: model.TargetLine, Path: "a.go", Line: 10}
	client := &fakeClient{existing: []provider.ExistingComment{{Body: "old\n\n" + Marker(target, "5a1e")}}}

	out, err := Run(context.Background(), client, provider.CRMeta{ID: "x"}, []model.DraftComment{draft("a.go", 10, "f7e54")}, Options{Concurrency: 2})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Posted)
	assert.Len(t, client.posted, 1)
}

func TestRunDryRunPostsNothing(t *testing.T) {
	client := &fakeClient{}
	out, err := Run(context.Background(), client, provider.CRMeta{ID: "x"}, []model.DraftComment{draft("a.go", 10, "h")}, Options{DryRun: true})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Skipped)
	assert.Equal(t, "dry_run", out[0].Reason)
	assert.Empty(t, client.posted)
}

func TestRunRetriesAlternateSideOnValidationError(t *testing.T) {
	client := &fakeClient{rejectAddedSide: true}
	out, err := Run(context.Background(), client, provider.CRMeta{ID: "x"}, []model.DraftComment{draft("a.go", 10, "h")}, Options{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Posted)
	require.Len(t, client.posted, 1)
	assert.False(t, client.posted[0].OnAddedSide)
}
