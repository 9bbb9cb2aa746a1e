package publish

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/corvid-labs/mrsentry/internal/errs"
	"github.com/corvid-labs/mrsentry/internal/model"
	"github.com/corvid-labs/mrsentry/internal/provider"
)

// Options configures one publish run.
type Options struct {
	DryRun      bool
	Concurrency int // <=0 defaults to 4
}

func (o Options) concurrency() int64 {
	if o.Concurrency <= 0 {
		return 4
	}
	return int64(o.Concurrency)
}

// LoadExistingMarkers fetches already-posted comments and extracts their
// idempotency markers, keyed by Key -> snippet hash.
func LoadExistingMarkers(ctx context.Context, client provider.Client, id string) (map[Key]string, error) {
	comments, err := client.ListExistingComments(ctx, id)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderHTTP, "review.publish", "list existing comments", err)
	}
	out := map[Key]string{}
	for _, c := range comments {
		if key, hash, ok := ParseMarker(c.Body); ok {
			out[key] = hash
		}
	}
	return out, nil
}

// Run publishes drafts not already present (by marker key+hash), bounded
// by Options.Concurrency, retrying on the alternate diff side when the
// provider rejects a line-code validation, and emitting no HTTP writes in
// dry-run mode.
func Run(ctx context.Context, client provider.Client, meta provider.CRMeta, drafts []model.DraftComment, opts Options) ([]provider.PostResult, error) {
	existing, err := LoadExistingMarkers(ctx, client, meta.ID)
	if err != nil {
		return nil, err
	}

	var pending []model.DraftComment
	results := make([]provider.PostResult, 0, len(drafts))
	for _, d := range drafts {
		key := KeyFor(d.Target)
		if hash, ok := existing[key]; ok && hash == d.SnippetHash {
			results = append(results, provider.PostResult{
				Comment: toInlineComment(d),
				Skipped: true,
				Reason:  "already published",
			})
			continue
		}
		pending = append(pending, d)
	}

	if opts.DryRun {
		for _, d := range pending {
			results = append(results, provider.PostResult{Comment: toInlineComment(d), Skipped: true, Reason: "dry_run"})
		}
		return results, nil
	}

	sem := semaphore.NewWeighted(opts.concurrency())
	resultsCh := make(chan provider.PostResult, len(pending))

	for _, d := range pending {
		d := d
		if err := sem.Acquire(ctx, 1); err != nil {
			resultsCh <- provider.PostResult{Comment: toInlineComment(d), Err: err}
			continue
		}
		go func() {
			defer sem.Release(1)
			resultsCh <- publishOne(ctx, client, meta, d)
		}()
	}
	_ = sem.Acquire(ctx, opts.concurrency()) // barrier: wait for every goroutine to release
	close(resultsCh)

	for r := range resultsCh {
		results = append(results, r)
	}
	return results, nil
}

// publishOne posts a single comment, retrying on the alternate side once
// if the provider reports a line-code validation failure.
func publishOne(ctx context.Context, client provider.Client, meta provider.CRMeta, d model.DraftComment) provider.PostResult {
	comment := toInlineComment(d)

	results, err := client.PostInlineComments(ctx, meta, []provider.InlineComment{comment})
	if err != nil {
		return provider.PostResult{Comment: comment, Err: err}
	}
	result := results[0]
	if result.Posted || !isValidationErr(result.Err) {
		return result
	}

	alternate := comment
	alternate.OnAddedSide = !comment.OnAddedSide
	retryResults, err := client.PostInlineComments(ctx, meta, []provider.InlineComment{alternate})
	if err != nil || len(retryResults) == 0 {
		return result
	}
	return retryResults[0]
}

func isValidationErr(err error) bool {
	var e *errs.Error
	if err == nil {
		return false
	}
	if asErr, ok := err.(*errs.Error); ok {
		e = asErr
	}
	return e != nil && e.Kind == errs.Validation
}

func toInlineComment(d model.DraftComment) provider.InlineComment {
	c := provider.InlineComment{
		Path: d.Target.Path,
		Body: d.BodyMarkdown + "\n\n" + Marker(d.Target, d.SnippetHash),
	}
	line := d.Target.AnchorLine()
	c.OnAddedSide = true
	c.NewLine = line
	return c
}
