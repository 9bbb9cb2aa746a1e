// Package jobs queues and runs review requests on a bounded worker pool.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/corvid-labs/mrsentry/internal/review"
)

// ReviewJob runs the full review pipeline for one dispatched Request. There
// is no separate full/re-review branching: the pipeline is idempotent per
// the publish stage's marker check, so a rerun of the same id is just
// another pipeline.Run.
type ReviewJob struct {
	pipeline *review.Pipeline
	logger   *slog.Logger
}

// NewReviewJob creates a new ReviewJob with all its dependencies.
func NewReviewJob(pipeline *review.Pipeline, logger *slog.Logger) Job {
	if pipeline == nil || logger == nil {
		panic("jobs.NewReviewJob received a nil dependency")
	}
	return &ReviewJob{pipeline: pipeline, logger: logger}
}

// Run executes one review for req.ID and logs the outcome.
func (j *ReviewJob) Run(ctx context.Context, req *Request) error {
	if err := validateRequest(req); err != nil {
		j.logger.Error("review request validation failed", "error", err)
		return err
	}

	result, err := j.pipeline.Run(ctx, req.ID)
	if err != nil {
		return fmt.Errorf("review pipeline failed for %s: %w", req.ID, err)
	}

	j.logger.Info("review job completed",
		"id", req.ID,
		"targets", result.TargetCount,
		"drafts", result.DraftCount,
		"posted", len(result.Posted),
	)
	return nil
}

func validateRequest(req *Request) error {
	if req == nil {
		return errors.New("request cannot be nil")
	}
	if req.ID == "" {
		return errors.New("request id cannot be empty")
	}
	return nil
}
