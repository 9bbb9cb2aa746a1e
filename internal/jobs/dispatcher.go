// Package jobs queues and runs review requests on a bounded worker pool.
// A Request carries only a provider-neutral change-request id, so the same
// dispatcher serves GitHub, GitLab, and Bitbucket alike.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Request identifies one change request to review.
type Request struct {
	ID          string // provider-specific id, e.g. "owner/repo#123"
	ProjectPath string
	Commenter   string
}

// Job is a single, executable unit of work triggered by a Request.
type Job interface {
	Run(ctx context.Context, req *Request) error
}

// Dispatcher accepts Requests and queues them for background processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *Request) error
	Stop()
}

// dispatcher manages a pool of worker goroutines processing review requests.
type dispatcher struct {
	reviewJob  Job            // Job implementation executed by each worker.
	jobQueue   chan *Request  // Queue of incoming review requests.
	maxWorkers int            // Number of concurrent workers.
	wg         sync.WaitGroup // Tracks active workers for graceful shutdown.
	logger     *slog.Logger   // Logger instance for the dispatcher.
}

// NewDispatcher initializes a dispatcher with a worker pool.
// If maxWorkers is 0 or negative, it defaults to 1.
func NewDispatcher(reviewJob Job, maxWorkers int, logger *slog.Logger) Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	d := &dispatcher{
		reviewJob:  reviewJob,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan *Request, 100),
		logger:     logger,
	}
	d.startWorkers()
	return d
}

// startWorkers launches maxWorkers goroutines to process jobs from the queue.
func (d *dispatcher) startWorkers() {
	for i := 0; i < d.maxWorkers; i++ {
		d.wg.Add(1)
		go func(workerID int) {
			defer d.wg.Done()
			d.logger.Info("starting review worker", "id", workerID)
			for req := range d.jobQueue {
				d.logger.Info("worker processing job", "worker_id", workerID, "id", req.ID)
				if err := d.reviewJob.Run(context.Background(), req); err != nil {
					d.logger.Error("code review job failed", "id", req.ID, "error", err)
				}
			}
			d.logger.Info("shutting down review worker", "id", workerID)
		}(i)
	}
}

// Dispatch queues req for processing by a worker.
// Returns an error if the queue is full.
func (d *dispatcher) Dispatch(ctx context.Context, req *Request) error {
	d.logger.InfoContext(ctx, "queuing code review job", "id", req.ID)
	select {
	case d.jobQueue <- req:
		return nil
	default:
		return fmt.Errorf("job queue is full, cannot accept new review job")
	}
}

// Stop gracefully shuts down the dispatcher, waiting for all workers to finish.
func (d *dispatcher) Stop() {
	d.logger.Info("stopping dispatcher and waiting for jobs to finish")
	close(d.jobQueue)
	d.wg.Wait()
	d.logger.Info("all review jobs have finished")
}
