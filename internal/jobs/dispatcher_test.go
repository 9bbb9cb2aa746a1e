package jobs

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type countingJob struct {
	mu  sync.Mutex
	ran []string
	done chan struct{}
}

func (j *countingJob) Run(_ context.Context, req *Request) error {
	j.mu.Lock()
	j.ran = append(j.ran, req.ID)
	j.mu.Unlock()
	j.done <- struct{}{}
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_RunsDispatchedJobs(t *testing.T) {
	job := &countingJob{done: make(chan struct{}, 3)}
	d := NewDispatcher(job, 2, newTestLogger())
	defer d.Stop()

	for i := 0; i < 3; i++ {
		if err := d.Dispatch(context.Background(), &Request{ID: "owner/repo#1"}); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		select {
		case <-job.done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for job to run")
		}
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	if len(job.ran) != 3 {
		t.Fatalf("ran %d jobs, want 3", len(job.ran))
	}
}

func TestDispatcher_DefaultsToOneWorker(t *testing.T) {
	job := &countingJob{done: make(chan struct{}, 1)}
	d := NewDispatcher(job, 0, newTestLogger())
	defer d.Stop()

	if err := d.Dispatch(context.Background(), &Request{ID: "a/b#1"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	select {
	case <-job.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job to run")
	}
}
