// Package poll waits for long-running external generation jobs.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	StateCompleted = "completed"
	StateFailed    = "failed"

	defaultInterval = 2 * time.Second
	defaultTimeout  = 5 * time.Minute
)

var (
	// ErrTimeout means the job did not reach a terminal state in time.
	// It says nothing about whether the job itself failed.
	ErrTimeout = errors.New("timeout")
	// ErrCancelled means the caller aborted the wait on purpose.
	ErrCancelled = errors.New("cancelled")
)

// Status is the last known state of an external job.
type Status struct {
	State     string         `json:"status"`
	Progress  int            `json:"progress,omitempty"`
	ResultURL string         `json:"result_url,omitempty"`
	Error     string         `json:"error,omitempty"`
	Raw       map[string]any `json:"-"`
}

// Failed reports whether the job itself reported failure.
func (s *Status) Failed() bool { return s != nil && s.State == StateFailed }

// Options configures Until.
type Options struct {
	// GetStatus fetches the current job status. Errors count as "not done yet".
	GetStatus func(ctx context.Context) (*Status, error)
	// IsDone defaults to DefaultIsDone.
	IsDone   func(*Status) bool
	Interval time.Duration
	Timeout  time.Duration
	// OnError observes GetStatus failures.
	OnError func(err error)
}

// DefaultIsDone treats completed and failed as terminal.
func DefaultIsDone(s *Status) bool {
	if s == nil {
		return false
	}
	return s.State == StateCompleted || s.State == StateFailed
}

// Until polls GetStatus until IsDone holds, the timeout elapses or ctx is
// cancelled. A done status is returned with a nil error even when the job
// reports failure; callers inspect Status.State.
//
// Timeouts are checked once per iteration, so the overrun is at most one interval.
func Until(ctx context.Context, opts Options) (*Status, error) {
	if opts.GetStatus == nil {
		return nil, errors.New("poll: GetStatus is required")
	}
	isDone := opts.IsDone
	if isDone == nil {
		isDone = DefaultIsDone
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	start := time.Now()
	var last *Status
	for {
		if err := cancelled(ctx); err != nil {
			return last, err
		}
		if time.Since(start) >= timeout {
			return last, ErrTimeout
		}

		status, err := opts.GetStatus(ctx)
		switch {
		case err != nil:
			if opts.OnError != nil {
				opts.OnError(err)
			}
		case status != nil:
			last = status
			if isDone(status) {
				return status, nil
			}
		}

		if err := cancelled(ctx); err != nil {
			return last, err
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, cancelErr(ctx)
		case <-timer.C:
		}
	}
}

// IsCancelled reports whether err is an intentional abort rather than a failure.
func IsCancelled(err error) bool { return errors.Is(err, ErrCancelled) }

// IsTimeout reports whether err is a polling timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

func cancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return cancelErr(ctx)
	}
	return nil
}

func cancelErr(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
}
