// Package poll waits for remote jobs to reach a terminal state.
//
// A Waiter calls a caller-supplied query operation, sleeps a fixed interval
// while the job is pending or running, and stops at the first done or failed
// observation. There is no retry or backoff beyond that loop: a failed query
// ends the wait immediately.
//
// Engine composes a Waiter with a download.Fetcher to implement the full
// submit-independent "poll and fetch" flow used by every hy3d command.
package poll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/3leaps/hy3d/pkg/job"
	"github.com/3leaps/hy3d/pkg/output"
)

// DefaultInterval is the pause between status queries.
const DefaultInterval = 10 * time.Second

// QueryFunc observes the current state of a job.
type QueryFunc func(ctx context.Context, jobID string) (*job.Snapshot, error)

// Clock abstracts time so the loop can run without wall-clock delay in tests.
type Clock interface {
	Now() time.Time

	// Sleep pauses for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the real clock.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config controls the polling loop.
type Config struct {
	// Interval is the pause between queries. Zero polls back to back.
	// Default: 10s
	Interval time.Duration

	// MaxWait stops polling once this much time has elapsed since the first
	// query. Zero waits indefinitely.
	MaxWait time.Duration

	// MaxPolls stops polling after this many queries. Zero is unlimited.
	MaxPolls int
}

// DefaultConfig returns the default polling configuration.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("%w: interval %s", ErrInvalidConfig, c.Interval)
	}
	if c.MaxWait < 0 {
		return fmt.Errorf("%w: max wait %s", ErrInvalidConfig, c.MaxWait)
	}
	if c.MaxPolls < 0 {
		return fmt.Errorf("%w: max polls %d", ErrInvalidConfig, c.MaxPolls)
	}
	return nil
}

// Sentinel errors.
var (
	ErrInvalidConfig = errors.New("invalid poll configuration")
	ErrEmptyJobID    = errors.New("job id is required")
	ErrJobFailed     = errors.New("job failed")
	ErrTimeout       = errors.New("timed out waiting for job")
)

// JobFailedError reports a terminal failed status with the remote diagnostic.
type JobFailedError struct {
	JobID   string
	Code    string
	Message string
}

func (e *JobFailedError) Error() string {
	s := job.Snapshot{ErrorCode: e.Code, ErrorMessage: e.Message}
	return fmt.Sprintf("job %s failed: %s", e.JobID, s.Diagnostic())
}

func (e *JobFailedError) Is(target error) bool { return target == ErrJobFailed }

// TimeoutError reports that the wait limit elapsed before a terminal state.
// The job may still be running remotely.
type TimeoutError struct {
	JobID      string
	Polls      int
	Elapsed    time.Duration
	LastStatus job.Status

	// Limit names the limit that was hit ("max wait" or "max polls").
	Limit string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s still %s after %d polls (%s): %s reached",
		e.JobID, e.LastStatus, e.Polls, e.Elapsed.Round(time.Second), e.Limit)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// QueryError wraps a failed status query.
type QueryError struct {
	JobID string
	Poll  int
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query job %s (poll %d): %v", e.JobID, e.Poll, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsJobFailed reports whether err is a terminal job failure.
func IsJobFailed(err error) bool { return errors.Is(err, ErrJobFailed) }

// IsTimeout reports whether err is a wait timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// Observation is delivered to OnStatus after every query.
type Observation struct {
	Poll     int
	Elapsed  time.Duration
	Snapshot *job.Snapshot
}

// Result is the outcome of a wait.
type Result struct {
	// Snapshot is the last observation (nil if the first query failed).
	Snapshot *job.Snapshot
	Polls    int
	Elapsed  time.Duration
}

// Waiter polls a single job until it reaches a terminal state.
type Waiter struct {
	query    QueryFunc
	clock    Clock
	cfg      Config
	writer   output.Writer
	onStatus func(Observation)
}

// WaiterOption customizes a Waiter.
type WaiterOption func(*Waiter)

// WithClock replaces the system clock.
func WithClock(c Clock) WaiterOption {
	return func(w *Waiter) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithWriter emits a status record for every query.
func WithWriter(ow output.Writer) WaiterOption {
	return func(w *Waiter) {
		if ow != nil {
			w.writer = ow
		}
	}
}

// WithOnStatus registers a callback invoked after every query.
func WithOnStatus(fn func(Observation)) WaiterOption {
	return func(w *Waiter) { w.onStatus = fn }
}

// NewWaiter creates a Waiter.
func NewWaiter(query QueryFunc, cfg Config, opts ...WaiterOption) (*Waiter, error) {
	if query == nil {
		return nil, errors.New("poll: query function is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &Waiter{
		query:  query,
		clock:  SystemClock,
		cfg:    cfg,
		writer: output.Discard,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Wait blocks until the job is done, failed, a limit is reached, or ctx is
// cancelled.
//
// A done job returns a nil error. A failed job returns *JobFailedError, an
// exhausted limit *TimeoutError and a query failure *QueryError. Result is
// always non-nil.
func (w *Waiter) Wait(ctx context.Context, jobID string) (*Result, error) {
	res := &Result{}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return res, ErrEmptyJobID
	}

	start := w.clock.Now()
	for {
		res.Polls++
		snap, err := w.query(ctx, jobID)
		res.Elapsed = w.clock.Now().Sub(start)
		if err != nil {
			return res, &QueryError{JobID: jobID, Poll: res.Polls, Err: err}
		}
		if snap == nil {
			return res, &QueryError{JobID: jobID, Poll: res.Polls, Err: errors.New("empty response")}
		}
		if snap.JobID == "" {
			snap.JobID = jobID
		}
		res.Snapshot = snap
		w.observe(ctx, res)

		switch snap.Status {
		case job.StatusDone:
			return res, nil
		case job.StatusFailed:
			return res, &JobFailedError{JobID: jobID, Code: snap.ErrorCode, Message: snap.ErrorMessage}
		}

		if w.cfg.MaxPolls > 0 && res.Polls >= w.cfg.MaxPolls {
			return res, w.timeout(jobID, res, "max polls")
		}
		sleep := w.cfg.Interval
		if w.cfg.MaxWait > 0 {
			remaining := w.cfg.MaxWait - res.Elapsed
			if remaining <= 0 {
				return res, w.timeout(jobID, res, "max wait")
			}
			// Wake at the deadline for one last look.
			if sleep > remaining {
				sleep = remaining
			}
		}

		if err := w.clock.Sleep(ctx, sleep); err != nil {
			return res, err
		}
	}
}

func (w *Waiter) observe(ctx context.Context, res *Result) {
	snap := res.Snapshot
	// Event output is best effort; a broken stream must not hide the job state.
	_ = w.writer.WriteStatus(ctx, StatusRecord(res.Polls, res.Elapsed, snap))
	if w.onStatus != nil {
		w.onStatus(Observation{Poll: res.Polls, Elapsed: res.Elapsed, Snapshot: snap})
	}
}

// StatusRecord builds the status record for one observation. Result URLs
// are listed once the job is done.
func StatusRecord(poll int, elapsed time.Duration, snap *job.Snapshot) *output.StatusRecord {
	rec := &output.StatusRecord{
		Poll:        poll,
		Status:      string(snap.Status),
		RawStatus:   snap.RawStatus,
		Elapsed:     elapsed,
		ResultFiles: len(snap.Files),
		Response:    snap.Raw,
	}
	if snap.Status == job.StatusDone {
		for _, f := range snap.Files {
			rec.ResultURLs = append(rec.ResultURLs, f.URL)
		}
	}
	return rec
}

func (w *Waiter) timeout(jobID string, res *Result, limit string) error {
	return &TimeoutError{
		JobID:      jobID,
		Polls:      res.Polls,
		Elapsed:    res.Elapsed,
		LastStatus: res.Snapshot.Status,
		Limit:      limit,
	}
}
