package jobregistry

import (
	"fmt"
	"time"

	"github.com/3leaps/hy3d/pkg/job"
)

// Tracker keeps one job's record and event log current as a run progresses.
//
// Tracker methods are not safe for concurrent use; the CLI drives one job per
// invocation.
type Tracker struct {
	store *Store
	rec   *JobRecord
	now   func() time.Time
}

// Begin writes the initial record (state submitted unless already set) and a
// submitted event. An existing record for the same job id is replaced, which
// is how `hy3d query` resumes a job; the outcome of the previous run
// (downloads, completion time, error) is cleared first.
func (s *Store) Begin(rec *JobRecord) (*Tracker, error) {
	if rec == nil {
		return nil, fmt.Errorf("job record is nil")
	}
	rec.Downloaded = nil
	rec.BytesTotal = 0
	rec.CompletedAt = nil
	rec.ErrorCode = ""
	rec.ErrorMessage = ""
	t := &Tracker{store: s, rec: rec, now: func() time.Time { return time.Now().UTC() }}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = t.now()
	}
	if rec.State == "" {
		rec.State = JobStateSubmitted
	}
	if err := s.Write(rec); err != nil {
		return nil, err
	}
	if err := s.AppendEvent(rec.JobID, Event{TS: t.now(), Type: EventSubmitted, State: rec.State}); err != nil {
		return nil, err
	}
	return t, nil
}

// Record returns the tracked record.
func (t *Tracker) Record() *JobRecord {
	return t.rec
}

// Status records one observed remote status.
func (t *Tracker) Status(poll int, snap *job.Snapshot) error {
	if snap == nil {
		return nil
	}
	now := t.now()
	t.rec.Polls = poll
	t.rec.State = StateFromStatus(snap.Status)
	t.rec.UpdatedAt = &now
	if snap.Status == job.StatusDone {
		t.rec.ResultURLs = t.rec.ResultURLs[:0]
		for _, f := range snap.Files {
			t.rec.ResultURLs = append(t.rec.ResultURLs, f.URL)
		}
	}
	if snap.Status == job.StatusFailed {
		t.rec.ErrorCode = snap.ErrorCode
		t.rec.ErrorMessage = snap.ErrorMessage
	}
	if err := t.store.AppendEvent(t.rec.JobID, Event{
		TS:     now,
		Type:   EventStatus,
		State:  t.rec.State,
		Poll:   poll,
		Status: snap.RawStatus,
	}); err != nil {
		return err
	}
	return t.store.Write(t.rec)
}

// File records one downloaded file.
func (t *Tracker) File(path string, bytes int64) error {
	t.rec.Downloaded = append(t.rec.Downloaded, path)
	t.rec.BytesTotal += bytes
	return t.store.AppendEvent(t.rec.JobID, Event{TS: t.now(), Type: EventFile, File: path})
}

// Finish sets the final state and persists the record. code and message are
// kept only when non-empty.
func (t *Tracker) Finish(state JobState, code, message string) error {
	now := t.now()
	t.rec.State = state
	t.rec.UpdatedAt = &now
	if state.Terminal() || state == JobStateTimeout {
		t.rec.CompletedAt = &now
	}
	if code != "" {
		t.rec.ErrorCode = code
	}
	if message != "" {
		t.rec.ErrorMessage = message
	}
	if err := t.store.AppendEvent(t.rec.JobID, Event{TS: now, Type: EventFinished, State: state, Message: message}); err != nil {
		return err
	}
	return t.store.Write(t.rec)
}
