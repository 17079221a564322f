package poll

import (
	"context"
	"errors"
	"time"

	"github.com/3leaps/hy3d/pkg/download"
	"github.com/3leaps/hy3d/pkg/job"
	"github.com/3leaps/hy3d/pkg/output"
)

// Options configures an Engine.
type Options struct {
	Config

	// Clock defaults to SystemClock.
	Clock Clock

	// Writer receives status, download, error and summary records.
	// Default: output.Discard
	Writer output.Writer

	// OnStatus is called after every query.
	OnStatus func(Observation)

	// OnFile is called after every result file is processed.
	OnFile func(download.FileResult)
}

// Request describes one poll-and-fetch run.
type Request struct {
	JobID string

	// OutputDir receives result files. Created if absent. Default: "."
	OutputDir string

	// BaseName switches file naming to "<title><ext>", "<title>_2<ext>", ...
	BaseName string

	// Download fetches result files once the job is done.
	Download bool
}

// Outcome is the result of Engine.Run.
type Outcome struct {
	Result

	// Report is nil when nothing was downloaded.
	Report *download.Report
}

// Engine waits for a job and downloads its result files.
//
// Engine is safe for sequential reuse; each Run is independent.
type Engine struct {
	query   QueryFunc
	fetcher *download.Fetcher
	opts    Options
}

// NewEngine creates an Engine. fetcher may be nil when no run will download.
func NewEngine(query QueryFunc, fetcher *download.Fetcher, opts Options) (*Engine, error) {
	if query == nil {
		return nil, errors.New("poll: query function is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Writer == nil {
		opts.Writer = output.Discard
	}
	return &Engine{query: query, fetcher: fetcher, opts: opts}, nil
}

// Run waits for req.JobID and, when req.Download is set and the job is done,
// downloads every result file.
//
// Per-file download failures are reported in Outcome.Report and do not make
// Run fail. Wait failures are returned as from Waiter.Wait.
func (e *Engine) Run(ctx context.Context, req Request) (*Outcome, error) {
	start := e.opts.Clock.Now()
	out := &Outcome{}

	waiter, err := NewWaiter(e.query, e.opts.Config,
		WithClock(e.opts.Clock),
		WithWriter(e.opts.Writer),
		WithOnStatus(e.opts.OnStatus),
	)
	if err != nil {
		return out, err
	}

	res, err := waiter.Wait(ctx, req.JobID)
	out.Result = *res
	if err != nil {
		return out, e.fail(ctx, start, out, err)
	}

	// The output directory is created for a done job even when it reported
	// no result files.
	if req.Download {
		if e.fetcher == nil {
			return out, e.fail(ctx, start, out, errors.New("poll: download requested without a fetcher"))
		}
		dir := req.OutputDir
		if dir == "" {
			dir = "."
		}
		namer := download.NewNamer(res.Snapshot.JobID, req.BaseName)
		report, err := e.fetcher.FetchAll(ctx, dir, namer, res.Snapshot.Files, func(fr download.FileResult) {
			e.writeFile(ctx, fr)
			if e.opts.OnFile != nil {
				e.opts.OnFile(fr)
			}
		})
		if err != nil {
			return out, e.fail(ctx, start, out, err)
		}
		out.Report = report
	}

	e.writeSummary(ctx, start, out)
	return out, nil
}

// fail closes the record stream with an error and a summary, then returns err.
func (e *Engine) fail(ctx context.Context, start time.Time, out *Outcome, err error) error {
	e.writeFailure(ctx, err)
	e.writeSummary(ctx, start, out)
	return err
}

func (e *Engine) writeFile(ctx context.Context, fr download.FileResult) {
	rec := &output.DownloadRecord{Index: fr.Index, URL: fr.URL, Path: fr.Path, Bytes: fr.Bytes}
	switch {
	case fr.Err != nil:
		rec.Status = output.DownloadError
		rec.Error = fr.Err.Error()
		_ = e.opts.Writer.WriteError(ctx, &output.ErrorRecord{
			Code:    output.ErrCodeDownload,
			Message: fr.Err.Error(),
			URL:     fr.URL,
		})
	case fr.Skipped:
		rec.Status = output.DownloadSkipped
	default:
		rec.Status = output.DownloadSuccess
	}
	_ = e.opts.Writer.WriteDownload(ctx, rec)
}

func (e *Engine) writeFailure(ctx context.Context, err error) {
	rec := &output.ErrorRecord{Code: output.ErrCodeInternal, Message: err.Error()}

	var failed *JobFailedError
	var timeout *TimeoutError
	var query *QueryError
	switch {
	case errors.As(err, &failed):
		rec.Code = output.ErrCodeJobFailed
		rec.Details = map[string]string{"error_code": failed.Code, "error_message": failed.Message}
	case errors.As(err, &timeout):
		rec.Code = output.ErrCodeTimeout
		rec.Details = map[string]any{"polls": timeout.Polls, "limit": timeout.Limit}
	case errors.As(err, &query):
		rec.Code = output.ErrCodeRemote
	}
	_ = e.opts.Writer.WriteError(ctx, rec)
}

func (e *Engine) writeSummary(ctx context.Context, start time.Time, out *Outcome) {
	sum := &output.SummaryRecord{Polls: out.Polls}
	if out.Snapshot != nil {
		sum.Status = string(out.Snapshot.Status)
		sum.FilesReported = len(out.Snapshot.Files)
	}
	if out.Report != nil {
		sum.FilesDownloaded = out.Report.Downloaded()
		sum.FilesFailed = out.Report.Failed()
		sum.BytesTotal = out.Report.Bytes()
		sum.OutputDir = out.Report.Dir
	}
	sum.Duration = e.opts.Clock.Now().Sub(start)
	sum.DurationHuman = sum.Duration.Round(time.Millisecond).String()
	_ = e.opts.Writer.WriteSummary(ctx, sum)
}

// Done returns a QueryFunc that reports snap as already complete. It adapts
// synchronous operations (format conversion) to the engine.
func Done(snap *job.Snapshot) QueryFunc {
	return func(ctx context.Context, jobID string) (*job.Snapshot, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := *snap
		s.Status = job.StatusDone
		if s.JobID == "" {
			s.JobID = jobID
		}
		return &s, nil
	}
}
