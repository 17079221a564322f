package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer outputs JSONL event records for a job run.
//
// Implementations must be safe for concurrent use. Each Write* method emits
// a complete record as a single line of JSON followed by a newline.
type Writer interface {
	// WriteSubmit emits a submission record.
	WriteSubmit(ctx context.Context, sub *SubmitRecord) error

	// WriteStatus emits a status observation record.
	WriteStatus(ctx context.Context, st *StatusRecord) error

	// WriteDownload emits a per-file download record.
	WriteDownload(ctx context.Context, dl *DownloadRecord) error

	// WriteError emits an error record.
	WriteError(ctx context.Context, err *ErrorRecord) error

	// WriteSummary emits a summary record.
	WriteSummary(ctx context.Context, sum *SummaryRecord) error

	// WritePreflight emits a preflight record.
	WritePreflight(ctx context.Context, preflight *PreflightRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized using
// a mutex to ensure atomic line writes (no interleaved output).
type JSONLWriter struct {
	w     io.Writer
	runID string
	kind  string
	jobID string
	mu    sync.Mutex

	// closed indicates the writer has been closed.
	closed bool
}

// NewJSONLWriter creates a new JSONL writer.
//
// Parameters:
//   - w: The underlying writer (stdout, file, etc.)
//   - runID: Correlation ID for this invocation
//   - kind: Job kind (e.g., "generation")
func NewJSONLWriter(w io.Writer, runID, kind string) *JSONLWriter {
	return &JSONLWriter{
		w:     w,
		runID: runID,
		kind:  kind,
	}
}

// SetJobID stamps subsequent records with the remote job id.
func (jw *JSONLWriter) SetJobID(jobID string) {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.jobID = jobID
}

// WriteSubmit emits a submission record and stamps the writer with its job id.
func (jw *JSONLWriter) WriteSubmit(ctx context.Context, sub *SubmitRecord) error {
	if sub != nil && sub.JobID != "" {
		jw.SetJobID(sub.JobID)
	}
	return jw.writeRecord(ctx, TypeSubmit, sub)
}

// WriteStatus emits a status observation record.
func (jw *JSONLWriter) WriteStatus(ctx context.Context, st *StatusRecord) error {
	return jw.writeRecord(ctx, TypeStatus, st)
}

// WriteDownload emits a download record.
func (jw *JSONLWriter) WriteDownload(ctx context.Context, dl *DownloadRecord) error {
	return jw.writeRecord(ctx, TypeDownload, dl)
}

// WriteError emits an error record.
func (jw *JSONLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, err)
}

// WriteSummary emits a summary record.
func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

// WritePreflight emits a preflight record.
func (jw *JSONLWriter) WritePreflight(ctx context.Context, preflight *PreflightRecord) error {
	return jw.writeRecord(ctx, TypePreflight, preflight)
}

// Close marks the writer as closed.
//
// If the underlying writer implements io.Closer, it is NOT closed.
// The caller is responsible for closing the underlying writer.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

// writeRecord marshals data and writes a complete record line.
//
// The mutex is held for the entire write so lines never interleave.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	record := Record{
		Type:  recordType,
		TS:    time.Now().UTC(),
		RunID: jw.runID,
		JobID: jw.jobID,
		Kind:  jw.kind,
		Data:  dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// io.Writer may return n < len(p) with a nil error; a truncated line
	// would corrupt the stream.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}

	return nil
}

// writeAll writes all bytes to w, handling short writes.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// Discard is a Writer that drops every record.
var Discard Writer = discardWriter{}

type discardWriter struct{}

func (discardWriter) WriteSubmit(context.Context, *SubmitRecord) error       { return nil }
func (discardWriter) WriteStatus(context.Context, *StatusRecord) error       { return nil }
func (discardWriter) WriteDownload(context.Context, *DownloadRecord) error   { return nil }
func (discardWriter) WriteError(context.Context, *ErrorRecord) error         { return nil }
func (discardWriter) WriteSummary(context.Context, *SummaryRecord) error     { return nil }
func (discardWriter) WritePreflight(context.Context, *PreflightRecord) error { return nil }
func (discardWriter) Close() error                                           { return nil }

// Compile-time check that JSONLWriter implements Writer.
var _ Writer = (*JSONLWriter)(nil)
