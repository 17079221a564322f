package cmd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/hy3d/internal/config"
	"github.com/3leaps/hy3d/internal/observability"
	"github.com/3leaps/hy3d/pkg/cos"
	"github.com/3leaps/hy3d/pkg/download"
	"github.com/3leaps/hy3d/pkg/hunyuan"
	"github.com/3leaps/hy3d/pkg/job"
	"github.com/3leaps/hy3d/pkg/jobregistry"
	"github.com/3leaps/hy3d/pkg/output"
	"github.com/3leaps/hy3d/pkg/poll"
	"github.com/3leaps/hy3d/pkg/preflight"
)

// jobClient is the subset of *hunyuan.Client the runner uses.
type jobClient interface {
	Submit(ctx context.Context, req hunyuan.Request) (*hunyuan.SubmitResult, error)
	Query(ctx context.Context, kind job.Kind, jobID string) (*job.Snapshot, error)
	Convert(ctx context.Context, req *hunyuan.ConvertRequest) (*hunyuan.ConvertResult, error)
}

// jobEnv carries everything a run needs once configuration is resolved.
type jobEnv struct {
	cfg      *config.Config
	secrets  config.Secrets
	client   jobClient
	uploader cos.FileUploader
	store    *jobregistry.Store
	out      io.Writer
}

// newJobEnvFunc builds the run environment; tests replace it.
var newJobEnvFunc = newJobEnv

func newJobEnv(cmd *cobra.Command) (*jobEnv, error) {
	ctx := cmd.Context()
	cfg, err := currentConfig(ctx)
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	secrets, err := config.LoadSecrets(rootSecrets)
	if err != nil {
		if errors.Is(err, config.ErrSecretsNotFound) {
			return nil, exitError(foundry.ExitFileNotFound, "Secrets file not found", err)
		}
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid secrets file", err)
	}
	observability.CLILogger.Debug("Loaded secrets",
		zap.String("path", secrets.Path),
		zap.String("region", secrets.Region),
		zap.String("secret_id", maskAccessKey(secrets.SecretID)))

	client, err := hunyuan.New(hunyuan.Config{
		SecretID:  secrets.SecretID,
		SecretKey: secrets.SecretKey,
		Region:    secrets.Region,
		Endpoint:  secrets.Endpoint,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
	})
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid API configuration", err)
	}

	env := &jobEnv{
		cfg:     cfg,
		secrets: secrets,
		client:  client,
		store:   jobregistry.NewStore(cfg.Jobs.Root),
		out:     cmd.OutOrStdout(),
	}

	if secrets.COSBucket != "" {
		up, err := cos.New(ctx, cos.Config{
			Bucket:    secrets.COSBucket,
			Region:    secrets.COSRegionOrDefault(),
			SecretID:  secrets.SecretID,
			SecretKey: secrets.SecretKey,
		})
		if err != nil {
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid COS configuration", err)
		}
		env.uploader = up
	}
	return env, nil
}

// resolveModel turns a model reference into a URL the API can fetch,
// uploading local files to COS.
func (e *jobEnv) resolveModel(ctx context.Context, ref, subfolder string) (string, error) {
	url, uploaded, err := cos.ResolveInput(ctx, e.uploader, ref, subfolder)
	if err != nil {
		return "", err
	}
	if uploaded {
		observability.CLILogger.Info("Uploaded input to COS",
			zap.String("path", ref),
			zap.String("url", url))
	}
	return url, nil
}

// readBase64 returns the base64 encoding of a local file.
func readBase64(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// jobSpec describes one submission.
type jobSpec struct {
	Kind      job.Kind
	Preflight preflight.Input
	Input     jobregistry.InputSummary

	// Build resolves inputs (uploads, base64 images) into a request.
	Build func(ctx context.Context, env *jobEnv) (hunyuan.Request, error)
}

// runJob validates, submits and (optionally) waits for one job.
func runJob(cmd *cobra.Command, spec jobSpec, s runSettings) error {
	ctx := cmd.Context()
	runID := uuid.NewString()

	var w output.Writer = output.Discard
	var jw *output.JSONLWriter
	if s.JSON {
		jw = output.NewJSONLWriter(cmd.OutOrStdout(), runID, string(spec.Kind))
		w = jw
		defer func() { _ = jw.Close() }()
	}

	spec.Preflight.Kind = spec.Kind
	if err := runPreflight(ctx, w, spec.Preflight); err != nil {
		return err
	}

	env, err := newJobEnvFunc(cmd)
	if err != nil {
		return err
	}

	req, err := spec.Build(ctx, env)
	if err != nil {
		return inputError(err)
	}

	sub, query, err := submit(ctx, env, req)
	if err != nil {
		observability.CLILogger.Error("Submit failed", zap.Error(err))
		_ = w.WriteError(ctx, &output.ErrorRecord{Code: output.ErrCodeRemote, Message: err.Error()})
		return remoteError("Submit failed", err)
	}

	if jw != nil {
		jw.SetJobID(sub.JobID)
	}
	_ = w.WriteSubmit(ctx, &output.SubmitRecord{
		Action:    sub.Action,
		JobID:     sub.JobID,
		RequestID: sub.RequestID,
		Region:    env.secrets.Region,
		Input:     inputLabel(spec.Input),
		Response:  sub.Raw,
	})
	observability.CLILogger.Info("Job submitted",
		zap.String("kind", string(spec.Kind)),
		zap.String("job_id", sub.JobID),
		zap.String("request_id", sub.RequestID))
	if !s.JSON {
		fmt.Fprintf(env.out, "Job submitted: %s\n", sub.JobID)
	}

	tracker := beginTracking(env, &jobregistry.JobRecord{
		JobID:     sub.JobID,
		Kind:      spec.Kind,
		Name:      s.Name,
		RunID:     runID,
		RequestID: sub.RequestID,
		Endpoint:  &jobregistry.Endpoint{Region: env.secrets.Region, Host: env.secrets.Endpoint},
		Input:     &spec.Input,
		OutputDir: s.OutputDir,
	})

	if !s.Wait && spec.Kind != job.KindConversion {
		if !s.JSON {
			fmt.Fprintf(env.out, "Check later with: hy3d query %s --kind %s --wait\n", sub.JobID, spec.Kind)
		}
		return nil
	}

	return awaitJob(ctx, env, awaitParams{
		JobID:    sub.JobID,
		Query:    query,
		Writer:   w,
		Tracker:  tracker,
		Settings: s,
	})
}

// submitted is the common result of an async submit or a synchronous convert.
type submitted struct {
	Action    string
	JobID     string
	RequestID string
	Raw       json.RawMessage
}

func submit(ctx context.Context, env *jobEnv, req hunyuan.Request) (*submitted, poll.QueryFunc, error) {
	if cr, ok := req.(*hunyuan.ConvertRequest); ok {
		res, err := env.client.Convert(ctx, cr)
		if err != nil {
			return nil, nil, err
		}
		snap := res.Snapshot()
		if snap.JobID == "" {
			snap.JobID = "convert-" + uuid.NewString()[:8]
		}
		return &submitted{Action: "Convert3DFormat", JobID: snap.JobID, RequestID: res.RequestID, Raw: res.Raw}, poll.Done(snap), nil
	}

	res, err := env.client.Submit(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	kind := req.Kind()
	query := func(ctx context.Context, jobID string) (*job.Snapshot, error) {
		return env.client.Query(ctx, kind, jobID)
	}
	return &submitted{Action: res.Action, JobID: res.JobID, RequestID: res.RequestID, Raw: res.Raw}, query, nil
}

func runPreflight(ctx context.Context, w output.Writer, in preflight.Input) error {
	report := preflight.Check(in)
	if err := w.WritePreflight(ctx, report.Record()); err != nil {
		observability.CLILogger.Warn("Failed to write preflight record", zap.Error(err))
	}
	for _, f := range report.Warnings() {
		observability.CLILogger.Warn(f.Detail, zap.String("check", f.Check))
	}
	if err := report.Err(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Preflight failed", err)
	}
	return nil
}

// awaitParams configures awaitJob.
type awaitParams struct {
	JobID    string
	Query    poll.QueryFunc
	Writer   output.Writer
	Tracker  *jobregistry.Tracker
	Settings runSettings
}

// awaitJob runs the poll-and-fetch engine and maps its outcome to an exit.
func awaitJob(ctx context.Context, env *jobEnv, p awaitParams) error {
	s := p.Settings

	var fetcher *download.Fetcher
	if s.Download {
		f, err := download.NewFetcher(download.Options{
			HTTPClient: &http.Client{Timeout: env.cfg.Download.Timeout},
			Include:    s.Include,
			UserAgent:  env.cfg.Download.UserAgent,
		})
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --include pattern", err)
		}
		fetcher = f
	}

	engine, err := poll.NewEngine(p.Query, fetcher, poll.Options{
		Config: s.Poll,
		Writer: p.Writer,
		OnStatus: func(o poll.Observation) {
			observability.CLILogger.Info("Job status",
				zap.String("job_id", p.JobID),
				zap.Int("poll", o.Poll),
				zap.String("status", string(o.Snapshot.Status)),
				zap.String("raw_status", o.Snapshot.RawStatus),
				zap.Duration("elapsed", o.Elapsed))
			if p.Tracker != nil {
				if err := p.Tracker.Status(o.Poll, o.Snapshot); err != nil {
					observability.CLILogger.Warn("Failed to update job registry", zap.Error(err))
				}
			}
		},
		OnFile: func(fr download.FileResult) {
			switch {
			case fr.Err != nil:
				observability.CLILogger.Warn("Download failed",
					zap.Int("index", fr.Index),
					zap.String("name", fr.Name),
					zap.Error(fr.Err))
			case fr.Skipped:
				observability.CLILogger.Debug("Skipped result file", zap.String("name", fr.Name))
			default:
				observability.CLILogger.Info("Downloaded",
					zap.String("path", fr.Path),
					zap.Int64("bytes", fr.Bytes))
				if p.Tracker != nil {
					if err := p.Tracker.File(fr.Path, fr.Bytes); err != nil {
						observability.CLILogger.Warn("Failed to update job registry", zap.Error(err))
					}
				}
			}
		},
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid poll settings", err)
	}

	out, err := engine.Run(ctx, poll.Request{
		JobID:     p.JobID,
		OutputDir: s.OutputDir,
		BaseName:  s.Name,
		Download:  s.Download,
	})
	if err != nil {
		return finishWithError(ctx, p, out, err)
	}

	finish(p.Tracker, jobregistry.JobStateDone, "", "")
	reportOutcome(env.out, s, out)
	return nil
}

func finishWithError(ctx context.Context, p awaitParams, out *poll.Outcome, err error) error {
	var failed *poll.JobFailedError
	var timeout *poll.TimeoutError
	var query *poll.QueryError
	switch {
	case errors.As(err, &failed):
		finish(p.Tracker, jobregistry.JobStateFailed, failed.Code, failed.Message)
		observability.CLILogger.Error("Job failed",
			zap.String("job_id", p.JobID),
			zap.String("error_code", failed.Code),
			zap.String("error_message", failed.Message))
		return exitError(exitJobFailed, "Job failed", err)
	case errors.As(err, &timeout):
		finish(p.Tracker, jobregistry.JobStateTimeout, "", err.Error())
		observability.CLILogger.Warn("Stopped waiting for job",
			zap.String("job_id", p.JobID),
			zap.Int("polls", out.Polls))
		return exitError(exitJobTimeout, "Timed out", err)
	case ctx.Err() != nil:
		return exitError(foundry.ExitSignalInt, "Cancelled", err)
	case errors.As(err, &query):
		return remoteError("Status query failed", err)
	default:
		return exitError(foundry.ExitFileWriteError, "Download failed", err)
	}
}

func finish(t *jobregistry.Tracker, state jobregistry.JobState, code, message string) {
	if t == nil {
		return
	}
	if err := t.Finish(state, code, message); err != nil {
		observability.CLILogger.Warn("Failed to update job registry", zap.Error(err))
	}
}

// reportOutcome prints a human summary. JSONL mode already has the records.
func reportOutcome(w io.Writer, s runSettings, out *poll.Outcome) {
	if out.Report != nil {
		if failed := out.Report.Failed(); failed > 0 {
			observability.CLILogger.Warn("Some result files could not be downloaded",
				zap.Int("failed", failed),
				zap.Error(out.Report.Err()))
		}
	}
	if s.JSON || out.Snapshot == nil {
		return
	}
	if out.Report != nil {
		for _, path := range out.Report.Paths() {
			fmt.Fprintln(w, path)
		}
		return
	}
	for _, f := range out.Snapshot.Files {
		fmt.Fprintln(w, f.URL)
	}
}

func beginTracking(env *jobEnv, rec *jobregistry.JobRecord) *jobregistry.Tracker {
	t, err := env.store.Begin(rec)
	if err != nil {
		observability.CLILogger.Warn("Failed to record job", zap.String("job_id", rec.JobID), zap.Error(err))
		return nil
	}
	return t
}

// inputError maps a request build failure to an exit.
func inputError(err error) error {
	var pathErr *os.PathError
	switch {
	case errors.Is(err, cos.ErrNotConfigured), errors.Is(err, hunyuan.ErrInvalidRequest):
		return exitError(foundry.ExitInvalidArgument, "Invalid input", err)
	case errors.As(err, &pathErr):
		return exitError(foundry.ExitFileReadError, "Cannot read input", err)
	default:
		return exitError(foundry.ExitExternalServiceUnavailable, "Input upload failed", err)
	}
}

func remoteError(message string, err error) error {
	if errors.Is(err, hunyuan.ErrInvalidRequest) {
		return exitError(foundry.ExitInvalidArgument, message, err)
	}
	return exitError(foundry.ExitExternalServiceUnavailable, message, err)
}

func inputLabel(in jobregistry.InputSummary) string {
	for _, v := range []string{in.Model, in.Image, in.ImageURL, in.Prompt} {
		if v != "" {
			return v
		}
	}
	return ""
}
