package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/hy3d/internal/observability"
	"github.com/3leaps/hy3d/pkg/job"
	"github.com/3leaps/hy3d/pkg/jobregistry"
	"github.com/3leaps/hy3d/pkg/output"
	"github.com/3leaps/hy3d/pkg/poll"
	"github.com/3leaps/hy3d/pkg/preflight"
)

var queryCmd = &cobra.Command{
	Use:   "query <job-id>",
	Short: "Check or resume a submitted job",
	Long: `Query the status of a job submitted earlier.

Without --wait a single query is made. With --wait the job is polled until it
finishes and, unless --download=false, its result files are downloaded.

The job kind is taken from the local job registry when the job was submitted
from this machine; otherwise pass --kind (default generation).

Examples:
  hy3d query 1375367755519696896
  hy3d query 1375367755519696896 --wait --output models/
  hy3d query 1375367755519696896 --kind part --wait --max-wait 600`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var (
	queryKind  string
	queryFlags jobFlags
)

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVarP(&queryKind, "kind", "k", "", "Job kind or alias (default from registry, then generation)")
	queryFlags.register(queryCmd, false)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	jobID := args[0]

	cfg, err := currentConfig(ctx)
	if err != nil {
		return err
	}
	s := queryFlags.settings(cmd, cfg)
	// --download implies waiting for the result.
	if s.Download {
		s.Wait = true
	}

	runID := uuid.NewString()
	var w output.Writer = output.Discard
	if s.JSON {
		jw := output.NewJSONLWriter(cmd.OutOrStdout(), runID, "")
		jw.SetJobID(jobID)
		w = jw
		defer func() { _ = jw.Close() }()
	}

	if err := runPreflight(ctx, w, preflight.Input{Query: true, JobID: jobID}); err != nil {
		return err
	}

	env, err := newJobEnvFunc(cmd)
	if err != nil {
		return err
	}

	existing, err := env.store.Get(jobID)
	if err != nil && !errors.Is(err, jobregistry.ErrNotFound) {
		observability.CLILogger.Warn("Failed to read job registry", zap.Error(err))
	}
	kind, err := resolveQueryKind(queryKind, existing)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --kind", err)
	}
	if kind == job.KindConversion {
		return exitError(foundry.ExitInvalidArgument, "Invalid --kind",
			errors.New("conversion jobs complete synchronously and cannot be queried"))
	}

	query := func(ctx context.Context, id string) (*job.Snapshot, error) {
		return env.client.Query(ctx, kind, id)
	}

	rec := existing
	if rec == nil {
		rec = &jobregistry.JobRecord{
			JobID:     jobID,
			Kind:      kind,
			Endpoint:  &jobregistry.Endpoint{Region: env.secrets.Region, Host: env.secrets.Endpoint},
			OutputDir: s.OutputDir,
		}
	}
	rec.RunID = runID
	if s.Name == "" {
		s.Name = rec.Name
	}
	if !cmd.Flags().Changed("output") && rec.OutputDir != "" {
		s.OutputDir = rec.OutputDir
	}
	rec.OutputDir = s.OutputDir

	if !s.Wait {
		return queryOnce(ctx, env, w, query, jobID, rec, s)
	}

	tracker := beginTracking(env, rec)
	return awaitJob(ctx, env, awaitParams{
		JobID:    jobID,
		Query:    query,
		Writer:   w,
		Tracker:  tracker,
		Settings: s,
	})
}

// queryOnce makes a single status query. A terminal status is finished through
// the engine so failures and results are reported the same way as with --wait.
func queryOnce(ctx context.Context, env *jobEnv, w output.Writer, query poll.QueryFunc, jobID string, rec *jobregistry.JobRecord, s runSettings) error {
	start := time.Now()
	snap, err := query(ctx, jobID)
	if err != nil {
		_ = w.WriteError(ctx, &output.ErrorRecord{Code: output.ErrCodeRemote, Message: err.Error()})
		return remoteError("Status query failed", err)
	}

	if snap.Status.Terminal() {
		tracker := beginTracking(env, rec)
		return awaitJob(ctx, env, awaitParams{
			JobID:    jobID,
			Query:    fixed(snap),
			Writer:   w,
			Tracker:  tracker,
			Settings: s,
		})
	}

	_ = w.WriteStatus(ctx, poll.StatusRecord(1, time.Since(start), snap))
	observability.CLILogger.Info("Job status",
		zap.String("job_id", jobID),
		zap.String("status", string(snap.Status)),
		zap.String("raw_status", snap.RawStatus))
	if !s.JSON {
		fmt.Fprintf(env.out, "%s: %s\n", jobID, snap.Status)
	}
	return nil
}

// fixed returns a query that always reports snap.
func fixed(snap *job.Snapshot) poll.QueryFunc {
	return func(ctx context.Context, jobID string) (*job.Snapshot, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return snap, nil
	}
}

func resolveQueryKind(flag string, rec *jobregistry.JobRecord) (job.Kind, error) {
	if flag != "" {
		return job.ParseKind(flag)
	}
	if rec != nil && rec.Kind != "" {
		return rec.Kind, nil
	}
	return job.KindGeneration, nil
}
