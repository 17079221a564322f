package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/hy3d/pkg/job"
	"github.com/3leaps/hy3d/pkg/jobregistry"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect locally recorded jobs",
	Long: `Inspect the local job registry.

Every submitted job is recorded under the jobs directory (config jobs.root,
default <app data dir>/jobs) with its state, inputs, result URLs and an event
log. Use 'hy3d query <job-id> --wait' to resume a job that timed out.`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded jobs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job and its event log",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)

	jobsListCmd.Flags().Bool("json", false, "Output as JSON")
	jobsListCmd.Flags().String("state", "", "Only jobs in this state (submitted|running|done|failed|timeout)")
	jobsListCmd.Flags().String("kind", "", "Only jobs of this kind")
	jobsListCmd.Flags().Int("limit", 0, "Show at most N jobs (0 = all)")
	jobsShowCmd.Flags().Bool("json", false, "Output as JSON")
}

func jobsStore(cmd *cobra.Command) (*jobregistry.Store, error) {
	cfg, err := currentConfig(cmd.Context())
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	return jobregistry.NewStore(cfg.Jobs.Root), nil
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	state, _ := cmd.Flags().GetString("state")
	kindFlag, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")

	var kind job.Kind
	if kindFlag != "" {
		k, err := job.ParseKind(kindFlag)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --kind", err)
		}
		kind = k
	}

	store, err := jobsStore(cmd)
	if err != nil {
		return err
	}
	all, err := store.List()
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read job registry", err)
	}

	jobs := make([]jobregistry.JobRecord, 0, len(all))
	for _, j := range all {
		if state != "" && string(j.State) != state {
			continue
		}
		if kind != "" && j.Kind != kind {
			continue
		}
		jobs = append(jobs, j)
		if limit > 0 && len(jobs) == limit {
			break
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	}
	if len(jobs) == 0 {
		_, _ = fmt.Fprintln(out, "No jobs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "JOB ID\tKIND\tSTATE\tCREATED\tFILES\tNAME")
	for _, j := range jobs {
		name := j.Name
		if name == "" {
			name = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			j.JobID,
			j.Kind,
			j.State,
			j.CreatedAt.UTC().Format(time.RFC3339),
			len(j.Downloaded),
			name,
		)
	}
	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := jobsStore(cmd)
	if err != nil {
		return err
	}
	jobID, err := resolveJobID(store, args[0])
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Job not found", err)
	}
	rec, err := store.Get(jobID)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read job", err)
	}
	events, err := store.Events(jobID)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read job events", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"job": rec, "events": events})
	}

	_, _ = fmt.Fprintf(out, "job_id=%s\n", rec.JobID)
	_, _ = fmt.Fprintf(out, "kind=%s\n", rec.Kind)
	_, _ = fmt.Fprintf(out, "state=%s\n", rec.State)
	if rec.Name != "" {
		_, _ = fmt.Fprintf(out, "name=%s\n", rec.Name)
	}
	if rec.Endpoint != nil && rec.Endpoint.Region != "" {
		_, _ = fmt.Fprintf(out, "region=%s\n", rec.Endpoint.Region)
	}
	if rec.OutputDir != "" {
		_, _ = fmt.Fprintf(out, "output_dir=%s\n", rec.OutputDir)
	}
	_, _ = fmt.Fprintf(out, "polls=%d\n", rec.Polls)
	_, _ = fmt.Fprintf(out, "created_at=%s\n", rec.CreatedAt.UTC().Format(time.RFC3339))
	if rec.CompletedAt != nil {
		_, _ = fmt.Fprintf(out, "completed_at=%s\n", rec.CompletedAt.UTC().Format(time.RFC3339))
	}
	if rec.ErrorCode != "" || rec.ErrorMessage != "" {
		_, _ = fmt.Fprintf(out, "error=%s - %s\n", rec.ErrorCode, rec.ErrorMessage)
	}
	for _, u := range rec.ResultURLs {
		_, _ = fmt.Fprintf(out, "result_url=%s\n", u)
	}
	for _, p := range rec.Downloaded {
		_, _ = fmt.Fprintf(out, "downloaded=%s\n", p)
	}
	for _, ev := range events {
		detail := ev.Status
		if ev.File != "" {
			detail = ev.File
		}
		if ev.Message != "" {
			detail = ev.Message
		}
		_, _ = fmt.Fprintf(out, "event=%s %s %s %s\n",
			ev.TS.UTC().Format(time.RFC3339), ev.Type, ev.State, detail)
	}
	return nil
}

// resolveJobID accepts a full job id or a unique prefix.
func resolveJobID(store *jobregistry.Store, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("job id is required")
	}

	if _, err := store.Get(input); err == nil {
		return input, nil
	} else if !errors.Is(err, jobregistry.ErrNotFound) {
		return "", err
	}

	jobs, err := store.List()
	if err != nil {
		return "", err
	}
	matches := make([]string, 0, 2)
	for _, j := range jobs {
		if strings.HasPrefix(j.JobID, input) {
			matches = append(matches, j.JobID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("job not found: %s", input)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("job id prefix %q is ambiguous (%d matches)", input, len(matches))
	}
}
