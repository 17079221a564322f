package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/hy3d/internal/config"
	"github.com/3leaps/hy3d/pkg/job"
	"github.com/3leaps/hy3d/pkg/jobregistry"
)

func seedJobs(t *testing.T) *jobregistry.Store {
	t.Helper()
	root := filepath.Join(t.TempDir(), "jobs")
	withConfig(t, &config.Config{Jobs: config.JobsConfig{Root: root}})
	store := jobregistry.NewStore(root)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, rec := range []jobregistry.JobRecord{
		{JobID: "1375367755519696896", Kind: job.KindGeneration, State: jobregistry.JobStateDone, Name: "chair", Downloaded: []string{"chair.glb"}},
		{JobID: "1375367755519699999", Kind: job.KindPartDecomposition, State: jobregistry.JobStateFailed, ErrorCode: "InvalidParameter", ErrorMessage: "bad model"},
		{JobID: "2000000000000000001", Kind: job.KindGeneration, State: jobregistry.JobStateTimeout},
	} {
		rec.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		tr, err := store.Begin(&rec)
		require.NoError(t, err)
		require.NotNil(t, tr)
	}
	return store
}

func jobsListCommand(out *bytes.Buffer, args ...string) *cobra.Command {
	c := &cobra.Command{Use: "list"}
	c.Flags().Bool("json", false, "")
	c.Flags().String("state", "", "")
	c.Flags().String("kind", "", "")
	c.Flags().Int("limit", 0, "")
	_ = c.ParseFlags(args)
	c.SetContext(context.Background())
	c.SetOut(out)
	return c
}

func TestJobsList(t *testing.T) {
	seedJobs(t)

	t.Run("table newest first", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runJobsList(jobsListCommand(&out), nil))
		lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
		require.Len(t, lines, 4)
		assert.Contains(t, string(lines[0]), "JOB ID")
		assert.Contains(t, string(lines[1]), "2000000000000000001")
		assert.Contains(t, string(lines[3]), "chair")
	})

	t.Run("filter by kind alias", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runJobsList(jobsListCommand(&out, "--kind", "part", "--json"), nil))
		var jobs []jobregistry.JobRecord
		require.NoError(t, json.Unmarshal(out.Bytes(), &jobs))
		require.Len(t, jobs, 1)
		assert.Equal(t, "1375367755519699999", jobs[0].JobID)
	})

	t.Run("filter by state with limit", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runJobsList(jobsListCommand(&out, "--state", "done", "--limit", "1", "--json"), nil))
		var jobs []jobregistry.JobRecord
		require.NoError(t, json.Unmarshal(out.Bytes(), &jobs))
		require.Len(t, jobs, 1)
		assert.Equal(t, jobregistry.JobStateDone, jobs[0].State)
	})

	t.Run("no matches", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runJobsList(jobsListCommand(&out, "--state", "running"), nil))
		assert.Equal(t, "No jobs found\n", out.String())
	})

	t.Run("invalid kind", func(t *testing.T) {
		var out bytes.Buffer
		err := runJobsList(jobsListCommand(&out, "--kind", "sculpt"), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid --kind")
	})
}

func TestJobsShow(t *testing.T) {
	seedJobs(t)

	t.Run("by prefix", func(t *testing.T) {
		var out bytes.Buffer
		c := &cobra.Command{Use: "show"}
		c.Flags().Bool("json", false, "")
		c.SetContext(context.Background())
		c.SetOut(&out)

		require.NoError(t, runJobsShow(c, []string{"2000"}))
		s := out.String()
		assert.Contains(t, s, "job_id=2000000000000000001\n")
		assert.Contains(t, s, "state=timeout\n")
		assert.Contains(t, s, "event=")
	})

	t.Run("failed job shows error", func(t *testing.T) {
		var out bytes.Buffer
		c := &cobra.Command{Use: "show"}
		c.Flags().Bool("json", false, "")
		c.SetContext(context.Background())
		c.SetOut(&out)

		require.NoError(t, runJobsShow(c, []string{"1375367755519699999"}))
		assert.Contains(t, out.String(), "error=InvalidParameter - bad model\n")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		c := &cobra.Command{Use: "show"}
		c.Flags().Bool("json", false, "")
		require.NoError(t, c.ParseFlags([]string{"--json"}))
		c.SetContext(context.Background())
		c.SetOut(&out)

		require.NoError(t, runJobsShow(c, []string{"1375367755519696896"}))
		var got struct {
			Job    jobregistry.JobRecord `json:"job"`
			Events []jobregistry.Event   `json:"events"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		assert.Equal(t, "chair", got.Job.Name)
		require.Len(t, got.Events, 1)
		assert.Equal(t, jobregistry.EventSubmitted, got.Events[0].Type)
	})
}

func TestResolveJobID(t *testing.T) {
	store := seedJobs(t)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "exact", input: "1375367755519696896", want: "1375367755519696896"},
		{name: "unique prefix", input: "2000", want: "2000000000000000001"},
		{name: "trims space", input: " 2000 ", want: "2000000000000000001"},
		{name: "ambiguous prefix", input: "137536775551969", wantErr: "ambiguous"},
		{name: "unknown", input: "9999", wantErr: "job not found"},
		{name: "empty", input: "  ", wantErr: "required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveJobID(store, tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
