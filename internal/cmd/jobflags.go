package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/3leaps/hy3d/internal/config"
	"github.com/3leaps/hy3d/pkg/poll"
)

// jobFlags holds the wait and download flags shared by every job command.
type jobFlags struct {
	wait     bool
	download bool
	poll     float64
	maxWait  float64
	maxPolls int
	output   string
	json     bool
	include  []string
	name     string
}

// register adds the shared flags to cmd. Job commands wait and download by
// default; query only does so on request.
func (f *jobFlags) register(cmd *cobra.Command, waitByDefault bool) {
	fl := cmd.Flags()
	fl.BoolVar(&f.wait, "wait", waitByDefault, "Poll until the job finishes")
	fl.BoolVar(&f.download, "download", waitByDefault, "Download result files once the job is done")
	fl.Float64Var(&f.poll, "poll", 0, "Seconds between status queries (default from config, 10)")
	fl.Float64Var(&f.maxWait, "max-wait", 0, "Give up after this many seconds (0 waits indefinitely)")
	fl.IntVar(&f.maxPolls, "max-polls", 0, "Give up after this many status queries (0 is unlimited)")
	fl.StringVarP(&f.output, "output", "o", "", "Download directory (default from config, .)")
	fl.BoolVar(&f.json, "json", false, "Emit JSONL records on stdout")
	fl.StringSliceVar(&f.include, "include", nil, "Only download result files matching this glob (repeatable)")
	fl.StringVar(&f.name, "name", "", "Base name for downloaded files")
}

// runSettings is the resolved behaviour of one run: flags over config.
type runSettings struct {
	Wait      bool
	Download  bool
	Poll      poll.Config
	OutputDir string
	Include   []string
	JSON      bool
	Name      string
}

func (f *jobFlags) settings(cmd *cobra.Command, cfg *config.Config) runSettings {
	s := runSettings{
		Wait:     f.wait,
		Download: f.download,
		Poll: poll.Config{
			Interval: cfg.Poll.Interval,
			MaxWait:  cfg.Poll.MaxWait,
			MaxPolls: cfg.Poll.MaxPolls,
		},
		OutputDir: cfg.Download.Output,
		Include:   f.include,
		JSON:      f.json,
		Name:      f.name,
	}

	fl := cmd.Flags()
	if fl.Changed("poll") {
		s.Poll.Interval = seconds(f.poll)
	}
	if fl.Changed("max-wait") {
		s.Poll.MaxWait = seconds(f.maxWait)
	}
	if fl.Changed("max-polls") {
		s.Poll.MaxPolls = f.maxPolls
	}
	if fl.Changed("output") {
		s.OutputDir = f.output
	}
	if s.OutputDir == "" {
		s.OutputDir = "."
	}
	// Downloading needs a finished job.
	if !s.Wait && !fl.Changed("download") {
		s.Download = false
	}
	return s
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
