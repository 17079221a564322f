package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/hy3d/internal/observability"
	"github.com/3leaps/hy3d/pkg/hunyuan"
	"github.com/3leaps/hy3d/pkg/job"
	"github.com/3leaps/hy3d/pkg/jobregistry"
	"github.com/3leaps/hy3d/pkg/manifest"
	"github.com/3leaps/hy3d/pkg/poll"
	"github.com/3leaps/hy3d/pkg/preflight"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a job from a manifest",
	Long: `Run a job as defined in a YAML or JSON manifest file.

The manifest names the job kind, its inputs and options, and how to wait for
and download the result.

Example manifest:
  version: "1.0"
  kind: generation
  prompt: a wooden chair
  options:
    faces: 200000
    pbr: true
  output: ./models
  max_wait: 900

Examples:
  hy3d run --job chair.yaml
  hy3d run --job chair.yaml --json
  hy3d run --job chair.yaml --dry-run`,
	Args: cobra.NoArgs,
	RunE: runManifest,
}

var (
	runJobPath string
	runDryRun  bool
	runJSON    bool
	runOutput  string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runJobPath, "job", "j", "", "Path to job manifest (required)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Validate the manifest and show the plan without submitting")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Emit JSONL records on stdout")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Override the manifest output directory")

	_ = runCmd.MarkFlagRequired("job")
}

func runManifest(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(runJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", runJobPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}
	kind, err := m.JobKind()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}
	if runOutput != "" {
		m.Output = runOutput
	}

	observability.CLILogger.Debug("Loaded manifest",
		zap.String("path", runJobPath),
		zap.String("kind", string(kind)))

	spec, err := manifestSpec(m, kind)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}
	s := manifestSettings(m)

	if runDryRun {
		showRunPlan(cmd, m, kind, s)
		return nil
	}
	return runJob(cmd, spec, s)
}

// manifestSettings maps the manifest's run options onto runSettings.
func manifestSettings(m *manifest.Manifest) runSettings {
	return runSettings{
		Wait:     m.WaitEnabled(),
		Download: m.WaitEnabled() && m.DownloadEnabled(),
		Poll: poll.Config{
			Interval: m.PollInterval(),
			MaxWait:  m.MaxWaitDuration(),
			MaxPolls: m.MaxPolls,
		},
		OutputDir: m.Output,
		Include:   m.Include,
		JSON:      runJSON,
		Name:      m.Name,
	}
}

// manifestSpec builds the jobSpec for a validated manifest.
func manifestSpec(m *manifest.Manifest, kind job.Kind) (jobSpec, error) {
	o := m.Options
	switch kind {
	case job.KindGeneration:
		image, imageURL := splitImageRef(m.Image, m.ImageURL)
		in := proInput{
			Prompt:       m.Prompt,
			Image:        image,
			ImageURL:     imageURL,
			GenerateType: o.GenerateType,
			Faces:        o.Faces,
			PBR:          o.PBR,
			PolygonType:  o.PolygonType,
		}
		for _, v := range o.Views {
			in.Views = append(in.Views, viewRef{View: v.View, Path: v.Image})
		}
		return jobSpec{
			Kind:      kind,
			Preflight: preflight.Input{Prompt: in.Prompt, Image: in.Image, ImageURL: in.ImageURL, FaceCount: in.Faces},
			Input: jobregistry.InputSummary{
				Prompt:   in.Prompt,
				Image:    in.Image,
				ImageURL: in.ImageURL,
				Options:  generateOptions(o.GenerateType, o.Faces, o.PBR, o.PolygonType, len(in.Views)),
			},
			Build: func(ctx context.Context, env *jobEnv) (hunyuan.Request, error) {
				req, err := buildProRequest(in)
				if err != nil {
					return nil, err
				}
				return req, nil
			},
		}, nil

	case job.KindRapidGeneration:
		image, imageURL := splitImageRef(m.Image, m.ImageURL)
		opts := map[string]string{}
		if o.ResultFormat != "" {
			opts["result_format"] = o.ResultFormat
		}
		if o.PBR {
			opts["pbr"] = strconv.FormatBool(o.PBR)
		}
		if o.Geometry {
			opts["geometry"] = strconv.FormatBool(o.Geometry)
		}
		return jobSpec{
			Kind:      kind,
			Preflight: preflight.Input{Prompt: m.Prompt, Image: image, ImageURL: imageURL},
			Input:     jobregistry.InputSummary{Prompt: m.Prompt, Image: image, ImageURL: imageURL, Options: opts},
			Build: func(ctx context.Context, env *jobEnv) (hunyuan.Request, error) {
				return buildRapidRequest(m.Prompt, image, imageURL, o.ResultFormat, o.PBR, o.Geometry)
			},
		}, nil

	case job.KindRetopology, job.KindPartDecomposition, job.KindTextureEdit, job.KindUVUnwrap, job.KindConversion:
		return modelSpec(modelInput{
			Kind:        kind,
			Model:       m.Model,
			FileType:    o.FileType,
			PolygonType: o.PolygonType,
			FaceLevel:   o.FaceLevel,
			Prompt:      m.Prompt,
			Image:       m.Image,
			ImageURL:    m.ImageURL,
			PBR:         o.PBR,
			Format:      o.Format,
		}), nil
	}
	return jobSpec{}, fmt.Errorf("unsupported job kind %q", kind)
}

func showRunPlan(cmd *cobra.Command, m *manifest.Manifest, kind job.Kind, s runSettings) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Manifest: %s\n", runJobPath)
	fmt.Fprintf(w, "Kind:     %s\n", kind)
	for _, in := range []struct{ label, value string }{
		{"Prompt", m.Prompt},
		{"Image", m.Image},
		{"ImageURL", m.ImageURL},
		{"Model", m.Model},
	} {
		if in.value != "" {
			fmt.Fprintf(w, "%-9s %s\n", in.label+":", in.value)
		}
	}
	fmt.Fprintf(w, "Wait:     %t (poll %s, max wait %s, max polls %d)\n",
		s.Wait, s.Poll.Interval, s.Poll.MaxWait, s.Poll.MaxPolls)
	fmt.Fprintf(w, "Download: %t -> %s\n", s.Download, s.OutputDir)
	if len(s.Include) > 0 {
		fmt.Fprintf(w, "Include:  %v\n", s.Include)
	}
	report := preflight.Check(manifestPreflight(m, kind))
	for _, f := range report.Findings {
		if f.Severity == preflight.SeverityOK {
			continue
		}
		fmt.Fprintf(w, "Preflight %s: %s (%s)\n", f.Severity, f.Detail, f.Check)
	}
}

func manifestPreflight(m *manifest.Manifest, kind job.Kind) preflight.Input {
	spec, err := manifestSpec(m, kind)
	if err != nil {
		return preflight.Input{Kind: kind}
	}
	in := spec.Preflight
	in.Kind = kind
	return in
}
