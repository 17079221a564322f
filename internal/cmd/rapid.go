package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3leaps/hy3d/pkg/hunyuan"
	"github.com/3leaps/hy3d/pkg/job"
	"github.com/3leaps/hy3d/pkg/jobregistry"
	"github.com/3leaps/hy3d/pkg/preflight"
)

var rapidCmd = &cobra.Command{
	Use:   "rapid",
	Short: "Generate a 3D model quickly at lower fidelity",
	Long: `Submit a Hunyuan 3D Rapid job. Prompts are limited to 200 bytes.

Examples:
  hy3d rapid --prompt "a teapot"
  hy3d rapid --image teapot.jpg --format GLB --pbr`,
	Args: cobra.NoArgs,
	RunE: runRapid,
}

var (
	rapidPrompt   string
	rapidImage    string
	rapidImageURL string
	rapidFormat   string
	rapidPBR      bool
	rapidGeometry bool
	rapidFlags    jobFlags
)

func init() {
	rootCmd.AddCommand(rapidCmd)

	rapidCmd.Flags().StringVarP(&rapidPrompt, "prompt", "p", "", "Text prompt")
	rapidCmd.Flags().StringVarP(&rapidImage, "image", "i", "", "Local input image or image URL")
	rapidCmd.Flags().StringVar(&rapidImageURL, "image-url", "", "Public input image URL")
	rapidCmd.Flags().StringVar(&rapidFormat, "format", "", "Result format (OBJ|GLB|STL|USDZ|FBX|MP4, default STL)")
	rapidCmd.Flags().BoolVar(&rapidPBR, "pbr", false, "Enable PBR materials")
	rapidCmd.Flags().BoolVar(&rapidGeometry, "geometry", false, "Generate geometry only (no texture)")
	rapidFlags.register(rapidCmd, true)
}

func runRapid(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig(cmd.Context())
	if err != nil {
		return err
	}
	image, imageURL := splitImageRef(rapidImage, rapidImageURL)

	opts := map[string]string{}
	if rapidFormat != "" {
		opts["result_format"] = strings.ToUpper(rapidFormat)
	}
	if rapidPBR {
		opts["pbr"] = "true"
	}
	if rapidGeometry {
		opts["geometry"] = "true"
	}
	if len(opts) == 0 {
		opts = nil
	}

	spec := jobSpec{
		Kind:      job.KindRapidGeneration,
		Preflight: preflight.Input{Prompt: rapidPrompt, Image: image, ImageURL: imageURL},
		Input:     jobregistry.InputSummary{Prompt: rapidPrompt, Image: image, ImageURL: imageURL, Options: opts},
		Build: func(ctx context.Context, env *jobEnv) (hunyuan.Request, error) {
			return buildRapidRequest(rapidPrompt, image, imageURL, rapidFormat, rapidPBR, rapidGeometry)
		},
	}
	return runJob(cmd, spec, rapidFlags.settings(cmd, cfg))
}

func buildRapidRequest(prompt, image, imageURL, format string, pbr, geometry bool) (hunyuan.Request, error) {
	img, err := readBase64(image)
	if err != nil {
		return nil, err
	}
	req := &hunyuan.RapidRequest{
		Prompt:         prompt,
		ImageBase64:    img,
		ImageURL:       imageURL,
		ResultFormat:   format,
		EnablePBR:      pbr,
		EnableGeometry: geometry,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}
