package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/hy3d/pkg/cos"
	"github.com/3leaps/hy3d/pkg/hunyuan"
	"github.com/3leaps/hy3d/pkg/job"
	"github.com/3leaps/hy3d/pkg/jobregistry"
	"github.com/3leaps/hy3d/pkg/preflight"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a 3D model from text or an image",
	Long: `Submit a Hunyuan 3D Pro generation job, wait for it and download the result.

Give exactly one of --prompt, --image or --image-url. Sketch generation
accepts a prompt together with an image.

Examples:
  hy3d generate --prompt "a wooden chair"
  hy3d generate --image chair.png --faces 200000 --pbr
  hy3d generate --image front.png --view left=left.png --view back=back.png
  hy3d generate --prompt "robot" --type LowPoly --polygon-type quadrilateral --wait=false`,
	Aliases: []string{"pro"},
	Args:    cobra.NoArgs,
	RunE:    runGenerate,
}

var (
	generatePrompt      string
	generateImage       string
	generateImageURL    string
	generateType        string
	generateFaces       int
	generatePBR         bool
	generatePolygonType string
	generateViews       []string
	generateFlags       jobFlags
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generatePrompt, "prompt", "p", "", "Text prompt")
	generateCmd.Flags().StringVarP(&generateImage, "image", "i", "", "Local input image or image URL")
	generateCmd.Flags().StringVar(&generateImageURL, "image-url", "", "Public input image URL")
	generateCmd.Flags().StringVar(&generateType, "type", "", "Generate type (Normal|LowPoly|Geometry|Sketch)")
	generateCmd.Flags().IntVar(&generateFaces, "faces", 0, "Target face count (40000-1500000, default 400000)")
	generateCmd.Flags().BoolVar(&generatePBR, "pbr", false, "Enable PBR materials")
	generateCmd.Flags().StringVar(&generatePolygonType, "polygon-type", "", "Polygon type for LowPoly (triangle|quadrilateral)")
	generateCmd.Flags().StringArrayVar(&generateViews, "view", nil, "Extra view image as <left|right|back>=<path> (repeatable)")
	generateFlags.register(generateCmd, true)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig(cmd.Context())
	if err != nil {
		return err
	}
	views, err := parseViews(generateViews)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --view", err)
	}
	image, imageURL := splitImageRef(generateImage, generateImageURL)

	spec := jobSpec{
		Kind: job.KindGeneration,
		Preflight: preflight.Input{
			Prompt:    generatePrompt,
			Image:     image,
			ImageURL:  imageURL,
			FaceCount: generateFaces,
		},
		Input: jobregistry.InputSummary{
			Prompt:   generatePrompt,
			Image:    image,
			ImageURL: imageURL,
			Options:  generateOptions(generateType, generateFaces, generatePBR, generatePolygonType, len(views)),
		},
		Build: func(ctx context.Context, env *jobEnv) (hunyuan.Request, error) {
			req, err := buildProRequest(proInput{
				Prompt:       generatePrompt,
				Image:        image,
				ImageURL:     imageURL,
				GenerateType: generateType,
				Faces:        generateFaces,
				PBR:          generatePBR,
				PolygonType:  generatePolygonType,
				Views:        views,
			})
			if err != nil {
				return nil, err
			}
			return req, nil
		},
	}
	return runJob(cmd, spec, generateFlags.settings(cmd, cfg))
}

// proInput is the resolved input of a generation job, from flags or a manifest.
type proInput struct {
	Prompt       string
	Image        string
	ImageURL     string
	GenerateType string
	Faces        int
	PBR          bool
	PolygonType  string
	Views        []viewRef
}

type viewRef struct {
	View string
	Path string
}

func buildProRequest(in proInput) (*hunyuan.ProRequest, error) {
	img, err := readBase64(in.Image)
	if err != nil {
		return nil, err
	}
	req := &hunyuan.ProRequest{
		Prompt:       in.Prompt,
		ImageBase64:  img,
		ImageURL:     in.ImageURL,
		GenerateType: in.GenerateType,
		FaceCount:    in.Faces,
		EnablePBR:    in.PBR,
		PolygonType:  in.PolygonType,
	}
	for _, v := range in.Views {
		data, err := readBase64(v.Path)
		if err != nil {
			return nil, err
		}
		req.MultiViewImages = append(req.MultiViewImages, hunyuan.ViewImage{ViewType: v.View, ImageBase64: data})
	}
	return req, req.Validate()
}

// parseViews parses repeated <view>=<path> flags.
func parseViews(raw []string) ([]viewRef, error) {
	var out []viewRef
	for _, r := range raw {
		view, path, ok := strings.Cut(r, "=")
		view = strings.ToLower(strings.TrimSpace(view))
		path = strings.TrimSpace(path)
		if !ok || view == "" || path == "" {
			return nil, fmt.Errorf("expected <view>=<path>, got %q", r)
		}
		out = append(out, viewRef{View: view, Path: path})
	}
	return out, nil
}

// splitImageRef routes an --image value that is really a URL to the URL field.
func splitImageRef(image, imageURL string) (string, string) {
	if imageURL == "" && cos.IsURL(image) {
		return "", strings.TrimSpace(image)
	}
	return image, imageURL
}

func generateOptions(generateType string, faces int, pbr bool, polygonType string, views int) map[string]string {
	opts := map[string]string{}
	if generateType != "" {
		opts["generate_type"] = generateType
	}
	if faces > 0 {
		opts["faces"] = strconv.Itoa(faces)
	}
	if pbr {
		opts["pbr"] = "true"
	}
	if polygonType != "" {
		opts["polygon_type"] = polygonType
	}
	if views > 0 {
		opts["views"] = strconv.Itoa(views)
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}
