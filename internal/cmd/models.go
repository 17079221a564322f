package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3leaps/hy3d/pkg/cos"
	"github.com/3leaps/hy3d/pkg/hunyuan"
	"github.com/3leaps/hy3d/pkg/job"
	"github.com/3leaps/hy3d/pkg/jobregistry"
	"github.com/3leaps/hy3d/pkg/preflight"
)

// modelInput is the input of a job that operates on an existing model.
type modelInput struct {
	Kind  job.Kind
	Model string

	// FileType overrides detection from the model extension.
	FileType string

	PolygonType string
	FaceLevel   string

	// Texture edit guidance.
	Prompt   string
	Image    string
	ImageURL string
	PBR      bool

	// Format is the conversion target.
	Format string
}

// buildModelRequest resolves the model reference and builds the request for
// in.Kind. Local models are uploaded to COS; retopology falls back to inline
// content when no bucket is configured.
func buildModelRequest(ctx context.Context, env *jobEnv, in modelInput) (hunyuan.Request, error) {
	fileType := in.FileType
	if fileType == "" {
		fileType = hunyuan.DetectFileType(in.Model)
	}

	var req hunyuan.Request
	switch in.Kind {
	case job.KindRetopology:
		file := hunyuan.File3D{Type: fileType}
		url, err := env.resolveModel(ctx, in.Model, string(in.Kind))
		switch {
		case errors.Is(err, cos.ErrNotConfigured):
			content, rerr := readBase64(in.Model)
			if rerr != nil {
				return nil, rerr
			}
			file.Content = content
		case err != nil:
			return nil, err
		default:
			file.URL = url
		}
		req = &hunyuan.TopologyRequest{File: file, PolygonType: in.PolygonType, FaceLevel: in.FaceLevel}

	case job.KindPartDecomposition:
		url, err := env.resolveModel(ctx, in.Model, string(in.Kind))
		if err != nil {
			return nil, err
		}
		req = &hunyuan.PartRequest{FileURL: url, FileType: in.FileType}

	case job.KindTextureEdit:
		url, err := env.resolveModel(ctx, in.Model, string(in.Kind))
		if err != nil {
			return nil, err
		}
		img, err := readBase64(in.Image)
		if err != nil {
			return nil, err
		}
		req = &hunyuan.TextureEditRequest{
			FileURL:     url,
			Prompt:      in.Prompt,
			ImageBase64: img,
			ImageURL:    in.ImageURL,
			EnablePBR:   in.PBR,
		}

	case job.KindUVUnwrap:
		url, err := env.resolveModel(ctx, in.Model, string(in.Kind))
		if err != nil {
			return nil, err
		}
		req = &hunyuan.UVRequest{FileURL: url, FileType: fileType}

	case job.KindConversion:
		url, err := env.resolveModel(ctx, in.Model, string(in.Kind))
		if err != nil {
			return nil, err
		}
		req = &hunyuan.ConvertRequest{FileURL: url, Format: in.Format}

	default:
		return nil, errors.New("not a model job kind: " + string(in.Kind))
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// modelSpec wraps a modelInput into a jobSpec.
func modelSpec(in modelInput) jobSpec {
	image, imageURL := splitImageRef(in.Image, in.ImageURL)
	in.Image, in.ImageURL = image, imageURL

	opts := map[string]string{}
	for k, v := range map[string]string{
		"file_type":    strings.ToUpper(in.FileType),
		"polygon_type": in.PolygonType,
		"face_level":   in.FaceLevel,
		"format":       strings.ToUpper(in.Format),
	} {
		if v != "" {
			opts[k] = v
		}
	}
	if in.PBR {
		opts["pbr"] = "true"
	}
	if len(opts) == 0 {
		opts = nil
	}

	return jobSpec{
		Kind: in.Kind,
		Preflight: preflight.Input{
			Model:    in.Model,
			Prompt:   in.Prompt,
			Image:    in.Image,
			ImageURL: in.ImageURL,
		},
		Input: jobregistry.InputSummary{
			Model:    in.Model,
			Prompt:   in.Prompt,
			Image:    in.Image,
			ImageURL: in.ImageURL,
			Options:  opts,
		},
		Build: func(ctx context.Context, env *jobEnv) (hunyuan.Request, error) {
			return buildModelRequest(ctx, env, in)
		},
	}
}

// runModelJob is the RunE body shared by the model commands.
func runModelJob(cmd *cobra.Command, flags *jobFlags, in modelInput) error {
	cfg, err := currentConfig(cmd.Context())
	if err != nil {
		return err
	}
	return runJob(cmd, modelSpec(in), flags.settings(cmd, cfg))
}
