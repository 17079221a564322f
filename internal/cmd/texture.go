package cmd

import (
	"github.com/spf13/cobra"

	"github.com/3leaps/hy3d/pkg/job"
)

var textureCmd = &cobra.Command{
	Use:     "texture <model.fbx>",
	Short:   "Re-texture a model from a prompt or reference image",
	Aliases: []string{"texture-edit"},
	Long: `Submit a texture-edit job. Give exactly one of --prompt, --image or
--image-url.

Examples:
  hy3d texture chair.fbx --prompt "weathered oak" --pbr
  hy3d texture chair.fbx --image swatch.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runModelJob(cmd, &textureFlags, modelInput{
			Kind:     job.KindTextureEdit,
			Model:    args[0],
			Prompt:   texturePrompt,
			Image:    textureImage,
			ImageURL: textureImageURL,
			PBR:      texturePBR,
		})
	},
}

var (
	texturePrompt   string
	textureImage    string
	textureImageURL string
	texturePBR      bool
	textureFlags    jobFlags
)

func init() {
	rootCmd.AddCommand(textureCmd)

	textureCmd.Flags().StringVarP(&texturePrompt, "prompt", "p", "", "Texture prompt")
	textureCmd.Flags().StringVarP(&textureImage, "image", "i", "", "Reference image file or URL (JPG or PNG)")
	textureCmd.Flags().StringVar(&textureImageURL, "image-url", "", "Reference image URL")
	textureCmd.Flags().BoolVar(&texturePBR, "pbr", false, "Enable PBR materials (prompt edits only)")
	textureFlags.register(textureCmd, true)
}
