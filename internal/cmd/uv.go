package cmd

import (
	"github.com/spf13/cobra"

	"github.com/3leaps/hy3d/pkg/job"
)

var uvCmd = &cobra.Command{
	Use:     "uv <model>",
	Short:   "Unwrap UVs for a model",
	Aliases: []string{"uv-unwrap"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runModelJob(cmd, &uvFlags, modelInput{
			Kind:     job.KindUVUnwrap,
			Model:    args[0],
			FileType: uvFileType,
		})
	},
}

var (
	uvFileType string
	uvFlags    jobFlags
)

func init() {
	rootCmd.AddCommand(uvCmd)

	uvCmd.Flags().StringVar(&uvFileType, "file-type", "", "Model type (FBX|OBJ|GLB, default from extension)")
	uvFlags.register(uvCmd, true)
}
