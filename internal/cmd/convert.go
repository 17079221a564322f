package cmd

import (
	"github.com/spf13/cobra"

	"github.com/3leaps/hy3d/pkg/job"
)

var convertCmd = &cobra.Command{
	Use:   "convert <model> --format <FORMAT>",
	Short: "Convert a model to another format",
	Long: `Convert an FBX, OBJ or GLB model to STL, USDZ, FBX, MP4 or GIF.

Conversion completes in a single call; the result is downloaded right away.

Examples:
  hy3d convert chair.glb --format USDZ
  hy3d convert https://example.com/chair.fbx --format MP4 --name chair-turntable`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runModelJob(cmd, &convertFlags, modelInput{
			Kind:   job.KindConversion,
			Model:  args[0],
			Format: convertFormat,
		})
	},
}

var (
	convertFormat string
	convertFlags  jobFlags
)

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", "", "Target format (STL|USDZ|FBX|MP4|GIF)")
	_ = convertCmd.MarkFlagRequired("format")
	convertFlags.register(convertCmd, true)
}
