package cmd

import (
	"github.com/spf13/cobra"

	"github.com/3leaps/hy3d/pkg/job"
)

var partCmd = &cobra.Command{
	Use:   "part <model.fbx>",
	Short: "Split a model into parts",
	Long: `Submit a part-decomposition job. The service accepts FBX models
(around 30k faces and under 100 MB recommended).

Examples:
  hy3d part robot.fbx
  hy3d part https://example.com/robot.fbx --output parts/`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runModelJob(cmd, &partFlags, modelInput{
			Kind:     job.KindPartDecomposition,
			Model:    args[0],
			FileType: partFileType,
		})
	},
}

var (
	partFileType string
	partFlags    jobFlags
)

func init() {
	rootCmd.AddCommand(partCmd)

	partCmd.Flags().StringVar(&partFileType, "file-type", "", "Model type (FBX)")
	partFlags.register(partCmd, true)
}
