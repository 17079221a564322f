package cmd

import (
	"github.com/spf13/cobra"

	"github.com/3leaps/hy3d/pkg/job"
)

var topologyCmd = &cobra.Command{
	Use:     "topology <model>",
	Short:   "Retopologize a model",
	Aliases: []string{"smart-topology", "retopology"},
	Long: `Submit a smart-topology job for a local model file or model URL.

Local files are uploaded to COS when cos_bucket is configured and sent inline
otherwise.

Examples:
  hy3d topology chair.glb --polygon-type quadrilateral
  hy3d topology https://example.com/chair.obj --face-level low`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runModelJob(cmd, &topologyFlags, modelInput{
			Kind:        job.KindRetopology,
			Model:       args[0],
			FileType:    topologyFileType,
			PolygonType: topologyPolygonType,
			FaceLevel:   topologyFaceLevel,
		})
	},
}

var (
	topologyFileType    string
	topologyPolygonType string
	topologyFaceLevel   string
	topologyFlags       jobFlags
)

func init() {
	rootCmd.AddCommand(topologyCmd)

	topologyCmd.Flags().StringVar(&topologyFileType, "file-type", "", "Model type (GLB|GLTF|OBJ|FBX|STL, default from extension)")
	topologyCmd.Flags().StringVar(&topologyPolygonType, "polygon-type", "", "Polygon type (triangle|quadrilateral)")
	topologyCmd.Flags().StringVar(&topologyFaceLevel, "face-level", "", "Face level (high|medium|low)")
	topologyFlags.register(topologyCmd, true)
}
