package file

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/fallwatch/internal/analysis"
	"github.com/tphakala/fallwatch/internal/conf"
)

// Command creates a new file command for analyzing a single video file.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file [input.mp4]",
		Short: "Analyze a video file",
		Long:  `Run fall detection over a single video, write the annotated copy and print a JSON summary.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.FileAnalysis(settings, args[0], cmd.OutOrStdout())
		},
	}

	setupFlags(cmd, settings)

	return cmd
}

// setupFlags configures flags specific to the file command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.Flags().StringVarP(&settings.Storage.OutputDir, "output", "o", settings.Storage.OutputDir, "Directory for annotated videos")
	cmd.Flags().BoolVar(&settings.Storage.KeepUploads, "keep", settings.Storage.KeepUploads, "Keep the copied source video")
}
