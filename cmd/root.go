package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/fallwatch/cmd/file"
	"github.com/tphakala/fallwatch/cmd/realtime"
	"github.com/tphakala/fallwatch/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fallwatch",
		Short: "FallWatch fall detection",
		// Errors are logged by main.
		SilenceUsage: true,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	rootCmd.AddCommand(
		file.Command(settings),
		realtime.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Model.Path, "model", viper.GetString("model.path"), "Path to the detection model (.onnx or .tflite)")
	rootCmd.PersistentFlags().StringVar(&settings.Model.LabelPath, "labels", viper.GetString("model.labelpath"), "Path to the class label file")
	rootCmd.PersistentFlags().IntVar(&settings.Model.Threads, "threads", viper.GetInt("model.threads"), "Number of inference threads, 0 for automatic")
	rootCmd.PersistentFlags().StringVar(&settings.Capture.FfmpegPath, "ffmpeg", viper.GetString("capture.ffmpegpath"), "Path to the ffmpeg binary")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("model.path", rootCmd.PersistentFlags().Lookup("model")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
