package realtime

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/fallwatch/internal/analysis"
	"github.com/tphakala/fallwatch/internal/conf"
)

// Command creates the command that serves the API and the live camera session.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Serve the detection API",
		Long:  "Start the HTTP API, live camera analysis and fall alerting.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RealtimeAnalysis(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Listen, "listen", viper.GetString("webserver.listen"), "Listen address of the HTTP API")
	cmd.Flags().StringVar(&settings.Capture.Transport, "rtsptransport", viper.GetString("capture.transport"), "RTSP transport (tcp/udp)")
	cmd.Flags().IntVar(&settings.Capture.FrameRate, "fps", viper.GetInt("capture.framerate"), "Frames per second decoded from the camera, 0 keeps source rate")
	cmd.Flags().BoolVar(&settings.WebServer.Metrics, "metrics", viper.GetBool("webserver.metrics"), "Expose Prometheus metrics at /metrics")
	cmd.Flags().BoolVar(&settings.Security.RequireAuth, "requireauth", viper.GetBool("security.requireauth"), "Require admin credentials on settings and delete endpoints")

	if err := viper.BindPFlag("webserver.listen", cmd.Flags().Lookup("listen")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
