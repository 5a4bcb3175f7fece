package ffmpeg

import "github.com/tphakala/fallwatch/internal/logger"

// GetLogger returns the ffmpeg module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("ffmpeg")
}
