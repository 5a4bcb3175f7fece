package capture

import "github.com/tphakala/fallwatch/internal/logger"

// GetLogger returns the capture module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("capture")
}
