package inference

import "github.com/tphakala/fallwatch/internal/logger"

// GetLogger returns the inference module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("inference")
}
