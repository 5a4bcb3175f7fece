package batch

import "github.com/tphakala/fallwatch/internal/logger"

// GetLogger returns the batch module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("batch")
}
