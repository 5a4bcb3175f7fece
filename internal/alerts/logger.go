package alerts

import "github.com/tphakala/fallwatch/internal/logger"

// GetLogger returns the alerts module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("alerts")
}
