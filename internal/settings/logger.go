package settings

import "github.com/tphakala/fallwatch/internal/logger"

// GetLogger returns the settings module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("settings")
}
