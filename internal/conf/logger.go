package conf

import "github.com/tphakala/fallwatch/internal/logger"

// GetLogger returns the config module logger. It is fetched on each call so
// it picks up the central logger once that has been configured.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
