package eventlog

import "github.com/tphakala/fallwatch/internal/logger"

// GetLogger returns the eventlog module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("eventlog")
}
