package auth

import "github.com/tphakala/fallwatch/internal/logger"

// GetLogger returns the auth module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("auth")
}
