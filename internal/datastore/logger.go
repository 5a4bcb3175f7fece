// Package datastore opens the relational store used for detection events,
// settings and user accounts.
package datastore

import "github.com/tphakala/fallwatch/internal/logger"

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}
