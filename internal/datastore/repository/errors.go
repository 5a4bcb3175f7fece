package repository

import "github.com/tphakala/fallwatch/internal/errors"

// Sentinel errors for repository operations.
var (
	// ErrEventNotFound indicates the requested detection event does not exist.
	ErrEventNotFound = errors.NewStd("detection event not found")

	// ErrSettingNotFound indicates the setting key is not part of the seeded set.
	ErrSettingNotFound = errors.NewStd("setting not found")

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.NewStd("user not found")

	// ErrDuplicateUsername indicates a user with the same name already exists.
	ErrDuplicateUsername = errors.NewStd("username already exists")
)
