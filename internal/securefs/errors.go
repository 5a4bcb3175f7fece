// Package securefs restricts file access to a base directory using os.Root,
// for upload and output storage that is addressed by client supplied names.
package securefs

import (
	"github.com/tphakala/fallwatch/internal/errors"
)

// Sentinel errors for the securefs package.
var (
	// ErrPathTraversal indicates an attempt to leave the base directory,
	// e.g. with "../".
	ErrPathTraversal = errors.NewStd("security error: path attempts to traverse outside base directory")

	// ErrInvalidPath indicates an invalid path, e.g. an
	// absolute path where a relative one is required.
	ErrInvalidPath = errors.NewStd("security error: invalid path")

	// ErrNotRegularFile indicates an attempt to serve something that is not
	// a regular file.
	ErrNotRegularFile = errors.NewStd("security error: not a regular file")
)
