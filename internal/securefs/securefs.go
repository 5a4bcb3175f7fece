package securefs

import (
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/logger"
)

// GetLogger returns the securefs module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("securefs")
}

// SecureFS provides filesystem operations confined to a base directory.
// Every path is relative to the base and is validated before use; the
// underlying os.Root also refuses symlinks that escape the base.
type SecureFS struct {
	baseDir string
	root    *os.Root
}

// New creates the base directory if needed and opens it as a sandbox root.
func New(baseDir string) (*SecureFS, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem sandbox: %w", err)
	}

	return &SecureFS{baseDir: absPath, root: root}, nil
}

// BaseDir returns the absolute base directory.
func (sfs *SecureFS) BaseDir() string {
	return sfs.baseDir
}

// ValidateRelativePath cleans relPath and rejects absolute paths and any
// path that leaves the base directory.
func (sfs *SecureFS) ValidateRelativePath(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	cleaned := filepath.Clean(filepath.FromSlash(relPath))

	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path must be relative, got '%s'", ErrInvalidPath, relPath)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: '%s'", ErrPathTraversal, relPath)
	}
	if !filepath.IsLocal(cleaned) {
		return "", fmt.Errorf("%w: '%s' is not a local path", ErrInvalidPath, relPath)
	}
	return cleaned, nil
}

// AbsPath returns the absolute path of a validated relative path.
func (sfs *SecureFS) AbsPath(relPath string) (string, error) {
	validated, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(sfs.baseDir, validated), nil
}

// MkdirAll creates a directory and its parents inside the base directory.
func (sfs *SecureFS) MkdirAll(relPath string, perm os.FileMode) error {
	validated, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return err
	}
	if validated == "." {
		return nil
	}

	current := ""
	for _, component := range strings.Split(validated, string(filepath.Separator)) {
		current = filepath.Join(current, component)
		if err := sfs.root.Mkdir(current, perm); err != nil && !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("failed to create directory component %s: %w", current, err)
		}
	}
	return nil
}

// Create creates or truncates a file for writing.
func (sfs *SecureFS) Create(relPath string) (*os.File, error) {
	validated, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return nil, err
	}
	return sfs.root.OpenFile(validated, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
}

// Open opens a file for reading.
func (sfs *SecureFS) Open(relPath string) (*os.File, error) {
	validated, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return nil, err
	}
	return sfs.root.Open(validated)
}

// Stat returns file info.
func (sfs *SecureFS) Stat(relPath string) (fs.FileInfo, error) {
	validated, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return nil, err
	}
	return sfs.root.Stat(validated)
}

// Exists reports whether relPath names an existing regular file.
func (sfs *SecureFS) Exists(relPath string) (bool, error) {
	info, err := sfs.Stat(relPath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Remove removes a file or an empty directory.
func (sfs *SecureFS) Remove(relPath string) error {
	validated, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return err
	}
	return sfs.root.Remove(validated)
}

// RemoveAll removes a path and everything below it.
func (sfs *SecureFS) RemoveAll(relPath string) error {
	validated, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return err
	}
	if validated == "." {
		return fmt.Errorf("%w: refusing to remove the base directory", ErrInvalidPath)
	}
	return sfs.root.RemoveAll(validated)
}

// mapOpenErrorToHTTP converts file open errors to HTTP errors.
func mapOpenErrorToHTTP(err error, effectivePath string) *echo.HTTPError {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return echo.NewHTTPError(http.StatusNotFound, "File not found")
	case errors.Is(err, fs.ErrPermission):
		return echo.NewHTTPError(http.StatusForbidden, "Access denied")
	case errors.Is(err, ErrPathTraversal) || errors.Is(err, ErrInvalidPath):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid file path").SetInternal(err)
	case errors.Is(err, ErrNotRegularFile):
		return echo.NewHTTPError(http.StatusForbidden, "Not a regular file")
	default:
		GetLogger().Error("unhandled error serving file",
			logger.String("path", effectivePath),
			logger.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Error serving file").SetInternal(err)
	}
}

// getContentType returns the MIME type for a file extension.
func getContentType(path string) string {
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}

// ServeRelativeFile streams a file to the client. A Content-Type set by the
// caller is kept.
func (sfs *SecureFS) ServeRelativeFile(c echo.Context, relPath string) error {
	f, err := sfs.Open(relPath)
	if err != nil {
		return mapOpenErrorToHTTP(err, relPath)
	}
	defer func() {
		if err := f.Close(); err != nil {
			GetLogger().Warn("failed to close file", logger.Error(err))
		}
	}()

	stat, err := f.Stat()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get file info").SetInternal(err)
	}
	if !stat.Mode().IsRegular() {
		return mapOpenErrorToHTTP(ErrNotRegularFile, relPath)
	}

	if c.Response().Header().Get(echo.HeaderContentType) == "" {
		c.Response().Header().Set(echo.HeaderContentType, getContentType(relPath))
	}

	http.ServeContent(c.Response(), c.Request(), filepath.Base(relPath), stat.ModTime(), f)
	return nil
}

// Close closes the sandbox root.
func (sfs *SecureFS) Close() error {
	if sfs.root != nil {
		return sfs.root.Close()
	}
	return nil
}
