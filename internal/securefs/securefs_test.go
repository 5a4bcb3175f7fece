package securefs

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupSecureFS creates a SecureFS rooted in a temporary directory.
func setupSecureFS(t *testing.T) (sfs *SecureFS, tempDir string) {
	t.Helper()

	tempDir = t.TempDir()
	sfs, err := New(tempDir)
	require.NoError(t, err, "Failed to create SecureFS")
	t.Cleanup(func() { _ = sfs.Close() })

	return sfs, tempDir
}

func TestValidateRelativePath(t *testing.T) {
	t.Parallel()
	sfs, _ := setupSecureFS(t)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{"simple", "abc123/clip.mp4", filepath.Join("abc123", "clip.mp4"), nil},
		{"dot segments inside", "abc123/./x/../clip.mp4", filepath.Join("abc123", "clip.mp4"), nil},
		{"parent traversal", "../etc/passwd", "", ErrPathTraversal},
		{"nested traversal", "abc/../../secret", "", ErrPathTraversal},
		{"absolute", "/etc/passwd", "", ErrInvalidPath},
		{"empty", "", "", ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := sfs.ValidateRelativePath(tt.path)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateOpenRemove(t *testing.T) {
	t.Parallel()
	sfs, tempDir := setupSecureFS(t)

	require.NoError(t, sfs.MkdirAll("abc123/nested", 0o750))
	f, err := sfs.Create("abc123/nested/clip.mp4")
	require.NoError(t, err)
	_, err = f.WriteString("video")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(filepath.Join(tempDir, "abc123", "nested", "clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))

	exists, err := sfs.Exists("abc123/nested/clip.mp4")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = sfs.Exists("abc123/nested")
	require.NoError(t, err)
	assert.False(t, exists, "directories are not files")

	abs, err := sfs.AbsPath("abc123/nested/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sfs.BaseDir(), "abc123", "nested", "clip.mp4"), abs)

	require.NoError(t, sfs.RemoveAll("abc123"))
	exists, err = sfs.Exists("abc123/nested/clip.mp4")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.ErrorIs(t, sfs.RemoveAll("."), ErrInvalidPath)
}

func TestSymlinkEscapeIsRefused(t *testing.T) {
	t.Parallel()
	sfs, tempDir := setupSecureFS(t)

	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o600))
	if err := os.Symlink(outside, filepath.Join(tempDir, "link")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	_, err := sfs.Open("link/secret.txt")
	assert.Error(t, err)
}

func TestServeRelativeFile(t *testing.T) {
	t.Parallel()
	sfs, tempDir := setupSecureFS(t)
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "clip.avi"), []byte("avi-bytes"), 0o600))

	e := echo.New()
	serve := func(path, contentType string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if contentType != "" {
			c.Response().Header().Set(echo.HeaderContentType, contentType)
		}
		if err := sfs.ServeRelativeFile(c, path); err != nil {
			e.HTTPErrorHandler(err, c)
		}
		return rec
	}

	rec := serve("clip.avi", "video/x-msvideo")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/x-msvideo", rec.Header().Get(echo.HeaderContentType))
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "avi-bytes", string(body))

	assert.Equal(t, http.StatusNotFound, serve("missing.mp4", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve("../clip.avi", "").Code)
}
