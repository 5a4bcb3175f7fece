//go:build linux || darwin

package ffmpeg

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeScript writes an executable shell script standing in for ffmpeg.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestDecoderReadsFramesUntilEOF(t *testing.T) {
	frame := encodeTestJPEG(t, color.White)
	input := filepath.Join(t.TempDir(), "frames.bin")
	require.NoError(t, os.WriteFile(input, append(bytes.Clone(frame), frame...), 0o600))

	dec, err := StartDecoder(context.Background(), writeScript(t, "cat '"+input+"'"), nil)
	require.NoError(t, err)
	defer func() { assert.NoError(t, dec.Close()) }()

	for range 2 {
		got, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, frame, got)
	}
	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoderReportsStderr(t *testing.T) {
	dec, err := StartDecoder(context.Background(), writeScript(t, "echo 'rtsp://cam: Connection refused' >&2; exit 1"), nil)
	require.NoError(t, err)
	defer func() { _ = dec.Close() }()

	_, err = dec.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Connection refused")
}

func TestDecoderCloseKillsProcess(t *testing.T) {
	dec, err := StartDecoder(context.Background(), writeScript(t, "exec sleep 30"), nil)
	require.NoError(t, err)

	require.NoError(t, dec.Close())
	require.NoError(t, dec.Close())
}

func TestEncoderWritesStdin(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.bin")
	enc, err := StartEncoder(context.Background(), writeScript(t, "cat > '"+output+"'"), nil)
	require.NoError(t, err)

	frame := encodeTestJPEG(t, color.Black)
	require.NoError(t, enc.WriteFrame(frame))
	require.NoError(t, enc.WriteFrame(frame))
	require.NoError(t, enc.Close())

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, append(bytes.Clone(frame), frame...), got)
}
