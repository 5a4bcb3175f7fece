//go:build linux || darwin

package capture

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fallwatch/internal/errors"
)

// fakeFFmpeg writes a shell script that prints frames.bin and then idles
// like a live stream.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 24)), nil))
	return buf.Bytes()
}

func TestFFmpegSourceReadsLatestFrame(t *testing.T) {
	frames := filepath.Join(t.TempDir(), "frames.bin")
	frame := testJPEG(t)
	require.NoError(t, os.WriteFile(frames, append(bytes.Clone(frame), frame...), 0o600))

	src := NewFFmpegSource("rtsp://cam/stream", fakeFFmpeg(t, "cat '"+frames+"'\nexec sleep 30"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, src.Open(ctx))

	img, err := src.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())

	// the stream stalls after two frames, so reads run dry
	reads := 1
	for {
		short, cancelShort := context.WithTimeout(context.Background(), 100*time.Millisecond)
		_, err = src.ReadFrame(short)
		cancelShort()
		if err != nil {
			break
		}
		reads++
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.LessOrEqual(t, reads, 2)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err = src.ReadFrame(context.Background())
	assert.Error(t, err)
}

func TestFFmpegSourceRestartsAfterStreamDrop(t *testing.T) {
	dir := t.TempDir()
	frame := filepath.Join(dir, "frame.jpg")
	require.NoError(t, os.WriteFile(frame, testJPEG(t), 0o600))
	runs := filepath.Join(dir, "runs")

	// The first run emits one frame and dies like a dropped RTSP session.
	// Later runs stream until killed.
	script := "echo run >> '" + runs + "'\n" +
		"if [ $(( $(wc -l < '" + runs + "') )) -le 1 ]; then cat '" + frame + "'; exit 1; fi\n" +
		"while true; do cat '" + frame + "'; sleep 0.05; done"
	src := NewFFmpegSource("rtsp://cam/stream", fakeFFmpeg(t, script),
		WithRestartBackoff(20*time.Millisecond, 100*time.Millisecond, 0))
	t.Cleanup(func() { _ = src.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, src.Open(ctx))

	_, err := src.ReadFrame(ctx)
	require.NoError(t, err)

	// Reads fail while ffmpeg is down and succeed again once it restarts.
	var recovered bool
	for !recovered && ctx.Err() == nil {
		short, cancelShort := context.WithTimeout(ctx, 200*time.Millisecond)
		_, err = src.ReadFrame(short)
		cancelShort()
		if err == nil {
			recovered = true
			continue
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, recovered, "source did not recover after ffmpeg exited")

	for range 3 {
		_, err = src.ReadFrame(ctx)
		require.NoError(t, err)
	}

	data, err := os.ReadFile(runs)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, bytes.Count(data, []byte("run")), 2)

	require.NoError(t, src.Close())
	_, err = src.ReadFrame(context.Background())
	assert.Error(t, err)
}

func TestFFmpegSourceRestartsExhausted(t *testing.T) {
	dir := t.TempDir()
	frame := filepath.Join(dir, "frame.jpg")
	require.NoError(t, os.WriteFile(frame, testJPEG(t), 0o600))
	runs := filepath.Join(dir, "runs")

	// Only the first run produces a frame; every restart fails.
	script := "echo run >> '" + runs + "'\n" +
		"if [ $(( $(wc -l < '" + runs + "') )) -le 1 ]; then cat '" + frame + "'; fi\n" +
		"echo 'Connection refused' >&2\nexit 1"
	src := NewFFmpegSource("rtsp://cam/stream", fakeFFmpeg(t, script),
		WithRestartBackoff(5*time.Millisecond, 10*time.Millisecond, 2))
	t.Cleanup(func() { _ = src.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, src.Open(ctx))
	_, err := src.ReadFrame(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		data, _ := os.ReadFile(runs)
		return bytes.Count(data, []byte("run")) == 3
	}, 5*time.Second, 10*time.Millisecond)

	_, err = src.ReadFrame(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Connection refused")
}

func TestFFmpegSourceOpenFailure(t *testing.T) {
	src := NewFFmpegSource("rtsp://cam/stream", fakeFFmpeg(t, "echo 'Connection refused' >&2\nexit 1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := src.Open(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryRTSP))
	assert.Contains(t, err.Error(), "Connection refused")
	require.NoError(t, src.Close())
}

func TestFFmpegSourceRequiresURL(t *testing.T) {
	err := NewFFmpegSource("", "ffmpeg").Open(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
