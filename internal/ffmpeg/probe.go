package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/fallwatch/internal/conf"
)

// probeTimeout bounds a single ffprobe call when ctx has no deadline.
const probeTimeout = 10 * time.Second

// FfprobePath returns the ffprobe binary that sits next to ffmpegPath, or the
// bare binary name to be resolved from PATH.
func FfprobePath(ffmpegPath string) string {
	name := conf.GetFfprobeBinaryName()
	if dir := filepath.Dir(ffmpegPath); ffmpegPath != "" && dir != "." {
		return filepath.Join(dir, name)
	}
	return name
}

// ProbeFrameRate returns the average frame rate of the first video stream in
// path.
func ProbeFrameRate(ctx context.Context, ffprobePath, path string) (float64, error) {
	if path == "" {
		return 0, fmt.Errorf("video path cannot be empty")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, probeTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, ffprobePath, //nolint:gosec // G204: path from validated settings
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe canceled: %w", ctx.Err())
		}
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = err.Error()
		}
		return 0, fmt.Errorf("ffprobe failed: %s", errMsg)
	}

	return ParseFrameRate(strings.TrimSpace(out.String()))
}

// ParseFrameRate parses an ffprobe rate such as "30000/1001" or "25".
func ParseFrameRate(raw string) (float64, error) {
	num, den, found := strings.Cut(raw, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse frame rate '%s': %w", raw, err)
	}
	d := 1.0
	if found {
		if d, err = strconv.ParseFloat(den, 64); err != nil {
			return 0, fmt.Errorf("failed to parse frame rate '%s': %w", raw, err)
		}
	}
	if n <= 0 || d <= 0 {
		return 0, fmt.Errorf("invalid frame rate '%s'", raw)
	}
	return n / d, nil
}
