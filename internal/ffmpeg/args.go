package ffmpeg

import (
	"path/filepath"
	"strconv"
	"strings"
)

// StreamArgs returns the arguments that decode a live camera stream into
// mjpeg frames on stdout. transport applies to rtsp URLs only and frameRate
// is dropped when zero.
func StreamArgs(url, transport string, frameRate int) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if strings.HasPrefix(strings.ToLower(url), "rtsp://") {
		if transport == "" {
			transport = "tcp"
		}
		args = append(args, "-rtsp_transport", transport)
	}
	args = append(args, "-i", url)
	if frameRate > 0 {
		args = append(args, "-r", strconv.Itoa(frameRate))
	}
	return append(args, "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "5", "-")
}

// DecodeArgs returns the arguments that decode every frame of a video file
// at source resolution into mjpeg frames on stdout.
func DecodeArgs(path string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "2",
		"-",
	}
}

// EncodeArgs returns the arguments that read mjpeg frames from stdin and
// write a video at frameRate to output. The codec follows the container.
func EncodeArgs(output string, frameRate float64) []string {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	codec := "libx264"
	if strings.EqualFold(filepath.Ext(output), ".avi") {
		codec = "mpeg4"
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-f", "image2pipe", "-vcodec", "mjpeg",
		"-framerate", strconv.FormatFloat(frameRate, 'f', -1, 64),
		"-i", "-",
		"-c:v", codec,
		"-pix_fmt", "yuv420p",
		output,
	}
}
