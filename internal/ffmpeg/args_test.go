package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamArgs(t *testing.T) {
	args := StreamArgs("rtsp://cam/stream", "", 0)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-rtsp_transport", "tcp",
		"-i", "rtsp://cam/stream",
		"-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "5", "-",
	}, args)

	args = StreamArgs("http://cam/video.mjpg", "udp", 5)
	assert.NotContains(t, args, "-rtsp_transport")
	assert.Contains(t, args, "-r")
	assert.Equal(t, "-", args[len(args)-1])
}

func TestEncodeArgsCodecFollowsContainer(t *testing.T) {
	tests := []struct {
		output string
		codec  string
	}{
		{"out/clip.mp4", "libx264"},
		{"out/clip.AVI", "mpeg4"},
		{"out/clip.mkv", "libx264"},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			args := EncodeArgs(tt.output, 0)
			assert.Equal(t, tt.output, args[len(args)-1])
			assert.Contains(t, args, tt.codec)
			assert.Contains(t, args, "25")
		})
	}
}

func TestParseFrameRate(t *testing.T) {
	fps, err := ParseFrameRate("30000/1001")
	require.NoError(t, err)
	assert.InDelta(t, 29.97, fps, 0.01)

	fps, err = ParseFrameRate("25")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, fps, 1e-9)

	for _, bad := range []string{"", "0/0", "N/A", "30/x"} {
		_, err := ParseFrameRate(bad)
		assert.Error(t, err, bad)
	}
}

func TestFfprobePath(t *testing.T) {
	assert.Equal(t, "ffprobe", FfprobePath(""))
	assert.Equal(t, "ffprobe", FfprobePath("ffmpeg"))
	assert.Equal(t, "/opt/ffmpeg/bin/ffprobe", FfprobePath("/opt/ffmpeg/bin/ffmpeg"))
}
