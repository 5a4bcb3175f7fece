package ffmpeg

import (
	"bufio"
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestJPEG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for y := range 8 {
		for x := range 16 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}))
	return buf.Bytes()
}

func scanAll(t *testing.T, data []byte, oneByte bool) [][]byte {
	t.Helper()
	var r = bytes.NewReader(data)
	scanner := bufio.NewScanner(r)
	if oneByte {
		scanner = bufio.NewScanner(iotest.OneByteReader(r))
	}
	scanner.Split(ScanJPEG)

	var frames [][]byte
	for scanner.Scan() {
		frames = append(frames, bytes.Clone(scanner.Bytes()))
	}
	require.NoError(t, scanner.Err())
	return frames
}

func TestScanJPEGSplitsFrames(t *testing.T) {
	red := encodeTestJPEG(t, color.RGBA{R: 255, A: 255})
	blue := encodeTestJPEG(t, color.RGBA{B: 255, A: 255})

	var stream []byte
	stream = append(stream, []byte("noise")...)
	stream = append(stream, red...)
	stream = append(stream, 0x00, 0xFF)
	stream = append(stream, blue...)

	for _, oneByte := range []bool{false, true} {
		frames := scanAll(t, stream, oneByte)
		require.Len(t, frames, 2)
		assert.Equal(t, red, frames[0])
		assert.Equal(t, blue, frames[1])

		_, err := jpeg.Decode(bytes.NewReader(frames[1]))
		assert.NoError(t, err)
	}
}

func TestScanJPEGDropsTruncatedFrame(t *testing.T) {
	frame := encodeTestJPEG(t, color.White)

	stream := append(bytes.Clone(frame), frame[:len(frame)/2]...)
	frames := scanAll(t, stream, false)
	require.Len(t, frames, 1)
	assert.Equal(t, frame, frames[0])

	assert.Empty(t, scanAll(t, []byte("no frames here"), false))
	assert.Empty(t, scanAll(t, nil, false))
}
