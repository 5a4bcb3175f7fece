package annotate

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fallwatch/internal/inference"
)

func grayFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

func TestDrawColorsByClass(t *testing.T) {
	src := grayFrame(200, 100)
	dets := []inference.Detection{
		{BBox: [4]float64{10, 40, 60, 90}, Confidence: 0.91, Class: "fall"},
		{BBox: [4]float64{100, 40, 150, 90}, Confidence: 0.66, Class: "person"},
	}

	out := Draw(src, dets)

	assert.Equal(t, FallColor, out.RGBAAt(30, 40))
	assert.Equal(t, OtherColor, out.RGBAAt(120, 40))
	assert.Equal(t, color.RGBA{128, 128, 128, 128}, src.RGBAAt(30, 40), "source must not be modified")
}

func TestDrawClipsBoxesAtEdges(t *testing.T) {
	src := grayFrame(64, 64)
	out := Draw(src, []inference.Detection{
		{BBox: [4]float64{0, 0, 64, 64}, Confidence: 0.5, Class: "Fall-Detected"},
	})
	assert.Equal(t, FallColor, out.RGBAAt(0, 0))
	assert.Equal(t, FallColor, out.RGBAAt(63, 63))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "fall 0.87", Label(inference.Detection{Class: "fall", Confidence: 0.8712}))
	assert.Equal(t, "person 1.00", Label(inference.Detection{Class: "person", Confidence: 1}))
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(grayFrame(640, 360), DefaultQuality)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 360, cfg.Height)
}
