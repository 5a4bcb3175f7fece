package inference

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildOutput creates a channel-major [4+classes, anchors] tensor.
type box struct {
	cx, cy, w, h float32
	scores       []float32
}

func buildOutput(classes, anchors int, boxes []box) []float32 {
	out := make([]float32, (4+classes)*anchors)
	for i, b := range boxes {
		out[i] = b.cx
		out[anchors+i] = b.cy
		out[2*anchors+i] = b.w
		out[3*anchors+i] = b.h
		for c, s := range b.scores {
			out[(4+c)*anchors+i] = s
		}
	}
	return out
}

func labelsOf(names ...string) func(int) string {
	return func(i int) string { return names[i] }
}

func TestDecodeYOLOPixelCoordinates(t *testing.T) {
	out := buildOutput(2, 4, []box{
		{cx: 320, cy: 320, w: 100, h: 200, scores: []float32{0.9, 0.1}},
		{cx: 100, cy: 100, w: 50, h: 50, scores: []float32{0.2, 0.3}},
	})

	dets := decodeYOLO(out, yoloLayout{classes: 2, anchors: 4}, decodeParams{
		inputSize:    640,
		srcWidth:     1280,
		srcHeight:    720,
		threshold:    0.5,
		iouThreshold: 0.45,
		labels:       labelsOf("fall", "person"),
	})

	require.Len(t, dets, 1)
	assert.Equal(t, "fall", dets[0].Class)
	assert.InDelta(t, 0.9, dets[0].Confidence, 1e-6)
	// x scaled by 2, y by 1.125
	assert.InDelta(t, 540, dets[0].BBox[0], 1e-6)
	assert.InDelta(t, 247.5, dets[0].BBox[1], 1e-6)
	assert.InDelta(t, 740, dets[0].BBox[2], 1e-6)
	assert.InDelta(t, 472.5, dets[0].BBox[3], 1e-6)
}

func TestDecodeYOLONormalizedAndClamped(t *testing.T) {
	out := buildOutput(1, 2, []box{
		{cx: 0.05, cy: 0.5, w: 0.2, h: 0.2, scores: []float32{0.8}},
	})

	dets := decodeYOLO(out, yoloLayout{classes: 1, anchors: 2, normalized: true}, decodeParams{
		inputSize:    640,
		srcWidth:     640,
		srcHeight:    640,
		threshold:    0.5,
		iouThreshold: 0.45,
		labels:       labelsOf("fall"),
	})

	require.Len(t, dets, 1)
	assert.InDelta(t, 0, dets[0].BBox[0], 1e-6, "x1 clamps at 0")
	assert.InDelta(t, 96, dets[0].BBox[2], 1e-3)
	assert.InDelta(t, 256, dets[0].BBox[1], 1e-3)
}

func TestDecodeYOLOThresholdIsInclusive(t *testing.T) {
	out := buildOutput(1, 1, []box{{cx: 10, cy: 10, w: 4, h: 4, scores: []float32{0.5}}})
	params := decodeParams{inputSize: 640, srcWidth: 640, srcHeight: 640, iouThreshold: 0.45, labels: labelsOf("fall")}

	params.threshold = 0.5
	assert.Len(t, decodeYOLO(out, yoloLayout{classes: 1, anchors: 1}, params), 1)
	params.threshold = 0.6
	assert.Empty(t, decodeYOLO(out, yoloLayout{classes: 1, anchors: 1}, params))
}

func TestDecodeYOLORejectsShortOutput(t *testing.T) {
	assert.Nil(t, decodeYOLO(make([]float32, 3), yoloLayout{classes: 2, anchors: 4}, decodeParams{}))
}

func TestNonMaxSuppressionPerClass(t *testing.T) {
	candidates := []candidate{
		{box: [4]float64{0, 0, 100, 100}, confidence: 0.7, class: 0},
		{box: [4]float64{5, 5, 105, 105}, confidence: 0.9, class: 0},
		{box: [4]float64{5, 5, 105, 105}, confidence: 0.8, class: 1},
		{box: [4]float64{300, 300, 400, 400}, confidence: 0.6, class: 0},
	}

	kept := nonMaxSuppression(candidates, 0.45)

	require.Len(t, kept, 3)
	assert.InDelta(t, 0.9, kept[0].confidence, 1e-9)
	assert.Equal(t, 1, kept[1].class, "overlapping box of another class survives")
	assert.InDelta(t, 0.6, kept[2].confidence, 1e-9)
}

func TestIoU(t *testing.T) {
	tests := []struct {
		a, b [4]float64
		want float64
	}{
		{[4]float64{0, 0, 10, 10}, [4]float64{0, 0, 10, 10}, 1},
		{[4]float64{0, 0, 10, 10}, [4]float64{20, 20, 30, 30}, 0},
		{[4]float64{0, 0, 10, 10}, [4]float64{5, 0, 15, 10}, 50.0 / 150.0},
		{[4]float64{0, 0, 10, 10}, [4]float64{10, 0, 20, 10}, 0},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			assert.InDelta(t, tt.want, iou(tt.a, tt.b), 1e-9)
		})
	}
}

func TestAnchorCount(t *testing.T) {
	assert.Equal(t, 8400, anchorCount(640))
	assert.Equal(t, 2100, anchorCount(320))
}
