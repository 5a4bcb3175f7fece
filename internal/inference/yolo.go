package inference

import (
	"sort"
)

// yoloLayout describes a YOLOv8 style output tensor [1, 4+classes, anchors]
// laid out channel-major: value (c, i) lives at c*anchors + i.
type yoloLayout struct {
	classes int
	anchors int
	// normalized is true when box coordinates are in [0, 1] instead of input
	// pixels, as produced by tflite exports.
	normalized bool
}

// decodeParams carries per-call decoding inputs.
type decodeParams struct {
	inputSize    int
	srcWidth     int
	srcHeight    int
	threshold    float64
	iouThreshold float64
	labels       func(int) string
}

// candidate is a decoded box in source pixels before suppression.
type candidate struct {
	box        [4]float64
	confidence float64
	class      int
}

// decodeYOLO turns raw model output into detections in source pixel space.
func decodeYOLO(output []float32, layout yoloLayout, p decodeParams) []Detection {
	if layout.classes <= 0 || layout.anchors <= 0 || len(output) < (4+layout.classes)*layout.anchors {
		return nil
	}

	n := layout.anchors
	coordScale := 1.0
	if layout.normalized {
		coordScale = float64(p.inputSize)
	}
	scaleX := float64(p.srcWidth) / float64(p.inputSize)
	scaleY := float64(p.srcHeight) / float64(p.inputSize)

	var candidates []candidate
	for i := range n {
		best, bestScore := -1, float32(0)
		for c := range layout.classes {
			if score := output[(4+c)*n+i]; score > bestScore {
				best, bestScore = c, score
			}
		}
		if best < 0 || float64(bestScore) < p.threshold {
			continue
		}

		cx := float64(output[i]) * coordScale
		cy := float64(output[n+i]) * coordScale
		w := float64(output[2*n+i]) * coordScale
		h := float64(output[3*n+i]) * coordScale

		candidates = append(candidates, candidate{
			box: [4]float64{
				clamp((cx-w/2)*scaleX, 0, float64(p.srcWidth)),
				clamp((cy-h/2)*scaleY, 0, float64(p.srcHeight)),
				clamp((cx+w/2)*scaleX, 0, float64(p.srcWidth)),
				clamp((cy+h/2)*scaleY, 0, float64(p.srcHeight)),
			},
			confidence: float64(bestScore),
			class:      best,
		})
	}

	kept := nonMaxSuppression(candidates, p.iouThreshold)

	detections := make([]Detection, 0, len(kept))
	for _, c := range kept {
		detections = append(detections, Detection{
			BBox:       c.box,
			Confidence: c.confidence,
			Class:      p.labels(c.class),
		})
	}
	return detections
}

// nonMaxSuppression keeps the highest scoring box of every overlapping group,
// per class. The result is sorted by confidence descending.
func nonMaxSuppression(candidates []candidate, iouThreshold float64) []candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].confidence > candidates[j].confidence
	})

	kept := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		suppressed := false
		for _, k := range kept {
			if k.class == c.class && iou(k.box, c.box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}

// iou returns the intersection over union of two x1,y1,x2,y2 boxes.
func iou(a, b [4]float64) float64 {
	ix1, iy1 := max(a[0], b[0]), max(a[1], b[1])
	ix2, iy2 := min(a[2], b[2]), min(a[3], b[3])
	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

// anchorCount returns the number of YOLOv8 anchors for a square input with
// strides 8, 16 and 32.
func anchorCount(inputSize int) int {
	total := 0
	for _, stride := range []int{8, 16, 32} {
		side := inputSize / stride
		total += side * side
	}
	return total
}
