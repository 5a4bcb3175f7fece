package capture

import (
	"time"

	"github.com/tphakala/fallwatch/internal/inference"
)

// CooldownState holds the anchor of the last qualifying fall event.
type CooldownState struct {
	LastQualifying time.Time
}

// Active reports whether the cooldown window that started at the last
// qualifying event is still open at now.
func (c CooldownState) Active(now time.Time, window time.Duration) bool {
	if c.LastQualifying.IsZero() {
		return false
	}
	return now.Sub(c.LastQualifying) < window
}

// EvaluateCooldown decides whether a frame's detections form a new
// qualifying fall event. The anchor moves at most once per frame and only
// when the cooldown is inactive, so repeated falls inside the window never
// extend it.
func EvaluateCooldown(dets []inference.Detection, state CooldownState, now time.Time, window time.Duration) (bool, CooldownState) {
	if _, ok := BestFall(dets); !ok {
		return false, state
	}
	if state.Active(now, window) {
		return false, state
	}
	return true, CooldownState{LastQualifying: now}
}

// BestFall returns the highest confidence fall detection.
func BestFall(dets []inference.Detection) (inference.Detection, bool) {
	var (
		best  inference.Detection
		found bool
	)
	for _, d := range dets {
		if !inference.IsFall(d.Class) {
			continue
		}
		if !found || d.Confidence > best.Confidence {
			best, found = d, true
		}
	}
	return best, found
}
