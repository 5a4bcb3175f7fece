package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/fallwatch/internal/inference"
)

func TestEvaluateCooldownDebounce(t *testing.T) {
	const window = 30 * time.Second
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	falls := []inference.Detection{fall(0.9, 10)}

	ok, state := EvaluateCooldown(falls, CooldownState{}, t0, window)
	assert.True(t, ok)
	assert.Equal(t, t0, state.LastQualifying)

	ok, next := EvaluateCooldown(falls, state, t0.Add(10*time.Second), window)
	assert.False(t, ok)
	assert.Equal(t, state, next, "suppressed falls must not move the anchor")

	ok, next = EvaluateCooldown(falls, state, t0.Add(31*time.Second), window)
	assert.True(t, ok)
	assert.Equal(t, t0.Add(31*time.Second), next.LastQualifying)
}

func TestEvaluateCooldownIsNotSliding(t *testing.T) {
	const window = 30 * time.Second
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	falls := []inference.Detection{fall(0.9, 10)}

	_, state := EvaluateCooldown(falls, CooldownState{}, t0, window)
	_, state = EvaluateCooldown(falls, state, t0.Add(20*time.Second), window)
	ok, _ := EvaluateCooldown(falls, state, t0.Add(35*time.Second), window)
	assert.True(t, ok, "window is anchored on the first event")
}

func TestEvaluateCooldownMultipleBoxesUpdateOnce(t *testing.T) {
	const window = 30 * time.Second
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	frame := []inference.Detection{fall(0.6, 0), fall(0.8, 200), fall(0.7, 400)}

	ok, state := EvaluateCooldown(frame, CooldownState{}, t0, window)
	assert.True(t, ok)
	assert.Equal(t, t0, state.LastQualifying)

	ok, _ = EvaluateCooldown(frame, state, t0.Add(29*time.Second), window)
	assert.False(t, ok)
	ok, _ = EvaluateCooldown(frame, state, t0.Add(30*time.Second), window)
	assert.True(t, ok)
}

func TestEvaluateCooldownIgnoresNonFalls(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	state := CooldownState{}

	ok, next := EvaluateCooldown([]inference.Detection{person(0.99)}, state, t0, time.Minute)
	assert.False(t, ok)
	assert.Equal(t, state, next)

	ok, _ = EvaluateCooldown(nil, state, t0, time.Minute)
	assert.False(t, ok)
}

func TestEvaluateCooldownZeroWindow(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	falls := []inference.Detection{fall(0.9, 10)}

	_, state := EvaluateCooldown(falls, CooldownState{}, t0, 0)
	ok, _ := EvaluateCooldown(falls, state, t0, 0)
	assert.True(t, ok)
}

func TestBestFall(t *testing.T) {
	best, ok := BestFall([]inference.Detection{person(0.99), fall(0.6, 0), fall(0.8, 200), {Class: "Falling", Confidence: 0.7}})
	assert.True(t, ok)
	assert.InDelta(t, 0.8, best.Confidence, 1e-9)

	_, ok = BestFall([]inference.Detection{person(0.9)})
	assert.False(t, ok)
}
