package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffStrategy(t *testing.T) {
	b := newBackoffStrategy(4, time.Second, 5*time.Second)

	var delays []time.Duration
	for {
		d, ok := b.nextDelay()
		if !ok {
			break
		}
		delays = append(delays, d)
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}, delays)

	b.reset()
	d, ok := b.nextDelay()
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)
}

func TestBackoffStrategyUnlimited(t *testing.T) {
	b := newBackoffStrategy(0, time.Millisecond, time.Minute)
	for range 100 {
		d, ok := b.nextDelay()
		assert.True(t, ok)
		assert.LessOrEqual(t, d, time.Minute)
	}
}
