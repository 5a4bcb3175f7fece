package capture

import "time"

const (
	defaultRestartDelay    = time.Second
	defaultMaxRestartDelay = 30 * time.Second
)

// backoffStrategy doubles the delay between decoder restarts up to maxDelay.
// A maxAttempts of zero retries forever.
type backoffStrategy struct {
	attempt      int
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

func newBackoffStrategy(maxAttempts int, initialDelay, maxDelay time.Duration) *backoffStrategy {
	return &backoffStrategy{
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

// nextDelay returns the next delay, or false once maxAttempts is used up.
func (b *backoffStrategy) nextDelay() (time.Duration, bool) {
	if b.maxAttempts > 0 && b.attempt >= b.maxAttempts {
		return 0, false
	}
	delay := b.maxDelay
	if b.attempt < 30 {
		delay = min(b.initialDelay*time.Duration(1<<uint(b.attempt)), b.maxDelay)
	}
	b.attempt++
	return delay, true
}

func (b *backoffStrategy) reset() {
	b.attempt = 0
}
