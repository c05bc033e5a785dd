package wordpress

import (
	"context"
	"strings"
	"sync"
	"time"

	"gitlab.com/tozd/go/errors"
)

// Throttle enforces a minimum delay between consecutive calls to the same host.
type Throttle struct {
	delay time.Duration

	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

func NewThrottle(delay time.Duration) *Throttle {
	if delay < 0 {
		delay = 0
	}
	return &Throttle{
		delay: delay,
		last:  make(map[string]time.Time),
		now:   time.Now,
	}
}

// Wait blocks until at least delay has passed since the previous call to host,
// then records the current call.
func (t *Throttle) Wait(ctx context.Context, host string) error {
	host = strings.ToLower(host)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.delay > 0 {
		if prev, ok := t.last[host]; ok {
			if wait := t.delay - t.now().Sub(prev); wait > 0 {
				if err := sleepContext(ctx, wait); err != nil {
					return err
				}
			}
		}
	}

	t.last[host] = t.now()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.Errorf("sleep cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
