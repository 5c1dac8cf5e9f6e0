// Package wait polls a condition at a fixed interval until it holds or a
// deadline passes.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when the condition did not hold before the deadline.
var ErrTimeout = errors.New("condition not met before deadline")

// Condition reports whether the awaited state has been reached. A returned
// error does not stop polling; the last one is reported on timeout.
type Condition func(ctx context.Context) (bool, error)

// Until evaluates cond immediately and then every interval until it returns
// true, timeout elapses, or ctx is cancelled.
func Until(ctx context.Context, interval, timeout time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := cond(ctx)
		if ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if lastErr != nil {
				return fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, lastErr)
			}
			return fmt.Errorf("%w after %s", ErrTimeout, timeout)
		case <-ticker.C:
		}
	}
}

// Sleep pauses for d unless ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
