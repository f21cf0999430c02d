package paperboy

import (
	"context"
	"math/rand/v2"
	"time"
)

// Delay is the random pause taken between navigation steps so that a run
// does not hit the portal at machine speed.
type Delay struct {
	Min      time.Duration
	Max      time.Duration
	Disabled bool
}

// DefaultDelay pauses between 0.6s and 5.3s.
func DefaultDelay() Delay {
	return Delay{Min: 600 * time.Millisecond, Max: 5300 * time.Millisecond}
}

// Duration draws a pause uniformly from [Min, Max]. It returns zero when the
// delay is disabled.
func (d Delay) Duration() time.Duration {
	if d.Disabled || d.Max <= 0 {
		return 0
	}
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + rand.N(d.Max-d.Min+1)
}

// Sleep pauses for a random Duration or until ctx is done.
func (d Delay) Sleep(ctx context.Context) error {
	pause := d.Duration()
	if pause == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(pause)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
