package ratelimit

import (
	"context"
	"math/rand"
	"time"
)

// Pacer controls the spacing between sequential operations. A run either
// uses a fixed pause or a pause drawn uniformly from [min, max] before
// each operation. The zero policy never blocks.
type Pacer struct {
	fixed time.Duration
	min   time.Duration
	max   time.Duration
}

// None returns a pacer that never blocks.
func None() *Pacer {
	return &Pacer{}
}

// Fixed returns a pacer that pauses for exactly d on every Wait.
// A non-positive d behaves like None.
func Fixed(d time.Duration) *Pacer {
	if d <= 0 {
		return None()
	}
	return &Pacer{fixed: d}
}

// Between returns a pacer that pauses for a duration drawn uniformly
// from [min, max] on every Wait. Bounds are swapped if reversed.
func Between(min, max time.Duration) *Pacer {
	if min < 0 {
		min = 0
	}
	if max < min {
		min, max = max, min
	}
	if max <= 0 {
		return None()
	}
	return &Pacer{min: min, max: max}
}

// next picks the pause duration for the upcoming Wait.
func (p *Pacer) next() time.Duration {
	if p.fixed > 0 {
		return p.fixed
	}
	if p.max > 0 {
		span := p.max - p.min
		if span == 0 {
			return p.min
		}
		return p.min + time.Duration(rand.Int63n(int64(span)+1))
	}
	return 0
}

// Wait blocks for the policy's pause or until the context is canceled.
// The pause runs on the calling goroutine; there is no background timer.
func (p *Pacer) Wait(ctx context.Context) error {
	d := p.next()
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Active reports whether Wait would ever block.
func (p *Pacer) Active() bool {
	return p.fixed > 0 || p.max > 0
}
