// Package backoff implements the jittered exponential backoff formulas used
// by the task driver between retry attempts. It mirrors
// the AWS-style jitter strategies (None/Full/Equal/Decorrelated) rather than
// any single third-party backoff library, since none of the corpus's
// candidates (cenkalti/backoff, sethvargo/go-retry) expose this exact
// decorrelated-jitter shape — see DESIGN.md.
package backoff

import (
	"math"

	"github.com/taskctl/supervisor/internal/clock"
	"github.com/taskctl/supervisor/internal/domain"
)

// Engine computes successive retry delays for one task's attempt loop. It is
// not safe for concurrent use; each driver owns one Engine for the lifetime
// of its attempt cycle.
type Engine struct {
	jitter      domain.Jitter
	firstMS     int64
	maxMS       int64
	factor      float64
	lastDelayMS int64
	rnd         clock.Random
}

// New builds an Engine from a validated BackoffPolicy. rnd supplies jitter
// randomness; pass a fixed Random in tests to pin delays to their envelope
// bounds.
func New(p domain.BackoffPolicy, rnd clock.Random) *Engine {
	return &Engine{
		jitter:      p.Jitter,
		firstMS:     p.FirstMS,
		maxMS:       p.MaxMS,
		factor:      p.Factor,
		lastDelayMS: p.FirstMS,
		rnd:         rnd,
	}
}

// Next returns the delay, in milliseconds, after failed attempt n (n>=1);
// the returned delay precedes attempt n+1.
func (e *Engine) Next(n int) int64 {
	if e.firstMS == 0 {
		return 0
	}

	base := e.base(n)

	var delay int64
	switch e.jitter {
	case domain.JitterNone:
		delay = base
	case domain.JitterFull:
		delay = e.uniform(0, base)
	case domain.JitterEqual:
		half := base / 2
		delay = half + e.uniform(0, base-half)
	case domain.JitterDecorrelated:
		delay = min64(e.maxMS, e.uniform(e.firstMS, e.lastDelayMS*3))
	default:
		delay = base
	}

	e.lastDelayMS = delay
	return delay
}

// base computes min(max_ms, first_ms * factor^(n-1)) with saturation against
// float overflow for large n.
func (e *Engine) base(n int) int64 {
	if n < 1 {
		n = 1
	}
	scaled := float64(e.firstMS) * math.Pow(e.factor, float64(n-1))
	if scaled > float64(e.maxMS) || math.IsInf(scaled, 1) {
		return e.maxMS
	}
	return int64(scaled)
}

// uniform returns an integer in [lo, hi]; if hi <= lo it returns lo.
func (e *Engine) uniform(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + e.rnd.Int64N(hi-lo+1)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
