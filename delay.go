package main

import "time"

// Delay policy defaults. The floor protects against provider bans, the
// ceiling against unbounded stalls.
const (
	defaultDelayFloor       = 1 * time.Second
	defaultDelayCeiling     = 30 * time.Second
	defaultFailureWindow    = 10
	defaultFailureThreshold = 0.3
	delayBackoffFactor      = 2.0
	delayDecayFactor        = 0.75
)

// delayPolicy computes the pause before each download from a rolling
// window of recent outcomes. A failure rate at or above the threshold
// backs the delay off toward the ceiling; steady successes decay it
// back toward the floor. The delay never leaves [floor, ceiling].
//
// One policy instance belongs to one batch, so concurrent batches keep
// independent backoff state.
type delayPolicy struct {
	floor      time.Duration
	ceiling    time.Duration
	current    time.Duration
	window     []bool
	windowSize int
	threshold  float64
}

func newDelayPolicy(floor, ceiling time.Duration, threshold float64) *delayPolicy {
	if floor <= 0 {
		floor = defaultDelayFloor
	}
	if ceiling < floor {
		ceiling = defaultDelayCeiling
	}
	if ceiling < floor {
		ceiling = floor
	}
	if threshold <= 0 || threshold > 1 {
		threshold = defaultFailureThreshold
	}
	return &delayPolicy{
		floor:      floor,
		ceiling:    ceiling,
		current:    floor,
		windowSize: defaultFailureWindow,
		threshold:  threshold,
	}
}

// next returns the delay to apply before the upcoming attempt.
func (p *delayPolicy) next() time.Duration {
	return p.current
}

// observe records one attempt outcome and adjusts the delay.
func (p *delayPolicy) observe(success bool) {
	p.window = append(p.window, success)
	if len(p.window) > p.windowSize {
		p.window = p.window[len(p.window)-p.windowSize:]
	}

	failures := 0
	for _, ok := range p.window {
		if !ok {
			failures++
		}
	}
	rate := float64(failures) / float64(len(p.window))

	if rate >= p.threshold {
		p.current = time.Duration(float64(p.current) * delayBackoffFactor)
		if p.current > p.ceiling {
			p.current = p.ceiling
		}
		return
	}

	if success {
		p.current = time.Duration(float64(p.current) * delayDecayFactor)
		if p.current < p.floor {
			p.current = p.floor
		}
	}
}
