package retry

import "time"

// Wait computes the wait-between-attempts duration for a 1-based attempt
// index.
type Wait func(attempt int) time.Duration

// WaitLike is what configuration accepts as a wait: either a bare
// duration wrapped by AsWaitLike (treated as constant) or a Wait strategy
// wrapped by Strategy. Its method is unexported, so only those adapters
// implement it; a Wait or time.Duration must go through one of them.
type WaitLike interface {
	resolve(attempt int) time.Duration
}

// durationWait adapts a plain time.Duration into a WaitLike constant.
type durationWait time.Duration

func (d durationWait) resolve(int) time.Duration { return time.Duration(d) }

// waitFunc adapts a Wait into a WaitLike.
type waitFunc Wait

func (w waitFunc) resolve(attempt int) time.Duration { return w(attempt) }

// AsWaitLike wraps a plain duration so it can be passed wherever a
// WaitLike is expected.
func AsWaitLike(d time.Duration) WaitLike { return durationWait(d) }

// Strategy wraps a Wait function as a WaitLike.
func Strategy(w Wait) WaitLike { return waitFunc(w) }

// Resolve returns the wait duration for attempt, given either a bare
// duration or a strategy.
func Resolve(w WaitLike, attempt int) time.Duration {
	if w == nil {
		return 0
	}
	return w.resolve(attempt)
}

// Constant always waits d.
func Constant(d time.Duration) WaitLike {
	return Strategy(func(attempt int) time.Duration { return d })
}

// Linear waits clamp(min + (n-1)*step, min, max).
func Linear(min, step, max time.Duration) WaitLike {
	return Strategy(func(attempt int) time.Duration {
		d := min + time.Duration(attempt-1)*step
		if d < min {
			d = min
		}
		if d > max {
			d = max
		}
		return d
	})
}

// Exponential waits min(min*factor^(n-1), max).
func Exponential(min time.Duration, factor float64, max time.Duration) WaitLike {
	return Strategy(func(attempt int) time.Duration {
		d := float64(min)
		for i := 1; i < attempt; i++ {
			d *= factor
			if d >= float64(max) {
				return max
			}
		}
		wait := time.Duration(d)
		if wait > max {
			wait = max
		}
		return wait
	})
}
