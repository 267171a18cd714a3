package stats

import "sync"

// Aggregate observes numeric samples and, on Flush, returns a running
// count/sum/min/max/avg summary keyed by prefix, then resets.
type Aggregate struct {
	mu    sync.Mutex
	count int64
	sum   float64
	min   float64
	max   float64
}

// Observe records one sample.
func (a *Aggregate) Observe(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.count == 0 {
		a.min, a.max = v, v
	} else {
		if v < a.min {
			a.min = v
		}
		if v > a.max {
			a.max = v
		}
	}
	a.sum += v
	a.count++
}

// Flush returns {prefix_count, prefix_sum, prefix_min, prefix_max,
// prefix_avg} for the samples observed since the last Flush, then resets
// the aggregate. An aggregate with no samples reports all-zero values.
func (a *Aggregate) Flush(prefix string) map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	count, sum, min, max := a.count, a.sum, a.min, a.max
	a.count, a.sum, a.min, a.max = 0, 0, 0, 0

	avg := 0.0
	if count > 0 {
		avg = sum / float64(count)
	}
	return map[string]float64{
		prefix + "_count": float64(count),
		prefix + "_sum":   sum,
		prefix + "_min":   min,
		prefix + "_max":   max,
		prefix + "_avg":   avg,
	}
}
