// Package perfstats is a single place where we record the performance of
// various operations, so that it's easy to compare different classifier
// backends and the performance of different hardware.
package perfstats

import "sync/atomic"

// UpdateMovingAverage folds a new sample into an exponentially weighted
// moving average. We don't bother about strict correctness here with
// CompareAndSwap, because this is just sampled stats, and it's OK to miss
// one or two samples.
func UpdateMovingAverage(stat *atomic.Int64, sample int64) {
	if stat.Load() == 0 {
		stat.Store(sample)
	} else {
		stat.Store((stat.Load()*63 + sample) >> 6)
	}
}
