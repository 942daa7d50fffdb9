// Package rate paces requests across all streams of a run.
package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// LeakyBucket spaces requests at a fixed rate shared by every caller.
//
// The bucket keeps a virtual "drip" time that advances at the configured
// rate. Next reserves the next slot and returns when it starts; callers that
// fall behind schedule run immediately, up to maxBurst slots.
//
// LeakyBucket is safe for concurrent use.
type LeakyBucket struct {
	rate        float64   // requests per second
	lastDrip    time.Time // time of the last reserved slot
	accumulated float64   // fractional slots earned since lastDrip
	maxBurst    float64
	mu          sync.Mutex

	reserved  atomic.Int64
	totalWait atomic.Int64 // nanoseconds
}

// NewLeakyBucket creates a bucket allowing rate requests per second.
// A non-positive rate is treated as 1. The first request is never delayed.
func NewLeakyBucket(rate float64) *LeakyBucket {
	return NewLeakyBucketWithBurst(rate, 1.0)
}

// NewLeakyBucketWithBurst creates a bucket that may release up to maxBurst
// requests back to back after an idle period.
func NewLeakyBucketWithBurst(rate float64, maxBurst float64) *LeakyBucket {
	if rate <= 0 {
		rate = 1.0
	}
	if maxBurst < 1.0 {
		maxBurst = 1.0
	}
	return &LeakyBucket{
		rate:        rate,
		lastDrip:    time.Now(),
		accumulated: maxBurst,
		maxBurst:    maxBurst,
	}
}

// Next reserves a slot and returns its start time, which may be in the past.
func (lb *LeakyBucket) Next() time.Time {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(lb.lastDrip).Seconds()
	if elapsed < 0 {
		// lastDrip is a slot already promised in the future
		elapsed = 0
	}

	lb.accumulated += elapsed * lb.rate
	if lb.accumulated > lb.maxBurst {
		lb.accumulated = lb.maxBurst
	}

	lb.reserved.Add(1)

	if lb.accumulated >= 1.0 {
		lb.accumulated -= 1.0
		if lb.lastDrip.Before(now) {
			lb.lastDrip = now
		}
		return now
	}

	deficit := 1.0 - lb.accumulated
	lb.accumulated = 0

	start := now
	if lb.lastDrip.After(now) {
		start = lb.lastDrip
	}
	next := start.Add(time.Duration(deficit / lb.rate * float64(time.Second)))

	// Advancing lastDrip to the reserved slot keeps the wake-up from
	// being counted as earned time.
	lb.lastDrip = next
	lb.totalWait.Add(int64(next.Sub(now)))

	return next
}

// Wait blocks until the caller's slot starts or ctx is done.
func (lb *LeakyBucket) Wait(ctx context.Context) error {
	d := time.Until(lb.Next())
	if d <= 0 {
		return ctx.Err()
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

// GetRate returns the rate in requests per second.
func (lb *LeakyBucket) GetRate() float64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.rate
}

// Stats returns a snapshot of the bucket's counters.
func (lb *LeakyBucket) Stats() Stats {
	lb.mu.Lock()
	rate := lb.rate
	maxBurst := lb.maxBurst
	lb.mu.Unlock()

	return Stats{
		Rate:      rate,
		MaxBurst:  maxBurst,
		Reserved:  lb.reserved.Load(),
		TotalWait: time.Duration(lb.totalWait.Load()),
	}
}

// Stats describes a bucket's activity.
type Stats struct {
	Rate      float64       `json:"rate"`
	MaxBurst  float64       `json:"maxBurst"`
	Reserved  int64         `json:"reserved"`
	TotalWait time.Duration `json:"totalWait"`
}
