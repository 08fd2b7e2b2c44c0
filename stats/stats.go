package stats

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Deleted    uint64
	Errors     uint64
	StartTime  time.Time
	Uptime     time.Duration
	Efficiency float64
}

// Tracker counts deletion attempts. It is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	deleted   uint64
	errors    uint64
	startTime time.Time
	now       func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker whose uptime starts now.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.startTime = t.now()
	return t
}

// RecordDeleted counts one successful deletion.
func (t *Tracker) RecordDeleted() {
	t.mu.Lock()
	t.deleted++
	t.mu.Unlock()
}

// RecordError counts one failed deletion.
func (t *Tracker) RecordError() {
	t.mu.Lock()
	t.errors++
	t.mu.Unlock()
}

// Reset zeroes both counters. The start time is kept.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.deleted = 0
	t.errors = 0
	t.mu.Unlock()
}

// Snapshot returns the counters, uptime and efficiency.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	deleted, errs := t.deleted, t.errors
	t.mu.Unlock()

	return Snapshot{
		Deleted:    deleted,
		Errors:     errs,
		StartTime:  t.startTime,
		Uptime:     t.now().Sub(t.startTime),
		Efficiency: Efficiency(deleted, errs),
	}
}

// Efficiency is deleted / max(1, deleted+errors), so zero attempts give 0.
func Efficiency(deleted, errs uint64) float64 {
	total := deleted + errs
	if total == 0 {
		total = 1
	}
	return float64(deleted) / float64(total)
}

// Duration parts for display.
type Duration struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// SplitDuration breaks d into whole days, hours, minutes and seconds.
// Negative durations are treated as zero.
func SplitDuration(d time.Duration) Duration {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return Duration{
		Days:    total / 86400,
		Hours:   total % 86400 / 3600,
		Minutes: total % 3600 / 60,
		Seconds: total % 60,
	}
}
