package metrics

import (
	"sync"
	"time"

	"nostr-jobs/pkg/utils"
)

// Sink receives request outcomes. Implementations must be safe for
// concurrent use.
type Sink interface {
	// RecordHit records a request answered from cache.
	RecordHit(d time.Duration)
	// RecordMiss records a request that had to go to the relays.
	RecordMiss(d time.Duration, success bool)
}

// Reader exposes point-in-time views of the recorded metrics.
type Reader interface {
	Snapshot() Snapshot
}

// DurationStats is a running sum/min/max over a category of timings.
type DurationStats struct {
	Count uint64
	Sum   time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (s *DurationStats) add(d time.Duration) {
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Count++
	s.Sum += d
}

// Avg returns Sum/Count, or 0 with no samples.
func (s DurationStats) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / time.Duration(s.Count)
}

// Recorder is the process-wide tally of request outcomes. Every update takes
// the exclusive lock since each one reads and writes aggregate state.
type Recorder struct {
	mu    sync.Mutex
	clock utils.Clock

	totalRequests uint64
	cacheHits     uint64
	cacheMisses   uint64
	relayFetches  uint64
	failedFetches uint64

	cacheServe  DurationStats
	relayFetch  DurationStats
	failedFetch DurationStats

	startTime time.Time
	resetTime time.Time
}

// NewRecorder creates a zeroed recorder
func NewRecorder(clock utils.Clock) *Recorder {
	if clock == nil {
		clock = utils.RealClock{}
	}
	now := clock.Now()
	return &Recorder{clock: clock, startTime: now, resetTime: now}
}

func (r *Recorder) RecordHit(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalRequests++
	r.cacheHits++
	r.cacheServe.add(d)
}

func (r *Recorder) RecordMiss(d time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalRequests++
	r.cacheMisses++
	if success {
		r.relayFetches++
		r.relayFetch.add(d)
		return
	}
	r.failedFetches++
	r.failedFetch.add(d)
}

// Reset zeroes every counter. Only called on explicit operator request.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalRequests = 0
	r.cacheHits = 0
	r.cacheMisses = 0
	r.relayFetches = 0
	r.failedFetches = 0
	r.cacheServe = DurationStats{}
	r.relayFetch = DurationStats{}
	r.failedFetch = DurationStats{}
	r.resetTime = r.clock.Now()
}

// Snapshot implements Reader
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	return Snapshot{
		TotalRequests: r.totalRequests,
		CacheHits:     r.cacheHits,
		CacheMisses:   r.cacheMisses,
		RelayFetches:  r.relayFetches,
		FailedFetches: r.failedFetches,
		CacheServe:    r.cacheServe,
		RelayFetch:    r.relayFetch,
		FailedFetch:   r.failedFetch,
		Uptime:        now.Sub(r.startTime),
		SinceReset:    now.Sub(r.resetTime),
	}
}

// Report renders the current snapshot as text.
func (r *Recorder) Report() string {
	return r.Snapshot().Report()
}

// NoopSink is a Sink that does nothing
// Useful for testing or when metrics are disabled
type NoopSink struct{}

func (NoopSink) RecordHit(time.Duration)        {}
func (NoopSink) RecordMiss(time.Duration, bool) {}
