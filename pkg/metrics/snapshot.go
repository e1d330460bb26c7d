package metrics

import (
	"fmt"
	"strings"
	"time"

	"nostr-jobs/pkg/utils"
)

type Snapshot struct {
	// Counters
	TotalRequests uint64
	CacheHits     uint64
	CacheMisses   uint64
	RelayFetches  uint64
	FailedFetches uint64

	// Timings
	CacheServe  DurationStats
	RelayFetch  DurationStats
	FailedFetch DurationStats

	Uptime     time.Duration
	SinceReset time.Duration
}

// HitRate is hits/total in [0,1]; 0 with no requests.
func (s Snapshot) HitRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.TotalRequests)
}

func (s Snapshot) AvgCacheTime() time.Duration { return s.CacheServe.Avg() }

func (s Snapshot) AvgFetchTime() time.Duration { return s.RelayFetch.Avg() }

// TimeSaved estimates wall time avoided by serving hits from cache.
func (s Snapshot) TimeSaved() time.Duration {
	diff := s.AvgFetchTime() - s.AvgCacheTime()
	if diff <= 0 {
		return 0
	}
	return diff * time.Duration(s.CacheHits)
}

// SpeedMultiplier is avgFetch/avgCache, or 1 when there is no cache timing.
func (s Snapshot) SpeedMultiplier() float64 {
	avgCache := s.AvgCacheTime()
	if avgCache <= 0 {
		return 1
	}
	return float64(s.AvgFetchTime()) / float64(avgCache)
}

// Report formats the snapshot for operators.
func (s Snapshot) Report() string {
	var b strings.Builder

	b.WriteString("📊 Cache Performance Metrics\n\n")
	fmt.Fprintf(&b, "Total requests: %s\n", utils.FormatNumber(s.TotalRequests))
	fmt.Fprintf(&b, "Cache hits: %s (%.1f%% hit rate)\n", utils.FormatNumber(s.CacheHits), s.HitRate()*100)
	fmt.Fprintf(&b, "Cache misses: %s\n", utils.FormatNumber(s.CacheMisses))
	fmt.Fprintf(&b, "  Relay fetches: %s\n", utils.FormatNumber(s.RelayFetches))
	fmt.Fprintf(&b, "  Failed fetches: %s\n\n", utils.FormatNumber(s.FailedFetches))

	b.WriteString("Response times:\n")
	writeStats(&b, "Cache serve", s.CacheServe)
	writeStats(&b, "Relay fetch", s.RelayFetch)
	writeStats(&b, "Failed fetch", s.FailedFetch)
	b.WriteString("\n")

	b.WriteString("Efficiency:\n")
	fmt.Fprintf(&b, "  Time saved by caching: %s\n", s.TimeSaved().Round(time.Millisecond))
	fmt.Fprintf(&b, "  Cache is %.1fx faster than relay fetches\n\n", s.SpeedMultiplier())

	fmt.Fprintf(&b, "Collecting since: %s ago (uptime %s)", s.SinceReset.Round(time.Second), s.Uptime.Round(time.Second))
	return b.String()
}

func writeStats(b *strings.Builder, label string, st DurationStats) {
	if st.Count == 0 {
		fmt.Fprintf(b, "  %s: no samples\n", label)
		return
	}
	fmt.Fprintf(b, "  %s: avg %s (min %s, max %s, n=%d)\n",
		label, utils.FormatMillis(st.Avg()), utils.FormatMillis(st.Min), utils.FormatMillis(st.Max), st.Count)
}
