package main

import (
	"context"
	"log"
	"time"

	"nostr-jobs/pkg/metrics"
)

type snapshotReader interface {
	Snapshot() metrics.Snapshot
}

type healthReader interface {
	IsHealthy() bool
	Status() string
}

// statusPrinter logs a periodic summary of query traffic and relay health.
type statusPrinter struct {
	metrics  snapshotReader
	health   healthReader
	interval time.Duration
	logger   *log.Logger

	printed     bool
	last        metrics.Snapshot
	lastHealthy bool
}

func newStatusPrinter(m snapshotReader, h healthReader, interval time.Duration, logger *log.Logger) *statusPrinter {
	return &statusPrinter{metrics: m, health: h, interval: interval, logger: logger}
}

// Run blocks until ctx ends. A non-positive interval disables the output.
func (p *statusPrinter) Run(ctx context.Context) {
	if p.interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Printf("Shutting down...")
			return
		case <-ticker.C:
			p.printStatus()
		}
	}
}

func (p *statusPrinter) printStatus() {
	snapshot := p.metrics.Snapshot()
	healthy := p.health.IsHealthy()

	if p.shouldPrint(snapshot, healthy) {
		p.logger.Printf("Status - Requests: total=%d, hits=%d, misses=%d, failed=%d, hit-rate=%.1f%%",
			snapshot.TotalRequests,
			snapshot.CacheHits,
			snapshot.CacheMisses,
			snapshot.FailedFetches,
			snapshot.HitRate()*100)
		p.logger.Printf("Health - %s", p.health.Status())
	}

	p.printed = true
	p.last = snapshot
	p.lastHealthy = healthy
}

// shouldPrint suppresses lines while nothing has changed.
func (p *statusPrinter) shouldPrint(snapshot metrics.Snapshot, healthy bool) bool {
	if !p.printed {
		return true
	}
	if snapshot.TotalRequests != p.last.TotalRequests {
		return true
	}
	if snapshot.FailedFetches > p.last.FailedFetches {
		return true
	}
	return healthy != p.lastHealthy
}
