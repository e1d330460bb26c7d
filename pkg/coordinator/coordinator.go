package coordinator

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"nostr-jobs/pkg/cache"
	"nostr-jobs/pkg/metrics"
	"nostr-jobs/pkg/record"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/sync/singleflight"
)

// Fetcher runs a bounded relay query through the shared client handle.
type Fetcher interface {
	Fetch(ctx context.Context, filter nostr.Filter, timeout time.Duration) ([]*nostr.Event, error)
}

// HealthReporter receives the outcome of every real fetch.
type HealthReporter interface {
	SetHealthy(healthy bool)
}

type Config struct {
	Timeout      time.Duration // caller wait, queueing included
	FetchTimeout time.Duration // single relay call
	TTLs         TTLs
	Debug        bool
}

func DefaultConfig() Config {
	return Config{
		Timeout:      2500 * time.Millisecond,
		FetchTimeout: 2 * time.Second,
		TTLs:         DefaultTTLs(),
	}
}

// Request is one logical fetch. Key identifies the cache slot and the
// single-flight group; Filter is what goes to the relays.
type Request struct {
	Key    string
	Filter nostr.Filter
	Class  Class
}

type Result struct {
	Records   []record.Record
	FromCache bool
	// Fresh is false for cached entries older than their class TTL. Stale
	// entries are still returned.
	Fresh bool
	Age   time.Duration
}

// Coordinator answers requests from the cache when it can and otherwise
// runs one deduplicated, time-bounded relay fetch per key.
type Coordinator struct {
	cache   *cache.Cache
	health  HealthReporter
	metrics metrics.Sink
	fetcher Fetcher
	cfg     Config
	logger  *log.Logger

	group  singleflight.Group
	writes sync.WaitGroup
}

func New(c *cache.Cache, health HealthReporter, sink metrics.Sink, fetcher Fetcher, cfg Config, logger *log.Logger) *Coordinator {
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	return &Coordinator{
		cache:   c,
		health:  health,
		metrics: sink,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
	}
}

// Fetch never blocks longer than cfg.Timeout. On a miss the caller either
// starts or joins the flight for req.Key; giving up on it leaves the flight
// running so a late answer still lands in the cache. When ctx itself ends
// first, its error is returned as is and neither health nor metrics change.
func (c *Coordinator) Fetch(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	if entry, ok := c.cache.Get(req.Key); ok {
		c.metrics.RecordHit(time.Since(start))
		return Result{
			Records:   entry.Records,
			FromCache: true,
			Fresh:     c.cache.IsFresh(entry, c.cfg.TTLs.For(req.Class)),
			Age:       c.cache.Age(entry),
		}, nil
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	ch := c.group.DoChan(req.Key, func() (interface{}, error) {
		return c.flight(req)
	})

	var (
		records []record.Record
		err     error
	)
	select {
	case res := <-ch:
		if res.Err != nil {
			err = res.Err
		} else {
			records = res.Val.([]record.Record)
		}
	case <-ctx.Done():
		if perr := parent.Err(); perr != nil {
			// The caller went away. That says nothing about the relays; the
			// flight keeps running and reports its own outcome.
			return Result{}, perr
		}
		err = classify(req.Key, ctx.Err())
	}

	elapsed := time.Since(start)
	if err != nil {
		c.health.SetHealthy(false)
		c.metrics.RecordMiss(elapsed, false)
		return Result{}, err
	}
	c.metrics.RecordMiss(elapsed, true)
	return Result{Records: records, Fresh: true}, nil
}

// flight performs the relay round trip for one key. It runs detached from
// any caller and is bounded by its own deadline.
func (c *Coordinator) flight(req Request) ([]record.Record, error) {
	id := uuid.NewString()
	seq := c.cache.NextSeq()
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	events, err := c.fetcher.Fetch(ctx, req.Filter, c.cfg.FetchTimeout)
	if err != nil {
		fe := classify(req.Key, err)
		c.health.SetHealthy(false)
		c.logger.Printf("fetch %s failed (%s): %v", req.Key, fe.Kind, err)
		c.logMetrics(id, req, time.Since(start), 0, fe)
		return nil, fe
	}

	records := record.FromEvents(events)
	c.health.SetHealthy(true)
	c.logMetrics(id, req, time.Since(start), len(records), nil)

	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		if !c.cache.Store(req.Key, records, seq) && c.cfg.Debug {
			c.logger.Printf("dropped stale cache write for %s (flight %s)", req.Key, id)
		}
	}()

	return records, nil
}

// Wait blocks until every scheduled cache write has landed.
func (c *Coordinator) Wait() {
	c.writes.Wait()
}

func (c *Coordinator) logMetrics(id string, req Request, d time.Duration, count int, err *FetchError) {
	if !c.cfg.Debug {
		return
	}
	m := map[string]interface{}{
		"flight":      id,
		"key":         req.Key,
		"class":       req.Class.String(),
		"duration_ms": d.Milliseconds(),
		"records":     count,
		"ok":          err == nil,
		"fetched_at":  time.Now().Format(time.RFC3339),
		"component":   "fetch-coordinator",
	}
	if err != nil {
		m["error_kind"] = err.Kind.String()
	}
	b, _ := json.Marshal(m)
	c.logger.Printf("METRICS: %s", string(b))
}
