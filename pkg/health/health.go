package health

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"nostr-jobs/pkg/record"
	"nostr-jobs/pkg/utils"

	"github.com/nbd-wtf/go-nostr"
)

// Prober runs a bounded fetch against the relay set. relay.Shared satisfies it.
type Prober interface {
	Fetch(ctx context.Context, filter nostr.Filter, timeout time.Duration) ([]*nostr.Event, error)
}

type Config struct {
	Interval     time.Duration
	Timeout      time.Duration // whole probe, including waiting for the client
	FetchTimeout time.Duration // the relay call itself
}

func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Second,
		Timeout:      5 * time.Second,
		FetchTimeout: 3 * time.Second,
	}
}

// ProbeResult describes the most recent probe.
type ProbeResult struct {
	At       time.Time
	Duration time.Duration
	Err      error
}

func (p ProbeResult) OK() bool { return !p.At.IsZero() && p.Err == nil }

// Monitor tracks whether the relay set is reachable. It starts unhealthy and
// flips on every probe and every real fetch outcome reported to it.
type Monitor struct {
	mu        sync.RWMutex
	healthy   bool
	lastProbe ProbeResult

	prober Prober
	cfg    Config
	clock  utils.Clock
	logger *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
}

func NewMonitor(prober Prober, cfg Config, logger *log.Logger) *Monitor {
	return NewMonitorWithClock(prober, cfg, utils.RealClock{}, logger)
}

func NewMonitorWithClock(prober Prober, cfg Config, clock utils.Clock, logger *log.Logger) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		prober: prober,
		cfg:    cfg,
		clock:  clock,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetHealthy records the relay state. Only transitions are logged.
func (m *Monitor) SetHealthy(healthy bool) {
	m.mu.Lock()
	changed := m.healthy != healthy
	m.healthy = healthy
	m.mu.Unlock()

	if !changed {
		return
	}
	if healthy {
		m.logger.Printf("relays healthy")
	} else {
		m.logger.Printf("relays unhealthy")
	}
}

func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

func (m *Monitor) LastProbe() ProbeResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastProbe
}

// Probe issues a single limit-1 query and updates the health flag from its
// outcome. The probe never takes longer than cfg.Timeout.
func (m *Monitor) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	start := m.clock.Now()
	filter := nostr.Filter{Kinds: []int{record.JobListingKind}, Limit: 1}

	done := make(chan error, 1)
	go func() {
		_, err := m.prober.Fetch(ctx, filter, m.cfg.FetchTimeout)
		done <- err
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		err = fmt.Errorf("health probe: %w", err)
	}

	m.mu.Lock()
	m.lastProbe = ProbeResult{At: start, Duration: m.clock.Now().Sub(start), Err: err}
	m.mu.Unlock()

	if err != nil {
		m.logger.Printf("%v", err)
	}
	m.SetHealthy(err == nil)
	return err
}

// Start runs the probe loop in the background until Stop is called.
func (m *Monitor) Start() {
	m.waitGroup.Add(1)
	go func() {
		defer m.waitGroup.Done()
		m.Run(m.ctx)
	}()
}

func (m *Monitor) Stop() {
	m.cancel()
	m.waitGroup.Wait()
}

// Run probes once immediately and then on every tick until ctx ends.
func (m *Monitor) Run(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Status renders the health line used by the operator surfaces.
func (m *Monitor) Status() string {
	state := "unhealthy"
	if m.IsHealthy() {
		state = "healthy"
	}
	p := m.LastProbe()
	switch {
	case p.At.IsZero():
		return fmt.Sprintf("relays: %s (no probe yet)", state)
	case p.Err != nil:
		return fmt.Sprintf("relays: %s (last probe %s ago failed in %s: %v)",
			state, m.clock.Now().Sub(p.At).Round(time.Second), utils.FormatMillis(p.Duration), p.Err)
	default:
		return fmt.Sprintf("relays: %s (last probe %s ago ok in %s)",
			state, m.clock.Now().Sub(p.At).Round(time.Second), utils.FormatMillis(p.Duration))
	}
}
