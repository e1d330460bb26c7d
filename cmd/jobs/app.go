package main

import (
	"context"
	"log"

	"nostr-jobs/pkg/cache"
	"nostr-jobs/pkg/config"
	"nostr-jobs/pkg/coordinator"
	"nostr-jobs/pkg/health"
	"nostr-jobs/pkg/jobs"
	"nostr-jobs/pkg/metrics"
	"nostr-jobs/pkg/relay"
	"nostr-jobs/pkg/utils"
)

type clientFactory func(cfg relay.ClientConfig, logger *log.Logger) *relay.Client

// app holds one fully wired service stack.
type app struct {
	cfg     *config.Config
	client  *relay.Client
	monitor *health.Monitor
	cache   *cache.Cache
	metrics *metrics.Recorder
	coord   *coordinator.Coordinator
	service *jobs.Service
	logger  *log.Logger
	started bool
}

func newApp(cfg *config.Config, newClient clientFactory, logger *log.Logger) *app {
	client := newClient(cfg.ClientConfig(), logger)
	shared := relay.NewShared(client)
	monitor := health.NewMonitor(shared, cfg.HealthConfig(), logger)
	c := cache.New(utils.RealClock{})
	rec := metrics.NewRecorder(utils.RealClock{})
	coord := coordinator.New(c, monitor, rec, shared, cfg.CoordinatorConfig(), logger)

	return &app{
		cfg:     cfg,
		client:  client,
		monitor: monitor,
		cache:   c,
		metrics: rec,
		coord:   coord,
		service: jobs.NewService(coord, c, monitor, rec, client, cfg.ServiceConfig(), logger),
		logger:  logger,
	}
}

// connect dials the relay set within the configured connect timeout. A
// failure is logged, not returned: queries then answer with degraded text.
func (a *app) connect(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Connect.Timeout)
	defer cancel()
	if err := a.client.Connect(ctx); err != nil {
		a.logger.Printf("WARN: relay connect: %v", err)
	}
}

// startMonitor begins background health probing.
func (a *app) startMonitor() {
	a.monitor.Start()
	a.started = true
}

func (a *app) close() {
	if a.started {
		a.monitor.Stop()
	}
	a.coord.Wait()
	a.client.Close()
}
