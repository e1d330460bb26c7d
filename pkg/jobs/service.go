package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"nostr-jobs/pkg/cache"
	"nostr-jobs/pkg/coordinator"
	"nostr-jobs/pkg/filter"
	"nostr-jobs/pkg/ident"
	"nostr-jobs/pkg/metrics"
	"nostr-jobs/pkg/record"

	"github.com/go-playground/validator/v10"
	"github.com/nbd-wtf/go-nostr"
)

var (
	ErrResourceNotFound = errors.New("resource not found")

	validate = validator.New()
)

// Fetcher is the coordinator as seen by the service.
type Fetcher interface {
	Fetch(ctx context.Context, req coordinator.Request) (coordinator.Result, error)
}

type HealthState interface {
	IsHealthy() bool
}

type MetricsStore interface {
	Snapshot() metrics.Snapshot
	Reset()
}

type RelayLister interface {
	URLs() []string
	Connected() []string
}

type Config struct {
	// BatchLimit is how many listings are pulled from relays before
	// filtering in memory.
	BatchLimit  int
	LatestLimit int
}

func DefaultConfig() Config {
	return Config{BatchLimit: 100, LatestLimit: coordinator.DefaultLimit}
}

// Service answers job queries with human-readable text. Relay failures are
// never returned as errors; they become degraded replies.
type Service struct {
	fetcher Fetcher
	cache   *cache.Cache
	health  HealthState
	metrics MetricsStore
	relays  RelayLister
	cfg     Config
	logger  *log.Logger
}

func NewService(fetcher Fetcher, c *cache.Cache, health HealthState, m MetricsStore, relays RelayLister, cfg Config, logger *log.Logger) *Service {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultConfig().BatchLimit
	}
	if cfg.LatestLimit <= 0 {
		cfg.LatestLimit = DefaultConfig().LatestLimit
	}
	return &Service{
		fetcher: fetcher,
		cache:   c,
		health:  health,
		metrics: m,
		relays:  relays,
		cfg:     cfg,
		logger:  logger,
	}
}

type SearchArgs struct {
	Company        string `json:"company,omitempty" validate:"max=200"`
	Skill          string `json:"skill,omitempty" validate:"max=200"`
	EmploymentType string `json:"employment_type,omitempty" validate:"max=200"`
	Limit          int    `json:"limit,omitempty" validate:"gte=0,lte=100"`
}

func (a *SearchArgs) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("invalid search arguments: %w", err)
	}
	return nil
}

func (a SearchArgs) query() coordinator.Query {
	return coordinator.Query{
		Company:        a.Company,
		Skill:          a.Skill,
		EmploymentType: a.EmploymentType,
		Limit:          a.Limit,
	}.Normalize()
}

func (s *Service) listingFilter(limit int) nostr.Filter {
	return nostr.Filter{Kinds: []int{record.JobListingKind}, Limit: limit}
}

// Search fetches the latest listings batch and narrows it by the arguments.
func (s *Service) Search(ctx context.Context, args SearchArgs) string {
	if err := args.Validate(); err != nil {
		return "⚠️ " + err.Error()
	}
	q := args.query()
	s.logger.Printf("search %s", q.Fingerprint())

	healthy := s.health.IsHealthy()
	res, err := s.fetcher.Fetch(ctx, coordinator.Request{
		Key:    q.Fingerprint(),
		Filter: s.listingFilter(s.cfg.BatchLimit),
		Class:  coordinator.ClassListing,
	})
	if err != nil {
		s.logger.Printf("search %s degraded: %v", q.Fingerprint(), err)
		return Degraded(healthy)
	}

	matches := filter.Filter(res.Records, q.Criteria())
	if len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	if len(matches) == 0 {
		return "No job listings found matching your criteria."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d job listing(s)%s:\n\n", len(matches), staleMarker(res.FromCache, res.Fresh))
	numbered(&b, matches)
	return strings.TrimRight(b.String(), "\n")
}

// JobDetails looks up one listing by hex event id, note/nevent, or job id.
func (s *Service) JobDetails(ctx context.Context, jobID string) string {
	id := ident.Parse(jobID)
	if id.Raw == "" {
		return "⚠️ Please provide a job ID."
	}

	healthy := s.health.IsHealthy()
	res, err := s.fetcher.Fetch(ctx, coordinator.Request{
		Key:    coordinator.LookupKey(id.Raw),
		Filter: id.Filter(),
		Class:  coordinator.ClassLookup,
	})
	if err != nil {
		s.logger.Printf("job %s degraded: %v", id.Raw, err)
		return "⚠️ Unable to fetch job details.\n\n" + Degraded(healthy)
	}
	if len(res.Records) == 0 {
		return fmt.Sprintf("No job found with ID: %s", id.Raw)
	}
	return Details(res.Records[0])
}

// Stats aggregates the latest listings batch.
func (s *Service) Stats(ctx context.Context) string {
	healthy := s.health.IsHealthy()
	res, err := s.fetcher.Fetch(ctx, coordinator.Request{
		Key:    coordinator.StatsKey,
		Filter: s.listingFilter(s.cfg.BatchLimit),
		Class:  coordinator.ClassStats,
	})
	if err != nil {
		s.logger.Printf("stats degraded: %v", err)
		return "📊 Statistics unavailable\n\n" + Degraded(healthy)
	}

	agg := filter.Aggregate(res.Records)
	return fmt.Sprintf("📊 Nostr Job Listings Statistics%s\n\n"+
		"Total Listings: %d\n\n"+
		"Employment Types:\n%s\n\n"+
		"Top Companies:\n%s\n\n"+
		"Top Skills:\n%s",
		staleMarker(res.FromCache, res.Fresh),
		agg.Total,
		topItems(filter.TopN(agg.EmploymentTypes, 5)),
		topItems(filter.TopN(agg.Companies, 5)),
		topItems(filter.TopN(agg.Skills, 10)),
	)
}

// Relays lists the configured relays and which of them are connected.
func (s *Service) Relays() string {
	urls := s.relays.URLs()
	connected := make(map[string]bool)
	for _, u := range s.relays.Connected() {
		connected[u] = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Connected to %d of %d relay(s):", len(connected), len(urls))
	for _, u := range urls {
		state := "offline"
		if connected[u] {
			state = "connected"
		}
		fmt.Fprintf(&b, "\n  • %s (%s)", u, state)
	}
	return b.String()
}

// Latest returns the n most recent listings without filtering.
func (s *Service) Latest(ctx context.Context, n int) string {
	if n <= 0 {
		n = s.cfg.LatestLimit
	}

	healthy := s.health.IsHealthy()
	res, err := s.fetcher.Fetch(ctx, coordinator.Request{
		Key:    coordinator.LatestKey(n),
		Filter: s.listingFilter(n),
		Class:  coordinator.ClassListing,
	})
	if err != nil {
		s.logger.Printf("latest %d degraded: %v", n, err)
		return Degraded(healthy)
	}
	if len(res.Records) == 0 {
		return "No job listings found."
	}

	records := res.Records
	if len(records) > n {
		records = records[:n]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Latest %d Job Listings%s:\n\n", len(records), staleMarker(res.FromCache, res.Fresh))
	numbered(&b, records)
	return strings.TrimRight(b.String(), "\n")
}

// MetricsReport renders the cache performance report.
func (s *Service) MetricsReport() string {
	return fmt.Sprintf("%s\n\nCached queries: %d", s.metrics.Snapshot().Report(), s.cache.Len())
}

func (s *Service) ResetMetrics() string {
	s.metrics.Reset()
	s.logger.Printf("metrics reset")
	return "✅ Metrics reset. Counters and timings start from zero."
}

// ClearCache drops every cached answer and reports what was there.
func (s *Service) ClearCache() string {
	snap := s.metrics.Snapshot()
	n := s.cache.Clear()
	s.logger.Printf("cache cleared (%d entries)", n)
	return fmt.Sprintf("🗑️ Cache cleared: %d entr%s removed.\nHit rate before clear: %.1f%% (%d of %d requests).",
		n, plural(n, "y", "ies"), snap.HitRate()*100, snap.CacheHits, snap.TotalRequests)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
