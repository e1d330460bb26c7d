package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"nostr-jobs/pkg/cache"
	"nostr-jobs/pkg/coordinator"
	"nostr-jobs/pkg/health"
	"nostr-jobs/pkg/metrics"
	"nostr-jobs/pkg/record"
	"nostr-jobs/pkg/relay"
	"nostr-jobs/pkg/testutil"
	"nostr-jobs/pkg/utils"

	"github.com/nbd-wtf/go-nostr"
)

type harness struct {
	svc      *Service
	coord    *coordinator.Coordinator
	cache    *cache.Cache
	health   *health.Monitor
	recorder *metrics.Recorder
	client   *testutil.MockClient
}

func newHarness(t *testing.T, client *testutil.MockClient) *harness {
	t.Helper()
	logger := testutil.NewDiscardLogger()
	c := cache.New(nil)
	shared := relay.NewShared(client)
	mon := health.NewMonitor(shared, health.DefaultConfig(), logger)
	rec := metrics.NewRecorder(utils.RealClock{})

	cfg := coordinator.DefaultConfig()
	cfg.Timeout = 200 * time.Millisecond
	cfg.FetchTimeout = 100 * time.Millisecond
	coord := coordinator.New(c, mon, rec, shared, cfg, logger)

	relays := relay.NewClientWithRelays(map[string]relay.Relay{
		"wss://relay.one": &testutil.MockRelay{},
	}, relay.ClientConfig{URLs: []string{"wss://relay.one", "wss://relay.two"}}, logger)

	return &harness{
		svc:      NewService(coord, c, mon, rec, relays, DefaultConfig(), logger),
		coord:    coord,
		cache:    c,
		health:   mon,
		recorder: rec,
		client:   client,
	}
}

func sampleListings() []*nostr.Event {
	return []*nostr.Event{
		testutil.JobEvent("e1", 1700000300,
			nostr.Tag{"title", "Backend Engineer"},
			nostr.Tag{"company", "Acme"},
			nostr.Tag{"location", "Berlin"},
			nostr.Tag{"skill", "Rust"},
			nostr.Tag{"skill", "Go"},
			nostr.Tag{"employment-type", "full-time"},
			nostr.Tag{"salary", "100000", "150000", "USD", "year"},
			nostr.Tag{"job-id", "acme-1"},
		),
		testutil.JobEvent("e2", 1700000200,
			nostr.Tag{"title", "Data Scientist"},
			nostr.Tag{"company", "Acme"},
			nostr.Tag{"skill", "Python"},
			nostr.Tag{"employment-type", "contract"},
		),
		testutil.JobEvent("e3", 1700000100,
			nostr.Tag{"company", "Globex"},
			nostr.Tag{"skill", "Rust"},
			nostr.Tag{"salary", "1"},
		),
	}
}

type stubFetcher struct {
	res coordinator.Result
	err error
}

func (s stubFetcher) Fetch(ctx context.Context, req coordinator.Request) (coordinator.Result, error) {
	return s.res, s.err
}

type stubHealth bool

func (h stubHealth) IsHealthy() bool { return bool(h) }

func TestSearch_Filters(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{Events: sampleListings()})

	out := h.svc.Search(context.Background(), SearchArgs{Company: "acme", Skill: "rust"})

	if !strings.HasPrefix(out, "Found 1 job listing(s):") {
		t.Fatalf("unexpected header:\n%s", out)
	}
	for _, want := range []string{
		"🏢 Acme - Backend Engineer",
		"📍 Location: Berlin",
		"💼 Type: full-time",
		"🛠️  Skills: Rust, Go",
		"💰 Salary: $100000 - $150000 USD per year",
		"🆔 Job ID: acme-1",
		"📅 Posted: 2023-11-14",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Data Scientist") {
		t.Error("non-matching listing leaked into results")
	}
}

func TestSearch_Defaults(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{Events: sampleListings()})

	out := h.svc.Search(context.Background(), SearchArgs{Company: "Globex"})
	for _, want := range []string{"Untitled", "📍 Location: Remote", "💼 Type: Not specified", "🆔 Job ID: e3"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Salary") {
		t.Error("malformed salary should be omitted")
	}
}

func TestSearch_LimitAppliedAfterFiltering(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{Events: sampleListings()})

	out := h.svc.Search(context.Background(), SearchArgs{Limit: 2})
	if !strings.HasPrefix(out, "Found 2 job listing(s)") {
		t.Errorf("expected 2 listings, got:\n%s", out)
	}
	if f := h.client.Filters[0]; f.Limit != 100 || len(f.Kinds) != 1 || f.Kinds[0] != 9993 {
		t.Errorf("expected batch fetch of kind 9993 limit 100, got %+v", f)
	}
}

func TestSearch_NoMatches(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{Events: sampleListings()})
	out := h.svc.Search(context.Background(), SearchArgs{Company: "Initech"})
	if out != "No job listings found matching your criteria." {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSearch_CachedAcrossCriteria(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{Events: sampleListings()})
	ctx := context.Background()

	h.svc.Search(ctx, SearchArgs{Company: `"Acme"`})
	h.coord.Wait()
	h.svc.Search(ctx, SearchArgs{Company: "Acme"})

	if h.client.Calls() != 1 {
		t.Errorf("expected quoted and bare company to share a cache entry, got %d fetches", h.client.Calls())
	}
	if _, ok := h.cache.Get("Acme:*:*:20"); !ok {
		t.Error("expected entry under fingerprint Acme:*:*:20")
	}
}

func TestSearch_InvalidArgs(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{})
	out := h.svc.Search(context.Background(), SearchArgs{Limit: 1000})
	if !strings.Contains(out, "invalid search arguments") {
		t.Errorf("expected validation message, got %q", out)
	}
	if h.client.Calls() != 0 {
		t.Error("invalid arguments must not reach the relays")
	}
}

func TestDegradedReplies(t *testing.T) {
	fail := stubFetcher{err: &coordinator.FetchError{Kind: coordinator.KindTimeout, Key: "k", Err: context.DeadlineExceeded}}
	logger := testutil.NewDiscardLogger()

	tests := []struct {
		name    string
		healthy bool
		want    string
	}{
		{"healthy relays", true, "Search in progress"},
		{"unhealthy relays", false, "Results will be cached once available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(fail, cache.New(nil), stubHealth(tt.healthy), metrics.NewRecorder(nil), nil, DefaultConfig(), logger)
			ctx := context.Background()

			for name, out := range map[string]string{
				"search":  svc.Search(ctx, SearchArgs{}),
				"details": svc.JobDetails(ctx, "acme-1"),
				"stats":   svc.Stats(ctx),
				"latest":  svc.Latest(ctx, 5),
			} {
				if !strings.Contains(out, tt.want) {
					t.Errorf("%s: expected %q in:\n%s", name, tt.want, out)
				}
			}
		})
	}
}

func TestSearch_HealthSampledBeforeFetch(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{Err: errors.New("connection reset")})
	h.health.SetHealthy(true)

	out := h.svc.Search(context.Background(), SearchArgs{})
	if !strings.Contains(out, "Search in progress") {
		t.Errorf("expected in-progress reply while relays were healthy, got:\n%s", out)
	}
	if h.health.IsHealthy() {
		t.Error("expected failed fetch to mark relays unhealthy")
	}

	out = h.svc.Search(context.Background(), SearchArgs{})
	if !strings.Contains(out, "initializing") {
		t.Errorf("expected initializing reply once unhealthy, got:\n%s", out)
	}
}

func TestSearch_StaleMarker(t *testing.T) {
	res := coordinator.Result{
		Records:   record.FromEvents(sampleListings()),
		FromCache: true,
		Fresh:     false,
		Age:       90 * time.Second,
	}
	svc := NewService(stubFetcher{res: res}, cache.New(nil), stubHealth(true), metrics.NewRecorder(nil), nil, DefaultConfig(), testutil.NewDiscardLogger())

	out := svc.Search(context.Background(), SearchArgs{})
	if !strings.HasPrefix(out, "Found 3 job listing(s) (cached):") {
		t.Errorf("expected stale marker, got:\n%s", out)
	}

	res.Fresh = true
	svc = NewService(stubFetcher{res: res}, cache.New(nil), stubHealth(true), metrics.NewRecorder(nil), nil, DefaultConfig(), testutil.NewDiscardLogger())
	if out := svc.Search(context.Background(), SearchArgs{}); !strings.HasPrefix(out, "Found 3 job listing(s):") {
		t.Errorf("fresh cache hit should not be marked, got:\n%s", out)
	}
}

func TestJobDetails(t *testing.T) {
	client := &testutil.MockClient{Events: sampleListings()[:1]}
	h := newHarness(t, client)

	out := h.svc.JobDetails(context.Background(), "acme-1")
	if !strings.Contains(out, "🏢 Acme - Backend Engineer") || !strings.Contains(out, "📄 Full Job Details:\nlisting e1") {
		t.Errorf("unexpected details:\n%s", out)
	}
	if f := client.Filters[0]; f.Tags["j"][0] != "acme-1" {
		t.Errorf("expected job-id tag filter, got %+v", f)
	}

	h.coord.Wait()
	if _, ok := h.cache.Get("job:acme-1"); !ok {
		t.Error("expected lookup to be cached under job:acme-1")
	}
}

func TestJobDetails_NotFound(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{})
	if out := h.svc.JobDetails(context.Background(), "nope"); out != "No job found with ID: nope" {
		t.Errorf("unexpected output %q", out)
	}
	if out := h.svc.JobDetails(context.Background(), "  "); !strings.Contains(out, "provide a job ID") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestStats(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{Events: sampleListings()})

	out := h.svc.Stats(context.Background())
	for _, want := range []string{
		"📊 Nostr Job Listings Statistics\n",
		"Total Listings: 3",
		"Employment Types:\n  • contract: 1\n  • full-time: 1",
		"Top Companies:\n  • Acme: 2\n  • Globex: 1",
		"  • Rust: 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}

	h.coord.Wait()
	if _, ok := h.cache.Get(coordinator.StatsKey); !ok {
		t.Error("expected stats batch cached under stats:all")
	}
}

func TestStats_Empty(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{})
	out := h.svc.Stats(context.Background())
	if !strings.Contains(out, "Total Listings: 0") || !strings.Contains(out, "Top Skills:\n  (none)") {
		t.Errorf("unexpected empty stats:\n%s", out)
	}
}

func TestRelays(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{})
	out := h.svc.Relays()
	for _, want := range []string{"Connected to 1 of 2 relay(s):", "wss://relay.one (connected)", "wss://relay.two (offline)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func TestLatest(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{Events: sampleListings()})
	out := h.svc.Latest(context.Background(), 0)
	if !strings.HasPrefix(out, "Latest 3 Job Listings:") {
		t.Errorf("unexpected output:\n%s", out)
	}
	h.coord.Wait()
	if _, ok := h.cache.Get("latest:20"); !ok {
		t.Error("expected entry under latest:20")
	}
}

func TestReadResource(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{Events: sampleListings()})
	ctx := context.Background()

	if out, err := h.svc.ReadResource(ctx, ResourceStats); err != nil || !strings.Contains(out, "Total Listings: 3") {
		t.Errorf("unexpected stats resource %q, %v", out, err)
	}
	if out, err := h.svc.ReadResource(ctx, ResourceLatest); err != nil || !strings.Contains(out, "Latest 3") {
		t.Errorf("unexpected latest resource %q, %v", out, err)
	}
	if _, err := h.svc.ReadResource(ctx, "jobs://nope"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}
	if len(h.svc.Resources()) != 2 {
		t.Error("expected two resources")
	}
}

func TestOperatorOps(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{Events: sampleListings()})
	ctx := context.Background()

	h.svc.Search(ctx, SearchArgs{Company: "Acme"})
	h.coord.Wait()
	h.svc.Search(ctx, SearchArgs{Company: "Acme"})
	h.svc.Stats(ctx)
	h.coord.Wait()

	report := h.svc.MetricsReport()
	for _, want := range []string{"Total requests: 3", "Cache hits: 1 (33.3% hit rate)", "Cached queries: 2"} {
		if !strings.Contains(report, want) {
			t.Errorf("expected %q in report:\n%s", want, report)
		}
	}

	out := h.svc.ClearCache()
	if !strings.Contains(out, "2 entries removed") || !strings.Contains(out, "33.3%") {
		t.Errorf("unexpected clear output %q", out)
	}
	if h.cache.Len() != 0 {
		t.Error("expected empty cache")
	}

	h.svc.ResetMetrics()
	if snap := h.recorder.Snapshot(); snap.TotalRequests != 0 {
		t.Errorf("expected reset counters, got %+v", snap)
	}
}

func TestGetPrompt(t *testing.T) {
	p, err := GetPrompt(PromptSearchAssistant, PromptArgs{Query: "rust jobs", Skills: []string{"Rust", "Tokio"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Messages) != 2 || !strings.Contains(p.Messages[1].Text, "Required skills: Rust, Tokio") {
		t.Errorf("unexpected prompt %+v", p)
	}

	if _, err := GetPrompt(PromptSearchAssistant, PromptArgs{}); err == nil {
		t.Error("expected missing query to be rejected")
	}
	if _, err := GetPrompt(PromptAnalyzeMarket, PromptArgs{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := GetPrompt("nope", PromptArgs{}); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("expected ErrPromptNotFound, got %v", err)
	}
}
