package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"nostr-jobs/pkg/cache"
	"nostr-jobs/pkg/health"
	"nostr-jobs/pkg/metrics"
	"nostr-jobs/pkg/record"
	"nostr-jobs/pkg/relay"
	"nostr-jobs/pkg/testutil"
	"nostr-jobs/pkg/utils"

	"github.com/nbd-wtf/go-nostr"
)

type fixture struct {
	coord    *Coordinator
	cache    *cache.Cache
	health   *health.Monitor
	recorder *metrics.Recorder
	client   *testutil.MockClient
	clock    *testutil.MockClock
}

func newFixture(t *testing.T, client *testutil.MockClient, cfg Config) *fixture {
	t.Helper()
	clock := testutil.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c := cache.New(clock)
	shared := relay.NewShared(client)
	mon := health.NewMonitor(shared, health.DefaultConfig(), testutil.NewDiscardLogger())
	rec := metrics.NewRecorder(utils.RealClock{})
	return &fixture{
		coord:    New(c, mon, rec, shared, cfg, testutil.NewDiscardLogger()),
		cache:    c,
		health:   mon,
		recorder: rec,
		client:   client,
		clock:    clock,
	}
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 200 * time.Millisecond
	cfg.FetchTimeout = 100 * time.Millisecond
	return cfg
}

func listingRequest(key string) Request {
	return Request{Key: key, Filter: nostr.Filter{Kinds: []int{record.JobListingKind}, Limit: 100}, Class: ClassListing}
}

func TestFetch_CacheHitSkipsNetwork(t *testing.T) {
	f := newFixture(t, &testutil.MockClient{}, fastConfig())
	f.cache.Store("Acme:*:*:20", record.FromEvents(testutil.JobEvents(2, "acme")), f.cache.NextSeq())

	res, err := f.coord.Fetch(context.Background(), listingRequest("Acme:*:*:20"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.FromCache || !res.Fresh {
		t.Errorf("expected fresh cache hit, got %+v", res)
	}
	if len(res.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(res.Records))
	}
	if f.client.Calls() != 0 {
		t.Errorf("expected no network calls, got %d", f.client.Calls())
	}
	if snap := f.recorder.Snapshot(); snap.CacheHits != 1 || snap.TotalRequests != 1 {
		t.Errorf("unexpected metrics %+v", snap)
	}
}

func TestFetch_StaleEntryStillServed(t *testing.T) {
	f := newFixture(t, &testutil.MockClient{}, fastConfig())
	f.cache.Store("k", record.FromEvents(testutil.JobEvents(1, "acme")), f.cache.NextSeq())

	f.clock.Advance(30 * time.Second)
	res, _ := f.coord.Fetch(context.Background(), listingRequest("k"))
	if !res.Fresh {
		t.Error("expected entry to be fresh at 30s")
	}

	f.clock.Advance(60 * time.Second)
	res, err := f.coord.Fetch(context.Background(), listingRequest("k"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fresh || !res.FromCache || len(res.Records) != 1 {
		t.Errorf("expected stale entry to be served, got %+v", res)
	}
	if res.Age != 90*time.Second {
		t.Errorf("expected age 90s, got %v", res.Age)
	}
	if f.client.Calls() != 0 {
		t.Errorf("stale hit must not fetch, got %d calls", f.client.Calls())
	}
}

func TestFetch_LookupNeverStale(t *testing.T) {
	f := newFixture(t, &testutil.MockClient{}, fastConfig())
	f.cache.Store("job:x", record.FromEvents(testutil.JobEvents(1, "acme")), f.cache.NextSeq())
	f.clock.Advance(24 * time.Hour)

	res, _ := f.coord.Fetch(context.Background(), Request{Key: "job:x", Class: ClassLookup})
	if !res.Fresh {
		t.Error("expected lookup entry to stay fresh")
	}
}

func TestFetch_MissPopulatesCache(t *testing.T) {
	f := newFixture(t, &testutil.MockClient{Events: testutil.JobEvents(3, "acme")}, fastConfig())

	res, err := f.coord.Fetch(context.Background(), listingRequest("k"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FromCache || len(res.Records) != 3 {
		t.Errorf("expected 3 fresh records, got %+v", res)
	}

	f.coord.Wait()
	entry, ok := f.cache.Get("k")
	if !ok || len(entry.Records) != 3 {
		t.Fatalf("expected result to be cached, got %v %v", entry, ok)
	}
	if !f.health.IsHealthy() {
		t.Error("expected successful fetch to mark relays healthy")
	}
	if snap := f.recorder.Snapshot(); snap.CacheMisses != 1 || snap.RelayFetches != 1 {
		t.Errorf("unexpected metrics %+v", snap)
	}

	if _, err := f.coord.Fetch(context.Background(), listingRequest("k")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.client.Calls() != 1 {
		t.Errorf("expected second call to be served from cache, got %d fetches", f.client.Calls())
	}
}

func TestFetch_EmptyResultIsCached(t *testing.T) {
	f := newFixture(t, &testutil.MockClient{}, fastConfig())

	res, err := f.coord.Fetch(context.Background(), listingRequest("k"))
	if err != nil {
		t.Fatalf("empty result must not be an error: %v", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("expected no records, got %d", len(res.Records))
	}

	f.coord.Wait()
	if _, ok := f.cache.Get("k"); !ok {
		t.Error("expected empty result to be cached")
	}
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		client   *testutil.MockClient
		cfg      func(*Config)
		sentinel error
		kind     Kind
	}{
		{
			name:     "transport",
			client:   &testutil.MockClient{Err: errors.New("connection refused")},
			sentinel: ErrTransport,
			kind:     KindTransport,
		},
		{
			name:     "no relays",
			client:   &testutil.MockClient{Err: relay.ErrNoRelays},
			sentinel: ErrTransport,
			kind:     KindTransport,
		},
		{
			name:     "inner timeout",
			client:   &testutil.MockClient{Delay: time.Second},
			sentinel: ErrTimeout,
			kind:     KindTimeout,
		},
		{
			name:   "outer timeout",
			client: &testutil.MockClient{Delay: time.Second},
			cfg: func(c *Config) {
				c.Timeout = 20 * time.Millisecond
				c.FetchTimeout = time.Second
			},
			sentinel: ErrTimeout,
			kind:     KindTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fastConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			f := newFixture(t, tt.client, cfg)
			f.health.SetHealthy(true)

			start := time.Now()
			_, err := f.coord.Fetch(context.Background(), listingRequest("k"))
			if time.Since(start) > cfg.Timeout+100*time.Millisecond {
				t.Errorf("caller waited %v, beyond its bound", time.Since(start))
			}

			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("expected %v, got %v", tt.sentinel, err)
			}
			var fe *FetchError
			if !errors.As(err, &fe) || fe.Kind != tt.kind {
				t.Errorf("expected FetchError of kind %s, got %v", tt.kind, err)
			}
			if f.health.IsHealthy() {
				t.Error("expected failure to mark relays unhealthy")
			}
			if snap := f.recorder.Snapshot(); snap.FailedFetches != 1 || snap.TotalRequests != 1 {
				t.Errorf("unexpected metrics %+v", snap)
			}
		})
	}
}

func TestFetch_TimedOutCallerLeavesFlightRunning(t *testing.T) {
	client := &testutil.MockClient{
		FetchFunc: func(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
			time.Sleep(60 * time.Millisecond)
			return testutil.JobEvents(2, "late"), nil
		},
	}
	cfg := fastConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.FetchTimeout = time.Second
	f := newFixture(t, client, cfg)

	_, err := f.coord.Fetch(context.Background(), listingRequest("k"))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected caller timeout, got %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for f.cache.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	f.coord.Wait()

	entry, ok := f.cache.Get("k")
	if !ok || len(entry.Records) != 2 {
		t.Fatal("expected late result to populate the cache")
	}
}

func TestFetch_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	client := &testutil.MockClient{
		FetchFunc: func(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
			<-release
			return testutil.JobEvents(1, "acme"), nil
		},
	}
	cfg := fastConfig()
	cfg.Timeout = 2 * time.Second
	cfg.FetchTimeout = 2 * time.Second
	f := newFixture(t, client, cfg)

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.coord.Fetch(context.Background(), listingRequest("same"))
			if err == nil && len(res.Records) != 1 {
				err = fmt.Errorf("expected 1 record, got %d", len(res.Records))
			}
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
	if client.Calls() != 1 {
		t.Errorf("expected a single relay fetch, got %d", client.Calls())
	}
	if snap := f.recorder.Snapshot(); snap.TotalRequests != callers {
		t.Errorf("expected %d requests recorded, got %d", callers, snap.TotalRequests)
	}
}

func TestFetch_ConcurrentDistinctKeys(t *testing.T) {
	cfg := fastConfig()
	cfg.Timeout = 5 * time.Second
	cfg.FetchTimeout = time.Second
	f := newFixture(t, &testutil.MockClient{Events: testutil.JobEvents(1, "acme")}, cfg)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.coord.Fetch(context.Background(), listingRequest(fmt.Sprintf("key-%d", i)))
		}(i)
	}
	wg.Wait()
	f.coord.Wait()

	snap := f.recorder.Snapshot()
	if snap.TotalRequests != 100 {
		t.Errorf("expected 100 requests, got %d", snap.TotalRequests)
	}
	if snap.CacheHits+snap.CacheMisses != snap.TotalRequests {
		t.Errorf("hits+misses != total: %+v", snap)
	}
	if f.cache.Len() != 100 {
		t.Errorf("expected 100 cached keys, got %d", f.cache.Len())
	}
}

func TestFetch_DebugMetricsLog(t *testing.T) {
	logger, buf := testutil.NewCapturingLogger()
	cfg := fastConfig()
	cfg.Debug = true

	client := &testutil.MockClient{Events: testutil.JobEvents(1, "acme")}
	shared := relay.NewShared(client)
	c := cache.New(nil)
	mon := health.NewMonitor(shared, health.DefaultConfig(), testutil.NewDiscardLogger())
	coord := New(c, mon, nil, shared, cfg, logger)

	if _, err := coord.Fetch(context.Background(), listingRequest("k")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	coord.Wait()

	if buf.Count("METRICS:") != 1 {
		t.Errorf("expected one METRICS line, got:\n%s", buf.String())
	}
	if buf.Count(`"key":"k"`) != 1 {
		t.Errorf("expected key in metrics line, got:\n%s", buf.String())
	}
}

func TestFetchError_Is(t *testing.T) {
	timeout := &FetchError{Kind: KindTimeout, Key: "k", Err: context.DeadlineExceeded}
	if !errors.Is(timeout, ErrTimeout) || errors.Is(timeout, ErrTransport) {
		t.Error("timeout error matched wrong sentinel")
	}
	if !errors.Is(timeout, context.DeadlineExceeded) {
		t.Error("expected cause to be reachable")
	}

	wrapped := fmt.Errorf("search: %w", &FetchError{Kind: KindTransport, Key: "k", Err: errors.New("boom")})
	if !errors.Is(wrapped, ErrTransport) {
		t.Error("expected wrapped transport error to match")
	}
}

func TestFetch_SilentRelayIsTimeoutNotEmptyAnswer(t *testing.T) {
	silent := &testutil.MockRelay{
		Delay:   time.Second,
		Partial: []*nostr.Event{testutil.JobEvent("partial", 1700000000)},
	}
	client := relay.NewClientWithRelays(map[string]relay.Relay{"wss://silent": silent},
		relay.ClientConfig{TransportTimeout: 20 * time.Millisecond}, testutil.NewDiscardLogger())

	c := cache.New(nil)
	shared := relay.NewShared(client)
	mon := health.NewMonitor(shared, health.DefaultConfig(), testutil.NewDiscardLogger())
	mon.SetHealthy(true)
	coord := New(c, mon, nil, shared, fastConfig(), testutil.NewDiscardLogger())

	_, err := coord.Fetch(context.Background(), listingRequest("Acme:*:*:20"))
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindTimeout {
		t.Fatalf("expected a timeout FetchError, got %v", err)
	}

	coord.Wait()
	if c.Len() != 0 {
		t.Errorf("a query that never completed must not be cached, got %d entries", c.Len())
	}
	if mon.IsHealthy() {
		t.Error("expected a silent relay to mark relays unhealthy")
	}
}

func TestFetch_CallerCancelLeavesHealthAlone(t *testing.T) {
	client := &testutil.MockClient{Events: testutil.JobEvents(2, "acme"), Delay: 50 * time.Millisecond}
	f := newFixture(t, client, fastConfig())
	f.health.SetHealthy(true)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(5*time.Millisecond, cancel)

	_, err := f.coord.Fetch(ctx, listingRequest("Acme:*:*:20"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		t.Errorf("a cancelled caller is not a fetch failure, got %v", fe)
	}
	if !f.health.IsHealthy() {
		t.Error("caller cancellation must not mark relays unhealthy")
	}
	if snap := f.recorder.Snapshot(); snap.FailedFetches != 0 || snap.TotalRequests != 0 {
		t.Errorf("caller cancellation should not be recorded, got %+v", snap)
	}

	deadline := time.Now().Add(time.Second)
	for f.cache.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	f.coord.Wait()
	if _, ok := f.cache.Get("Acme:*:*:20"); !ok {
		t.Error("expected the flight to finish and populate the cache")
	}
	if !f.health.IsHealthy() {
		t.Error("expected relays to stay healthy after the flight succeeded")
	}
}
