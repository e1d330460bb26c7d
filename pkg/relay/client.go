package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// ErrNoRelays is returned by Fetch when no relay connection is available.
var ErrNoRelays = errors.New("no relays connected")

// ClientConfig controls how the client dials and queries relays.
type ClientConfig struct {
	URLs []string
	// TransportTimeout bounds each individual relay round trip.
	TransportTimeout time.Duration
	// ConnectAttempts is the number of dial attempts per relay.
	ConnectAttempts int
	// ConnectBackoff is multiplied by the attempt number between dials.
	ConnectBackoff time.Duration
	Dialer         Dialer
}

// Client fans a single filter out to every connected relay and merges the
// answers. It is the only component that touches the network.
type Client struct {
	cfg    ClientConfig
	logger *log.Logger

	mu    sync.RWMutex
	conns map[string]Relay

	redialing atomic.Bool
}

func NewClient(cfg ClientConfig, logger *log.Logger) *Client {
	if cfg.Dialer == nil {
		cfg.Dialer = DialNostr
	}
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = 1
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		conns:  make(map[string]Relay),
	}
}

// NewClientWithRelays creates a Client with injected relay connections for testing
func NewClientWithRelays(relays map[string]Relay, cfg ClientConfig, logger *log.Logger) *Client {
	c := NewClient(cfg, logger)
	for url, r := range relays {
		c.conns[url] = r
		if !contains(c.cfg.URLs, url) {
			c.cfg.URLs = append(c.cfg.URLs, url)
		}
	}
	sort.Strings(c.cfg.URLs)
	return c
}

// URLs returns the configured relay set.
func (c *Client) URLs() []string {
	out := make([]string, len(c.cfg.URLs))
	copy(out, c.cfg.URLs)
	return out
}

// Connected returns the relays that currently hold a connection.
func (c *Client) Connected() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.conns))
	for url := range c.conns {
		out = append(out, url)
	}
	sort.Strings(out)
	return out
}

// Connect dials every configured relay that is not already connected.
// Relays that cannot be reached are logged and skipped; an error is returned
// only when none are connected afterwards.
func (c *Client) Connect(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, url := range c.cfg.URLs {
		if c.isConnected(url) {
			continue
		}
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			r, err := c.attemptConnect(ctx, url)
			if err != nil {
				c.logger.Printf("WARN: failed to connect to relay %s: %v", url, err)
				return
			}
			c.mu.Lock()
			c.conns[url] = r
			c.mu.Unlock()
			c.logger.Printf("connected to relay: %s", url)
		}(url)
	}
	wg.Wait()

	connected := len(c.Connected())
	c.logger.Printf("connected to %d/%d relays", connected, len(c.cfg.URLs))
	if connected == 0 {
		return ErrNoRelays
	}
	return nil
}

func (c *Client) attemptConnect(ctx context.Context, url string) (Relay, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.ConnectAttempts; attempt++ {
		r, err := c.cfg.Dialer(ctx, url)
		if err == nil {
			return r, nil
		}
		lastErr = err
		c.logger.Printf("attempt %d/%d failed to connect to %s: %v", attempt, c.cfg.ConnectAttempts, url, err)
		if attempt == c.cfg.ConnectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.ConnectBackoff * time.Duration(attempt)):
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.cfg.ConnectAttempts, lastErr)
}

func (c *Client) isConnected(url string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.conns[url]
	return ok
}

// Fetch queries every connected relay concurrently and returns the merged,
// de-duplicated events, newest first, truncated to filter.Limit. A fetch
// succeeds if at least one relay answered.
func (c *Client) Fetch(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	c.mu.RLock()
	targets := make(map[string]Relay, len(c.conns))
	for url, r := range c.conns {
		targets[url] = r
	}
	c.mu.RUnlock()

	if len(targets) == 0 {
		c.redialAsync()
		return nil, ErrNoRelays
	}

	type answer struct {
		url    string
		events []*nostr.Event
		err    error
	}

	answers := make(chan answer, len(targets))
	var wg sync.WaitGroup
	for url, r := range targets {
		wg.Add(1)
		go func(url string, r Relay) {
			defer wg.Done()
			qctx := ctx
			if c.cfg.TransportTimeout > 0 {
				var cancel context.CancelFunc
				qctx, cancel = context.WithTimeout(ctx, c.cfg.TransportTimeout)
				defer cancel()
			}
			events, err := r.QuerySync(qctx, filter)
			if err == nil && qctx.Err() != nil {
				// QuerySync returns what arrived before the deadline with a nil
				// error. Without EOSE the answer is incomplete, so it counts
				// as a failed query and its events are discarded.
				events, err = nil, qctx.Err()
			}
			answers <- answer{url: url, events: events, err: err}
		}(url, r)
	}
	wg.Wait()
	close(answers)

	byID := make(map[string]*nostr.Event)
	var errs []error
	succeeded := 0
	for a := range answers {
		if a.err != nil {
			errs = append(errs, fmt.Errorf("relay %s: %w", a.url, a.err))
			if !errors.Is(a.err, context.DeadlineExceeded) && !errors.Is(a.err, context.Canceled) {
				c.drop(a.url)
			}
			continue
		}
		succeeded++
		for _, ev := range a.events {
			if ev == nil {
				continue
			}
			if _, seen := byID[ev.ID]; !seen {
				byID[ev.ID] = ev
			}
		}
	}

	if succeeded == 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		c.logger.Printf("WARN: partial relay failure: %v", err)
	}

	events := make([]*nostr.Event, 0, len(byID))
	for _, ev := range byID {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt == events[j].CreatedAt {
			return events[i].ID < events[j].ID
		}
		return events[i].CreatedAt > events[j].CreatedAt
	})
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[:filter.Limit]
	}
	return events, nil
}

// drop closes a relay whose query failed so the next redial replaces it.
func (c *Client) drop(url string) {
	c.mu.Lock()
	r, ok := c.conns[url]
	delete(c.conns, url)
	c.mu.Unlock()
	if ok {
		_ = r.Close()
		c.logger.Printf("dropped relay connection: %s", url)
	}
}

// redialAsync reconnects missing relays in the background, at most one
// redial at a time.
func (c *Client) redialAsync() {
	if !c.redialing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.redialing.Store(false)
		timeout := c.cfg.TransportTimeout * 10
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := c.Connect(ctx); err != nil {
			c.logger.Printf("WARN: relay redial failed: %v", err)
		}
	}()
}

// Close closes every relay connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for url, r := range c.conns {
		_ = r.Close()
		delete(c.conns, url)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
