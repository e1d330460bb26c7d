package relay

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Fetcher is anything that can answer a filter against the relay set.
type Fetcher interface {
	Fetch(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error)
}

// Shared serializes access to a Fetcher: at most one call is in flight
// through the handle at a time.
type Shared struct {
	fetcher Fetcher
	sem     chan struct{}
}

func NewShared(f Fetcher) *Shared {
	return &Shared{fetcher: f, sem: make(chan struct{}, 1)}
}

// Fetch waits for the handle until ctx ends, then runs the call bounded by
// timeout. Once started, the call is not cut short by ctx: a caller that
// gives up leaves the call running until its own timeout.
func (s *Shared) Fetch(ctx context.Context, filter nostr.Filter, timeout time.Duration) ([]*nostr.Event, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return s.fetcher.Fetch(callCtx, filter)
}
