package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// MockClient stands in for the relay client used by the coordinator and the
// health probe. Responses can be scripted per call through FetchFunc.
type MockClient struct {
	mu sync.Mutex

	Events []*nostr.Event
	Err    error
	Delay  time.Duration
	// FetchFunc, when set, overrides Events/Err/Delay.
	FetchFunc func(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error)

	Filters []nostr.Filter
	calls   atomic.Int64
}

func (m *MockClient) Fetch(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.Filters = append(m.Filters, filter)
	fn, events, err, delay := m.FetchFunc, m.Events, m.Err, m.Delay
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, filter)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return events, err
}

// Calls returns how many times Fetch was invoked.
func (m *MockClient) Calls() int {
	return int(m.calls.Load())
}

// SetResult swaps the canned response.
func (m *MockClient) SetResult(events []*nostr.Event, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = events
	m.Err = err
}
