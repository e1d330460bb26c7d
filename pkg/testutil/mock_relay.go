package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// MockRelay is a reusable mock that implements relay.Relay for tests.
type MockRelay struct {
	mu sync.Mutex

	QuerySyncReturn []*nostr.Event
	QuerySyncError  error
	// Delay holds QuerySync back. A context that ends first gets Partial
	// with a nil error, as go-nostr does when EOSE never arrives.
	Delay      time.Duration
	Partial    []*nostr.Event
	CloseError error

	QuerySyncCalls []nostr.Filter
	CloseCalled    bool
}

func (m *MockRelay) QuerySync(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	m.mu.Lock()
	m.QuerySyncCalls = append(m.QuerySyncCalls, filter)
	delay, events, err, partial := m.Delay, m.QuerySyncReturn, m.QuerySyncError, m.Partial
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return partial, nil
		}
	}
	return events, err
}

func (m *MockRelay) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	return m.CloseError
}

// Calls returns the number of QuerySync invocations so far.
func (m *MockRelay) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.QuerySyncCalls)
}

// Closed reports whether Close was called.
func (m *MockRelay) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CloseCalled
}
