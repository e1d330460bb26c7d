package relay

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// Relay is the read side of a single relay connection. *nostr.Relay
// satisfies it directly; tests substitute testutil.MockRelay.
type Relay interface {
	QuerySync(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error)
	Close() error
}

var _ Relay = (*nostr.Relay)(nil)

// Dialer opens a connection to a single relay.
type Dialer func(ctx context.Context, url string) (Relay, error)

// DialNostr connects with go-nostr.
func DialNostr(ctx context.Context, url string) (Relay, error) {
	r, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return nil, err
	}
	return r, nil
}
