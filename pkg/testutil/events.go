package testutil

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// JobEvent builds a kind 9993 listing with the given tags.
func JobEvent(id string, createdAt int64, tags ...nostr.Tag) *nostr.Event {
	return &nostr.Event{
		ID:        id,
		Kind:      9993,
		CreatedAt: nostr.Timestamp(createdAt),
		Tags:      nostr.Tags(tags),
		Content:   fmt.Sprintf("listing %s", id),
	}
}

// JobEvents builds n distinct listings for company.
func JobEvents(n int, company string) []*nostr.Event {
	out := make([]*nostr.Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, JobEvent(fmt.Sprintf("%s-%d", company, i), int64(1700000000+i),
			nostr.Tag{"company", company},
			nostr.Tag{"title", fmt.Sprintf("Role %d", i)},
		))
	}
	return out
}
