package ident

import (
	"encoding/hex"
	"fmt"
	"strings"

	"nostr-jobs/pkg/record"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

type Kind int

const (
	// KindJobID is a publisher-assigned identifier carried in the "j" tag.
	KindJobID Kind = iota
	// KindEventID is a nostr event id, given as hex, note1 or nevent1.
	KindEventID
)

// Identifier is a resolved job reference.
type Identifier struct {
	Raw     string
	Kind    Kind
	EventID string // hex, set for KindEventID
}

// Parse resolves a job reference. Anything that is not a 64-char hex id or
// a decodable note/nevent is treated as a job id.
func Parse(raw string) Identifier {
	raw = strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
	id := Identifier{Raw: raw, Kind: KindJobID}

	if len(raw) == 64 {
		if _, err := hex.DecodeString(raw); err == nil {
			id.Kind = KindEventID
			id.EventID = strings.ToLower(raw)
			return id
		}
	}

	if strings.HasPrefix(raw, "note1") || strings.HasPrefix(raw, "nevent1") {
		if eventID, err := decodeEvent(raw); err == nil {
			id.Kind = KindEventID
			id.EventID = eventID
		}
	}
	return id
}

// decodeEvent extracts the event id from a note or nevent. nevent relay
// hints are ignored: lookups go to the configured relay set.
func decodeEvent(s string) (string, error) {
	prefix, data, err := nip19.Decode(s)
	if err != nil {
		return "", fmt.Errorf("identifier is invalid: %w", err)
	}

	switch v := data.(type) {
	case string:
		if prefix != "note" {
			return "", fmt.Errorf("unexpected %s payload", prefix)
		}
		return v, nil
	case nostr.EventPointer:
		return v.ID, nil
	case *nostr.EventPointer:
		return v.ID, nil
	default:
		return "", fmt.Errorf("unexpected %s payload type %T", prefix, data)
	}
}

// Filter builds the relay query for the identifier.
func (id Identifier) Filter() nostr.Filter {
	if id.Kind == KindEventID {
		return nostr.Filter{IDs: []string{id.EventID}, Limit: 1}
	}
	return nostr.Filter{
		Kinds: []int{record.JobListingKind},
		Tags:  nostr.TagMap{record.TagJobIDIndexed: []string{id.Raw}},
		Limit: 1,
	}
}
