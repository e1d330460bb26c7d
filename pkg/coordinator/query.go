package coordinator

import (
	"fmt"
	"strings"
	"time"

	"nostr-jobs/pkg/filter"
)

const (
	DefaultLimit = 20
	placeholder  = "*"

	StatsKey = "stats:all"
)

// Query is a listing search as issued by a caller.
type Query struct {
	Company        string
	Skill          string
	EmploymentType string
	Limit          int
}

// Normalize strips surrounding quotes and whitespace from the string fields
// and applies the default limit.
func (q Query) Normalize() Query {
	q.Company = clean(q.Company)
	q.Skill = clean(q.Skill)
	q.EmploymentType = clean(q.EmploymentType)
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	return q
}

func clean(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"`))
}

// Fingerprint is the cache key for the query: company:skill:type:limit with
// "*" standing in for absent fields. The query is expected to be normalized.
func (q Query) Fingerprint() string {
	return fmt.Sprintf("%s:%s:%s:%d", orPlaceholder(q.Company), orPlaceholder(q.Skill), orPlaceholder(q.EmploymentType), q.Limit)
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func (q Query) Criteria() filter.Criteria {
	return filter.Criteria{Company: q.Company, Skill: q.Skill, EmploymentType: q.EmploymentType}
}

func LookupKey(id string) string { return "job:" + id }

func LatestKey(n int) string { return fmt.Sprintf("latest:%d", n) }

// Class selects how long a cached answer stays fresh.
type Class int

const (
	ClassListing Class = iota
	ClassStats
	ClassLookup
)

func (c Class) String() string {
	switch c {
	case ClassListing:
		return "listing"
	case ClassStats:
		return "stats"
	case ClassLookup:
		return "lookup"
	default:
		return "unknown"
	}
}

// TTLs maps query classes to freshness windows. A zero TTL never goes stale.
type TTLs struct {
	Listing time.Duration
	Stats   time.Duration
	Lookup  time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{Listing: 60 * time.Second, Stats: 120 * time.Second}
}

func (t TTLs) For(c Class) time.Duration {
	switch c {
	case ClassListing:
		return t.Listing
	case ClassStats:
		return t.Stats
	default:
		return t.Lookup
	}
}
