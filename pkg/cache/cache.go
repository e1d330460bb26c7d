package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"nostr-jobs/pkg/record"
	"nostr-jobs/pkg/utils"
)

// Entry is a cached result set. Entries are replaced wholesale, never merged.
type Entry struct {
	Records  []record.Record
	StoredAt time.Time
	// Seq is the fetch-start sequence of the fetch that produced Records.
	Seq uint64
}

// Cache maps query fingerprints to the last accepted result set. Staleness is
// evaluated on read against a caller supplied TTL; nothing is evicted except
// by Clear.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	clock   utils.Clock
	seq     atomic.Uint64
}

func New(clock utils.Clock) *Cache {
	if clock == nil {
		clock = utils.RealClock{}
	}
	return &Cache{
		entries: make(map[string]Entry),
		clock:   clock,
	}
}

// NextSeq hands out a monotonically increasing sequence number. Fetches take
// one when they start so that writes can be ordered by start time.
func (c *Cache) NextSeq() uint64 {
	return c.seq.Add(1)
}

// Get returns the entry for key regardless of its age.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put stores e under key unless an entry from a later-started fetch is
// already present. It reports whether the write was accepted.
func (c *Cache) Put(key string, e Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[key]; ok && e.Seq < cur.Seq {
		return false
	}
	c.entries[key] = e
	return true
}

// Store stamps records with the current time and puts them under key.
func (c *Cache) Store(key string, records []record.Record, seq uint64) bool {
	return c.Put(key, Entry{Records: records, StoredAt: c.clock.Now(), Seq: seq})
}

// Age returns how long ago e was stored.
func (c *Cache) Age(e Entry) time.Duration {
	return c.clock.Now().Sub(e.StoredAt)
}

// IsFresh reports whether e is younger than ttl. A non-positive ttl means the
// entry never goes stale.
func (c *Cache) IsFresh(e Entry, ttl time.Duration) bool {
	if ttl <= 0 {
		return true
	}
	return c.Age(e) < ttl
}

// Clear drops every entry and returns how many there were.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]Entry)
	return n
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
