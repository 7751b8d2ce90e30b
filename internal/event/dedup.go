package event

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/TimurManjosov/flagship-go-sdk/internal/storage"
	"github.com/TimurManjosov/flagship-go-sdk/internal/user"
)

const (
	dedupEntriesKey  = "event_dedup_entries"
	dedupIdentityKey = "event_dedup_identity"

	// defaultDedupMaxBytes bounds the persisted cache size, mirroring the
	// host platform's per-suite storage quota.
	defaultDedupMaxBytes = 4 << 20

	// entryOverheadBytes approximates the serialized cost of one entry
	// beyond its key: quotes, separators and the millisecond timestamp.
	entryOverheadBytes = 20
)

func dedupKey(kind string, entityID, variationID int64, variationKey, reason string) string {
	return fmt.Sprintf("%s-%d-%d-%s-%s", kind, entityID, variationID, variationKey, reason)
}

// DedupCache suppresses repeat identical decisions within a configured
// interval, per user identity. Entries persist to a bounded key/value
// namespace so suppression survives restarts; any change to the active
// user's identifier set clears the cache entirely.
type DedupCache struct {
	mu       sync.RWMutex
	interval time.Duration
	maxBytes int
	repo     storage.KeyValueRepository
	now      func() time.Time

	identity    string
	entries     map[string]int64 // dedup key -> last seen unix millis
	approxBytes int
}

// NewDedupCache builds a dedup cache persisted to repo, reloading any
// previously saved state. Interval of zero or less disables dedup entirely.
func NewDedupCache(interval time.Duration, repo storage.KeyValueRepository, now func() time.Time) *DedupCache {
	if now == nil {
		now = time.Now
	}
	c := &DedupCache{
		interval: interval,
		maxBytes: defaultDedupMaxBytes,
		repo:     repo,
		now:      now,
		entries:  make(map[string]int64),
	}
	c.load()
	return c
}

// ShouldEmit reports whether the event should be recorded. Non-dedupable
// events always emit. A suppressable event emits when its decision was not
// seen within the interval for the current identity, and marks itself seen.
func (c *DedupCache) ShouldEmit(e UserEvent) bool {
	if c.interval <= 0 {
		return true
	}
	key, ok := e.DedupKey()
	if !ok {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	identity := e.User().IdentityHash()
	if identity != c.identity {
		c.clearLocked()
		c.identity = identity
	}

	nowMillis := c.now().UnixMilli()
	if last, seen := c.entries[key]; seen {
		if nowMillis-last < c.interval.Milliseconds() {
			return false
		}
	}

	if _, seen := c.entries[key]; !seen {
		c.approxBytes += len(key) + entryOverheadBytes
	}
	c.entries[key] = nowMillis
	c.evictLocked()
	return true
}

// InvalidateIfIdentityChanged clears all entries when the given user's
// identifier set differs from the cached identity.
func (c *DedupCache) InvalidateIfIdentityChanged(u user.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	identity := u.IdentityHash()
	if identity != c.identity {
		c.clearLocked()
		c.identity = identity
	}
}

// Save persists the cache. Called on app backgrounding and shutdown.
func (c *DedupCache) Save() {
	if c.repo == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	blob, err := json.Marshal(c.entries)
	if err != nil {
		return
	}
	c.repo.PutString(dedupEntriesKey, string(blob))
	c.repo.PutString(dedupIdentityKey, c.identity)
}

func (c *DedupCache) load() {
	if c.repo == nil {
		return
	}
	identity, _ := c.repo.GetString(dedupIdentityKey)
	c.identity = identity
	blob, ok := c.repo.GetString(dedupEntriesKey)
	if !ok {
		return
	}
	if err := json.Unmarshal([]byte(blob), &c.entries); err != nil {
		c.entries = make(map[string]int64)
		return
	}
	for key := range c.entries {
		c.approxBytes += len(key) + entryOverheadBytes
	}
	c.evictLocked()
}

// evictLocked drops oldest-timestamp entries until the cache fits the byte
// cap. Caller holds the write lock.
func (c *DedupCache) evictLocked() {
	for c.approxBytes > c.maxBytes && len(c.entries) > 0 {
		oldestKey := ""
		oldestMillis := int64(0)
		for key, millis := range c.entries {
			if oldestKey == "" || millis < oldestMillis {
				oldestKey = key
				oldestMillis = millis
			}
		}
		c.approxBytes -= len(oldestKey) + entryOverheadBytes
		delete(c.entries, oldestKey)
	}
}

func (c *DedupCache) clearLocked() {
	c.entries = make(map[string]int64)
	c.approxBytes = 0
	if c.repo != nil {
		c.repo.Remove(dedupEntriesKey)
		c.repo.Remove(dedupIdentityKey)
	}
}
