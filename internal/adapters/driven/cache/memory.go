// Package cache provides SessionCache implementations: an in-memory
// store for single-instance deployments and a Redis-backed store for
// clustered ones.
package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

// DefaultTTL bounds entry lifetime when no TTL is configured.
const DefaultTTL = 15 * time.Minute

type memoryEntry[T any] struct {
	value    T
	owner    string
	inserted time.Time
}

// MemorySessionCache is an in-memory, ownership-scoped expiring store.
// Entries are single-claim via Claim. All operations are guarded by one
// mutex so claim-once removal and the expiry sweep never both act on the
// same entry.
type MemorySessionCache[T any] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[T]
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewMemorySessionCache creates a cache with the given TTL. A zero or
// negative ttl falls back to DefaultTTL.
func NewMemorySessionCache[T any](ttl time.Duration) *MemorySessionCache[T] {
	return NewMemorySessionCacheWithLogger[T](ttl, nil)
}

// NewMemorySessionCacheWithLogger creates a cache that logs evictions.
func NewMemorySessionCacheWithLogger[T any](ttl time.Duration, logger *zap.Logger) *MemorySessionCache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemorySessionCache[T]{
		entries: make(map[string]memoryEntry[T]),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock replaces the cache's clock. For tests.
func (c *MemorySessionCache[T]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the entry for id without removing it. An ownership
// mismatch returns an access-denied error, distinct from absence.
func (c *MemorySessionCache[T]) Get(id, requesterID string) (T, bool, error) {
	return c.get(id, false, requesterID)
}

// Claim returns the entry for id and removes it in the same operation.
// Exactly one concurrent caller wins the removal.
func (c *MemorySessionCache[T]) Claim(id, requesterID string) (T, bool, error) {
	return c.get(id, true, requesterID)
}

func (c *MemorySessionCache[T]) get(id string, remove bool, requesterID string) (T, bool, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[id]
	if !exists {
		return zero, false, nil
	}
	if c.now().Sub(entry.inserted) > c.ttl {
		delete(c.entries, id)
		return zero, false, nil
	}
	if entry.owner != "" && entry.owner != requesterID {
		return zero, false, domain.AccessDeniedError(id)
	}
	if remove {
		delete(c.entries, id)
	}
	return entry.value, true, nil
}

// Put inserts or overwrites an entry, recording its insertion time.
func (c *MemorySessionCache[T]) Put(id string, value T, ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = memoryEntry[T]{value: value, owner: ownerID, inserted: c.now()}
}

// Remove unconditionally deletes the entry. No ownership check.
func (c *MemorySessionCache[T]) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// ClearExpired removes every entry whose age exceeds the TTL. Intended
// to run on a recurring schedule; a no-op when nothing is expired.
func (c *MemorySessionCache[T]) ClearExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for id, entry := range c.entries {
		if now.Sub(entry.inserted) > c.ttl {
			delete(c.entries, id)
			removed++
		}
	}
	if removed > 0 && c.logger != nil {
		c.logger.Debug("evicted expired session state",
			zap.Int("count", removed),
			zap.Int("remaining", len(c.entries)),
		)
	}
}

// Len returns the current number of entries, expired or not.
func (c *MemorySessionCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

var _ ports.SessionCache[domain.SignatureSessionState] = (*MemorySessionCache[domain.SignatureSessionState])(nil)
