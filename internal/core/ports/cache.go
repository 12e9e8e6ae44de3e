package ports

// SessionCache is the port interface for the expiring, ownership-scoped
// store of pending transaction state.
//
// An entry recorded with a non-empty owner is retrievable only by that
// owner; a mismatch is an access-denial (domain.AccessDeniedError), never
// treated as absence. Absence itself is not an error - Get and Claim
// return ok=false.
//
// Implementations must be safe for concurrent use: a claim-once removal
// races with concurrent operations on the same id such that exactly one
// caller observes the entry, and the expiry sweep never evicts an entry
// before its TTL elapses.
type SessionCache[T any] interface {
	// Get returns the entry for id without removing it.
	Get(id, requesterID string) (T, bool, error)

	// Claim returns the entry for id and atomically removes it, so a
	// second call with the same id reports absence. Prevents a response
	// from being replayed against stale state.
	Claim(id, requesterID string) (T, bool, error)

	// Put inserts or overwrites an entry and records its insertion time
	// for expiry. An empty ownerID means no ownership restriction.
	Put(id string, value T, ownerID string)

	// Remove unconditionally deletes the entry. Administrative path, no
	// ownership check.
	Remove(id string)

	// ClearExpired removes every entry older than the configured TTL.
	// Idempotent and safe to call concurrently with every other
	// operation and with itself.
	ClearExpired()

	// Len returns the current number of stored entries. Feeds the
	// pending-transactions gauge; a best-effort count is acceptable.
	Len() int
}
