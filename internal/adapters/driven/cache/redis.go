package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

// redisEnvelope wraps the cached value with its owner so the ownership
// check happens server-side in one round trip.
type redisEnvelope[T any] struct {
	Owner string `json:"owner,omitempty"`
	Value T      `json:"value"`
}

// claimScript checks ownership and deletes the entry atomically. Returns
// the payload on success, "" when absent, and an error reply on an
// ownership mismatch. KEYS[1] = entry key, ARGV[1] = requester,
// ARGV[2] = "1" to remove.
var claimScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
  return ""
end
local entry = cjson.decode(raw)
local owner = entry["owner"]
if owner ~= nil and owner ~= "" and owner ~= ARGV[1] then
  return redis.error_reply("ownership mismatch")
end
if ARGV[2] == "1" then
  redis.call("DEL", KEYS[1])
end
return raw
`)

// RedisSessionCache is a Redis-backed SessionCache for multi-instance
// deployments. Expiry is handled by Redis key TTLs, so ClearExpired is a
// no-op kept for contract compatibility.
type RedisSessionCache[T any] struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisSessionCache creates a cache on the given client. keyPrefix
// namespaces the entries; a zero or negative ttl falls back to
// DefaultTTL.
func NewRedisSessionCache[T any](client *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) *RedisSessionCache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSessionCache[T]{
		client:  client,
		ttl:     ttl,
		prefix:  keyPrefix,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

func (c *RedisSessionCache[T]) key(id string) string {
	return c.prefix + ":" + id
}

// Get returns the entry for id without removing it.
func (c *RedisSessionCache[T]) Get(id, requesterID string) (T, bool, error) {
	return c.get(id, false, requesterID)
}

// Claim returns the entry for id and deletes it atomically (Lua script,
// so concurrent claims resolve to exactly one winner).
func (c *RedisSessionCache[T]) Claim(id, requesterID string) (T, bool, error) {
	return c.get(id, true, requesterID)
}

func (c *RedisSessionCache[T]) get(id string, remove bool, requesterID string) (T, bool, error) {
	var zero T
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	removeArg := "0"
	if remove {
		removeArg = "1"
	}
	raw, err := claimScript.Run(ctx, c.client, []string{c.key(id)}, requesterID, removeArg).Text()
	if err != nil {
		if isOwnershipMismatch(err) {
			return zero, false, domain.AccessDeniedError(id)
		}
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, domain.InternalError("Session cache lookup failed", err)
	}
	if raw == "" {
		return zero, false, nil
	}
	var envelope redisEnvelope[T]
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return zero, false, domain.StateError("Malformed cached session state", err)
	}
	return envelope.Value, true, nil
}

func isOwnershipMismatch(err error) bool {
	var redisErr redis.Error
	return errors.As(err, &redisErr) && redisErr.Error() == "ownership mismatch"
}

// Put inserts or overwrites an entry with the cache TTL. Marshalling
// failures are logged and dropped since Put has no error return in the
// cache contract.
func (c *RedisSessionCache[T]) Put(id string, value T, ownerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	payload, err := json.Marshal(redisEnvelope[T]{Owner: ownerID, Value: value})
	if err != nil {
		if c.logger != nil {
			c.logger.Error("failed to marshal session state", zap.String("id", id), zap.Error(err))
		}
		return
	}
	if err := c.client.Set(ctx, c.key(id), payload, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Error("failed to store session state", zap.String("id", id), zap.Error(err))
	}
}

// Remove unconditionally deletes the entry.
func (c *RedisSessionCache[T]) Remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil && c.logger != nil {
		c.logger.Error("failed to remove session state", zap.String("id", id), zap.Error(err))
	}
}

// ClearExpired is a no-op: Redis expires keys by TTL.
func (c *RedisSessionCache[T]) ClearExpired() {}

// Len counts the entries under the cache's key prefix. Best effort: a
// scan failure is logged and the keys counted so far are reported.
func (c *RedisSessionCache[T]) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	count := 0
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+":*", 256).Result()
		if err != nil {
			if c.logger != nil {
				c.logger.Error("failed to count session state entries", zap.Error(err))
			}
			return count
		}
		count += len(keys)
		if next == 0 {
			return count
		}
		cursor = next
	}
}

var _ ports.SessionCache[domain.SignatureSessionState] = (*RedisSessionCache[domain.SignatureSessionState])(nil)
