package inventory

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// capacitySource is the read side of the asset system the cache wraps.
type capacitySource interface {
	GetCapacity(ctx context.Context, modelID uint64) (int, error)
}

// CapacityCache is a short-TTL Redis cache in front of capacity lookups,
// bounding load on the asset system when the same models are previewed
// repeatedly.  It is explicitly constructed and injected, with no
// package-level state, and it exposes an invalidation hook for callers
// that learn a model's fleet changed.  A nil Redis client degrades to a
// pass-through so the engine keeps working without Redis.
type CapacityCache struct {
	source capacitySource
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCapacityCache wraps source with a TTL cache.  rdb may be nil.
func NewCapacityCache(source capacitySource, rdb *redis.Client, ttl time.Duration) *CapacityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CapacityCache{source: source, rdb: rdb, ttl: ttl, prefix: "capacity"}
}

func (c *CapacityCache) key(modelID uint64) string {
	return fmt.Sprintf("%s:%d", c.prefix, modelID)
}

// GetCapacity serves from Redis when possible and falls through to the
// asset system otherwise.  Only positive counts are cached: a zero count
// means "unknown" to callers and pinning it would hide a fleet that comes
// online within the TTL.  Redis errors are logged and treated as misses.
func (c *CapacityCache) GetCapacity(ctx context.Context, modelID uint64) (int, error) {
	if c.rdb != nil {
		val, err := c.rdb.Get(ctx, c.key(modelID)).Result()
		if err == nil {
			if n, convErr := strconv.Atoi(val); convErr == nil {
				return n, nil
			}
		} else if err != redis.Nil {
			log.Printf("capacity-cache: redis get failed: %v", err)
		}
	}
	n, err := c.source.GetCapacity(ctx, modelID)
	if err != nil {
		return 0, err
	}
	if c.rdb != nil && n > 0 {
		if err := c.rdb.Set(ctx, c.key(modelID), strconv.Itoa(n), c.ttl).Err(); err != nil {
			log.Printf("capacity-cache: redis set failed: %v", err)
		}
	}
	return n, nil
}

// Invalidate drops the cached count for a model.  Call it after an
// operation that is known to change the model's fleet size.
func (c *CapacityCache) Invalidate(ctx context.Context, modelID uint64) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, c.key(modelID)).Err(); err != nil {
		log.Printf("capacity-cache: redis del failed: %v", err)
	}
}
