package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SummaryCacheTTL bounds how stale a cached reputation read may be. Mutations
// invalidate eagerly; the TTL is a backstop for missed invalidations.
const SummaryCacheTTL = 5 * time.Minute

// Cache is a Redis cache-aside layer for reputation summaries. A nil client
// disables caching; all operations become no-ops.
type Cache struct {
	rdb *redis.Client
}

// NewCache creates a reputation cache over an existing Redis client. The
// client may be nil, which disables caching.
func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Get retrieves a cached summary. Returns nil on a miss or when caching is
// disabled.
func (c *Cache) Get(ctx context.Context, ownerID string) (*Summary, error) {
	if c == nil || c.rdb == nil {
		return nil, nil
	}

	data, err := c.rdb.Get(ctx, summaryKey(ownerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		// A corrupt entry behaves like a miss; the next Set overwrites it.
		return nil, nil
	}
	return &s, nil
}

// Set stores a summary with the standard TTL.
func (c *Cache) Set(ctx context.Context, ownerID string, s Summary) error {
	if c == nil || c.rdb == nil {
		return nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, summaryKey(ownerID), data, SummaryCacheTTL).Err()
}

// Invalidate removes an owner's summary, called after every vote mutation.
func (c *Cache) Invalidate(ctx context.Context, ownerID string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, summaryKey(ownerID)).Err()
}

func summaryKey(ownerID string) string {
	return fmt.Sprintf("reputation:%s", ownerID)
}
