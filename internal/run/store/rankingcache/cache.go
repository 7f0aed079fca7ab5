// Package rankingcache caches per-site action rankings in Redis. Runs are
// immutable once done, so entries only carry a TTL for memory hygiene, not
// for correctness.
package rankingcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"clinops/internal/engine/prioritize"
	"clinops/internal/platform/redis"
	"clinops/pkg/domain"
)

type Cache struct {
	client *redis.Client
}

// New wraps the platform redis client. A nil client yields a nil cache,
// which the service treats as caching disabled.
func New(client *redis.Client) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client}
}

func key(runID domain.RunID, siteID domain.SiteID) string {
	return fmt.Sprintf("clinops:rank:%s:%s", runID, siteID)
}

func (c *Cache) Get(ctx context.Context, runID domain.RunID, siteID domain.SiteID) ([]prioritize.Action, bool, error) {
	raw, err := c.client.Get(ctx, key(runID, siteID)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ranking cache get: %w", err)
	}

	var actions []prioritize.Action
	if err := json.Unmarshal(raw, &actions); err != nil {
		// A corrupt entry is a miss, not a failure.
		return nil, false, nil
	}
	return actions, true, nil
}

func (c *Cache) Set(ctx context.Context, runID domain.RunID, siteID domain.SiteID, actions []prioritize.Action, ttl time.Duration) error {
	raw, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("ranking cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, key(runID, siteID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("ranking cache set: %w", err)
	}
	return nil
}
