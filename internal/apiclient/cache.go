package apiclient

import (
	"context"
	"encoding/json"
)

func (c *Client) cacheEnabled() bool {
	return c.redis != nil && c.cacheTTL > 0
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if !c.cacheEnabled() || !c.sessionVerified() {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(val, out); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Discarding unreadable cache entry")
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if !c.cacheEnabled() {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

func (c *Client) dropCache(ctx context.Context, keys ...string) {
	if !c.cacheEnabled() {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Debug().Err(err).Strs("keys", keys).Msg("Cache invalidation failed")
	}
}
