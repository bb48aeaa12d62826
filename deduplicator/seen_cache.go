// Package deduplicator remembers post ids already stored so a fetch round can
// skip the database lookup for posts it has seen before. A cache miss is not
// authoritative: the caller still asks the store.
package deduplicator

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const DefaultRedisSeenKey = "zsxqintel:seen_posts"

type SeenCache interface {
	Seen(ctx context.Context, id string) (bool, error)
	MarkSeen(ctx context.Context, ids ...string) error
}

// MemorySeenCache lives as long as the process. About a hundred posts are
// fetched per round, which is trivial to keep in memory.
type MemorySeenCache struct {
	m   sync.RWMutex
	ids map[string]bool
}

func NewMemorySeenCache() *MemorySeenCache {
	return &MemorySeenCache{ids: make(map[string]bool)}
}

func (c *MemorySeenCache) Seen(ctx context.Context, id string) (bool, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.ids[id], nil
}

func (c *MemorySeenCache) MarkSeen(ctx context.Context, ids ...string) error {
	c.m.Lock()
	defer c.m.Unlock()
	for _, id := range ids {
		c.ids[id] = true
	}
	return nil
}

func (c *MemorySeenCache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.ids)
}

// RedisSeenCache keeps ids in one redis set so the cache survives restarts
// of the daemon.
type RedisSeenCache struct {
	client *redis.Client
	key    string
}

func NewRedisSeenCache(client *redis.Client, key string) *RedisSeenCache {
	if key == "" {
		key = DefaultRedisSeenKey
	}
	return &RedisSeenCache{client: client, key: key}
}

func (c *RedisSeenCache) Seen(ctx context.Context, id string) (bool, error) {
	seen, err := c.client.SIsMember(ctx, c.key, id).Result()
	return seen, errors.Wrapf(err, "fail to check %s in redis set %s", id, c.key)
}

func (c *RedisSeenCache) MarkSeen(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		members = append(members, id)
	}
	return errors.Wrapf(c.client.SAdd(ctx, c.key, members...).Err(), "fail to add to redis set %s", c.key)
}
