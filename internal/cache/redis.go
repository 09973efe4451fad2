package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/flightdesk/config"
	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const lockRetryInterval = 50 * time.Millisecond

type RedisCache struct {
	client      *redis.Client
	searchTTL   time.Duration
	lockWait    time.Duration
	dedupeTTL   time.Duration
	retryPeriod time.Duration
}

func NewRedisCache(cfg config.RedisConfig, searchTTL, lockWait time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		searchTTL, lockWait,
	)
}

func NewRedisCacheWithClient(client *redis.Client, searchTTL, lockWait time.Duration) *RedisCache {
	return &RedisCache{
		client:      client,
		searchTTL:   searchTTL,
		lockWait:    lockWait,
		dedupeTTL:   24 * time.Hour,
		retryPeriod: lockRetryInterval,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Save(ctx context.Context, snap domain.SearchSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, searchKey(snap.ID), payload, c.searchTTL).Err()
}

func (c *RedisCache) Load(ctx context.Context, id string) (domain.SearchSnapshot, error) {
	var snap domain.SearchSnapshot
	data, err := c.client.Get(ctx, searchKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return snap, fmt.Errorf("search %s: %w", id, domain.ErrNotFound)
		}
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// Acquire takes a per-key lock, waiting at most lockWait. The returned
// release func is safe to call once the lock has expired.
func (c *RedisCache) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(c.lockWait)

	for {
		ok, err := c.client.SetNX(ctx, lockKey(key), token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				_ = releaseScript.Run(context.Background(), c.client, []string{lockKey(key)}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %s: %w", key, domain.ErrConcurrencyConflict)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryPeriod):
		}
	}
}

// FirstDelivery records key and reports whether it was unseen.
func (c *RedisCache) FirstDelivery(ctx context.Context, key string) (bool, error) {
	return c.client.SetNX(ctx, dedupeKey(key), "1", c.dedupeTTL).Result()
}

// Forget drops a dedupe key so a failed delivery can be processed again.
func (c *RedisCache) Forget(ctx context.Context, key string) error {
	return c.client.Del(ctx, dedupeKey(key)).Err()
}

func searchKey(id string) string {
	return "cache:search:" + id
}

func lockKey(key string) string {
	return "lock:" + key
}

func dedupeKey(key string) string {
	return "dedupe:webhook:" + key
}
