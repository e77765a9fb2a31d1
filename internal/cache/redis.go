package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"tiendafacil/terminal/internal/domain"
)

const summaryKey = "terminal:stats:summary"

// RedisCache stores the stats summary as a JSON blob with a TTL. Cache
// failures are logged and treated as misses; the terminal never depends
// on redis being up.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr string, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) GetSummary(ctx context.Context) (*domain.StatsSummary, bool) {
	raw, err := c.client.Get(ctx, summaryKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("[cache] WARN: get failed: %v", err)
		return nil, false
	}

	var summary domain.StatsSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		log.Printf("[cache] WARN: corrupt summary entry: %v", err)
		return nil, false
	}
	return &summary, true
}

func (c *RedisCache) SetSummary(ctx context.Context, summary domain.StatsSummary) {
	raw, err := json.Marshal(summary)
	if err != nil {
		log.Printf("[cache] WARN: marshal summary: %v", err)
		return
	}
	if err := c.client.Set(ctx, summaryKey, raw, c.ttl).Err(); err != nil {
		log.Printf("[cache] WARN: set failed: %v", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, summaryKey).Err(); err != nil {
		log.Printf("[cache] WARN: invalidate failed: %v", err)
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
