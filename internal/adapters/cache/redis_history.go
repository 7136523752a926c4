package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"eventstream/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when no page is stored under the query.
var ErrCacheMiss = domain.ErrCacheMiss

// RedisConfig holds the connection settings for the history cache.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RedisHistoryCache stores history pages as JSON. Every key embeds the event's
// generation, so bumping the generation orphans all pages of that event at once.
type RedisHistoryCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisHistoryCache(cfg RedisConfig, ttl time.Duration) (*RedisHistoryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisHistoryCache(client, ttl), nil
}

func newRedisHistoryCache(client *redis.Client, ttl time.Duration) *RedisHistoryCache {
	return &RedisHistoryCache{
		client: client,
		prefix: "chat:history",
		ttl:    ttl,
	}
}

func (c *RedisHistoryCache) generationKey(eventID string) string {
	return fmt.Sprintf("%s:%s:gen", c.prefix, eventID)
}

func (c *RedisHistoryCache) generation(ctx context.Context, eventID string) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(eventID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read generation: %w", err)
	}
	return gen, nil
}

// BuildKey returns the page key for q under generation gen.
func (c *RedisHistoryCache) BuildKey(eventID string, gen int64, q domain.HistoryQuery) string {
	before := "latest"
	if q.Before != nil {
		before = strconv.FormatInt(q.Before.UTC().UnixNano(), 10)
	}
	return fmt.Sprintf("%s:%s:%d:%s:%d", c.prefix, eventID, gen, before, q.Limit)
}

func (c *RedisHistoryCache) Get(ctx context.Context, eventID string, q domain.HistoryQuery) ([]*domain.ChatMessage, int64, error) {
	gen, err := c.generation(ctx, eventID)
	if err != nil {
		return nil, 0, err
	}
	data, err := c.client.Get(ctx, c.BuildKey(eventID, gen, q)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, gen, ErrCacheMiss
		}
		return nil, 0, fmt.Errorf("failed to get from redis: %w", err)
	}

	var msgs []*domain.ChatMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return msgs, gen, nil
}

// Set writes under gen, the generation observed by Get before the store was read. A clear
// in between has already bumped the generation, so the page lands under a dead key.
func (c *RedisHistoryCache) Set(ctx context.Context, eventID string, gen int64, q domain.HistoryQuery, msgs []*domain.ChatMessage) error {
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	if err := c.client.Set(ctx, c.BuildKey(eventID, gen, q), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

// Invalidate bumps the event's generation. Old pages expire on their own TTL.
func (c *RedisHistoryCache) Invalidate(ctx context.Context, eventID string) error {
	if err := c.client.Incr(ctx, c.generationKey(eventID)).Err(); err != nil {
		return fmt.Errorf("failed to bump generation: %w", err)
	}
	return nil
}

func (c *RedisHistoryCache) Close() error {
	return c.client.Close()
}

// NoopHistoryCache never stores anything; every Get is a miss.
type NoopHistoryCache struct{}

func (NoopHistoryCache) Get(context.Context, string, domain.HistoryQuery) ([]*domain.ChatMessage, int64, error) {
	return nil, 0, ErrCacheMiss
}

func (NoopHistoryCache) Set(context.Context, string, int64, domain.HistoryQuery, []*domain.ChatMessage) error {
	return nil
}

func (NoopHistoryCache) Invalidate(context.Context, string) error {
	return nil
}

var (
	_ domain.HistoryCache = (*RedisHistoryCache)(nil)
	_ domain.HistoryCache = NoopHistoryCache{}
)
