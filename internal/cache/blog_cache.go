// Package cache holds the blog list page cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"inkpost/internal/model"

	"github.com/redis/go-redis/v9"
)

// BlogListCache caches list pages per generation. Invalidate moves to a new
// generation, so pages stored under an older one are never returned again.
type BlogListCache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64, offset, limit int) ([]model.Blog, bool, error)
	Set(ctx context.Context, gen int64, offset, limit int, blogs []model.Blog) error
	Invalidate(ctx context.Context) error
}

const generationKey = "blogs:list:gen"

type redisBlogListCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBlogListCache connects to redisURL (redis://...) and pings it.
func NewRedisBlogListCache(ctx context.Context, redisURL string, ttl time.Duration) (BlogListCache, *redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewBlogListCache(client, ttl), client, nil
}

func NewBlogListCache(client *redis.Client, ttl time.Duration) BlogListCache {
	return &redisBlogListCache{client: client, ttl: ttl}
}

func pageKey(gen int64, offset, limit int) string {
	return fmt.Sprintf("blogs:list:g%d:o%d:l%d", gen, offset, limit)
}

func (c *redisBlogListCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read blog cache generation: %w", err)
	}
	return gen, nil
}

func (c *redisBlogListCache) Get(ctx context.Context, gen int64, offset, limit int) ([]model.Blog, bool, error) {
	raw, err := c.client.Get(ctx, pageKey(gen, offset, limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read blog page: %w", err)
	}
	var blogs []model.Blog
	if err := json.Unmarshal(raw, &blogs); err != nil {
		return nil, false, fmt.Errorf("decode blog page: %w", err)
	}
	return blogs, true, nil
}

func (c *redisBlogListCache) Set(ctx context.Context, gen int64, offset, limit int, blogs []model.Blog) error {
	raw, err := json.Marshal(blogs)
	if err != nil {
		return fmt.Errorf("encode blog page: %w", err)
	}
	if err := c.client.Set(ctx, pageKey(gen, offset, limit), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("store blog page: %w", err)
	}
	return nil
}

func (c *redisBlogListCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("bump blog cache generation: %w", err)
	}
	return nil
}

// Noop never hits. It is used when Redis is not configured.
type Noop struct{}

func (Noop) Generation(context.Context) (int64, error) { return 0, nil }
func (Noop) Get(context.Context, int64, int, int) ([]model.Blog, bool, error) {
	return nil, false, nil
}
func (Noop) Set(context.Context, int64, int, int, []model.Blog) error { return nil }
func (Noop) Invalidate(context.Context) error                         { return nil }
