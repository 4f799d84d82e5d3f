// Package cache short-circuits repeat analyses of the same normalized URL
// through Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/twmb/murmur3"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/core"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

const (
	verdictPrefix = "hera:verdict:"

	defaultTTL = time.Hour
)

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func New(cfg config.RedisConfig, log *logger.Logger) (core.VerdictCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.VerdictTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	log = log.WithComponent("cache")
	log.Infow("Verdict cache connected",
		"addr", cfg.Addr,
		"db", cfg.DB,
		"ttl", ttl.String())

	return &redisCache{client: client, ttl: ttl, log: log}, nil
}

// verdictKey hashes the normalized URL so arbitrarily long URLs map to
// fixed-size keys.
func verdictKey(url string) string {
	h1, h2 := murmur3.Sum128([]byte(url))
	return fmt.Sprintf("%s%016x%016x", verdictPrefix, h1, h2)
}

// Get returns (nil, nil) on a miss; only transport failures surface as
// errors.
func (c *redisCache) Get(ctx context.Context, url string) (*types.RiskReport, error) {
	data, err := c.client.Get(ctx, verdictKey(url)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var report types.RiskReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached verdict: %w", err)
	}
	return &report, nil
}

func (c *redisCache) Set(ctx context.Context, url string, report *types.RiskReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}
	return c.client.Set(ctx, verdictKey(url), data, c.ttl).Err()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
