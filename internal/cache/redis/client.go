package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stockwise/stockwizard/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetSearch(ctx context.Context, queryHash string, results interface{}, ttl time.Duration) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal search results: %w", err)
	}

	if err := c.client.Set(ctx, searchKey(queryHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set search cache: %w", err)
	}

	logger.Debug("Search results cached", zap.String("query_hash", queryHash), zap.Duration("ttl", ttl))
	return nil
}

// GetSearch decodes a cached result list into results. A miss is (false, nil).
func (c *Client) GetSearch(ctx context.Context, queryHash string, results interface{}) (bool, error) {
	data, err := c.client.Get(ctx, searchKey(queryHash)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get search cache: %w", err)
	}

	if err := json.Unmarshal(data, results); err != nil {
		return false, fmt.Errorf("failed to unmarshal search results: %w", err)
	}

	logger.Debug("Search cache hit", zap.String("query_hash", queryHash))
	return true, nil
}

func (c *Client) InvalidateSearchCache(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "search:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Search cache invalidated")
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func searchKey(queryHash string) string {
	return "search:" + queryHash
}
