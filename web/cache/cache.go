package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gameshub/uvlhub/logger"
	"github.com/goccy/go-json"
)

const (
	TTLTrending        = time.Minute
	TTLRecommendations = 5 * time.Minute
)

const (
	KeyTrendingPrefix        = "datasets:trending:"
	KeyRecommendationsPrefix = "datasets:recommended:"
)

// GetJSON reads key and unmarshals it into dest.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) error {
	val, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if val == "" {
		return fmt.Errorf("empty value for key: %s", key)
	}
	return json.Unmarshal([]byte(val), dest)
}

// SetJSON marshals value and stores it under key.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.Set(ctx, key, string(data), expiration)
}

// GetOrSet fills dest from the cache, or from fn on a miss. Cache failures
// are logged and never hide fn's result.
func (c *Cache) GetOrSet(ctx context.Context, key string, dest any, expiration time.Duration, fn func() (any, error)) error {
	err := c.GetJSON(ctx, key, dest)
	if err == nil {
		logger.Debugf("Cache hit for key: %s", key)
		return nil
	}
	if !errors.Is(err, ErrMiss) {
		logger.Warningf("Cache read failed for key %s: %v", key, err)
	}

	value, err := fn()
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.Set(ctx, key, string(data), expiration); err != nil {
		logger.Warningf("Failed to set cache for key %s: %v", key, err)
	}
	return json.Unmarshal(data, dest)
}

// InvalidateDatasets drops every cached dataset query.
func (c *Cache) InvalidateDatasets(ctx context.Context) error {
	return errors.Join(
		c.DeletePattern(ctx, KeyTrendingPrefix+"*"),
		c.DeletePattern(ctx, KeyRecommendationsPrefix+"*"),
	)
}
