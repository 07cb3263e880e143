package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"property-concierge/internal/common/metrics"
	"property-concierge/internal/models"
)

const propertyListKey = "concierge:properties:all"

// PropertyCache is a read-through cache in front of PropertyStore.List.
// Redis is optional: with a nil client, and on any cache error, reads fall
// straight through to the database.
type PropertyCache struct {
	store  *PropertyStore
	client *redis.Client
	ttl    time.Duration
	limit  int
	logger Logger
}

func NewPropertyCache(store *PropertyStore, client *redis.Client, ttl time.Duration, limit int, log Logger) *PropertyCache {
	return &PropertyCache{
		store:  store,
		client: client,
		ttl:    ttl,
		limit:  limit,
		logger: log.With(map[string]interface{}{
			"component": "property-cache",
		}),
	}
}

// List returns the cached property list, refreshing from the database on a
// miss. Cache failures degrade to a database read.
func (c *PropertyCache) List(ctx context.Context) ([]models.Property, error) {
	if c.client != nil {
		cached, err := c.client.Get(ctx, propertyListKey).Result()
		if err == nil {
			var properties []models.Property
			if jsonErr := json.Unmarshal([]byte(cached), &properties); jsonErr == nil {
				metrics.CacheOpsTotal.WithLabelValues("hit").Inc()
				return properties, nil
			}
			// A corrupt entry is dropped and refreshed below.
			c.client.Del(ctx, propertyListKey)
		} else if err != redis.Nil {
			metrics.CacheOpsTotal.WithLabelValues("error").Inc()
			c.logger.Warn("property cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	metrics.CacheOpsTotal.WithLabelValues("miss").Inc()
	properties, err := c.store.List(ctx, c.limit)
	if err != nil {
		return nil, err
	}

	if c.client != nil {
		if encoded, jsonErr := json.Marshal(properties); jsonErr == nil {
			if setErr := c.client.Set(ctx, propertyListKey, encoded, c.ttl).Err(); setErr != nil {
				c.logger.Warn("property cache write failed", map[string]interface{}{
					"error": setErr.Error(),
				})
			}
		}
	}
	return properties, nil
}

// Invalidate drops the cached list; the next List refreshes it.
func (c *PropertyCache) Invalidate(ctx context.Context) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, propertyListKey).Err(); err != nil {
		c.logger.Warn("property cache invalidation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
