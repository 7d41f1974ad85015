package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/ecommerce-orders/internal/domain"
	"github.com/sakashimaa/ecommerce-orders/pkg/mylogger"
	"github.com/sakashimaa/ecommerce-orders/pkg/utils"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// CacheInvalidator drops cached read models after they change.
type CacheInvalidator interface {
	InvalidateBuyer(ctx context.Context, id int64)
	InvalidateProduct(ctx context.Context, id int64)
}

type CachedDirectory interface {
	Directory
	CacheInvalidator
}

// cachedDirectory falls back to next whenever Redis misbehaves; the breaker
// stops hammering a dead Redis.
type cachedDirectory struct {
	next        Directory
	redisClient *redis.Client
	cacheTTL    time.Duration
	cb          *gobreaker.CircuitBreaker
	logger      *zap.Logger
}

func NewCachedDirectory(next Directory, redisClient *redis.Client, cacheTTL time.Duration, logger *zap.Logger) CachedDirectory {
	return &cachedDirectory{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
		cb:          utils.NewBreaker("Redis", logger),
		logger:      logger,
	}
}

func buyerKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func (d *cachedDirectory) GetBuyer(ctx context.Context, id int64) (*domain.Buyer, error) {
	key := buyerKey(id)

	val, err := utils.ExecuteWithBreaker(d.cb, func() (string, error) {
		val, err := d.redisClient.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return val, err
	})
	if err == nil && val != "" {
		var buyer domain.Buyer
		if err := json.Unmarshal([]byte(val), &buyer); err == nil {
			return &buyer, nil
		}
	}

	buyer, err := d.next.GetBuyer(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(buyer); err == nil {
		d.set(ctx, map[string][]byte{key: data})
	}

	return buyer, nil
}

func (d *cachedDirectory) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	result := make(map[int64]*domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}

	vals, err := utils.ExecuteWithBreaker(d.cb, func() ([]interface{}, error) {
		return d.redisClient.MGet(ctx, keys...).Result()
	})
	if err != nil {
		mylogger.Warn(
			ctx,
			d.logger,
			"Product cache unavailable",
			zap.Error(err),
		)
	}

	missing := make([]int64, 0, len(ids))
	for i, id := range ids {
		if i < len(vals) {
			if raw, ok := vals[i].(string); ok {
				var product domain.Product
				if err := json.Unmarshal([]byte(raw), &product); err == nil {
					result[id] = &product
					continue
				}
			}
		}

		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := d.next.GetProducts(ctx, missing)
	if err != nil {
		return nil, err
	}

	toCache := make(map[string][]byte, len(fetched))
	for id, product := range fetched {
		result[id] = product

		if data, err := json.Marshal(product); err == nil {
			toCache[productKey(id)] = data
		}
	}

	d.set(ctx, toCache)

	return result, nil
}

func (d *cachedDirectory) InvalidateBuyer(ctx context.Context, id int64) {
	d.del(ctx, buyerKey(id))
}

func (d *cachedDirectory) InvalidateProduct(ctx context.Context, id int64) {
	d.del(ctx, productKey(id))
}

func (d *cachedDirectory) set(ctx context.Context, entries map[string][]byte) {
	if len(entries) == 0 {
		return
	}

	_, err := utils.ExecuteWithBreaker(d.cb, func() ([]redis.Cmder, error) {
		return d.redisClient.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for key, data := range entries {
				pipe.Set(ctx, key, data, d.cacheTTL)
			}
			return nil
		})
	})
	if err != nil {
		mylogger.Warn(
			ctx,
			d.logger,
			"Failed to write cache",
			zap.Int("keys", len(entries)),
			zap.Error(err),
		)
	}
}

func (d *cachedDirectory) del(ctx context.Context, key string) {
	_, err := utils.ExecuteWithBreaker(d.cb, func() (int64, error) {
		return d.redisClient.Del(ctx, key).Result()
	})
	if err != nil {
		mylogger.Warn(
			ctx,
			d.logger,
			"Failed to invalidate cache",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
