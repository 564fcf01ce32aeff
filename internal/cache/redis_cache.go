package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisReceiptCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisReceiptCache(rdb *redis.Client, ttl time.Duration) *RedisReceiptCache {
	return &RedisReceiptCache{rdb: rdb, ttl: ttl}
}

func key(orderID string) string {
	return fmt.Sprintf("delivered:%s", orderID)
}

func (c *RedisReceiptCache) StoreDelivered(ctx context.Context, orderID, photoRef string, deliveredAt time.Time) error {
	k := key(orderID)

	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, k, photoRef)
	pipe.HSet(ctx, k+":at", photoRef, deliveredAt.UTC().Format(time.RFC3339))
	pipe.Expire(ctx, k, c.ttl)
	pipe.Expire(ctx, k+":at", c.ttl)

	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisReceiptCache) Delivered(ctx context.Context, orderID string) ([]string, error) {
	return c.rdb.SMembers(ctx, key(orderID)).Result()
}
