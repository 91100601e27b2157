package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/resale_cart/internal/models"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// versionTTL outlives any snapshot TTL so a counter never resets under a pending load.
const versionTTL = 24 * time.Hour

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
	jitter  time.Duration
}

// NewRedisCache stores snapshots for baseTTL plus up to a fifth of it as jitter.
func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = 5 * time.Minute
	}
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
		jitter:  baseTTL / 5,
	}
}

func (r *RedisCache) Get(ctx context.Context, userID uint) (*models.CartSnapshot, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var snap models.CartSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal cart snapshot: %w", err)
	}
	return &snap, nil
}

func (r *RedisCache) Version(ctx context.Context, userID uint) (int64, error) {
	v, err := readVersion(ctx, r.client, versionKey(userID))
	if err != nil {
		return 0, fmt.Errorf("redis get version: %w", err)
	}
	return v, nil
}

func (r *RedisCache) Set(ctx context.Context, userID uint, version int64, snap *models.CartSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal cart snapshot: %w", err)
	}

	verKey := versionKey(userID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readVersion(ctx, tx, verKey)
		if err != nil {
			return err
		}
		if cur != version {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(userID), data, r.ttl())
			return nil
		})
		return err
	}, verKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("redis set: %w", err)
	}
}

// Delete drops the snapshot and advances the version so in-flight loads cannot store
// what they read before the change.
func (r *RedisCache) Delete(ctx context.Context, userID uint) error {
	verKey := versionKey(userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cacheKey(userID))
		pipe.Incr(ctx, verKey)
		pipe.Expire(ctx, verKey, versionTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, c getter, key string) (int64, error) {
	v, err := c.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (r *RedisCache) ttl() time.Duration {
	if r.jitter <= 0 {
		return r.baseTTL
	}
	return r.baseTTL + rand.N(r.jitter)
}

func cacheKey(userID uint) string {
	return fmt.Sprintf("cart:%d", userID)
}

func versionKey(userID uint) string {
	return fmt.Sprintf("cart:%d:ver", userID)
}
