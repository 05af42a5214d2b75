package cache

import (
	"context"
	"errors"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// redisClient implementa Client sobre go-redis.
type redisClient struct {
	c      *rdb.Client
	prefix string
}

// NewRedis crea un cliente Redis.
func NewRedis(cfg Config) (Client, error) {
	client := rdb.NewClient(&rdb.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	return &redisClient{c: client, prefix: cfg.Prefix}, nil
}

func (r *redisClient) key(k string) string { return r.prefix + k }

func (r *redisClient) Get(ctx context.Context, key string) (string, error) {
	v, err := r.c.Get(ctx, r.key(key)).Result()
	if errors.Is(err, rdb.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (r *redisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.c.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *redisClient) Delete(ctx context.Context, key string) error {
	return r.c.Del(ctx, r.key(key)).Err()
}

func (r *redisClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.c.Exists(ctx, r.key(key)).Result()
	return n > 0, err
}

func (r *redisClient) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *redisClient) Close() error { return r.c.Close() }

// Redis expone el cliente subyacente para componentes que necesitan
// operaciones atómicas (ej: rate limiter con INCR/EXPIRE).
func (r *redisClient) Redis() *rdb.Client { return r.c }
