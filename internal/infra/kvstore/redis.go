package kvstore

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis"
	zlog "github.com/rs/zerolog/log"
)

type redisBackend struct {
	client *redis.Client
}

// NewRedis connects to a Redis server and verifies it answers PING.
func NewRedis(ctx context.Context, addr, password string, db int) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.WithContext(ctx).Ping().Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis at %s", addr)
	}
	zlog.Info().Msgf("kvstore: connected to redis: addr=%s db=%d", addr, db)
	return &redisBackend{client: client}, nil
}

func (b *redisBackend) Get(ctx context.Context, k string) (string, error) {
	v, err := b.client.WithContext(ctx).Get(k).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "redis get %s", k)
	}
	return v, nil
}

func (b *redisBackend) Set(ctx context.Context, k, v string) error {
	if err := b.client.WithContext(ctx).Set(k, v, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", k)
	}
	return nil
}

func (b *redisBackend) Del(ctx context.Context, k string) error {
	if err := b.client.WithContext(ctx).Del(k).Err(); err != nil {
		return errors.Wrapf(err, "redis del %s", k)
	}
	return nil
}

func (b *redisBackend) Close() error {
	return b.client.Close()
}
