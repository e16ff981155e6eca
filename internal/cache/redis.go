// Package cache provides the Redis client JVMPulse uses for live event
// pub/sub and per-node status snapshots.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	PoolSize int    `yaml:"pool_size" validate:"gte=0"`
}

// DefaultRedisConfig returns lean defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     constants.RedisDefaultAddr,
		PoolSize: constants.RedisPoolSize,
	}
}

// Redis wraps go-redis with the few commands the agent needs.
type Redis struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedis creates and pings a Redis connection.
func NewRedis(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, constants.RedisDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	logger.Info("Redis connected", zap.String("addr", cfg.Addr))
	return &Redis{client: client, logger: logger}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client redis.UniversalClient, logger *zap.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

// Publish sends a message to a pub/sub channel and returns the number of
// subscribers that received it.
func (r *Redis) Publish(ctx context.Context, channel string, msg any) (int64, error) {
	return r.client.Publish(ctx, channel, msg).Result()
}

// Subscribe returns a pub/sub subscription.
func (r *Redis) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return r.client.Subscribe(ctx, channel)
}

// PutStatus stores a node's status hash and refreshes its TTL in one round trip.
func (r *Redis) PutStatus(ctx context.Context, node string, fields map[string]any, ttl time.Duration) error {
	key := constants.RedisStatusKey + node
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fields)
		p.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// Status reads a node's status hash. A missing key yields an empty map.
func (r *Redis) Status(ctx context.Context, node string) (map[string]string, error) {
	return r.client.HGetAll(ctx, constants.RedisStatusKey+node).Result()
}

// Get returns a cached string value.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

// Set stores a string value with a TTL.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
