package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"adstudio-backend-go/internal/models"
)

const balanceKeyPrefix = "adstudio:balance:"

// RedisBalanceCache is an implementation of BalanceCache using Redis.
type RedisBalanceCache struct {
	client redis.Cmdable
	closer func() error
	ttl    time.Duration
	logger *zap.Logger
}

// RedisConfig contains options for creating a new RedisBalanceCache.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisBalanceCache connects to Redis and verifies the connection with PING.
func NewRedisBalanceCache(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisBalanceCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}
	logger.Info("Connected to Redis balance cache", zap.String("address", cfg.Address), zap.Duration("ttl", cfg.TTL))
	return newRedisBalanceCache(rdb, rdb.Close, cfg.TTL, logger), nil
}

func newRedisBalanceCache(client redis.Cmdable, closer func() error, ttl time.Duration, logger *zap.Logger) *RedisBalanceCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisBalanceCache{client: client, closer: closer, ttl: ttl, logger: logger}
}

func balanceKey(userID string) string {
	return balanceKeyPrefix + userID
}

// Get returns ErrMiss when the key does not exist.
func (r *RedisBalanceCache) Get(ctx context.Context, userID string) (models.Balance, error) {
	val, err := r.client.Get(ctx, balanceKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Balance{}, ErrMiss
	}
	if err != nil {
		return models.Balance{}, fmt.Errorf("redis get %s: %w", userID, err)
	}
	var b models.Balance
	if err := json.Unmarshal(val, &b); err != nil {
		r.logger.Warn("Dropping undecodable cached balance", zap.String("user_id", userID), zap.Error(err))
		return models.Balance{}, ErrMiss
	}
	return b, nil
}

func (r *RedisBalanceCache) Set(ctx context.Context, userID string, balance models.Balance) error {
	payload, err := json.Marshal(balance)
	if err != nil {
		return fmt.Errorf("marshal balance: %w", err)
	}
	if err := r.client.Set(ctx, balanceKey(userID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", userID, err)
	}
	return nil
}

func (r *RedisBalanceCache) Invalidate(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, balanceKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", userID, err)
	}
	return nil
}

func (r *RedisBalanceCache) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
