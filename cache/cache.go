// Package cache is the Redis layer in front of the statistic cache table and
// the store for refresh tokens.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"stocks-social/config"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrTokenNotFound is returned for unknown or expired refresh tokens.
var ErrTokenNotFound = errors.New("refresh token not found")

// Connect opens a Redis client and verifies it with PING.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// Redis stores statistic results and refresh tokens.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

type statPayload struct {
	Value *float64 `msgpack:"v"`
}

func statKey(key string) string { return "stat:" + key }

// GetStat returns a cached statistic. A nil value with ok=true is a cached
// "no data" result.
func (r *Redis) GetStat(ctx context.Context, key string) (value *float64, ok bool, err error) {
	raw, err := r.rdb.Get(ctx, statKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var p statPayload
	if err := msgpack.Unmarshal(raw, &p); err != nil {
		return nil, false, fmt.Errorf("decode cached stat %s: %w", key, err)
	}
	return p.Value, true, nil
}

// SetStat caches a statistic without expiry: results over a closed date
// range never change.
func (r *Redis) SetStat(ctx context.Context, key string, value *float64) error {
	raw, err := msgpack.Marshal(statPayload{Value: value})
	if err != nil {
		return err
	}
	return r.rdb.SetNX(ctx, statKey(key), raw, 0).Err()
}

func tokenKey(token string) string { return "refresh:" + token }

// StoreRefreshToken remembers token for userID until ttl elapses.
func (r *Redis) StoreRefreshToken(ctx context.Context, token string, userID uint, ttl time.Duration) error {
	return r.rdb.Set(ctx, tokenKey(token), userID, ttl).Err()
}

// ConsumeRefreshToken deletes a refresh token and returns the user it was
// issued to. GETDEL makes the read and delete one step, so a token can be
// consumed once.
func (r *Redis) ConsumeRefreshToken(ctx context.Context, token string) (uint, error) {
	v, err := r.rdb.GetDel(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTokenNotFound
	}
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt refresh token entry: %w", err)
	}
	return uint(id), nil
}

// RevokeRefreshToken deletes a refresh token.
func (r *Redis) RevokeRefreshToken(ctx context.Context, token string) error {
	return r.rdb.Del(ctx, tokenKey(token)).Err()
}
