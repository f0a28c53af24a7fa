package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisDialTimeout = 5 * time.Second
	redisIOTimeout   = 3 * time.Second
)

var _ Cache = (*RedisClient)(nil)

// RedisClient хранит ссылки в Redis в виде JSON
type RedisClient struct {
	rdb  *redis.Client
	ttl  time.Duration
	keys *KeyBuilder
}

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	CacheTTL     int    // в секундах, 0 - без истечения
	Namespace    string // префикс ключей для нескольких окружений в одной базе
}

func (cfg RedisConfig) options() *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisIOTimeout,
		WriteTimeout: redisIOTimeout,
	}
}

// NewRedisClient подключается и сразу проверяет соединение
func NewRedisClient(cfg RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(cfg.options())

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, NewCacheError("connect", client.Options().Addr, err)
	}

	return &RedisClient{
		rdb:  client,
		ttl:  time.Duration(cfg.CacheTTL) * time.Second,
		keys: NewKeyBuilder(cfg.Namespace),
	}, nil
}

func (r *RedisClient) Set(ctx context.Context, key string, value interface{}) error {
	return r.SetWithTTL(ctx, key, value, r.ttl)
}

func (r *RedisClient) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return NewCacheError("set", key, fmt.Errorf("encode: %w", err))
	}
	return r.put(ctx, key, data, ttl)
}

func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.fetch(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return NewCacheError("get", key, fmt.Errorf("decode: %w", err))
	}
	return nil
}

// SetString пишет значение как есть, без JSON
func (r *RedisClient) SetString(ctx context.Context, key string, value string) error {
	return r.put(ctx, key, []byte(value), r.ttl)
}

func (r *RedisClient) GetString(ctx context.Context, key string) (string, error) {
	data, err := r.fetch(ctx, key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	nonEmpty := keys[:0:0]
	for _, key := range keys {
		if key != "" {
			nonEmpty = append(nonEmpty, key)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}

	return wrapRedisError("delete", "", r.rdb.Del(ctx, nonEmpty...).Err())
}

func (r *RedisClient) Keys() *KeyBuilder {
	return r.keys
}

func (r *RedisClient) HealthCheck(ctx context.Context) error {
	return wrapRedisError("ping", "", r.rdb.Ping(ctx).Err())
}

func (r *RedisClient) Close() error {
	return wrapRedisError("close", "", r.rdb.Close())
}

func (r *RedisClient) put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if key == "" {
		return NewCacheError("set", key, ErrInvalidCacheKey)
	}
	return wrapRedisError("set", key, r.rdb.Set(ctx, key, data, ttl).Err())
}

func (r *RedisClient) fetch(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, NewCacheError("get", key, ErrInvalidCacheKey)
	}
	data, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, wrapRedisError("get", key, err)
	}
	return data, nil
}

// wrapRedisError переводит redis.Nil в ErrCacheMiss, остальное оборачивает в CacheError
func wrapRedisError(op, key string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	default:
		return NewCacheError(op, key, err)
	}
}
