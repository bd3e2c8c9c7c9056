package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis-backed store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key so several clients can share one Redis.
	Prefix string
}

// Redis is a Store on top of a Redis database.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client, prefix: opts.Prefix}, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(r.prefix+prefix) + "*"
	keys := make([]string, 0)
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, match, 256).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, r.prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(keys)
	return dedupe(keys), nil
}

// Ping reports whether Redis answers.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}

// SCAN may return a key more than once.
func dedupe(sorted []string) []string {
	out := make([]string, 0, len(sorted))
	for _, k := range sorted {
		if len(out) > 0 && out[len(out)-1] == k {
			continue
		}
		out = append(out, k)
	}
	return out
}
