package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is where the key document lives when none is configured.
const DefaultRedisKey = "keygate:keys"

// RedisStore keeps the key document under a single redis key, letting
// several ephemeral instances share one set of records.
type RedisStore struct {
	*documentStore
	client *redis.Client
	key    string
}

// NewRedisStore wraps an existing client. The store owns the client and
// closes it on Close.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	rs := &RedisStore{client: client, key: key}
	rs.documentStore = newDocumentStore(rs)
	return rs
}

// OpenRedis connects to addr and verifies the connection.
func OpenRedis(ctx context.Context, addr, password string, db int, key string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, key), nil
}

func (rs *RedisStore) readBlob(ctx context.Context) ([]byte, error) {
	data, err := rs.client.Get(ctx, rs.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (rs *RedisStore) writeBlob(ctx context.Context, data []byte) error {
	return rs.client.Set(ctx, rs.key, data, 0).Err()
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
