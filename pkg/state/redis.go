package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ongoing/pkg/logger"
)

// RedisStore keeps each key as a JSON string under a namespace prefix.
type RedisStore struct {
	log    *logger.Logger
	client *redis.Client
	prefix string
}

// RedisStoreConfig configures the Redis store.
type RedisStoreConfig struct {
	Addr     string // Redis address (host:port)
	Password string
	DB       int
	Prefix   string // Key prefix for namespacing
}

// NewRedisStore connects and pings the server.
func NewRedisStore(log *logger.Logger, cfg *RedisStoreConfig) (*RedisStore, error) {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ongoing:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	log.Info("Connected to Redis state store",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("prefix", prefix))

	return &RedisStore{log: log, client: client, prefix: prefix}, nil
}

func (s *RedisStore) prefixKey(key string) string {
	return s.prefix + key
}

func (s *RedisStore) unprefixKey(key string) string {
	return strings.TrimPrefix(key, s.prefix)
}

func decodeValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// Get retrieves a value from the store.
func (s *RedisStore) Get(ctx context.Context, key string) (interface{}, bool, error) {
	val, err := s.client.Get(ctx, s.prefixKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return decodeValue(val), true, nil
}

// Set stores a value.
func (s *RedisStore) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling value: %w", err)
	}
	if err := s.client.Set(ctx, s.prefixKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a value.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefixKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Keys returns all keys under the prefix.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var result []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		result = append(result, s.unprefixKey(iter.Val()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return result, nil
}

// GetAll returns a copy of all data.
func (s *RedisStore) GetAll(ctx context.Context) (map[string]interface{}, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetMany(ctx, keys...)
}

// GetMany reads all keys with a single MGET.
func (s *RedisStore) GetMany(ctx context.Context, keys ...string) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefixKey(k)
	}
	values, err := s.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		result[keys[i]] = decodeValue(raw)
	}
	return result, nil
}

// SetMany writes all values inside one MULTI/EXEC.
func (s *RedisStore) SetMany(ctx context.Context, values map[string]interface{}) error {
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", k, err)
		}
		encoded[k] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, data := range encoded {
			pipe.Set(ctx, s.prefixKey(k), data, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis multi set: %w", err)
	}
	return nil
}

// UpdateFunc runs updateFn inside WATCH/MULTI so a concurrent writer
// aborts the transaction instead of being overwritten.
func (s *RedisStore) UpdateFunc(ctx context.Context, key string, updateFn func(current interface{}) (interface{}, error)) error {
	prefixedKey := s.prefixKey(key)

	txf := func(tx *redis.Tx) error {
		var current interface{}
		val, err := tx.Get(ctx, prefixedKey).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			current = decodeValue(val)
		}

		next, err := updateFn(current)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshaling value: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, prefixedKey, data, 0)
			return nil
		})
		return err
	}

	const maxRetries = 5
	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, txf, prefixedKey)
		if errors.Is(err, redis.TxFailedErr) {
			s.log.Debug("Redis update raced, retrying", zap.String("key", key), zap.Int("attempt", i+1))
			continue
		}
		if err != nil {
			return fmt.Errorf("redis transaction: %w", err)
		}
		return nil
	}
	return fmt.Errorf("redis transaction: %w", redis.TxFailedErr)
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
