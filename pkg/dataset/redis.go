package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list key used when none is configured.
const DefaultRedisKey = "viewcast:dataset"

// RedisSource reads the dataset from a Redis list whose elements are
// JSON-encoded Records. It lets several board instances share one dataset
// without shipping a file to each of them.
type RedisSource struct {
	client *redis.Client
	key    string
	mu     sync.RWMutex
}

// NewRedisSource connects to Redis and verifies the connection.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//   - key: list key holding the records (empty uses DefaultRedisKey)
func NewRedisSource(addr, password string, db int, key string) (*RedisSource, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if key == "" {
		key = DefaultRedisKey
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisSource{client: client, key: key}, nil
}

func (r *RedisSource) Name() string { return "redis" }

// Key returns the list key the source reads from.
func (r *RedisSource) Key() string { return r.key }

// Load implements Source.
func (r *RedisSource) Load(ctx context.Context) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.client == nil {
		return nil, errors.New("redis source: closed")
	}

	items, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis source: read %s: %w", r.key, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("redis source: key %s is empty or missing", r.key)
	}

	records := make([]Record, len(items))
	for i, item := range items {
		if err := json.Unmarshal([]byte(item), &records[i]); err != nil {
			return nil, fmt.Errorf("redis source: record %d: %w: %v", i, ErrInvalidRecord, err)
		}
	}

	if err := validateAll(records); err != nil {
		return nil, fmt.Errorf("redis source: %w", err)
	}
	return records, nil
}

// Replace atomically swaps the stored dataset for records.
// Used to seed Redis from another source.
func (r *RedisSource) Replace(ctx context.Context, records []Record) error {
	if err := validateAll(records); err != nil {
		return err
	}

	values := make([]any, len(records))
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record %d: %w", i, err)
		}
		values[i] = data
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.client == nil {
		return errors.New("redis source: closed")
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(values) > 0 {
			pipe.RPush(ctx, r.key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store dataset in redis: %w", err)
	}
	return nil
}

// Close closes the Redis client connection.
// It is safe to call multiple times.
func (r *RedisSource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if err != nil && errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
