package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const keyPrefix = "doc:"

// RedisStore implements DocumentStore on Redis. Each document path maps to
// one Redis key; Transact is WATCH/MULTI/EXEC, so a conflicting write to any
// watched path between the read and EXEC aborts the transaction.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Read(ctx context.Context, path string) ([]byte, error) {
	val, err := s.client.Get(ctx, keyPrefix+path).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return val, nil
}

func (s *RedisStore) List(ctx context.Context, path string) (map[string][]byte, error) {
	prefix := keyPrefix + path + "/"
	children := make(map[string][]byte)

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		for _, key := range keys {
			child := strings.TrimPrefix(key, prefix)
			if strings.Contains(child, "/") {
				continue
			}
			val, err := s.client.Get(ctx, key).Bytes()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			children[child] = val
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return children, nil
}

func (s *RedisStore) AtomicUpdate(ctx context.Context, updates map[string][]byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		applyUpdates(ctx, pipe, updates)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Transact(ctx context.Context, paths []string, fn UpdateFn) error {
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = keyPrefix + p
	}

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current := make(map[string][]byte, len(paths))
		for i, key := range keys {
			val, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			current[paths[i]] = val
		}

		updates, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			applyUpdates(ctx, pipe, updates)
			return nil
		})
		return err
	}, keys...)

	if err == redis.TxFailedErr {
		return ErrConflict
	}
	return err
}

func (s *RedisStore) NewKey(parentPath string) string {
	return uuid.NewString()
}

func applyUpdates(ctx context.Context, pipe redis.Pipeliner, updates map[string][]byte) {
	for path, val := range updates {
		if val == nil {
			pipe.Del(ctx, keyPrefix+path)
			continue
		}
		pipe.Set(ctx, keyPrefix+path, val, 0)
	}
}
