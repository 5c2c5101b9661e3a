package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/errors"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
)

const runPrefix = "run:"

// RedisStore is a Redis-backed implementation of the Store interface,
// for deployments where runs must survive instance restarts.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOptions extends redis.Options with additional configuration.
// TTL bounds how long an abandoned run lingers; zero keeps runs
// forever.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	TTL          time.Duration
}

// NewRedisStore creates a new RedisStore instance with configurable options.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return &RedisStore{client: client, ttl: opts.TTL}, nil
}

// SaveRun saves a run to Redis.
func (s *RedisStore) SaveRun(ctx context.Context, run structs.RunState) error {
	return withContextError(ctx, func() error {
		if run.ID == "" {
			return errors.NewValidationError("id", "run id is required")
		}
		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("failed to marshal run %s: %v", run.ID, err)
		}
		key := runPrefix + run.ID
		if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to set %s in Redis: %v", key, err)
		}
		return nil
	})
}

// GetRun retrieves a run from Redis.
func (s *RedisStore) GetRun(ctx context.Context, id string) (structs.RunState, error) {
	return withContext(ctx, func() (structs.RunState, error) {
		key := runPrefix + id
		data, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return structs.RunState{}, fmt.Errorf("%w: id=%s", errors.ErrRunNotFound, id)
		} else if err != nil {
			return structs.RunState{}, fmt.Errorf("failed to get %s from Redis: %v", key, err)
		}

		var run structs.RunState
		if err := json.Unmarshal(data, &run); err != nil {
			return structs.RunState{}, fmt.Errorf("failed to unmarshal run %s: %v", id, err)
		}
		return run, nil
	})
}

// DeleteRun removes a run from Redis. Deleting an unknown id is a
// no-op.
func (s *RedisStore) DeleteRun(ctx context.Context, id string) error {
	return withContextError(ctx, func() error {
		if err := s.client.Del(ctx, runPrefix+id).Err(); err != nil {
			return fmt.Errorf("failed to delete run %s from Redis: %v", id, err)
		}
		return nil
	})
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
