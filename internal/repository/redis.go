package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/mikejsmtih1985/mbl2pc/internal/apperrors"
	"github.com/mikejsmtih1985/mbl2pc/internal/config"
)

// StateRepository holds one-shot OAuth state values between the login
// redirect and the provider callback.
type StateRepository interface {
	SaveState(ctx context.Context, state string, ttl time.Duration) error
	// ConsumeState deletes state and reports whether it was present.
	ConsumeState(ctx context.Context, state string) (bool, error)
}

type RedisStateRepository struct {
	client *redis.Client
}

func NewRedisStateRepository(cfg config.RedisConfig) (*RedisStateRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStateRepository{client: client}, nil
}

func stateKey(state string) string {
	return fmt.Sprintf("oauth:state:%s", state)
}

func (r *RedisStateRepository) SaveState(ctx context.Context, state string, ttl time.Duration) error {
	if err := r.client.Set(ctx, stateKey(state), "1", ttl).Err(); err != nil {
		return apperrors.NewStorageError("SET", "redis", err)
	}
	return nil
}

func (r *RedisStateRepository) ConsumeState(ctx context.Context, state string) (bool, error) {
	_, err := r.client.GetDel(ctx, stateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewStorageError("GETDEL", "redis", err)
	}
	return true, nil
}

func (r *RedisStateRepository) Close() error {
	return r.client.Close()
}

// MemoryStateRepository is used when no Redis address is configured.
type MemoryStateRepository struct {
	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{states: make(map[string]time.Time), now: time.Now}
}

func (r *MemoryStateRepository) SaveState(ctx context.Context, state string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for s, expires := range r.states {
		if now.After(expires) {
			delete(r.states, s)
		}
	}
	r.states[state] = now.Add(ttl)
	return nil
}

func (r *MemoryStateRepository) ConsumeState(ctx context.Context, state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expires, ok := r.states[state]
	if !ok {
		return false, nil
	}
	delete(r.states, state)
	return !r.now().After(expires), nil
}
