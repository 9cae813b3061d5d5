package oauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix  = "oauth:state:"
	memoryStateSize = 10_000
)

// StateStore issues single-use anti-CSRF state values bound to a provider.
// Consume reports true at most once per issued state, and never after the
// state has expired.
type StateStore interface {
	Issue(ctx context.Context, provider string) (string, error)
	Consume(ctx context.Context, provider string, state string) (bool, error)
}

func newState() string {
	return uuid.NewString()
}

// RedisStateStore shares state between instances behind a load balancer.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{client: client, ttl: ttl}
}

func (s *RedisStateStore) Issue(ctx context.Context, provider string) (string, error) {
	state := newState()
	if err := s.client.Set(ctx, stateKeyPrefix+state, provider, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return state, nil
}

func (s *RedisStateStore) Consume(ctx context.Context, provider string, state string) (bool, error) {
	if state == "" {
		return false, nil
	}

	stored, err := s.client.GetDel(ctx, stateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume oauth state: %w", err)
	}
	return stored == provider, nil
}

// MemoryStateStore keeps state in process. It only works for a single instance.
type MemoryStateStore struct {
	mu     sync.Mutex
	states *expirable.LRU[string, string]
}

func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	return &MemoryStateStore{states: expirable.NewLRU[string, string](memoryStateSize, nil, ttl)}
}

func (s *MemoryStateStore) Issue(_ context.Context, provider string) (string, error) {
	state := newState()
	s.states.Add(state, provider)
	return state, nil
}

func (s *MemoryStateStore) Consume(_ context.Context, provider string, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.states.Get(state)
	if !ok {
		return false, nil
	}
	s.states.Remove(state)
	return stored == provider, nil
}
