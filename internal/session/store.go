package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"semaphore/gradebook/internal/crypto"
	"semaphore/gradebook/internal/model"
)

var ErrNotFound = errors.New("session not found")

// Store keeps session identities keyed by the hash of their opaque token.
type Store interface {
	Save(ctx context.Context, token string, identity model.Identity, ttl time.Duration) error
	Load(ctx context.Context, token string) (model.Identity, error)
	Delete(ctx context.Context, token string) error
}

const redisKeyPrefix = "gradebook:session:"

type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, token string, identity model.Identity, ttl time.Duration) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, token string) (model.Identity, error) {
	payload, err := s.client.Get(ctx, redisKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Identity{}, ErrNotFound
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("load session: %w", err)
	}
	var identity model.Identity
	if err := json.Unmarshal(payload, &identity); err != nil {
		return model.Identity{}, fmt.Errorf("decode session: %w", err)
	}
	return identity, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, redisKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func redisKey(token string) string {
	return redisKeyPrefix + crypto.HashToken(token)
}

type memoryEntry struct {
	identity  model.Identity
	expiresAt time.Time
}

// MemoryStore is the single-process fallback used when Redis is not
// configured. Expired entries are dropped on read and by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, token string, identity model.Identity, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[crypto.HashToken(token)] = memoryEntry{identity: identity, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, token string) (model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := crypto.HashToken(token)
	entry, ok := s.entries[key]
	if !ok {
		return model.Identity{}, ErrNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return model.Identity{}, ErrNotFound
	}
	return entry.identity, nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, crypto.HashToken(token))
	return nil
}

// Sweep removes every session expired at now and returns how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
