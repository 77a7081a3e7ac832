// Package resume persists Gemini Live session-resumption handles so a
// reconnecting client can pick up its previous conversation.
package resume

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound reports that no handle is stored for the key.
var ErrNotFound = errors.New("resume: handle not found")

// Store saves the latest resumption handle per key. Keys are
// caller-defined; the live handler uses the authenticated user's email.
type Store interface {
	Save(ctx context.Context, key, handle string) error
	Load(ctx context.Context, key string) (string, error)
}

// RedisStore keeps handles in redis with a TTL, so stale handles age
// out on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func resumeKey(key string) string {
	return "apsara:resume:" + key
}

func (s *RedisStore) Save(ctx context.Context, key, handle string) error {
	if err := s.client.Set(ctx, resumeKey(key), handle, s.ttl).Err(); err != nil {
		return fmt.Errorf("save resume handle: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (string, error) {
	handle, err := s.client.Get(ctx, resumeKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load resume handle: %w", err)
	}
	return handle, nil
}

// MemoryStore is the fallback when redis is not configured. Handles
// expire lazily on Load.
type MemoryStore struct {
	ttl time.Duration

	mu      sync.Mutex
	handles map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	handle  string
	savedAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{
		ttl:     ttl,
		handles: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, key, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[key] = memoryEntry{handle: handle, savedAt: s.now()}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.handles[key]
	if !ok {
		return "", ErrNotFound
	}
	if s.now().Sub(entry.savedAt) > s.ttl {
		delete(s.handles, key)
		return "", ErrNotFound
	}
	return entry.handle, nil
}
