package csrf

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Storage keeps server side tokens keyed by browser (and account).
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryStorage is a process local Storage, for single instance setups.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: map[string]memoryEntry{}, now: time.Now}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return "", nil
	}
	return e.value, nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{value: value}
	if expiration > 0 {
		e.expires = m.now().Add(expiration)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// RedisStorage shares tokens between instances.
type RedisStorage struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStorage(client redis.Cmdable, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = "accounts:"
	}
	return &RedisStorage{client: client, prefix: prefix}
}

// Get returns "" without error for missing keys.
func (r *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

func (r *RedisStorage) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, expiration).Err()
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
