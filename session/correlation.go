package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// CorrelationStore keeps the external identity returned by a provider until
// the account flow consumes it. Entries expire after their ttl.
type CorrelationStore interface {
	Put(ctx context.Context, id string, info *accounts.ExternalLoginInfo, ttl time.Duration) error
	// Get returns ErrCorrelationNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (*accounts.ExternalLoginInfo, error)
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	info    accounts.ExternalLoginInfo
	expires time.Time
}

// MemoryCorrelationStore is a process local CorrelationStore.
type MemoryCorrelationStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCorrelationStore() *MemoryCorrelationStore {
	return &MemoryCorrelationStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryCorrelationStore) Put(_ context.Context, id string, info *accounts.ExternalLoginInfo, ttl time.Duration) error {
	if info == nil {
		return accounts.ErrExternalLoginInfoMissing
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}

	m.entries[id] = memoryEntry{info: *info, expires: now.Add(ttl)}
	return nil
}

func (m *MemoryCorrelationStore) Get(_ context.Context, id string) (*accounts.ExternalLoginInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, ErrCorrelationNotFound
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, id)
		return nil, ErrCorrelationNotFound
	}

	info := e.info
	return &info, nil
}

func (m *MemoryCorrelationStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// RedisCorrelationStore shares correlations across instances.
type RedisCorrelationStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisCorrelationStore(client redis.Cmdable, prefix string) *RedisCorrelationStore {
	if prefix == "" {
		prefix = "accounts:external:"
	}
	return &RedisCorrelationStore{client: client, prefix: prefix}
}

func (r *RedisCorrelationStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisCorrelationStore) Put(ctx context.Context, id string, info *accounts.ExternalLoginInfo, ttl time.Duration) error {
	if info == nil {
		return accounts.ErrExternalLoginInfoMissing
	}

	data, err := json.Marshal(info)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to marshal external login info")
	}

	if err := r.client.Set(ctx, r.key(id), data, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to store external login info")
	}
	return nil
}

func (r *RedisCorrelationStore) Get(ctx context.Context, id string) (*accounts.ExternalLoginInfo, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCorrelationNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load external login info")
	}

	var info accounts.ExternalLoginInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to decode external login info")
	}
	return &info, nil
}

func (r *RedisCorrelationStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete external login info")
	}
	return nil
}
