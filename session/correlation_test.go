package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-accounts"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInfo() *accounts.ExternalLoginInfo {
	return &accounts.ExternalLoginInfo{
		Provider:            "acme",
		ProviderKey:         "sub-1",
		ProviderDisplayName: "Acme",
		Email:               "ada@example.com",
		Tokens:              []accounts.AuthToken{{Name: accounts.TokenNameAccess, Value: "at"}},
	}
}

func TestMemoryCorrelationStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryCorrelationStore()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "c1", sampleInfo(), time.Minute))

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, sampleInfo(), got)

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrCorrelationNotFound)

	require.NoError(t, store.Put(ctx, "c2", sampleInfo(), time.Minute))
	require.NoError(t, store.Delete(ctx, "c2"))
	_, err = store.Get(ctx, "c2")
	assert.ErrorIs(t, err, ErrCorrelationNotFound)

	assert.Error(t, store.Put(ctx, "c3", nil, time.Minute))
}

func TestRedisCorrelationStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	store := NewRedisCorrelationStore(client, "")

	require.NoError(t, store.Put(ctx, "c1", sampleInfo(), 10*time.Minute))
	assert.True(t, mr.Exists("accounts:external:c1"))

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, sampleInfo(), got)

	mr.FastForward(11 * time.Minute)
	_, err = store.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrCorrelationNotFound)

	require.NoError(t, store.Put(ctx, "c2", sampleInfo(), time.Minute))
	require.NoError(t, store.Delete(ctx, "c2"))
	assert.False(t, mr.Exists("accounts:external:c2"))
}
