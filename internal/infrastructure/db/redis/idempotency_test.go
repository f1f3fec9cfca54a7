package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewIdempotencyStore(client, ttl), srv
}

func TestIdempotencyStore_RememberAndLookup(t *testing.T) {
	store, srv := newTestStore(t, time.Hour)
	ctx := context.Background()

	_, found, err := store.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Remember(ctx, "k1", "7"))
	assert.True(t, srv.Exists("idem:registro:k1"))

	userID, found, err := store.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "7", userID)
}

func TestIdempotencyStore_FirstWriterWins(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Remember(ctx, "k1", "7"))
	require.NoError(t, store.Remember(ctx, "k1", "8"))

	userID, _, err := store.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "7", userID)
}

func TestIdempotencyStore_Expiry(t *testing.T) {
	store, srv := newTestStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Remember(ctx, "k1", "7"))
	srv.FastForward(2 * time.Minute)

	_, found, err := store.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdempotencyStore_ServerDown(t *testing.T) {
	store, srv := newTestStore(t, time.Minute)
	srv.Close()

	_, _, err := store.Lookup(context.Background(), "k1")
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := Connect(context.Background(), Config{Addr: srv.Addr(), Timeout: time.Second})
	require.NoError(t, err)
	_ = client.Close()

	_, err = Connect(context.Background(), Config{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond})
	assert.Error(t, err)
	assert.False(t, Config{}.Enabled())
}
