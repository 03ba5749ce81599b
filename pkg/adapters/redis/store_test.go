package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridswap/gridswap/pkg/adapters/redis"
	"github.com/gridswap/gridswap/pkg/domain"
	"github.com/gridswap/gridswap/pkg/ports"
)

func newTestBackend(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStoreContract(t *testing.T) {
	_, client := newTestBackend(t)
	ports.RunStateStoreContract(t, redis.NewFromClient(client))
}

func TestRedisRegistryContract(t *testing.T) {
	_, client := newTestBackend(t)
	ports.RunRegistryContract(t, redis.NewRegistry(client))
}

func TestRedisStoreKeysArePrefixed(t *testing.T) {
	mr, client := newTestBackend(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:"))

	err := store.Save(context.Background(), "txn:abc", domain.NewNegotiationState("agent-1", nil))
	require.NoError(t, err)

	assert.True(t, mr.Exists("custom:txn:abc"))
	assert.True(t, mr.Exists("custom:index"))
	assert.False(t, mr.Exists("txn:abc"))
}

func TestRedisStoreTTLExpiresRecords(t *testing.T) {
	mr, client := newTestBackend(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "txn:ttl", domain.NewNegotiationState("agent-1", nil)))

	_, err := store.Load(ctx, "txn:ttl")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.Load(ctx, "txn:ttl")
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
}

func TestRedisStoreListPrunesStaleIndex(t *testing.T) {
	_, client := newTestBackend(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "txn:live", domain.NewNegotiationState("agent-1", nil)))

	// A record whose TTL fired leaves only its index entry behind;
	// plant one with a long-expired score.
	stale := float64(time.Now().Add(-time.Hour).Unix())
	require.NoError(t, client.ZAdd(ctx, "gridswap:state:index", backend.Z{Score: stale, Member: "txn:reaped"}).Err())

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "txn:live")
	assert.NotContains(t, keys, "txn:reaped")

	score := client.ZScore(ctx, "gridswap:state:index", "txn:reaped")
	assert.ErrorIs(t, score.Err(), backend.Nil, "pruned entries should leave the index")
}

func TestRedisStorePersistedRecordDropsIncoming(t *testing.T) {
	_, client := newTestBackend(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	state := domain.NewNegotiationState("agent-1", nil)
	state.Incoming = &domain.Envelope{Context: &domain.Context{Action: domain.ActionSearch}}

	require.NoError(t, store.Save(ctx, "txn:in", state))
	assert.NotNil(t, state.Incoming, "saving must not mutate the caller's state")

	loaded, err := store.Load(ctx, "txn:in")
	require.NoError(t, err)
	assert.Nil(t, loaded.Incoming)
}
