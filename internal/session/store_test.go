package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/internal/session"
)

func setup(t *testing.T) (*miniredis.Miniredis, session.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, session.NewRedisStore(rdb, time.Hour)
}

func TestStore_CreateAndResolve(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()

	token, err := store.Create(ctx, "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	id, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, session.Identity("bob"), id)
}

func TestStore_ResolveUnknownToken(t *testing.T) {
	_, store := setup(t)

	_, err := store.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, session.ErrUnauthenticated)

	_, err = store.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, session.ErrUnauthenticated)
}

func TestStore_ResolveRecordWithoutUser(t *testing.T) {
	mr, store := setup(t)
	require.NoError(t, mr.Set("sess:orphan", `{"createdAt":"2024-01-01T00:00:00Z"}`))

	_, err := store.Resolve(context.Background(), "orphan")
	assert.ErrorIs(t, err, session.ErrUnauthenticated)
}

func TestStore_ResolveDoesNotExtendExpiry(t *testing.T) {
	mr, store := setup(t)
	ctx := context.Background()

	token, err := store.Create(ctx, "bob")
	require.NoError(t, err)

	mr.FastForward(50 * time.Minute)
	_, err = store.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, mr.TTL("sess:"+token))
}

func TestStore_TouchExtendsExpiry(t *testing.T) {
	mr, store := setup(t)
	ctx := context.Background()

	token, err := store.Create(ctx, "bob")
	require.NoError(t, err)

	mr.FastForward(50 * time.Minute)
	require.NoError(t, store.Touch(ctx, token))
	assert.Equal(t, time.Hour, mr.TTL("sess:"+token))

	mr.FastForward(59 * time.Minute)
	_, err = store.Resolve(ctx, token)
	assert.NoError(t, err)
}

func TestStore_ExpiredAndDestroyed(t *testing.T) {
	mr, store := setup(t)
	ctx := context.Background()

	expired, err := store.Create(ctx, "bob")
	require.NoError(t, err)
	mr.FastForward(61 * time.Minute)
	_, err = store.Resolve(ctx, expired)
	assert.ErrorIs(t, err, session.ErrUnauthenticated)
	assert.ErrorIs(t, store.Touch(ctx, expired), session.ErrUnauthenticated)

	live, err := store.Create(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, store.Destroy(ctx, live))
	_, err = store.Resolve(ctx, live)
	assert.ErrorIs(t, err, session.ErrUnauthenticated)
}
