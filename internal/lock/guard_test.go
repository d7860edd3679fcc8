package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client), mr
}

func TestAcquireDedupesUntilExpiry(t *testing.T) {
	g, mr := newGuard(t)
	ctx := context.Background()

	ok, err := g.Acquire(ctx, "evt_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Acquire(ctx, "evt_1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = g.Acquire(ctx, "evt_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseAllowsRetry(t *testing.T) {
	g, _ := newGuard(t)
	ctx := context.Background()

	ok, err := g.Acquire(ctx, "evt_2", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, g.Release(ctx, "evt_2"))

	ok, err = g.Acquire(ctx, "evt_2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNilGuardAlwaysAcquires(t *testing.T) {
	var g *Guard
	ok, err := g.Acquire(context.Background(), "evt_3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, g.Release(context.Background(), "evt_3"))
	assert.Nil(t, New(nil))
}
