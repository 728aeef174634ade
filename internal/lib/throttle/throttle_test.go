package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return mr, client
}

func TestLimiterBlocksAfterBudget(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	l := New(client, 3, time.Minute)

	require.NoError(t, l.Check(ctx, "alice"))
	require.NoError(t, l.Fail(ctx, "alice"))
	require.NoError(t, l.Fail(ctx, "alice"))
	assert.ErrorIs(t, l.Fail(ctx, "alice"), ErrTooManyAttempts)

	assert.ErrorIs(t, l.Check(ctx, "alice"), ErrTooManyAttempts)
	assert.ErrorIs(t, l.Check(ctx, " ALICE "), ErrTooManyAttempts)
	assert.NoError(t, l.Check(ctx, "bob"))
}

func TestLimiterCooldownExpires(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	l := New(client, 1, time.Minute)

	assert.ErrorIs(t, l.Fail(ctx, "alice"), ErrTooManyAttempts)
	assert.ErrorIs(t, l.Check(ctx, "alice"), ErrTooManyAttempts)

	mr.FastForward(time.Minute + time.Second)

	assert.NoError(t, l.Check(ctx, "alice"))
}

func TestLimiterReset(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	l := New(client, 2, time.Minute)

	require.NoError(t, l.Fail(ctx, "alice"))
	require.NoError(t, l.Reset(ctx, "alice"))
	require.NoError(t, l.Fail(ctx, "alice"))
	assert.NoError(t, l.Check(ctx, "alice"))
}

func TestLimiterRedisDown(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	l := New(client, 2, time.Minute)

	mr.Close()

	assert.ErrorIs(t, l.Check(ctx, "alice"), ErrRedisUnavailable)
	assert.ErrorIs(t, l.Fail(ctx, "alice"), ErrRedisUnavailable)
}
