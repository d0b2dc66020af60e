package redis

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

func TestGetOrSetJSONLoadsOnce(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestClient(t)
	cache := New(rdb)

	var calls atomic.Int32
	loader := func(context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"a", "b"}, nil
	}

	got, err := GetOrSetJSON(ctx, cache, "k", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = GetOrSetJSON(ctx, cache, "k", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrSetJSONNilCache(t *testing.T) {
	got, err := GetOrSetJSON(context.Background(), nil, "k", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestInvalidateSalon(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestClient(t)
	cache := New(rdb)
	salonID := uuid.New()

	require.NoError(t, cache.SetString(ctx, KeySalon(salonID), "{}", time.Minute))
	require.NoError(t, cache.SetString(ctx, KeySalonListing(true, 20, 0), "[]", time.Minute))
	require.NoError(t, cache.SetString(ctx, KeySalonListing(false, 20, 20), "[]", time.Minute))
	require.NoError(t, cache.SetString(ctx, "unrelated", "x", time.Minute))

	require.NoError(t, cache.InvalidateSalon(ctx, salonID))

	assert.False(t, mr.Exists(KeySalon(salonID)))
	assert.False(t, mr.Exists(KeySalonListing(true, 20, 0)))
	assert.False(t, mr.Exists(KeySalonListing(false, 20, 20)))
	assert.True(t, mr.Exists("unrelated"))

	var nilCache *Cache
	assert.NoError(t, nilCache.InvalidateSalon(ctx, salonID))
}

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestClient(t)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewSlidingWindowLimiter(rdb, PrefixRateLimit("join"), 2, time.Minute)
	limiter.now = func() time.Time { return now }

	d, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Count)

	now = now.Add(10 * time.Second)
	d, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	now = now.Add(10 * time.Second)
	d, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryAfter)

	d, err = limiter.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "limits are per id")

	now = now.Add(41 * time.Second)
	d, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestClient(t)
	store := NewIdempotencyStore(rdb, time.Hour)
	key := KeyIdemJoin(uuid.New(), "abc")

	state, _, err := store.Begin(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, IdemAcquired, state)

	state, _, err = store.Begin(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, IdemInProgress, state)

	require.NoError(t, store.SaveResult(ctx, key, `{"ok":true}`))

	state, res, err := store.Begin(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, IdemDone, state)
	assert.JSONEq(t, `{"ok":true}`, res)

	require.NoError(t, store.Release(ctx, key))
	state, _, err = store.Begin(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, IdemAcquired, state)
}

func TestRoomPubSubRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, rdb := newTestClient(t)
	ps := NewRoomPubSub(rdb)

	ready := make(chan struct{})
	got := make(chan RoomMessage, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = ps.Subscribe(ctx, func() { close(ready) }, func(_ context.Context, msg RoomMessage) {
			got <- msg
		})
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not ready")
	}

	require.NoError(t, ps.Publish(ctx, "salon_x", "queue_updated", map[string]int{"waiting": 3}))

	select {
	case msg := <-got:
		assert.Equal(t, "salon_x", msg.Room)
		assert.Equal(t, "queue_updated", msg.Event)
		var data map[string]int
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, 3, data["waiting"])
		assert.NotZero(t, msg.TsUnix)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	wg.Wait()
}
