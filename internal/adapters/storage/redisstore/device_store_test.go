package redisstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"dose-mate/internal/domain/devicesync"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *DeviceStore) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewDeviceStore(client, zap.NewNop())
}

type recorder struct {
	mu     sync.Mutex
	states []devicesync.State
	errs   []error
}

func (r *recorder) onChange(s devicesync.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) snapshot() []devicesync.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]devicesync.State(nil), r.states...)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestDeviceStore_GetMissing(t *testing.T) {
	_, store := setupTestRedis(t)

	_, found, err := store.Get(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeviceStore_UpsertMergeKeepsOtherFields(t *testing.T) {
	mr, store := setupTestRedis(t)
	ctx := context.Background()
	seen := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertMerge(ctx, "acc-1", devicesync.Patch{
		Connected:  boolPtr(true),
		LastSeenAt: &seen,
	}))
	require.NoError(t, store.UpsertMerge(ctx, "acc-1", devicesync.Patch{
		NextDoseTime: strPtr("21:00"),
	}))

	st, found, err := store.Get(ctx, "acc-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, st.Connected)
	require.NotNil(t, st.LastSeenAt)
	assert.True(t, seen.Equal(*st.LastSeenAt))
	assert.Equal(t, "21:00", st.NextDoseTime)
	assert.Equal(t, "acc-1", st.AccountID)

	assert.Equal(t, "2", mr.HGet("dosemate:device:acc-1", "version"))
}

func TestDeviceStore_UpsertMergeRequiresAccount(t *testing.T) {
	_, store := setupTestRedis(t)

	err := store.UpsertMerge(context.Background(), " ", devicesync.Patch{NextDoseTime: strPtr("08:00")})
	assert.Error(t, err)
}

func TestDeviceStore_SubscribeDeliversCurrentThenChanges(t *testing.T) {
	_, store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertMerge(ctx, "acc-1", devicesync.Patch{NextDoseTime: strPtr("08:00")}))

	rec := &recorder{}
	sub, err := store.Subscribe(ctx, "acc-1", rec.onChange, rec.onError)
	require.NoError(t, err)
	defer sub.Cancel()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "08:00", rec.snapshot()[0].NextDoseTime)

	require.NoError(t, store.UpsertMerge(ctx, "acc-1", devicesync.Patch{NextDoseTime: strPtr("21:00")}))

	require.Eventually(t, func() bool {
		got := rec.snapshot()
		return len(got) >= 2 && got[len(got)-1].NextDoseTime == "21:00"
	}, time.Second, 10*time.Millisecond)
}

func TestDeviceStore_CancelStopsDelivery(t *testing.T) {
	_, store := setupTestRedis(t)
	ctx := context.Background()

	rec := &recorder{}
	sub, err := store.Subscribe(ctx, "acc-1", rec.onChange, rec.onError)
	require.NoError(t, err)

	require.NoError(t, store.UpsertMerge(ctx, "acc-1", devicesync.Patch{NextDoseTime: strPtr("08:00")}))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	sub.Cancel()
	sub.Cancel()

	require.NoError(t, store.UpsertMerge(ctx, "acc-1", devicesync.Patch{NextDoseTime: strPtr("09:00")}))
	time.Sleep(100 * time.Millisecond)

	got := rec.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "08:00", got[0].NextDoseTime)
}

func TestDeviceStore_SubscriptionsAreIsolatedPerAccount(t *testing.T) {
	_, store := setupTestRedis(t)
	ctx := context.Background()

	rec := &recorder{}
	sub, err := store.Subscribe(ctx, "acc-1", rec.onChange, rec.onError)
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, store.UpsertMerge(ctx, "acc-2", devicesync.Patch{NextDoseTime: strPtr("08:00")}))
	require.NoError(t, store.UpsertMerge(ctx, "acc-1", devicesync.Patch{NextDoseTime: strPtr("10:00")}))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "acc-1", rec.snapshot()[0].AccountID)
	assert.Equal(t, "10:00", rec.snapshot()[0].NextDoseTime)
}
