package devicesync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dose-mate/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_DeliversInPushOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	f := NewFeed(context.Background(), "acc-1", func(s State) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s.NextDoseTime)
	}, nil, nil)
	defer f.Cancel()

	want := []string{"01:00", "02:00", "03:00", "04:00", "05:00"}
	for _, v := range want {
		f.Push(State{AccountID: "acc-1", NextDoseTime: v})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, got)
}

func TestFeed_FailWrapsSubscriptionError(t *testing.T) {
	errs := make(chan error, 1)
	f := NewFeed(context.Background(), "acc-1", nil, func(err error) { errs <- err }, nil)
	defer f.Cancel()

	boom := errors.New("stream reset")
	f.Fail(boom)

	select {
	case err := <-errs:
		var se *apperrors.SubscriptionError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "acc-1", se.AccountID)
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("error not delivered")
	}

	assert.False(t, f.Cancelled(), "errors do not end the subscription")
}

func TestFeed_CancelRunsStopOnce(t *testing.T) {
	var stops int32
	f := NewFeed(context.Background(), "acc-1", nil, nil, func() { atomic.AddInt32(&stops, 1) })

	f.Cancel()
	f.Cancel()
	f.Push(State{NextDoseTime: "08:00"})

	assert.True(t, f.Cancelled())
	assert.Equal(t, int32(1), atomic.LoadInt32(&stops))
	select {
	case <-f.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestFeed_OnStop(t *testing.T) {
	var stops int32
	f := NewFeed(context.Background(), "acc-1", nil, nil, nil)
	f.OnStop(func() { atomic.AddInt32(&stops, 1) })
	f.Cancel()
	f.Cancel()
	assert.Equal(t, int32(1), atomic.LoadInt32(&stops))

	// sobre un feed ya cancelado corre en el momento
	late := NewFeed(context.Background(), "acc-1", nil, nil, nil)
	late.Cancel()
	late.OnStop(func() { atomic.AddInt32(&stops, 1) })
	assert.Equal(t, int32(2), atomic.LoadInt32(&stops))
}
