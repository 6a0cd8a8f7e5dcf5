package debounce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_CollapsesBurst(t *testing.T) {
	var calls atomic.Int32
	d := New(30*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDebouncer_Stop(t *testing.T) {
	var calls atomic.Int32
	d := New(20*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDebouncer_ReplacedTimerDoesNotFire(t *testing.T) {
	t.Run("newer timer still runs once", func(t *testing.T) {
		var calls atomic.Int32
		d := New(20*time.Millisecond, func() { calls.Add(1) })

		d.Trigger()
		d.Trigger()
		// The first timer's callback arriving late, after the re-arm.
		d.fire(1)
		assert.Equal(t, int32(0), calls.Load())

		d.mu.Lock()
		require.NotNil(t, d.timer)
		d.mu.Unlock()

		assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(40 * time.Millisecond)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("stop still cancels newer timer", func(t *testing.T) {
		var calls atomic.Int32
		d := New(20*time.Millisecond, func() { calls.Add(1) })

		d.Trigger()
		d.Trigger()
		d.fire(1)
		d.Stop()

		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, int32(0), calls.Load())
	})
}

func TestGroup_LatestWins(t *testing.T) {
	g := NewGroup(40 * time.Millisecond)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = g.Wait(ctx, "client-1")
		}(i)
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	assert.ErrorIs(t, errs[0], ErrSuperseded)
	assert.ErrorIs(t, errs[1], ErrSuperseded)
	assert.NoError(t, errs[2])
	assert.Equal(t, 0, g.Pending())
}

func TestGroup_KeysAreIndependent(t *testing.T) {
	g := NewGroup(20 * time.Millisecond)
	ctx := context.Background()

	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() { defer wg.Done(); errA = g.Wait(ctx, "a") }()
	go func() { defer wg.Done(); errB = g.Wait(ctx, "b") }()
	wg.Wait()

	assert.NoError(t, errA)
	assert.NoError(t, errB)
}

func TestGroup_ContextCancelled(t *testing.T) {
	g := NewGroup(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := g.Wait(ctx, "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 0, g.Pending())
}

func TestGroup_Cancel(t *testing.T) {
	g := NewGroup(time.Second)

	done := make(chan error, 1)
	go func() { done <- g.Wait(context.Background(), "k") }()

	require.Eventually(t, func() bool { return g.Pending() == 1 }, time.Second, time.Millisecond)
	g.Cancel("k")

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Wait did not return after Cancel")
	}
	assert.Equal(t, 0, g.Pending())
}
