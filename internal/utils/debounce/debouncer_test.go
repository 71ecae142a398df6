package debounce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const window = 40 * time.Millisecond

func newTestDebouncer() *Debouncer {
	return New(window, time.Second, zerolog.Nop())
}

func TestScheduleCoalescesBurst(t *testing.T) {
	d := newTestDebouncer()
	defer d.Stop()

	var calls atomic.Int32
	var last atomic.Int32
	for i := 1; i <= 10; i++ {
		i := i
		d.Schedule("X", func(context.Context) error {
			calls.Add(1)
			last.Store(int32(i))
			return nil
		})
		time.Sleep(window / 8)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(3 * window)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(10), last.Load())
	assert.Equal(t, 0, d.Pending())
}

func TestScheduleKeysAreIndependent(t *testing.T) {
	d := newTestDebouncer()
	defer d.Stop()

	var mu sync.Mutex
	fired := map[string]int{}
	for _, key := range []string{"a", "b", "a", "c", "b"} {
		key := key
		d.Schedule(key, func(context.Context) error {
			mu.Lock()
			fired[key]++
			mu.Unlock()
			return nil
		})
	}
	assert.Equal(t, 3, d.Pending())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, fired)
}

func TestWindowRestartsOnEachSchedule(t *testing.T) {
	d := newTestDebouncer()
	defer d.Stop()

	var calls atomic.Int32
	start := time.Now()
	var firedAt atomic.Int64
	action := func(context.Context) error {
		calls.Add(1)
		firedAt.Store(int64(time.Since(start)))
		return nil
	}
	d.Schedule("k", action)
	time.Sleep(window / 2)
	d.Schedule("k", action)

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// fired a full window after the second call, not after the first
	assert.GreaterOrEqual(t, time.Duration(firedAt.Load()), window+window/2)
}

func TestActionFailuresAreContained(t *testing.T) {
	d := newTestDebouncer()
	defer d.Stop()

	var after atomic.Bool
	require.NotPanics(t, func() {
		d.Schedule("err", func(context.Context) error { return errors.New("boom") })
		d.Schedule("panic", func(context.Context) error { panic("kaboom") })
	})
	d.Schedule("ok", func(context.Context) error {
		after.Store(true)
		return nil
	})
	assert.Eventually(t, after.Load, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return d.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStopDropsPendingActions(t *testing.T) {
	d := newTestDebouncer()

	var calls atomic.Int32
	d.Schedule("k", func(context.Context) error {
		calls.Add(1)
		return nil
	})
	d.Stop()
	time.Sleep(3 * window)
	assert.Equal(t, int32(0), calls.Load())

	d.Schedule("k", func(context.Context) error {
		calls.Add(1)
		return nil
	})
	time.Sleep(3 * window)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, 0, d.Pending())
}

func TestStopWaitsForRunningAction(t *testing.T) {
	d := newTestDebouncer()

	started := make(chan struct{})
	var finished atomic.Bool
	d.Schedule("slow", func(context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	<-started
	d.Stop()
	assert.True(t, finished.Load())
}
