package testutil

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/require"
)

func TestPoll(t *testing.T) {
	t.Parallel()
	var n atomic.Int32
	require.NoError(t, Poll(context.Background(), func() bool { return n.Add(1) >= 3 }, time.Second, time.Millisecond))
	require.GreaterOrEqual(t, n.Load(), int32(3))

	err := Poll(context.Background(), func() bool { return false }, 5*time.Millisecond, time.Millisecond)
	require.ErrorContains(t, err, "timeout")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Poll(ctx, func() bool { return false }, time.Second, time.Millisecond), context.Canceled)
}

func TestWaitForState(t *testing.T) {
	t.Parallel()
	var n atomic.Int32
	got, err := WaitForState(context.Background(), func() int32 { return n.Add(1) }, func(v int32) bool { return v == 4 }, time.Second, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int32(4), got)
}

func TestNewEventLoop(t *testing.T) {
	t.Parallel()
	loop, _ := NewEventLoop(t)
	done := make(chan int64, 1)
	require.True(t, loop.RunOnLoop(func(vm *goja.Runtime) {
		v, err := vm.RunString("6 * 7")
		if err != nil {
			done <- -1
			return
		}
		done <- v.ToInteger()
	}))
	require.Equal(t, int64(42), <-done)
}
