package script

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/require"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
	"github.com/vengi-voxel/vengi-sub015/internal/testutil"
)

func testBridge(t *testing.T) *Bridge {
	t.Helper()
	loop, reg := testutil.NewEventLoop(t)
	bridge := NewBridge(context.Background(), loop, reg, ai.NewDefaultRegistry(), nil)
	t.Cleanup(bridge.Stop)
	return bridge
}

func TestStatusGlobals(t *testing.T) {
	t.Parallel()
	b := testBridge(t)
	for name, want := range ai.StatusNames() {
		v, ok := b.GetGlobal(name)
		require.True(t, ok, name)
		require.EqualValues(t, want, v, name)
	}
}

func TestModuleExports(t *testing.T) {
	t.Parallel()
	b := testBridge(t)
	require.NoError(t, b.LoadScript("module.js", `
		var simpleai = require("simpleai");
		var same = simpleai.REGISTRY === REGISTRY;
		var finished = simpleai.status.FINISHED;
	`))
	same, _ := b.GetGlobal("same")
	require.Equal(t, true, same)
	finished, _ := b.GetGlobal("finished")
	require.EqualValues(t, ai.Finished, finished)
}

func TestLoadScriptErrors(t *testing.T) {
	t.Parallel()
	b := testBridge(t)
	require.ErrorContains(t, b.LoadScript("syntax.js", "var = ;"), "failed to compile syntax.js")
	require.ErrorContains(t, b.LoadScript("throw.js", "throw new Error('nope')"), "failed to run throw.js")
}

func TestStopRejectsCalls(t *testing.T) {
	t.Parallel()
	b := testBridge(t)
	b.Stop()
	b.Stop()
	require.False(t, b.IsRunning())
	require.ErrorIs(t, b.LoadScript("x.js", "1"), ErrStopped)
	require.ErrorIs(t, b.TryRunOnLoopSync(func(*goja.Runtime) error { return nil }), ErrStopped)
	<-b.Done()
}

func TestContextCancelStopsBridge(t *testing.T) {
	t.Parallel()
	loop, _ := testutil.NewEventLoop(t)
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBridge(ctx, loop, nil, nil, nil)
	cancel()
	<-b.Done()
	require.False(t, b.IsRunning())
}

func TestTryRunOnLoopSyncReentry(t *testing.T) {
	t.Parallel()
	b := testBridge(t)
	var inner bool
	require.NoError(t, b.RunOnLoopSync(func(*goja.Runtime) error {
		return b.TryRunOnLoopSync(func(vm *goja.Runtime) error {
			inner = vm != nil
			return nil
		})
	}))
	require.True(t, inner)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunOnLoopSyncTimeoutIsLogged(t *testing.T) {
	t.Parallel()
	var logs syncBuffer
	loop, reg := testutil.NewEventLoop(t)
	b := NewBridge(context.Background(), loop, reg, ai.NewDefaultRegistry(), nil,
		WithTimeout(20*time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	t.Cleanup(b.Stop)

	err := b.RunOnLoopSync(func(*goja.Runtime) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	require.ErrorIs(t, err, ErrTimeout)
	require.Contains(t, logs.String(), "script call timed out")
	require.Contains(t, logs.String(), "timeout=20ms")
}
