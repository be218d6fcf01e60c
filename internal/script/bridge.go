// Package script hosts JavaScript extensions of the AI runtime. Scripts
// register tree nodes, conditions, filters and steerings through the global
// REGISTRY object (or require("simpleai")) and build trees through TREES.
//
// The goja runtime is not goroutine safe. Every access goes through the
// event loop; zone ticks calling into script code block until the loop ran
// the call, and calls made from the loop itself run inline.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
	"github.com/vengi-voxel/vengi-sub015/internal/goroutineid"
)

// ModuleName is the name scripts pass to require.
const ModuleName = "simpleai"

// ErrStopped is returned once the bridge was stopped.
var ErrStopped = errors.New("script bridge stopped")

// ErrTimeout is returned when the loop did not run a call within the
// configured timeout.
var ErrTimeout = errors.New("script call timed out")

// Bridge connects one goja event loop to an ai.Registry and ai.TreeLoader.
// The caller owns the event loop: it must be running before NewBridge and is
// not stopped by Stop.
type Bridge struct {
	loop     *eventloop.EventLoop
	registry *ai.Registry
	trees    *ai.TreeLoader
	logger   *slog.Logger

	loopID atomic.Int64
	// vm is only touched on the loop goroutine.
	vm *goja.Runtime

	mu      sync.RWMutex
	stopped bool
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger used for script faults and the LOG global.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithTimeout bounds how long a Go caller waits for the loop. The default
// is to wait until the call completed or the bridge stopped.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.timeout = d }
}

// NewBridge installs the script API on the running loop and registers the
// simpleai module with req, which may be nil. It panics if loop is nil or
// not running. Cancelling ctx stops the bridge.
func NewBridge(ctx context.Context, loop *eventloop.EventLoop, req *require.Registry, registry *ai.Registry, trees *ai.TreeLoader, opts ...Option) *Bridge {
	if loop == nil {
		panic("event loop must not be nil")
	}
	if registry == nil {
		registry = ai.NewDefaultRegistry()
	}
	if trees == nil {
		trees = ai.NewTreeLoader(registry)
	}
	childCtx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		loop:     loop,
		registry: registry,
		trees:    trees,
		logger:   slog.Default(),
		ctx:      childCtx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(b)
	}

	errCh := make(chan error, 1)
	if !loop.RunOnLoop(func(vm *goja.Runtime) { errCh <- b.initialize(vm) }) {
		cancel()
		panic("failed to initialize: event loop not running")
	}
	if err := <-errCh; err != nil {
		cancel()
		panic(fmt.Sprintf("failed to initialize script environment: %v", err))
	}

	// The module is published after the loop goroutine id is known, so a
	// script requiring it right away already takes the inline path.
	if req != nil {
		req.RegisterNativeModule(ModuleName, b.moduleLoader)
	}
	if ctx.Done() != nil {
		context.AfterFunc(ctx, b.Stop)
	}
	return b
}

func (b *Bridge) initialize(vm *goja.Runtime) error {
	b.loopID.Store(goroutineid.Get())
	b.vm = vm
	for name, status := range ai.StatusNames() {
		if err := vm.Set(name, int(status)); err != nil {
			return err
		}
	}
	for name, value := range map[string]goja.Value{
		"REGISTRY": b.registryObject(vm),
		"TREES":    b.treesObject(vm),
		"LOG":      b.logObject(vm),
	} {
		if err := vm.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) moduleLoader(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)
	for _, name := range []string{"REGISTRY", "TREES", "LOG"} {
		_ = exports.Set(name, vm.Get(name))
	}
	statuses := vm.NewObject()
	for name, status := range ai.StatusNames() {
		_ = statuses.Set(name, int(status))
	}
	_ = exports.Set("status", statuses)
}

// Registry returns the registry script types are registered with.
func (b *Bridge) Registry() *ai.Registry { return b.registry }

// Trees returns the loader script trees are added to.
func (b *Bridge) Trees() *ai.TreeLoader { return b.trees }

// Stop makes every further call fail with ErrStopped. Safe to call more
// than once.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	b.cancel()
}

// Done is closed once the bridge stopped.
func (b *Bridge) Done() <-chan struct{} { return b.ctx.Done() }

// IsRunning reports whether Stop was not called yet.
func (b *Bridge) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.stopped
}

// RunOnLoopSync runs fn on the loop goroutine and waits for it.
func (b *Bridge) RunOnLoopSync(fn func(*goja.Runtime) error) error {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return ErrStopped
	}
	timeout := b.timeout
	b.mu.RUnlock()

	errCh := make(chan error, 1)
	if !b.loop.RunOnLoop(func(vm *goja.Runtime) { errCh <- fn(vm) }) {
		return errors.New("event loop not running")
	}
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case err := <-errCh:
		return err
	case <-b.Done():
		return ErrStopped
	case <-timer:
		b.logger.Warn("script call timed out, the event loop may be blocked", "timeout", timeout)
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
}

// TryRunOnLoopSync runs fn inline when called on the loop goroutine and
// through RunOnLoopSync otherwise.
func (b *Bridge) TryRunOnLoopSync(fn func(*goja.Runtime) error) error {
	if !b.IsRunning() {
		return ErrStopped
	}
	if id := b.loopID.Load(); id > 0 && id == goroutineid.Get() {
		return fn(b.vm)
	}
	return b.RunOnLoopSync(fn)
}

// LoadScript compiles and runs code under the given name.
func (b *Bridge) LoadScript(name, code string) error {
	return b.RunOnLoopSync(func(vm *goja.Runtime) error {
		prg, err := goja.Compile(name, code, true)
		if err != nil {
			return fmt.Errorf("failed to compile %s: %w", name, err)
		}
		if _, err := vm.RunProgram(prg); err != nil {
			return fmt.Errorf("failed to run %s: %w", name, err)
		}
		return nil
	})
}

// LoadFile runs the script file at path.
func (b *Bridge) LoadFile(path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return b.LoadScript(path, string(code))
}

// SetGlobal sets a global variable.
func (b *Bridge) SetGlobal(name string, value any) error {
	return b.RunOnLoopSync(func(vm *goja.Runtime) error {
		return vm.Set(name, value)
	})
}

// GetGlobal exports a global variable. The boolean is false if it is undefined.
func (b *Bridge) GetGlobal(name string) (any, bool) {
	var (
		result any
		exists bool
	)
	err := b.RunOnLoopSync(func(vm *goja.Runtime) error {
		v := vm.Get(name)
		if v == nil || goja.IsUndefined(v) {
			return nil
		}
		exists = true
		if !goja.IsNull(v) {
			result = v.Export()
		}
		return nil
	})
	if err != nil {
		return nil, false
	}
	return result, exists
}

func (b *Bridge) logObject(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	for name, level := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		_ = obj.Set(name, func(call goja.FunctionCall) goja.Value {
			args := make([]any, 0, len(call.Arguments))
			for i := 1; i+1 < len(call.Arguments); i += 2 {
				args = append(args, call.Arguments[i].String(), call.Arguments[i+1].Export())
			}
			b.logger.Log(context.Background(), level, call.Argument(0).String(), args...)
			return goja.Undefined()
		})
	}
	return obj
}
