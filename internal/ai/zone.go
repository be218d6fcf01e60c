package ai

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Observer receives zone tick measurements. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveTick(zone string, ais int, elapsed time.Duration)
	ObserveDeferred(zone string, drained, dropped int)
	ObserveException(zone, nodeType string)
}

// ZoneOption configures a Zone.
type ZoneOption func(*Zone)

// WithLogger sets the zone logger.
func WithLogger(logger *slog.Logger) ZoneOption {
	return func(z *Zone) {
		if logger != nil {
			z.logger = logger
		}
	}
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) ZoneOption {
	return func(z *Zone) { z.observer = o }
}

type deferred struct {
	id CharacterID
	fn func(*AI)
}

// Zone owns a set of AIs and drives their ticks. Exactly one goroutine is
// expected to call Update at a time.
type Zone struct {
	name     string
	logger   *slog.Logger
	observer Observer
	groupMgr *GroupMgr

	// tickMu is held for the duration of Update and by RunBetweenTicks.
	tickMu sync.Mutex

	mu  sync.RWMutex
	ais map[CharacterID]*AI

	scheduleMu       sync.Mutex
	scheduledAdd     []*AI
	scheduledRemove  []CharacterID
	scheduledDestroy []CharacterID

	queueMu sync.Mutex
	queue   []deferred

	debug    atomic.Bool
	shutdown atomic.Bool
}

// NewZone creates an empty zone.
func NewZone(name string, opts ...ZoneOption) *Zone {
	z := &Zone{
		name:     name,
		logger:   slog.Default(),
		groupMgr: NewGroupMgr(),
		ais:      make(map[CharacterID]*AI),
	}
	for _, opt := range opts {
		opt(z)
	}
	z.logger = z.logger.With("zone", name)
	return z
}

func (z *Zone) Name() string { return z.name }

func (z *Zone) GroupMgr() *GroupMgr { return z.groupMgr }

// Logger returns the zone scoped logger.
func (z *Zone) Logger() *slog.Logger { return z.logger }

func (z *Zone) SetDebug(debug bool) { z.debug.Store(debug) }

func (z *Zone) IsDebug() bool { return z.debug.Load() }

// AddAI schedules ai to join the zone on the next Update.
func (z *Zone) AddAI(ai *AI) bool {
	if ai == nil || z.shutdown.Load() {
		return false
	}
	z.scheduleMu.Lock()
	z.scheduledAdd = append(z.scheduledAdd, ai)
	z.scheduleMu.Unlock()
	return true
}

// RemoveAI schedules the AI to leave the zone on the next Update. The AI
// keeps its group memberships.
func (z *Zone) RemoveAI(id CharacterID) bool {
	if z.GetAI(id) == nil {
		return false
	}
	z.scheduleMu.Lock()
	z.scheduledRemove = append(z.scheduledRemove, id)
	z.scheduleMu.Unlock()
	return true
}

// DestroyAI schedules the AI for removal from the zone and evicts it from
// every group and from the aggro tables of the remaining AIs.
func (z *Zone) DestroyAI(id CharacterID) bool {
	if z.GetAI(id) == nil {
		return false
	}
	z.scheduleMu.Lock()
	z.scheduledDestroy = append(z.scheduledDestroy, id)
	z.scheduleMu.Unlock()
	return true
}

// GetAI returns the resident AI with the given id, or nil.
func (z *Zone) GetAI(id CharacterID) *AI {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.ais[id]
}

// Size returns the number of resident AIs.
func (z *Zone) Size() int {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return len(z.ais)
}

// IDs returns the resident character ids in ascending order.
func (z *Zone) IDs() []CharacterID {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return slices.Sorted(maps.Keys(z.ais))
}

func (z *Zone) snapshot() []*AI {
	z.mu.RLock()
	out := make([]*AI, 0, len(z.ais))
	for _, ai := range z.ais {
		out = append(out, ai)
	}
	z.mu.RUnlock()
	slices.SortFunc(out, func(a, b *AI) int { return int(a.ID()) - int(b.ID()) })
	return out
}

// ExecuteAsync queues fn to run against the AI on the next Update. It
// returns false if the zone is shutting down or the AI is not resident.
func (z *Zone) ExecuteAsync(id CharacterID, fn func(*AI)) bool {
	if z.shutdown.Load() || fn == nil || z.GetAI(id) == nil {
		return false
	}
	z.queueMu.Lock()
	defer z.queueMu.Unlock()
	if z.shutdown.Load() {
		return false
	}
	z.queue = append(z.queue, deferred{id: id, fn: fn})
	return true
}

// Execute runs fn against the AI right away.
func (z *Zone) Execute(id CharacterID, fn func(*AI)) bool {
	ai := z.GetAI(id)
	if ai == nil {
		return false
	}
	fn(ai)
	return true
}

// ExecuteAll runs fn against every resident AI in ascending id order.
func (z *Zone) ExecuteAll(fn func(*AI)) {
	for _, ai := range z.snapshot() {
		fn(ai)
	}
}

// ExecuteParallel runs fn against every resident AI concurrently and waits.
func (z *Zone) ExecuteParallel(ctx context.Context, fn func(context.Context, *AI) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, ai := range z.snapshot() {
		g.Go(func() error { return fn(ctx, ai) })
	}
	return g.Wait()
}

// RunBetweenTicks runs fn while no Update is in progress.
func (z *Zone) RunBetweenTicks(fn func()) {
	z.tickMu.Lock()
	defer z.tickMu.Unlock()
	fn()
}

// Shutdown stops accepting deferred callbacks and drops the queued ones.
func (z *Zone) Shutdown() {
	z.shutdown.Store(true)
	z.queueMu.Lock()
	z.queue = nil
	z.queueMu.Unlock()
}

// IsShutdown reports whether Shutdown was called.
func (z *Zone) IsShutdown() bool { return z.shutdown.Load() }

// Update advances every resident AI by deltaMillis.
func (z *Zone) Update(deltaMillis int64) {
	z.tickMu.Lock()
	defer z.tickMu.Unlock()
	start := time.Now()

	z.applySchedule()
	z.drain()

	debug := z.debug.Load()
	ais := z.snapshot()
	for _, ai := range ais {
		if ai.IsPaused() {
			continue
		}
		z.run(ai, func() {
			ai.Update(deltaMillis, debug)
			ai.Execute(deltaMillis)
		})
	}
	z.groupMgr.Update(deltaMillis)

	if z.observer != nil {
		z.observer.ObserveTick(z.name, len(ais), time.Since(start))
	}
}

func (z *Zone) applySchedule() {
	z.scheduleMu.Lock()
	add, remove, destroy := z.scheduledAdd, z.scheduledRemove, z.scheduledDestroy
	z.scheduledAdd, z.scheduledRemove, z.scheduledDestroy = nil, nil, nil
	z.scheduleMu.Unlock()

	if len(add)+len(remove)+len(destroy) == 0 {
		return
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	for _, ai := range add {
		if _, ok := z.ais[ai.ID()]; ok {
			z.logger.Warn("character already in zone", "character", ai.ID())
			continue
		}
		z.ais[ai.ID()] = ai
		ai.setZone(z)
	}
	for _, id := range remove {
		if ai, ok := z.ais[id]; ok {
			delete(z.ais, id)
			ai.setZone(nil)
		}
	}
	var destroyed []CharacterID
	for _, id := range destroy {
		if ai, ok := z.ais[id]; ok {
			delete(z.ais, id)
			z.groupMgr.RemoveFromAllGroups(ai)
			ai.setZone(nil)
			destroyed = append(destroyed, id)
		}
	}
	// nobody may keep aggro on a despawned character
	for _, ai := range z.ais {
		for _, id := range destroyed {
			ai.AggroMgr().Remove(id)
		}
	}
}

// drain runs the callbacks queued before this tick. Callbacks queued while
// draining wait for the next tick.
func (z *Zone) drain() {
	z.queueMu.Lock()
	queue := z.queue
	z.queue = nil
	z.queueMu.Unlock()

	dropped := 0
	for _, d := range queue {
		ai := z.GetAI(d.id)
		if ai == nil {
			dropped++
			continue
		}
		z.run(ai, func() { d.fn(ai) })
	}
	if z.observer != nil && len(queue) > 0 {
		z.observer.ObserveDeferred(z.name, len(queue)-dropped, dropped)
	}
}

// run keeps a panic escaping one AI from aborting the whole tick.
func (z *Zone) run(ai *AI, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			z.logger.Error("ai tick panicked", "character", ai.ID(), "err", r)
		}
	}()
	fn()
}
