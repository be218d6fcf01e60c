package ai

import (
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
)

// AI binds one shared behaviour tree to one character. Everything a node
// needs to remember between ticks lives in the node-id keyed tables here,
// never on the TreeNode, so a single parsed tree can drive any number of AIs.
type AI struct {
	character Character

	mu        sync.RWMutex
	behaviour TreeNode

	zone atomic.Pointer[Zone]

	paused    atomic.Bool
	reset     atomic.Bool
	debugging bool
	time      int64

	lastStatus    map[int32]Status
	lastExec      map[int32]int64
	selectorState map[int32]int
	limitState    map[int32]int
	timerState    map[int32]int64
	faulted       map[int32]bool

	filtered []CharacterID
	aggro    *AggroMgr
	rand     *rand.Rand
}

// AIOption configures an AI.
type AIOption func(*AI)

// WithRand sets the random source used by random selectors, filters and wander steering.
func WithRand(r *rand.Rand) AIOption {
	return func(a *AI) { a.rand = r }
}

// NewAI creates an AI for character driven by behaviour.
func NewAI(character Character, behaviour TreeNode, opts ...AIOption) *AI {
	a := &AI{
		character:     character,
		behaviour:     behaviour,
		lastStatus:    make(map[int32]Status),
		lastExec:      make(map[int32]int64),
		selectorState: make(map[int32]int),
		limitState:    make(map[int32]int),
		timerState:    make(map[int32]int64),
		faulted:       make(map[int32]bool),
		aggro:         NewAggroMgr(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rand == nil {
		a.rand = rand.New(rand.NewPCG(rand.Uint64(), uint64(character.ID())))
	}
	return a
}

// ID returns the character id.
func (a *AI) ID() CharacterID { return a.character.ID() }

// Character returns the driven entity.
func (a *AI) Character() Character { return a.character }

// Behaviour returns the root node.
func (a *AI) Behaviour() TreeNode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.behaviour
}

// SetBehaviour replaces the root node, returning the previous one. The
// node-scoped state is reset on the next Update.
func (a *AI) SetBehaviour(root TreeNode) TreeNode {
	a.mu.Lock()
	old := a.behaviour
	a.behaviour = root
	a.mu.Unlock()
	a.reset.Store(true)
	return old
}

// Zone returns the owning zone, or nil.
func (a *AI) Zone() *Zone { return a.zone.Load() }

// HasZone reports whether the AI is resident in a zone.
func (a *AI) HasZone() bool { return a.zone.Load() != nil }

func (a *AI) setZone(z *Zone) { a.zone.Store(z) }

// AggroMgr returns the threat table.
func (a *AI) AggroMgr() *AggroMgr { return a.aggro }

// Time returns the accumulated logical time in milliseconds.
func (a *AI) Time() int64 { return a.time }

// Rand returns the AI's random source.
func (a *AI) Rand() *rand.Rand { return a.rand }

// IsPaused reports whether Update and zone execution are suspended.
func (a *AI) IsPaused() bool { return a.paused.Load() }

// SetPause suspends or resumes the AI.
func (a *AI) SetPause(pause bool) { a.paused.Store(pause) }

// IsDebuggingActive reports the debugging flag passed to the last Update.
func (a *AI) IsDebuggingActive() bool { return a.debugging }

// ResetStates clears all node-scoped state at the start of the next Update.
func (a *AI) ResetStates() { a.reset.Store(true) }

// FilteredEntities returns a copy of the current filter output.
func (a *AI) FilteredEntities() []CharacterID { return slices.Clone(a.filtered) }

// SetFilteredEntities replaces the filter output.
func (a *AI) SetFilteredEntities(ids []CharacterID) { a.filtered = slices.Clone(ids) }

// AddFilteredEntity appends one id to the filter output.
func (a *AI) AddFilteredEntity(id CharacterID) { a.filtered = append(a.filtered, id) }

// Update advances the AI by deltaMillis. The root node is executed by the
// zone, not here.
func (a *AI) Update(deltaMillis int64, debuggingActive bool) {
	if a.IsPaused() {
		return
	}
	if a.character != nil {
		a.character.Update(deltaMillis, debuggingActive)
	}
	if a.reset.CompareAndSwap(true, false) {
		a.clearState()
	}
	a.debugging = debuggingActive
	a.time += deltaMillis
	a.aggro.Update(deltaMillis)
}

// Execute runs the root node once.
func (a *AI) Execute(deltaMillis int64) Status {
	root := a.Behaviour()
	if root == nil {
		return Unknown
	}
	return root.Execute(a, deltaMillis)
}

func (a *AI) clearState() {
	clear(a.lastStatus)
	clear(a.lastExec)
	clear(a.selectorState)
	clear(a.limitState)
	clear(a.timerState)
	a.filtered = a.filtered[:0]
}

// LastStatus returns the status the node produced during its last execution
// for this AI.
func (a *AI) LastStatus(nodeID int32) Status {
	if s, ok := a.lastStatus[nodeID]; ok {
		return s
	}
	return Unknown
}

// LastExecMillis returns the AI time of the last execution of the node, or -1.
func (a *AI) LastExecMillis(nodeID int32) int64 {
	if t, ok := a.lastExec[nodeID]; ok {
		return t
	}
	return -1
}

// SelectorState returns the stored child cursor of a selector, or -1.
func (a *AI) SelectorState(nodeID int32) int {
	if s, ok := a.selectorState[nodeID]; ok {
		return s
	}
	return -1
}

// ClearSelectorState forgets the child cursor of a selector, so its next
// tick starts from the first child.
func (a *AI) ClearSelectorState(nodeID int32) { a.setSelectorState(nodeID, -1) }

// LimitState returns the invocation count stored for a Limit node.
func (a *AI) LimitState(nodeID int32) int { return a.limitState[nodeID] }

func (a *AI) setLastStatus(nodeID int32, s Status) { a.lastStatus[nodeID] = s }

func (a *AI) setLastExec(nodeID int32) { a.lastExec[nodeID] = a.time }

func (a *AI) setSelectorState(nodeID int32, cursor int) {
	if cursor < 0 {
		delete(a.selectorState, nodeID)
		return
	}
	a.selectorState[nodeID] = cursor
}

func (a *AI) setLimitState(nodeID int32, n int) { a.limitState[nodeID] = n }

func (a *AI) timer(nodeID int32) int64 { return a.timerState[nodeID] }

func (a *AI) setTimer(nodeID int32, v int64) {
	if v == 0 {
		delete(a.timerState, nodeID)
		return
	}
	a.timerState[nodeID] = v
}

// markFaulted records that the node already reported a fault for this AI,
// returning true the first time.
func (a *AI) markFaulted(nodeID int32) bool {
	if a.faulted[nodeID] {
		return false
	}
	a.faulted[nodeID] = true
	return true
}
