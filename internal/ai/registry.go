package ai

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry maps type names to factories for the four extensible kinds.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	nodes      map[string]TreeNodeFactory
	conditions map[string]ConditionFactory
	filters    map[string]FilterFactory
	steerings  map[string]SteeringFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes:      make(map[string]TreeNodeFactory),
		conditions: make(map[string]ConditionFactory),
		filters:    make(map[string]FilterFactory),
		steerings:  make(map[string]SteeringFactory),
	}
}

// NewDefaultRegistry returns a registry holding the built-in catalog.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for name, f := range map[string]TreeNodeFactoryFunc{
		"Fail":                NewFail,
		"Idle":                NewIdle,
		"Invert":              NewInvert,
		"Limit":               NewLimit,
		"Parallel":            NewParallel,
		"PrioritySelector":    NewPrioritySelector,
		"ProbabilitySelector": NewProbabilitySelector,
		"RandomSelector":      NewRandomSelector,
		"Sequence":            NewSequence,
		"Steer":               NewSteer,
		"Succeed":             NewSucceed,
	} {
		r.nodes[name] = f
	}
	for name, f := range map[string]ConditionFactoryFunc{
		"And":            NewAnd,
		"Or":             NewOr,
		"Not":            NewNot,
		"True":           func(*ConditionFactoryContext) (Condition, error) { return True{}, nil },
		"False":          func(*ConditionFactoryContext) (Condition, error) { return False{}, nil },
		"Filter":         NewFilterCondition,
		"HasEnemies":     NewHasEnemies,
		"IsCloseToGroup": NewIsCloseToGroup,
		"IsGroupLeader":  NewIsGroupLeader,
		"IsInGroup":      NewIsInGroup,
		"Expr":           NewExpr,
	} {
		r.conditions[name] = f
	}
	for name, f := range map[string]FilterFactoryFunc{
		"First":              NewFirst,
		"Last":               NewLast,
		"Intersection":       NewIntersection,
		"Union":              NewUnion,
		"Difference":         NewDifference,
		"Complement":         NewComplement,
		"Random":             NewRandom,
		"SelectAll":          NewSelectAll,
		"SelectEmpty":        NewSelectEmpty,
		"SelectGroupLeader":  NewSelectGroupLeader,
		"SelectGroupMembers": NewSelectGroupMembers,
		"SelectHighestAggro": NewSelectHighestAggro,
		"SelectZone":         NewSelectZone,
	} {
		r.filters[name] = f
	}
	for name, f := range map[string]SteeringFactoryFunc{
		"GroupFlee":     NewGroupFlee,
		"GroupSeek":     NewGroupSeek,
		"SelectionFlee": NewSelectionFlee,
		"SelectionSeek": NewSelectionSeek,
		"TargetFlee":    NewTargetFlee,
		"TargetSeek":    NewTargetSeek,
		"Wander":        NewWander,
	} {
		r.steerings[name] = f
	}
	return r
}

func register[F any](mu *sync.RWMutex, m map[string]F, kind, name string, f F) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := m[name]; ok {
		return fmt.Errorf("%s %s is already registered: %w", kind, name, ErrAlreadyRegistered)
	}
	m[name] = f
	return nil
}

func unregister[F any](mu *sync.RWMutex, m map[string]F, name string) bool {
	mu.Lock()
	defer mu.Unlock()
	_, ok := m[name]
	delete(m, name)
	return ok
}

func lookup[F any](mu *sync.RWMutex, m map[string]F, kind, name string) (F, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := m[name]
	if !ok {
		var zero F
		return zero, unknownType(kind, name)
	}
	return f, nil
}

func (r *Registry) RegisterNodeFactory(name string, f TreeNodeFactory) error {
	return register(&r.mu, r.nodes, "tree node", name, f)
}

func (r *Registry) RegisterConditionFactory(name string, f ConditionFactory) error {
	return register(&r.mu, r.conditions, "condition", name, f)
}

func (r *Registry) RegisterFilterFactory(name string, f FilterFactory) error {
	return register(&r.mu, r.filters, "filter", name, f)
}

func (r *Registry) RegisterSteeringFactory(name string, f SteeringFactory) error {
	return register(&r.mu, r.steerings, "steering", name, f)
}

func (r *Registry) UnregisterNodeFactory(name string) bool {
	return unregister(&r.mu, r.nodes, name)
}

func (r *Registry) UnregisterConditionFactory(name string) bool {
	return unregister(&r.mu, r.conditions, name)
}

func (r *Registry) UnregisterFilterFactory(name string) bool {
	return unregister(&r.mu, r.filters, name)
}

func (r *Registry) UnregisterSteeringFactory(name string) bool {
	return unregister(&r.mu, r.steerings, name)
}

// CreateNode builds a tree node of the given type.
func (r *Registry) CreateNode(typ string, ctx *TreeNodeFactoryContext) (TreeNode, error) {
	f, err := lookup(&r.mu, r.nodes, "tree node", typ)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = &TreeNodeFactoryContext{}
	}
	return f.Create(ctx)
}

// CreateCondition builds a condition of the given type.
func (r *Registry) CreateCondition(typ string, ctx *ConditionFactoryContext) (Condition, error) {
	f, err := lookup(&r.mu, r.conditions, "condition", typ)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = &ConditionFactoryContext{}
	}
	return f.Create(ctx)
}

// CreateFilter builds a filter of the given type.
func (r *Registry) CreateFilter(typ string, ctx *FilterFactoryContext) (Filter, error) {
	f, err := lookup(&r.mu, r.filters, "filter", typ)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = &FilterFactoryContext{}
	}
	return f.Create(ctx)
}

// CreateSteering builds a steering of the given type.
func (r *Registry) CreateSteering(typ string, ctx *SteeringFactoryContext) (Steering, error) {
	f, err := lookup(&r.mu, r.steerings, "steering", typ)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = &SteeringFactoryContext{}
	}
	return f.Create(ctx)
}

// Types lists the registered names per kind, sorted.
func (r *Registry) Types() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string][]string{
		"node":      slices.Sorted(maps.Keys(r.nodes)),
		"condition": slices.Sorted(maps.Keys(r.conditions)),
		"filter":    slices.Sorted(maps.Keys(r.filters)),
		"steering":  slices.Sorted(maps.Keys(r.steerings)),
	}
}
