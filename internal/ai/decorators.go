package ai

import (
	"errors"
	"strconv"
	"strings"
)

// Limit runs its single child at most n times per AI.
type Limit struct {
	Node
	amount int
}

func NewLimit(ctx *TreeNodeFactoryContext) (TreeNode, error) {
	n := &Limit{Node: newNode("Limit", ctx)}
	v, err := strconv.Atoi(strings.TrimSpace(n.params))
	if err != nil {
		return nil, invalidParams(n.typ, n.params, err)
	}
	if v < 0 {
		return nil, invalidParams(n.typ, n.params, errors.New("limit must not be negative"))
	}
	n.amount = v
	return n, nil
}

func (n *Limit) AddChild(child TreeNode) bool {
	if len(n.Children()) > 0 {
		return false
	}
	return n.Node.AddChild(child)
}

func (n *Limit) Execute(ai *AI, deltaMillis int64) Status {
	if s, ok := n.enter(ai); !ok {
		return s
	}
	children := n.Children()
	if len(children) != 1 {
		return n.state(ai, Exception)
	}
	count := ai.LimitState(n.id)
	if count >= n.amount {
		return n.state(ai, Failed)
	}
	s := children[0].Execute(ai, deltaMillis)
	ai.setLimitState(n.id, count+1)
	return n.state(ai, s)
}

// Invert swaps Finished and Failed of its single child.
type Invert struct{ Node }

func NewInvert(ctx *TreeNodeFactoryContext) (TreeNode, error) {
	return &Invert{Node: newNode("Invert", ctx)}, nil
}

func (n *Invert) AddChild(child TreeNode) bool {
	if len(n.Children()) > 0 {
		return false
	}
	return n.Node.AddChild(child)
}

func (n *Invert) Execute(ai *AI, deltaMillis int64) Status {
	if s, ok := n.enter(ai); !ok {
		return s
	}
	children := n.Children()
	if len(children) != 1 {
		return n.state(ai, Exception)
	}
	switch s := children[0].Execute(ai, deltaMillis); s {
	case Finished:
		return n.state(ai, Failed)
	case Failed:
		return n.state(ai, Finished)
	default:
		return n.state(ai, s)
	}
}

// Succeed reports Finished unless its optional child is still running.
type Succeed struct{ Node }

func NewSucceed(ctx *TreeNodeFactoryContext) (TreeNode, error) {
	return &Succeed{Node: newNode("Succeed", ctx)}, nil
}

func (n *Succeed) Execute(ai *AI, deltaMillis int64) Status {
	if s, ok := n.enter(ai); !ok {
		return s
	}
	return n.state(ai, forceResult(ai, n.Children(), deltaMillis, Finished))
}

// Fail reports Failed unless its optional child is still running.
type Fail struct{ Node }

func NewFail(ctx *TreeNodeFactoryContext) (TreeNode, error) {
	return &Fail{Node: newNode("Fail", ctx)}, nil
}

func (n *Fail) Execute(ai *AI, deltaMillis int64) Status {
	if s, ok := n.enter(ai); !ok {
		return s
	}
	return n.state(ai, forceResult(ai, n.Children(), deltaMillis, Failed))
}

func forceResult(ai *AI, children []TreeNode, deltaMillis int64, result Status) Status {
	if len(children) == 0 {
		return result
	}
	if children[0].Execute(ai, deltaMillis) == Running {
		return Running
	}
	return result
}

// Idle keeps running until the given number of milliseconds passed, then
// finishes once and re-arms.
type Idle struct {
	Node
	millis int64
}

func NewIdle(ctx *TreeNodeFactoryContext) (TreeNode, error) {
	n := &Idle{Node: newNode("Idle", ctx)}
	p := strings.TrimSpace(n.params)
	if p == "" {
		p = "1000"
	}
	v, err := strconv.ParseInt(p, 10, 64)
	if err != nil {
		return nil, invalidParams(n.typ, n.params, err)
	}
	if v < 0 {
		return nil, invalidParams(n.typ, n.params, errors.New("idle time must not be negative"))
	}
	n.millis = v
	return n, nil
}

func (n *Idle) Execute(ai *AI, deltaMillis int64) Status {
	if s, ok := n.enter(ai); !ok {
		return s
	}
	// timer stores the AI time at which the idle phase ends, offset by one
	// so that zero keeps meaning "not armed".
	deadline := ai.timer(n.id)
	if deadline == 0 {
		ai.setTimer(n.id, ai.Time()+n.millis+1)
		return n.state(ai, Running)
	}
	if ai.Time()+1 < deadline {
		return n.state(ai, Running)
	}
	ai.setTimer(n.id, 0)
	return n.state(ai, Finished)
}

// TaskFunc is the body of a leaf task.
type TaskFunc func(ai *AI, deltaMillis int64) Status

// Task is a leaf node running a function behind the fault boundary.
type Task struct {
	Node
	fn TaskFunc
}

// NewTask creates a leaf of the given type whose behaviour is fn.
func NewTask(typ string, ctx *TreeNodeFactoryContext, fn TaskFunc) *Task {
	return &Task{Node: newNode(typ, ctx), fn: fn}
}

// TaskFactory returns a factory producing Task nodes of the given type.
func TaskFactory(typ string, fn TaskFunc) TreeNodeFactory {
	return TreeNodeFactoryFunc(func(ctx *TreeNodeFactoryContext) (TreeNode, error) {
		return NewTask(typ, ctx, fn), nil
	})
}

func (n *Task) Execute(ai *AI, deltaMillis int64) Status {
	if s, ok := n.enter(ai); !ok {
		return s
	}
	s := n.guard(ai, func() Status { return n.fn(ai, deltaMillis) })
	if !s.Valid() {
		s = Exception
	}
	return n.state(ai, s)
}
