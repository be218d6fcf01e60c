package ai

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

var nextNodeID atomic.Int32

// TreeNode is one node of a behaviour tree. A tree is built once and shared
// by every AI using the behaviour; all per-AI state lives on the AI.
type TreeNode interface {
	ID() int32
	Name() string
	SetName(name string)
	Type() string
	Parameters() string
	Condition() Condition
	SetCondition(c Condition)
	// Children returns a snapshot of the direct children.
	Children() []TreeNode
	AddChild(child TreeNode) bool
	// ReplaceChild swaps the direct child with the given id. A nil
	// replacement removes the child.
	ReplaceChild(id int32, replacement TreeNode) bool
	Execute(ai *AI, deltaMillis int64) Status
	// ResetState clears the node-scoped state of this subtree for ai.
	ResetState(ai *AI)
	// RunningChildren reports, per child, whether it is the active one.
	RunningChildren(ai *AI) []bool
}

// TreeNodeFactoryContext carries everything a tree node constructor gets.
type TreeNodeFactoryContext struct {
	Name       string
	Parameters string
	Condition  Condition
	// Steerings is only filled for Steer nodes.
	Steerings []Steering
}

// TreeNodeFactory creates tree nodes of one type.
type TreeNodeFactory interface {
	Create(ctx *TreeNodeFactoryContext) (TreeNode, error)
}

// TreeNodeFactoryFunc adapts a function to TreeNodeFactory.
type TreeNodeFactoryFunc func(ctx *TreeNodeFactoryContext) (TreeNode, error)

func (f TreeNodeFactoryFunc) Create(ctx *TreeNodeFactoryContext) (TreeNode, error) { return f(ctx) }

// Node implements the bookkeeping part of TreeNode. Concrete node types embed
// it and provide Execute.
type Node struct {
	id     int32
	typ    string
	params string

	mu       sync.RWMutex
	name     string
	cond     Condition
	children []TreeNode
}

func newNode(typ string, ctx *TreeNodeFactoryContext) Node {
	n := Node{id: nextNodeID.Add(1), typ: typ}
	if ctx != nil {
		n.name = ctx.Name
		n.params = ctx.Parameters
		n.cond = ctx.Condition
	}
	if n.name == "" {
		n.name = typ
	}
	if n.cond == nil {
		n.cond = True{}
	}
	return n
}

func (n *Node) ID() int32          { return n.id }
func (n *Node) Type() string       { return n.typ }
func (n *Node) Parameters() string { return n.params }

func (n *Node) Name() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.name
}

func (n *Node) SetName(name string) {
	n.mu.Lock()
	n.name = name
	n.mu.Unlock()
}

func (n *Node) Condition() Condition {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cond
}

func (n *Node) SetCondition(c Condition) {
	if c == nil {
		c = True{}
	}
	n.mu.Lock()
	n.cond = c
	n.mu.Unlock()
}

func (n *Node) Children() []TreeNode {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.children)
}

func (n *Node) AddChild(child TreeNode) bool {
	if child == nil {
		return false
	}
	n.mu.Lock()
	n.children = append(n.children, child)
	n.mu.Unlock()
	return true
}

func (n *Node) ReplaceChild(id int32, replacement TreeNode) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	i := slices.IndexFunc(n.children, func(c TreeNode) bool { return c.ID() == id })
	if i < 0 {
		return false
	}
	if replacement == nil {
		n.children = slices.Delete(n.children, i, i+1)
	} else {
		n.children[i] = replacement
	}
	return true
}

func (n *Node) ResetState(ai *AI) {
	ai.setSelectorState(n.id, -1)
	ai.setLimitState(n.id, 0)
	ai.setTimer(n.id, 0)
	for _, c := range n.Children() {
		c.ResetState(ai)
	}
}

func (n *Node) RunningChildren(ai *AI) []bool {
	return make([]bool, len(n.Children()))
}

// enter evaluates the guard condition. On false the node reports
// CannotExecute and must not run any behaviour. A faulting condition makes
// the node report Exception.
func (n *Node) enter(ai *AI) (Status, bool) {
	passed := false
	if s := n.guard(ai, func() Status {
		passed = n.Condition().Evaluate(ai)
		return Unknown
	}); s == Exception {
		return n.state(ai, Exception), false
	}
	if !passed {
		return n.state(ai, CannotExecute), false
	}
	if ai.debugging {
		ai.setLastExec(n.id)
	}
	return Unknown, true
}

func (n *Node) state(ai *AI, s Status) Status {
	ai.setLastStatus(n.id, s)
	return s
}

// guard runs fn and turns a panic into Exception, logging it once per AI.
func (n *Node) guard(ai *AI, fn func() Status) (status Status) {
	defer func() {
		if r := recover(); r != nil {
			if ai.markFaulted(n.id) {
				loggerFor(ai).Error("tree node raised a fault",
					"node", n.Name(), "type", n.typ, "character", ai.ID(), "err", fmt.Sprint(r))
			}
			notifyException(ai, n)
			status = Exception
		}
	}()
	return fn()
}

func loggerFor(ai *AI) *slog.Logger {
	if z := ai.Zone(); z != nil {
		return z.logger
	}
	return slog.Default()
}

func notifyException(ai *AI, n *Node) {
	if z := ai.Zone(); z != nil && z.observer != nil {
		z.observer.ObserveException(z.name, n.typ)
	}
}

// FindNode searches the tree below root (inclusive) for id.
func FindNode(root TreeNode, id int32) TreeNode {
	if root == nil {
		return nil
	}
	if root.ID() == id {
		return root
	}
	for _, c := range root.Children() {
		if found := FindNode(c, id); found != nil {
			return found
		}
	}
	return nil
}

// FindParent returns the node whose direct child has the given id.
func FindParent(root TreeNode, id int32) TreeNode {
	if root == nil {
		return nil
	}
	for _, c := range root.Children() {
		if c.ID() == id {
			return root
		}
		if p := FindParent(c, id); p != nil {
			return p
		}
	}
	return nil
}

// Walk visits the tree depth first, passing the nesting depth.
func Walk(root TreeNode, fn func(node TreeNode, depth int)) {
	var walk func(TreeNode, int)
	walk = func(n TreeNode, depth int) {
		fn(n, depth)
		for _, c := range n.Children() {
			walk(c, depth+1)
		}
	}
	if root != nil {
		walk(root, 0)
	}
}
