package ai

import (
	"fmt"
	"strconv"
	"strings"
)

// Sequence runs its children in order, resuming at the child that was
// running on the previous tick.
type Sequence struct{ Node }

func NewSequence(ctx *TreeNodeFactoryContext) (TreeNode, error) {
	return &Sequence{Node: newNode("Sequence", ctx)}, nil
}

func (n *Sequence) Execute(ai *AI, deltaMillis int64) Status {
	if s, ok := n.enter(ai); !ok {
		return s
	}
	children := n.Children()
	start := ai.SelectorState(n.id)
	if start < 0 || start >= len(children) {
		// the running child was removed by an edit
		start = 0
	}
	for i := start; i < len(children); i++ {
		s := children[i].Execute(ai, deltaMillis)
		if s == Finished {
			continue
		}
		if s == Running {
			ai.setSelectorState(n.id, i)
		} else {
			ai.setSelectorState(n.id, -1)
		}
		return n.state(ai, s)
	}
	ai.setSelectorState(n.id, -1)
	return n.state(ai, Finished)
}

func (n *Sequence) RunningChildren(ai *AI) []bool { return cursorRunning(ai, &n.Node) }

// PrioritySelector runs the first child that is able to run, re-evaluated
// from the top every tick.
type PrioritySelector struct{ Node }

func NewPrioritySelector(ctx *TreeNodeFactoryContext) (TreeNode, error) {
	return &PrioritySelector{Node: newNode("PrioritySelector", ctx)}, nil
}

func (n *PrioritySelector) Execute(ai *AI, deltaMillis int64) Status {
	if s, ok := n.enter(ai); !ok {
		return s
	}
	children := n.Children()
	order := make([]int, len(children))
	for i := range order {
		order[i] = i
	}
	return n.state(ai, selectFirst(ai, &n.Node, children, order, deltaMillis))
}

func (n *PrioritySelector) RunningChildren(ai *AI) []bool { return cursorRunning(ai, &n.Node) }

// RandomSelector behaves like PrioritySelector over a fresh random
// permutation of its children each tick.
type RandomSelector struct{ Node }

func NewRandomSelector(ctx *TreeNodeFactoryContext) (TreeNode, error) {
	return &RandomSelector{Node: newNode("RandomSelector", ctx)}, nil
}

func (n *RandomSelector) Execute(ai *AI, deltaMillis int64) Status {
	if s, ok := n.enter(ai); !ok {
		return s
	}
	children := n.Children()
	return n.state(ai, selectFirst(ai, &n.Node, children, ai.Rand().Perm(len(children)), deltaMillis))
}

func (n *RandomSelector) RunningChildren(ai *AI) []bool { return cursorRunning(ai, &n.Node) }

// selectFirst executes children in the given order until one finishes or
// keeps running. A previously selected child that lost is reset.
func selectFirst(ai *AI, n *Node, children []TreeNode, order []int, deltaMillis int64) Status {
	prev := ai.SelectorState(n.id)
	for _, i := range order {
		s := children[i].Execute(ai, deltaMillis)
		if s != Finished && s != Running {
			continue
		}
		if prev >= 0 && prev != i && prev < len(children) {
			children[prev].ResetState(ai)
		}
		ai.setSelectorState(n.id, i)
		return s
	}
	if prev >= 0 && prev < len(children) {
		children[prev].ResetState(ai)
	}
	ai.setSelectorState(n.id, -1)
	return Failed
}

func cursorRunning(ai *AI, n *Node) []bool {
	children := n.Children()
	out := make([]bool, len(children))
	if c := ai.SelectorState(n.id); c >= 0 && c < len(children) {
		out[c] = ai.LastStatus(children[c].ID()) == Running
	}
	return out
}

// ProbabilitySelector picks one child per tick by weighted random choice.
// A running pick is resumed on the next tick.
type ProbabilitySelector struct {
	Node
	weights []float64
	total   float64
}

func NewProbabilitySelector(ctx *TreeNodeFactoryContext) (TreeNode, error) {
	n := &ProbabilitySelector{Node: newNode("ProbabilitySelector", ctx)}
	weights, err := parseFloats(n.params)
	if err != nil {
		return nil, invalidParams(n.typ, n.params, err)
	}
	for _, w := range weights {
		if w < 0 {
			return nil, invalidParams(n.typ, n.params, fmt.Errorf("negative weight %v", w))
		}
		n.total += w
	}
	n.weights = weights
	return n, nil
}

// AddChild refuses children beyond the number of configured weights.
func (n *ProbabilitySelector) AddChild(child TreeNode) bool {
	if len(n.Children()) >= len(n.weights) {
		return false
	}
	return n.Node.AddChild(child)
}

func (n *ProbabilitySelector) Execute(ai *AI, deltaMillis int64) Status {
	if s, ok := n.enter(ai); !ok {
		return s
	}
	children := n.Children()
	if len(children) != len(n.weights) || n.total <= 0 {
		return n.state(ai, Exception)
	}
	pick := ai.SelectorState(n.id)
	if pick < 0 || pick >= len(children) {
		r := ai.Rand().Float64() * n.total
		pick = len(children) - 1
		for i, w := range n.weights {
			if r < w {
				pick = i
				break
			}
			r -= w
		}
	}
	s := children[pick].Execute(ai, deltaMillis)
	if s == Running {
		ai.setSelectorState(n.id, pick)
	} else {
		ai.setSelectorState(n.id, -1)
	}
	return n.state(ai, s)
}

func (n *ProbabilitySelector) RunningChildren(ai *AI) []bool { return cursorRunning(ai, &n.Node) }

// Parallel executes every child each tick.
type Parallel struct{ Node }

func NewParallel(ctx *TreeNodeFactoryContext) (TreeNode, error) {
	return &Parallel{Node: newNode("Parallel", ctx)}, nil
}

func (n *Parallel) Execute(ai *AI, deltaMillis int64) Status {
	if s, ok := n.enter(ai); !ok {
		return s
	}
	running := false
	for _, c := range n.Children() {
		if c.Execute(ai, deltaMillis) == Running {
			running = true
		}
	}
	if running {
		return n.state(ai, Running)
	}
	return n.state(ai, Finished)
}

func (n *Parallel) RunningChildren(ai *AI) []bool {
	children := n.Children()
	out := make([]bool, len(children))
	for i, c := range children {
		out[i] = ai.LastStatus(c.ID()) == Running
	}
	return out
}

func parseFloats(params string) ([]float64, error) {
	params = strings.TrimSpace(params)
	if params == "" {
		return nil, nil
	}
	fields := strings.Split(params, ",")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
