package ai

import (
	"errors"
	"strconv"
	"strings"
)

// Condition guards the execution of a TreeNode.
type Condition interface {
	Name() string
	Parameters() string
	Evaluate(ai *AI) bool
}

// ConditionParent is implemented by conditions composed of sub-conditions.
type ConditionParent interface {
	Conditions() []Condition
}

// ConditionFactoryContext carries everything a condition constructor gets.
type ConditionFactoryContext struct {
	Parameters string
	Conditions []Condition
	// Filters is only filled for the Filter condition.
	Filters []Filter
}

// ConditionFactory creates conditions of one type.
type ConditionFactory interface {
	Create(ctx *ConditionFactoryContext) (Condition, error)
}

// ConditionFactoryFunc adapts a function to ConditionFactory.
type ConditionFactoryFunc func(ctx *ConditionFactoryContext) (Condition, error)

func (f ConditionFactoryFunc) Create(ctx *ConditionFactoryContext) (Condition, error) { return f(ctx) }

// EvaluateFunc is the body of a function-backed condition.
type EvaluateFunc func(ai *AI) bool

// FuncCondition is a leaf condition backed by a function.
type FuncCondition struct {
	name   string
	params string
	fn     EvaluateFunc
}

// NewFuncCondition creates a condition of type name running fn.
func NewFuncCondition(name, params string, fn EvaluateFunc) *FuncCondition {
	return &FuncCondition{name: name, params: params, fn: fn}
}

func (c *FuncCondition) Name() string         { return c.name }
func (c *FuncCondition) Parameters() string   { return c.params }
func (c *FuncCondition) Evaluate(ai *AI) bool { return c.fn(ai) }

// ConditionString renders c in the tree grammar, e.g. And(True,IsInGroup{2}).
func ConditionString(c Condition) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	writeCondition(&b, c, nil)
	return b.String()
}

// ConditionState renders c like ConditionString with the evaluation result
// for ai appended to every condition, e.g. And[0](True[1],False[0]). The
// filtered entity list of ai is left as it was.
func ConditionState(c Condition, ai *AI) string {
	if c == nil {
		return ""
	}
	saved := ai.FilteredEntities()
	defer ai.SetFilteredEntities(saved)
	var b strings.Builder
	writeCondition(&b, c, ai)
	return b.String()
}

func writeCondition(b *strings.Builder, c Condition, ai *AI) {
	b.WriteString(c.Name())
	if p := c.Parameters(); p != "" {
		b.WriteString("{" + p + "}")
	}
	if ai != nil {
		if c.Evaluate(ai) {
			b.WriteString("[1]")
		} else {
			b.WriteString("[0]")
		}
	}
	switch v := c.(type) {
	case ConditionParent:
		sub := v.Conditions()
		if len(sub) == 0 {
			return
		}
		b.WriteByte('(')
		for i, s := range sub {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCondition(b, s, ai)
		}
		b.WriteByte(')')
	case *FilterCondition:
		b.WriteByte('(')
		for i, f := range v.filters {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(FilterString(f))
		}
		b.WriteByte(')')
	}
}

// True always evaluates to true. It is the condition of nodes without one.
type True struct{}

func (True) Name() string       { return "True" }
func (True) Parameters() string { return "" }
func (True) Evaluate(*AI) bool  { return true }

// False always evaluates to false.
type False struct{}

func (False) Name() string       { return "False" }
func (False) Parameters() string { return "" }
func (False) Evaluate(*AI) bool  { return false }

// And is true if all sub-conditions are.
type And struct{ conditions []Condition }

func NewAnd(ctx *ConditionFactoryContext) (Condition, error) {
	if len(ctx.Conditions) == 0 {
		return nil, invalidParams("And", ctx.Parameters, errors.New("no sub-conditions"))
	}
	return &And{conditions: ctx.Conditions}, nil
}

func (c *And) Name() string            { return "And" }
func (c *And) Parameters() string      { return "" }
func (c *And) Conditions() []Condition { return c.conditions }

func (c *And) Evaluate(ai *AI) bool {
	for _, s := range c.conditions {
		if !s.Evaluate(ai) {
			return false
		}
	}
	return true
}

// Or is true if any sub-condition is.
type Or struct{ conditions []Condition }

func NewOr(ctx *ConditionFactoryContext) (Condition, error) {
	if len(ctx.Conditions) == 0 {
		return nil, invalidParams("Or", ctx.Parameters, errors.New("no sub-conditions"))
	}
	return &Or{conditions: ctx.Conditions}, nil
}

func (c *Or) Name() string            { return "Or" }
func (c *Or) Parameters() string      { return "" }
func (c *Or) Conditions() []Condition { return c.conditions }

func (c *Or) Evaluate(ai *AI) bool {
	for _, s := range c.conditions {
		if s.Evaluate(ai) {
			return true
		}
	}
	return false
}

// Not negates its single sub-condition.
type Not struct{ condition Condition }

func NewNot(ctx *ConditionFactoryContext) (Condition, error) {
	if len(ctx.Conditions) != 1 {
		return nil, invalidParams("Not", ctx.Parameters, errors.New("exactly one sub-condition expected"))
	}
	return &Not{condition: ctx.Conditions[0]}, nil
}

func (c *Not) Name() string            { return "Not" }
func (c *Not) Parameters() string      { return "" }
func (c *Not) Conditions() []Condition { return []Condition{c.condition} }
func (c *Not) Evaluate(ai *AI) bool    { return !c.condition.Evaluate(ai) }

// FilterCondition runs its filters and is true if any entity was selected.
type FilterCondition struct{ filters []Filter }

func NewFilterCondition(ctx *ConditionFactoryContext) (Condition, error) {
	if len(ctx.Filters) == 0 {
		return nil, invalidParams("Filter", ctx.Parameters, errors.New("no filters"))
	}
	return &FilterCondition{filters: ctx.Filters}, nil
}

func (c *FilterCondition) Name() string      { return "Filter" }
func (c *FilterCondition) Parameters() string { return "" }

func (c *FilterCondition) Evaluate(ai *AI) bool {
	ai.SetFilteredEntities(nil)
	for _, f := range c.filters {
		f.Filter(ai)
	}
	return len(ai.filtered) > 0
}

// HasEnemies is true if the aggro list holds at least n entries (default 1).
type HasEnemies struct {
	params string
	amount int
}

func NewHasEnemies(ctx *ConditionFactoryContext) (Condition, error) {
	c := &HasEnemies{params: ctx.Parameters, amount: 1}
	if p := strings.TrimSpace(ctx.Parameters); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, invalidParams("HasEnemies", ctx.Parameters, err)
		}
		c.amount = v
	}
	return c, nil
}

func (c *HasEnemies) Name() string         { return "HasEnemies" }
func (c *HasEnemies) Parameters() string   { return c.params }
func (c *HasEnemies) Evaluate(ai *AI) bool { return ai.AggroMgr().Len() >= c.amount }

// groupCondition is the shared part of the group membership conditions. A
// missing group id means "any group".
type groupCondition struct {
	name   string
	params string
	id     GroupID
	any    bool
}

func parseGroupCondition(name string, ctx *ConditionFactoryContext) (groupCondition, error) {
	g := groupCondition{name: name, params: ctx.Parameters, any: true}
	if p := strings.TrimSpace(ctx.Parameters); p != "" {
		v, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return g, invalidParams(name, ctx.Parameters, err)
		}
		g.id = GroupID(v)
		g.any = false
	}
	return g, nil
}

func (g groupCondition) Name() string       { return g.name }
func (g groupCondition) Parameters() string { return g.params }

func groupMgrOf(ai *AI) *GroupMgr {
	if z := ai.Zone(); z != nil {
		return z.GroupMgr()
	}
	return nil
}

// IsInGroup is true if the AI is member of the group, or of any group
// without parameters.
type IsInGroup struct{ groupCondition }

func NewIsInGroup(ctx *ConditionFactoryContext) (Condition, error) {
	g, err := parseGroupCondition("IsInGroup", ctx)
	if err != nil {
		return nil, err
	}
	return &IsInGroup{g}, nil
}

func (c *IsInGroup) Evaluate(ai *AI) bool {
	m := groupMgrOf(ai)
	if m == nil {
		return false
	}
	if c.any {
		return m.IsInAnyGroup(ai)
	}
	return m.IsInGroup(c.id, ai)
}

// IsGroupLeader is true if the AI leads the given group.
type IsGroupLeader struct{ groupCondition }

func NewIsGroupLeader(ctx *ConditionFactoryContext) (Condition, error) {
	g, err := parseGroupCondition("IsGroupLeader", ctx)
	if err != nil {
		return nil, err
	}
	if g.any {
		return nil, invalidParams("IsGroupLeader", ctx.Parameters, errors.New("group id required"))
	}
	return &IsGroupLeader{g}, nil
}

func (c *IsGroupLeader) Evaluate(ai *AI) bool {
	m := groupMgrOf(ai)
	return m != nil && m.IsGroupLeader(c.id, ai)
}

// IsCloseToGroup is true if the AI is within distance of the average
// position of the group. Parameters are groupId,distance.
type IsCloseToGroup struct {
	params   string
	id       GroupID
	distance float64
}

func NewIsCloseToGroup(ctx *ConditionFactoryContext) (Condition, error) {
	parts := strings.Split(ctx.Parameters, ",")
	if len(parts) != 2 {
		return nil, invalidParams("IsCloseToGroup", ctx.Parameters, errors.New("expected groupId,distance"))
	}
	id, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 32)
	if err != nil {
		return nil, invalidParams("IsCloseToGroup", ctx.Parameters, err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, invalidParams("IsCloseToGroup", ctx.Parameters, err)
	}
	return &IsCloseToGroup{params: ctx.Parameters, id: GroupID(id), distance: d}, nil
}

func (c *IsCloseToGroup) Name() string       { return "IsCloseToGroup" }
func (c *IsCloseToGroup) Parameters() string { return c.params }

func (c *IsCloseToGroup) Evaluate(ai *AI) bool {
	m := groupMgrOf(ai)
	if m == nil {
		return false
	}
	pos, ok := m.Position(c.id)
	if !ok {
		return false
	}
	return pos.Distance(ai.Character().Position()) <= c.distance
}
