package ai

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEnv is the environment an Expr condition is evaluated against.
type ExprEnv struct {
	ID          int               `expr:"id"`
	Time        int64             `expr:"time"`
	Enemies     int               `expr:"enemies"`
	Filtered    int               `expr:"filtered"`
	Speed       float64           `expr:"speed"`
	Orientation float64           `expr:"orientation"`
	X           float64           `expr:"x"`
	Y           float64           `expr:"y"`
	Z           float64           `expr:"z"`
	Attributes  map[string]string `expr:"attributes"`

	InGroup  func(id int) bool `expr:"inGroup"`
	IsLeader func(id int) bool `expr:"isLeader"`
}

func newExprEnv(ai *AI) ExprEnv {
	chr := ai.Character()
	pos := chr.Position()
	env := ExprEnv{
		ID:          int(ai.ID()),
		Time:        ai.Time(),
		Enemies:     ai.AggroMgr().Len(),
		Filtered:    len(ai.filtered),
		Speed:       chr.Speed(),
		Orientation: chr.Orientation(),
		X:           pos.X,
		Y:           pos.Y,
		Z:           pos.Z,
		Attributes:  chr.Attributes(),
	}
	m := groupMgrOf(ai)
	env.InGroup = func(id int) bool { return m != nil && m.IsInGroup(GroupID(id), ai) }
	env.IsLeader = func(id int) bool { return m != nil && m.IsGroupLeader(GroupID(id), ai) }
	return env
}

// Expr evaluates an expr-lang boolean expression over the AI state, e.g.
// Expr{enemies > 0 && attributes["mode"] == "hunt"}.
type Expr struct {
	source  string
	program *vm.Program
}

func NewExpr(ctx *ConditionFactoryContext) (Condition, error) {
	program, err := expr.Compile(ctx.Parameters,
		expr.Env(ExprEnv{}),
		expr.AsBool(),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, invalidParams("Expr", ctx.Parameters, err)
	}
	return &Expr{source: ctx.Parameters, program: program}, nil
}

func (c *Expr) Name() string       { return "Expr" }
func (c *Expr) Parameters() string { return c.source }

// Evaluate treats runtime errors as false.
func (c *Expr) Evaluate(ai *AI) bool {
	out, err := expr.Run(c.program, newExprEnv(ai))
	if err != nil {
		loggerFor(ai).Warn("expression condition failed",
			"character", ai.ID(), "expr", c.source, "err", err)
		return false
	}
	b, ok := out.(bool)
	if !ok {
		loggerFor(ai).Warn("expression condition returned a non-boolean",
			"expr", c.source, "type", fmt.Sprintf("%T", out))
	}
	return b
}
