package ai

import (
	"fmt"
	"strings"
)

// TypeExpr is one parsed type expression of the tree grammar:
//
//	Name{params}(Child1,Child2{p}){trailing}
type TypeExpr struct {
	Name       string
	Parameters string
	Children   []*TypeExpr
	// Trailing holds a parameter block following the child list, as used
	// for the weights of Steer(A,B){wa,wb}.
	Trailing string
}

func (e *TypeExpr) String() string {
	var b strings.Builder
	b.WriteString(e.Name)
	if e.Parameters != "" {
		b.WriteString("{" + e.Parameters + "}")
	}
	if len(e.Children) > 0 {
		b.WriteByte('(')
		for i, c := range e.Children {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(c.String())
		}
		b.WriteByte(')')
	}
	if e.Trailing != "" {
		b.WriteString("{" + e.Trailing + "}")
	}
	return b.String()
}

type exprParser struct {
	src string
	pos int
}

// ParseTypeExpr parses a single type expression.
func ParseTypeExpr(src string) (*TypeExpr, error) {
	p := &exprParser{src: src}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return e, nil
}

func (p *exprParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %q at offset %d: %s", ErrParse, p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *exprParser) expr() (*TypeExpr, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune("{}(), \t", rune(p.src[p.pos])) {
		p.pos++
	}
	if p.pos == start {
		return nil, p.errorf("type name expected")
	}
	e := &TypeExpr{Name: p.src[start:p.pos]}
	var err error
	if p.peek() == '{' {
		if e.Parameters, err = p.block(); err != nil {
			return nil, err
		}
	}
	if p.peek() == '(' {
		p.pos++
		for {
			child, err := p.expr()
			if err != nil {
				return nil, err
			}
			e.Children = append(e.Children, child)
			p.skipSpace()
			switch p.peek() {
			case ',':
				p.pos++
				continue
			case ')':
				p.pos++
			default:
				return nil, p.errorf("',' or ')' expected")
			}
			break
		}
		if p.peek() == '{' {
			if e.Trailing, err = p.block(); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

// block consumes a brace delimited parameter block, honoring nested braces.
func (p *exprParser) block() (string, error) {
	depth := 0
	start := p.pos + 1
	for ; p.pos < len(p.src); p.pos++ {
		switch p.src[p.pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				p.pos++
				return p.src[start : p.pos-1], nil
			}
		}
	}
	return "", p.errorf("unterminated parameter block")
}

// ParseCondition builds a condition from its textual form.
func (r *Registry) ParseCondition(src string) (Condition, error) {
	e, err := ParseTypeExpr(src)
	if err != nil {
		return nil, err
	}
	return r.BuildCondition(e)
}

// BuildCondition builds a condition from a parsed expression. The children
// of Filter are filters, all other children are conditions.
func (r *Registry) BuildCondition(e *TypeExpr) (Condition, error) {
	ctx := &ConditionFactoryContext{Parameters: e.Parameters}
	for _, c := range e.Children {
		if e.Name == "Filter" {
			f, err := r.BuildFilter(c)
			if err != nil {
				return nil, err
			}
			ctx.Filters = append(ctx.Filters, f)
			continue
		}
		sub, err := r.BuildCondition(c)
		if err != nil {
			return nil, err
		}
		ctx.Conditions = append(ctx.Conditions, sub)
	}
	return r.CreateCondition(e.Name, ctx)
}

// ParseFilter builds a filter from its textual form.
func (r *Registry) ParseFilter(src string) (Filter, error) {
	e, err := ParseTypeExpr(src)
	if err != nil {
		return nil, err
	}
	return r.BuildFilter(e)
}

func (r *Registry) BuildFilter(e *TypeExpr) (Filter, error) {
	ctx := &FilterFactoryContext{Parameters: e.Parameters}
	for _, c := range e.Children {
		f, err := r.BuildFilter(c)
		if err != nil {
			return nil, err
		}
		ctx.Filters = append(ctx.Filters, f)
	}
	return r.CreateFilter(e.Name, ctx)
}

// ParseSteering builds a steering from its textual form.
func (r *Registry) ParseSteering(src string) (Steering, error) {
	e, err := ParseTypeExpr(src)
	if err != nil {
		return nil, err
	}
	return r.BuildSteering(e)
}

func (r *Registry) BuildSteering(e *TypeExpr) (Steering, error) {
	if len(e.Children) > 0 {
		return nil, fmt.Errorf("%w: steering %s takes no children", ErrParse, e.Name)
	}
	return r.CreateSteering(e.Name, &SteeringFactoryContext{Parameters: e.Parameters})
}

// ParseNode builds a tree node from a type expression such as Idle{1000} or
// Steer(TargetSeek{1:0:1},Wander){0.8,0.2}. An empty condition means True.
func (r *Registry) ParseNode(typeExpr, name, condition string) (TreeNode, error) {
	e, err := ParseTypeExpr(typeExpr)
	if err != nil {
		return nil, err
	}
	ctx := &TreeNodeFactoryContext{Name: name, Parameters: e.Parameters}
	if strings.TrimSpace(condition) != "" {
		if ctx.Condition, err = r.ParseCondition(condition); err != nil {
			return nil, err
		}
	}
	if len(e.Children) > 0 {
		for _, c := range e.Children {
			s, err := r.BuildSteering(c)
			if err != nil {
				return nil, err
			}
			ctx.Steerings = append(ctx.Steerings, s)
		}
		if e.Trailing != "" {
			ctx.Parameters = e.Trailing
		}
	}
	return r.CreateNode(e.Name, ctx)
}

// NodeTypeString renders the type expression of a node as ParseNode accepts it.
func NodeTypeString(n TreeNode) string {
	e := &TypeExpr{Name: n.Type()}
	if s, ok := n.(*Steer); ok {
		for _, st := range s.Steerings() {
			e.Children = append(e.Children, &TypeExpr{Name: st.Name(), Parameters: st.Parameters()})
		}
		e.Trailing = n.Parameters()
	} else {
		e.Parameters = n.Parameters()
	}
	return e.String()
}
