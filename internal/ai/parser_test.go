package ai

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTypeExpr(t *testing.T) {
	t.Parallel()
	e, err := ParseTypeExpr("Steer(TargetSeek{1:0:2}, Wander{0.1}){0.7,0.3}")
	require.NoError(t, err)
	require.Equal(t, "Steer", e.Name)
	require.Empty(t, e.Parameters)
	require.Len(t, e.Children, 2)
	require.Equal(t, "1:0:2", e.Children[0].Parameters)
	require.Equal(t, "0.7,0.3", e.Trailing)
	require.Equal(t, "Steer(TargetSeek{1:0:2},Wander{0.1}){0.7,0.3}", e.String())

	e, err = ParseTypeExpr("Expr{attributes[\"m\"] in {\"a\": 1}}")
	require.NoError(t, err)
	require.Equal(t, `attributes["m"] in {"a": 1}`, e.Parameters)

	for _, bad := range []string{"", "{x}", "A{x", "A(B", "A(B,)", "A B"} {
		_, err := ParseTypeExpr(bad)
		require.ErrorIs(t, err, ErrParse, bad)
	}
}

func TestSplitTopLevel(t *testing.T) {
	t.Parallel()
	require.Equal(t,
		[]string{"Idle{1 0}", "name:wait", "cond:And(Expr{id > 1}, True)"},
		splitTopLevel("Idle{1 0}  name:wait\tcond:And(Expr{id > 1}, True)"))
}

const exampleTrees = `
# two behaviours
behaviour patrol
	PrioritySelector name:root
		Steer(SelectionSeek){1} name:hunt cond:Filter(SelectHighestAggro)
		Sequence name:walk
			Idle{500}
			Steer(Wander{0.2})

behaviour guard
	Limit{3} cond:Not(HasEnemies)
		Succeed
`

func TestLoadTrees(t *testing.T) {
	t.Parallel()
	l := NewTreeLoader(NewDefaultRegistry())
	require.NoError(t, l.LoadString(exampleTrees))
	require.Equal(t, []string{"patrol", "guard"}, l.Names())

	root := l.Tree("patrol")
	require.Equal(t, "root", root.Name())
	require.Equal(t, "PrioritySelector", root.Type())
	children := root.Children()
	require.Len(t, children, 2)
	require.Equal(t, "hunt", children[0].Name())
	require.Equal(t, "Filter(SelectHighestAggro)", ConditionString(children[0].Condition()))
	require.Len(t, children[1].Children(), 2)

	guard := l.Tree("guard")
	require.Equal(t, "Limit", guard.Type())
	require.Equal(t, "3", guard.Parameters())
	require.Len(t, guard.Children(), 1)
}

func TestLoadTreesRoundTrip(t *testing.T) {
	t.Parallel()
	l := NewTreeLoader(NewDefaultRegistry())
	require.NoError(t, l.LoadString(exampleTrees))
	var buf bytes.Buffer
	for _, name := range l.Names() {
		require.NoError(t, WriteTree(&buf, name, l.Tree(name)))
	}
	again := NewTreeLoader(NewDefaultRegistry())
	require.NoError(t, again.LoadString(buf.String()))
	var second bytes.Buffer
	for _, name := range again.Names() {
		require.NoError(t, WriteTree(&second, name, again.Tree(name)))
	}
	require.Equal(t, buf.String(), second.String())
	require.Contains(t, buf.String(), "\t\tSteer(SelectionSeek){1} name:hunt cond:Filter(SelectHighestAggro)\n")
}

func TestLoadTreeErrors(t *testing.T) {
	t.Parallel()
	tests := map[string]error{
		"Sequence\n":                                     ErrParse,
		"behaviour a\n  Sequence\n  Sequence\n":          ErrParse,
		"behaviour a\n  Nope\n":                          ErrUnknownType,
		"behaviour a\n  Idle{x}\n":                       ErrInvalidParameters,
		"behaviour a\n  Sequence bogus\n":                ErrParse,
		"behaviour a\n  Invert\n    Succeed\n    Fail\n": ErrParse,
		"behaviour a\n":                                  ErrParse,
	}
	for src, want := range tests {
		l := NewTreeLoader(NewDefaultRegistry())
		require.ErrorIs(t, l.LoadString(src), want, src)
		require.Empty(t, l.Names(), "nothing is added on failure")
	}
}

func TestLoadDuplicateBehaviour(t *testing.T) {
	t.Parallel()
	l := NewTreeLoader(NewDefaultRegistry())
	require.NoError(t, l.LoadString("behaviour a\n  Succeed\n"))
	require.ErrorIs(t, l.LoadString("behaviour a\n  Fail\n"), ErrAlreadyRegistered)
}

func TestRegistryDuplicatesAndUnregister(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	err := r.RegisterNodeFactory("Sequence", TreeNodeFactoryFunc(NewSequence))
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	require.EqualError(t, err, "tree node Sequence is already registered: already registered")
	require.True(t, r.UnregisterNodeFactory("Sequence"))
	require.False(t, r.UnregisterNodeFactory("Sequence"))
	_, err = r.CreateNode("Sequence", nil)
	require.ErrorIs(t, err, ErrUnknownType)
	require.NoError(t, r.RegisterNodeFactory("Sequence", TreeNodeFactoryFunc(NewSequence)))

	require.ErrorIs(t, r.RegisterConditionFactory("True", ConditionFactoryFunc(NewAnd)), ErrAlreadyRegistered)
	require.ErrorIs(t, r.RegisterFilterFactory("First", FilterFactoryFunc(NewFirst)), ErrAlreadyRegistered)
	require.ErrorIs(t, r.RegisterSteeringFactory("Wander", SteeringFactoryFunc(NewWander)), ErrAlreadyRegistered)
	require.Len(t, r.Types()["steering"], 7)
}
