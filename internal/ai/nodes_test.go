package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFalseConditionCannotExecute(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	params := map[string]string{
		"Limit":               "Limit{1}",
		"ProbabilitySelector": "ProbabilitySelector{1}",
		"Steer":               "Steer(Wander)",
		"Idle":                "Idle{10}",
	}
	for _, typ := range r.Types()["node"] {
		t.Run(typ, func(t *testing.T) {
			t.Parallel()
			expr := typ
			if p, ok := params[typ]; ok {
				expr = p
			}
			n := mustNode(t, r, expr, "", "False")
			calls := 0
			child := countingTask(&calls, Finished)
			if typ != "Steer" {
				require.True(t, n.AddChild(child))
			}
			a := newTestAI(t, 1, n)
			before := a.Character().Position()
			require.Equal(t, CannotExecute, n.Execute(a, 100))
			require.Zero(t, calls)
			require.Equal(t, before, a.Character().Position())
			require.Equal(t, CannotExecute, a.LastStatus(n.ID()))
			require.Equal(t, -1, a.SelectorState(n.ID()))
			require.Zero(t, a.LimitState(n.ID()))
		})
	}
}

func TestSequence(t *testing.T) {
	t.Parallel()
	root, err := NewSequence(nil)
	require.NoError(t, err)
	var first, second int
	root.AddChild(countingTask(&first, Finished))
	root.AddChild(countingTask(&second, Running, Running, Finished))
	a := newTestAI(t, 1, root)

	require.Equal(t, Running, root.Execute(a, 10))
	require.Equal(t, 1, a.SelectorState(root.ID()))
	require.Equal(t, Running, root.Execute(a, 10))
	require.Equal(t, 1, first, "running child resumes without re-running earlier ones")
	require.Equal(t, []bool{false, true}, root.RunningChildren(a))
	require.Equal(t, Finished, root.Execute(a, 10))
	require.Equal(t, -1, a.SelectorState(root.ID()))
	require.Equal(t, 3, second)
}

func TestSequenceStopsOnFailure(t *testing.T) {
	t.Parallel()
	root, _ := NewSequence(nil)
	var after int
	root.AddChild(statusTask(Failed))
	root.AddChild(countingTask(&after, Finished))
	a := newTestAI(t, 1, root)
	require.Equal(t, Failed, root.Execute(a, 10))
	require.Zero(t, after)
}

func TestSequenceCursorBeyondChildren(t *testing.T) {
	t.Parallel()
	root, _ := NewSequence(nil)
	var first, last int
	root.AddChild(countingTask(&first, Finished))
	root.AddChild(statusTask(Finished))
	tail := countingTask(&last, Running)
	root.AddChild(tail)
	a := newTestAI(t, 1, root)
	require.Equal(t, Running, root.Execute(a, 10))
	require.Equal(t, 2, a.SelectorState(root.ID()))

	require.True(t, root.ReplaceChild(tail.ID(), nil))
	require.Equal(t, Finished, root.Execute(a, 10))
	require.Equal(t, 2, first, "restarts at the first child")
	require.Equal(t, 1, last)
}

func TestStateIsolationBetweenAIs(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	root := mustNode(t, r, "Limit{1}", "", "")
	root.AddChild(statusTask(Finished))
	a := newTestAI(t, 1, root)
	b := newTestAI(t, 2, root)

	require.Equal(t, Finished, root.Execute(a, 10))
	require.Equal(t, Failed, root.Execute(a, 10))
	require.Equal(t, Finished, root.Execute(b, 10), "limit state is per AI")
	require.Equal(t, 1, a.LimitState(root.ID()))
	require.Equal(t, 1, b.LimitState(root.ID()))

	a.ResetStates()
	a.Update(10, false)
	require.Equal(t, Finished, root.Execute(a, 10))
}

func TestPrioritySelector(t *testing.T) {
	t.Parallel()
	root, _ := NewPrioritySelector(nil)
	var second int
	guarded := NewTask("Guarded", &TreeNodeFactoryContext{Condition: False{}}, func(*AI, int64) Status { return Finished })
	root.AddChild(guarded)
	root.AddChild(statusTask(Failed))
	root.AddChild(countingTask(&second, Running, Finished))
	a := newTestAI(t, 1, root)

	require.Equal(t, Running, root.Execute(a, 10))
	require.Equal(t, 2, a.SelectorState(root.ID()))
	require.Equal(t, CannotExecute, a.LastStatus(guarded.ID()))
	require.Equal(t, Finished, root.Execute(a, 10))
	require.Equal(t, 2, second)
}

func TestPrioritySelectorFailsWithoutWinner(t *testing.T) {
	t.Parallel()
	root, _ := NewPrioritySelector(nil)
	root.AddChild(statusTask(Failed))
	root.AddChild(statusTask(Exception))
	a := newTestAI(t, 1, root)
	require.Equal(t, Failed, root.Execute(a, 10))
	require.Equal(t, -1, a.SelectorState(root.ID()))
}

func TestRandomSelectorPicksRunnableChild(t *testing.T) {
	t.Parallel()
	root, _ := NewRandomSelector(nil)
	root.AddChild(statusTask(Failed))
	root.AddChild(statusTask(Finished))
	root.AddChild(statusTask(Failed))
	a := newTestAI(t, 1, root)
	for range 20 {
		require.Equal(t, Finished, root.Execute(a, 10))
		require.Equal(t, 1, a.SelectorState(root.ID()))
	}
}

func TestProbabilitySelector(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	root := mustNode(t, r, "ProbabilitySelector{0,1}", "", "")
	var never, always int
	require.True(t, root.AddChild(countingTask(&never, Finished)))
	require.True(t, root.AddChild(countingTask(&always, Finished)))
	require.False(t, root.AddChild(statusTask(Finished)), "more children than weights")
	a := newTestAI(t, 1, root)
	for range 10 {
		require.Equal(t, Finished, root.Execute(a, 10))
	}
	require.Zero(t, never)
	require.Equal(t, 10, always)

	_, err := r.ParseNode("ProbabilitySelector{a}", "", "")
	require.ErrorIs(t, err, ErrInvalidParameters)
}

func TestProbabilitySelectorWeightMismatch(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	root := mustNode(t, r, "ProbabilitySelector{1,1}", "", "")
	root.AddChild(statusTask(Finished))
	require.Equal(t, Exception, root.Execute(newTestAI(t, 1, root), 10))
}

func TestParallel(t *testing.T) {
	t.Parallel()
	root, _ := NewParallel(nil)
	var a1, a2 int
	root.AddChild(countingTask(&a1, Running, Finished))
	root.AddChild(countingTask(&a2, Failed))
	a := newTestAI(t, 1, root)
	require.Equal(t, Running, root.Execute(a, 10))
	require.Equal(t, []bool{true, false}, root.RunningChildren(a))
	require.Equal(t, Finished, root.Execute(a, 10))
	require.Equal(t, 2, a2)
}

func TestDecorators(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		ctor  TreeNodeFactoryFunc
		child Status
		want  Status
	}{
		{"InvertFinished", NewInvert, Finished, Failed},
		{"InvertFailed", NewInvert, Failed, Finished},
		{"InvertRunning", NewInvert, Running, Running},
		{"SucceedFailed", NewSucceed, Failed, Finished},
		{"SucceedRunning", NewSucceed, Running, Running},
		{"FailFinished", NewFail, Finished, Failed},
		{"FailRunning", NewFail, Running, Running},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n, err := tt.ctor(nil)
			require.NoError(t, err)
			require.True(t, n.AddChild(statusTask(tt.child)))
			require.Equal(t, tt.want, n.Execute(newTestAI(t, 1, n), 10))
		})
	}
}

func TestSucceedAndFailWithoutChild(t *testing.T) {
	t.Parallel()
	s, _ := NewSucceed(nil)
	f, _ := NewFail(nil)
	a := newTestAI(t, 1, s)
	require.Equal(t, Finished, s.Execute(a, 10))
	require.Equal(t, Failed, f.Execute(a, 10))
}

func TestInvertRejectsSecondChild(t *testing.T) {
	t.Parallel()
	n, _ := NewInvert(nil)
	require.True(t, n.AddChild(statusTask(Finished)))
	require.False(t, n.AddChild(statusTask(Finished)))
}

func TestLimitParameters(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	for _, expr := range []string{"Limit", "Limit{x}", "Limit{-1}"} {
		_, err := r.ParseNode(expr, "", "")
		require.ErrorIs(t, err, ErrInvalidParameters, expr)
	}
}

func TestIdle(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	n := mustNode(t, r, "Idle{100}", "", "")
	a := newTestAI(t, 1, n)
	step := func() Status {
		a.Update(50, false)
		return n.Execute(a, 50)
	}
	require.Equal(t, Running, step())
	require.Equal(t, Running, step())
	require.Equal(t, Finished, step())
	require.Equal(t, Running, step(), "re-armed after finishing")
}

func TestTaskFaultBecomesException(t *testing.T) {
	t.Parallel()
	n := NewTask("Boom", nil, func(*AI, int64) Status { panic("boom") })
	a := newTestAI(t, 1, n)
	require.Equal(t, Exception, n.Execute(a, 10))
	require.Equal(t, Exception, n.Execute(a, 10))
	require.Equal(t, Exception, a.LastStatus(n.ID()))
	require.False(t, a.markFaulted(n.ID()), "fault already recorded")
}

func TestTaskInvalidStatusBecomesException(t *testing.T) {
	t.Parallel()
	n := NewTask("Odd", nil, func(*AI, int64) Status { return Status(42) })
	require.Equal(t, Exception, n.Execute(newTestAI(t, 1, n), 10))
}

func TestLastExecRecordedWhileDebugging(t *testing.T) {
	t.Parallel()
	n := statusTask(Finished)
	a := newTestAI(t, 1, n)
	a.Update(10, false)
	n.Execute(a, 10)
	require.Equal(t, int64(-1), a.LastExecMillis(n.ID()))
	a.Update(10, true)
	n.Execute(a, 10)
	require.Equal(t, int64(20), a.LastExecMillis(n.ID()))
}

func TestReplaceChildAndFind(t *testing.T) {
	t.Parallel()
	root, _ := NewSequence(nil)
	inner, _ := NewSequence(nil)
	leaf := statusTask(Finished)
	root.AddChild(inner)
	inner.AddChild(leaf)

	require.Same(t, leaf, FindNode(root, leaf.ID()))
	require.Same(t, inner, FindParent(root, leaf.ID()))
	require.Nil(t, FindParent(root, root.ID()))

	other := statusTask(Failed)
	require.True(t, inner.ReplaceChild(leaf.ID(), other))
	require.Nil(t, FindNode(root, leaf.ID()))
	require.True(t, inner.ReplaceChild(other.ID(), nil))
	require.Empty(t, inner.Children())
	require.False(t, inner.ReplaceChild(other.ID(), nil))
}

func TestNodeIDsAreUnique(t *testing.T) {
	t.Parallel()
	seen := make(map[int32]bool)
	for range 100 {
		n, _ := NewSequence(nil)
		require.False(t, seen[n.ID()])
		seen[n.ID()] = true
	}
}

// Sequence(Task1, Task2), both finishing, driven through a zone.
func TestSequenceEndToEnd(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	var order []string
	for _, name := range []string{"Task1", "Task2"} {
		require.NoError(t, r.RegisterNodeFactory(name, TaskFactory(name, func(*AI, int64) Status {
			order = append(order, name)
			return Finished
		})))
	}
	l := NewTreeLoader(r)
	require.NoError(t, l.LoadString("behaviour example\n  Sequence name:root\n    Task1\n    Task2\n"))
	root := l.Tree("example")
	require.NotNil(t, root)

	a := newTestAI(t, 1, root)
	z := newTestZone(t, a)
	z.Update(16)
	require.Equal(t, []string{"Task1", "Task2"}, order)
	require.Equal(t, Finished, a.LastStatus(root.ID()))
}
