package ai

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeekAndFlee(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	a := newTestAI(t, 1, nil)
	a.Character().SetPosition(Vec3{X: 1})

	s, err := r.ParseSteering("TargetSeek{4:0:4}")
	require.NoError(t, err)
	mv := s.Execute(a, 2)
	require.True(t, mv.IsValid())
	require.InDelta(t, 1.2, mv.Direction.X, 1e-9)
	require.InDelta(t, 1.6, mv.Direction.Z, 1e-9)

	s, err = r.ParseSteering("TargetFlee{4:0:4}")
	require.NoError(t, err)
	mv = s.Execute(a, 1)
	require.InDelta(t, -0.6, mv.Direction.X, 1e-9)

	_, err = r.ParseSteering("TargetSeek{1:2}")
	require.ErrorIs(t, err, ErrInvalidParameters)
}

func TestGroupAndSelectionSteering(t *testing.T) {
	t.Parallel()
	a := newTestAI(t, 1, nil)
	b := newTestAI(t, 2, nil)
	z := newTestZone(t, a, b)
	b.Character().SetPosition(Vec3{Z: 3})
	r := NewDefaultRegistry()

	seek, _ := r.ParseSteering("GroupSeek{1}")
	require.False(t, seek.Execute(a, 1).IsValid(), "unknown group")
	z.GroupMgr().Add(1, b)
	z.GroupMgr().Update(0)
	require.Equal(t, Vec3{Z: 1}, seek.Execute(a, 1).Direction)

	sel, _ := r.ParseSteering("SelectionFlee")
	require.False(t, sel.Execute(a, 1).IsValid(), "nothing selected")
	a.SetFilteredEntities([]CharacterID{2})
	require.Equal(t, Vec3{Z: -1}, sel.Execute(a, 1).Direction)
}

func TestWeightedSteeringIgnoresInvalid(t *testing.T) {
	t.Parallel()
	a := newTestAI(t, 1, nil)
	valid := NewFuncSteering("Valid", "", func(*AI, float64) MoveVector { return NewMoveVector(Vec3{X: 2}, 1) })
	invalid := NewFuncSteering("Invalid", "", func(*AI, float64) MoveVector { return InvalidMove })

	w, err := NewWeightedSteering([]Steering{valid, invalid}, []float64{0.5, 0.5})
	require.NoError(t, err)
	mv := w.Execute(a, 1)
	require.True(t, mv.IsValid())
	require.Equal(t, Vec3{X: 2}, mv.Direction)

	w, _ = NewWeightedSteering([]Steering{invalid}, []float64{1})
	require.False(t, w.Execute(a, 1).IsValid())

	_, err = NewWeightedSteering([]Steering{valid}, []float64{1, 2})
	require.Error(t, err)
}

func TestSteerNode(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	n := mustNode(t, r, "Steer(TargetSeek{0:0:10}){1}", "", "")
	a := newTestAI(t, 1, n)
	a.Character().SetSpeed(2)
	require.Equal(t, Finished, n.Execute(a, 500))
	require.Equal(t, Vec3{Z: 1}, a.Character().Position())
	require.InDelta(t, math.Pi/2, a.Character().Orientation(), 1e-9)

	_, err := r.ParseNode("Steer(Wander){1,2}", "", "")
	require.ErrorIs(t, err, ErrInvalidParameters)

	fail := mustNode(t, r, "Steer(SelectionSeek)", "", "")
	require.Equal(t, Failed, fail.Execute(a, 100))
}

func TestWanderKeepsHeading(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	s, err := r.ParseSteering("Wander{0}")
	require.NoError(t, err)
	a := newTestAI(t, 1, nil)
	a.Character().SetOrientation(0)
	mv := s.Execute(a, 3)
	require.InDelta(t, 3, mv.Direction.X, 1e-9)
	require.Zero(t, mv.Rotation)
}
