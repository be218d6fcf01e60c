package ai

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// MoveVector is the output of a Steering: a velocity on the X/Z plane and an
// angular velocity in radians per second.
type MoveVector struct {
	Direction Vec3
	Rotation  float64
	valid     bool
}

// NewMoveVector returns a valid move vector.
func NewMoveVector(direction Vec3, rotation float64) MoveVector {
	return MoveVector{Direction: direction, Rotation: rotation, valid: true}
}

// InvalidMove is returned by steerings that cannot produce a vector.
var InvalidMove = MoveVector{}

// IsValid reports whether the vector should be applied.
func (m MoveVector) IsValid() bool { return m.valid }

// Steering computes a desired movement for an AI.
type Steering interface {
	Name() string
	Parameters() string
	Execute(ai *AI, speed float64) MoveVector
}

// SteeringFactoryContext carries everything a steering constructor gets.
type SteeringFactoryContext struct {
	Parameters string
}

// SteeringFactory creates steerings of one type.
type SteeringFactory interface {
	Create(ctx *SteeringFactoryContext) (Steering, error)
}

// SteeringFactoryFunc adapts a function to SteeringFactory.
type SteeringFactoryFunc func(ctx *SteeringFactoryContext) (Steering, error)

func (f SteeringFactoryFunc) Create(ctx *SteeringFactoryContext) (Steering, error) { return f(ctx) }

// FuncSteering is a steering backed by a function.
type FuncSteering struct {
	name   string
	params string
	fn     func(ai *AI, speed float64) MoveVector
}

// NewFuncSteering creates a steering of type name running fn.
func NewFuncSteering(name, params string, fn func(ai *AI, speed float64) MoveVector) *FuncSteering {
	return &FuncSteering{name: name, params: params, fn: fn}
}

func (s *FuncSteering) Name() string                             { return s.name }
func (s *FuncSteering) Parameters() string                       { return s.params }
func (s *FuncSteering) Execute(ai *AI, speed float64) MoveVector { return s.fn(ai, speed) }

type steeringBase struct {
	name   string
	params string
}

func (s steeringBase) Name() string       { return s.name }
func (s steeringBase) Parameters() string { return s.params }

func seek(from, to Vec3, speed float64) MoveVector {
	if to.IsInfinite() {
		return InvalidMove
	}
	return NewMoveVector(to.Sub(from).Normalize().Scale(speed), 0)
}

func flee(from, away Vec3, speed float64) MoveVector {
	if away.IsInfinite() {
		return InvalidMove
	}
	return NewMoveVector(from.Sub(away).Normalize().Scale(speed), 0)
}

// ParseVec3 parses "x:y:z".
func ParseVec3(s string) (Vec3, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Vec3{}, errors.New("expected x:y:z")
	}
	var out [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Vec3{}, err
		}
		out[i] = v
	}
	return Vec3{out[0], out[1], out[2]}, nil
}

type targetSteering struct {
	steeringBase
	target Vec3
}

func newTargetSteering(name string, ctx *SteeringFactoryContext) (targetSteering, error) {
	v, err := ParseVec3(ctx.Parameters)
	if err != nil {
		return targetSteering{}, invalidParams(name, ctx.Parameters, err)
	}
	return targetSteering{steeringBase{name, ctx.Parameters}, v}, nil
}

// TargetSeek moves towards a fixed position.
type TargetSeek struct{ targetSteering }

func NewTargetSeek(ctx *SteeringFactoryContext) (Steering, error) {
	t, err := newTargetSteering("TargetSeek", ctx)
	if err != nil {
		return nil, err
	}
	return &TargetSeek{t}, nil
}

func (s *TargetSeek) Execute(ai *AI, speed float64) MoveVector {
	return seek(ai.Character().Position(), s.target, speed)
}

// TargetFlee moves away from a fixed position.
type TargetFlee struct{ targetSteering }

func NewTargetFlee(ctx *SteeringFactoryContext) (Steering, error) {
	t, err := newTargetSteering("TargetFlee", ctx)
	if err != nil {
		return nil, err
	}
	return &TargetFlee{t}, nil
}

func (s *TargetFlee) Execute(ai *AI, speed float64) MoveVector {
	return flee(ai.Character().Position(), s.target, speed)
}

type groupSteering struct {
	steeringBase
	id GroupID
}

func newGroupSteering(name string, ctx *SteeringFactoryContext) (groupSteering, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(ctx.Parameters), 10, 32)
	if err != nil {
		return groupSteering{}, invalidParams(name, ctx.Parameters, err)
	}
	return groupSteering{steeringBase{name, ctx.Parameters}, GroupID(v)}, nil
}

func (s groupSteering) position(ai *AI) Vec3 {
	m := groupMgrOf(ai)
	if m == nil {
		return InfiniteVec3
	}
	pos, _ := m.Position(s.id)
	return pos
}

// GroupSeek moves towards the average position of a group.
type GroupSeek struct{ groupSteering }

func NewGroupSeek(ctx *SteeringFactoryContext) (Steering, error) {
	g, err := newGroupSteering("GroupSeek", ctx)
	if err != nil {
		return nil, err
	}
	return &GroupSeek{g}, nil
}

func (s *GroupSeek) Execute(ai *AI, speed float64) MoveVector {
	return seek(ai.Character().Position(), s.position(ai), speed)
}

// GroupFlee moves away from the average position of a group.
type GroupFlee struct{ groupSteering }

func NewGroupFlee(ctx *SteeringFactoryContext) (Steering, error) {
	g, err := newGroupSteering("GroupFlee", ctx)
	if err != nil {
		return nil, err
	}
	return &GroupFlee{g}, nil
}

func (s *GroupFlee) Execute(ai *AI, speed float64) MoveVector {
	return flee(ai.Character().Position(), s.position(ai), speed)
}

// selectionTarget returns the position of the first filtered entity.
func selectionTarget(ai *AI) Vec3 {
	if len(ai.filtered) == 0 {
		return InfiniteVec3
	}
	z := ai.Zone()
	if z == nil {
		return InfiniteVec3
	}
	other := z.GetAI(ai.filtered[0])
	if other == nil {
		return InfiniteVec3
	}
	return other.Character().Position()
}

// SelectionSeek moves towards the first filtered entity.
type SelectionSeek struct{ steeringBase }

func NewSelectionSeek(ctx *SteeringFactoryContext) (Steering, error) {
	return &SelectionSeek{steeringBase{"SelectionSeek", ctx.Parameters}}, nil
}

func (s *SelectionSeek) Execute(ai *AI, speed float64) MoveVector {
	return seek(ai.Character().Position(), selectionTarget(ai), speed)
}

// SelectionFlee moves away from the first filtered entity.
type SelectionFlee struct{ steeringBase }

func NewSelectionFlee(ctx *SteeringFactoryContext) (Steering, error) {
	return &SelectionFlee{steeringBase{"SelectionFlee", ctx.Parameters}}, nil
}

func (s *SelectionFlee) Execute(ai *AI, speed float64) MoveVector {
	return flee(ai.Character().Position(), selectionTarget(ai), speed)
}

// Wander moves along the current orientation with a random turn of at
// most rotation radians per second.
type Wander struct {
	steeringBase
	rotation float64
}

func NewWander(ctx *SteeringFactoryContext) (Steering, error) {
	w := &Wander{steeringBase: steeringBase{"Wander", ctx.Parameters}, rotation: 10 * math.Pi / 180}
	if p := strings.TrimSpace(ctx.Parameters); p != "" {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, invalidParams("Wander", ctx.Parameters, err)
		}
		w.rotation = v
	}
	return w, nil
}

func (s *Wander) Execute(ai *AI, speed float64) MoveVector {
	chr := ai.Character()
	dir := FromRadians(chr.Orientation()).Scale(speed)
	turn := (ai.Rand().Float64() - ai.Rand().Float64()) * s.rotation
	return NewMoveVector(dir, turn)
}

// WeightedSteering blends several steerings by weight. Invalid vectors do
// not contribute.
type WeightedSteering struct {
	steerings []Steering
	weights   []float64
}

// NewWeightedSteering requires one weight per steering.
func NewWeightedSteering(steerings []Steering, weights []float64) (*WeightedSteering, error) {
	if len(steerings) == 0 {
		return nil, errors.New("no steerings")
	}
	if len(weights) != len(steerings) {
		return nil, errors.New("weight count does not match steering count")
	}
	return &WeightedSteering{steerings: steerings, weights: weights}, nil
}

// Steerings returns the blended steerings.
func (w *WeightedSteering) Steerings() []Steering { return w.steerings }

// Weights returns the weights in steering order.
func (w *WeightedSteering) Weights() []float64 { return w.weights }

func (w *WeightedSteering) Execute(ai *AI, speed float64) MoveVector {
	var dir Vec3
	var rot, total float64
	for i, s := range w.steerings {
		mv := s.Execute(ai, speed)
		if !mv.IsValid() {
			continue
		}
		dir = dir.Add(mv.Direction.Scale(w.weights[i]))
		rot += mv.Rotation * w.weights[i]
		total += w.weights[i]
	}
	if total <= 1e-6 {
		return InvalidMove
	}
	return NewMoveVector(dir.Scale(1/total), math.Mod(rot/total, 2*math.Pi))
}
