package ai

import "slices"

// Steer moves the character along the weighted blend of its steerings.
type Steer struct {
	Node
	weighted *WeightedSteering
}

// NewSteer reads one weight per steering from the parameters; all weights
// default to 1.
func NewSteer(ctx *TreeNodeFactoryContext) (TreeNode, error) {
	n := &Steer{Node: newNode("Steer", ctx)}
	weights, err := parseFloats(n.params)
	if err != nil {
		return nil, invalidParams(n.typ, n.params, err)
	}
	if weights == nil {
		weights = make([]float64, len(ctx.Steerings))
		for i := range weights {
			weights[i] = 1
		}
	}
	n.weighted, err = NewWeightedSteering(slices.Clone(ctx.Steerings), weights)
	if err != nil {
		return nil, invalidParams(n.typ, n.params, err)
	}
	return n, nil
}

// Steerings returns the child steerings.
func (n *Steer) Steerings() []Steering { return n.weighted.Steerings() }

func (n *Steer) Execute(ai *AI, deltaMillis int64) Status {
	if s, ok := n.enter(ai); !ok {
		return s
	}
	return n.state(ai, n.guard(ai, func() Status {
		chr := ai.Character()
		mv := n.weighted.Execute(ai, chr.Speed())
		if !mv.IsValid() {
			return Failed
		}
		seconds := float64(deltaMillis) / 1000
		chr.SetPosition(chr.Position().Add(mv.Direction.Scale(seconds)))
		orientation := chr.Orientation()
		if mv.Direction.X != 0 || mv.Direction.Z != 0 {
			orientation = mv.Direction.Orientation()
		}
		chr.SetOrientation(NormalizeAngle(orientation + mv.Rotation*seconds))
		return Finished
	}))
}
