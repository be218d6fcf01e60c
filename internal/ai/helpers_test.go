package ai

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestAI(t *testing.T, id CharacterID, root TreeNode) *AI {
	t.Helper()
	return NewAI(NewBaseCharacter(id), root, WithRand(rand.New(rand.NewPCG(1, uint64(id)))))
}

// newTestZone returns a zone with the given AIs already resident.
func newTestZone(t *testing.T, ais ...*AI) *Zone {
	t.Helper()
	z := NewZone(t.Name())
	for _, a := range ais {
		require.True(t, z.AddAI(a))
	}
	z.applySchedule()
	t.Cleanup(z.Shutdown)
	return z
}

func statusTask(s Status) TreeNode {
	return NewTask("Status", &TreeNodeFactoryContext{Name: s.String()}, func(*AI, int64) Status { return s })
}

// countingTask returns a task producing the given statuses in order, then
// repeating the last one.
func countingTask(calls *int, statuses ...Status) TreeNode {
	return NewTask("Counting", nil, func(*AI, int64) Status {
		i := min(*calls, len(statuses)-1)
		*calls++
		return statuses[i]
	})
}

func mustNode(t *testing.T, r *Registry, typ, name, cond string) TreeNode {
	t.Helper()
	n, err := r.ParseNode(typ, name, cond)
	require.NoError(t, err)
	return n
}
