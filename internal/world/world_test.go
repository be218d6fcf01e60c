package world

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
)

const sample = `
trees: [behaviours.tree]
scripts: [nodes.js]
zones:
  - name: forest
    spawns:
      - id: 1
        behaviour: wander
        position: [10, 0, 10]
        speed: 2
        groups: [7]
        attributes: {name: leader}
      - id: 10
        count: 3
        behaviour: wander
        radius: 5
        groups: [7]
        aggro: {mode: Ratio, ratio: 0.5, min: 0.1}
  - name: cave
    spawns:
      - id: 1
        behaviour: idle
`

func TestParseAndBuild(t *testing.T) {
	t.Parallel()
	f, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, f.Zones, 2)
	require.Equal(t, 3, f.Zones[0].Spawns[1].Count)
	require.Equal(t, 1, f.Zones[1].Spawns[0].Count)
	require.Equal(t, "ratio", f.Zones[0].Spawns[1].Aggro.Mode)

	loader := ai.NewTreeLoader(nil)
	require.NoError(t, loader.LoadString("behaviour wander\nSteer(Wander{10})\nbehaviour idle\nIdle{100}\n"))
	zones, err := f.Build(loader)
	require.NoError(t, err)
	require.Len(t, zones, 2)
	for _, z := range zones {
		t.Cleanup(z.Shutdown)
		z.Update(0)
	}

	forest := zones[0]
	require.Equal(t, "forest", forest.Name())
	require.Equal(t, []ai.CharacterID{1, 10, 11, 12}, forest.IDs())
	require.Equal(t, 4, forest.GroupMgr().Size(7))
	leader := forest.GetAI(1)
	require.True(t, forest.GroupMgr().IsGroupLeader(7, leader))
	require.Equal(t, "leader", leader.Character().Attributes()["name"])
	require.InDelta(t, 2, leader.Character().Speed(), 0)
	require.Equal(t, ai.ReduceByRatio, forest.GetAI(11).AggroMgr().ReductionType())
	for _, id := range []ai.CharacterID{10, 11, 12} {
		require.LessOrEqual(t, forest.GetAI(id).Character().Position().Length(), 5.0)
	}
	require.Equal(t, 1, zones[1].Size())
}

func TestBuildUnknownBehaviour(t *testing.T) {
	t.Parallel()
	f, err := Parse([]byte("zones:\n  - name: z\n    spawns:\n      - {id: 1, behaviour: missing}\n"))
	require.NoError(t, err)
	_, err = f.Build(ai.NewTreeLoader(nil))
	require.ErrorIs(t, err, ai.ErrUnknownType)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	for name, doc := range map[string]string{
		"no zones":       "trees: []\n",
		"unnamed zone":   "zones:\n  - spawns: []\n",
		"duplicate zone": "zones:\n  - name: a\n  - name: a\n",
		"duplicate id":   "zones:\n  - name: a\n    spawns:\n      - {id: 1, behaviour: x, count: 2}\n      - {id: 2, behaviour: x}\n",
		"no behaviour":   "zones:\n  - name: a\n    spawns:\n      - {id: 1}\n",
		"aggro mode":     "zones:\n  - name: a\n    spawns:\n      - {id: 1, behaviour: x, aggro: {mode: fast}}\n",
	} {
		_, err := Parse([]byte(doc))
		require.ErrorIs(t, err, ErrInvalid, name)
	}
}

func TestLoadResolvesPaths(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "world.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "behaviours.tree")}, f.Trees)
	require.Equal(t, []string{filepath.Join(dir, "nodes.js")}, f.Scripts)
}
