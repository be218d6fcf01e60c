package script

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
)

func newAI(t *testing.T, id ai.CharacterID, root ai.TreeNode) (*ai.AI, *ai.Zone) {
	t.Helper()
	a := ai.NewAI(ai.NewBaseCharacter(id), root)
	z := ai.NewZone(t.Name())
	require.True(t, z.AddAI(a))
	t.Cleanup(z.Shutdown)
	return a, z
}

func TestScriptedEchoTask(t *testing.T) {
	t.Parallel()
	b := testBridge(t)
	require.NoError(t, b.LoadScript("echo.js", `
		var echo = REGISTRY.createNode("Echo");
		echo.execute = function(ai, deltaMillis) {
			ai.character().setAttribute("echo", this.parameters + ":" + deltaMillis);
			return FINISHED;
		};
	`))
	node, err := b.Registry().ParseNode("Echo{hello}", "", "")
	require.NoError(t, err)

	a, z := newAI(t, 1, node)
	z.Update(16)
	require.Equal(t, ai.Finished, a.LastStatus(node.ID()))
	require.Equal(t, "hello:16", a.Character().Attributes()["echo"])
}

func TestScriptedTypesMissingMethod(t *testing.T) {
	t.Parallel()
	b := testBridge(t)
	require.NoError(t, b.LoadScript("missing.js", `
		REGISTRY.createNode("NoExec");
		REGISTRY.createCondition("NoEval");
		REGISTRY.createSteering("NoSteer");
	`))
	r := b.Registry()

	node, err := r.ParseNode("NoExec", "", "")
	require.NoError(t, err)
	a, _ := newAI(t, 1, node)
	require.Equal(t, ai.Exception, node.Execute(a, 10))

	guarded, err := r.ParseNode("Succeed", "", "NoEval")
	require.NoError(t, err)
	require.Equal(t, ai.Exception, guarded.Execute(a, 10))

	steer, err := r.ParseNode("Steer(NoSteer)", "", "")
	require.NoError(t, err)
	require.Equal(t, ai.Exception, steer.Execute(a, 10))
}

func TestMissingMethodMessage(t *testing.T) {
	t.Parallel()
	b := testBridge(t)
	require.NoError(t, b.LoadScript("missing.js", `
		var msg;
		try {
			REGISTRY.createFilter("NoFilter").filter();
		} catch (e) {
			msg = String(e);
		}
	`))
	msg, _ := b.GetGlobal("msg")
	require.Contains(t, msg, "There is no filter function set for filter: NoFilter")
}

func TestDuplicateRegistration(t *testing.T) {
	t.Parallel()
	b := testBridge(t)
	err := b.LoadScript("dup.js", `REGISTRY.createNode("Sequence");`)
	require.ErrorContains(t, err, "tree node Sequence is already registered")
	err = b.LoadScript("dup2.js", `REGISTRY.createCondition("True");`)
	require.ErrorContains(t, err, "condition True is already registered")
}

func TestScriptedConditionFilterSteering(t *testing.T) {
	t.Parallel()
	b := testBridge(t)
	require.NoError(t, b.LoadScript("types.js", `
		var hasAttr = REGISTRY.createCondition("HasAttribute");
		hasAttr.evaluate = function(ai) {
			return ai.character().attributes()[this.parameters] !== undefined;
		};
		var self = REGISTRY.createFilter("SelectSelf");
		self.filter = function(ai) { ai.addFilteredEntity(ai.id()); };
		var east = REGISTRY.createSteering("East");
		east.execute = function(ai, speed) { return {x: speed, y: 0, z: 0}; };
		var north = REGISTRY.createSteering("North");
		north.execute = function(ai, speed) { return [0, 0, speed]; };
	`))
	r := b.Registry()
	a, _ := newAI(t, 1, nil)

	c, err := r.ParseCondition("HasAttribute{mood}")
	require.NoError(t, err)
	require.False(t, c.Evaluate(a))
	a.Character().SetAttribute("mood", "calm")
	require.True(t, c.Evaluate(a))

	c, err = r.ParseCondition("Filter(SelectSelf)")
	require.NoError(t, err)
	require.True(t, c.Evaluate(a))
	require.Equal(t, []ai.CharacterID{1}, a.FilteredEntities())

	east, err := r.ParseSteering("East")
	require.NoError(t, err)
	require.Equal(t, ai.Vec3{X: 2}, east.Execute(a, 2).Direction)
	north, err := r.ParseSteering("North")
	require.NoError(t, err)
	require.Equal(t, ai.Vec3{Z: 3}, north.Execute(a, 3).Direction)
}
