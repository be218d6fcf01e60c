package script

import (
	"github.com/dop251/goja"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
)

const aiKey = "__ai"

func vecObject(vm *goja.Runtime, v ai.Vec3) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("x", v.X)
	_ = obj.Set("y", v.Y)
	_ = obj.Set("z", v.Z)
	return obj
}

// unwrapAI returns the AI behind a script ai object, or nil.
func unwrapAI(vm *goja.Runtime, v goja.Value) *ai.AI {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	inner := v.ToObject(vm).Get(aiKey)
	if inner == nil {
		return nil
	}
	a, _ := inner.Export().(*ai.AI)
	return a
}

func (b *Bridge) mustAI(vm *goja.Runtime, v goja.Value) *ai.AI {
	a := unwrapAI(vm, v)
	if a == nil {
		panic(vm.NewTypeError("ai object expected"))
	}
	return a
}

func mustFunc(vm *goja.Runtime, v goja.Value) goja.Callable {
	fn, ok := goja.AssertFunction(v)
	if !ok {
		panic(vm.NewTypeError("function expected"))
	}
	return fn
}

func (b *Bridge) aiObject(vm *goja.Runtime, a *ai.AI) goja.Value {
	if a == nil {
		return goja.Null()
	}
	obj := vm.NewObject()
	_ = obj.DefineDataProperty(aiKey, vm.ToValue(a), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	_ = obj.Set("id", func() int { return int(a.ID()) })
	_ = obj.Set("time", func() int64 { return a.Time() })
	_ = obj.Set("hasZone", func() bool { return a.HasZone() })
	_ = obj.Set("zone", func() goja.Value { return b.zoneObject(vm, a.Zone()) })
	_ = obj.Set("character", func() goja.Value { return b.characterObject(vm, a.Character()) })
	_ = obj.Set("aggroMgr", func() goja.Value { return b.aggroObject(vm, a.AggroMgr()) })
	_ = obj.Set("filteredEntities", func() []int {
		ids := a.FilteredEntities()
		out := make([]int, len(ids))
		for i, id := range ids {
			out[i] = int(id)
		}
		return out
	})
	_ = obj.Set("setFilteredEntities", func(ids []int) {
		out := make([]ai.CharacterID, len(ids))
		for i, id := range ids {
			out[i] = ai.CharacterID(id)
		}
		a.SetFilteredEntities(out)
	})
	_ = obj.Set("addFilteredEntity", func(id int) { a.AddFilteredEntity(ai.CharacterID(id)) })
	_ = obj.Set("isPaused", func() bool { return a.IsPaused() })
	return obj
}

func (b *Bridge) zoneObject(vm *goja.Runtime, z *ai.Zone) goja.Value {
	if z == nil {
		return goja.Null()
	}
	obj := vm.NewObject()
	_ = obj.Set("name", func() string { return z.Name() })
	_ = obj.Set("size", func() int { return z.Size() })
	_ = obj.Set("ai", func(id int) goja.Value { return b.aiObject(vm, z.GetAI(ai.CharacterID(id))) })
	_ = obj.Set("groupMgr", func() goja.Value { return b.groupObject(vm, z.GroupMgr()) })
	// execute(fn) queues fn for every resident AI, execute(id, fn) for one.
	// Both run on the next Update, like executeAsync.
	_ = obj.Set("execute", func(call goja.FunctionCall) goja.Value {
		if fn, ok := goja.AssertFunction(call.Argument(0)); ok {
			queued := 0
			for _, id := range z.IDs() {
				if b.executeAsync(z, id, fn) {
					queued++
				}
			}
			return vm.ToValue(queued)
		}
		id := ai.CharacterID(call.Argument(0).ToInteger())
		return vm.ToValue(b.executeAsync(z, id, mustFunc(vm, call.Argument(1))))
	})
	_ = obj.Set("executeAsync", func(id int, v goja.Value) bool {
		return b.executeAsync(z, ai.CharacterID(id), mustFunc(vm, v))
	})
	return obj
}

// executeAsync defers fn against the AI id to the next drain of z.
func (b *Bridge) executeAsync(z *ai.Zone, id ai.CharacterID, fn goja.Callable) bool {
	return z.ExecuteAsync(id, func(target *ai.AI) {
		err := b.TryRunOnLoopSync(func(vm *goja.Runtime) error {
			_, err := fn(goja.Undefined(), b.aiObject(vm, target))
			return err
		})
		if err != nil {
			z.Logger().Error("deferred script callback failed", "character", target.ID(), "err", err)
		}
	})
}

func (b *Bridge) characterObject(vm *goja.Runtime, c ai.Character) goja.Value {
	if c == nil {
		return goja.Null()
	}
	obj := vm.NewObject()
	_ = obj.Set("id", func() int { return int(c.ID()) })
	_ = obj.Set("position", func() *goja.Object { return vecObject(vm, c.Position()) })
	_ = obj.Set("setPosition", func(x, y, z float64) { c.SetPosition(ai.Vec3{X: x, Y: y, Z: z}) })
	_ = obj.Set("speed", func() float64 { return c.Speed() })
	_ = obj.Set("setSpeed", func(s float64) { c.SetSpeed(s) })
	_ = obj.Set("orientation", func() float64 { return c.Orientation() })
	_ = obj.Set("setOrientation", func(o float64) { c.SetOrientation(o) })
	_ = obj.Set("attributes", func() map[string]string { return c.Attributes() })
	_ = obj.Set("setAttribute", func(k, v string) { c.SetAttribute(k, v) })
	return obj
}

func (b *Bridge) aggroObject(vm *goja.Runtime, m *ai.AggroMgr) goja.Value {
	entry := func(e ai.AggroEntry) *goja.Object {
		o := vm.NewObject()
		_ = o.Set("id", int(e.CharacterID))
		_ = o.Set("aggro", e.Aggro)
		return o
	}
	obj := vm.NewObject()
	_ = obj.Set("setReduceByRatio", func(ratio, minAggro float64) { m.SetReduceByRatio(ratio, minAggro) })
	_ = obj.Set("setReduceByValue", func(v float64) { m.SetReduceByValue(v) })
	_ = obj.Set("resetReduceValue", func() { m.ResetReduceValue() })
	_ = obj.Set("addAggro", func(id int, amount float64) float64 { return m.AddAggro(ai.CharacterID(id), amount) })
	_ = obj.Set("highestEntry", func() goja.Value {
		e, ok := m.HighestEntry()
		if !ok {
			return goja.Null()
		}
		return entry(e)
	})
	_ = obj.Set("entries", func() []any {
		entries := m.Entries()
		out := make([]any, len(entries))
		for i, e := range entries {
			out[i] = entry(e)
		}
		return out
	})
	return obj
}

func (b *Bridge) groupObject(vm *goja.Runtime, m *ai.GroupMgr) goja.Value {
	obj := vm.NewObject()
	_ = obj.Set("add", func(id int, v goja.Value) bool { return m.Add(ai.GroupID(id), b.mustAI(vm, v)) })
	_ = obj.Set("remove", func(id int, v goja.Value) bool { return m.Remove(ai.GroupID(id), b.mustAI(vm, v)) })
	_ = obj.Set("isLeader", func(id int, v goja.Value) bool { return m.IsGroupLeader(ai.GroupID(id), b.mustAI(vm, v)) })
	_ = obj.Set("isInGroup", func(id int, v goja.Value) bool { return m.IsInGroup(ai.GroupID(id), b.mustAI(vm, v)) })
	_ = obj.Set("isInAnyGroup", func(v goja.Value) bool { return m.IsInAnyGroup(b.mustAI(vm, v)) })
	_ = obj.Set("size", func(id int) int { return m.Size(ai.GroupID(id)) })
	_ = obj.Set("position", func(id int) goja.Value {
		pos, ok := m.Position(ai.GroupID(id))
		if !ok {
			return goja.Null()
		}
		return vecObject(vm, pos)
	})
	_ = obj.Set("leader", func(id int) goja.Value { return b.aiObject(vm, m.Leader(ai.GroupID(id))) })
	return obj
}
