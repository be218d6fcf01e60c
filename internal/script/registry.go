package script

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
)

// kind describes one of the four script extensible types.
type kind struct {
	label  string // used in error messages
	method string // the function the script assigns
	noun   string // the handle kind in the missing method message
}

var (
	nodeKind      = kind{label: "tree node", method: "execute", noun: "node"}
	conditionKind = kind{label: "condition", method: "evaluate", noun: "condition"}
	filterKind    = kind{label: "filter", method: "filter", noun: "filter"}
	steeringKind  = kind{label: "steering", method: "execute", noun: "steering"}
)

func (b *Bridge) registryObject(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("createNode", b.creator(vm, nodeKind, b.registerNode))
	_ = obj.Set("createCondition", b.creator(vm, conditionKind, b.registerCondition))
	_ = obj.Set("createFilter", b.creator(vm, filterKind, b.registerFilter))
	_ = obj.Set("createSteering", b.creator(vm, steeringKind, b.registerSteering))
	_ = obj.Set("types", func() map[string][]string { return b.registry.Types() })
	return obj
}

// creator returns the JS function registering a type and handing back its
// handle. The handle starts with a method that throws until the script
// assigns its own.
func (b *Bridge) creator(vm *goja.Runtime, k kind, register func(name string, handle *goja.Object) error) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if goja.IsUndefined(call.Argument(0)) || name == "" {
			panic(vm.NewTypeError(k.label + " name expected"))
		}
		handle := vm.NewObject()
		_ = handle.Set("name", name)
		_ = handle.Set(k.method, func(goja.FunctionCall) goja.Value {
			panic(vm.NewGoError(fmt.Errorf("There is no %s function set for %s: %s", k.method, k.noun, name)))
		})
		if err := register(name, handle); err != nil {
			if errors.Is(err, ai.ErrAlreadyRegistered) {
				panic(vm.NewGoError(fmt.Errorf("%s %s is already registered", k.label, name)))
			}
			panic(vm.NewGoError(err))
		}
		return handle
	}
}

// invoke calls handle[method] with this bound to self. It must run on the loop.
func invoke(handle *goja.Object, method string, self goja.Value, args ...goja.Value) (goja.Value, error) {
	fn, ok := goja.AssertFunction(handle.Get(method))
	if !ok {
		return nil, fmt.Errorf("%s is not a function", method)
	}
	return fn(self, args...)
}

func (b *Bridge) registerNode(name string, handle *goja.Object) error {
	return b.registry.RegisterNodeFactory(name, ai.TreeNodeFactoryFunc(func(ctx *ai.TreeNodeFactoryContext) (ai.TreeNode, error) {
		var task *ai.Task
		task = ai.NewTask(name, ctx, func(a *ai.AI, deltaMillis int64) ai.Status {
			var status ai.Status
			err := b.TryRunOnLoopSync(func(vm *goja.Runtime) error {
				self := vm.NewObject()
				_ = self.Set("id", task.ID())
				_ = self.Set("name", task.Name())
				_ = self.Set("type", task.Type())
				_ = self.Set("parameters", task.Parameters())
				res, err := invoke(handle, nodeKind.method, self, b.aiObject(vm, a), vm.ToValue(deltaMillis))
				if err != nil {
					return err
				}
				status = ai.Status(res.ToInteger())
				return nil
			})
			if err != nil {
				panic(err)
			}
			return status
		})
		return task, nil
	}))
}

func (b *Bridge) registerCondition(name string, handle *goja.Object) error {
	return b.registry.RegisterConditionFactory(name, ai.ConditionFactoryFunc(func(ctx *ai.ConditionFactoryContext) (ai.Condition, error) {
		params := ctx.Parameters
		return ai.NewFuncCondition(name, params, func(a *ai.AI) bool {
			var result bool
			err := b.TryRunOnLoopSync(func(vm *goja.Runtime) error {
				res, err := invoke(handle, conditionKind.method, paramsObject(vm, name, params), b.aiObject(vm, a))
				if err != nil {
					return err
				}
				result = res.ToBoolean()
				return nil
			})
			if err != nil {
				panic(err)
			}
			return result
		}), nil
	}))
}

func (b *Bridge) registerFilter(name string, handle *goja.Object) error {
	return b.registry.RegisterFilterFactory(name, ai.FilterFactoryFunc(func(ctx *ai.FilterFactoryContext) (ai.Filter, error) {
		params := ctx.Parameters
		return ai.NewFuncFilter(name, params, func(a *ai.AI) {
			err := b.TryRunOnLoopSync(func(vm *goja.Runtime) error {
				_, err := invoke(handle, filterKind.method, paramsObject(vm, name, params), b.aiObject(vm, a))
				return err
			})
			if err != nil {
				panic(err)
			}
		}), nil
	}))
}

func (b *Bridge) registerSteering(name string, handle *goja.Object) error {
	return b.registry.RegisterSteeringFactory(name, ai.SteeringFactoryFunc(func(ctx *ai.SteeringFactoryContext) (ai.Steering, error) {
		params := ctx.Parameters
		return ai.NewFuncSteering(name, params, func(a *ai.AI, speed float64) ai.MoveVector {
			mv := ai.InvalidMove
			err := b.TryRunOnLoopSync(func(vm *goja.Runtime) error {
				res, err := invoke(handle, steeringKind.method, paramsObject(vm, name, params), b.aiObject(vm, a), vm.ToValue(speed))
				if err != nil {
					return err
				}
				mv, err = toMoveVector(vm, res)
				return err
			})
			if err != nil {
				panic(err)
			}
			return mv
		}), nil
	}))
}

func paramsObject(vm *goja.Runtime, name, params string) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("name", name)
	_ = obj.Set("parameters", params)
	return obj
}

// toMoveVector accepts {x, y, z, rotation} or [x, y, z, rotation]. Null or
// undefined means no vector.
func toMoveVector(vm *goja.Runtime, v goja.Value) (ai.MoveVector, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ai.InvalidMove, nil
	}
	obj := v.ToObject(vm)
	num := func(key string) float64 {
		f := obj.Get(key)
		if f == nil || goja.IsUndefined(f) {
			return 0
		}
		return f.ToFloat()
	}
	if obj.ClassName() == "Array" {
		if l := obj.Get("length").ToInteger(); l < 3 {
			return ai.InvalidMove, fmt.Errorf("steering returned %d values, expected x, y, z[, rotation]", l)
		}
		return ai.NewMoveVector(ai.Vec3{X: num("0"), Y: num("1"), Z: num("2")}, num("3")), nil
	}
	return ai.NewMoveVector(ai.Vec3{X: num("x"), Y: num("y"), Z: num("z")}, num("rotation")), nil
}
