package script

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
)

// treesObject exposes tree building:
//
//	var tree = TREES.createTree("example");
//	var root = tree.createRoot("PrioritySelector", "root");
//	root.addNode("Idle{1000}", "idle").setCondition("Not(HasEnemies)");
func (b *Bridge) treesObject(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("createTree", func(name string) *goja.Object { return b.treeObject(vm, name) })
	_ = obj.Set("names", func() []string { return b.trees.Names() })
	return obj
}

func (b *Bridge) treeObject(vm *goja.Runtime, name string) *goja.Object {
	if name == "" {
		panic(vm.NewTypeError("tree name expected"))
	}
	if b.trees.Tree(name) != nil {
		panic(vm.NewGoError(errTreeExists(name)))
	}
	obj := vm.NewObject()
	_ = obj.Set("name", name)
	_ = obj.Set("createRoot", func(typ, nodeName string) *goja.Object {
		root := b.parseNode(vm, typ, nodeName)
		if err := b.trees.AddTree(name, root); err != nil {
			panic(vm.NewGoError(err))
		}
		return b.nodeObject(vm, root)
	})
	_ = obj.Set("root", func() goja.Value {
		root := b.trees.Tree(name)
		if root == nil {
			return goja.Null()
		}
		return b.nodeObject(vm, root)
	})
	return obj
}

func (b *Bridge) parseNode(vm *goja.Runtime, typ, name string) ai.TreeNode {
	n, err := b.registry.ParseNode(typ, name, "")
	if err != nil {
		panic(vm.NewGoError(err))
	}
	return n
}

func (b *Bridge) nodeObject(vm *goja.Runtime, n ai.TreeNode) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("id", func() int32 { return n.ID() })
	_ = obj.Set("name", func() string { return n.Name() })
	_ = obj.Set("type", func() string { return n.Type() })
	_ = obj.Set("parameters", func() string { return n.Parameters() })
	_ = obj.Set("addNode", func(typ, name string) *goja.Object {
		child := b.parseNode(vm, typ, name)
		if !n.AddChild(child) {
			panic(vm.NewTypeError(n.Name() + " does not accept another child"))
		}
		return b.nodeObject(vm, child)
	})
	_ = obj.Set("setCondition", func(expr string) *goja.Object {
		c, err := b.registry.ParseCondition(expr)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		n.SetCondition(c)
		return obj
	})
	return obj
}

func errTreeExists(name string) error {
	return fmt.Errorf("behaviour %s: %w", name, ai.ErrAlreadyRegistered)
}
