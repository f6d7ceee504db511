package vm

import (
	"slices"
	"strings"
)

// ---------------------------------------------------------------------------
// Binding Primitives
// ---------------------------------------------------------------------------

func (g *Globals) registerBindingPrimitives() {
	c := g.BindingClass

	// local_variables - every visible local, sorted by name
	g.DefineBuiltin(c, "local_variables", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		names := vm.g.EnumerateLocalVars(vm.g.heapContext(self))
		ids := make([]IdentID, 0, len(names))
		for id := range names {
			ids = append(ids, id)
		}
		slices.SortFunc(ids, func(a, b IdentID) int {
			return strings.Compare(vm.g.Idents.Name(a), vm.g.Idents.Name(b))
		})
		out := make([]Value, len(ids))
		for i, id := range ids {
			out[i] = FromSymbol(id)
		}
		return vm.g.NewArray(out...), nil
	}))

	g.DefineBuiltin(c, "receiver", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		return vm.g.heapContext(self).Self(), nil
	}))

	g.DefineBuiltin(c, "local_variable_get", 1, 1, Method1(func(vm *VM, self, name Value) (Value, error) {
		e, slot, err := vm.g.findBindingLocal(self, name)
		if err != nil {
			return Nil, err
		}
		return readable(e.Local(slot)), nil
	}))

	g.DefineBuiltin(c, "local_variable_set", 2, 2, Method2(func(vm *VM, self, name, v Value) (Value, error) {
		e, slot, err := vm.g.findBindingLocal(self, name)
		if err != nil {
			return Nil, err
		}
		e.SetLocal(slot, v)
		return v, nil
	}))

	g.DefineBuiltin(c, "local_variable_defined?", 1, 1, Method1(func(vm *VM, self, name Value) (Value, error) {
		_, _, err := vm.g.findBindingLocal(self, name)
		return FromBool(err == nil), nil
	}))
}

// findBindingLocal resolves a local variable name through a binding's
// scope chain, innermost first.
func (g *Globals) findBindingLocal(binding, name Value) (EnvFrame, LvarID, error) {
	if !name.IsSymbol() {
		return EnvFrame{}, 0, ErrType("%s is not a symbol", g.Inspect(name))
	}
	id := name.Symbol()
	e := g.heapContext(binding).env()
	for {
		if slot, ok := g.Methods.ISeq(e.ISeq()).Lvar.SlotOf(id); ok {
			return e, slot, nil
		}
		outer := e.Outer()
		if outer.IsNil() {
			return EnvFrame{}, 0, ErrName("local variable '%s' is not defined for %s", g.Idents.Name(id), g.Inspect(binding))
		}
		e = g.heapContext(outer).env()
	}
}
