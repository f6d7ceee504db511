package vm

// ---------------------------------------------------------------------------
// Hash Primitives
// ---------------------------------------------------------------------------

func (g *Globals) registerHashPrimitives() {
	c := g.HashClass

	g.DefineBuiltin(c, "[]", 1, 1, Method1(func(vm *VM, self, key Value) (Value, error) {
		h, _ := vm.g.AsHash(self)
		v, _ := vm.g.HashGet(h, key)
		return v, nil
	}))

	g.DefineBuiltin(c, "[]=", 2, 2, Method2(func(vm *VM, self, key, v Value) (Value, error) {
		h, _ := vm.g.AsHash(self)
		vm.g.HashSet(h, key, v)
		return v, nil
	}))

	g.DefineBuiltin(c, "size", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		h, _ := vm.g.AsHash(self)
		return FromFixnum(int64(h.Len())), nil
	}))

	g.DefineBuiltin(c, "key?", 1, 1, Method1(func(vm *VM, self, key Value) (Value, error) {
		h, _ := vm.g.AsHash(self)
		_, ok := vm.g.HashGet(h, key)
		return FromBool(ok), nil
	}))

	g.DefineBuiltin(c, "keys", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		h, _ := vm.g.AsHash(self)
		return vm.g.NewArray(h.keys...), nil
	}))
}
