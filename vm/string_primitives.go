package vm

// ---------------------------------------------------------------------------
// String Primitives
// ---------------------------------------------------------------------------

func (g *Globals) registerStringPrimitives() {
	c := g.StringClass

	g.DefineBuiltin(c, "to_s", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		return self, nil
	}))

	g.DefineBuiltin(c, "==", 1, 1, Method1(func(vm *VM, self, other Value) (Value, error) {
		a, _ := vm.g.AsString(self)
		b, ok := vm.g.AsString(other)
		return FromBool(ok && a.S == b.S), nil
	}))

	g.DefineBuiltin(c, "+", 1, 1, Method1(func(vm *VM, self, other Value) (Value, error) {
		a, _ := vm.g.AsString(self)
		b, ok := vm.g.AsString(other)
		if !ok {
			return Nil, ErrType("no implicit conversion of %s into String", vm.g.ClassOf(other).Name(vm.g))
		}
		return vm.g.NewString(a.S + b.S), nil
	}))

	// << - append in place
	g.DefineBuiltin(c, "<<", 1, 1, Method1(func(vm *VM, self, other Value) (Value, error) {
		a, _ := vm.g.AsString(self)
		s, err := vm.toS(other)
		if err != nil {
			return Nil, err
		}
		a.S += s
		return self, nil
	}))

	g.DefineBuiltin(c, "size", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		a, _ := vm.g.AsString(self)
		return FromFixnum(int64(len([]rune(a.S)))), nil
	}))

	g.DefineBuiltin(c, "to_sym", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		a, _ := vm.g.AsString(self)
		return FromSymbol(vm.g.Idents.Intern(a.S)), nil
	}))
}
