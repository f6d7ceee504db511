package vm

// ---------------------------------------------------------------------------
// Enumerator Primitives
// ---------------------------------------------------------------------------

func (g *Globals) registerEnumeratorPrimitives() {
	c := g.EnumeratorClass

	// Enumerator.new(obj, method = :each, *args)
	g.DefineSingletonBuiltin(c, "new", 1, -1, func(vm *VM, self Value, args *Args) (Value, error) {
		method := IdentEach
		var rest []Value
		if args.Len() > 1 {
			m := args.At(1)
			if !m.IsSymbol() {
				return Nil, ErrType("%s is not a symbol", vm.g.Inspect(m))
			}
			method = m.Symbol()
			rest = args.Values()[2:]
		}
		return vm.g.NewEnumerator(args.At(0), method, rest).Value(), nil
	})

	g.DefineBuiltin(c, "next", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		e, _ := vm.g.AsEnumerator(self)
		return e.Next(vm)
	}))

	g.DefineBuiltin(c, "rewind", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		e, _ := vm.g.AsEnumerator(self)
		e.Rewind(vm.g)
		return self, nil
	}))

	g.DefineBuiltin(c, "each", 0, 0, func(vm *VM, self Value, args *Args) (Value, error) {
		if args.Block == nil {
			return self, nil
		}
		e, _ := vm.g.AsEnumerator(self)
		return e.Each(vm, args.Block)
	})

	mapFn := func(vm *VM, self Value, args *Args) (Value, error) {
		if args.Block == nil {
			return vm.g.NewEnumerator(self, IdentMap, nil).Value(), nil
		}
		e, _ := vm.g.AsEnumerator(self)
		return e.Map(vm, args.Block)
	}
	g.DefineBuiltin(c, "map", 0, 0, mapFn)
	g.DefineBuiltin(c, "collect", 0, 0, mapFn)

	// with_index(offset = 0)
	g.DefineBuiltin(c, "with_index", 0, 1, func(vm *VM, self Value, args *Args) (Value, error) {
		offset := int64(0)
		if v := args.At(0); !v.IsNil() {
			if !v.IsFixnum() {
				return Nil, ErrType("no implicit conversion into Integer")
			}
			offset = v.Fixnum()
		}
		if args.Block == nil {
			return vm.g.NewEnumerator(self, IdentWithIndex, args.Values()).Value(), nil
		}
		e, _ := vm.g.AsEnumerator(self)
		return e.WithIndex(vm, offset, args.Block)
	})

	g.DefineBuiltin(c, "inspect", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		e, _ := vm.g.AsEnumerator(self)
		return vm.g.NewString(e.Inspect(vm.g)), nil
	}))
}
