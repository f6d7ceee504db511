package vm

// ---------------------------------------------------------------------------
// Array Primitives
// ---------------------------------------------------------------------------

func (g *Globals) registerArrayPrimitives() {
	c := g.ArrayClass

	size := Method0(func(vm *VM, self Value) (Value, error) {
		a, _ := vm.g.AsArray(self)
		return FromFixnum(int64(len(a.Elems))), nil
	})
	g.DefineBuiltin(c, "size", 0, 0, size)
	g.DefineBuiltin(c, "length", 0, 0, size)

	// [] - element at index, negative indices count from the end
	g.DefineBuiltin(c, "[]", 1, 1, Method1(func(vm *VM, self, index Value) (Value, error) {
		a, _ := vm.g.AsArray(self)
		i, ok := arrayIndex(a, index)
		if !ok {
			if !index.IsFixnum() {
				return Nil, ErrType("no implicit conversion into Integer")
			}
			return Nil, nil
		}
		return a.Elems[i], nil
	}))

	// []= - store at index, growing the array with nils
	g.DefineBuiltin(c, "[]=", 2, 2, Method2(func(vm *VM, self, index, v Value) (Value, error) {
		a, _ := vm.g.AsArray(self)
		if !index.IsFixnum() {
			return Nil, ErrType("no implicit conversion into Integer")
		}
		i := index.Fixnum()
		if i < 0 {
			i += int64(len(a.Elems))
			if i < 0 {
				return Nil, ErrIndex("index %d too small for array", index.Fixnum())
			}
		}
		for int64(len(a.Elems)) <= i {
			a.Elems = append(a.Elems, Nil)
		}
		a.Elems[i] = v
		return v, nil
	}))

	push := func(vm *VM, self Value, args *Args) (Value, error) {
		a, _ := vm.g.AsArray(self)
		a.Elems = append(a.Elems, args.Values()...)
		return self, nil
	}
	g.DefineBuiltin(c, "push", 0, -1, push)
	g.DefineBuiltin(c, "<<", 1, 1, push)

	g.DefineBuiltin(c, "first", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		a, _ := vm.g.AsArray(self)
		if len(a.Elems) == 0 {
			return Nil, nil
		}
		return a.Elems[0], nil
	}))

	g.DefineBuiltin(c, "==", 1, 1, Method1(func(vm *VM, self, other Value) (Value, error) {
		a, _ := vm.g.AsArray(self)
		b, ok := vm.g.AsArray(other)
		if !ok || len(a.Elems) != len(b.Elems) {
			return False, nil
		}
		for i := range a.Elems {
			eq, err := vm.binop(OpEq, a.Elems[i], b.Elems[i])
			if err != nil || !eq.IsTruthy() {
				return False, err
			}
		}
		return True, nil
	}))

	// each - yield every element; elements appended during iteration are
	// visited too
	g.DefineBuiltin(c, "each", 0, 0, func(vm *VM, self Value, args *Args) (Value, error) {
		if args.Block == nil {
			return vm.g.NewEnumerator(self, IdentEach, nil).Value(), nil
		}
		a, _ := vm.g.AsArray(self)
		for i := 0; i < len(a.Elems); i++ {
			if _, err := vm.EvalBlock(args.Block, a.Elems[i]); err != nil {
				return Nil, err
			}
		}
		return self, nil
	})

	mapFn := func(vm *VM, self Value, args *Args) (Value, error) {
		if args.Block == nil {
			return vm.g.NewEnumerator(self, IdentMap, nil).Value(), nil
		}
		a, _ := vm.g.AsArray(self)
		out := vm.g.NewArray()
		defer vm.protect(out)()
		res, _ := vm.g.AsArray(out)
		for i := 0; i < len(a.Elems); i++ {
			v, err := vm.EvalBlock(args.Block, a.Elems[i])
			if err != nil {
				return Nil, err
			}
			res.Elems = append(res.Elems, v)
		}
		return out, nil
	}
	g.DefineBuiltin(c, "map", 0, 0, mapFn)
	g.DefineBuiltin(c, "collect", 0, 0, mapFn)
}

func arrayIndex(a *RArray, index Value) (int, bool) {
	if !index.IsFixnum() {
		return 0, false
	}
	i := index.Fixnum()
	if i < 0 {
		i += int64(len(a.Elems))
	}
	if i < 0 || i >= int64(len(a.Elems)) {
		return 0, false
	}
	return int(i), true
}
