package vm

import "strconv"

// ---------------------------------------------------------------------------
// Integer Primitives
// ---------------------------------------------------------------------------

// registerOperatorPrimitives exposes the dispatch loop's inline operators
// as methods on c, so sends and the operator instructions agree.
func (g *Globals) registerOperatorPrimitives(c *Module) {
	for op, id := range opIdents {
		op := op
		g.DefineBuiltin(c, g.Idents.Name(id), 1, 1, Method1(func(vm *VM, self, other Value) (Value, error) {
			return vm.binop(op, self, other)
		}))
	}
	g.DefineBuiltin(c, "-@", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		if self.IsFloat() {
			return FromFloat(-self.Float()), nil
		}
		return fixnum(-self.Fixnum())
	}))
}

func (g *Globals) registerIntegerPrimitives() {
	c := g.IntegerClass
	g.registerOperatorPrimitives(c)

	g.DefineBuiltin(c, "to_s", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		return vm.g.NewString(strconv.FormatInt(self.Fixnum(), 10)), nil
	}))

	g.DefineBuiltin(c, "to_f", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		return FromFloat(float64(self.Fixnum())), nil
	}))

	// times - yield 0...self
	g.DefineBuiltin(c, "times", 0, 0, func(vm *VM, self Value, args *Args) (Value, error) {
		if args.Block == nil {
			return vm.g.NewEnumerator(self, vm.g.Idents.Intern("times"), nil).Value(), nil
		}
		n := self.Fixnum()
		for i := int64(0); i < n; i++ {
			if _, err := vm.EvalBlock(args.Block, FromFixnum(i)); err != nil {
				return Nil, err
			}
		}
		return self, nil
	})
}
