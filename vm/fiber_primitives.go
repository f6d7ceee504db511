package vm

// ---------------------------------------------------------------------------
// Fiber Primitives
// ---------------------------------------------------------------------------

func (g *Globals) registerFiberPrimitives() {
	c := g.FiberClass

	// Fiber.new { |*args| ... }
	g.DefineSingletonBuiltin(c, "new", 0, 0, func(vm *VM, self Value, args *Args) (Value, error) {
		if args.Block == nil {
			return Nil, ErrArgument("tried to create Proc object without a block")
		}
		return vm.g.NewFiber(vm.BlockToProc(args.Block)).Value(), nil
	})

	// Fiber.yield(*args) - suspend the current fiber
	g.DefineSingletonBuiltin(c, "yield", 0, -1, func(vm *VM, self Value, args *Args) (Value, error) {
		return vm.fiberYield(packValues(vm.g, args.Values()))
	})

	g.DefineBuiltin(c, "resume", 0, -1, func(vm *VM, self Value, args *Args) (Value, error) {
		f, _ := vm.g.AsFiber(self)
		return f.Resume(args.Values())
	})

	g.DefineBuiltin(c, "alive?", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		f, _ := vm.g.AsFiber(self)
		return FromBool(f.Alive()), nil
	}))
}
