package vm

// ---------------------------------------------------------------------------
// Proc Primitives
// ---------------------------------------------------------------------------

func (g *Globals) registerProcPrimitives() {
	c := g.ProcClass

	call := func(vm *VM, self Value, args *Args) (Value, error) {
		return vm.EvalBlock(ProcBlock{Proc: self}, args.Values()...)
	}
	g.DefineBuiltin(c, "call", 0, -1, call)
	g.DefineBuiltin(c, "[]", 0, -1, call)
	g.DefineBuiltin(c, "yield", 0, -1, call)

	g.DefineBuiltin(c, "lambda?", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		p, _ := vm.g.AsProc(self)
		return FromBool(p.Lambda), nil
	}))

	// binding - the scope the block closes over
	g.DefineBuiltin(c, "binding", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		p, _ := vm.g.AsProc(self)
		if p.Outer.IsNil() {
			return Nil, ErrArgument("Can't create Binding from C level Proc")
		}
		return p.Outer, nil
	}))
}
