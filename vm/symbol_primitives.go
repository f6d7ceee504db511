package vm

// ---------------------------------------------------------------------------
// Symbol Primitives
// ---------------------------------------------------------------------------

func (g *Globals) registerSymbolPrimitives() {
	c := g.SymbolClass

	g.DefineBuiltin(c, "to_s", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		return vm.g.NewString(vm.g.Idents.Name(self.Symbol())), nil
	}))

	// to_proc - a proc that sends self to its first argument
	g.DefineBuiltin(c, "to_proc", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		return vm.BlockToProc(SymBlock{Name: self.Symbol()}), nil
	}))
}
