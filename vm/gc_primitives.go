package vm

// ---------------------------------------------------------------------------
// GC Primitives
// ---------------------------------------------------------------------------

func (g *Globals) registerGCPrimitives() {
	c := g.GCModule

	// GC.start - full collection now
	g.DefineSingletonBuiltin(c, "start", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		vm.g.GC.Collect()
		return Nil, nil
	}))

	g.DefineSingletonBuiltin(c, "count", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		return fixnum(int64(vm.g.GC.Count()))
	}))

	// GC.enable / GC.disable return whether collection was disabled
	g.DefineSingletonBuiltin(c, "enable", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		was := !vm.g.GC.IsEnabled()
		vm.g.GC.SetEnabled(true)
		return FromBool(was), nil
	}))
	g.DefineSingletonBuiltin(c, "disable", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		was := !vm.g.GC.IsEnabled()
		vm.g.GC.SetEnabled(false)
		return FromBool(was), nil
	}))

	// GC.stat - allocator counters as a Hash keyed by symbols
	g.DefineSingletonBuiltin(c, "stat", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		st := vm.g.Alloc.Stats()
		hv := vm.g.NewHash()
		h, _ := vm.g.AsHash(hv)
		for _, kv := range []struct {
			name string
			n    uint64
		}{
			{"live", uint64(st.Live)},
			{"free", uint64(st.Free)},
			{"total_allocated", st.TotalAllocated},
			{"pages", uint64(st.Pages)},
			{"free_pages", uint64(st.FreePages)},
			{"count", st.Count},
		} {
			vm.g.HashSet(h, FromSymbol(vm.g.Idents.Intern(kv.name)), FromFixnum(int64(kv.n)))
		}
		return hv, nil
	}))
}
