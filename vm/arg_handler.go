package vm

// ---------------------------------------------------------------------------
// Argument binding
// ---------------------------------------------------------------------------
//
// On entry the positional arguments of a call sit on the stack at
// [lfp, lfp+argc) and the stack ends right after them. Binding rewrites
// that range into the callee's local slots, leaving the stack at
// lfp+iseq.Lvars.

// bindMethodArgs binds the arguments of a method call. Arity violations
// are ArgumentErrors.
func (vm *VM) bindMethodArgs(iseq *ISeqInfo, lfp, argc int, kw Value, blk Block) error {
	p := &iseq.Params
	if iseq.OptFlag && kw.IsNil() {
		if argc != p.Req {
			return ErrArgumentWrong(argc, p.Req)
		}
		vm.stack.ResizeTo(lfp + iseq.Lvars)
		return nil
	}

	argc, kw = vm.foldKeywords(p, argc, kw)

	min := p.Req + p.Post
	if p.Rest != RestNone || p.Delegate {
		if argc < min {
			return ErrArgumentMin(argc, min)
		}
	} else if argc < min || argc > min+p.Opt {
		return ErrArgumentRange(argc, min, min+p.Opt)
	}
	return vm.fillParams(iseq, lfp, argc, kw, blk)
}

// bindBlockArgs binds the arguments of a block call. Blocks tolerate
// arity mismatches: missing arguments are nil and extra ones are dropped.
// A single Array argument is spread over several parameters.
func (vm *VM) bindBlockArgs(iseq *ISeqInfo, lfp, argc int, kw Value, blk Block) error {
	p := &iseq.Params
	if argc == 1 && iseq.MulargFlag && kw.IsNil() {
		if arr, ok := vm.g.AsArray(vm.stack.Get(lfp)); ok {
			elems := append([]Value(nil), arr.Elems...)
			vm.stack.ResizeTo(lfp)
			vm.stack.Extend(elems)
			argc = len(elems)
		}
	}

	if iseq.OptFlag && kw.IsNil() {
		vm.stack.ResizeTo(lfp + min(argc, p.Req))
		vm.stack.ResizeTo(lfp + iseq.Lvars)
		return nil
	}

	argc, kw = vm.foldKeywords(p, argc, kw)
	return vm.fillParams(iseq, lfp, argc, kw, blk)
}

// foldKeywords passes keywords to a callee that declares none as one
// trailing positional Hash.
func (vm *VM) foldKeywords(p *ISeqParams, argc int, kw Value) (int, Value) {
	if kw.IsNil() || p.HasKeywordParams() || p.Delegate {
		return argc, kw
	}
	vm.stack.Push(kw)
	return argc + 1, Nil
}

// fillParams lays out positional, rest, post, keyword, block and delegate
// parameters. Optional parameters without an argument are left
// uninitialized so their default expressions run.
func (vm *VM) fillParams(iseq *ISeqInfo, lfp, argc int, kw Value, blk Block) error {
	g := vm.g
	p := &iseq.Params
	argv := append([]Value(nil), vm.stack.Slice(lfp, lfp+argc)...)
	vm.stack.ResizeTo(lfp)
	vm.stack.Grow(iseq.Lvars)
	locals := vm.stack.Slice(lfp, lfp+iseq.Lvars)

	optreq := p.Req + p.Opt
	postStart := optreq + p.restSlots()
	var excess []Value

	switch {
	case argc > optreq+p.Post:
		copy(locals[:optreq], argv[:optreq])
		excess = argv[optreq : argc-p.Post]
		copy(locals[postStart:postStart+p.Post], argv[argc-p.Post:])

	case argc >= p.Req+p.Post:
		noPost := argc - p.Post
		copy(locals[:noPost], argv[:noPost])
		for i := noPost; i < optreq; i++ {
			locals[i] = Uninit
		}
		copy(locals[postStart:postStart+p.Post], argv[noPost:])

	default:
		// Only blocks get here: required parameters first, then post
		// parameters, the rest stay nil.
		reqN := min(argc, p.Req)
		copy(locals[:reqN], argv[:reqN])
		for i := p.Req; i < optreq; i++ {
			locals[i] = Uninit
		}
		copy(locals[postStart:postStart+p.Post], argv[reqN:])
	}

	if p.Rest == RestNamed {
		locals[optreq] = g.NewArray(excess...)
	}
	if slot := iseq.Lvar.DelegateSlot; slot != nil {
		locals[*slot] = g.NewArray(g.NewArray(excess...), kw)
	}

	for _, k := range p.Keywords {
		locals[k.Slot] = Uninit
	}
	if err := vm.fillKeywords(iseq, locals, kw); err != nil {
		return err
	}

	if slot := iseq.Lvar.BlockSlot; slot != nil {
		locals[*slot] = vm.BlockToProc(blk)
	}
	return nil
}

// fillKeywords routes each keyword to its slot. Unknown keywords go to
// the keyword-rest parameter if there is one.
func (vm *VM) fillKeywords(iseq *ISeqInfo, locals []Value, kw Value) error {
	g := vm.g
	p := &iseq.Params

	var rest *RHash
	if slot := iseq.Lvar.KwRestSlot; slot != nil {
		hv := g.NewHash()
		locals[*slot] = hv
		rest, _ = g.AsHash(hv)
	}
	if kw.IsNil() {
		return nil
	}
	h, ok := g.AsHash(kw)
	if !ok {
		return ErrType("no implicit conversion into Hash")
	}

	for i := 0; i < h.Len(); i++ {
		k, v := h.Entry(i)
		if k.IsSymbol() {
			if slot, ok := p.keywordSlot(k.Symbol()); ok {
				locals[slot] = v
				continue
			}
		}
		if rest != nil {
			g.HashSet(rest, k, v)
			continue
		}
		if p.Delegate {
			continue
		}
		return ErrUndefinedKeyword(g.keyName(k))
	}
	return nil
}

// keyName renders a keyword for an error message: :name for a Symbol,
// the inspected value otherwise.
func (g *Globals) keyName(k Value) string {
	if k.IsSymbol() {
		return ":" + g.Idents.Name(k.Symbol())
	}
	return g.Inspect(k)
}
