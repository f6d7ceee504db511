package vm

// ---------------------------------------------------------------------------
// HeapContext: frames that outlive their call
// ---------------------------------------------------------------------------

// HeapContext is a heap copy of a Ruby frame. Its memory has the same
// shape as a stack frame,
//
//	self | local 0 .. local len-1 | self | PREV_CFP EP FLAG MFP OUTER PC ISEQ BLK
//
// so an EnvFrame view reads it exactly like a live frame. A heap context
// only ever links to other heap contexts. Ruby code sees it as a Binding.
type HeapContext struct {
	frame []Value
	ep    int
	self  Value // own reference
}

func heapFrameLayout(n int) (size, ep int) {
	ep = n + 2
	return ep + frameWords, ep
}

func (*HeapContext) Class(g *Globals) *Module { return g.BindingClass }

func (hc *HeapContext) Mark(a *Allocator) {
	for _, v := range hc.frame {
		a.MarkValue(v)
	}
}

func (hc *HeapContext) env() EnvFrame {
	return EnvFrame{mem: hc.frame, ep: hc.ep}
}

// Env returns a view of the context's environment.
func (hc *HeapContext) Env() EnvFrame { return hc.env() }

// Value returns the context as a Value.
func (hc *HeapContext) Value() Value { return hc.self }

// Self returns the captured self.
func (hc *HeapContext) Self() Value { return hc.env().Self() }

// Len returns the number of local slots.
func (hc *HeapContext) Len() int { return hc.env().Len() }

// Local returns local slot i.
func (hc *HeapContext) Local(i LvarID) Value { return hc.env().Local(i) }

// SetLocal stores local slot i.
func (hc *HeapContext) SetLocal(i LvarID, v Value) { hc.env().SetLocal(i, v) }

// Outer returns the enclosing heap context, or Nil.
func (hc *HeapContext) Outer() Value { return hc.env().Outer() }

// NewHeapContext creates a heap frame for iseq. Locals start nil except a
// declared keyword-rest slot, which starts uninitialized. outer must be
// Nil or another heap context; the method frame link is taken from outer,
// or is the new context itself when there is no outer.
func (g *Globals) NewHeapContext(self Value, iseq *ISeqInfo, outer Value) *HeapContext {
	if !outer.IsNil() && !outer.IsRef() {
		internalPanic("heap context outer must be a heap context: %v", outer)
	}
	n := iseq.Lvars
	size, ep := heapFrameLayout(n)
	frame := make([]Value, size)
	for i := range frame {
		frame[i] = Nil
	}
	hc := &HeapContext{frame: frame, ep: ep}
	hc.self = g.Alloc.Alloc(hc)

	frame[0] = self
	e := hc.env()
	e.setSelf(self)
	frame[ep+cfEP] = hc.self
	e.setFlag(n, flgIsRuby)
	e.setISeq(iseq.Method)
	e.setOuter(outer)
	e.setPC(0)
	g.linkMFP(hc)
	if slot := iseq.Lvar.KwRestSlot; slot != nil {
		e.SetLocal(*slot, Uninit)
	}
	return hc
}

func (g *Globals) linkMFP(hc *HeapContext) {
	e := hc.env()
	if outer := e.Outer(); outer.IsNil() {
		e.setMFP(hc.self)
	} else {
		e.setMFP(g.heapContext(outer).env().MFP())
	}
}

// SetISeq rebinds the context to new code compiled against the same
// scope. Locals keep their values by index, new slots are nil, and self
// and the lexical links are preserved.
func (g *Globals) SetISeq(hc *HeapContext, iseq *ISeqInfo) {
	old := hc.env()
	n := iseq.Lvars
	size, ep := heapFrameLayout(n)
	frame := make([]Value, size)
	for i := range frame {
		frame[i] = Nil
	}

	oldLocals := old.Locals().Values()
	copy(frame[1:1+min(n, len(oldLocals))], oldLocals)
	copy(frame[ep:], hc.frame[hc.ep:hc.ep+frameWords])

	self := old.Self()
	hc.frame = frame
	hc.ep = ep
	frame[0] = self

	e := hc.env()
	e.setSelf(self)
	e.setFlag(n, flgIsRuby)
	e.setISeq(iseq.Method)
	frame[ep+cfEP] = hc.self
	g.linkMFP(hc)
}

// EnumerateLocalVars returns every local variable name visible from the
// context, walking the outer chain.
func (g *Globals) EnumerateLocalVars(hc *HeapContext) map[IdentID]struct{} {
	names := make(map[IdentID]struct{})
	e := hc.env()
	for {
		iseq := g.Methods.ISeq(e.ISeq())
		for _, name := range iseq.Lvar.Table() {
			if name != IdentNone {
				names[name] = struct{}{}
			}
		}
		outer := e.Outer()
		if outer.IsNil() {
			return names
		}
		e = g.heapContext(outer).env()
	}
}

// DupContext copies hc. The copy shares hc's outer chain.
func (g *Globals) DupContext(hc *HeapContext) *HeapContext {
	frame := append([]Value(nil), hc.frame...)
	dup := &HeapContext{frame: frame, ep: hc.ep}
	dup.self = g.Alloc.Alloc(dup)
	frame[dup.ep+cfEP] = dup.self
	if frame[dup.ep+evMFP] == hc.self {
		frame[dup.ep+evMFP] = dup.self
	}
	return dup
}

// ---------------------------------------------------------------------------
// Escaping stack frames
// ---------------------------------------------------------------------------

// MoveFrameToHeap escapes the stack environment env, and every stack
// environment it links to, into heap contexts. The stack frame is
// redirected to its copy, so the running code and the closures created
// from it share one set of locals from then on. It returns the encoded
// heap environment; an env that is already on the heap is returned as is.
func (vm *VM) MoveFrameToHeap(env Value) Value {
	if env.IsNil() || env.IsRef() {
		return env
	}
	off := env.FrameOffset()
	mem := vm.stack.window()
	if ep := mem[off+cfEP]; ep.IsRef() {
		return ep
	}

	e := EnvFrame{mem: mem, ep: off}
	outer := vm.MoveFrameToHeap(e.Outer())
	n := e.Len()
	size, ep := heapFrameLayout(n)
	frame := make([]Value, size)
	copy(frame[1:], mem[off-n-1:off+frameWords])
	frame[0] = e.Self()

	hc := &HeapContext{frame: frame, ep: ep}
	hc.self = vm.g.Alloc.Alloc(hc)
	he := hc.env()
	frame[ep+cfPrevCFP] = Nil
	frame[ep+cfEP] = hc.self
	he.setOuter(outer)
	vm.g.linkMFP(hc)
	he.setBlock(vm.blockToHeap(e.Block()))

	mem[off+cfEP] = hc.self
	return hc.self
}

// NewBinding captures the environment of the innermost Ruby frame of the
// caller as a heap context.
func (vm *VM) NewBinding() (*HeapContext, error) {
	f, ok := vm.callerRubyFrame()
	if !ok {
		return nil, ErrRuntime("no Ruby frame to bind")
	}
	ref := vm.MoveFrameToHeap(EncodeFrame(f.Offset()))
	return vm.g.heapContext(ref), nil
}
