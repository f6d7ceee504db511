package vm

// ---------------------------------------------------------------------------
// Frame layout
// ---------------------------------------------------------------------------
//
// A Ruby call occupies one contiguous range of the value stack:
//
//	prev_sp -> receiver
//	lfp     -> local 0 .. local len-1
//	           self
//	cfp     -> PREV_CFP EP FLAG              (control words)
//	           MFP OUTER PC ISEQ BLK         (environment words)
//
// Native (builtin) calls carry only the three control words; their len is
// the argument count. A heap context has the same shape, so one EnvFrame
// view works over either memory.

const (
	cfPrevCFP = 0
	cfEP      = 1
	cfFlag    = 2

	evMFP   = 3
	evOuter = 4
	evPC    = 5
	evISeq  = 6
	evBlk   = 7

	contFrameLen = 3
	rubyFrameLen = 5
	frameWords   = contFrameLen + rubyFrameLen
)

// Frame flag bits, stored below the local count in the FLAG word.
const (
	flgDiscard uint64 = 0x4  // caller drops the result
	flgModFunc uint64 = 0x8  // module_function scope
	flgLambda  uint64 = 0x10 // block frame invoked as a lambda
	flgIsRuby  uint64 = 0x80 // frame has environment words
)

func makeFlag(n int, bits uint64) Value {
	return FromFixnum(int64(uint64(n)<<8 | bits))
}

// ---------------------------------------------------------------------------
// ControlFrame
// ---------------------------------------------------------------------------

// ControlFrame is a view of the control words of a stack frame.
type ControlFrame struct {
	mem []Value
	cfp int
}

// Offset returns the stack slot of the frame's PREV_CFP word.
func (f ControlFrame) Offset() int { return f.cfp }

// Prev returns the caller's control frame.
func (f ControlFrame) Prev() (ControlFrame, bool) {
	v := f.mem[f.cfp+cfPrevCFP]
	if !v.IsFrame() {
		return ControlFrame{}, false
	}
	return ControlFrame{mem: f.mem, cfp: v.FrameOffset()}, true
}

// EP returns the encoded environment the frame executes in: the frame
// itself, or the heap context it was moved to.
func (f ControlFrame) EP() Value { return f.mem[f.cfp+cfEP] }

func (f ControlFrame) setEP(ep Value) { f.mem[f.cfp+cfEP] = ep }

func (f ControlFrame) flag() uint64 { return uint64(f.mem[f.cfp+cfFlag].Fixnum()) }

// Len returns the local (or argument) count.
func (f ControlFrame) Len() int { return int(f.flag() >> 8) }

// IsRuby reports whether the frame belongs to bytecode.
func (f ControlFrame) IsRuby() bool { return f.flag()&flgIsRuby != 0 }

// IsLambda reports whether the frame runs a block called as a lambda,
// where return leaves the block itself.
func (f ControlFrame) IsLambda() bool { return f.flag()&flgLambda != 0 }

// Discard reports whether the caller drops the result.
func (f ControlFrame) Discard() bool { return f.flag()&flgDiscard != 0 }

// LFP returns the slot of local 0.
func (f ControlFrame) LFP() int { return f.cfp - f.Len() - 1 }

// PrevSP returns the stack length to restore when the frame returns.
func (f ControlFrame) PrevSP() int { return f.cfp - f.Len() - 2 }

// Self returns the receiver of the frame.
func (f ControlFrame) Self() Value { return f.mem[f.cfp-1] }

// Locals returns a view of the frame's local slots on the stack.
func (f ControlFrame) Locals() LocalFrame {
	return LocalFrame{mem: f.mem, lfp: f.LFP(), n: f.Len()}
}

// ---------------------------------------------------------------------------
// EnvFrame
// ---------------------------------------------------------------------------

// EnvFrame is a view of a frame's environment: its locals, self and the
// words linking it to its lexical and method scope.
type EnvFrame struct {
	mem []Value
	ep  int
}

func (e EnvFrame) flag() uint64 { return uint64(e.mem[e.ep+cfFlag].Fixnum()) }

// Len returns the number of local slots.
func (e EnvFrame) Len() int { return int(e.flag() >> 8) }

func (e EnvFrame) lfp() int { return e.ep - e.Len() - 1 }

// Self returns the frame's self.
func (e EnvFrame) Self() Value { return e.mem[e.ep-1] }

// Local returns local slot i.
func (e EnvFrame) Local(i LvarID) Value { return e.mem[e.lfp()+int(i)] }

// SetLocal stores local slot i.
func (e EnvFrame) SetLocal(i LvarID, v Value) { e.mem[e.lfp()+int(i)] = v }

// Locals returns a view of the local slots.
func (e EnvFrame) Locals() LocalFrame {
	return LocalFrame{mem: e.mem, lfp: e.lfp(), n: e.Len()}
}

// MFP returns the encoded environment of the enclosing method frame.
func (e EnvFrame) MFP() Value { return e.mem[e.ep+evMFP] }

// Outer returns the encoded lexically enclosing environment, or Nil.
func (e EnvFrame) Outer() Value { return e.mem[e.ep+evOuter] }

// ISeq returns the id of the code running in the frame.
func (e EnvFrame) ISeq() FnID { return FnID(e.mem[e.ep+evISeq].Fixnum()) }

// Block returns the encoded block passed to the frame, or Nil.
func (e EnvFrame) Block() Value { return e.mem[e.ep+evBlk] }

// PC returns the saved program counter.
func (e EnvFrame) PC() int {
	v := e.mem[e.ep+evPC]
	if !v.IsFixnum() {
		return 0
	}
	return int(v.Fixnum())
}

func (e EnvFrame) setPC(pc int) { e.mem[e.ep+evPC] = FromFixnum(int64(pc)) }
func (e EnvFrame) setMFP(v Value) { e.mem[e.ep+evMFP] = v }
func (e EnvFrame) setOuter(v Value) { e.mem[e.ep+evOuter] = v }
func (e EnvFrame) setBlock(v Value) { e.mem[e.ep+evBlk] = v }
func (e EnvFrame) setISeq(fid FnID) { e.mem[e.ep+evISeq] = FromFixnum(int64(fid)) }
func (e EnvFrame) setSelf(self Value) { e.mem[e.ep-1] = self }
func (e EnvFrame) setFlag(n int, b uint64) { e.mem[e.ep+cfFlag] = makeFlag(n, b) }

// ---------------------------------------------------------------------------
// LocalFrame
// ---------------------------------------------------------------------------

// LocalFrame is a view of a contiguous run of local slots.
type LocalFrame struct {
	mem []Value
	lfp int
	n   int
}

// Len returns the number of slots.
func (l LocalFrame) Len() int { return l.n }

// Get returns slot i.
func (l LocalFrame) Get(i int) Value {
	if i < 0 || i >= l.n {
		internalPanic("local %d out of range [0, %d)", i, l.n)
	}
	return l.mem[l.lfp+i]
}

// Set stores slot i.
func (l LocalFrame) Set(i int, v Value) {
	if i < 0 || i >= l.n {
		internalPanic("local %d out of range [0, %d)", i, l.n)
	}
	l.mem[l.lfp+i] = v
}

// Values returns the slots. The result aliases frame memory.
func (l LocalFrame) Values() []Value {
	return l.mem[l.lfp : l.lfp+l.n]
}

// ---------------------------------------------------------------------------
// VM frame access
// ---------------------------------------------------------------------------

// currentFrame returns the innermost control frame.
func (vm *VM) currentFrame() ControlFrame {
	if vm.cfp < 0 {
		internalPanic("no active frame")
	}
	return ControlFrame{mem: vm.stack.window(), cfp: vm.cfp}
}

// controlFrameAt returns a view of the control frame at slot cfp.
func (vm *VM) controlFrameAt(cfp int) ControlFrame {
	return ControlFrame{mem: vm.stack.window(), cfp: cfp}
}

// callerRubyFrame returns the nearest Ruby frame below the innermost one,
// skipping native frames. It is how builtins find their caller.
func (vm *VM) callerRubyFrame() (ControlFrame, bool) {
	if vm.cfp < 0 {
		return ControlFrame{}, false
	}
	f := vm.currentFrame()
	if f.IsRuby() {
		return f, true
	}
	for {
		prev, ok := f.Prev()
		if !ok {
			return ControlFrame{}, false
		}
		if prev.IsRuby() {
			return prev, true
		}
		f = prev
	}
}

// envAt decodes an encoded environment. A stack frame that was moved to
// the heap is followed to its heap copy.
func (vm *VM) envAt(v Value) EnvFrame {
	if v.IsFrame() {
		off := v.FrameOffset()
		ep := vm.stack.window()[off+cfEP]
		if ep.IsRef() {
			return vm.g.heapContext(ep).env()
		}
		return EnvFrame{mem: vm.stack.window(), ep: off}
	}
	if v.IsRef() {
		return vm.g.heapContext(v).env()
	}
	internalPanic("not an environment: %v", v)
	return EnvFrame{}
}

// currentEnv returns the environment of the innermost Ruby frame.
func (vm *VM) currentEnv() EnvFrame {
	return vm.envAt(vm.currentFrame().EP())
}

// sameFrame reports whether target identifies the stack frame at cfp,
// either by its stack position or by the heap copy it was moved to.
func (vm *VM) sameFrame(target Value, cfp int) bool {
	if target == EncodeFrame(cfp) {
		return true
	}
	return target.IsRef() && vm.stack.window()[cfp+cfEP] == target
}
