package vm

import (
	"errors"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// VM: one thread of execution
// ---------------------------------------------------------------------------

// VM executes bytecode on its own value stack. The root VM of an
// interpreter runs the main program; every fiber gets a dedicated VM.
// All VMs of one Globals share classes, methods and the heap, and only
// one of them runs at a time.
type VM struct {
	ID uuid.UUID

	g     *Globals
	stack *ExecStack
	cfp   int // innermost control frame, -1 if none

	// fiber is the fiber this VM runs; nil for the root VM.
	fiber *Fiber

	// temps roots values held only by Go code.
	temps []Value

	log commonlog.Logger
}

func newVM(g *Globals, stack *ExecStack, fiber *Fiber) *VM {
	return &VM{
		ID:    uuid.New(),
		g:     g,
		stack: stack,
		cfp:   -1,
		fiber: fiber,
		log:   commonlog.GetLogger("garnet.vm"),
	}
}

// Globals returns the interpreter the VM belongs to.
func (vm *VM) Globals() *Globals { return vm.g }

// Stack returns the VM's value stack.
func (vm *VM) Stack() *ExecStack { return vm.stack }

// Fiber returns the fiber the VM runs, or nil for the root VM.
func (vm *VM) Fiber() *Fiber { return vm.fiber }

func (vm *VM) mark(a *Allocator) {
	for _, v := range vm.stack.live() {
		a.MarkValue(v)
	}
	for _, v := range vm.temps {
		a.MarkValue(v)
	}
}

// protect roots v until the returned function is called.
func (vm *VM) protect(v Value) func() {
	vm.temps = append(vm.temps, v)
	n := len(vm.temps)
	return func() {
		vm.temps = vm.temps[:n-1]
	}
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// RunTop runs a toplevel unit with the main object as self.
func (vm *VM) RunTop(iseq *ISeqInfo) (Value, error) {
	fid := vm.g.Methods.AddISeq(iseq)
	v, err := vm.EvalMethod(fid, vm.g.MainObject, nil)
	return v, vm.escapeError(err)
}

// EvalSend calls method name on receiver.
func (vm *VM) EvalSend(name IdentID, receiver Value, args []Value, blk Block) (Value, error) {
	fid, ok := vm.g.FindMethod(vm.g.ClassOf(receiver), name)
	if !ok {
		return Nil, vm.noMethod(name, receiver)
	}
	host := vm.cfp < 0
	base := vm.pushCall(receiver, args)
	v, err := vm.callFunc(fid, receiver, base, len(args), Nil, blk)
	return vm.hostResult(host, v, err)
}

// EvalSendKw is EvalSend with keyword arguments.
func (vm *VM) EvalSendKw(name IdentID, receiver Value, args []Value, kw Value, blk Block) (Value, error) {
	fid, ok := vm.g.FindMethod(vm.g.ClassOf(receiver), name)
	if !ok {
		return Nil, vm.noMethod(name, receiver)
	}
	host := vm.cfp < 0
	base := vm.pushCall(receiver, args)
	v, err := vm.callFunc(fid, receiver, base, len(args), kw, blk)
	return vm.hostResult(host, v, err)
}

// EvalMethod calls fid with receiver, bypassing lookup.
func (vm *VM) EvalMethod(fid FnID, receiver Value, args []Value) (Value, error) {
	base := vm.pushCall(receiver, args)
	return vm.callFunc(fid, receiver, base, len(args), Nil, nil)
}

// EvalBlock calls blk with args.
func (vm *VM) EvalBlock(blk Block, args ...Value) (Value, error) {
	if blk == nil {
		return Nil, ErrLocalJump("no block given (yield)")
	}
	host := vm.cfp < 0
	base := vm.pushCall(Nil, args)
	v, err := vm.callBlock(blk, base, len(args))
	return vm.hostResult(host, v, err)
}

// Yield calls the block of the innermost Ruby method frame.
func (vm *VM) Yield(args ...Value) (Value, error) {
	return vm.EvalBlock(vm.currentBlock(), args...)
}

func (vm *VM) currentBlock() Block {
	f, ok := vm.callerRubyFrame()
	if !ok {
		return nil
	}
	env := vm.envAt(f.EP())
	return decodeBlock(vm.envAt(env.MFP()).Block())
}

// pushCall pushes a receiver slot and args, returning the first argument
// slot.
func (vm *VM) pushCall(receiver Value, args []Value) int {
	vm.stack.Push(receiver)
	base := vm.stack.Len()
	vm.stack.Extend(args)
	return base
}

func (vm *VM) noMethod(name IdentID, receiver Value) error {
	return ErrNoMethod(vm.g.Idents.Name(name), vm.g.Inspect(receiver))
}

// hostResult applies escapeError when the call came from the host with no
// frame active. Calls made by builtins pass signals through to their
// Ruby callers.
func (vm *VM) hostResult(host bool, v Value, err error) (Value, error) {
	if host {
		err = vm.escapeError(err)
	}
	return v, err
}

// escapeError turns control signals that found no target into
// LocalJumpErrors.
func (vm *VM) escapeError(err error) error {
	var re *RubyError
	if errors.As(err, &re) {
		switch re.Kind {
		case ErrKindMethodReturn:
			return ErrLocalJump("unexpected return")
		case ErrKindBlockReturn:
			return ErrLocalJump("break from proc-closure")
		}
	}
	return err
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// callFunc runs fid. The receiver sits at base-1 and the positional args
// at [base, base+argc); on return the stack is cut back to base-1.
func (vm *VM) callFunc(fid FnID, self Value, base, argc int, kw Value, blk Block) (Value, error) {
	info := vm.g.Methods.Get(fid)
	switch info.Kind {
	case FuncRuby:
		return vm.invokeISeq(info.ISeq, self, base, argc, kw, blk, Nil, false)
	case FuncBuiltin:
		return vm.invokeBuiltin(info, self, base, argc, kw, blk)
	case FuncAttrReader, FuncAttrWriter:
		defer vm.stack.ResizeTo(base - 1)
		if err := checkArity(argc, info.MinArgs, info.MaxArgs); err != nil {
			return Nil, err
		}
		if info.Kind == FuncAttrReader {
			return vm.getIvar(self, info.Ivar), nil
		}
		v := vm.stack.Get(base)
		return v, vm.setIvar(self, info.Ivar, v)
	}
	internalPanic("unknown function kind %v", info.Kind)
	return Nil, nil
}

func (vm *VM) invokeBuiltin(info *FuncInfo, self Value, base, argc int, kw Value, blk Block) (Value, error) {
	if !kw.IsNil() {
		vm.stack.Push(kw)
		argc++
	}
	prevSP := base - 1
	if err := checkArity(argc, info.MinArgs, info.MaxArgs); err != nil {
		vm.stack.ResizeTo(prevSP)
		return Nil, err
	}

	prevCFP := vm.cfp
	vm.stack.Push(self)
	cfp := vm.stack.Len()
	vm.stack.Push(vm.encodedCFP())
	vm.stack.Push(Nil)
	vm.stack.Push(makeFlag(argc, 0))
	vm.cfp = cfp

	if pb, ok := blk.(ProcBlock); ok {
		defer vm.protect(pb.Proc)()
	}
	args := &Args{vm: vm, base: base, n: argc, Block: blk}
	v, err := info.Builtin(vm, self, args)

	vm.cfp = prevCFP
	vm.stack.ResizeTo(prevSP)
	return v, err
}

func (vm *VM) encodedCFP() Value {
	if vm.cfp < 0 {
		return Nil
	}
	return EncodeFrame(vm.cfp)
}

// invokeISeq binds arguments, pushes a Ruby frame for iseq and runs it.
// outer is the enclosing environment of a block; asBlock selects block
// argument binding.
func (vm *VM) invokeISeq(iseq *ISeqInfo, self Value, lfp, argc int, kw Value, blk Block, outer Value, asBlock bool) (Value, error) {
	prevSP := lfp - 1
	var err error
	if asBlock {
		err = vm.bindBlockArgs(iseq, lfp, argc, kw, blk)
	} else {
		err = vm.bindMethodArgs(iseq, lfp, argc, kw, blk)
	}
	if err != nil {
		vm.stack.ResizeTo(prevSP)
		return Nil, err
	}

	prevCFP := vm.cfp
	vm.stack.Push(self)
	cfp := vm.stack.Len()
	ep := EncodeFrame(cfp)

	mfp := ep
	if !outer.IsNil() {
		mfp = vm.envAt(outer).MFP()
	}
	vm.stack.Push(vm.encodedCFP())
	vm.stack.Push(ep)
	flags := flgIsRuby
	if !asBlock && iseq.Kind == ISeqBlock {
		flags |= flgLambda
	}
	vm.stack.Push(makeFlag(iseq.Lvars, flags))
	vm.stack.Push(mfp)
	vm.stack.Push(outer)
	vm.stack.Push(FromFixnum(0))
	vm.stack.Push(FromFixnum(int64(iseq.Method)))
	vm.stack.Push(encodeBlock(blk))
	vm.cfp = cfp

	v, err := vm.run(iseq)

	if err != nil && !asBlock {
		var re *RubyError
		if errors.As(err, &re) && re.Kind == ErrKindMethodReturn && vm.sameFrame(re.target, cfp) {
			v, err = re.Value, nil
		}
	}
	vm.cfp = prevCFP
	vm.stack.ResizeTo(prevSP)
	return v, err
}

// callBlock runs blk with the args at [base, base+argc). base-1 is a
// scratch slot that receives the block's self.
func (vm *VM) callBlock(blk Block, base, argc int) (Value, error) {
	switch b := blk.(type) {
	case BlockRef:
		iseq := vm.g.Methods.ISeq(b.Method)
		outer := EncodeFrame(b.Frame)
		self := vm.envAt(outer).Self()
		vm.stack.Set(base-1, self)
		return vm.invokeISeq(iseq, self, base, argc, Nil, nil, outer, true)

	case ProcBlock:
		p, ok := vm.g.AsProc(b.Proc)
		if !ok {
			vm.stack.ResizeTo(base - 1)
			return Nil, ErrType("not a Proc")
		}
		if p.Host != nil {
			// The args stay on the stack, rooted, while the host runs.
			args := append([]Value(nil), vm.stack.Slice(base, base+argc)...)
			v, err := p.Host(vm, args)
			vm.stack.ResizeTo(base - 1)
			return v, err
		}
		iseq := vm.g.Methods.ISeq(p.Method)
		vm.stack.Set(base-1, p.Self)
		return vm.invokeISeq(iseq, p.Self, base, argc, Nil, nil, p.Outer, !p.Lambda)

	case SymBlock:
		if argc == 0 {
			vm.stack.ResizeTo(base - 1)
			return Nil, ErrArgument("no receiver given")
		}
		// Drop the scratch slot; the first argument becomes the receiver.
		vm.stack.Remove(base - 1)
		recv := vm.stack.Get(base - 1)
		fid, ok := vm.g.FindMethod(vm.g.ClassOf(recv), b.Name)
		if !ok {
			vm.stack.ResizeTo(base - 1)
			return Nil, vm.noMethod(b.Name, recv)
		}
		return vm.callFunc(fid, recv, base, argc-1, Nil, nil)
	}
	vm.stack.ResizeTo(base - 1)
	return Nil, ErrLocalJump("no block given (yield)")
}

// ---------------------------------------------------------------------------
// Instance variables
// ---------------------------------------------------------------------------

func (vm *VM) getIvar(self Value, name IdentID) Value {
	if !self.IsRef() {
		return Nil
	}
	switch o := vm.g.Deref(self).(type) {
	case *RObject:
		return o.GetSlot(o.class.IvarSlot(name))
	case *Module:
		if v, ok := o.ivars[name]; ok {
			return v
		}
	}
	return Nil
}

func (vm *VM) setIvar(self Value, name IdentID, v Value) error {
	if self.IsRef() {
		switch o := vm.g.Deref(self).(type) {
		case *RObject:
			o.SetSlot(o.class.IvarSlot(name), v)
			return nil
		case *Module:
			o.ivars[name] = v
			return nil
		}
	}
	return ErrRuntime("can't modify instance variables of %s", vm.g.Inspect(self))
}
