package vm

// ---------------------------------------------------------------------------
// Blocks
// ---------------------------------------------------------------------------

// Block is the block argument of a call: a literal block of a live frame,
// a Proc, or a Symbol (&:name). A nil Block means no block was given.
type Block interface {
	isBlock()
}

// BlockRef is a literal block. It is valid only while Frame, the stack
// frame it was written in, is live on the VM that created it.
type BlockRef struct {
	Method FnID
	Frame  int
}

// ProcBlock is a block backed by a Proc object.
type ProcBlock struct {
	Proc Value
}

// SymBlock calls the named method on its first argument.
type SymBlock struct {
	Name IdentID
}

func (BlockRef) isBlock()  {}
func (ProcBlock) isBlock() {}
func (SymBlock) isBlock()  {}

// encodeBlock packs b into a frame's BLK word.
func encodeBlock(b Block) Value {
	switch b := b.(type) {
	case BlockRef:
		return encodeBlockRef(b.Method, b.Frame)
	case ProcBlock:
		return b.Proc
	case SymBlock:
		return FromSymbol(b.Name)
	}
	return Nil
}

// decodeBlock unpacks a BLK word.
func decodeBlock(v Value) Block {
	switch {
	case v.IsBlockRef():
		fid, frame := v.blockRef()
		return BlockRef{Method: fid, Frame: frame}
	case v.IsRef():
		return ProcBlock{Proc: v}
	case v.IsSymbol():
		return SymBlock{Name: v.Symbol()}
	}
	return nil
}

// BlockFromValue converts the value of an explicit &block argument.
func (vm *VM) BlockFromValue(v Value) (Block, error) {
	switch {
	case v.IsNil():
		return nil, nil
	case v.IsSymbol():
		return SymBlock{Name: v.Symbol()}, nil
	}
	if _, ok := vm.g.AsProc(v); ok {
		return ProcBlock{Proc: v}, nil
	}
	return nil, ErrType("wrong argument type %s (expected Proc)", vm.g.ClassOf(v).Name(vm.g))
}

// BlockToProc turns b into a Proc value, moving a literal block's frame
// chain to the heap. A nil block gives nil.
func (vm *VM) BlockToProc(b Block) Value {
	switch b := b.(type) {
	case BlockRef:
		return vm.makeProc(b.Method, EncodeFrame(b.Frame))
	case ProcBlock:
		return b.Proc
	case SymBlock:
		name := b.Name
		return vm.NewHostProc(func(vm *VM, args []Value) (Value, error) {
			if len(args) == 0 {
				return Nil, ErrArgument("no receiver given")
			}
			return vm.EvalSend(name, args[0], args[1:], nil)
		})
	}
	return Nil
}

// blockToHeap converts a BLK word so that it no longer refers to a stack
// frame.
func (vm *VM) blockToHeap(v Value) Value {
	if v.IsBlockRef() {
		fid, frame := v.blockRef()
		return vm.makeProc(fid, EncodeFrame(frame))
	}
	return v
}

func (vm *VM) makeProc(fid FnID, outer Value) Value {
	ref := vm.MoveFrameToHeap(outer)
	self := vm.g.heapContext(ref).Self()
	return vm.g.Alloc.Alloc(&Proc{Self: self, Method: fid, Outer: ref})
}

// NewHostProc wraps a Go function as a Proc.
func (vm *VM) NewHostProc(fn HostBlockFunc) Value {
	return vm.g.Alloc.Alloc(&Proc{Self: Nil, Outer: Nil, Host: fn})
}

// ---------------------------------------------------------------------------
// Args: arguments of a builtin call
// ---------------------------------------------------------------------------

// Args gives a builtin its positional arguments, which stay on the value
// stack for the duration of the call, and its block.
type Args struct {
	vm    *VM
	base  int
	n     int
	Block Block
}

// Len returns the number of positional arguments.
func (a *Args) Len() int { return a.n }

// At returns argument i, or nil if there is none.
func (a *Args) At(i int) Value {
	if i < 0 || i >= a.n {
		return Nil
	}
	return a.vm.stack.Get(a.base + i)
}

// Values returns a copy of the positional arguments.
func (a *Args) Values() []Value {
	return append([]Value(nil), a.vm.stack.Slice(a.base, a.base+a.n)...)
}
