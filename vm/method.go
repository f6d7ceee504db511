package vm

import "fmt"

// ---------------------------------------------------------------------------
// Method repository
// ---------------------------------------------------------------------------

// FnID identifies a function in the method repository. 0 is never a
// valid function.
type FnID uint32

// BuiltinFunc is the calling convention for methods implemented in Go.
type BuiltinFunc func(vm *VM, self Value, args *Args) (Value, error)

// Fixed-arity shapes, wrapped into BuiltinFunc with an arity check.
type (
	Method0Func func(vm *VM, self Value) (Value, error)
	Method1Func func(vm *VM, self Value, a Value) (Value, error)
	Method2Func func(vm *VM, self Value, a, b Value) (Value, error)
)

// FuncKind tells how a function is executed.
type FuncKind uint8

const (
	FuncRuby FuncKind = iota
	FuncBuiltin
	FuncAttrReader
	FuncAttrWriter
)

// FuncInfo describes one function.
type FuncInfo struct {
	ID   FnID
	Name IdentID
	Kind FuncKind

	ISeq    *ISeqInfo   // FuncRuby
	Builtin BuiltinFunc // FuncBuiltin
	Ivar    IdentID     // FuncAttrReader, FuncAttrWriter

	// MinArgs and MaxArgs bound builtin arity; MaxArgs < 0 is variadic.
	MinArgs int
	MaxArgs int

	// per-site caches of a Ruby function, indexed by the slot operand
	methodCaches []InlineCache
	constCaches  []ConstCache
}

// MethodRepo stores every function known to an interpreter.
type MethodRepo struct {
	funcs []*FuncInfo
}

// NewMethodRepo creates a repository. Slot 0 is reserved.
func NewMethodRepo() *MethodRepo {
	return &MethodRepo{funcs: []*FuncInfo{nil}}
}

func (r *MethodRepo) add(info *FuncInfo) FnID {
	info.ID = FnID(len(r.funcs))
	r.funcs = append(r.funcs, info)
	return info.ID
}

// AddISeq registers compiled code and returns its id.
func (r *MethodRepo) AddISeq(iseq *ISeqInfo) FnID {
	if iseq.Method != 0 {
		return iseq.Method
	}
	iseq.finalize()
	fid := r.add(&FuncInfo{
		Name:         iseq.Name,
		Kind:         FuncRuby,
		ISeq:         iseq,
		methodCaches: make([]InlineCache, iseq.MethodCacheSlots),
		constCaches:  make([]ConstCache, iseq.ConstCacheSlots),
	})
	iseq.Method = fid
	return fid
}

// AddBuiltin registers a Go function.
func (r *MethodRepo) AddBuiltin(name IdentID, min, max int, fn BuiltinFunc) FnID {
	return r.add(&FuncInfo{Name: name, Kind: FuncBuiltin, Builtin: fn, MinArgs: min, MaxArgs: max})
}

// AddAttr registers an attribute accessor.
func (r *MethodRepo) AddAttr(name, ivar IdentID, writer bool) FnID {
	kind := FuncAttrReader
	min, max := 0, 0
	if writer {
		kind = FuncAttrWriter
		min, max = 1, 1
	}
	return r.add(&FuncInfo{Name: name, Kind: kind, Ivar: ivar, MinArgs: min, MaxArgs: max})
}

// Get returns the function with id fid.
func (r *MethodRepo) Get(fid FnID) *FuncInfo {
	if fid == 0 || int(fid) >= len(r.funcs) {
		internalPanic("invalid function id %d", fid)
	}
	return r.funcs[fid]
}

// ISeq returns the compiled code of fid.
func (r *MethodRepo) ISeq(fid FnID) *ISeqInfo {
	info := r.Get(fid)
	if info.Kind != FuncRuby {
		internalPanic("function %d is not bytecode", fid)
	}
	return info.ISeq
}

// Len returns the number of registered functions.
func (r *MethodRepo) Len() int {
	return len(r.funcs) - 1
}

// mark marks the literal pools of all compiled code.
func (r *MethodRepo) mark(a *Allocator) {
	for _, info := range r.funcs[1:] {
		if info.ISeq != nil {
			for _, v := range info.ISeq.Consts {
				a.MarkValue(v)
			}
			for i := range info.constCaches {
				a.MarkValue(info.constCaches[i].Value)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Builtin arity helpers
// ---------------------------------------------------------------------------

func checkArity(given, min, max int) error {
	if given < min || (max >= 0 && given > max) {
		if max < 0 {
			return ErrArgumentMin(given, min)
		}
		return ErrArgumentRange(given, min, max)
	}
	return nil
}

// Method0 adapts a zero-argument function.
func Method0(fn Method0Func) BuiltinFunc {
	return func(vm *VM, self Value, args *Args) (Value, error) {
		return fn(vm, self)
	}
}

// Method1 adapts a one-argument function.
func Method1(fn Method1Func) BuiltinFunc {
	return func(vm *VM, self Value, args *Args) (Value, error) {
		return fn(vm, self, args.At(0))
	}
}

// Method2 adapts a two-argument function.
func Method2(fn Method2Func) BuiltinFunc {
	return func(vm *VM, self Value, args *Args) (Value, error) {
		return fn(vm, self, args.At(0), args.At(1))
	}
}

func (k FuncKind) String() string {
	switch k {
	case FuncRuby:
		return "ruby"
	case FuncBuiltin:
		return "builtin"
	case FuncAttrReader:
		return "attr_reader"
	case FuncAttrWriter:
		return "attr_writer"
	}
	return fmt.Sprintf("FuncKind(%d)", k)
}
