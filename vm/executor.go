package vm

import (
	"errors"
	"math"
	"math/bits"
)

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

// run executes iseq in the frame invokeISeq just pushed at vm.cfp. It
// returns the value of RETURN, or a RubyError. Control signals for other
// frames (MethodReturn, BlockReturn) pass through unchanged.
func (vm *VM) run(iseq *ISeqInfo) (Value, error) {
	g := vm.g
	g.GC.safepoint()

	info := g.Methods.Get(iseq.Method)
	code := iseq.Code
	cfp := vm.cfp
	s := vm.stack
	pc := 0

	for {
		if pc >= len(code) {
			if s.Len() > cfp+frameWords {
				return s.Top(), nil
			}
			return Nil, nil
		}

		op := Opcode(code[pc])
		size := op.Size()
		if size == 0 {
			internalPanic("bad opcode %d at %d", code[pc], pc)
		}
		next := pc + size
		var err error

		switch op {
		// --- Push values ---
		case OpPushVal:
			s.Push(Value(readU64(code, pc+1)))

		case OpPushFlonum:
			s.Push(FromFloat(math.Float64frombits(readU64(code, pc+1))))

		case OpPushNil:
			s.Push(Nil)

		case OpPushSelf:
			s.Push(vm.frameEnv(cfp).Self())

		case OpConstVal:
			v := iseq.Consts[readU32(code, pc+1)]
			if str, ok := g.AsString(v); ok {
				v = g.NewString(str.S)
			}
			s.Push(v)

		// --- Object creation ---
		case OpCreateArray:
			n := int(readU32(code, pc+1))
			s.Push(g.NewArray(s.PopN(n)...))

		case OpCreateHash:
			n := int(readU32(code, pc+1))
			kv := s.PopN(2 * n)
			hv := g.NewHash()
			h, _ := g.AsHash(hv)
			for i := 0; i < n; i++ {
				g.HashSet(h, kv[2*i], kv[2*i+1])
			}
			s.Push(hv)

		case OpCreateProc:
			fid := FnID(readU32(code, pc+1))
			s.Push(vm.makeProc(fid, EncodeFrame(cfp)))

		// --- Variables ---
		case OpGetLocal:
			s.Push(readable(vm.frameEnv(cfp).Local(LvarID(readU32(code, pc+1)))))

		case OpSetLocal:
			vm.frameEnv(cfp).SetLocal(LvarID(readU32(code, pc+1)), s.Pop())

		case OpGetDynLocal:
			e := vm.outerEnv(cfp, int(readU32(code, pc+5)))
			s.Push(readable(e.Local(LvarID(readU32(code, pc+1)))))

		case OpSetDynLocal:
			e := vm.outerEnv(cfp, int(readU32(code, pc+5)))
			e.SetLocal(LvarID(readU32(code, pc+1)), s.Pop())

		case OpCheckLocal:
			e := vm.outerEnv(cfp, int(readU32(code, pc+5)))
			s.Push(FromBool(!e.Local(LvarID(readU32(code, pc+1))).IsUninit()))

		case OpGetConst:
			id := IdentID(readU32(code, pc+1))
			cc := &info.constCaches[readU32(code, pc+5)]
			v, ok := cc.Lookup(g.version)
			if !ok {
				if v, ok = g.FindConst(iseq.Class, id); !ok {
					err = ErrName("uninitialized constant %s", g.Idents.Name(id))
					break
				}
				cc.Update(v, g.version)
			}
			s.Push(v)

		case OpGetConstTop:
			id := IdentID(readU32(code, pc+1))
			v, ok := g.FindConst(g.ObjectClass, id)
			if !ok {
				err = ErrName("uninitialized constant %s", g.Idents.Name(id))
				break
			}
			s.Push(v)

		case OpSetConst:
			g.SetConst(vm.lexicalClass(iseq, cfp), IdentID(readU32(code, pc+1)), s.Pop())

		case OpGetIvar:
			s.Push(vm.getIvar(vm.frameEnv(cfp).Self(), IdentID(readU32(code, pc+1))))

		case OpSetIvar:
			err = vm.setIvar(vm.frameEnv(cfp).Self(), IdentID(readU32(code, pc+1)), s.Pop())

		case OpGetGvar:
			s.Push(g.GetGvar(IdentID(readU32(code, pc+1))))

		case OpSetGvar:
			g.SetGvar(IdentID(readU32(code, pc+1)), s.Pop())

		// --- Message sends ---
		case OpSend:
			vm.frameEnv(cfp).setPC(pc)
			err = vm.execSend(iseq, info, cfp, sendSite{
				name:  IdentID(readU32(code, pc+1)),
				argc:  int(readU16(code, pc+5)),
				flag:  code[pc+7],
				block: FnID(readU32(code, pc+8)),
				cache: int(readU32(code, pc+12)),
			})

		case OpOptSend, OpOptSendN:
			vm.frameEnv(cfp).setPC(pc)
			err = vm.execSend(iseq, info, cfp, sendSite{
				name:    IdentID(readU32(code, pc+1)),
				argc:    int(readU16(code, pc+5)),
				block:   FnID(readU32(code, pc+7)),
				cache:   int(readU32(code, pc+11)),
				discard: op == OpOptSendN,
			})

		case OpYield:
			vm.frameEnv(cfp).setPC(pc)
			err = vm.execYield(cfp, int(readU32(code, pc+1)))

		// --- Stack manipulation ---
		case OpPop:
			s.Pop()

		case OpDup:
			n := int(readU32(code, pc+1))
			top := s.Len()
			s.Grow(n)
			s.CopyWithin(top-n, top, n)

		case OpTake:
			n := int(readU32(code, pc+1))
			v := s.Pop()
			elems := []Value{v}
			if arr, ok := g.AsArray(v); ok {
				elems = arr.Elems
			}
			for i := 0; i < n; i++ {
				if i < len(elems) {
					s.Push(elems[i])
				} else {
					s.Push(Nil)
				}
			}

		case OpSplat:
			s.Push(g.Alloc.Alloc(&RSplat{Val: s.Pop()}))

		case OpSinkN:
			n := int(readU32(code, pc+1))
			v := s.Pop()
			s.Insert(s.Len()-n, v)

		case OpTopN:
			s.Push(s.Peek(int(readU32(code, pc+1))))

		// --- Definitions ---
		case OpDefMethod, OpDefSMethod:
			id := IdentID(readU32(code, pc+1))
			fid := FnID(readU32(code, pc+5))
			var target *Module
			if op == OpDefSMethod {
				m, ok := g.AsModule(vm.frameEnv(cfp).Self())
				if !ok {
					err = ErrType("can't define singleton method on %s", g.Inspect(vm.frameEnv(cfp).Self()))
					break
				}
				target = g.SingletonClass(m)
			} else {
				target = vm.lexicalClass(iseq, cfp)
			}
			g.Methods.ISeq(fid).Class = target
			g.DefineMethod(target, id, fid)
			s.Push(FromSymbol(id))

		case OpDefClass:
			vm.frameEnv(cfp).setPC(pc)
			err = vm.execDefClass(iseq, cfp, code[pc+1] != 0, IdentID(readU32(code, pc+2)), FnID(readU32(code, pc+6)))

		// --- Control flow ---
		case OpJmp:
			next += int(readI32(code, pc+1))

		case OpJmpBack:
			next += int(readI32(code, pc+1))
			g.GC.safepoint()

		case OpJmpF:
			if !s.Pop().IsTruthy() {
				next += int(readI32(code, pc+1))
			}

		case OpJmpT:
			if s.Pop().IsTruthy() {
				next += int(readI32(code, pc+1))
			}

		case OpReturn:
			return s.Pop(), nil

		case OpBreak:
			v := s.Pop()
			if iseq.Kind == ISeqBlock {
				return Nil, blockReturn(v, vm.frameEnv(cfp).Outer())
			}
			return v, nil

		case OpMReturn:
			v := s.Pop()
			if iseq.Kind == ISeqBlock && !vm.controlFrameAt(cfp).IsLambda() {
				return Nil, methodReturn(v, vm.frameEnv(cfp).MFP())
			}
			return v, nil

		case OpThrow:
			v := s.Pop()
			if v.IsRef() {
				if ex, ok := g.Deref(v).(*RException); ok {
					err = ex.Err
					break
				}
			}
			err = ErrRuntime("%s", g.Inspect(v))

		// --- Operators ---
		case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpPow,
			OpEq, OpNe, OpTeq, OpGt, OpGe, OpLt, OpLe, OpCmp,
			OpShr, OpShl, OpBOr, OpBAnd, OpBXor:
			rhs := s.Pop()
			lhs := s.Pop()
			var v Value
			if v, err = vm.binop(op, lhs, rhs); err == nil {
				s.Push(v)
			}

		case OpAddI, OpSubI, OpEqI, OpNeI, OpGtI, OpGeI, OpLtI, OpLeI:
			rhs := FromFixnum(int64(readI32(code, pc+1)))
			lhs := s.Pop()
			var v Value
			if v, err = vm.binop(immOps[op], lhs, rhs); err == nil {
				s.Push(v)
			}

		case OpNot:
			s.Push(FromBool(!s.Pop().IsTruthy()))

		case OpNeg:
			v := s.Pop()
			switch {
			case v.IsFixnum():
				if v, err = fixnum(-v.Fixnum()); err == nil {
					s.Push(v)
				}
			case v.IsFloat():
				s.Push(FromFloat(-v.Float()))
			default:
				v, err = vm.sendOp(IdentNeg, v)
				if err == nil {
					s.Push(v)
				}
			}

		case OpBNot:
			v := s.Pop()
			if !v.IsFixnum() {
				err = ErrType("no implicit conversion into Integer")
				break
			}
			s.Push(FromFixnum(^v.Fixnum()))

		case OpJmpFEq, OpJmpFNe, OpJmpFGt, OpJmpFGe, OpJmpFLt, OpJmpFLe:
			rhs := s.Pop()
			lhs := s.Pop()
			var v Value
			if v, err = vm.binop(fusedOps[op], lhs, rhs); err == nil && !v.IsTruthy() {
				next += int(readI32(code, pc+1))
			}

		case OpJmpFEqI, OpJmpFNeI, OpJmpFGtI, OpJmpFGeI, OpJmpFLtI, OpJmpFLeI:
			rhs := FromFixnum(int64(readI32(code, pc+1)))
			lhs := s.Pop()
			var v Value
			if v, err = vm.binop(fusedOps[op], lhs, rhs); err == nil && !v.IsTruthy() {
				next += int(readI32(code, pc+5))
			}

		default:
			err = ErrUnimplemented(op)
		}

		if err != nil {
			dest, ok := vm.rescue(iseq, cfp, pc, err)
			if !ok {
				return Nil, err
			}
			next = dest
		}
		pc = next
	}
}

// readable maps the uninitialized marker to nil for user code.
func readable(v Value) Value {
	if v.IsUninit() {
		return Nil
	}
	return v
}

// frameEnv returns the environment of the frame at cfp, following it to
// the heap if it has been moved there.
func (vm *VM) frameEnv(cfp int) EnvFrame {
	return vm.envAt(EncodeFrame(cfp))
}

// outerEnv walks depth lexical scopes out from the frame at cfp.
func (vm *VM) outerEnv(cfp, depth int) EnvFrame {
	e := vm.frameEnv(cfp)
	for ; depth > 0; depth-- {
		outer := e.Outer()
		if outer.IsNil() {
			internalPanic("no scope %d levels out", depth)
		}
		e = vm.envAt(outer)
	}
	return e
}

// lexicalClass is where definitions in iseq land: the class a class body
// is running for, else the class the code was defined in.
func (vm *VM) lexicalClass(iseq *ISeqInfo, cfp int) *Module {
	if iseq.Kind == ISeqClass {
		if m, ok := vm.g.AsModule(vm.frameEnv(cfp).Self()); ok {
			return m
		}
	}
	if iseq.Class != nil {
		return iseq.Class
	}
	return vm.g.ObjectClass
}

// rescue finds a rescue entry covering pc. On a match the frame's
// temporaries are dropped, the exception object is pushed and the
// destination is returned.
func (vm *VM) rescue(iseq *ISeqInfo, cfp, pc int, err error) (int, bool) {
	var re *RubyError
	if !errors.As(err, &re) || re.Kind.IsControl() || re.Kind == ErrKindInternal {
		return 0, false
	}
	for _, e := range iseq.ExceptionTable {
		if e.Kind != ExceptionRescue || pc < e.Start || pc >= e.End {
			continue
		}
		vm.stack.ResizeTo(cfp + frameWords)
		vm.stack.Push(vm.g.Alloc.Alloc(&RException{Err: re}))
		return e.Dest, true
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Sends
// ---------------------------------------------------------------------------

type sendSite struct {
	name    IdentID
	argc    int
	flag    uint8
	block   FnID
	cache   int
	discard bool
}

// execSend performs a call site. The stack holds the receiver, argc
// arguments, then an optional keyword Hash and an optional &block value,
// as announced by the flags.
func (vm *VM) execSend(iseq *ISeqInfo, info *FuncInfo, cfp int, site sendSite) error {
	g := vm.g
	s := vm.stack

	var blk Block
	if site.flag&ArgFlagBlockArg != 0 {
		b, err := vm.BlockFromValue(s.Pop())
		if err != nil {
			return err
		}
		blk = b
	} else if site.block != 0 {
		blk = BlockRef{Method: site.block, Frame: cfp}
	}

	kw := Nil
	switch {
	case site.flag&ArgFlagHashArg != 0:
		kw = s.Pop()
	case site.flag&ArgFlagHashSplat != 0:
		merged, err := vm.mergeHashes(s.Pop())
		if err != nil {
			return err
		}
		kw = merged
	}

	base := s.Len() - site.argc
	if site.flag&ArgFlagSplat != 0 {
		args := append([]Value(nil), s.Slice(base, s.Len())...)
		s.ResizeTo(base)
		for _, a := range args {
			sp, ok := asSplat(g, a)
			if !ok {
				s.Push(a)
				continue
			}
			if arr, ok := g.AsArray(sp.Val); ok {
				s.Extend(arr.Elems)
			} else if !sp.Val.IsNil() {
				s.Push(sp.Val)
			}
		}
	}
	if site.flag&ArgFlagDelegate != 0 {
		var err error
		if kw, blk, err = vm.pushDelegated(iseq, cfp, kw, blk); err != nil {
			return err
		}
	}
	argc := s.Len() - base

	recv := s.Get(base - 1)
	fid, ok := g.findMethodAt(&info.methodCaches[site.cache], g.ClassOf(recv), site.name)
	if !ok {
		return vm.noMethod(site.name, recv)
	}

	v, err := vm.callFunc(fid, recv, base, argc, kw, blk)
	if err != nil {
		var re *RubyError
		if site.block == 0 || !errors.As(err, &re) || re.Kind != ErrKindBlockReturn || !vm.sameFrame(re.target, cfp) {
			return err
		}
		v = re.Value
	}
	if !site.discard {
		s.Push(v)
	}
	return nil
}

func asSplat(g *Globals, v Value) (*RSplat, bool) {
	if !v.IsRef() {
		return nil, false
	}
	sp, ok := g.Deref(v).(*RSplat)
	return sp, ok
}

// mergeHashes folds an Array of Hashes into one new Hash.
func (vm *VM) mergeHashes(v Value) (Value, error) {
	g := vm.g
	arr, ok := g.AsArray(v)
	if !ok {
		return Nil, ErrType("no implicit conversion into Array")
	}
	out := g.NewHash()
	dst, _ := g.AsHash(out)
	for _, hv := range arr.Elems {
		h, ok := g.AsHash(hv)
		if !ok {
			return Nil, ErrType("no implicit conversion of %s into Hash", g.Inspect(hv))
		}
		for i := 0; i < h.Len(); i++ {
			k, val := h.Entry(i)
			g.HashSet(dst, k, val)
		}
	}
	return out, nil
}

// pushDelegated forwards the arguments captured by the nearest enclosing
// `...` parameter: its positional arguments are pushed, its keywords
// merged into kw, and its block used when the site passes none.
func (vm *VM) pushDelegated(iseq *ISeqInfo, cfp int, kw Value, blk Block) (Value, Block, error) {
	g := vm.g
	e := vm.frameEnv(cfp)
	for {
		cur := g.Methods.ISeq(e.ISeq())
		if slot := cur.Lvar.DelegateSlot; slot != nil {
			pair, ok := g.AsArray(e.Local(*slot))
			if !ok || len(pair.Elems) != 2 {
				internalPanic("malformed delegate slot in %s", g.Idents.Name(cur.Name))
			}
			if rest, ok := g.AsArray(pair.Elems[0]); ok {
				vm.stack.Extend(rest.Elems)
			}
			if fwd := pair.Elems[1]; !fwd.IsNil() {
				if kw.IsNil() {
					kw = fwd
				} else {
					merged, err := vm.mergeHashes(g.NewArray(fwd, kw))
					if err != nil {
						return Nil, nil, err
					}
					kw = merged
				}
			}
			if blk == nil {
				blk = decodeBlock(vm.envAt(e.MFP()).Block())
			}
			return kw, blk, nil
		}
		outer := e.Outer()
		if outer.IsNil() {
			return Nil, nil, ErrArgument("unexpected ... in %s", g.Idents.Name(iseq.Name))
		}
		e = vm.envAt(outer)
	}
}

// execYield calls the current method's block with the argc values on top
// of the stack.
func (vm *VM) execYield(cfp, argc int) error {
	e := vm.frameEnv(cfp)
	blk := decodeBlock(vm.envAt(e.MFP()).Block())
	if blk == nil {
		return ErrLocalJump("no block given (yield)")
	}
	base := vm.stack.Len() - argc
	vm.stack.Insert(base, Nil)
	v, err := vm.callBlock(blk, base+1, argc)
	if err != nil {
		return err
	}
	vm.stack.Push(v)
	return nil
}

// execDefClass opens or creates a class or module and runs its body with
// the class as self.
func (vm *VM) execDefClass(iseq *ISeqInfo, cfp int, isModule bool, name IdentID, body FnID) error {
	g := vm.g
	superVal := vm.stack.Pop()
	var super *Module
	if !superVal.IsNil() {
		m, ok := g.AsModule(superVal)
		if !ok || m.IsModule {
			return ErrType("superclass must be a Class")
		}
		super = m
	}
	m := g.DefineClassUnder(vm.lexicalClass(iseq, cfp), name, super, isModule)
	if m.IsModule != isModule {
		return ErrType("%s is not a %s", m.Name(g), map[bool]string{true: "module", false: "class"}[isModule])
	}
	g.Methods.ISeq(body).Class = m
	v, err := vm.EvalMethod(body, m.self, nil)
	if err != nil {
		return err
	}
	vm.stack.Push(v)
	return nil
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

var immOps = map[Opcode]Opcode{
	OpAddI: OpAdd, OpSubI: OpSub,
	OpEqI: OpEq, OpNeI: OpNe,
	OpGtI: OpGt, OpGeI: OpGe, OpLtI: OpLt, OpLeI: OpLe,
}

var fusedOps = map[Opcode]Opcode{
	OpJmpFEq: OpEq, OpJmpFNe: OpNe, OpJmpFGt: OpGt,
	OpJmpFGe: OpGe, OpJmpFLt: OpLt, OpJmpFLe: OpLe,
	OpJmpFEqI: OpEq, OpJmpFNeI: OpNe, OpJmpFGtI: OpGt,
	OpJmpFGeI: OpGe, OpJmpFLtI: OpLt, OpJmpFLeI: OpLe,
}

var opIdents = map[Opcode]IdentID{
	OpAdd: IdentAdd, OpSub: IdentSub, OpMul: IdentMul, OpDiv: IdentDiv,
	OpRem: IdentRem, OpPow: IdentPow, OpEq: IdentEq, OpNe: IdentNe,
	OpTeq: IdentTeq, OpGt: IdentGt, OpGe: IdentGe, OpLt: IdentLt,
	OpLe: IdentLe, OpCmp: IdentCmp, OpShr: IdentShr, OpShl: IdentShl,
	OpBOr: IdentBOr, OpBAnd: IdentBAnd, OpBXor: IdentBXor,
}

// binop applies a binary operator. Integer and Float operands are handled
// inline; anything else is sent the operator method.
func (vm *VM) binop(op Opcode, lhs, rhs Value) (Value, error) {
	if lhs.IsFixnum() && rhs.IsFixnum() {
		return fixnumOp(op, lhs.Fixnum(), rhs.Fixnum())
	}
	if isNumeric(lhs) && isNumeric(rhs) && op != OpShl && op != OpShr &&
		op != OpBOr && op != OpBAnd && op != OpBXor {
		return floatOp(op, toFloat(lhs), toFloat(rhs)), nil
	}
	if isNumeric(lhs) {
		switch op {
		case OpEq, OpTeq:
			return False, nil
		case OpNe:
			return True, nil
		case OpGt, OpGe, OpLt, OpLe:
			return Nil, ErrArgument("comparison of %s with %s failed", vm.g.ClassOf(lhs).Name(vm.g), vm.g.Inspect(rhs))
		case OpCmp:
			return Nil, nil
		}
		return Nil, ErrType("%s can't be coerced into %s", vm.g.ClassOf(rhs).Name(vm.g), vm.g.ClassOf(lhs).Name(vm.g))
	}
	switch op {
	case OpEq, OpTeq:
		if lhs == rhs {
			return True, nil
		}
	case OpNe:
		v, err := vm.sendOp(IdentEq, lhs, rhs)
		if err != nil {
			return Nil, err
		}
		return FromBool(!v.IsTruthy()), nil
	}
	return vm.sendOp(opIdents[op], lhs, rhs)
}

// sendOp sends an operator method.
func (vm *VM) sendOp(name IdentID, recv Value, args ...Value) (Value, error) {
	return vm.EvalSend(name, recv, args, nil)
}

func isNumeric(v Value) bool { return v.IsFixnum() || v.IsFloat() }

func toFloat(v Value) float64 {
	if v.IsFixnum() {
		return float64(v.Fixnum())
	}
	return v.Float()
}

func fixnum(n int64) (Value, error) {
	v, ok := TryFromFixnum(n)
	if !ok {
		return Nil, ErrRange("integer %d out of fixnum range", n)
	}
	return v, nil
}

func fixnumOp(op Opcode, a, b int64) (Value, error) {
	switch op {
	case OpAdd:
		return fixnum(a + b)
	case OpSub:
		return fixnum(a - b)
	case OpMul:
		p, ok := mulInt64(a, b)
		if !ok {
			return Nil, ErrRange("integer multiplication overflow")
		}
		return fixnum(p)
	case OpDiv:
		if b == 0 {
			return Nil, ErrZeroDivision()
		}
		return fixnum(floorDiv(a, b))
	case OpRem:
		if b == 0 {
			return Nil, ErrZeroDivision()
		}
		return fixnum(a - floorDiv(a, b)*b)
	case OpPow:
		if b < 0 {
			return FromFloat(math.Pow(float64(a), float64(b))), nil
		}
		r := int64(1)
		for i := int64(0); i < b; i++ {
			var ok bool
			if r, ok = mulInt64(r, a); !ok || r > MaxFixnum || r < MinFixnum {
				return Nil, ErrRange("integer exponentiation overflow")
			}
		}
		return fixnum(r)
	case OpShl:
		return shiftLeft(a, b)
	case OpShr:
		return shiftLeft(a, -b)
	case OpBOr:
		return fixnum(a | b)
	case OpBAnd:
		return fixnum(a & b)
	case OpBXor:
		return fixnum(a ^ b)
	case OpEq, OpTeq:
		return FromBool(a == b), nil
	case OpNe:
		return FromBool(a != b), nil
	case OpGt:
		return FromBool(a > b), nil
	case OpGe:
		return FromBool(a >= b), nil
	case OpLt:
		return FromBool(a < b), nil
	case OpLe:
		return FromBool(a <= b), nil
	case OpCmp:
		switch {
		case a < b:
			return FromFixnum(-1), nil
		case a > b:
			return FromFixnum(1), nil
		}
		return FromFixnum(0), nil
	}
	internalPanic("not a binary operator: %s", op)
	return Nil, nil
}

func floatOp(op Opcode, a, b float64) Value {
	switch op {
	case OpAdd:
		return FromFloat(a + b)
	case OpSub:
		return FromFloat(a - b)
	case OpMul:
		return FromFloat(a * b)
	case OpDiv:
		return FromFloat(a / b)
	case OpRem:
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return FromFloat(m)
	case OpPow:
		return FromFloat(math.Pow(a, b))
	case OpEq, OpTeq:
		return FromBool(a == b)
	case OpNe:
		return FromBool(a != b)
	case OpGt:
		return FromBool(a > b)
	case OpGe:
		return FromBool(a >= b)
	case OpLt:
		return FromBool(a < b)
	case OpLe:
		return FromBool(a <= b)
	case OpCmp:
		switch {
		case a < b:
			return FromFixnum(-1)
		case a > b:
			return FromFixnum(1)
		case a == b:
			return FromFixnum(0)
		}
		return Nil
	}
	internalPanic("not a float operator: %s", op)
	return Nil
}

// floorDiv rounds toward negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mulInt64(a, b int64) (int64, bool) {
	neg := (a < 0) != (b < 0)
	hi, lo := bits.Mul64(absU64(a), absU64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	if neg {
		return -int64(lo), true
	}
	return int64(lo), true
}

func absU64(n int64) uint64 {
	if n < 0 {
		return uint64(-n)
	}
	return uint64(n)
}

func shiftLeft(a, n int64) (Value, error) {
	if n < 0 {
		if n <= -63 {
			if a < 0 {
				return FromFixnum(-1), nil
			}
			return FromFixnum(0), nil
		}
		return fixnum(a >> uint(-n))
	}
	if n >= 48 && a != 0 {
		return Nil, ErrRange("shift width %d too large", n)
	}
	r := a << uint(n)
	if r>>uint(n) != a {
		return Nil, ErrRange("shift width %d too large", n)
	}
	return fixnum(r)
}
