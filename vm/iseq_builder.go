package vm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// ISeqBuilder: Helper for constructing instruction sequences
// ---------------------------------------------------------------------------

// ISeqBuilder assembles bytecode and side tables for one compiled unit. It
// is what an external compiler (or a test) uses to hand code to the VM.
type ISeqBuilder struct {
	bytes  []byte
	info   *ISeqInfo
	labels []*Label
}

// NewISeqBuilder starts a new unit of the given kind.
func NewISeqBuilder(name IdentID, kind ISeqKind) *ISeqBuilder {
	return &ISeqBuilder{
		bytes: make([]byte, 0, 64),
		info:  &ISeqInfo{Name: name, Kind: kind},
	}
}

// Bytes returns the bytecode emitted so far.
func (b *ISeqBuilder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length.
func (b *ISeqBuilder) Len() int {
	return len(b.bytes)
}

// ---------------------------------------------------------------------------
// Side tables
// ---------------------------------------------------------------------------

// SetParams installs the parameter descriptor.
func (b *ISeqBuilder) SetParams(p ISeqParams) {
	b.info.Params = p
}

// AddLocal declares a local variable and returns its slot. Declaring the
// same name twice returns the existing slot.
func (b *ISeqBuilder) AddLocal(name IdentID) LvarID {
	if slot, ok := b.info.Lvar.SlotOf(name); ok && name != IdentNone {
		return slot
	}
	b.info.Lvar.Names = append(b.info.Lvar.Names, name)
	return LvarID(len(b.info.Lvar.Names) - 1)
}

// AddLocals declares several locals in order.
func (b *ISeqBuilder) AddLocals(names ...IdentID) {
	for _, n := range names {
		b.AddLocal(n)
	}
}

// MarkKwRest records the keyword-rest slot.
func (b *ISeqBuilder) MarkKwRest(slot LvarID) {
	b.info.Lvar.KwRestSlot = &slot
	b.info.Params.KwRest = true
}

// MarkBlockParam records the &block slot.
func (b *ISeqBuilder) MarkBlockParam(slot LvarID) {
	b.info.Lvar.BlockSlot = &slot
	b.info.Params.Block = true
}

// MarkDelegate records the forward-all (...) slot.
func (b *ISeqBuilder) MarkDelegate(slot LvarID) {
	b.info.Lvar.DelegateSlot = &slot
	b.info.Params.Delegate = true
}

// AddConst appends a literal to the constant pool and returns its index.
func (b *ISeqBuilder) AddConst(v Value) uint32 {
	b.info.Consts = append(b.info.Consts, v)
	return uint32(len(b.info.Consts) - 1)
}

// AddLine records that code from the current offset comes from line.
func (b *ISeqBuilder) AddLine(line int) {
	b.info.SourceMap = append(b.info.SourceMap, SourceLoc{Offset: len(b.bytes), Line: line})
}

// AddException appends an exception table entry.
func (b *ISeqBuilder) AddException(e ExceptionEntry) {
	b.info.ExceptionTable = append(b.info.ExceptionTable, e)
}

// SetSourcePath records where the unit came from.
func (b *ISeqBuilder) SetSourcePath(path string) {
	b.info.SourcePath = path
}

// Build finishes the unit. Unresolved labels are an error.
func (b *ISeqBuilder) Build() (*ISeqInfo, error) {
	for _, l := range b.labels {
		if !l.resolved {
			return nil, fmt.Errorf("iseq %d: unresolved label", b.info.Name)
		}
	}
	b.info.Code = b.bytes
	b.info.finalize()
	return b.info, nil
}

// MustBuild is like Build but panics on error.
func (b *ISeqBuilder) MustBuild() *ISeqInfo {
	info, err := b.Build()
	if err != nil {
		panic(err)
	}
	return info
}

// ---------------------------------------------------------------------------
// Emitters
// ---------------------------------------------------------------------------

func (b *ISeqBuilder) put8(v uint8) {
	b.bytes = append(b.bytes, v)
}

func (b *ISeqBuilder) put16(v uint16) {
	b.bytes = binary.LittleEndian.AppendUint16(b.bytes, v)
}

func (b *ISeqBuilder) put32(v uint32) {
	b.bytes = binary.LittleEndian.AppendUint32(b.bytes, v)
}

func (b *ISeqBuilder) put64(v uint64) {
	b.bytes = binary.LittleEndian.AppendUint64(b.bytes, v)
}

// Emit appends an opcode with no operands.
func (b *ISeqBuilder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitU32 appends an opcode with one unsigned 32-bit operand.
func (b *ISeqBuilder) EmitU32(op Opcode, operand uint32) {
	b.Emit(op)
	b.put32(operand)
}

// EmitI32 appends an opcode with one signed 32-bit operand.
func (b *ISeqBuilder) EmitI32(op Opcode, operand int32) {
	b.EmitU32(op, uint32(operand))
}

// EmitPushVal pushes an immediate value. Heap references are not
// immediates; put them in the constant pool and use EmitConstVal.
func (b *ISeqBuilder) EmitPushVal(v Value) {
	if v.IsRef() || v.IsFrame() || v.IsBlockRef() {
		panic("EmitPushVal: not an immediate")
	}
	b.Emit(OpPushVal)
	b.put64(uint64(v))
}

// EmitPushInt pushes a fixnum.
func (b *ISeqBuilder) EmitPushInt(n int64) {
	b.EmitPushVal(FromFixnum(n))
}

// EmitPushFloat pushes a float.
func (b *ISeqBuilder) EmitPushFloat(f float64) {
	b.Emit(OpPushFlonum)
	b.put64(math.Float64bits(f))
}

// EmitConstVal pushes a literal from the constant pool.
func (b *ISeqBuilder) EmitConstVal(v Value) {
	b.EmitU32(OpConstVal, b.AddConst(v))
}

// EmitLocal emits GET_LOCAL/SET_LOCAL.
func (b *ISeqBuilder) EmitLocal(op Opcode, slot LvarID) {
	b.EmitU32(op, uint32(slot))
}

// EmitDynLocal emits GET_DYNLOCAL/SET_DYNLOCAL/CHECK_LOCAL for a slot in
// the outer-th enclosing scope.
func (b *ISeqBuilder) EmitDynLocal(op Opcode, slot LvarID, outer uint32) {
	b.Emit(op)
	b.put32(uint32(slot))
	b.put32(outer)
}

// EmitGetConst emits GET_CONST with a fresh constant cache slot.
func (b *ISeqBuilder) EmitGetConst(id IdentID) {
	b.Emit(OpGetConst)
	b.put32(uint32(id))
	b.put32(uint32(b.info.ConstCacheSlots))
	b.info.ConstCacheSlots++
}

// EmitSend emits the general SEND with a fresh method cache slot.
func (b *ISeqBuilder) EmitSend(id IdentID, argc uint16, flag uint8, block FnID) {
	b.Emit(OpSend)
	b.put32(uint32(id))
	b.put16(argc)
	b.put8(flag)
	b.put32(uint32(block))
	b.put32(uint32(b.info.MethodCacheSlots))
	b.info.MethodCacheSlots++
}

// EmitOptSend emits O_SEND (or O_SEND_N when the result is discarded).
func (b *ISeqBuilder) EmitOptSend(id IdentID, argc uint16, block FnID, discard bool) {
	op := OpOptSend
	if discard {
		op = OpOptSendN
	}
	b.Emit(op)
	b.put32(uint32(id))
	b.put16(argc)
	b.put32(uint32(block))
	b.put32(uint32(b.info.MethodCacheSlots))
	b.info.MethodCacheSlots++
}

// EmitSuper emits SUPER.
func (b *ISeqBuilder) EmitSuper(argc uint16, block FnID, flag uint8) {
	b.Emit(OpSuper)
	b.put16(argc)
	b.put32(uint32(block))
	b.put8(flag)
}

// EmitDefMethod emits DEF_METHOD (or DEF_CMETHOD when singleton is set).
func (b *ISeqBuilder) EmitDefMethod(id IdentID, method FnID, singleton bool) {
	op := OpDefMethod
	if singleton {
		op = OpDefSMethod
	}
	b.Emit(op)
	b.put32(uint32(id))
	b.put32(uint32(method))
}

// EmitDefClass emits DEF_CLASS.
func (b *ISeqBuilder) EmitDefClass(isModule bool, id IdentID, body FnID) {
	b.Emit(OpDefClass)
	if isModule {
		b.put8(1)
	} else {
		b.put8(0)
	}
	b.put32(uint32(id))
	b.put32(uint32(body))
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label is a jump target, possibly not yet placed.
type Label struct {
	resolved bool
	position int
	refs     []int // offsets of displacement operands to patch
}

// NewLabel creates an unresolved label.
func (b *ISeqBuilder) NewLabel() *Label {
	l := &Label{refs: make([]int, 0, 2)}
	b.labels = append(b.labels, l)
	return l
}

// Mark resolves a label to the current position.
func (b *ISeqBuilder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)

	for _, ref := range label.refs {
		disp := label.position - (ref + 4)
		binary.LittleEndian.PutUint32(b.bytes[ref:], uint32(int32(disp)))
	}
	label.refs = nil
}

func (b *ISeqBuilder) emitDisp(label *Label) {
	if label.resolved {
		disp := label.position - (len(b.bytes) + 4)
		b.put32(uint32(int32(disp)))
		return
	}
	label.refs = append(label.refs, len(b.bytes))
	b.put32(0)
}

// EmitJump emits a jump family instruction targeting label. The
// displacement is relative to the next instruction.
func (b *ISeqBuilder) EmitJump(op Opcode, label *Label) {
	if op.Size() != 5 || !op.IsJump() {
		panic(fmt.Sprintf("EmitJump: %s is not a plain jump", op))
	}
	b.Emit(op)
	b.emitDisp(label)
}

// EmitJumpI emits a fused compare-with-immediate branch.
func (b *ISeqBuilder) EmitJumpI(op Opcode, imm int32, label *Label) {
	if op.Size() != 9 || !op.IsJump() {
		panic(fmt.Sprintf("EmitJumpI: %s is not an immediate branch", op))
	}
	b.Emit(op)
	b.put32(uint32(imm))
	b.emitDisp(label)
}

// ---------------------------------------------------------------------------
// ISeqReader: operand decoding
// ---------------------------------------------------------------------------

// ISeqReader reads bytecode for disassembly and inspection.
type ISeqReader struct {
	bytes []byte
	pos   int
}

// NewISeqReader creates a reader over code.
func NewISeqReader(code []byte) *ISeqReader {
	return &ISeqReader{bytes: code}
}

// Position returns the current read position.
func (r *ISeqReader) Position() int {
	return r.pos
}

// HasMore returns true if there are more bytes to read.
func (r *ISeqReader) HasMore() bool {
	return r.pos < len(r.bytes)
}

func (r *ISeqReader) need(n int) {
	if r.pos+n > len(r.bytes) {
		panic("bytecode underflow")
	}
}

// ReadOpcode reads and returns the next opcode.
func (r *ISeqReader) ReadOpcode() Opcode {
	return Opcode(r.ReadU8())
}

// ReadU8 reads a single byte operand.
func (r *ISeqReader) ReadU8() uint8 {
	r.need(1)
	b := r.bytes[r.pos]
	r.pos++
	return b
}

// ReadU16 reads a 16-bit operand.
func (r *ISeqReader) ReadU16() uint16 {
	r.need(2)
	v := binary.LittleEndian.Uint16(r.bytes[r.pos:])
	r.pos += 2
	return v
}

// ReadU32 reads a 32-bit operand.
func (r *ISeqReader) ReadU32() uint32 {
	r.need(4)
	v := binary.LittleEndian.Uint32(r.bytes[r.pos:])
	r.pos += 4
	return v
}

// ReadI32 reads a signed 32-bit operand.
func (r *ISeqReader) ReadI32() int32 {
	return int32(r.ReadU32())
}

// ReadU64 reads a 64-bit operand.
func (r *ISeqReader) ReadU64() uint64 {
	r.need(8)
	v := binary.LittleEndian.Uint64(r.bytes[r.pos:])
	r.pos += 8
	return v
}

// Skip advances the position by n bytes.
func (r *ISeqReader) Skip(n int) {
	r.pos += n
}

// Seek sets the read position.
func (r *ISeqReader) Seek(pos int) {
	r.pos = pos
}

// Fixed-offset operand access used by the dispatch loop.

func readU16(code []byte, at int) uint16 { return binary.LittleEndian.Uint16(code[at:]) }
func readU32(code []byte, at int) uint32 { return binary.LittleEndian.Uint32(code[at:]) }
func readI32(code []byte, at int) int32  { return int32(binary.LittleEndian.Uint32(code[at:])) }
func readU64(code []byte, at int) uint64 { return binary.LittleEndian.Uint64(code[at:]) }

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction renders the instruction at the reader's position
// and advances past it. idents may be nil.
func DisassembleInstruction(r *ISeqReader, idents *IdentTable) string {
	pos := r.Position()
	op := r.ReadOpcode()
	info := op.Info()
	name := func(id uint32) string {
		if idents == nil {
			return fmt.Sprintf("#%d", id)
		}
		return idents.Name(IdentID(id))
	}

	switch op {
	case OpPushVal:
		return fmt.Sprintf("%04d  %s %v", pos, info.Name, Value(r.ReadU64()))

	case OpPushFlonum:
		return fmt.Sprintf("%04d  %s %g", pos, info.Name, math.Float64frombits(r.ReadU64()))

	case OpSetLocal, OpGetLocal:
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, r.ReadU32())

	case OpSetDynLocal, OpGetDynLocal, OpCheckLocal:
		slot := r.ReadU32()
		outer := r.ReadU32()
		return fmt.Sprintf("%04d  %s %d outer:%d", pos, info.Name, slot, outer)

	case OpSetConst, OpGetConstTop, OpGetScope, OpGetIvar, OpSetIvar, OpGetGvar, OpSetGvar,
		OpGetCvar, OpSetCvar, OpCheckConst, OpCheckScope, OpCheckIvar, OpCheckGvar, OpCheckMethod:
		return fmt.Sprintf("%04d  %s '%s'", pos, info.Name, name(r.ReadU32()))

	case OpGetConst:
		id := r.ReadU32()
		cache := r.ReadU32()
		return fmt.Sprintf("%04d  %s '%s' cache:%d", pos, info.Name, name(id), cache)

	case OpSend:
		id := r.ReadU32()
		argc := r.ReadU16()
		flag := r.ReadU8()
		block := r.ReadU32()
		cache := r.ReadU32()
		return fmt.Sprintf("%04d  %s '%s' args:%d flag:%#x block:%d cache:%d",
			pos, info.Name, name(id), argc, flag, block, cache)

	case OpOptSend, OpOptSendN:
		id := r.ReadU32()
		argc := r.ReadU16()
		block := r.ReadU32()
		cache := r.ReadU32()
		return fmt.Sprintf("%04d  %s '%s' args:%d block:%d cache:%d",
			pos, info.Name, name(id), argc, block, cache)

	case OpSuper:
		argc := r.ReadU16()
		block := r.ReadU32()
		flag := r.ReadU8()
		return fmt.Sprintf("%04d  %s args:%d block:%d flag:%#x", pos, info.Name, argc, block, flag)

	case OpDefMethod, OpDefSMethod:
		id := r.ReadU32()
		method := r.ReadU32()
		return fmt.Sprintf("%04d  %s '%s' method:%d", pos, info.Name, name(id), method)

	case OpDefClass:
		isModule := r.ReadU8()
		id := r.ReadU32()
		body := r.ReadU32()
		return fmt.Sprintf("%04d  %s module:%d '%s' body:%d", pos, info.Name, isModule, name(id), body)

	case OpJmp, OpJmpBack, OpJmpF, OpJmpT,
		OpJmpFEq, OpJmpFNe, OpJmpFGt, OpJmpFGe, OpJmpFLt, OpJmpFLe:
		disp := r.ReadI32()
		return fmt.Sprintf("%04d  %s %d (-> %04d)", pos, info.Name, disp, r.Position()+int(disp))

	case OpJmpFEqI, OpJmpFNeI, OpJmpFGtI, OpJmpFGeI, OpJmpFLtI, OpJmpFLeI:
		imm := r.ReadI32()
		disp := r.ReadI32()
		return fmt.Sprintf("%04d  %s %d %d (-> %04d)", pos, info.Name, imm, disp, r.Position()+int(disp))

	case OpAddI, OpSubI, OpEqI, OpNeI, OpGtI, OpGeI, OpLtI, OpLeI:
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, r.ReadI32())

	case OpOptCase, OpOptCase2:
		table := r.ReadU32()
		disp := r.ReadI32()
		return fmt.Sprintf("%04d  %s table:%d else:%d", pos, info.Name, table, disp)
	}

	if info.Size == 0 {
		return fmt.Sprintf("%04d  %s", pos, info.Name)
	}
	if info.Size == 5 {
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, r.ReadU32())
	}
	r.Skip(info.Size - 1)
	return fmt.Sprintf("%04d  %s", pos, info.Name)
}

// Disassemble returns a full listing of code.
func Disassemble(code []byte, idents *IdentTable) string {
	r := NewISeqReader(code)
	var sb strings.Builder
	for r.HasMore() {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		before := r.Position()
		sb.WriteString(DisassembleInstruction(r, idents))
		if r.Position() == before {
			break
		}
	}
	return sb.String()
}
