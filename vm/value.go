package vm

import (
	"fmt"
	"math"
)

// Value is the uniform slot type of the VM, using NaN-boxing.
//
// Every value is a 64-bit word. Non-float values live in the quiet NaN
// space and are told apart by three tag bits:
//   - Float: any IEEE 754 double that is not one of the tagged NaNs
//   - Fixnum: quiet NaN + tagInt + 48-bit signed payload
//   - Ref: quiet NaN + tagRef + arena handle (page, cell, generation)
//   - Special: quiet NaN + tagSpecial + nil/true/false/uninitialized
//   - Symbol: quiet NaN + tagSymbol + IdentID
//   - Frame: quiet NaN + tagFrame + execution stack slot offset
//   - Block: quiet NaN + tagBlock + (FnID, frame offset) pair
type Value uint64

// NaN-boxing constants
const (
	// 0x7FF8_0000_0000_0000
	nanBits uint64 = 0x7FF8000000000000

	// 0x0007_0000_0000_0000
	tagMask uint64 = 0x0007000000000000

	// 0x0000_FFFF_FFFF_FFFF
	payloadMask uint64 = 0x0000FFFFFFFFFFFF

	tagRef     uint64 = 0x0001000000000000 // Arena handle
	tagInt     uint64 = 0x0002000000000000 // 48-bit signed integer
	tagSpecial uint64 = 0x0003000000000000 // nil, true, false, uninitialized
	tagSymbol  uint64 = 0x0004000000000000 // Interned identifier
	tagFrame   uint64 = 0x0005000000000000 // Stack-resident environment frame
	tagBlock   uint64 = 0x0006000000000000 // Live-frame block reference

	intSignBit    uint64 = 0x0000800000000000
	intSignExtend uint64 = 0xFFFF000000000000
)

const (
	specialNil    uint64 = 0
	specialTrue   uint64 = 1
	specialFalse  uint64 = 2
	specialUninit uint64 = 3
)

// Pre-defined special values
const (
	Nil   Value = Value(nanBits | tagSpecial | specialNil)
	True  Value = Value(nanBits | tagSpecial | specialTrue)
	False Value = Value(nanBits | tagSpecial | specialFalse)

	// Uninit marks an optional or keyword parameter slot that the caller
	// did not supply. It is never visible to user code.
	Uninit Value = Value(nanBits | tagSpecial | specialUninit)
)

// Fixnum range (48-bit signed)
const (
	MaxFixnum int64 = (1 << 47) - 1
	MinFixnum int64 = -(1 << 47)
)

func (v Value) tag() uint64 {
	return uint64(v) & (nanBits | tagMask)
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// IsFloat reports whether v is a float. Infinities, untagged NaNs and
// signaling NaNs all count as floats.
func (v Value) IsFloat() bool {
	bits := uint64(v)
	if (bits & 0x7FF0000000000000) != 0x7FF0000000000000 {
		return true
	}
	if bits&0x000FFFFFFFFFFFFF == 0 {
		return true
	}
	if (bits & nanBits) != nanBits {
		return true
	}
	return bits&tagMask == 0 || bits&tagMask == 0x0007000000000000
}

// IsFixnum reports whether v is a small integer.
func (v Value) IsFixnum() bool { return v.tag() == nanBits|tagInt }

// IsRef reports whether v refers to a heap cell.
func (v Value) IsRef() bool { return v.tag() == nanBits|tagRef }

// IsSymbol reports whether v is an interned symbol.
func (v Value) IsSymbol() bool { return v.tag() == nanBits|tagSymbol }

// IsFrame reports whether v encodes a stack-resident environment frame.
func (v Value) IsFrame() bool { return v.tag() == nanBits|tagFrame }

// IsBlockRef reports whether v encodes a live-frame block reference.
func (v Value) IsBlockRef() bool { return v.tag() == nanBits|tagBlock }

// IsNil returns true if v is the nil value.
func (v Value) IsNil() bool { return v == Nil }

// IsUninit returns true if v is the uninitialized parameter sentinel.
func (v Value) IsUninit() bool { return v == Uninit }

// IsBool returns true if v is true or false.
func (v Value) IsBool() bool { return v == True || v == False }

// IsTruthy follows Ruby truthiness: only nil and false are falsy.
func (v Value) IsTruthy() bool { return v != False && v != Nil }

// FromBool creates a Value from a bool.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// ---------------------------------------------------------------------------
// Floats
// ---------------------------------------------------------------------------

// Float returns v as a float64. Panics if v is not a float.
func (v Value) Float() float64 {
	if !v.IsFloat() {
		panic("Value.Float: not a float")
	}
	return math.Float64frombits(uint64(v))
}

// FromFloat creates a Value from a float64. NaNs are canonicalized so they
// never collide with a tagged payload.
func FromFloat(f float64) Value {
	if f != f {
		return Value(0x7FF8000000000000)
	}
	return Value(math.Float64bits(f))
}

// ---------------------------------------------------------------------------
// Fixnums
// ---------------------------------------------------------------------------

// Fixnum returns v as an int64. Panics if v is not a fixnum.
func (v Value) Fixnum() int64 {
	if !v.IsFixnum() {
		panic("Value.Fixnum: not a fixnum")
	}
	payload := uint64(v) & payloadMask
	if payload&intSignBit != 0 {
		payload |= intSignExtend
	}
	return int64(payload)
}

// FromFixnum creates a Value from an int64.
// Panics if n is outside the fixnum range.
func FromFixnum(n int64) Value {
	if n > MaxFixnum || n < MinFixnum {
		panic("FromFixnum: value out of range")
	}
	return Value(nanBits | tagInt | (uint64(n) & payloadMask))
}

// TryFromFixnum creates a Value from an int64, returning false if out of range.
func TryFromFixnum(n int64) (Value, bool) {
	if n > MaxFixnum || n < MinFixnum {
		return Nil, false
	}
	return Value(nanBits | tagInt | (uint64(n) & payloadMask)), true
}

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// Symbol returns the identifier encoded in v.
func (v Value) Symbol() IdentID {
	if !v.IsSymbol() {
		panic("Value.Symbol: not a symbol")
	}
	return IdentID(uint32(uint64(v) & payloadMask))
}

// FromSymbol creates a symbol Value.
func FromSymbol(id IdentID) Value {
	return Value(nanBits | tagSymbol | uint64(uint32(id)))
}

// ---------------------------------------------------------------------------
// Heap references
// ---------------------------------------------------------------------------

// Ref is an arena handle: page index, cell index within the page, and the
// generation the cell had when it was handed out.
type Ref uint64

const (
	refGenBits  = 16
	refCellBits = 12
	refPageBits = 20

	refGenMask  = 1<<refGenBits - 1
	refCellMask = 1<<refCellBits - 1
	refPageMask = 1<<refPageBits - 1
)

func makeRef(page, cell int, gen uint16) Ref {
	return Ref(uint64(page)<<(refCellBits+refGenBits) | uint64(cell)<<refGenBits | uint64(gen))
}

// Page returns the page index of the handle.
func (r Ref) Page() int { return int(uint64(r) >> (refCellBits + refGenBits) & refPageMask) }

// Cell returns the cell index of the handle within its page.
func (r Ref) Cell() int { return int(uint64(r) >> refGenBits & refCellMask) }

// Gen returns the generation stamp of the handle.
func (r Ref) Gen() uint16 { return uint16(uint64(r) & refGenMask) }

func (r Ref) String() string {
	return fmt.Sprintf("ref(%d:%d@%d)", r.Page(), r.Cell(), r.Gen())
}

// Ref returns the arena handle held by v. Panics if v is not a reference.
func (v Value) Ref() Ref {
	if !v.IsRef() {
		panic("Value.Ref: not a heap reference")
	}
	return Ref(uint64(v) & payloadMask)
}

// FromRef creates a Value from an arena handle.
func FromRef(r Ref) Value {
	return Value(nanBits | tagRef | (uint64(r) & payloadMask))
}

// ---------------------------------------------------------------------------
// Frames and block references
// ---------------------------------------------------------------------------

// EncodeFrame turns a stack slot offset into a Value.
func EncodeFrame(offset int) Value {
	return Value(nanBits | tagFrame | (uint64(offset) & payloadMask))
}

// FrameOffset decodes a frame Value back into its stack slot offset.
func (v Value) FrameOffset() int {
	if !v.IsFrame() {
		panic("Value.FrameOffset: not a frame")
	}
	return int(uint64(v) & payloadMask)
}

// encodeBlockRef packs a live-frame block (method id + outer frame
// offset) into one slot. Both halves are limited to 24 bits.
func encodeBlockRef(fid FnID, frame int) Value {
	return Value(nanBits | tagBlock | uint64(fid)&0xFFFFFF<<24 | uint64(frame)&0xFFFFFF)
}

func (v Value) blockRef() (FnID, int) {
	p := uint64(v) & payloadMask
	return FnID(p >> 24), int(p & 0xFFFFFF)
}

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

// ID returns a stable integer identity for v (Object#object_id).
func (v Value) ID() uint64 {
	return uint64(v) & payloadMask
}

func (v Value) String() string {
	switch {
	case v == Nil:
		return "nil"
	case v == True:
		return "true"
	case v == False:
		return "false"
	case v == Uninit:
		return "<uninit>"
	case v.IsFixnum():
		return fmt.Sprintf("%d", v.Fixnum())
	case v.IsFloat():
		return fmt.Sprintf("%g", v.Float())
	case v.IsSymbol():
		return fmt.Sprintf(":%d", v.Symbol())
	case v.IsRef():
		return v.Ref().String()
	case v.IsFrame():
		return fmt.Sprintf("frame(%d)", v.FrameOffset())
	case v.IsBlockRef():
		fid, f := v.blockRef()
		return fmt.Sprintf("block(%d,%d)", fid, f)
	}
	return fmt.Sprintf("Value(%#x)", uint64(v))
}
