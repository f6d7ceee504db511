// Package wire implements the on-disk form of compiled Garnet code. A
// compiler front end writes a Unit, a set of instruction sequences with
// their side tables, as CBOR; the runtime loads it into an interpreter.
//
// Identifier and function operands inside a Unit are numbered locally:
// identifiers index Unit.Idents and functions are 1-based indices into
// Unit.ISeqs, with 0 meaning "none". Loading relocates them to the
// numbering of the target interpreter.
package wire

// FormatVersion is the Unit layout this package reads and writes.
const FormatVersion = 1

// Unit is one compiled program.
type Unit struct {
	Version int      `cbor:"1,keyasint"`
	Idents  []string `cbor:"2,keyasint"`
	ISeqs   []ISeq   `cbor:"3,keyasint"`
	Entry   uint32   `cbor:"4,keyasint"`           // index into ISeqs, 1-based
	Source  string   `cbor:"5,keyasint,omitempty"` // path of the compiled file
}

// ISeq is one instruction sequence.
type ISeq struct {
	Name         uint32      `cbor:"1,keyasint"`
	Kind         uint8       `cbor:"2,keyasint"`
	Code         []byte      `cbor:"3,keyasint"`
	Params       Params      `cbor:"4,keyasint"`
	Locals       []uint32    `cbor:"5,keyasint,omitempty"`
	KwRestSlot   *uint32     `cbor:"6,keyasint,omitempty"`
	BlockSlot    *uint32     `cbor:"7,keyasint,omitempty"`
	DelegateSlot *uint32     `cbor:"8,keyasint,omitempty"`
	Consts       []Const     `cbor:"9,keyasint,omitempty"`
	MethodCaches int         `cbor:"10,keyasint,omitempty"`
	ConstCaches  int         `cbor:"11,keyasint,omitempty"`
	Exceptions   []Exception `cbor:"12,keyasint,omitempty"`
	Lines        []Line      `cbor:"13,keyasint,omitempty"`
	SourcePath   string      `cbor:"14,keyasint,omitempty"`
	Slots        int         `cbor:"15,keyasint,omitempty"` // local slot count, when above len(Locals)
}

// Params mirrors the parameter descriptor of a method or block.
type Params struct {
	Req      int       `cbor:"1,keyasint,omitempty"`
	Opt      int       `cbor:"2,keyasint,omitempty"`
	Rest     uint8     `cbor:"3,keyasint,omitempty"`
	Post     int       `cbor:"4,keyasint,omitempty"`
	Keywords []Keyword `cbor:"5,keyasint,omitempty"`
	KwRest   bool      `cbor:"6,keyasint,omitempty"`
	Block    bool      `cbor:"7,keyasint,omitempty"`
	Delegate bool      `cbor:"8,keyasint,omitempty"`
}

// Keyword binds a keyword parameter name to its local slot.
type Keyword struct {
	Name uint32 `cbor:"1,keyasint"`
	Slot uint32 `cbor:"2,keyasint"`
}

// Exception is a rescue/ensure range.
type Exception struct {
	Kind  uint8 `cbor:"1,keyasint"`
	Start int   `cbor:"2,keyasint"`
	End   int   `cbor:"3,keyasint"`
	Dest  int   `cbor:"4,keyasint"`
}

// Line maps a bytecode offset to a source line.
type Line struct {
	Offset int `cbor:"1,keyasint"`
	Line   int `cbor:"2,keyasint"`
}

// ConstKind identifies the type of a literal pool entry.
type ConstKind uint8

const (
	ConstNil ConstKind = iota
	ConstTrue
	ConstFalse
	ConstInt
	ConstFloat
	ConstSymbol
	ConstString
	ConstArray
)

// Const is a literal pool entry. Only the field matching Kind is set.
type Const struct {
	Kind  ConstKind `cbor:"1,keyasint"`
	Int   int64     `cbor:"2,keyasint,omitempty"`
	Float float64   `cbor:"3,keyasint,omitempty"`
	Str   string    `cbor:"4,keyasint,omitempty"`
	Ident uint32    `cbor:"5,keyasint,omitempty"`
	Elems []Const   `cbor:"6,keyasint,omitempty"`
}
