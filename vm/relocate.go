package vm

import (
	"encoding/binary"
	"fmt"
)

// ---------------------------------------------------------------------------
// Operand relocation
// ---------------------------------------------------------------------------

// Relocator maps the identifier and function operands of bytecode from
// one numbering to another, for moving code between interpreters.
// A nil mapping leaves that operand kind alone.
type Relocator struct {
	Ident func(IdentID) IdentID
	Func  func(FnID) FnID
}

// operand offsets, opcode byte excluded
type operandLayout struct {
	idents []int
	funcs  []int
}

var relocLayouts = map[Opcode]operandLayout{
	OpCreateProc: {funcs: []int{1}},
	OpGetConst:   {idents: []int{1}},
	OpSetConst:   {idents: []int{1}},

	OpGetConstTop: {idents: []int{1}},
	OpGetScope:    {idents: []int{1}},
	OpGetIvar:     {idents: []int{1}},
	OpSetIvar:     {idents: []int{1}},
	OpGetGvar:     {idents: []int{1}},
	OpSetGvar:     {idents: []int{1}},
	OpGetCvar:     {idents: []int{1}},
	OpSetCvar:     {idents: []int{1}},

	OpCheckConst:  {idents: []int{1}},
	OpCheckScope:  {idents: []int{1}},
	OpCheckIvar:   {idents: []int{1}},
	OpCheckGvar:   {idents: []int{1}},
	OpCheckMethod: {idents: []int{1}},

	OpSend:     {idents: []int{1}, funcs: []int{8}},
	OpOptSend:  {idents: []int{1}, funcs: []int{7}},
	OpOptSendN: {idents: []int{1}, funcs: []int{7}},
	OpSuper:    {funcs: []int{3}},

	OpDefClass:   {idents: []int{2}, funcs: []int{6}},
	OpDefSClass:  {funcs: []int{1}},
	OpDefMethod:  {idents: []int{1}, funcs: []int{5}},
	OpDefSMethod: {idents: []int{1}, funcs: []int{5}},
}

// Relocate rewrites the operands of code in place. Symbols pushed by
// PUSH_VAL are identifiers too. A zero function operand means "no block"
// and is never mapped.
func Relocate(code []byte, r Relocator) error {
	for pc := 0; pc < len(code); {
		op := Opcode(code[pc])
		size := op.Size()
		if size == 0 {
			return fmt.Errorf("offset %d: unknown opcode %d", pc, op)
		}
		if pc+size > len(code) {
			return fmt.Errorf("offset %d: %s truncated", pc, op)
		}

		if op == OpPushVal && r.Ident != nil {
			v := Value(readU64(code, pc+1))
			if v.IsSymbol() {
				v = FromSymbol(r.Ident(v.Symbol()))
				binary.LittleEndian.PutUint64(code[pc+1:], uint64(v))
			}
		}

		layout := relocLayouts[op]
		if r.Ident != nil {
			for _, at := range layout.idents {
				id := IdentID(readU32(code, pc+at))
				binary.LittleEndian.PutUint32(code[pc+at:], uint32(r.Ident(id)))
			}
		}
		if r.Func != nil {
			for _, at := range layout.funcs {
				if fid := FnID(readU32(code, pc+at)); fid != 0 {
					binary.LittleEndian.PutUint32(code[pc+at:], uint32(r.Func(fid)))
				}
			}
		}
		pc += size
	}
	return nil
}

// FuncOperands returns the function ids code refers to, in order of
// appearance.
func FuncOperands(code []byte) ([]FnID, error) {
	var out []FnID
	scan := append([]byte(nil), code...)
	err := Relocate(scan, Relocator{Func: func(fid FnID) FnID {
		out = append(out, fid)
		return fid
	}})
	return out, err
}
