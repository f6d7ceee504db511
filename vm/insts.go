package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode is the first byte of every instruction.
type Opcode byte

// Push Values
const (
	OpPushVal    Opcode = 1 // push immediate Value (u64)
	OpPushFlonum Opcode = 2 // push float (u64 bits)
	OpPushNil    Opcode = 5 // push nil
	OpPushSelf   Opcode = 8 // push self
)

// Object Creation
const (
	OpCreateRange  Opcode = 10 // pop start, end, exclude flag
	OpCreateArray  Opcode = 11 // pop N items (u32)
	OpCreateProc   Opcode = 12 // block method (u32)
	OpCreateHash   Opcode = 13 // pop N key/value pairs (u32)
	OpCreateRegexp Opcode = 14
	OpConstVal     Opcode = 15 // push constant pool entry (u32)
)

// Variables
const (
	OpSetLocal    Opcode = 20 // local slot (u32)
	OpGetLocal    Opcode = 21 // local slot (u32)
	OpSetDynLocal Opcode = 22 // local slot (u32), outer depth (u32)
	OpGetDynLocal Opcode = 23 // local slot (u32), outer depth (u32)
	OpGetConst    Opcode = 24 // ident (u32), const cache slot (u32)
	OpSetConst    Opcode = 25 // ident (u32)
	OpGetConstTop Opcode = 26 // ident (u32)
	OpGetScope    Opcode = 27 // ident (u32)
	OpGetIvar     Opcode = 28 // ident (u32)
	OpSetIvar     Opcode = 29 // ident (u32)
	OpGetGvar     Opcode = 30 // ident (u32)
	OpSetGvar     Opcode = 31 // ident (u32)
	OpGetCvar     Opcode = 32 // ident (u32)
	OpSetCvar     Opcode = 33 // ident (u32)
	OpGetSvar     Opcode = 34 // special var id (u32)
	OpSetSvar     Opcode = 35 // special var id (u32)
)

// Indexing
const (
	OpGetIndex Opcode = 40
	OpSetIndex Opcode = 41
	OpGetIdxI  Opcode = 42 // immediate index (u32)
	OpSetIdxI  Opcode = 43 // immediate index (u32)
)

// Definedness checks
const (
	OpCheckLocal  Opcode = 50 // local slot (u32), outer depth (u32)
	OpCheckConst  Opcode = 51 // ident (u32)
	OpCheckScope  Opcode = 52 // ident (u32)
	OpCheckIvar   Opcode = 53 // ident (u32)
	OpCheckGvar   Opcode = 54 // ident (u32)
	OpCheckMethod Opcode = 55 // ident (u32)
)

// Message sends
const (
	OpSend     Opcode = 60 // ident (u32), argc (u16), flag (u8), block (u32), cache (u32)
	OpOptSend  Opcode = 66 // ident (u32), argc (u16), block (u32), cache (u32)
	OpOptSendN Opcode = 68 // same as OpOptSend, result discarded
)

// Stack manipulation
const (
	OpPop          Opcode = 80
	OpDup          Opcode = 81 // count (u32)
	OpTake         Opcode = 82 // count (u32)
	OpSplat        Opcode = 83
	OpConcatString Opcode = 84 // count (u32)
	OpToS          Opcode = 85
	OpSinkN        Opcode = 86 // depth (u32)
	OpTopN         Opcode = 87 // depth (u32)
)

// Definitions
const (
	OpDefClass   Opcode = 90 // is_module (u8), ident (u32), body (u32)
	OpDefSClass  Opcode = 91 // body (u32)
	OpDefMethod  Opcode = 92 // ident (u32), method (u32)
	OpDefSMethod Opcode = 93 // ident (u32), method (u32)
)

// Control flow
const (
	OpJmp      Opcode = 100 // disp (i32)
	OpJmpBack  Opcode = 101 // disp (i32)
	OpJmpF     Opcode = 102 // disp (i32)
	OpJmpT     Opcode = 103 // disp (i32)
	OpReturn   Opcode = 104
	OpBreak    Opcode = 105
	OpOptCase  Opcode = 106 // case table (u32), else disp (i32)
	OpMReturn  Opcode = 107
	OpYield    Opcode = 108 // argc (u32)
	OpRescue   Opcode = 109 // count (u32)
	OpThrow    Opcode = 110
	OpOptCase2 Opcode = 111 // case table (u32), else disp (i32)
	OpSuper    Opcode = 112 // argc (u16), block (u32), flag (u8)
)

// Binary/unary operators
const (
	OpAdd  Opcode = 120
	OpSub  Opcode = 121
	OpMul  Opcode = 122
	OpDiv  Opcode = 123
	OpRem  Opcode = 124
	OpEq   Opcode = 125
	OpNe   Opcode = 126
	OpTeq  Opcode = 127
	OpGt   Opcode = 128
	OpGe   Opcode = 129
	OpLt   Opcode = 130
	OpLe   Opcode = 131
	OpNot  Opcode = 132
	OpShr  Opcode = 133
	OpShl  Opcode = 134
	OpBOr  Opcode = 135
	OpBAnd Opcode = 136
	OpBXor Opcode = 137
	OpBNot Opcode = 138
	OpPow  Opcode = 139
	OpCmp  Opcode = 140
	OpNeg  Opcode = 141
)

// Operators with an immediate i32 right-hand side
const (
	OpAddI Opcode = 150
	OpSubI Opcode = 151
	OpEqI  Opcode = 152
	OpNeI  Opcode = 153
	OpGtI  Opcode = 154
	OpGeI  Opcode = 155
	OpLtI  Opcode = 156
	OpLeI  Opcode = 157
)

// Fused compare-and-branch
const (
	OpJmpFEq Opcode = 170 // disp (i32)
	OpJmpFNe Opcode = 171
	OpJmpFGt Opcode = 172
	OpJmpFGe Opcode = 173
	OpJmpFLt Opcode = 174
	OpJmpFLe Opcode = 175

	OpJmpFEqI Opcode = 180 // immediate (i32), disp (i32)
	OpJmpFNeI Opcode = 181
	OpJmpFGtI Opcode = 182
	OpJmpFGeI Opcode = 183
	OpJmpFLtI Opcode = 184
	OpJmpFLeI Opcode = 185
)

// Argument flags carried by OpSend.
const (
	ArgFlagHashArg   uint8 = 1 << 0 // a keyword Hash is on the stack
	ArgFlagHashSplat uint8 = 1 << 1 // an Array of Hashes to merge is on the stack
	ArgFlagSplat     uint8 = 1 << 2 // some positional args are Splat-wrapped arrays
	ArgFlagBlockArg  uint8 = 1 << 3 // an explicit &block value is on the stack
	ArgFlagDelegate  uint8 = 1 << 4 // forward the caller's delegate parameter
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name string // human-readable name
	Size int    // total instruction length, opcode byte included
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpPushVal:    {"PUSH_VAL", 9},
	OpPushFlonum: {"PUSH_FLONUM", 9},
	OpPushNil:    {"PUSH_NIL", 1},
	OpPushSelf:   {"PUSH_SELF", 1},

	OpCreateRange:  {"CREATE_RANGE", 1},
	OpCreateArray:  {"CREATE_ARRAY", 5},
	OpCreateProc:   {"CREATE_PROC", 5},
	OpCreateHash:   {"CREATE_HASH", 5},
	OpCreateRegexp: {"CREATE_REGEX", 1},
	OpConstVal:     {"CONST_VAL", 5},

	OpSetLocal:    {"SET_LOCAL", 5},
	OpGetLocal:    {"GET_LOCAL", 5},
	OpSetDynLocal: {"SET_DYNLOCAL", 9},
	OpGetDynLocal: {"GET_DYNLOCAL", 9},
	OpGetConst:    {"GET_CONST", 9},
	OpSetConst:    {"SET_CONST", 5},
	OpGetConstTop: {"GET_CONSTTOP", 5},
	OpGetScope:    {"GET_SCOPE", 5},
	OpGetIvar:     {"GET_IVAR", 5},
	OpSetIvar:     {"SET_IVAR", 5},
	OpGetGvar:     {"GET_GVAR", 5},
	OpSetGvar:     {"SET_GVAR", 5},
	OpGetCvar:     {"GET_CVAR", 5},
	OpSetCvar:     {"SET_CVAR", 5},
	OpGetSvar:     {"GET_SVAR", 5},
	OpSetSvar:     {"SET_SVAR", 5},

	OpGetIndex: {"GET_INDEX", 1},
	OpSetIndex: {"SET_INDEX", 1},
	OpGetIdxI:  {"GET_IDX_I", 5},
	OpSetIdxI:  {"SET_IDX_I", 5},

	OpCheckLocal:  {"CHECK_LOCAL", 9},
	OpCheckConst:  {"CHECK_CONST", 5},
	OpCheckScope:  {"CHECK_SCOPE", 5},
	OpCheckIvar:   {"CHECK_IVAR", 5},
	OpCheckGvar:   {"CHECK_GVAR", 5},
	OpCheckMethod: {"CHECK_METHOD", 5},

	OpSend:     {"SEND", 16},
	OpOptSend:  {"O_SEND", 15},
	OpOptSendN: {"O_SEND_N", 15},

	OpPop:          {"POP", 1},
	OpDup:          {"DUP", 5},
	OpTake:         {"TAKE", 5},
	OpSplat:        {"SPLAT", 1},
	OpConcatString: {"CONCAT_STR", 5},
	OpToS:          {"TO_S", 1},
	OpSinkN:        {"SINKN", 5},
	OpTopN:         {"TOPN", 5},

	OpDefClass:   {"DEF_CLASS", 10},
	OpDefSClass:  {"DEF_SCLASS", 5},
	OpDefMethod:  {"DEF_METHOD", 9},
	OpDefSMethod: {"DEF_CMETHOD", 9},

	OpJmp:      {"JMP", 5},
	OpJmpBack:  {"JMP_BACK", 5},
	OpJmpF:     {"JMP_IF_F", 5},
	OpJmpT:     {"JMP_IF_T", 5},
	OpReturn:   {"RETURN", 1},
	OpBreak:    {"BREAK", 1},
	OpOptCase:  {"OPT_CASE", 9},
	OpMReturn:  {"MRETURN", 1},
	OpYield:    {"YIELD", 5},
	OpRescue:   {"RESCUE", 5},
	OpThrow:    {"THROW", 1},
	OpOptCase2: {"OPT_CASE2", 9},
	OpSuper:    {"SUPER", 8},

	OpAdd:  {"ADD", 1},
	OpSub:  {"SUB", 1},
	OpMul:  {"MUL", 1},
	OpDiv:  {"DIV", 1},
	OpRem:  {"REM", 1},
	OpEq:   {"EQ", 1},
	OpNe:   {"NE", 1},
	OpTeq:  {"TEQ", 1},
	OpGt:   {"GT", 1},
	OpGe:   {"GE", 1},
	OpLt:   {"LT", 1},
	OpLe:   {"LE", 1},
	OpNot:  {"NOT", 1},
	OpShr:  {"SHR", 1},
	OpShl:  {"SHL", 1},
	OpBOr:  {"BIT_OR", 1},
	OpBAnd: {"BIT_AND", 1},
	OpBXor: {"BIT_XOR", 1},
	OpBNot: {"BIT_NOT", 1},
	OpPow:  {"POW", 1},
	OpCmp:  {"CMP", 1},
	OpNeg:  {"NEG", 1},

	OpAddI: {"ADDI", 5},
	OpSubI: {"SUBI", 5},
	OpEqI:  {"EQI", 5},
	OpNeI:  {"NEI", 5},
	OpGtI:  {"GTI", 5},
	OpGeI:  {"GEI", 5},
	OpLtI:  {"LTI", 5},
	OpLeI:  {"LEI", 5},

	OpJmpFEq: {"JMP_F_EQ", 5},
	OpJmpFNe: {"JMP_F_NE", 5},
	OpJmpFGt: {"JMP_F_GT", 5},
	OpJmpFGe: {"JMP_F_GE", 5},
	OpJmpFLt: {"JMP_F_LT", 5},
	OpJmpFLe: {"JMP_F_LE", 5},

	OpJmpFEqI: {"JMP_F_EQI", 9},
	OpJmpFNeI: {"JMP_F_NEI", 9},
	OpJmpFGtI: {"JMP_F_GTI", 9},
	OpJmpFGeI: {"JMP_F_GEI", 9},
	OpJmpFLtI: {"JMP_F_LTI", 9},
	OpJmpFLeI: {"JMP_F_LEI", 9},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(%d)", byte(op)), Size: 0}
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// Size returns the full instruction length, or 0 for unknown opcodes.
func (op Opcode) Size() int {
	return op.Info().Size
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// IsJump reports whether op carries a relative displacement as its last
// operand.
func (op Opcode) IsJump() bool {
	switch op {
	case OpJmp, OpJmpBack, OpJmpF, OpJmpT,
		OpJmpFEq, OpJmpFNe, OpJmpFGt, OpJmpFGe, OpJmpFLt, OpJmpFLe,
		OpJmpFEqI, OpJmpFNeI, OpJmpFGtI, OpJmpFGeI, OpJmpFLtI, OpJmpFLeI:
		return true
	}
	return false
}
