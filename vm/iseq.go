package vm

// ---------------------------------------------------------------------------
// Instruction sequences and their side tables
// ---------------------------------------------------------------------------

// ISeqKind tells what a compiled unit was compiled from.
type ISeqKind uint8

const (
	ISeqOther  ISeqKind = iota // toplevel, eval
	ISeqMethod                 // def or lambda
	ISeqClass                  // class/module body
	ISeqBlock                  // block or proc
)

func (k ISeqKind) String() string {
	switch k {
	case ISeqMethod:
		return "method"
	case ISeqClass:
		return "class"
	case ISeqBlock:
		return "block"
	}
	return "other"
}

// RestKind describes a splat parameter.
type RestKind uint8

const (
	RestNone  RestKind = iota // no rest parameter
	RestNamed                 // *args, bound to a local slot
	RestAnon                  // bare * or a trailing comma in block params; excess is discarded
)

// LvarID is a local variable slot index within a frame.
type LvarID uint32

// KeywordParam binds a keyword name to a local slot.
type KeywordParam struct {
	Name IdentID
	Slot LvarID
}

// ISeqParams is the parameter descriptor of a method or block.
//
// Local slot layout follows declaration order: required, optional, rest,
// post-required, keywords, keyword-rest, block, delegate.
type ISeqParams struct {
	Req      int
	Opt      int
	Rest     RestKind
	Post     int
	Keywords []KeywordParam
	KwRest   bool
	Block    bool
	Delegate bool
}

// HasKeywordParams reports whether the callee accepts keywords at all.
func (p *ISeqParams) HasKeywordParams() bool {
	return len(p.Keywords) > 0 || p.KwRest
}

// IsSimple reports whether only required positional parameters are
// declared.
func (p *ISeqParams) IsSimple() bool {
	return p.Opt == 0 && p.Rest == RestNone && p.Post == 0 &&
		len(p.Keywords) == 0 && !p.KwRest && !p.Block && !p.Delegate
}

func (p *ISeqParams) restSlots() int {
	if p.Rest == RestNamed {
		return 1
	}
	return 0
}

// keywordSlot returns the slot bound to keyword name.
func (p *ISeqParams) keywordSlot(name IdentID) (LvarID, bool) {
	for _, kw := range p.Keywords {
		if kw.Name == name {
			return kw.Slot, true
		}
	}
	return 0, false
}

// LvarCollector is the local variable table of an instruction sequence.
type LvarCollector struct {
	Names        []IdentID // slot -> name
	KwRestSlot   *LvarID
	BlockSlot    *LvarID
	DelegateSlot *LvarID
}

// Table returns the names in slot order.
func (c *LvarCollector) Table() []IdentID { return c.Names }

// SlotOf returns the slot bound to name.
func (c *LvarCollector) SlotOf(name IdentID) (LvarID, bool) {
	for i, n := range c.Names {
		if n == name {
			return LvarID(i), true
		}
	}
	return 0, false
}

// ExceptionKind is the type of an exception table entry.
type ExceptionKind uint8

const (
	ExceptionRescue ExceptionKind = iota
	ExceptionEnsure
	ExceptionRetry
)

// ExceptionEntry is one rescue/ensure range.
type ExceptionEntry struct {
	Kind  ExceptionKind
	Start int
	End   int
	Dest  int
}

// SourceLoc maps a bytecode offset to a source line.
type SourceLoc struct {
	Offset int
	Line   int
}

// ISeqInfo is one compiled unit: bytecode plus everything the VM needs to
// run it.
type ISeqInfo struct {
	Method FnID
	Name   IdentID
	Kind   ISeqKind
	Code   []byte
	Params ISeqParams
	Lvar   LvarCollector

	// Lvars is the number of local slots.
	Lvars int

	// OptFlag marks descriptors eligible for the binder fast path.
	OptFlag bool
	// MulargFlag marks blocks that destructure a single Array argument.
	MulargFlag bool

	// Consts is the literal pool addressed by CONST_VAL.
	Consts []Value
	// MethodCacheSlots and ConstCacheSlots size the per-site caches.
	MethodCacheSlots int
	ConstCacheSlots  int

	ExceptionTable []ExceptionEntry
	SourceMap      []SourceLoc
	SourcePath     string

	// Class is the lexical class the code was defined in (nil = Object).
	Class *Module
}

// finalize computes derived flags after the tables are populated.
func (s *ISeqInfo) finalize() {
	s.OptFlag = s.Params.IsSimple()
	s.MulargFlag = s.Params.Req+s.Params.Post > 1 ||
		(s.Params.Req+s.Params.Post == 1 && (s.Params.Opt > 0 || s.Params.Rest != RestNone))
	if s.Lvars < len(s.Lvar.Names) {
		s.Lvars = len(s.Lvar.Names)
	}
}

// LineAt returns the source line for a bytecode offset, or 0.
func (s *ISeqInfo) LineAt(pc int) int {
	line := 0
	for _, loc := range s.SourceMap {
		if loc.Offset > pc {
			break
		}
		line = loc.Line
	}
	return line
}
