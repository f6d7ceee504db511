package vm

import "sync"

// IdentID is an interned identifier: method names, local variable names,
// constant names, instance/global variable names and symbols all share one
// table.
type IdentID uint32

// Identifiers the core refers to directly. They are interned first, in
// this order, by every IdentTable.
const (
	IdentNone IdentID = iota
	IdentInitialize
	IdentObject
	IdentNew
	IdentEach
	IdentMap
	IdentWithIndex
	IdentCall
	IdentToProc
	IdentMethodMissing
	IdentInspect
	IdentToS
	IdentAdd
	IdentSub
	IdentMul
	IdentDiv
	IdentRem
	IdentEq
	IdentNe
	IdentLt
	IdentLe
	IdentGt
	IdentGe
	IdentCmp
	IdentIndex
	IdentIndexAssign
	IdentTeq
	IdentShl
	IdentShr
	IdentPow
	IdentBOr
	IdentBAnd
	IdentBXor
	IdentNot
	IdentNeg
	identPredefinedEnd
)

var predefinedIdents = [...]string{
	IdentNone:          "",
	IdentInitialize:    "initialize",
	IdentObject:        "Object",
	IdentNew:           "new",
	IdentEach:          "each",
	IdentMap:           "map",
	IdentWithIndex:     "with_index",
	IdentCall:          "call",
	IdentToProc:        "to_proc",
	IdentMethodMissing: "method_missing",
	IdentInspect:       "inspect",
	IdentToS:           "to_s",
	IdentAdd:           "+",
	IdentSub:           "-",
	IdentMul:           "*",
	IdentDiv:           "/",
	IdentRem:           "%",
	IdentEq:            "==",
	IdentNe:            "!=",
	IdentLt:            "<",
	IdentLe:            "<=",
	IdentGt:            ">",
	IdentGe:            ">=",
	IdentCmp:           "<=>",
	IdentIndex:         "[]",
	IdentIndexAssign:   "[]=",
	IdentTeq:           "===",
	IdentShl:           "<<",
	IdentShr:           ">>",
	IdentPow:           "**",
	IdentBOr:           "|",
	IdentBAnd:          "&",
	IdentBXor:          "^",
	IdentNot:           "!",
	IdentNeg:           "-@",
}

// IdentTable interns identifier names to numeric IDs.
//
// The table is append-only. Reads take the read lock so a table may be
// shared by several Globals in tests, although a single interpreter only
// ever touches it from one logical thread.
type IdentTable struct {
	mu     sync.RWMutex
	byName map[string]IdentID
	byID   []string
}

// NewIdentTable creates a table holding the predefined identifiers.
func NewIdentTable() *IdentTable {
	t := &IdentTable{
		byName: make(map[string]IdentID, 256),
		byID:   make([]string, 0, 256),
	}
	for _, name := range predefinedIdents {
		t.byName[name] = IdentID(len(t.byID))
		t.byID = append(t.byID, name)
	}
	return t
}

// Intern returns the ID for name, creating a new ID if needed.
func (t *IdentTable) Intern(name string) IdentID {
	t.mu.RLock()
	if id, ok := t.byName[name]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.byName[name]; ok {
		return id
	}
	id := IdentID(len(t.byID))
	t.byName[name] = id
	t.byID = append(t.byID, name)
	return id
}

// Lookup returns the ID for name without creating it.
func (t *IdentTable) Lookup(name string) (IdentID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byName[name]
	return id, ok
}

// Name returns the name for id, or "" if invalid.
func (t *IdentTable) Name(id IdentID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.byID) {
		return ""
	}
	return t.byID[id]
}

// Len returns the number of interned identifiers.
func (t *IdentTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// InternAll interns multiple names and returns their IDs.
func (t *IdentTable) InternAll(names ...string) []IdentID {
	ids := make([]IdentID, len(names))
	for i, name := range names {
		ids[i] = t.Intern(name)
	}
	return ids
}
