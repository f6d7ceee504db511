package vm

import (
	"fmt"
	"strings"
)

// Object is anything that lives in an allocator cell. The collector knows
// nothing about object layouts; it asks each object to mark what it
// references.
type Object interface {
	Mark(a *Allocator)
	Class(g *Globals) *Module
}

// Freer is implemented by objects that hold resources beyond their own
// cell. Free runs when the cell is swept.
type Freer interface {
	Free()
}

// ---------------------------------------------------------------------------
// RObject: ordinary instances
// ---------------------------------------------------------------------------

// RObject is an instance of a user class.
//
// Instance variables use a hybrid slot layout: 4 inline slots cover most
// objects and an overflow slice takes the rest. Slot indices come from the
// class's instance variable table.
type RObject struct {
	class *Module

	slot0 Value
	slot1 Value
	slot2 Value
	slot3 Value

	overflow []Value
}

// NumInlineSlots is the number of ivar slots stored directly in RObject.
const NumInlineSlots = 4

// NewRObject creates an instance of class with every ivar nil.
func NewRObject(class *Module) *RObject {
	return &RObject{class: class, slot0: Nil, slot1: Nil, slot2: Nil, slot3: Nil}
}

func (o *RObject) Class(*Globals) *Module { return o.class }

func (o *RObject) Mark(a *Allocator) {
	a.MarkValue(o.class.self)
	a.MarkValue(o.slot0)
	a.MarkValue(o.slot1)
	a.MarkValue(o.slot2)
	a.MarkValue(o.slot3)
	for _, v := range o.overflow {
		a.MarkValue(v)
	}
}

// GetSlot returns ivar slot index.
func (o *RObject) GetSlot(index int) Value {
	switch index {
	case 0:
		return o.slot0
	case 1:
		return o.slot1
	case 2:
		return o.slot2
	case 3:
		return o.slot3
	}
	i := index - NumInlineSlots
	if i < len(o.overflow) {
		return o.overflow[i]
	}
	return Nil
}

// SetSlot stores ivar slot index, growing the overflow if needed.
func (o *RObject) SetSlot(index int, v Value) {
	switch index {
	case 0:
		o.slot0 = v
		return
	case 1:
		o.slot1 = v
		return
	case 2:
		o.slot2 = v
		return
	case 3:
		o.slot3 = v
		return
	}
	i := index - NumInlineSlots
	for len(o.overflow) <= i {
		o.overflow = append(o.overflow, Nil)
	}
	o.overflow[i] = v
}

// ---------------------------------------------------------------------------
// Builtin payloads
// ---------------------------------------------------------------------------

// RArray is an Array.
type RArray struct {
	Elems []Value
}

func (*RArray) Class(g *Globals) *Module { return g.ArrayClass }

func (r *RArray) Mark(a *Allocator) {
	for _, v := range r.Elems {
		a.MarkValue(v)
	}
}

// RString is a String.
type RString struct {
	S string
}

func (*RString) Class(g *Globals) *Module { return g.StringClass }
func (*RString) Mark(*Allocator)          {}

// RHash is an insertion-ordered Hash. String keys compare by content,
// everything else by identity.
type RHash struct {
	keys  []Value
	vals  []Value
	index map[any]int
}

func newRHash() *RHash {
	return &RHash{index: make(map[any]int)}
}

func (*RHash) Class(g *Globals) *Module { return g.HashClass }

func (h *RHash) Mark(a *Allocator) {
	for i := range h.keys {
		a.MarkValue(h.keys[i])
		a.MarkValue(h.vals[i])
	}
}

// Len returns the number of entries.
func (h *RHash) Len() int { return len(h.keys) }

// Entry returns the i-th key and value in insertion order.
func (h *RHash) Entry(i int) (Value, Value) { return h.keys[i], h.vals[i] }

func (h *RHash) set(hk any, k, v Value) {
	if i, ok := h.index[hk]; ok {
		h.vals[i] = v
		return
	}
	h.index[hk] = len(h.keys)
	h.keys = append(h.keys, k)
	h.vals = append(h.vals, v)
}

func (h *RHash) get(hk any) (Value, bool) {
	i, ok := h.index[hk]
	if !ok {
		return Nil, false
	}
	return h.vals[i], true
}

// RSplat wraps an array that a call site expands into positional args.
type RSplat struct {
	Val Value
}

func (*RSplat) Class(g *Globals) *Module { return g.ObjectClass }
func (s *RSplat) Mark(a *Allocator)       { a.MarkValue(s.Val) }

// RException is a raised error turned into an object, as seen by rescue
// handlers.
type RException struct {
	Err *RubyError
}

func (*RException) Class(g *Globals) *Module { return g.ExceptionClass }
func (e *RException) Mark(a *Allocator)       { a.MarkValue(e.Err.Value) }

// HostBlockFunc is the body of a block implemented in Go.
type HostBlockFunc func(vm *VM, args []Value) (Value, error)

// Proc is a block that outlived its literal: code plus the heap context it
// closes over, or a Go function.
type Proc struct {
	Self   Value
	Method FnID
	// Outer is the heap context the block body runs in, or Nil.
	Outer  Value
	Lambda bool
	Host   HostBlockFunc
}

func (*Proc) Class(g *Globals) *Module { return g.ProcClass }

func (p *Proc) Mark(a *Allocator) {
	a.MarkValue(p.Self)
	a.MarkValue(p.Outer)
}

// ---------------------------------------------------------------------------
// Globals helpers
// ---------------------------------------------------------------------------

// Deref returns the object a reference points to.
func (g *Globals) Deref(v Value) Object {
	return g.Alloc.Get(v.Ref())
}

// ClassOf returns the class used for method lookup on v.
func (g *Globals) ClassOf(v Value) *Module {
	switch {
	case v.IsFixnum():
		return g.IntegerClass
	case v.IsFloat():
		return g.FloatClass
	case v == Nil:
		return g.NilClass
	case v == True:
		return g.TrueClass
	case v == False:
		return g.FalseClass
	case v.IsSymbol():
		return g.SymbolClass
	case v.IsRef():
		return g.Deref(v).Class(g)
	}
	return g.ObjectClass
}

// NewArray allocates an Array holding a copy of elems.
func (g *Globals) NewArray(elems ...Value) Value {
	return g.Alloc.Alloc(&RArray{Elems: append([]Value(nil), elems...)})
}

// NewString allocates a String.
func (g *Globals) NewString(s string) Value {
	return g.Alloc.Alloc(&RString{S: s})
}

// NewHash allocates an empty Hash.
func (g *Globals) NewHash() Value {
	return g.Alloc.Alloc(newRHash())
}

// NewObject allocates an instance of class.
func (g *Globals) NewObject(class *Module) Value {
	return g.Alloc.Alloc(NewRObject(class))
}

// AsArray returns the Array behind v.
func (g *Globals) AsArray(v Value) (*RArray, bool) {
	if !v.IsRef() {
		return nil, false
	}
	a, ok := g.Deref(v).(*RArray)
	return a, ok
}

// AsHash returns the Hash behind v.
func (g *Globals) AsHash(v Value) (*RHash, bool) {
	if !v.IsRef() {
		return nil, false
	}
	h, ok := g.Deref(v).(*RHash)
	return h, ok
}

// AsString returns the String behind v.
func (g *Globals) AsString(v Value) (*RString, bool) {
	if !v.IsRef() {
		return nil, false
	}
	s, ok := g.Deref(v).(*RString)
	return s, ok
}

// AsProc returns the Proc behind v.
func (g *Globals) AsProc(v Value) (*Proc, bool) {
	if !v.IsRef() {
		return nil, false
	}
	p, ok := g.Deref(v).(*Proc)
	return p, ok
}

func (g *Globals) hashKey(v Value) any {
	if s, ok := g.AsString(v); ok {
		return s.S
	}
	return v
}

// HashSet stores k => v.
func (g *Globals) HashSet(h *RHash, k, v Value) {
	h.set(g.hashKey(k), k, v)
}

// HashGet looks up k.
func (g *Globals) HashGet(h *RHash, k Value) (Value, bool) {
	return h.get(g.hashKey(k))
}

// Inspect renders v the way Kernel#inspect would.
func (g *Globals) Inspect(v Value) string {
	switch {
	case v.IsSymbol():
		return ":" + g.Idents.Name(v.Symbol())
	case v.IsFloat():
		s := fmt.Sprintf("%g", v.Float())
		if !strings.ContainsAny(s, ".eEnI") {
			s += ".0"
		}
		return s
	case !v.IsRef():
		return v.String()
	}
	switch o := g.Deref(v).(type) {
	case *RString:
		return fmt.Sprintf("%q", o.S)
	case *RArray:
		parts := make([]string, len(o.Elems))
		for i, e := range o.Elems {
			parts[i] = g.Inspect(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *RHash:
		parts := make([]string, o.Len())
		for i := range o.keys {
			parts[i] = g.Inspect(o.keys[i]) + " => " + g.Inspect(o.vals[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Module:
		return o.Name(g)
	case *RException:
		return fmt.Sprintf("#<%s: %s>", o.Err.Kind, o.Err.Message)
	case *Enumerator:
		return o.Inspect(g)
	case *Fiber:
		return fmt.Sprintf("#<Fiber (%s)>", o.state)
	}
	return fmt.Sprintf("#<%s>", g.ClassOf(v).Name(g))
}
