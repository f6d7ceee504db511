package vm

import (
	"testing"
)

// contextISeq registers a unit with the given locals.
func (ti *testInterp) contextISeq(kind ISeqKind, names ...string) *ISeqInfo {
	ti.t.Helper()
	b := NewISeqBuilder(IdentNone, kind)
	for _, n := range names {
		b.AddLocal(ti.id(n))
	}
	return ti.Methods.ISeq(ti.iseq(b))
}

func TestNewHeapContext(t *testing.T) {
	ti := newTestInterp(t)
	iseq := ti.contextISeq(ISeqMethod, "a", "b")
	hc := ti.NewHeapContext(ti.MainObject, iseq, Nil)

	if hc.Len() != 2 {
		t.Errorf("Len = %d, want 2", hc.Len())
	}
	for i := 0; i < hc.Len(); i++ {
		if v := hc.Local(LvarID(i)); v != Nil {
			t.Errorf("local %d = %v, want nil", i, v)
		}
	}
	if hc.Self() != ti.MainObject {
		t.Error("Self is not the captured receiver")
	}
	if hc.Outer() != Nil {
		t.Errorf("Outer = %v, want nil", hc.Outer())
	}
	if mfp := hc.Env().MFP(); mfp != hc.Value() {
		t.Errorf("MFP of an outermost context = %v, want itself", mfp)
	}
	if ti.heapContext(hc.Value()) != hc {
		t.Error("heapContext did not resolve the context's own reference")
	}

	hc.SetLocal(1, FromFixnum(9))
	if hc.Local(1).Fixnum() != 9 {
		t.Errorf("local 1 = %v, want 9", hc.Local(1))
	}
}

func TestNewHeapContextKwRestUninit(t *testing.T) {
	ti := newTestInterp(t)
	b := NewISeqBuilder(IdentNone, ISeqMethod)
	b.AddLocal(ti.id("a"))
	b.MarkKwRest(b.AddLocal(ti.id("opts")))
	iseq := ti.Methods.ISeq(ti.iseq(b))

	hc := ti.NewHeapContext(Nil, iseq, Nil)
	if hc.Local(0) != Nil {
		t.Errorf("plain local = %v, want nil", hc.Local(0))
	}
	if !hc.Local(1).IsUninit() {
		t.Errorf("keyword-rest local = %v, want uninitialized", hc.Local(1))
	}
}

func TestHeapContextInheritsMFP(t *testing.T) {
	ti := newTestInterp(t)
	outer := ti.NewHeapContext(ti.MainObject, ti.contextISeq(ISeqMethod, "x"), Nil)
	inner := ti.NewHeapContext(ti.MainObject, ti.contextISeq(ISeqBlock, "y"), outer.Value())

	if inner.Outer() != outer.Value() {
		t.Error("inner context does not link to its outer")
	}
	if inner.Env().MFP() != outer.Value() {
		t.Errorf("inner MFP = %v, want the outer context", inner.Env().MFP())
	}

	innermost := ti.NewHeapContext(ti.MainObject, ti.contextISeq(ISeqBlock), inner.Value())
	if innermost.Env().MFP() != outer.Value() {
		t.Error("MFP is not inherited through two levels")
	}

	expectInternal(t, "stack frame as outer", func() {
		ti.NewHeapContext(Nil, ti.contextISeq(ISeqBlock), EncodeFrame(0))
	})
}

func TestSetISeqPreservesLocals(t *testing.T) {
	ti := newTestInterp(t)
	outer := ti.NewHeapContext(ti.MainObject, ti.contextISeq(ISeqMethod, "o"), Nil)
	hc := ti.NewHeapContext(ti.MainObject, ti.contextISeq(ISeqBlock, "a", "b"), outer.Value())
	hc.SetLocal(0, FromFixnum(1))
	hc.SetLocal(1, FromFixnum(2))

	bigger := ti.contextISeq(ISeqBlock, "a", "b", "c")
	ti.SetISeq(hc, bigger)

	if hc.Len() != 3 {
		t.Fatalf("Len after SetISeq = %d, want 3", hc.Len())
	}
	if hc.Local(0).Fixnum() != 1 || hc.Local(1).Fixnum() != 2 {
		t.Errorf("locals = %v, %v; want 1, 2", hc.Local(0), hc.Local(1))
	}
	if hc.Local(2) != Nil {
		t.Errorf("new local = %v, want nil", hc.Local(2))
	}
	if hc.Self() != ti.MainObject || hc.Outer() != outer.Value() {
		t.Error("SetISeq lost self or the outer link")
	}
	if hc.Env().ISeq() != bigger.Method {
		t.Error("context still points at the old code")
	}
	if hc.Env().MFP() != outer.Value() {
		t.Error("SetISeq lost the method frame link")
	}
}

func TestEnumerateLocalVars(t *testing.T) {
	ti := newTestInterp(t)
	outer := ti.NewHeapContext(Nil, ti.contextISeq(ISeqMethod, "x", "y"), Nil)
	inner := ti.NewHeapContext(Nil, ti.contextISeq(ISeqBlock, "y", "z"), outer.Value())

	names := ti.EnumerateLocalVars(inner)
	if len(names) != 3 {
		t.Errorf("got %d names, want 3", len(names))
	}
	for _, n := range []string{"x", "y", "z"} {
		if _, ok := names[ti.id(n)]; !ok {
			t.Errorf("%s missing from %v", n, names)
		}
	}
}

func TestDupContext(t *testing.T) {
	ti := newTestInterp(t)
	hc := ti.NewHeapContext(ti.MainObject, ti.contextISeq(ISeqMethod, "a"), Nil)
	hc.SetLocal(0, FromFixnum(1))

	dup := ti.DupContext(hc)
	if dup.Value() == hc.Value() {
		t.Fatal("DupContext returned the same cell")
	}
	if dup.Local(0).Fixnum() != 1 {
		t.Errorf("dup local = %v, want 1", dup.Local(0))
	}
	dup.SetLocal(0, FromFixnum(2))
	if hc.Local(0).Fixnum() != 1 {
		t.Error("writing the copy changed the original")
	}
	if dup.Env().MFP() != dup.Value() {
		t.Error("an outermost copy should be its own method frame")
	}

	inner := ti.NewHeapContext(ti.MainObject, ti.contextISeq(ISeqBlock, "b"), hc.Value())
	innerDup := ti.DupContext(inner)
	if innerDup.Outer() != hc.Value() || innerDup.Env().MFP() != hc.Value() {
		t.Error("copy of a nested context should share the outer chain")
	}
}

func TestHeapContextSurvivesCollection(t *testing.T) {
	ti := newTestInterp(t)
	outer := ti.NewHeapContext(Nil, ti.contextISeq(ISeqMethod, "s"), Nil)
	outer.SetLocal(0, ti.NewString("kept"))
	inner := ti.NewHeapContext(Nil, ti.contextISeq(ISeqBlock), outer.Value())
	ti.SetGvar(ti.id("$ctx"), inner.Value())

	ti.GC.Collect()
	if s, ok := ti.AsString(outer.Local(0)); !ok || s.S != "kept" {
		t.Error("local of an outer context was not kept alive")
	}
}

// ---------------------------------------------------------------------------
// Bindings from running code
// ---------------------------------------------------------------------------

// x = 42
// b = binding
// [b.local_variable_get(:x), (b.local_variable_set(:x, 7); x), b.local_variables]
func TestBindingFromBytecode(t *testing.T) {
	ti := newTestInterp(t)
	b := topBuilder()
	x := b.AddLocal(ti.id("x"))
	bv := b.AddLocal(ti.id("b"))

	b.EmitPushInt(42)
	b.EmitLocal(OpSetLocal, x)
	b.Emit(OpPushSelf)
	b.EmitOptSend(ti.id("binding"), 0, 0, false)
	b.EmitLocal(OpSetLocal, bv)

	b.EmitLocal(OpGetLocal, bv)
	b.EmitPushVal(ti.sym("x"))
	b.EmitOptSend(ti.id("local_variable_get"), 1, 0, false)

	b.EmitLocal(OpGetLocal, bv)
	b.EmitPushVal(ti.sym("x"))
	b.EmitPushInt(7)
	b.EmitOptSend(ti.id("local_variable_set"), 2, 0, true)
	b.EmitLocal(OpGetLocal, x)

	b.EmitLocal(OpGetLocal, bv)
	b.EmitOptSend(ti.id("local_variables"), 0, 0, false)
	b.EmitU32(OpCreateArray, 3)
	b.Emit(OpReturn)

	v := ti.mustRun(b)
	if got := ti.inspect(v); got != "[42, 7, [:b, :x]]" {
		t.Errorf("result = %s, want [42, 7, [:b, :x]]", got)
	}
}

func TestBindingPrimitives(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	hc := ti.NewHeapContext(ti.MainObject, ti.contextISeq(ISeqMethod, "a"), Nil)
	bind := hc.Value()

	if r, _ := vm.EvalSend(ti.id("receiver"), bind, nil, nil); r != ti.MainObject {
		t.Errorf("receiver = %s", ti.inspect(r))
	}
	if r, _ := vm.EvalSend(ti.id("local_variable_defined?"), bind, []Value{ti.sym("a")}, nil); r != True {
		t.Error("a should be defined")
	}
	if r, _ := vm.EvalSend(ti.id("local_variable_defined?"), bind, []Value{ti.sym("zz")}, nil); r != False {
		t.Error("zz should not be defined")
	}
	_, err := vm.EvalSend(ti.id("local_variable_get"), bind, []Value{ti.sym("zz")}, nil)
	wantKind(t, err, ErrKindName)

	_, err = vm.EvalSend(ti.id("local_variable_get"), bind, []Value{FromFixnum(1)}, nil)
	if err == nil {
		t.Error("local_variable_get with a non-symbol should fail")
	}
}
