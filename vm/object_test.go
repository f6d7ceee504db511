package vm

import (
	"testing"
)

func TestRObjectSlots(t *testing.T) {
	o := NewRObject(nil)
	for i := 0; i < 8; i++ {
		if o.GetSlot(i) != Nil {
			t.Errorf("slot %d = %v, want nil", i, o.GetSlot(i))
		}
	}

	o.SetSlot(1, FromFixnum(1))
	o.SetSlot(6, FromFixnum(6))
	if o.GetSlot(1).Fixnum() != 1 {
		t.Errorf("inline slot = %v, want 1", o.GetSlot(1))
	}
	if o.GetSlot(6).Fixnum() != 6 {
		t.Errorf("overflow slot = %v, want 6", o.GetSlot(6))
	}
	if len(o.overflow) != 3 {
		t.Errorf("overflow len = %d, want 3", len(o.overflow))
	}
	if o.GetSlot(NumInlineSlots) != Nil {
		t.Error("skipped overflow slot should be nil")
	}
}

func TestIvarSlotSharedDownHierarchy(t *testing.T) {
	ti := newTestInterp(t)
	base := ti.DefineClass("Base", ti.ObjectClass)
	sub := ti.DefineClass("Sub", base)

	a := base.IvarSlot(ti.id("@a"))
	b := sub.IvarSlot(ti.id("@b"))
	if a != 0 || b != 1 {
		t.Errorf("slots = %d, %d; want 0, 1", a, b)
	}
	if sub.IvarSlot(ti.id("@a")) != a {
		t.Error("subclass did not reuse the inherited slot")
	}
}

func TestInstanceVariablePrimitives(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	obj := ti.NewObject(ti.DefineClass("Bag", ti.ObjectClass))

	names := []string{"@a", "@b", "@c", "@d", "@e", "@f"}
	for i, n := range names {
		if _, err := vm.EvalSend(ti.id("instance_variable_set"), obj, []Value{ti.sym(n), FromFixnum(int64(i))}, nil); err != nil {
			t.Fatalf("set %s: %v", n, err)
		}
	}
	for i, n := range names {
		v, err := vm.EvalSend(ti.id("instance_variable_get"), obj, []Value{ti.sym(n)}, nil)
		if err != nil || v.Fixnum() != int64(i) {
			t.Errorf("%s = %v, %v; want %d", n, v, err, i)
		}
	}
	if v, _ := vm.EvalSend(ti.id("instance_variable_get"), obj, []Value{ti.sym("@zz")}, nil); v != Nil {
		t.Errorf("unset ivar = %v, want nil", v)
	}

	_, err := vm.EvalSend(ti.id("instance_variable_get"), obj, []Value{FromFixnum(1)}, nil)
	wantKind(t, err, ErrKindType)

	// Modules keep their own ivar table.
	mod := ti.DefineModule("Config")
	vm.EvalSend(ti.id("instance_variable_set"), mod.Value(), []Value{ti.sym("@level"), FromFixnum(3)}, nil)
	if v, _ := vm.EvalSend(ti.id("instance_variable_get"), mod.Value(), []Value{ti.sym("@level")}, nil); v.Fixnum() != 3 {
		t.Errorf("module ivar = %v, want 3", v)
	}
}

// ---------------------------------------------------------------------------
// Kernel
// ---------------------------------------------------------------------------

func TestKernelEquality(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	a := ti.NewObject(ti.ObjectClass)
	b := ti.NewObject(ti.ObjectClass)

	tests := []struct {
		name        string
		self, other Value
		want        Value
	}{
		{"==", a, a, True},
		{"==", a, b, False},
		{"equal?", a, a, True},
		{"!=", a, b, True},
		{"!=", a, a, False},
		{"===", a, a, True},
		{"!=", ti.NewString("s"), ti.NewString("s"), False},
	}
	for _, tt := range tests {
		got, err := vm.EvalSend(ti.id(tt.name), tt.self, []Value{tt.other}, nil)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s %s %s = %v, want %v", ti.inspect(tt.self), tt.name, ti.inspect(tt.other), got, tt.want)
		}
	}
}

func TestKernelPredicates(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	tests := []struct {
		name string
		self Value
		want Value
	}{
		{"nil?", Nil, True},
		{"nil?", FromFixnum(0), False},
		{"!", Nil, True},
		{"!", False, True},
		{"!", FromFixnum(0), False},
		{"!", ti.MainObject, False},
	}
	for _, tt := range tests {
		got, err := vm.EvalSend(ti.id(tt.name), tt.self, nil, nil)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%v.%s = %v, want %v", tt.self, tt.name, got, tt.want)
		}
	}
}

func TestKernelClass(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	util := ti.DefineModule("Util")
	ti.SingletonClass(util)

	tests := []struct {
		self Value
		want *Module
	}{
		{FromFixnum(1), ti.IntegerClass},
		{FromFloat(1.5), ti.FloatClass},
		{Nil, ti.NilClass},
		{True, ti.TrueClass},
		{ti.sym("a"), ti.SymbolClass},
		{ti.NewString("s"), ti.StringClass},
		{ti.MainObject, ti.ObjectClass},
		{ti.ObjectClass.Value(), ti.ClassClass},
		{util.Value(), ti.ModuleClass},
	}
	for _, tt := range tests {
		got, err := vm.EvalSend(ti.id("class"), tt.self, nil, nil)
		if err != nil {
			t.Fatalf("class: %v", err)
		}
		if got != tt.want.Value() {
			t.Errorf("%s.class = %s, want %s", ti.inspect(tt.self), ti.inspect(got), tt.want.Name(ti.Globals))
		}
	}
}

func TestKernelInspect(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	point := ti.NewObject(ti.DefineClass("Point", ti.ObjectClass))

	tests := []struct {
		self Value
		want string
	}{
		{point, "#<Point>"},
		{FromFloat(2), "2.0"},
		{ti.sym("x"), ":x"},
		{ti.NewString("a\"b"), `"a\"b"`},
		{ti.NewArray(Nil, True), "[nil, true]"},
		{ti.ObjectClass.Value(), "Object"},
	}
	for _, tt := range tests {
		v, err := vm.EvalSend(ti.id("inspect"), tt.self, nil, nil)
		if err != nil {
			t.Fatalf("inspect: %v", err)
		}
		if s, _ := ti.AsString(v); s == nil || s.S != tt.want {
			t.Errorf("inspect = %s, want %s", ti.inspect(v), tt.want)
		}
	}

	v, _ := vm.EvalSend(ti.id("to_s"), Nil, nil, nil)
	if s, _ := ti.AsString(v); s == nil || s.S != "" {
		t.Errorf("nil.to_s = %s, want \"\"", ti.inspect(v))
	}
}

func TestKernelPuts(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main

	v, err := vm.EvalSend(ti.id("puts"), ti.MainObject, []Value{ti.NewString("a"), FromFixnum(1), Nil}, nil)
	if err != nil {
		t.Fatalf("puts: %v", err)
	}
	if v != Nil {
		t.Errorf("puts returned %v, want nil", v)
	}
	vm.EvalSend(ti.id("puts"), ti.MainObject, nil, nil)
	if got := ti.out.String(); got != "a\n1\n\n\n" {
		t.Errorf("output = %q", got)
	}
}

func TestKernelP(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main

	if v, _ := vm.EvalSend(ti.id("p"), ti.MainObject, nil, nil); v != Nil {
		t.Errorf("p() = %v, want nil", v)
	}
	if v, _ := vm.EvalSend(ti.id("p"), ti.MainObject, []Value{FromFixnum(4)}, nil); v.Fixnum() != 4 {
		t.Errorf("p(4) = %v, want 4", v)
	}
	v, _ := vm.EvalSend(ti.id("p"), ti.MainObject, []Value{FromFixnum(1), ti.NewString("s")}, nil)
	if got := ti.inspect(v); got != `[1, "s"]` {
		t.Errorf("p(1, \"s\") = %s", got)
	}
	if got := ti.out.String(); got != "4\n1\n\"s\"\n" {
		t.Errorf("output = %q", got)
	}
}

func TestKernelRaise(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	raise := ti.id("raise")

	_, err := vm.EvalSend(raise, ti.MainObject, []Value{ti.NewString("boom")}, nil)
	if re := wantKind(t, err, ErrKindRuntime); re.Message != "boom" {
		t.Errorf("message = %q, want boom", re.Message)
	}

	_, err = vm.EvalSend(raise, ti.MainObject, nil, nil)
	if re := wantKind(t, err, ErrKindRuntime); re.Message != "unhandled exception" {
		t.Errorf("message = %q", re.Message)
	}

	_, err = vm.EvalSend(raise, ti.MainObject, []Value{FromFixnum(1)}, nil)
	wantKind(t, err, ErrKindType)

	orig := ErrIndex("index 9 outside of array")
	exc := ti.Alloc.Alloc(&RException{Err: orig})
	_, err = vm.EvalSend(raise, ti.MainObject, []Value{exc}, nil)
	if err != orig {
		t.Errorf("re-raise = %v, want the original error", err)
	}
}

func TestKernelBlockGiven(t *testing.T) {
	ti := newTestInterp(t)
	m := NewISeqBuilder(ti.id("given"), ISeqMethod)
	m.Emit(OpPushSelf)
	m.EmitOptSend(ti.id("block_given?"), 0, 0, false)
	m.Emit(OpReturn)
	ti.defMethod(ti.ObjectClass, "given", m)

	vm := ti.Main
	proc := vm.NewHostProc(func(*VM, []Value) (Value, error) { return Nil, nil })
	if v, _ := vm.EvalSend(ti.id("given"), ti.MainObject, nil, nil); v != False {
		t.Errorf("without a block = %v, want false", v)
	}
	if v, _ := vm.EvalSend(ti.id("given"), ti.MainObject, nil, ProcBlock{Proc: proc}); v != True {
		t.Errorf("with a block = %v, want true", v)
	}
}

func TestKernelProcRequiresBlock(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	for _, name := range []string{"proc", "lambda"} {
		_, err := vm.EvalSend(ti.id(name), ti.MainObject, nil, nil)
		wantKind(t, err, ErrKindArgument)
	}

	host := vm.NewHostProc(func(*VM, []Value) (Value, error) { return Nil, nil })
	v, err := vm.EvalSend(ti.id("lambda"), ti.MainObject, nil, ProcBlock{Proc: host})
	if err != nil {
		t.Fatalf("lambda(&proc): %v", err)
	}
	if p, _ := ti.AsProc(v); p == nil || p.Lambda {
		t.Error("lambda(&proc) should return the proc unchanged")
	}
}

func TestKernelLoop(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main

	n := 0
	body := vm.NewHostProc(func(*VM, []Value) (Value, error) {
		n++
		if n == 3 {
			e := ErrStopIteration("iteration reached an end")
			e.Value = FromFixnum(30)
			return Nil, e
		}
		return Nil, nil
	})
	v, err := vm.EvalSend(ti.id("loop"), ti.MainObject, nil, ProcBlock{Proc: body})
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	if n != 3 || v.Fixnum() != 30 {
		t.Errorf("loop ran %d times and returned %v; want 3, 30", n, v)
	}

	failing := vm.NewHostProc(func(*VM, []Value) (Value, error) {
		return Nil, ErrRuntime("stop")
	})
	_, err = vm.EvalSend(ti.id("loop"), ti.MainObject, nil, ProcBlock{Proc: failing})
	wantKind(t, err, ErrKindRuntime)

	v, _ = vm.EvalSend(ti.id("loop"), ti.MainObject, nil, nil)
	if e, ok := ti.Deref(v).(*Enumerator); !ok || e.Method != ti.id("loop") {
		t.Errorf("loop without a block = %s, want an enumerator", ti.inspect(v))
	}
}

func TestKernelToEnum(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	arr := ti.NewArray(FromFixnum(1))

	v, err := vm.EvalSend(ti.id("to_enum"), arr, nil, nil)
	if err != nil {
		t.Fatalf("to_enum: %v", err)
	}
	if e, ok := ti.Deref(v).(*Enumerator); !ok || e.Method != IdentEach || e.Receiver != arr {
		t.Errorf("to_enum = %s", ti.inspect(v))
	}

	v, _ = vm.EvalSend(ti.id("enum_for"), arr, []Value{ti.sym("map"), FromFixnum(2)}, nil)
	if got := ti.inspect(v); got != "#<Enumerator: [1]:map(2)>" {
		t.Errorf("enum_for(:map, 2) = %s", got)
	}

	_, err = vm.EvalSend(ti.id("to_enum"), arr, []Value{FromFixnum(1)}, nil)
	wantKind(t, err, ErrKindType)
}
