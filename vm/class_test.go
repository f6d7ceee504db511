package vm

import (
	"testing"
)

func moduleNames(ti *testInterp, mods []*Module) []string {
	out := make([]string, len(mods))
	for i, m := range mods {
		out[i] = m.Name(ti.Globals)
	}
	return out
}

func TestDefineClass(t *testing.T) {
	ti := newTestInterp(t)
	foo := ti.DefineClass("Foo", nil)
	if foo.Super != ti.ObjectClass {
		t.Errorf("default superclass = %s, want Object", foo.Super.Name(ti.Globals))
	}
	if foo.IsModule {
		t.Error("class marked as a module")
	}
	if v, ok := ti.FindConst(nil, ti.id("Foo")); !ok || v != foo.Value() {
		t.Error("class was not bound as a constant")
	}
	if again := ti.DefineClass("Foo", nil); again != foo {
		t.Error("reopening a class created a new one")
	}

	mod := ti.DefineModule("Helpers")
	if !mod.IsModule || mod.Super != nil {
		t.Errorf("module: IsModule=%v Super=%v", mod.IsModule, mod.Super)
	}
	if ti.ClassOf(mod.Value()) != ti.ModuleClass {
		t.Error("module value should be a Module")
	}
	if ti.ClassOf(foo.Value()) != ti.ClassClass {
		t.Error("class value should be a Class")
	}
}

func TestDefineClassUnder(t *testing.T) {
	ti := newTestInterp(t)
	outer := ti.DefineModule("Outer")
	inner := ti.DefineClassUnder(outer, ti.id("Inner"), nil, false)

	if _, ok := ti.FindConst(ti.ObjectClass, ti.id("Inner")); ok {
		t.Error("nested class leaked to the top level")
	}
	if v, ok := ti.FindConst(outer, ti.id("Inner")); !ok || v != inner.Value() {
		t.Error("nested class not found from its parent")
	}
	// Top-level constants resolve from any scope.
	if _, ok := ti.FindConst(outer, ti.id("Object")); !ok {
		t.Error("Object not visible from a nested scope")
	}
}

func TestAncestors(t *testing.T) {
	ti := newTestInterp(t)
	a := ti.DefineClass("A", ti.ObjectClass)
	b := ti.DefineClass("B", a)
	m1 := ti.DefineModule("M1")
	m2 := ti.DefineModule("M2")
	ti.Include(b, m1)
	ti.Include(b, m2)
	ti.Include(b, m1)

	got := moduleNames(ti, b.Ancestors())
	want := []string{"B", "M2", "M1", "A", "Object", "Kernel"}
	if len(got) != len(want) {
		t.Fatalf("ancestors = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ancestors = %v, want %v", got, want)
			break
		}
	}

	if !b.IsSubclassOf(a) || !b.IsSubclassOf(m1) || a.IsSubclassOf(b) {
		t.Error("IsSubclassOf disagrees with the ancestor chain")
	}
}

func TestIncludeBumpsVersionOnce(t *testing.T) {
	ti := newTestInterp(t)
	c := ti.DefineClass("C", ti.ObjectClass)
	m := ti.DefineModule("M")

	before := ti.Version()
	ti.Include(c, m)
	after := ti.Version()
	if after == before {
		t.Error("include did not bump the version")
	}
	ti.Include(c, m)
	if ti.Version() != after {
		t.Error("repeated include bumped the version")
	}
}

func TestSingletonClass(t *testing.T) {
	ti := newTestInterp(t)
	a := ti.DefineClass("Animal", ti.ObjectClass)
	b := ti.DefineClass("Dog", a)

	before := ti.Version()
	meta := ti.SingletonClass(b)
	if ti.Version() == before {
		t.Error("creating a singleton class did not bump the version")
	}
	if ti.SingletonClass(b) != meta {
		t.Error("SingletonClass is not idempotent")
	}
	if meta.Super != ti.SingletonClass(a) {
		t.Error("singleton of a subclass should inherit the parent's singleton")
	}
	if got := meta.Name(ti.Globals); got != "#<Class:Dog>" {
		t.Errorf("name = %q", got)
	}
	if ti.ClassOf(b.Value()) != meta {
		t.Error("class value does not dispatch through its singleton")
	}

	mod := ti.DefineModule("Tools")
	if ti.SingletonClass(mod).Super != ti.ModuleClass {
		t.Error("singleton of a module should inherit Module")
	}
}

func TestSingletonMethodsInherit(t *testing.T) {
	ti := newTestInterp(t)
	a := ti.DefineClass("Shape", ti.ObjectClass)
	b := ti.DefineClass("Square", a)
	ti.DefineSingletonBuiltin(a, "kind", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		return vm.g.NewString("shape"), nil
	}))
	ti.SingletonClass(b)

	v, err := ti.Main.EvalSend(ti.id("kind"), b.Value(), nil, nil)
	if err != nil {
		t.Fatalf("Square.kind: %v", err)
	}
	if s, _ := ti.AsString(v); s == nil || s.S != "shape" {
		t.Errorf("Square.kind = %s", ti.inspect(v))
	}

	_, err = ti.Main.EvalSend(ti.id("kind"), ti.NewObject(a), nil, nil)
	wantKind(t, err, ErrKindNoMethod)
}

// ---------------------------------------------------------------------------
// Module primitives
// ---------------------------------------------------------------------------

func TestModuleNamePrimitive(t *testing.T) {
	ti := newTestInterp(t)
	c := ti.DefineClass("Widget", ti.ObjectClass)
	v, err := ti.Main.EvalSend(ti.id("name"), c.Value(), nil, nil)
	if err != nil {
		t.Fatalf("name: %v", err)
	}
	if s, _ := ti.AsString(v); s == nil || s.S != "Widget" {
		t.Errorf("Widget.name = %s", ti.inspect(v))
	}
}

func TestModuleIncludePrimitive(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	c := ti.DefineClass("Host", ti.ObjectClass)
	m := ti.DefineModule("Mixin")

	v, err := vm.EvalSend(ti.id("include"), c.Value(), []Value{m.Value()}, nil)
	if err != nil {
		t.Fatalf("include: %v", err)
	}
	if v != c.Value() {
		t.Error("include should return the receiver")
	}
	if !c.IsSubclassOf(m) {
		t.Error("module not in the ancestor chain")
	}

	_, err = vm.EvalSend(ti.id("include"), c.Value(), []Value{FromFixnum(1)}, nil)
	re := wantKind(t, err, ErrKindType)
	if re.Message != "wrong argument type Integer (expected Module)" {
		t.Errorf("message = %q", re.Message)
	}

	other := ti.DefineClass("Other", ti.ObjectClass)
	_, err = vm.EvalSend(ti.id("include"), c.Value(), []Value{other.Value()}, nil)
	wantKind(t, err, ErrKindType)
}

func TestModuleAncestorsPrimitive(t *testing.T) {
	ti := newTestInterp(t)
	c := ti.DefineClass("Leaf", ti.ObjectClass)
	v, err := ti.Main.EvalSend(ti.id("ancestors"), c.Value(), nil, nil)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if got := ti.inspect(v); got != "[Leaf, Object, Kernel]" {
		t.Errorf("Leaf.ancestors = %s", got)
	}
}

func TestAttrAccessors(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	c := ti.DefineClass("Rec", ti.ObjectClass)

	if _, err := vm.EvalSend(ti.id("attr_accessor"), c.Value(), []Value{ti.sym("x")}, nil); err != nil {
		t.Fatalf("attr_accessor: %v", err)
	}
	vm.EvalSend(ti.id("attr_reader"), c.Value(), []Value{ti.sym("y")}, nil)

	obj := ti.NewObject(c)
	if v, _ := vm.EvalSend(ti.id("x"), obj, nil, nil); v != Nil {
		t.Errorf("unset x = %v, want nil", v)
	}
	if v, err := vm.EvalSend(ti.id("x="), obj, []Value{FromFixnum(5)}, nil); err != nil || v.Fixnum() != 5 {
		t.Errorf("x= returned %v, %v", v, err)
	}
	if v, _ := vm.EvalSend(ti.id("x"), obj, nil, nil); v.Fixnum() != 5 {
		t.Errorf("x = %v, want 5", v)
	}
	if v, _ := vm.EvalSend(ti.id("instance_variable_get"), obj, []Value{ti.sym("@x")}, nil); v.Fixnum() != 5 {
		t.Errorf("@x = %v, want 5", v)
	}

	_, err := vm.EvalSend(ti.id("y="), obj, []Value{FromFixnum(1)}, nil)
	wantKind(t, err, ErrKindNoMethod)

	_, err = vm.EvalSend(ti.id("attr_reader"), c.Value(), []Value{FromFixnum(1)}, nil)
	wantKind(t, err, ErrKindType)
}

// def initialize(v) = @v = v
func TestClassNewRunsInitialize(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	c := ti.DefineClass("Box", ti.ObjectClass)

	init := NewISeqBuilder(IdentInitialize, ISeqMethod)
	v := init.AddLocal(ti.id("v"))
	init.SetParams(ISeqParams{Req: 1})
	init.EmitLocal(OpGetLocal, v)
	init.EmitU32(OpSetIvar, uint32(ti.id("@v")))
	init.Emit(OpPushNil)
	init.Emit(OpReturn)
	ti.defMethod(c, "initialize", init)

	obj, err := vm.EvalSend(ti.id("new"), c.Value(), []Value{FromFixnum(8)}, nil)
	if err != nil {
		t.Fatalf("Box.new(8): %v", err)
	}
	if ti.ClassOf(obj) != c {
		t.Errorf("new returned a %s", ti.ClassOf(obj).Name(ti.Globals))
	}
	if got, _ := vm.EvalSend(ti.id("instance_variable_get"), obj, []Value{ti.sym("@v")}, nil); got.Fixnum() != 8 {
		t.Errorf("@v = %v, want 8", got)
	}

	_, err = vm.EvalSend(ti.id("new"), c.Value(), nil, nil)
	re := wantKind(t, err, ErrKindArgument)
	if re.Message != "wrong number of arguments (given 0, expected 1)" {
		t.Errorf("message = %q", re.Message)
	}

	plain := ti.DefineClass("Plain", ti.ObjectClass)
	if obj, err := vm.EvalSend(ti.id("new"), plain.Value(), nil, nil); err != nil || ti.ClassOf(obj) != plain {
		t.Errorf("Plain.new = %v, %v", obj, err)
	}
}
