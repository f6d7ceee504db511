package vm

import (
	"testing"
)

func (ti *testInterp) numbers() Value {
	return ti.NewArray(FromFixnum(10), FromFixnum(20), FromFixnum(30))
}

func TestEnumeratorNext(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	arr := ti.numbers()
	e := ti.NewEnumerator(arr, IdentEach, nil)

	for _, want := range []int64{10, 20, 30} {
		v, err := e.Next(vm)
		if err != nil || v.Fixnum() != want {
			t.Fatalf("next = %v, %v; want %d", v, err, want)
		}
	}
	_, err := e.Next(vm)
	re := wantKind(t, err, ErrKindStopIteration)
	if re.Value != arr {
		t.Errorf("StopIteration value = %s, want the receiver", ti.inspect(re.Value))
	}

	_, err = e.Next(vm)
	wantKind(t, err, ErrKindStopIteration)
	if ti.Current() != vm {
		t.Error("root VM is not current after iteration")
	}
}

func TestEnumeratorRewind(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	e := ti.NewEnumerator(ti.numbers(), IdentEach, nil)

	e.Next(vm)
	e.Next(vm)
	e.Rewind(ti.Globals)
	if ti.stacks.Len() != 1 {
		t.Errorf("rewind did not return the fiber stack: pool %d", ti.stacks.Len())
	}
	if v, _ := e.Next(vm); v.Fixnum() != 10 {
		t.Errorf("next after rewind = %v, want 10", v)
	}
}

func TestEnumeratorMap(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	e := ti.NewEnumerator(ti.numbers(), IdentEach, nil)

	double := vm.NewHostProc(func(vm *VM, args []Value) (Value, error) {
		return FromFixnum(args[0].Fixnum() * 2), nil
	})
	v, err := vm.EvalSend(IdentMap, e.Value(), nil, ProcBlock{Proc: double})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if got := ti.inspect(v); got != "[20, 40, 60]" {
		t.Errorf("map = %s, want [20, 40, 60]", got)
	}
	if ti.stacks.Len() != 1 {
		t.Errorf("map did not release its fiber: pool %d", ti.stacks.Len())
	}
}

func TestEnumeratorEach(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	arr := ti.numbers()
	e := ti.NewEnumerator(arr, IdentEach, nil)

	var sum int64
	add := vm.NewHostProc(func(vm *VM, args []Value) (Value, error) {
		sum += args[0].Fixnum()
		return Nil, nil
	})
	v, err := vm.EvalSend(IdentEach, e.Value(), nil, ProcBlock{Proc: add})
	if err != nil {
		t.Fatalf("each: %v", err)
	}
	if sum != 60 || v != arr {
		t.Errorf("each summed %d and returned %s", sum, ti.inspect(v))
	}
	if v, _ := vm.EvalSend(IdentEach, e.Value(), nil, nil); v != e.Value() {
		t.Error("each without a block should return the enumerator")
	}

	fail := vm.NewHostProc(func(*VM, []Value) (Value, error) {
		return Nil, ErrRuntime("stop")
	})
	_, err = vm.EvalSend(IdentEach, e.Value(), nil, ProcBlock{Proc: fail})
	wantKind(t, err, ErrKindRuntime)
}

func TestEnumeratorWithIndex(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	e := ti.NewEnumerator(ti.numbers(), IdentEach, nil)

	var pairs []Value
	collect := vm.NewHostProc(func(vm *VM, args []Value) (Value, error) {
		pairs = append(pairs, vm.g.NewArray(args...))
		return Nil, nil
	})
	if _, err := vm.EvalSend(ti.id("with_index"), e.Value(), []Value{FromFixnum(1)}, ProcBlock{Proc: collect}); err != nil {
		t.Fatalf("with_index: %v", err)
	}
	if got := ti.inspect(ti.NewArray(pairs...)); got != "[[10, 1], [20, 2], [30, 3]]" {
		t.Errorf("pairs = %s", got)
	}

	_, err := vm.EvalSend(ti.id("with_index"), e.Value(), []Value{ti.sym("x")}, ProcBlock{Proc: collect})
	wantKind(t, err, ErrKindType)
}

func TestEnumeratorChainedWithIndex(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	each := ti.NewEnumerator(ti.numbers(), IdentEach, nil)

	chained, err := vm.EvalSend(ti.id("with_index"), each.Value(), nil, nil)
	if err != nil {
		t.Fatalf("with_index: %v", err)
	}
	e, ok := ti.AsEnumerator(chained)
	if !ok {
		t.Fatalf("with_index without a block = %s", ti.inspect(chained))
	}
	ti.SetGvar(ti.id("$e"), chained)

	v, err := e.Next(vm)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := ti.inspect(v); got != "[10, 0]" {
		t.Errorf("next = %s, want [10, 0]", got)
	}
	v, _ = e.Next(vm)
	if got := ti.inspect(v); got != "[20, 1]" {
		t.Errorf("second next = %s, want [20, 1]", got)
	}
}

func TestEnumeratorSurvivesCollection(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	e := ti.NewEnumerator(ti.numbers(), IdentEach, nil)
	ti.SetGvar(ti.id("$e"), e.Value())

	e.Next(vm)
	ti.GC.Collect()
	if v, err := e.Next(vm); err != nil || v.Fixnum() != 20 {
		t.Errorf("next after collection = %v, %v; want 20", v, err)
	}
}

func TestEnumeratorInspect(t *testing.T) {
	ti := newTestInterp(t)
	e := ti.NewEnumerator(ti.numbers(), IdentEach, nil)
	if got := ti.inspect(e.Value()); got != "#<Enumerator: [10, 20, 30]:each>" {
		t.Errorf("inspect = %s", got)
	}
	v, _ := ti.Main.EvalSend(ti.id("inspect"), e.Value(), nil, nil)
	if s, _ := ti.AsString(v); s == nil || s.S != "#<Enumerator: [10, 20, 30]:each>" {
		t.Errorf("Enumerator#inspect = %s", ti.inspect(v))
	}
}

func TestEnumeratorNewPrimitive(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	class := ti.EnumeratorClass.Value()
	arr := ti.numbers()

	v, err := vm.EvalSend(ti.id("new"), class, []Value{arr}, nil)
	if err != nil {
		t.Fatalf("Enumerator.new: %v", err)
	}
	if e, ok := ti.AsEnumerator(v); !ok || e.Method != IdentEach {
		t.Errorf("Enumerator.new(arr) = %s", ti.inspect(v))
	}

	v, _ = vm.EvalSend(ti.id("new"), class, []Value{arr, ti.sym("map")}, nil)
	if e, _ := ti.AsEnumerator(v); e == nil || e.Method != IdentMap {
		t.Errorf("Enumerator.new(arr, :map) = %s", ti.inspect(v))
	}

	_, err = vm.EvalSend(ti.id("new"), class, []Value{arr, FromFixnum(1)}, nil)
	wantKind(t, err, ErrKindType)

	_, err = vm.EvalSend(ti.id("new"), class, nil, nil)
	wantKind(t, err, ErrKindArgument)
}

func TestEnumeratorPrimitives(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	e := ti.NewEnumerator(ti.numbers(), IdentEach, nil)
	ev := e.Value()

	if v, _ := vm.EvalSend(ti.id("next"), ev, nil, nil); v.Fixnum() != 10 {
		t.Errorf("next = %v, want 10", v)
	}
	if v, _ := vm.EvalSend(ti.id("rewind"), ev, nil, nil); v != ev {
		t.Error("rewind should return the enumerator")
	}
	if v, _ := vm.EvalSend(ti.id("next"), ev, nil, nil); v.Fixnum() != 10 {
		t.Errorf("next after rewind = %v, want 10", v)
	}

	v, _ := vm.EvalSend(ti.id("collect"), ev, nil, nil)
	if m, ok := ti.AsEnumerator(v); !ok || m.Method != IdentMap || m.Receiver != ev {
		t.Errorf("collect without a block = %s", ti.inspect(v))
	}
}

// ---------------------------------------------------------------------------
// Enumerators over bytecode methods
// ---------------------------------------------------------------------------

// def gen
//   yield 1
//   yield 2
//   :done
// end
func TestEnumeratorOverBytecodeYielder(t *testing.T) {
	ti := newTestInterp(t)
	m := NewISeqBuilder(ti.id("gen"), ISeqMethod)
	m.EmitPushInt(1)
	m.EmitU32(OpYield, 1)
	m.Emit(OpPop)
	m.EmitPushInt(2)
	m.EmitU32(OpYield, 1)
	m.Emit(OpPop)
	m.EmitPushVal(ti.sym("done"))
	m.Emit(OpReturn)
	ti.defMethod(ti.ObjectClass, "gen", m)

	vm := ti.Main
	ev, err := vm.EvalSend(ti.id("to_enum"), ti.MainObject, []Value{ti.sym("gen")}, nil)
	if err != nil {
		t.Fatalf("to_enum(:gen): %v", err)
	}
	e, _ := ti.AsEnumerator(ev)
	ti.SetGvar(ti.id("$gen"), ev)

	for _, want := range []int64{1, 2} {
		v, err := e.Next(vm)
		if err != nil || v.Fixnum() != want {
			t.Fatalf("next = %v, %v; want %d", v, err, want)
		}
	}
	_, err = e.Next(vm)
	re := wantKind(t, err, ErrKindStopIteration)
	if re.Value != ti.sym("done") {
		t.Errorf("StopIteration value = %s, want :done", ti.inspect(re.Value))
	}
}

// loop { e.next } ends quietly when the enumerator runs out.
func TestLoopEndsOnStopIteration(t *testing.T) {
	ti := newTestInterp(t)
	vm := ti.Main
	arr := ti.numbers()
	e := ti.NewEnumerator(arr, IdentEach, nil)
	ti.SetGvar(ti.id("$e"), e.Value())

	var seen []int64
	body := vm.NewHostProc(func(vm *VM, args []Value) (Value, error) {
		v, err := e.Next(vm)
		if err != nil {
			return Nil, err
		}
		seen = append(seen, v.Fixnum())
		return Nil, nil
	})
	v, err := vm.EvalSend(ti.id("loop"), ti.MainObject, nil, ProcBlock{Proc: body})
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	if len(seen) != 3 || v != arr {
		t.Errorf("loop saw %v and returned %s", seen, ti.inspect(v))
	}
}
