package vm

import "fmt"

// ---------------------------------------------------------------------------
// Enumerator: pull-based iteration over a fiber
// ---------------------------------------------------------------------------

// Enumerator turns receiver.method(*args), a method that yields values to
// its block, into a sequence that can be pulled one value at a time.
type Enumerator struct {
	Receiver Value
	Method   IdentID
	Args     []Value

	// fiber is the fiber next advances, Nil until the first next.
	fiber Value
	self  Value
}

// NewEnumerator allocates an enumerator over receiver.method(*args).
func (g *Globals) NewEnumerator(receiver Value, method IdentID, args []Value) *Enumerator {
	e := &Enumerator{
		Receiver: receiver,
		Method:   method,
		Args:     append([]Value(nil), args...),
		fiber:    Nil,
	}
	e.self = g.Alloc.Alloc(e)
	return e
}

func (*Enumerator) Class(g *Globals) *Module { return g.EnumeratorClass }

func (e *Enumerator) Mark(a *Allocator) {
	a.MarkValue(e.Receiver)
	for _, v := range e.Args {
		a.MarkValue(v)
	}
	a.MarkValue(e.fiber)
}

// Value returns the enumerator as a Value.
func (e *Enumerator) Value() Value { return e.self }

func (e *Enumerator) info() *EnumInfo {
	return &EnumInfo{Receiver: e.Receiver, Method: e.Method, Args: e.Args}
}

// AsEnumerator returns the Enumerator behind v.
func (g *Globals) AsEnumerator(v Value) (*Enumerator, bool) {
	if !v.IsRef() {
		return nil, false
	}
	e, ok := g.Deref(v).(*Enumerator)
	return e, ok
}

// AsFiber returns the Fiber behind v.
func (g *Globals) AsFiber(v Value) (*Fiber, bool) {
	if !v.IsRef() {
		return nil, false
	}
	f, ok := g.Deref(v).(*Fiber)
	return f, ok
}

// Next returns the next value of the sequence, or a StopIteration error
// once it is exhausted.
func (e *Enumerator) Next(vm *VM) (Value, error) {
	g := vm.g
	if e.fiber.IsNil() {
		e.fiber = g.NewEnumFiber(e.info()).Value()
	}
	f, _ := g.AsFiber(e.fiber)
	if !f.Alive() {
		return Nil, ErrStopIteration("iteration reached an end")
	}
	return f.Resume(nil)
}

// Rewind restarts the sequence. The running fiber, if any, is abandoned.
func (e *Enumerator) Rewind(g *Globals) {
	if f, ok := g.AsFiber(e.fiber); ok {
		f.release()
	}
	e.fiber = Nil
}

// drive runs the iteration on a fresh fiber and calls fn with every value
// it produces. It returns the result of the iteration method.
func (e *Enumerator) drive(vm *VM, fn func(v Value) error) (Value, error) {
	g := vm.g
	f := g.NewEnumFiber(e.info())
	defer vm.protect(f.Value())()
	defer f.release()

	for {
		v, err := f.Resume(nil)
		if err != nil {
			if IsStopIteration(err) {
				return err.(*RubyError).Value, nil
			}
			return Nil, err
		}
		if err := fn(v); err != nil {
			return Nil, err
		}
	}
}

// Each calls blk with every value and returns the iteration's result.
func (e *Enumerator) Each(vm *VM, blk Block) (Value, error) {
	return e.drive(vm, func(v Value) error {
		_, err := vm.EvalBlock(blk, v)
		return err
	})
}

// Map collects the results of blk over every value.
func (e *Enumerator) Map(vm *VM, blk Block) (Value, error) {
	g := vm.g
	out := g.NewArray()
	defer vm.protect(out)()
	arr, _ := g.AsArray(out)

	_, err := e.drive(vm, func(v Value) error {
		r, err := vm.EvalBlock(blk, v)
		if err != nil {
			return err
		}
		arr.Elems = append(arr.Elems, r)
		return nil
	})
	if err != nil {
		return Nil, err
	}
	return out, nil
}

// WithIndex calls blk with every value and its index, counting from
// offset, and returns the iteration's result.
func (e *Enumerator) WithIndex(vm *VM, offset int64, blk Block) (Value, error) {
	i := offset
	return e.drive(vm, func(v Value) error {
		idx, err := fixnum(i)
		if err != nil {
			return err
		}
		i++
		_, err = vm.EvalBlock(blk, v, idx)
		return err
	})
}

// Inspect renders the enumerator as #<Enumerator: recv:method(args)>.
func (e *Enumerator) Inspect(g *Globals) string {
	s := fmt.Sprintf("#<Enumerator: %s:%s", g.Inspect(e.Receiver), g.Idents.Name(e.Method))
	if len(e.Args) > 0 {
		s += "("
		for i, a := range e.Args {
			if i > 0 {
				s += ", "
			}
			s += g.Inspect(a)
		}
		s += ")"
	}
	return s + ">"
}
