package vm

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/garnet/vm/coroutine"
)

// ---------------------------------------------------------------------------
// Fiber: a cooperative coroutine with its own VM
// ---------------------------------------------------------------------------

// FiberState is the lifecycle state of a fiber.
type FiberState uint8

const (
	FiberCreated FiberState = iota
	FiberRunning            // started and not finished, suspended or not
	FiberDead
)

func (s FiberState) String() string {
	switch s {
	case FiberCreated:
		return "created"
	case FiberRunning:
		return "running"
	}
	return "dead"
}

// fiberResult is what a fiber hands back to its resumer.
type fiberResult struct {
	val Value
	err error
}

// Fiber runs a block, or an enumerator's iteration method, on a dedicated
// VM whose value stack comes from the interpreter's stack pool. The body
// runs as a coroutine: Resume starts or continues it, and Fiber.yield
// inside it suspends back to the resumer.
type Fiber struct {
	g     *Globals
	self  Value
	state FiberState

	// resuming is set while the fiber is on the active chain.
	resuming bool

	// body is the Proc a Fiber.new fiber runs; enum the iteration an
	// enumerator fiber runs. Exactly one is set.
	body Value
	enum *EnumInfo

	vm    *VM
	co    *coroutine.Coroutine[[]Value, fiberResult]
	yield func(fiberResult) []Value

	log commonlog.Logger
}

// EnumInfo is the iteration an enumerator wraps: receiver.method(*args).
type EnumInfo struct {
	Receiver Value
	Method   IdentID
	Args     []Value
}

func (e *EnumInfo) mark(a *Allocator) {
	a.MarkValue(e.Receiver)
	for _, v := range e.Args {
		a.MarkValue(v)
	}
}

// NewFiber allocates a fiber that runs the Proc body.
func (g *Globals) NewFiber(body Value) *Fiber {
	return g.newFiber(body, nil)
}

// NewEnumFiber allocates a fiber that yields every value the iteration
// produces, then fails with StopIteration.
func (g *Globals) NewEnumFiber(info *EnumInfo) *Fiber {
	return g.newFiber(Nil, info)
}

func (g *Globals) newFiber(body Value, info *EnumInfo) *Fiber {
	f := &Fiber{
		g:     g,
		state: FiberCreated,
		body:  body,
		enum:  info,
		log:   commonlog.GetLogger("garnet.fiber"),
	}
	f.self = g.Alloc.Alloc(f)
	return f
}

func (*Fiber) Class(g *Globals) *Module { return g.FiberClass }

func (f *Fiber) Mark(a *Allocator) {
	a.MarkValue(f.body)
	if f.enum != nil {
		f.enum.mark(a)
	}
	if f.vm != nil && f.state != FiberDead {
		f.vm.mark(a)
	}
}

// Free abandons a suspended fiber and returns its stack to the pool.
func (f *Fiber) Free() {
	f.release()
}

// Value returns the fiber as a Value.
func (f *Fiber) Value() Value { return f.self }

// State returns the lifecycle state.
func (f *Fiber) State() FiberState { return f.state }

// Alive reports whether the fiber can still be resumed.
func (f *Fiber) Alive() bool { return f.state != FiberDead }

// Dup returns a new, unstarted fiber running the same body.
func (f *Fiber) Dup() *Fiber {
	var info *EnumInfo
	if f.enum != nil {
		dup := *f.enum
		dup.Args = append([]Value(nil), f.enum.Args...)
		info = &dup
	}
	return f.g.newFiber(f.body, info)
}

// Resume starts or continues the fiber, passing args to the body on the
// first resume and as the result of Fiber.yield afterwards. It returns the
// next yielded value, or the body's result when the body finishes.
func (f *Fiber) Resume(args []Value) (Value, error) {
	switch {
	case f.state == FiberDead:
		return Nil, ErrDeadFiber()
	case f.resuming:
		return Nil, ErrFiber("attempt to resume the current fiber")
	}
	g := f.g
	if f.state == FiberCreated {
		f.start()
	}

	f.resuming = true
	g.enter(f.vm)
	out, done := f.co.Resume(args)
	g.leave(f.vm)
	f.resuming = false

	if done {
		f.finish()
		return out.val, out.err
	}
	return out.val, nil
}

func (f *Fiber) start() {
	f.vm = newVM(f.g, f.g.stacks.get(), f)
	f.state = FiberRunning
	f.co = coroutine.Spawn(func(first []Value, yield func(fiberResult) []Value) fiberResult {
		f.yield = yield
		v, err := f.run(first)
		return fiberResult{val: v, err: f.vm.escapeError(err)}
	})
	f.log.Debug("fiber started", "vm", f.vm.ID.String())
}

func (f *Fiber) run(args []Value) (Value, error) {
	vm := f.vm
	if f.enum == nil {
		return vm.EvalBlock(ProcBlock{Proc: f.body}, args...)
	}

	emit := vm.NewHostProc(func(vm *VM, args []Value) (Value, error) {
		return vm.fiberYield(packValues(vm.g, args))
	})
	result, err := vm.EvalSend(f.enum.Method, f.enum.Receiver, f.enum.Args, ProcBlock{Proc: emit})
	if err != nil {
		return Nil, err
	}
	stop := ErrStopIteration("iteration reached an end")
	stop.Value = result
	return Nil, stop
}

// finish marks the fiber dead and recycles its stack.
func (f *Fiber) finish() {
	f.state = FiberDead
	f.log.Debug("fiber finished", "vm", f.vm.ID.String())
	f.release()
}

func (f *Fiber) release() {
	f.state = FiberDead
	if f.co != nil {
		f.co.Stop()
		f.co = nil
	}
	if f.vm != nil {
		f.g.stacks.put(f.vm.stack)
		f.vm.stack = nil
		f.vm = nil
	}
}

// fiberYield suspends the fiber running on vm, handing v to its
// resumer, and returns the values of the next resume.
func (vm *VM) fiberYield(v Value) (Value, error) {
	f := vm.fiber
	if f == nil {
		return Nil, ErrFiber("can't yield from root fiber")
	}
	in := f.yield(fiberResult{val: v})
	return packValues(vm.g, in), nil
}

// packValues turns a resume or yield argument list into one value: nil,
// the single value, or an Array.
func packValues(g *Globals, args []Value) Value {
	switch len(args) {
	case 0:
		return Nil
	case 1:
		return args[0]
	}
	return g.NewArray(args...)
}
