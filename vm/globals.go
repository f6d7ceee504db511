package vm

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// Options configure an interpreter.
type Options struct {
	StackSize     int  // value stack slots per VM
	Debug         bool // allocator consistency checks
	GCEnabled     bool // automatic collection
	GCThreshold   int  // allocations between automatic collections
	FiberPoolSize int  // fiber stacks kept for reuse
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		StackSize:     DefaultStackSize,
		GCEnabled:     true,
		GCThreshold:   DefaultGCThreshold,
		FiberPoolSize: 16,
	}
}

// Globals owns everything shared by the VMs of one interpreter: the
// identifier table, the allocator, classes, methods, global variables and
// the fiber stack pool. Exactly one VM runs at any instant.
type Globals struct {
	ID      uuid.UUID
	Options Options

	Idents  *IdentTable
	Alloc   *Allocator
	Methods *MethodRepo
	GC      *Collector

	// version is bumped by any method, constant or include change.
	version     uint64
	methodCache *globalMethodCache

	gvars  map[IdentID]Value
	stacks *stackPool

	// Main is the root VM; active lists the VMs currently executing, the
	// innermost resumed fiber last.
	Main       *VM
	active     []*VM
	MainObject Value

	ObjectClass     *Module
	ModuleClass     *Module
	ClassClass      *Module
	KernelModule    *Module
	IntegerClass    *Module
	FloatClass      *Module
	NilClass        *Module
	TrueClass       *Module
	FalseClass      *Module
	SymbolClass     *Module
	StringClass     *Module
	ArrayClass      *Module
	HashClass       *Module
	ProcClass       *Module
	BindingClass    *Module
	ExceptionClass  *Module
	FiberClass      *Module
	EnumeratorClass *Module
	GCModule        *Module

	// Out receives Kernel#puts and Kernel#p output.
	Out io.Writer

	log commonlog.Logger
}

// NewGlobals creates an interpreter with its root VM and builtin classes.
func NewGlobals(opts Options) *Globals {
	def := DefaultOptions()
	if opts.StackSize <= 0 {
		opts.StackSize = def.StackSize
	}
	if opts.GCThreshold <= 0 {
		opts.GCThreshold = def.GCThreshold
	}
	if opts.FiberPoolSize < 0 {
		opts.FiberPoolSize = 0
	}

	g := &Globals{
		ID:          uuid.New(),
		Options:     opts,
		Idents:      NewIdentTable(),
		Alloc:       NewAllocator(opts.GCThreshold, opts.Debug),
		Methods:     NewMethodRepo(),
		methodCache: newGlobalMethodCache(),
		gvars:       make(map[IdentID]Value),
		stacks:      newStackPool(opts.FiberPoolSize, opts.StackSize),
		Out:         os.Stdout,
		log:         commonlog.GetLogger("garnet.vm"),
	}
	g.Alloc.SetEnabled(opts.GCEnabled)
	g.GC = NewCollector(g)
	g.bootstrapClasses()
	g.MainObject = g.NewObject(g.ObjectClass)
	g.Main = newVM(g, NewExecStack(opts.StackSize), nil)
	g.active = []*VM{g.Main}
	g.registerBuiltins()

	g.log.Debug("interpreter created", "id", g.ID.String(), "stack", opts.StackSize)
	return g
}

func (g *Globals) bootstrapClasses() {
	g.ObjectClass = g.allocModule(IdentObject, nil, false)
	g.SetConst(g.ObjectClass, IdentObject, g.ObjectClass.self)

	g.ModuleClass = g.DefineClass("Module", g.ObjectClass)
	g.ClassClass = g.DefineClass("Class", g.ModuleClass)
	g.KernelModule = g.DefineModule("Kernel")
	g.Include(g.ObjectClass, g.KernelModule)

	g.IntegerClass = g.DefineClass("Integer", nil)
	g.FloatClass = g.DefineClass("Float", nil)
	g.NilClass = g.DefineClass("NilClass", nil)
	g.TrueClass = g.DefineClass("TrueClass", nil)
	g.FalseClass = g.DefineClass("FalseClass", nil)
	g.SymbolClass = g.DefineClass("Symbol", nil)
	g.StringClass = g.DefineClass("String", nil)
	g.ArrayClass = g.DefineClass("Array", nil)
	g.HashClass = g.DefineClass("Hash", nil)
	g.ProcClass = g.DefineClass("Proc", nil)
	g.BindingClass = g.DefineClass("Binding", nil)
	g.ExceptionClass = g.DefineClass("Exception", nil)
	g.FiberClass = g.DefineClass("Fiber", nil)
	g.EnumeratorClass = g.DefineClass("Enumerator", nil)
	g.GCModule = g.DefineModule("GC")
}

// Version returns the global method/constant version.
func (g *Globals) Version() uint64 {
	return g.version
}

func (g *Globals) bumpVersion() {
	g.version++
}

// GetGvar returns a global variable, nil if unset.
func (g *Globals) GetGvar(name IdentID) Value {
	if v, ok := g.gvars[name]; ok {
		return v
	}
	return Nil
}

// SetGvar sets a global variable.
func (g *Globals) SetGvar(name IdentID, v Value) {
	g.gvars[name] = v
}

// Current returns the VM executing right now.
func (g *Globals) Current() *VM {
	return g.active[len(g.active)-1]
}

func (g *Globals) enter(vm *VM) {
	g.active = append(g.active, vm)
}

func (g *Globals) leave(vm *VM) {
	n := len(g.active)
	if n == 0 || g.active[n-1] != vm {
		internalPanic("fiber switch out of order")
	}
	g.active = g.active[:n-1]
}

// heapContext returns the heap context behind an encoded environment.
func (g *Globals) heapContext(v Value) *HeapContext {
	hc, ok := g.Deref(v).(*HeapContext)
	if !ok {
		internalPanic("not a heap context: %v", v)
	}
	return hc
}

// ---------------------------------------------------------------------------
// Fiber stack pool
// ---------------------------------------------------------------------------

// stackPool keeps released fiber value stacks for reuse instead of
// letting them go back to the Go heap.
type stackPool struct {
	free      []*ExecStack
	capacity  int
	stackSize int
	reused    uint64
	taken     uint64
	returned  uint64
}

func newStackPool(capacity, stackSize int) *stackPool {
	return &stackPool{capacity: capacity, stackSize: stackSize}
}

func (p *stackPool) get() *ExecStack {
	p.taken++
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		p.reused++
		return s
	}
	return NewExecStack(p.stackSize)
}

func (p *stackPool) put(s *ExecStack) {
	p.returned++
	s.Reset()
	if len(p.free) < p.capacity {
		p.free = append(p.free, s)
	}
}

// Len returns the number of pooled stacks.
func (p *stackPool) Len() int {
	return len(p.free)
}

// FiberStats counts fiber stack traffic since the interpreter was created.
type FiberStats struct {
	Started  uint64 // fibers that took a stack
	Released uint64 // fibers that gave it back (finished or collected)
	Reused   uint64 // stacks served from the pool
	Pooled   int    // stacks currently pooled
}

// FiberStats returns the fiber counters.
func (g *Globals) FiberStats() FiberStats {
	p := g.stacks
	return FiberStats{Started: p.taken, Released: p.returned, Reused: p.reused, Pooled: len(p.free)}
}
