package vm

// ---------------------------------------------------------------------------
// Module: classes and modules
// ---------------------------------------------------------------------------

// Module is a class or module. Classes are heap objects like everything
// else; self is the reference they were allocated under.
type Module struct {
	name     IdentID
	Super    *Module
	IsModule bool
	includes []*Module

	methods map[IdentID]FnID
	consts  map[IdentID]Value

	// instance variable layout of instances
	ivarIndex map[IdentID]int

	// class-level instance variables
	ivars map[IdentID]Value

	meta     *Module // singleton class, created on demand
	attached *Module // for a singleton class, the class it belongs to

	self Value
}

func newModule(name IdentID, super *Module, isModule bool) *Module {
	return &Module{
		name:      name,
		Super:     super,
		IsModule:  isModule,
		methods:   make(map[IdentID]FnID),
		consts:    make(map[IdentID]Value),
		ivarIndex: make(map[IdentID]int),
		ivars:     make(map[IdentID]Value),
		self:      Nil,
	}
}

// Class returns the class of the class object: its singleton class if it
// has one, else Class or Module.
func (m *Module) Class(g *Globals) *Module {
	if m.meta != nil {
		return m.meta
	}
	if m.IsModule {
		return g.ModuleClass
	}
	return g.ClassClass
}

func (m *Module) Mark(a *Allocator) {
	a.MarkValue(m.self)
	if m.Super != nil {
		a.MarkValue(m.Super.self)
	}
	for _, inc := range m.includes {
		a.MarkValue(inc.self)
	}
	if m.meta != nil {
		a.MarkValue(m.meta.self)
	}
	if m.attached != nil {
		a.MarkValue(m.attached.self)
	}
	for _, v := range m.consts {
		a.MarkValue(v)
	}
	for _, v := range m.ivars {
		a.MarkValue(v)
	}
}

// Value returns the class object as a Value.
func (m *Module) Value() Value { return m.self }

// Ident returns the interned class name.
func (m *Module) Ident() IdentID { return m.name }

// Name returns the class name.
func (m *Module) Name(g *Globals) string {
	if m.attached != nil {
		return "#<Class:" + m.attached.Name(g) + ">"
	}
	return g.Idents.Name(m.name)
}

// IsSubclassOf reports whether m is other or inherits from it.
func (m *Module) IsSubclassOf(other *Module) bool {
	for _, c := range m.Ancestors() {
		if c == other {
			return true
		}
	}
	return false
}

// Ancestors returns the method resolution order: each class followed by
// the modules it includes (last included first), up the superclass chain.
func (m *Module) Ancestors() []*Module {
	var out []*Module
	for c := m; c != nil; c = c.Super {
		out = append(out, c)
		for i := len(c.includes) - 1; i >= 0; i-- {
			out = append(out, c.includes[i])
		}
	}
	return out
}

// IvarSlot returns the instance slot for ivar, assigning the next free
// slot on first use. Slots are shared down the hierarchy.
func (m *Module) IvarSlot(ivar IdentID) int {
	for c := m; c != nil; c = c.Super {
		if i, ok := c.ivarIndex[ivar]; ok {
			return i
		}
	}
	i := m.ivarCount()
	m.ivarIndex[ivar] = i
	return i
}

func (m *Module) ivarCount() int {
	n := 0
	for c := m; c != nil; c = c.Super {
		n += len(c.ivarIndex)
	}
	return n
}

// ---------------------------------------------------------------------------
// Class table operations
// ---------------------------------------------------------------------------

func (g *Globals) allocModule(name IdentID, super *Module, isModule bool) *Module {
	m := newModule(name, super, isModule)
	m.self = g.Alloc.Alloc(m)
	return m
}

// DefineClass creates a class under Object. Reopening an existing class
// returns it unchanged.
func (g *Globals) DefineClass(name string, super *Module) *Module {
	return g.DefineClassUnder(g.ObjectClass, g.Idents.Intern(name), super, false)
}

// DefineModule creates a module under Object.
func (g *Globals) DefineModule(name string) *Module {
	return g.DefineClassUnder(g.ObjectClass, g.Idents.Intern(name), nil, true)
}

// DefineClassUnder creates or reopens a class or module as a constant of
// parent.
func (g *Globals) DefineClassUnder(parent *Module, name IdentID, super *Module, isModule bool) *Module {
	if v, ok := parent.consts[name]; ok && v.IsRef() {
		if m, ok := g.Deref(v).(*Module); ok {
			return m
		}
	}
	if super == nil && !isModule {
		super = g.ObjectClass
	}
	m := g.allocModule(name, super, isModule)
	g.SetConst(parent, name, m.self)
	return m
}

// SingletonClass returns the singleton class of m, creating it.
func (g *Globals) SingletonClass(m *Module) *Module {
	if m.meta != nil {
		return m.meta
	}
	var super *Module
	switch {
	case m.IsModule:
		super = g.ModuleClass
	case m.Super != nil:
		super = g.SingletonClass(m.Super)
	default:
		super = g.ClassClass
	}
	meta := g.allocModule(m.name, super, false)
	meta.attached = m
	m.meta = meta
	g.bumpVersion()
	return meta
}

// Include mixes mod into m.
func (g *Globals) Include(m, mod *Module) {
	for _, inc := range m.includes {
		if inc == mod {
			return
		}
	}
	m.includes = append(m.includes, mod)
	g.bumpVersion()
}

// DefineMethod binds name to fid in m.
func (g *Globals) DefineMethod(m *Module, name IdentID, fid FnID) {
	m.methods[name] = fid
	g.bumpVersion()
}

// DefineBuiltin registers fn as method name of m.
func (g *Globals) DefineBuiltin(m *Module, name string, min, max int, fn BuiltinFunc) FnID {
	id := g.Idents.Intern(name)
	fid := g.Methods.AddBuiltin(id, min, max, fn)
	g.DefineMethod(m, id, fid)
	return fid
}

// DefineSingletonBuiltin registers fn as a class method of m.
func (g *Globals) DefineSingletonBuiltin(m *Module, name string, min, max int, fn BuiltinFunc) FnID {
	return g.DefineBuiltin(g.SingletonClass(m), name, min, max, fn)
}

// DefineAttr defines attribute accessors on m.
func (g *Globals) DefineAttr(m *Module, name string, reader, writer bool) {
	ivar := g.Idents.Intern("@" + name)
	if reader {
		id := g.Idents.Intern(name)
		g.DefineMethod(m, id, g.Methods.AddAttr(id, ivar, false))
	}
	if writer {
		id := g.Idents.Intern(name + "=")
		g.DefineMethod(m, id, g.Methods.AddAttr(id, ivar, true))
	}
}

// SetConst binds a constant in m.
func (g *Globals) SetConst(m *Module, name IdentID, v Value) {
	m.consts[name] = v
	g.bumpVersion()
}

// FindConst resolves name from m: m and its ancestors first, then the
// top level.
func (g *Globals) FindConst(m *Module, name IdentID) (Value, bool) {
	if m == nil {
		m = g.ObjectClass
	}
	for _, c := range m.Ancestors() {
		if v, ok := c.consts[name]; ok {
			return v, true
		}
	}
	if v, ok := g.ObjectClass.consts[name]; ok {
		return v, true
	}
	return Nil, false
}

// lookupMethod walks the method resolution order of class.
func (g *Globals) lookupMethod(class *Module, name IdentID) (FnID, bool) {
	for _, c := range class.Ancestors() {
		if fid, ok := c.methods[name]; ok {
			return fid, true
		}
	}
	return 0, false
}

// AsModule returns the class behind v.
func (g *Globals) AsModule(v Value) (*Module, bool) {
	if !v.IsRef() {
		return nil, false
	}
	m, ok := g.Deref(v).(*Module)
	return m, ok
}
