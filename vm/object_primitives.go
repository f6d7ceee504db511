package vm

import (
	"fmt"
)

// registerBuiltins installs the core methods the machinery needs to be
// driven from bytecode.
func (g *Globals) registerBuiltins() {
	g.registerObjectPrimitives()
	g.registerModulePrimitives()
	g.registerIntegerPrimitives()
	g.registerFloatPrimitives()
	g.registerStringPrimitives()
	g.registerSymbolPrimitives()
	g.registerArrayPrimitives()
	g.registerHashPrimitives()
	g.registerProcPrimitives()
	g.registerBindingPrimitives()
	g.registerFiberPrimitives()
	g.registerEnumeratorPrimitives()
	g.registerGCPrimitives()
}

// ---------------------------------------------------------------------------
// Kernel / Object Primitives
// ---------------------------------------------------------------------------

func (g *Globals) registerObjectPrimitives() {
	k := g.KernelModule

	// == and equal? - identity
	identity := Method1(func(vm *VM, self, other Value) (Value, error) {
		return FromBool(self == other), nil
	})
	g.DefineBuiltin(k, "==", 1, 1, identity)
	g.DefineBuiltin(k, "equal?", 1, 1, identity)

	g.DefineBuiltin(k, "!=", 1, 1, Method1(func(vm *VM, self, other Value) (Value, error) {
		eq, err := vm.EvalSend(IdentEq, self, []Value{other}, nil)
		if err != nil {
			return Nil, err
		}
		return FromBool(!eq.IsTruthy()), nil
	}))

	// === - case equality, == unless overridden
	g.DefineBuiltin(k, "===", 1, 1, Method1(func(vm *VM, self, other Value) (Value, error) {
		return vm.EvalSend(IdentEq, self, []Value{other}, nil)
	}))

	// !
	g.DefineBuiltin(k, "!", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		return FromBool(!self.IsTruthy()), nil
	}))

	g.DefineBuiltin(k, "nil?", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		return FromBool(self.IsNil()), nil
	}))

	g.DefineBuiltin(k, "class", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		c := vm.g.ClassOf(self)
		for c.attached != nil {
			c = c.Super
		}
		return c.self, nil
	}))

	inspect := Method0(func(vm *VM, self Value) (Value, error) {
		return vm.g.NewString(vm.g.Inspect(self)), nil
	})
	g.DefineBuiltin(k, "inspect", 0, 0, inspect)
	g.DefineBuiltin(k, "to_s", 0, 0, inspect)

	// p - print inspected arguments, return them
	g.DefineBuiltin(k, "p", 0, -1, func(vm *VM, self Value, args *Args) (Value, error) {
		for _, v := range args.Values() {
			fmt.Fprintln(vm.g.Out, vm.g.Inspect(v))
		}
		return packValues(vm.g, args.Values()), nil
	})

	// puts - print arguments, strings bare
	g.DefineBuiltin(k, "puts", 0, -1, func(vm *VM, self Value, args *Args) (Value, error) {
		if args.Len() == 0 {
			fmt.Fprintln(vm.g.Out)
		}
		for _, v := range args.Values() {
			s, err := vm.toS(v)
			if err != nil {
				return Nil, err
			}
			fmt.Fprintln(vm.g.Out, s)
		}
		return Nil, nil
	})

	// raise - raise a RuntimeError with a message, or re-raise an exception
	g.DefineBuiltin(k, "raise", 0, 1, func(vm *VM, self Value, args *Args) (Value, error) {
		v := args.At(0)
		if v.IsRef() {
			switch o := vm.g.Deref(v).(type) {
			case *RException:
				return Nil, o.Err
			case *RString:
				return Nil, ErrRuntime("%s", o.S)
			}
		}
		if args.Len() == 0 {
			return Nil, ErrRuntime("unhandled exception")
		}
		return Nil, ErrType("exception class/object expected")
	})

	g.DefineBuiltin(k, "block_given?", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		return FromBool(vm.currentBlock() != nil), nil
	}))

	// proc / lambda - capture the block
	g.DefineBuiltin(k, "proc", 0, 0, func(vm *VM, self Value, args *Args) (Value, error) {
		if args.Block == nil {
			return Nil, ErrArgument("tried to create Proc object without a block")
		}
		return vm.BlockToProc(args.Block), nil
	})
	g.DefineBuiltin(k, "lambda", 0, 0, func(vm *VM, self Value, args *Args) (Value, error) {
		if args.Block == nil {
			return Nil, ErrArgument("tried to create Proc object without a block")
		}
		v := vm.BlockToProc(args.Block)
		if _, literal := args.Block.(BlockRef); literal {
			p, _ := vm.g.AsProc(v)
			p.Lambda = true
		}
		return v, nil
	})

	// loop - call the block until it raises StopIteration
	g.DefineBuiltin(k, "loop", 0, 0, func(vm *VM, self Value, args *Args) (Value, error) {
		if args.Block == nil {
			return vm.g.NewEnumerator(self, vm.g.Idents.Intern("loop"), nil).Value(), nil
		}
		for {
			if _, err := vm.EvalBlock(args.Block); err != nil {
				if IsStopIteration(err) {
					return err.(*RubyError).Value, nil
				}
				return Nil, err
			}
		}
	})

	// to_enum / enum_for - enumerator over self.method(*args)
	toEnum := func(vm *VM, self Value, args *Args) (Value, error) {
		method := IdentEach
		var rest []Value
		if args.Len() > 0 {
			m := args.At(0)
			if !m.IsSymbol() {
				return Nil, ErrType("%s is not a symbol", vm.g.Inspect(m))
			}
			method = m.Symbol()
			rest = args.Values()[1:]
		}
		return vm.g.NewEnumerator(self, method, rest).Value(), nil
	}
	g.DefineBuiltin(k, "to_enum", 0, -1, toEnum)
	g.DefineBuiltin(k, "enum_for", 0, -1, toEnum)

	// binding - the caller's local scope
	g.DefineBuiltin(k, "binding", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		hc, err := vm.NewBinding()
		if err != nil {
			return Nil, err
		}
		return hc.Value(), nil
	}))

	g.DefineBuiltin(k, "instance_variable_get", 1, 1, Method1(func(vm *VM, self, name Value) (Value, error) {
		if !name.IsSymbol() {
			return Nil, ErrType("%s is not a symbol", vm.g.Inspect(name))
		}
		return vm.getIvar(self, name.Symbol()), nil
	}))

	g.DefineBuiltin(k, "instance_variable_set", 2, 2, Method2(func(vm *VM, self, name, v Value) (Value, error) {
		if !name.IsSymbol() {
			return Nil, ErrType("%s is not a symbol", vm.g.Inspect(name))
		}
		return v, vm.setIvar(self, name.Symbol(), v)
	}))

	g.DefineBuiltin(g.NilClass, "to_s", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		return vm.g.NewString(""), nil
	}))
}

// toS converts v to a Go string the way Kernel#puts does.
func (vm *VM) toS(v Value) (string, error) {
	if s, ok := vm.g.AsString(v); ok {
		return s.S, nil
	}
	r, err := vm.EvalSend(IdentToS, v, nil, nil)
	if err != nil {
		return "", err
	}
	if s, ok := vm.g.AsString(r); ok {
		return s.S, nil
	}
	return vm.g.Inspect(v), nil
}

// ---------------------------------------------------------------------------
// Module / Class Primitives
// ---------------------------------------------------------------------------

func (g *Globals) registerModulePrimitives() {
	m := g.ModuleClass

	g.DefineBuiltin(m, "name", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		mod, _ := vm.g.AsModule(self)
		return vm.g.NewString(mod.Name(vm.g)), nil
	}))

	g.DefineBuiltin(m, "include", 1, -1, func(vm *VM, self Value, args *Args) (Value, error) {
		mod, _ := vm.g.AsModule(self)
		for _, v := range args.Values() {
			inc, ok := vm.g.AsModule(v)
			if !ok || !inc.IsModule {
				return Nil, ErrType("wrong argument type %s (expected Module)", vm.g.ClassOf(v).Name(vm.g))
			}
			vm.g.Include(mod, inc)
		}
		return self, nil
	})

	attr := func(reader, writer bool) BuiltinFunc {
		return func(vm *VM, self Value, args *Args) (Value, error) {
			mod, _ := vm.g.AsModule(self)
			for _, v := range args.Values() {
				if !v.IsSymbol() {
					return Nil, ErrType("%s is not a symbol", vm.g.Inspect(v))
				}
				vm.g.DefineAttr(mod, vm.g.Idents.Name(v.Symbol()), reader, writer)
			}
			return Nil, nil
		}
	}
	g.DefineBuiltin(m, "attr_reader", 0, -1, attr(true, false))
	g.DefineBuiltin(m, "attr_writer", 0, -1, attr(false, true))
	g.DefineBuiltin(m, "attr_accessor", 0, -1, attr(true, true))

	g.DefineBuiltin(m, "ancestors", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		mod, _ := vm.g.AsModule(self)
		var out []Value
		for _, a := range mod.Ancestors() {
			out = append(out, a.self)
		}
		return vm.g.NewArray(out...), nil
	}))

	// new - allocate an instance and run initialize
	g.DefineBuiltin(g.ClassClass, "new", 0, -1, func(vm *VM, self Value, args *Args) (Value, error) {
		class, _ := vm.g.AsModule(self)
		obj := vm.g.NewObject(class)
		defer vm.protect(obj)()
		if _, ok := vm.g.FindMethod(class, IdentInitialize); ok {
			if _, err := vm.EvalSend(IdentInitialize, obj, args.Values(), args.Block); err != nil {
				return Nil, err
			}
		}
		return obj, nil
	})
}
