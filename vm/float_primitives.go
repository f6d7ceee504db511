package vm

import "math"

// ---------------------------------------------------------------------------
// Float Primitives
// ---------------------------------------------------------------------------

func (g *Globals) registerFloatPrimitives() {
	c := g.FloatClass
	g.registerOperatorPrimitives(c)

	g.DefineBuiltin(c, "to_s", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		return vm.g.NewString(vm.g.Inspect(self)), nil
	}))

	// to_i - truncate toward zero
	g.DefineBuiltin(c, "to_i", 0, 0, Method0(func(vm *VM, self Value) (Value, error) {
		f := self.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Nil, ErrDomain("%s", vm.g.Inspect(self))
		}
		if f > float64(MaxFixnum) || f < float64(MinFixnum) {
			return Nil, ErrRange("float %s out of range of integer", vm.g.Inspect(self))
		}
		return fixnum(int64(math.Trunc(f)))
	}))
}
