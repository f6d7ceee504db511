package wire

import (
	"fmt"

	"github.com/chazu/garnet/vm"
)

// encoder numbers identifiers and functions as it walks the code
// reachable from an entry point.
type encoder struct {
	g      *vm.Globals
	unit   *Unit
	idents map[vm.IdentID]uint32
	funcs  map[vm.FnID]uint32
	queue  []vm.FnID
	err    error
}

// Encode captures entry, and every instruction sequence its code refers
// to, as a Unit.
func Encode(g *vm.Globals, entry vm.FnID) (*Unit, error) {
	e := &encoder{
		g:      g,
		unit:   &Unit{Version: FormatVersion, Idents: []string{""}},
		idents: map[vm.IdentID]uint32{vm.IdentNone: 0},
		funcs:  make(map[vm.FnID]uint32),
	}
	e.unit.Entry = e.fn(entry)
	for len(e.queue) > 0 && e.err == nil {
		fid := e.queue[0]
		e.queue = e.queue[1:]
		iseq, err := e.iseq(g.Methods.ISeq(fid))
		if err != nil {
			return nil, err
		}
		e.unit.ISeqs = append(e.unit.ISeqs, iseq)
	}
	if e.err != nil {
		return nil, e.err
	}
	if src := e.unit.ISeqs[0].SourcePath; src != "" {
		e.unit.Source = src
	}
	return e.unit, nil
}

func (e *encoder) ident(id vm.IdentID) uint32 {
	if n, ok := e.idents[id]; ok {
		return n
	}
	n := uint32(len(e.unit.Idents))
	e.unit.Idents = append(e.unit.Idents, e.g.Idents.Name(id))
	e.idents[id] = n
	return n
}

// fn numbers a function, queueing it on first sight. Only bytecode
// functions can travel in a Unit.
func (e *encoder) fn(fid vm.FnID) uint32 {
	if n, ok := e.funcs[fid]; ok {
		return n
	}
	if fid == 0 || int(fid) > e.g.Methods.Len() || e.g.Methods.Get(fid).Kind != vm.FuncRuby {
		if e.err == nil {
			e.err = fmt.Errorf("wire: function %d is not bytecode", fid)
		}
		return 0
	}
	n := uint32(len(e.funcs) + 1)
	e.funcs[fid] = n
	e.queue = append(e.queue, fid)
	return n
}

func (e *encoder) iseq(s *vm.ISeqInfo) (ISeq, error) {
	code := append([]byte(nil), s.Code...)
	err := vm.Relocate(code, vm.Relocator{
		Ident: func(id vm.IdentID) vm.IdentID { return vm.IdentID(e.ident(id)) },
		Func:  func(fid vm.FnID) vm.FnID { return vm.FnID(e.fn(fid)) },
	})
	if err != nil {
		return ISeq{}, fmt.Errorf("wire: %s: %w", e.g.Idents.Name(s.Name), err)
	}

	out := ISeq{
		Name:         e.ident(s.Name),
		Kind:         uint8(s.Kind),
		Code:         code,
		MethodCaches: s.MethodCacheSlots,
		ConstCaches:  s.ConstCacheSlots,
		SourcePath:   s.SourcePath,
		Slots:        s.Lvars,
		Params: Params{
			Req:      s.Params.Req,
			Opt:      s.Params.Opt,
			Rest:     uint8(s.Params.Rest),
			Post:     s.Params.Post,
			KwRest:   s.Params.KwRest,
			Block:    s.Params.Block,
			Delegate: s.Params.Delegate,
		},
	}
	for _, kw := range s.Params.Keywords {
		out.Params.Keywords = append(out.Params.Keywords, Keyword{Name: e.ident(kw.Name), Slot: uint32(kw.Slot)})
	}
	for _, name := range s.Lvar.Names {
		out.Locals = append(out.Locals, e.ident(name))
	}
	out.KwRestSlot = slotPtr(s.Lvar.KwRestSlot)
	out.BlockSlot = slotPtr(s.Lvar.BlockSlot)
	out.DelegateSlot = slotPtr(s.Lvar.DelegateSlot)

	for _, v := range s.Consts {
		c, err := e.constant(v)
		if err != nil {
			return ISeq{}, err
		}
		out.Consts = append(out.Consts, c)
	}
	for _, x := range s.ExceptionTable {
		out.Exceptions = append(out.Exceptions, Exception{Kind: uint8(x.Kind), Start: x.Start, End: x.End, Dest: x.Dest})
	}
	for _, l := range s.SourceMap {
		out.Lines = append(out.Lines, Line{Offset: l.Offset, Line: l.Line})
	}
	return out, nil
}

func slotPtr(p *vm.LvarID) *uint32 {
	if p == nil {
		return nil
	}
	n := uint32(*p)
	return &n
}

func (e *encoder) constant(v vm.Value) (Const, error) {
	switch {
	case v == vm.Nil:
		return Const{Kind: ConstNil}, nil
	case v == vm.True:
		return Const{Kind: ConstTrue}, nil
	case v == vm.False:
		return Const{Kind: ConstFalse}, nil
	case v.IsFixnum():
		return Const{Kind: ConstInt, Int: v.Fixnum()}, nil
	case v.IsFloat():
		return Const{Kind: ConstFloat, Float: v.Float()}, nil
	case v.IsSymbol():
		return Const{Kind: ConstSymbol, Ident: e.ident(v.Symbol())}, nil
	}
	if s, ok := e.g.AsString(v); ok {
		return Const{Kind: ConstString, Str: s.S}, nil
	}
	if a, ok := e.g.AsArray(v); ok {
		c := Const{Kind: ConstArray}
		for _, elem := range a.Elems {
			ec, err := e.constant(elem)
			if err != nil {
				return Const{}, err
			}
			c.Elems = append(c.Elems, ec)
		}
		return c, nil
	}
	return Const{}, fmt.Errorf("wire: literal %s cannot be encoded", e.g.Inspect(v))
}
