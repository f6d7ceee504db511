package wire

import (
	"fmt"

	"github.com/chazu/garnet/vm"
)

// Load registers every instruction sequence of u with g and returns the
// entry sequence, ready for VM.RunTop.
func Load(g *vm.Globals, u *Unit) (*vm.ISeqInfo, error) {
	infos, err := LoadAll(g, u)
	if err != nil {
		return nil, err
	}
	return infos[u.Entry-1], nil
}

// LoadAll is like Load but returns every sequence, in unit order.
func LoadAll(g *vm.Globals, u *Unit) ([]*vm.ISeqInfo, error) {
	if u.Entry == 0 || int(u.Entry) > len(u.ISeqs) {
		return nil, fmt.Errorf("wire: entry %d out of range (%d sequences)", u.Entry, len(u.ISeqs))
	}

	ids := make([]vm.IdentID, len(u.Idents))
	for i, name := range u.Idents {
		ids[i] = g.Idents.Intern(name)
	}
	ident := func(n uint32) (vm.IdentID, error) {
		if int(n) >= len(ids) {
			return 0, fmt.Errorf("identifier %d out of range", n)
		}
		return ids[n], nil
	}

	infos := make([]*vm.ISeqInfo, len(u.ISeqs))
	for i := range u.ISeqs {
		info, err := decodeISeq(g, &u.ISeqs[i], ident, len(u.ISeqs))
		if err != nil {
			return nil, fmt.Errorf("wire: sequence %d: %w", i+1, err)
		}
		infos[i] = info
	}

	fids := make([]vm.FnID, len(infos))
	for i, info := range infos {
		fids[i] = g.Methods.AddISeq(info)
	}
	// Function operands were range checked while decoding.
	toFid := vm.Relocator{Func: func(n vm.FnID) vm.FnID { return fids[n-1] }}
	for _, info := range infos {
		if err := vm.Relocate(info.Code, toFid); err != nil {
			return nil, fmt.Errorf("wire: %w", err)
		}
	}
	return infos, nil
}

func decodeISeq(g *vm.Globals, s *ISeq, ident func(uint32) (vm.IdentID, error), nseqs int) (*vm.ISeqInfo, error) {
	name, err := ident(s.Name)
	if err != nil {
		return nil, err
	}
	code := append([]byte(nil), s.Code...)

	var operandErr error
	relocErr := vm.Relocate(code, vm.Relocator{
		Ident: func(id vm.IdentID) vm.IdentID {
			out, err := ident(uint32(id))
			if err != nil && operandErr == nil {
				operandErr = err
			}
			return out
		},
		Func: func(n vm.FnID) vm.FnID {
			if int(n) > nseqs && operandErr == nil {
				operandErr = fmt.Errorf("function %d out of range", n)
			}
			return n
		},
	})
	if relocErr != nil {
		return nil, relocErr
	}
	if operandErr != nil {
		return nil, operandErr
	}

	info := &vm.ISeqInfo{
		Name:             name,
		Kind:             vm.ISeqKind(s.Kind),
		Code:             code,
		Lvars:            s.Slots,
		MethodCacheSlots: s.MethodCaches,
		ConstCacheSlots:  s.ConstCaches,
		SourcePath:       s.SourcePath,
		Params: vm.ISeqParams{
			Req:      s.Params.Req,
			Opt:      s.Params.Opt,
			Rest:     vm.RestKind(s.Params.Rest),
			Post:     s.Params.Post,
			KwRest:   s.Params.KwRest,
			Block:    s.Params.Block,
			Delegate: s.Params.Delegate,
		},
	}
	for _, kw := range s.Params.Keywords {
		id, err := ident(kw.Name)
		if err != nil {
			return nil, err
		}
		info.Params.Keywords = append(info.Params.Keywords, vm.KeywordParam{Name: id, Slot: vm.LvarID(kw.Slot)})
	}
	for _, n := range s.Locals {
		id, err := ident(n)
		if err != nil {
			return nil, err
		}
		info.Lvar.Names = append(info.Lvar.Names, id)
	}
	for _, p := range []struct {
		src *uint32
		dst **vm.LvarID
	}{
		{s.KwRestSlot, &info.Lvar.KwRestSlot},
		{s.BlockSlot, &info.Lvar.BlockSlot},
		{s.DelegateSlot, &info.Lvar.DelegateSlot},
	} {
		if p.src == nil {
			continue
		}
		if int(*p.src) >= len(s.Locals) {
			return nil, fmt.Errorf("parameter slot %d out of range", *p.src)
		}
		slot := vm.LvarID(*p.src)
		*p.dst = &slot
	}

	for _, c := range s.Consts {
		v, err := decodeConst(g, c, ident)
		if err != nil {
			return nil, err
		}
		info.Consts = append(info.Consts, v)
	}
	for _, x := range s.Exceptions {
		if x.Start < 0 || x.End > len(code) || x.Dest < 0 || x.Dest > len(code) {
			return nil, fmt.Errorf("exception entry %d..%d -> %d outside the code", x.Start, x.End, x.Dest)
		}
		info.ExceptionTable = append(info.ExceptionTable, vm.ExceptionEntry{
			Kind: vm.ExceptionKind(x.Kind), Start: x.Start, End: x.End, Dest: x.Dest,
		})
	}
	for _, l := range s.Lines {
		info.SourceMap = append(info.SourceMap, vm.SourceLoc{Offset: l.Offset, Line: l.Line})
	}
	return info, nil
}

func decodeConst(g *vm.Globals, c Const, ident func(uint32) (vm.IdentID, error)) (vm.Value, error) {
	switch c.Kind {
	case ConstNil:
		return vm.Nil, nil
	case ConstTrue:
		return vm.True, nil
	case ConstFalse:
		return vm.False, nil
	case ConstInt:
		v, ok := vm.TryFromFixnum(c.Int)
		if !ok {
			return vm.Nil, fmt.Errorf("integer literal %d out of range", c.Int)
		}
		return v, nil
	case ConstFloat:
		return vm.FromFloat(c.Float), nil
	case ConstSymbol:
		id, err := ident(c.Ident)
		if err != nil {
			return vm.Nil, err
		}
		return vm.FromSymbol(id), nil
	case ConstString:
		return g.NewString(c.Str), nil
	case ConstArray:
		elems := make([]vm.Value, len(c.Elems))
		for i, ec := range c.Elems {
			v, err := decodeConst(g, ec, ident)
			if err != nil {
				return vm.Nil, err
			}
			elems[i] = v
		}
		return g.NewArray(elems...), nil
	}
	return vm.Nil, fmt.Errorf("unknown literal kind %d", c.Kind)
}
