package main

import (
	"fmt"

	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/wire"
)

// handleDisasmCommand processes `garnet disasm`: every sequence of the
// unit with its parameters, literals and exception table.
func handleDisasmCommand(args []string, cfg config) {
	path := unitPath(args, cfg)
	unit, err := wire.ReadFile(path)
	if err != nil {
		fatalf("%v", err)
	}

	g := vm.NewGlobals(cfg.opts)
	infos, err := wire.LoadAll(g, unit)
	if err != nil {
		fatalf("%v", err)
	}

	for i, info := range infos {
		if i > 0 {
			fmt.Println()
		}
		name := g.Idents.Name(info.Name)
		if name == "" {
			name = "<" + info.Kind.String() + ">"
		}
		marker := ""
		if uint32(i+1) == unit.Entry {
			marker = " (entry)"
		}
		fmt.Printf("== %s #%d%s\n", name, info.Method, marker)
		p := info.Params
		fmt.Printf("   params: req=%d opt=%d rest=%d post=%d kw=%d kwrest=%v block=%v\n",
			p.Req, p.Opt, p.Rest, p.Post, len(p.Keywords), p.KwRest, p.Block)
		if len(info.Lvar.Names) > 0 {
			fmt.Print("   locals:")
			for _, id := range info.Lvar.Names {
				fmt.Printf(" %s", g.Idents.Name(id))
			}
			fmt.Println()
		}
		for n, c := range info.Consts {
			fmt.Printf("   const[%d] = %s\n", n, g.Inspect(c))
		}
		for _, x := range info.ExceptionTable {
			fmt.Printf("   %s %d..%d -> %d\n", exceptionKindName(x.Kind), x.Start, x.End, x.Dest)
		}
		fmt.Println(vm.Disassemble(info.Code, g.Idents))
	}
}

func exceptionKindName(k vm.ExceptionKind) string {
	switch k {
	case vm.ExceptionRescue:
		return "rescue"
	case vm.ExceptionEnsure:
		return "ensure"
	case vm.ExceptionRetry:
		return "retry"
	}
	return fmt.Sprintf("kind(%d)", k)
}
