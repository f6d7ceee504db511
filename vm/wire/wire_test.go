package wire

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/garnet/vm"
)

// buildProgram registers
//
//	def call_with(n) = yield(n)
//	[call_with(21) { |x| x * 2 }, :tag, [:k, "v"]]
//
// with g and returns the toplevel function.
func buildProgram(t *testing.T, g *vm.Globals) vm.FnID {
	t.Helper()
	id := g.Idents.Intern

	m := vm.NewISeqBuilder(id("call_with"), vm.ISeqMethod)
	n := m.AddLocal(id("n"))
	m.SetParams(vm.ISeqParams{Req: 1})
	m.EmitLocal(vm.OpGetLocal, n)
	m.EmitU32(vm.OpYield, 1)
	m.Emit(vm.OpReturn)
	method := g.Methods.AddISeq(m.MustBuild())

	blk := vm.NewISeqBuilder(vm.IdentNone, vm.ISeqBlock)
	x := blk.AddLocal(id("x"))
	blk.SetParams(vm.ISeqParams{Req: 1})
	blk.EmitLocal(vm.OpGetLocal, x)
	blk.EmitPushInt(2)
	blk.Emit(vm.OpMul)
	blk.Emit(vm.OpReturn)
	block := g.Methods.AddISeq(blk.MustBuild())

	top := vm.NewISeqBuilder(vm.IdentNone, vm.ISeqOther)
	top.SetSourcePath("prog.rb")
	top.AddLine(1)
	top.EmitDefMethod(id("call_with"), method, false)
	top.Emit(vm.OpPop)
	top.Emit(vm.OpPushSelf)
	top.EmitPushInt(21)
	top.EmitSend(id("call_with"), 1, 0, block)
	top.EmitPushVal(vm.FromSymbol(id("tag")))
	top.EmitConstVal(g.NewArray(vm.FromSymbol(id("k")), g.NewString("v")))
	top.EmitU32(vm.OpCreateArray, 3)
	top.Emit(vm.OpReturn)
	return g.Methods.AddISeq(top.MustBuild())
}

// freshGlobals returns an interpreter whose identifier and function
// numbering differs from the one the program was built in.
func freshGlobals(t *testing.T) *vm.Globals {
	t.Helper()
	g := vm.NewGlobals(vm.DefaultOptions())
	g.Idents.InternAll("pad_a", "pad_b", "pad_c", "k")
	pad := vm.NewISeqBuilder(g.Idents.Intern("pad"), vm.ISeqMethod)
	pad.Emit(vm.OpPushNil)
	pad.Emit(vm.OpReturn)
	g.Methods.AddISeq(pad.MustBuild())
	return g
}

func TestEncodeLoadRun(t *testing.T) {
	src := vm.NewGlobals(vm.DefaultOptions())
	entry := buildProgram(t, src)

	u, err := Encode(src, entry)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(u.ISeqs) != 3 {
		t.Errorf("ISeqs: got %d, want 3", len(u.ISeqs))
	}
	if u.Entry != 1 {
		t.Errorf("Entry: got %d, want 1", u.Entry)
	}
	if u.Source != "prog.rb" {
		t.Errorf("Source: got %q, want %q", u.Source, "prog.rb")
	}

	data, err := Marshal(u)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	dst := freshGlobals(t)
	info, err := Load(dst, got)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if info.SourcePath != "prog.rb" || info.LineAt(0) != 1 {
		t.Errorf("source info: got %q line %d", info.SourcePath, info.LineAt(0))
	}

	v, err := dst.Main.RunTop(info)
	if err != nil {
		t.Fatalf("RunTop: %v", err)
	}
	if s := dst.Inspect(v); s != `[42, :tag, [:k, "v"]]` {
		t.Errorf("result: got %s, want [42, :tag, [:k, \"v\"]]", s)
	}
}

func TestLoadRejectsBadEntry(t *testing.T) {
	u := &Unit{Version: FormatVersion, Idents: []string{""}}
	if _, err := Load(freshGlobals(t), u); err == nil {
		t.Error("expected error for a unit without sequences")
	}
}

func TestLoadRejectsOutOfRangeOperands(t *testing.T) {
	g := vm.NewGlobals(vm.DefaultOptions())
	u, err := Encode(g, buildProgram(t, g))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	u.Idents = u.Idents[:1]
	_, err = Load(freshGlobals(t), u)
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Errorf("Load with truncated idents: got %v, want out of range", err)
	}

	u, _ = Encode(g, buildProgram(t, g))
	u.ISeqs = u.ISeqs[:1]
	_, err = Load(freshGlobals(t), u)
	if err == nil || !strings.Contains(err.Error(), "function") {
		t.Errorf("Load with missing sequences: got %v, want function out of range", err)
	}
}

func TestEncodeRejectsBuiltin(t *testing.T) {
	g := vm.NewGlobals(vm.DefaultOptions())
	fid, ok := g.FindMethod(g.ObjectClass, g.Idents.Intern("puts"))
	if !ok {
		t.Fatal("puts not found")
	}
	if _, err := Encode(g, fid); err == nil {
		t.Error("expected error encoding a builtin")
	}
}

func TestUnmarshalVersionMismatch(t *testing.T) {
	data, err := Marshal(&Unit{Version: FormatVersion + 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	_, err = Unmarshal(data)
	if err == nil || !strings.Contains(err.Error(), "unsupported unit version") {
		t.Errorf("got %v, want version error", err)
	}
}

func TestDigestStable(t *testing.T) {
	g1 := vm.NewGlobals(vm.DefaultOptions())
	u1, err := Encode(g1, buildProgram(t, g1))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	g2 := freshGlobals(t)
	u2, err := Encode(g2, buildProgram(t, g2))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	d1, err := Digest(u1)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	d2, _ := Digest(u2)
	if d1 != d2 {
		t.Error("digest depends on interpreter numbering")
	}

	u2.ISeqs[0].SourcePath = "other.rb"
	if d3, _ := Digest(u2); d3 == d1 {
		t.Error("digest did not change with content")
	}
}

func TestFileRoundTrip(t *testing.T) {
	g := vm.NewGlobals(vm.DefaultOptions())
	u, err := Encode(g, buildProgram(t, g))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	path := filepath.Join(t.TempDir(), "prog.gbc")
	if err := WriteFile(path, u); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got.Idents) != len(u.Idents) || len(got.ISeqs) != len(u.ISeqs) {
		t.Errorf("round trip: got %d idents / %d seqs, want %d / %d",
			len(got.Idents), len(got.ISeqs), len(u.Idents), len(u.ISeqs))
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.gbc")); err == nil {
		t.Error("expected error for missing file")
	}
}
