package main

import (
	"path/filepath"
	"testing"

	"github.com/chazu/garnet/stats"
	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/wire"
)

// writeUnit compiles a toplevel that evaluates 6 * 7 / 6, or divides by
// zero when raise is set, and writes it to dir.
func writeUnit(t *testing.T, dir string, raise bool) string {
	t.Helper()
	g := vm.NewGlobals(vm.DefaultOptions())
	b := vm.NewISeqBuilder(vm.IdentNone, vm.ISeqOther)
	b.EmitPushInt(6)
	b.EmitPushInt(7)
	b.Emit(vm.OpMul)
	if raise {
		b.EmitPushInt(0)
	} else {
		b.EmitPushInt(6)
	}
	b.Emit(vm.OpDiv)
	b.Emit(vm.OpReturn)
	fid := g.Methods.AddISeq(b.MustBuild())

	u, err := wire.Encode(g, fid)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := filepath.Join(dir, "main.gbc")
	if err := wire.WriteFile(path, u); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestRunCommandExitCode(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, false)
	cfg := config{opts: vm.DefaultOptions()}

	if code := handleRunCommand([]string{path}, cfg, false); code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}

	// The manifest entry is used when no unit is named.
	cfg.entry = path
	if code := handleRunCommand(nil, cfg, false); code != 7 {
		t.Errorf("exit code via entry = %d, want 7", code)
	}
}

func TestRunCommandRecordsStats(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, true)
	cfg := config{
		project: "demo",
		statsDB: filepath.Join(dir, ".garnet", "stats.db"),
		opts:    vm.DefaultOptions(),
	}

	if code := handleRunCommand([]string{path}, cfg, false); code != 1 {
		t.Errorf("exit code = %d, want 1 for an uncaught ZeroDivisionError", code)
	}

	store, err := stats.Open(cfg.statsDB)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	runs, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("recorded %d runs, want 1", len(runs))
	}
	if runs[0].Project != "demo" || runs[0].Unit != path || runs[0].Error == "" {
		t.Errorf("run = %+v", runs[0])
	}
}
