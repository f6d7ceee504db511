package stats

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/chazu/garnet/vm"
)

// recordRun runs a little workload on a fresh interpreter: one
// collection, a call site and a finished fiber.
func recordRun(t *testing.T) *Run {
	t.Helper()
	g := vm.NewGlobals(vm.DefaultOptions())
	rec := NewRecorder(g, "demo")
	rec.SetUnit("main.gbc", [32]byte{0xab, 0xcd})

	for i := 0; i < 10; i++ {
		g.NewString("garbage")
	}
	g.GC.Collect()

	b := vm.NewISeqBuilder(vm.IdentNone, vm.ISeqOther)
	b.Emit(vm.OpPushNil)
	b.EmitSend(g.Idents.Intern("nil?"), 0, 0, 0)
	b.Emit(vm.OpReturn)
	if _, err := g.Main.RunTop(b.MustBuild()); err != nil {
		t.Fatalf("RunTop: %v", err)
	}

	f := g.NewFiber(g.Main.NewHostProc(func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		return args[0], nil
	}))
	if _, err := f.Resume([]vm.Value{vm.FromFixnum(1)}); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	return rec.Finish(errors.New("boom"))
}

func TestRecorder(t *testing.T) {
	r := recordRun(t)

	if r.ID == uuid.Nil {
		t.Error("run has no id")
	}
	if r.Project != "demo" || r.Unit != "main.gbc" {
		t.Errorf("project/unit = %q/%q, want demo/main.gbc", r.Project, r.Unit)
	}
	if !strings.HasPrefix(r.Digest, "abcd") || len(r.Digest) != 64 {
		t.Errorf("digest = %q", r.Digest)
	}
	if r.Error != "boom" {
		t.Errorf("error = %q, want boom", r.Error)
	}
	if r.GCCount != 1 || len(r.Cycles) != 1 {
		t.Errorf("collections: count %d, cycles %d; want 1, 1", r.GCCount, len(r.Cycles))
	}
	if r.IC.TotalCallSites != 1 {
		t.Errorf("call sites = %d, want 1", r.IC.TotalCallSites)
	}
	if r.Fibers.Started != 1 || r.Fibers.Released != 1 {
		t.Errorf("fibers = %+v, want 1 started and released", r.Fibers)
	}
	if r.Finished.Before(r.Started) {
		t.Error("run finished before it started")
	}
}

func TestRecorderChainsHook(t *testing.T) {
	g := vm.NewGlobals(vm.DefaultOptions())
	calls := 0
	g.GC.OnCollect = func(*vm.GCStats) { calls++ }
	rec := NewRecorder(g, "")
	g.GC.Collect()

	if calls != 1 {
		t.Errorf("previous hook ran %d times, want 1", calls)
	}
	if r := rec.Finish(nil); len(r.Cycles) != 1 || r.Error != "" {
		t.Errorf("cycles = %d, error = %q", len(r.Cycles), r.Error)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stats.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	r := recordRun(t)
	if err := s.Save(r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != r.ID || got.Project != r.Project || got.Digest != r.Digest || got.Error != r.Error {
		t.Errorf("Get = %+v, want %+v", got, r)
	}
	if !got.Started.Equal(r.Started) || !got.Finished.Equal(r.Finished) {
		t.Errorf("times: got %v..%v, want %v..%v", got.Started, got.Finished, r.Started, r.Finished)
	}
	if got.IC.TotalCallSites != r.IC.TotalCallSites || got.IC.TotalHits != r.IC.TotalHits {
		t.Errorf("IC = %+v, want %+v", got.IC, r.IC)
	}
	if got.Fibers.Started != r.Fibers.Started || got.GCCount != r.GCCount {
		t.Errorf("fibers %+v gc %d, want %+v gc %d", got.Fibers, got.GCCount, r.Fibers, r.GCCount)
	}
	if len(got.Cycles) != 1 || got.Cycles[0].Marked != r.Cycles[0].Marked ||
		got.Cycles[0].Swept != r.Cycles[0].Swept || got.Cycles[0].Duration != r.Cycles[0].Duration {
		t.Errorf("cycles = %+v, want %+v", got.Cycles, r.Cycles)
	}

	if _, err := s.Get(uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrRunNotFound", err)
	}
}

func TestStoreRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	first := recordRun(t)
	second := recordRun(t)
	second.Started = first.Started.Add(1)
	for _, r := range []*Run{first, second} {
		if err := s.Save(r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if err := s.Save(first); err == nil {
		t.Error("saving the same run twice should fail")
	}
	s.Close()

	// Reopening sees the persisted runs.
	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	runs, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second.ID || runs[1].ID != first.ID {
		t.Fatalf("Recent returned %d runs in the wrong order", len(runs))
	}
	if runs, _ := s.Recent(1); len(runs) != 1 {
		t.Errorf("Recent(1) returned %d runs", len(runs))
	}
}

func TestRunPrint(t *testing.T) {
	var buf bytes.Buffer
	recordRun(t).Print(&buf)
	out := buf.String()
	for _, want := range []string{"unit:        main.gbc", "error:       boom", "collections: 1", "fibers:      1 started"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
