// Package stats records interpreter run statistics (collections, inline
// cache behaviour, fiber traffic) and persists them to SQLite.
package stats

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/garnet/vm"
)

// Run is the statistics of one program run.
type Run struct {
	ID       uuid.UUID
	Project  string
	Unit     string // path of the unit that ran
	Digest   string // hex SHA-256 of the unit
	Started  time.Time
	Finished time.Time
	Error    string // uncaught error, if the run failed

	IC      vm.ICStats
	Fibers  vm.FiberStats
	Alloc   vm.AllocStats
	GCCount uint64
	Cycles  []vm.GCStats
}

// Duration returns the wall time of the run.
func (r *Run) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Print writes a human-readable summary of r.
func (r *Run) Print(w io.Writer) {
	fmt.Fprintf(w, "run %s (%s)\n", r.ID, r.Duration().Round(time.Microsecond))
	if r.Unit != "" {
		fmt.Fprintf(w, "  unit:        %s\n", r.Unit)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  error:       %s\n", r.Error)
	}
	fmt.Fprintf(w, "  call sites:  %d (%d mono, %d poly, %d mega, %d unused)\n",
		r.IC.TotalCallSites, r.IC.Monomorphic, r.IC.Polymorphic, r.IC.Megamorphic, r.IC.Empty)
	fmt.Fprintf(w, "  cache:       %d hits, %d misses (%.1f%%)\n", r.IC.TotalHits, r.IC.TotalMisses, r.IC.HitRate)
	fmt.Fprintf(w, "  heap:        %d live, %d pages, %d allocated\n", r.Alloc.Live, r.Alloc.Pages, r.Alloc.TotalAllocated)
	fmt.Fprintf(w, "  collections: %d\n", r.GCCount)
	fmt.Fprintf(w, "  fibers:      %d started, %d released, %d stacks reused\n",
		r.Fibers.Started, r.Fibers.Released, r.Fibers.Reused)
}

// Recorder gathers the statistics of a run on one interpreter.
type Recorder struct {
	g   *vm.Globals
	run Run
}

// NewRecorder starts recording on g. It installs the collector's
// OnCollect hook, chaining any hook already present.
func NewRecorder(g *vm.Globals, project string) *Recorder {
	r := &Recorder{
		g: g,
		run: Run{
			ID:      uuid.New(),
			Project: project,
			Started: time.Now(),
		},
	}
	prev := g.GC.OnCollect
	g.GC.OnCollect = func(s *vm.GCStats) {
		r.run.Cycles = append(r.run.Cycles, *s)
		if prev != nil {
			prev(s)
		}
	}
	return r
}

// SetUnit records which unit is being run.
func (r *Recorder) SetUnit(path string, digest [32]byte) {
	r.run.Unit = path
	r.run.Digest = hex.EncodeToString(digest[:])
}

// Finish snapshots the interpreter counters and returns the run.
func (r *Recorder) Finish(runErr error) *Run {
	r.run.Finished = time.Now()
	if runErr != nil {
		r.run.Error = runErr.Error()
	}
	r.run.IC = vm.CollectICStats(r.g.Methods)
	r.run.Fibers = r.g.FiberStats()
	r.run.Alloc = r.g.Alloc.Stats()
	r.run.GCCount = r.g.GC.Count()
	return &r.run
}
