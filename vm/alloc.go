package vm

import (
	"math/bits"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Allocator: page-based slab arena with mark bits and a free list
// ---------------------------------------------------------------------------

const (
	bitmapWords = 63
	pageCells   = 64 * bitmapWords

	// DefaultGCThreshold is the number of allocations between automatic
	// collections.
	DefaultGCThreshold = 4096
)

// cell is one allocator slot. A cell is either live (obj != nil) or on
// the free list (free set, next links to the following free cell).
type cell struct {
	obj  Object
	gen  uint16
	free bool
	next int32 // global index of the next free cell, -1 at the end
}

type page struct {
	cells [pageCells]cell
	mark  [bitmapWords]uint64
	used  int // cells handed out by the bump pointer
	live  int // live cells after the last sweep
}

func (p *page) isMarked(i int) bool { return p.mark[i/64]&(1<<(i%64)) != 0 }

func (p *page) setMark(i int) bool {
	w, b := i/64, uint64(1)<<(i%64)
	if p.mark[w]&b != 0 {
		return true
	}
	p.mark[w] |= b
	return false
}

func (p *page) reset() {
	for i := 0; i < p.used; i++ {
		gen := p.cells[i].gen
		p.cells[i] = cell{gen: gen}
	}
	p.mark = [bitmapWords]uint64{}
	p.used = 0
	p.live = 0
}

// AllocStats is a snapshot of allocator occupancy.
type AllocStats struct {
	Live           int    // cells holding an object
	Free           int    // cells on the free list
	TotalAllocated uint64 // allocations since creation
	Pages          int    // pages in use
	FreePages      int    // empty pages held for reuse
	Count          uint64 // completed collections
	MarkCount      int    // cells marked in the last collection
}

// Allocator owns every heap cell of one interpreter.
type Allocator struct {
	pages     []*page
	freePages []int // indices of released pages
	current   int   // page the bump pointer is in, -1 if none

	freeHead  int32
	freeCount int

	live           int
	totalAllocated uint64
	markCount      int
	count          uint64

	sinceGC   int
	threshold int
	pending   bool
	enabled   atomic.Bool

	// debug turns on consistency checks that panic on corruption.
	debug bool
}

// NewAllocator creates an empty allocator.
func NewAllocator(threshold int, debug bool) *Allocator {
	if threshold <= 0 {
		threshold = DefaultGCThreshold
	}
	a := &Allocator{
		current:   -1,
		freeHead:  -1,
		threshold: threshold,
		debug:     debug,
	}
	a.enabled.Store(true)
	return a
}

func splitIndex(idx int32) (int, int) {
	return int(idx) / pageCells, int(idx) % pageCells
}

// Alloc places obj in a cell and returns a reference to it. Free cells
// are reused before fresh ones. Alloc never collects; crossing the
// threshold only requests a collection at the next safepoint.
func (a *Allocator) Alloc(obj Object) Value {
	a.sinceGC++
	if a.sinceGC >= a.threshold {
		a.sinceGC = 0
		if a.enabled.Load() {
			a.pending = true
		}
	}

	var pi, ci int
	switch {
	case a.freeHead >= 0:
		pi, ci = splitIndex(a.freeHead)
		c := &a.pages[pi].cells[ci]
		if a.debug && (!c.free || c.obj != nil) {
			internalPanic("free list entry %d:%d is live", pi, ci)
		}
		a.freeHead = c.next
		a.freeCount--
	default:
		pi = a.bumpPage()
		p := a.pages[pi]
		ci = p.used
		p.used++
	}

	p := a.pages[pi]
	c := &p.cells[ci]
	c.obj = obj
	c.free = false
	c.next = -1
	p.live++
	a.live++
	a.totalAllocated++
	return FromRef(makeRef(pi, ci, c.gen))
}

// bumpPage returns a page with room past its bump pointer.
func (a *Allocator) bumpPage() int {
	if a.current >= 0 && a.pages[a.current].used < pageCells {
		return a.current
	}
	if n := len(a.freePages); n > 0 {
		a.current = a.freePages[n-1]
		a.freePages = a.freePages[:n-1]
		return a.current
	}
	if len(a.pages) > refPageMask {
		internalPanic("heap exhausted: %d pages", len(a.pages))
	}
	a.pages = append(a.pages, &page{})
	a.current = len(a.pages) - 1
	return a.current
}

// lookup resolves a reference to its cell, checking it is live.
func (a *Allocator) lookup(r Ref) (*page, *cell) {
	pi, ci := r.Page(), r.Cell()
	if pi >= len(a.pages) || ci >= pageCells {
		internalPanic("pointer outside any page: %v", r)
	}
	p := a.pages[pi]
	c := &p.cells[ci]
	if c.free || c.obj == nil {
		internalPanic("reference to freed cell %v", r)
	}
	if c.gen != r.Gen() {
		internalPanic("stale reference %v (cell generation %d)", r, c.gen)
	}
	return p, c
}

// Get returns the object behind r.
func (a *Allocator) Get(r Ref) Object {
	_, c := a.lookup(r)
	return c.obj
}

// Replace swaps the object stored behind r.
func (a *Allocator) Replace(r Ref, obj Object) {
	_, c := a.lookup(r)
	c.obj = obj
}

// ---------------------------------------------------------------------------
// Collection phases
// ---------------------------------------------------------------------------

// ClearMark zeroes every mark bitmap.
func (a *Allocator) ClearMark() {
	for _, p := range a.pages {
		p.mark = [bitmapWords]uint64{}
	}
	a.markCount = 0
}

// MarkValue marks the cell v refers to and everything reachable from it.
// Non-reference values are ignored. It returns true if the cell was
// already marked in this cycle.
func (a *Allocator) MarkValue(v Value) bool {
	if !v.IsRef() {
		return false
	}
	return a.MarkRef(v.Ref())
}

// MarkRef marks the cell r refers to. Marking is idempotent; the result
// reports whether the bit was already set.
func (a *Allocator) MarkRef(r Ref) bool {
	pi, ci := r.Page(), r.Cell()
	if pi >= len(a.pages) || ci >= pageCells {
		internalPanic("mark: pointer outside any page: %v", r)
	}
	p := a.pages[pi]
	c := &p.cells[ci]
	if a.debug {
		if c.free {
			internalPanic("mark: cell %v is on the free list", r)
		}
		if c.gen != r.Gen() {
			internalPanic("mark: stale reference %v (cell generation %d)", r, c.gen)
		}
	}
	if c.obj == nil {
		return true
	}
	if p.setMark(ci) {
		return true
	}
	a.markCount++
	c.obj.Mark(a)
	return false
}

// Sweep frees every unmarked cell and rebuilds the free list. Pages left
// without live cells are released to the free-page pool, except that at
// least one page is always kept.
func (a *Allocator) Sweep() int {
	swept := 0
	a.freeHead = -1
	a.freeCount = 0
	kept := 0

	for pi := len(a.pages) - 1; pi >= 0; pi-- {
		p := a.pages[pi]
		if p.used == 0 {
			continue
		}
		for ci := 0; ci < p.used; ci++ {
			c := &p.cells[ci]
			if c.free {
				if a.debug && p.isMarked(ci) {
					internalPanic("sweep: marked cell %d:%d found on the free list", pi, ci)
				}
				continue
			}
			if p.isMarked(ci) {
				continue
			}
			if f, ok := c.obj.(Freer); ok {
				f.Free()
			}
			c.obj = nil
			c.free = true
			c.gen++
			p.live--
			a.live--
			swept++
		}

		if p.live == 0 && kept+pi > 0 {
			p.reset()
			a.freePages = append(a.freePages, pi)
			if a.current == pi {
				a.current = -1
			}
			continue
		}
		kept++

		// Thread free cells onto the list in ascending order.
		for ci := p.used - 1; ci >= 0; ci-- {
			c := &p.cells[ci]
			if !c.free {
				continue
			}
			c.next = a.freeHead
			a.freeHead = int32(pi*pageCells + ci)
			a.freeCount++
		}
	}
	a.count++
	return swept
}

// ---------------------------------------------------------------------------
// Controls and statistics
// ---------------------------------------------------------------------------

// SetEnabled turns automatic collection on or off. Explicit collections
// run either way.
func (a *Allocator) SetEnabled(enabled bool) {
	a.enabled.Store(enabled)
	if !enabled {
		a.pending = false
	}
}

// IsEnabled reports whether automatic collection is on.
func (a *Allocator) IsEnabled() bool {
	return a.enabled.Load()
}

// Pending reports whether the threshold was crossed since the last
// collection.
func (a *Allocator) Pending() bool {
	return a.pending
}

// Threshold returns the allocation count between automatic collections.
func (a *Allocator) Threshold() int {
	return a.threshold
}

// SetThreshold changes the allocation count between automatic collections.
func (a *Allocator) SetThreshold(n int) {
	if n > 0 {
		a.threshold = n
	}
}

// Stats returns a snapshot of allocator occupancy.
func (a *Allocator) Stats() AllocStats {
	return AllocStats{
		Live:           a.live,
		Free:           a.freeCount,
		TotalAllocated: a.totalAllocated,
		Pages:          len(a.pages) - len(a.freePages),
		FreePages:      len(a.freePages),
		Count:          a.count,
		MarkCount:      a.markCount,
	}
}

// Live returns the number of live cells.
func (a *Allocator) Live() int {
	return a.live
}

// MarkedBits counts set mark bits across all pages.
func (a *Allocator) MarkedBits() int {
	n := 0
	for _, p := range a.pages {
		for _, w := range p.mark {
			n += bits.OnesCount64(w)
		}
	}
	return n
}

// FreeList returns the references on the free list, in list order.
func (a *Allocator) FreeList() []Ref {
	var out []Ref
	for idx := a.freeHead; idx >= 0; {
		pi, ci := splitIndex(idx)
		c := &a.pages[pi].cells[ci]
		out = append(out, makeRef(pi, ci, c.gen))
		idx = c.next
	}
	return out
}
