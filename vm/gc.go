package vm

import (
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Collector: mark-sweep over the allocator, driven from VM safepoints
// ---------------------------------------------------------------------------

// GCStats holds statistics from a single collection.
type GCStats struct {
	Marked    int
	Swept     int
	Live      int
	Duration  time.Duration
	Timestamp time.Time
}

// Collector runs collections for one interpreter. Automatic collections
// are requested by the allocator when its threshold is crossed and run at
// the next safepoint (method entry or a backward jump); explicit ones run
// immediately.
type Collector struct {
	g   *Globals
	log commonlog.Logger

	// OnCollect, when set, is called after every collection.
	OnCollect func(*GCStats)

	// Statistics
	cycleCount atomic.Uint64
	lastStats  atomic.Value // *GCStats
}

// NewCollector creates the collector for g.
func NewCollector(g *Globals) *Collector {
	return &Collector{g: g, log: commonlog.GetLogger("garnet.gc")}
}

// SetEnabled enables or disables automatic collection. Explicit
// collections still run.
func (c *Collector) SetEnabled(enabled bool) {
	c.g.Alloc.SetEnabled(enabled)
}

// IsEnabled returns whether automatic collection is on.
func (c *Collector) IsEnabled() bool {
	return c.g.Alloc.IsEnabled()
}

// Count returns the total number of collections performed.
func (c *Collector) Count() uint64 {
	return c.cycleCount.Load()
}

// LastStats returns statistics from the most recent collection, or nil if
// none has run yet.
func (c *Collector) LastStats() *GCStats {
	v := c.lastStats.Load()
	if v == nil {
		return nil
	}
	return v.(*GCStats)
}

// Collect performs a full collection regardless of the enabled flag.
func (c *Collector) Collect() *GCStats {
	start := time.Now()
	a := c.g.Alloc

	a.ClearMark()
	c.markRoots(a)
	marked := a.markCount
	swept := a.Sweep()
	a.pending = false

	stats := &GCStats{
		Marked:    marked,
		Swept:     swept,
		Live:      a.Live(),
		Duration:  time.Since(start),
		Timestamp: start,
	}
	c.cycleCount.Add(1)
	c.lastStats.Store(stats)

	c.log.Debug("collection", "marked", marked, "swept", swept, "live", stats.Live, "duration", stats.Duration)
	if c.OnCollect != nil {
		c.OnCollect(stats)
	}
	return stats
}

// SweepNow is Collect under the name used for on-demand sweeps.
func (c *Collector) SweepNow() *GCStats {
	return c.Collect()
}

// safepoint runs a requested automatic collection.
func (c *Collector) safepoint() {
	if c.g.Alloc.pending && c.g.Alloc.IsEnabled() {
		c.Collect()
	}
}

// markRoots marks everything the interpreter can reach without going
// through another heap cell: classes, literal pools, globals and every
// executing VM. Suspended fibers are reached through their objects.
func (c *Collector) markRoots(a *Allocator) {
	g := c.g
	a.MarkValue(g.ObjectClass.self)
	a.MarkValue(g.MainObject)
	for _, v := range g.gvars {
		a.MarkValue(v)
	}
	g.Methods.mark(a)
	for _, vm := range g.active {
		vm.mark(a)
	}
}
