package vm

// Inline Caching for Method Dispatch
//
// Every call site and constant reference owns a cache slot. All slots are
// validated against one global version counter that is bumped by any
// change to a method table, constant table or include list. A stamp that
// differs from the current version means the slot is stale: it is reset,
// the full lookup runs, and the slot is re-stamped.
//
// Method slots are polymorphic inline caches:
// - most call sites see a single receiver class (monomorphic)
// - some see 2-6 classes (polymorphic)
// - a few see many classes (megamorphic) and always take the full lookup

// CacheState represents the current state of an inline cache.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No cached lookup yet
	CacheMonomorphic                   // Single (class, method) cached
	CachePolymorphic                   // 2-6 entries in PIC
	CacheMegamorphic                   // Too many types, use full lookup
)

func (s CacheState) String() string {
	switch s {
	case CacheMonomorphic:
		return "mono"
	case CachePolymorphic:
		return "poly"
	case CacheMegamorphic:
		return "mega"
	}
	return "empty"
}

// MaxPICEntries is the maximum number of entries in a polymorphic inline cache.
const MaxPICEntries = 6

// InlineCacheEntry holds a single cached method lookup result.
type InlineCacheEntry struct {
	Class  *Module // Receiver class
	Method FnID    // Resolved method
}

// InlineCache is the method cache of one call site.
// It progresses through states: Empty -> Monomorphic -> Polymorphic -> Megamorphic
type InlineCache struct {
	Version uint64
	State   CacheState
	Entries [MaxPICEntries]InlineCacheEntry
	Count   int // Number of valid entries (1 for mono, 2-6 for poly)

	// Statistics for profiling
	Hits   uint64
	Misses uint64
}

// Lookup returns the cached method for class if the slot is current.
func (ic *InlineCache) Lookup(class *Module, version uint64) (FnID, bool) {
	if ic.Version != version {
		ic.clear()
		ic.Version = version
		ic.Misses++
		return 0, false
	}

	switch ic.State {
	case CacheMonomorphic:
		if ic.Entries[0].Class == class {
			ic.Hits++
			return ic.Entries[0].Method, true
		}

	case CachePolymorphic:
		for i := 0; i < ic.Count; i++ {
			if ic.Entries[i].Class == class {
				ic.Hits++
				return ic.Entries[i].Method, true
			}
		}

	case CacheMegamorphic, CacheEmpty:
		// Always miss for megamorphic or empty
	}

	ic.Misses++
	return 0, false
}

// Update records a (class, method) pair found under version.
func (ic *InlineCache) Update(class *Module, method FnID, version uint64) {
	if method == 0 {
		return // Don't cache failed lookups
	}
	if ic.Version != version {
		ic.clear()
		ic.Version = version
	}

	switch ic.State {
	case CacheEmpty:
		ic.State = CacheMonomorphic
		ic.Entries[0] = InlineCacheEntry{Class: class, Method: method}
		ic.Count = 1

	case CacheMonomorphic:
		if ic.Entries[0].Class == class {
			return
		}
		ic.State = CachePolymorphic
		ic.Entries[1] = InlineCacheEntry{Class: class, Method: method}
		ic.Count = 2

	case CachePolymorphic:
		for i := 0; i < ic.Count; i++ {
			if ic.Entries[i].Class == class {
				return
			}
		}
		if ic.Count < MaxPICEntries {
			ic.Entries[ic.Count] = InlineCacheEntry{Class: class, Method: method}
			ic.Count++
		} else {
			ic.State = CacheMegamorphic
			for i := range ic.Entries {
				ic.Entries[i] = InlineCacheEntry{}
			}
			ic.Count = 0
		}

	case CacheMegamorphic:
		// Stay megamorphic, don't cache anything
	}
}

func (ic *InlineCache) clear() {
	ic.State = CacheEmpty
	ic.Count = 0
	for i := range ic.Entries {
		ic.Entries[i] = InlineCacheEntry{}
	}
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (ic *InlineCache) HitRate() float64 {
	total := ic.Hits + ic.Misses
	if total == 0 {
		return 0
	}
	return float64(ic.Hits) * 100 / float64(total)
}

// Reset clears the cache back to empty state.
func (ic *InlineCache) Reset() {
	ic.clear()
	ic.Version = 0
	ic.Hits = 0
	ic.Misses = 0
}

// ---------------------------------------------------------------------------
// Constant cache
// ---------------------------------------------------------------------------

// ConstCache is the cache slot of one constant reference.
type ConstCache struct {
	Version uint64
	Value   Value
	valid   bool
}

// Lookup returns the cached value if the slot is current.
func (cc *ConstCache) Lookup(version uint64) (Value, bool) {
	if !cc.valid || cc.Version != version {
		return Nil, false
	}
	return cc.Value, true
}

// Update stamps the slot with a freshly resolved value.
func (cc *ConstCache) Update(v Value, version uint64) {
	cc.Value = v
	cc.Version = version
	cc.valid = true
}

// ---------------------------------------------------------------------------
// Global method cache
// ---------------------------------------------------------------------------

type methodKey struct {
	class *Module
	name  IdentID
}

type globalCacheEntry struct {
	version uint64
	fid     FnID
	found   bool
}

// globalMethodCache remembers full lookups, including misses, keyed by
// receiver class and name.
type globalMethodCache struct {
	entries map[methodKey]globalCacheEntry
	hits    uint64
	misses  uint64
}

func newGlobalMethodCache() *globalMethodCache {
	return &globalMethodCache{entries: make(map[methodKey]globalCacheEntry)}
}

// FindMethod resolves name on class through the global method cache.
func (g *Globals) FindMethod(class *Module, name IdentID) (FnID, bool) {
	key := methodKey{class, name}
	if e, ok := g.methodCache.entries[key]; ok && e.version == g.version {
		g.methodCache.hits++
		return e.fid, e.found
	}
	g.methodCache.misses++
	fid, found := g.lookupMethod(class, name)
	g.methodCache.entries[key] = globalCacheEntry{version: g.version, fid: fid, found: found}
	return fid, found
}

// findMethodAt resolves name through a call site's inline cache, falling
// back to the global cache.
func (g *Globals) findMethodAt(ic *InlineCache, class *Module, name IdentID) (FnID, bool) {
	if fid, ok := ic.Lookup(class, g.version); ok {
		return fid, true
	}
	fid, ok := g.FindMethod(class, name)
	if ok {
		ic.Update(class, fid, g.version)
	}
	return fid, ok
}

// ---------------------------------------------------------------------------
// Statistics
// ---------------------------------------------------------------------------

// ICStats holds aggregate inline cache statistics.
type ICStats struct {
	TotalCallSites  int     // Total number of call sites with caches
	Monomorphic     int     // Call sites in monomorphic state
	Polymorphic     int     // Call sites in polymorphic state
	Megamorphic     int     // Call sites in megamorphic state
	Empty           int     // Call sites never used
	TotalHits       uint64  // Total cache hits
	TotalMisses     uint64  // Total cache misses
	HitRate         float64 // Overall hit rate percentage
	MonomorphicRate float64 // Percentage of call sites that are monomorphic
}

// CollectICStats gathers statistics over every call site in repo.
func CollectICStats(repo *MethodRepo) ICStats {
	var stats ICStats
	for _, info := range repo.funcs[1:] {
		for i := range info.methodCaches {
			ic := &info.methodCaches[i]
			switch ic.State {
			case CacheMonomorphic:
				stats.Monomorphic++
			case CachePolymorphic:
				stats.Polymorphic++
			case CacheMegamorphic:
				stats.Megamorphic++
			case CacheEmpty:
				stats.Empty++
			}
			stats.TotalHits += ic.Hits
			stats.TotalMisses += ic.Misses
			stats.TotalCallSites++
		}
	}

	total := stats.TotalHits + stats.TotalMisses
	if total > 0 {
		stats.HitRate = float64(stats.TotalHits) * 100 / float64(total)
	}
	nonEmpty := stats.TotalCallSites - stats.Empty
	if nonEmpty > 0 {
		stats.MonomorphicRate = float64(stats.Monomorphic) * 100 / float64(nonEmpty)
	}
	return stats
}
