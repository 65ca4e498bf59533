package cache

import (
	"fmt"
	"io"

	"github.com/Readm/coheresim/core"
	"github.com/Readm/coheresim/hooks"
)

const (
	// writebackCycles is the fixed cost of flushing a dirty line to main
	// memory, charged on both snoop-induced and eviction-induced writebacks.
	writebackCycles = 100
)

// BusPort is the dependency-inverted view of the bus a Cache needs: enough
// to originate a transaction and to ask whether its own transaction is
// still in flight. *bus.Bus satisfies this interface structurally; cache
// never imports bus, which is what keeps the two packages from forming an
// import cycle.
type BusPort interface {
	// BusOperation submits a transaction. If the bus can start it
	// immediately, onComplete is invoked synchronously before
	// BusOperation returns and accepted is true. If the bus is busy,
	// the transaction is queued, accepted is false, and onComplete
	// fires later from the bus's own processCycle once the transaction
	// reaches the front of the queue. onComplete returns any extra
	// cycles (a dirty eviction's writeback) the bus should add to its
	// own draining countdown on top of busCycles.
	BusOperation(op core.BusOp, addr uint32, sourceID int, onComplete func(dataProvided bool, busCycles int) int) bool
	// IsBlocking reports whether sourceID has a transaction in flight or
	// queued — current or pending.
	IsBlocking(sourceID int) bool
	// RecordFlush bumps the bus's Flush transaction counter for a
	// writeback that doesn't go through the full arbitration/snoop path
	// (an eviction-driven writeback has no peers to snoop).
	RecordFlush()
}

// Config configures a single core's Cache.
type Config struct {
	CoreID          int
	SetIndexBits    uint
	BlockOffsetBits uint
	Associativity   int

	// BusUpgradeRespondsWithData controls the non-canonical path where a
	// peer holding E or M answers a BusUpgr with data instead of a bare
	// invalidate. The zero value is false; cmd/coheresim's
	// -bus-upgrade-data flag defaults to true, matching the behaviour
	// observed in original_source/CACHE/Cache.cpp; see DESIGN.md Open
	// Question (b).
	BusUpgradeRespondsWithData bool
}

// Stats accumulates the per-core counters the output report requires.
type Stats struct {
	Accesses      int
	Reads         int
	Writes        int
	ReadMisses    int
	WriteMisses   int
	Evictions     int
	Writebacks    int
	Invalidations int
	DataTraffic   int64 // bytes
}

// Misses returns the total read+write miss count.
func (s Stats) Misses() int {
	return s.ReadMisses + s.WriteMisses
}

// MissRate returns the miss rate as a percentage, 0 if there were no
// accesses.
func (s Stats) MissRate() float64 {
	if s.Accesses == 0 {
		return 0
	}
	return float64(s.Misses()) / float64(s.Accesses) * 100
}

// Cache is the MESI engine for one core: a set-associative array of Lines
// plus the coherence logic that serves local reads/writes and answers
// snoops from the Bus. Grounded on original_source/CACHE/Cache.h/.cpp.
type Cache struct {
	coreID    int
	addr      core.Address
	blockSize int
	sets      []*Set
	bus       BusPort
	cfg       Config
	peers     map[int]*Cache
	stats     Stats
	broker    *hooks.PluginBroker
}

// New constructs a Cache wired to bus. Peers must be supplied separately
// via SetPeers once every Cache in the simulation has been constructed.
func New(cfg Config, bus BusPort) *Cache {
	addrCfg := core.Address{SetIndexBits: cfg.SetIndexBits, BlockOffsetBits: cfg.BlockOffsetBits}
	blockSize := addrCfg.BlockSize()
	sets := make([]*Set, addrCfg.NumSets())
	for i := range sets {
		sets[i] = newSet(cfg.Associativity)
	}
	return &Cache{
		coreID:    cfg.CoreID,
		addr:      addrCfg,
		blockSize: blockSize,
		sets:      sets,
		bus:       bus,
		cfg:       cfg,
		peers:     map[int]*Cache{},
	}
}

// CoreID returns the owning core's id.
func (c *Cache) CoreID() int {
	return c.coreID
}

// BlockSize returns this cache's block size in bytes, uniform across every
// cache in a simulation since all cores share the same address
// configuration.
func (c *Cache) BlockSize() int {
	return c.blockSize
}

// SetPeers installs the other caches in the simulation, keyed by core id,
// for eviction-time silent S→E promotion. Populated by the Bus once
// every Cache is registered.
func (c *Cache) SetPeers(peers map[int]*Cache) {
	c.peers = peers
}

// SetBroker attaches a hook broker for instrumentation plugins to observe
// this cache's evictions. A nil broker (the default) makes every Emit
// call a no-op, so SetBroker is optional.
func (c *Cache) SetBroker(b *hooks.PluginBroker) {
	c.broker = b
}

// Stats returns a snapshot of this cache's counters.
func (c *Cache) Stats() Stats {
	return c.stats
}

// IsBlocking reports whether this cache is mid-miss: servicing a bus
// transaction it originated, or waiting for one to reach the front of the
// bus's queue. The cache itself keeps no countdown — the bus is the
// single source of truth for "still draining".
func (c *Cache) IsBlocking() bool {
	return c.bus.IsBlocking(c.coreID)
}

// Read serves a local load.
func (c *Cache) Read(addr uint32) (accepted bool, cycles int) {
	if c.IsBlocking() {
		return false, 0
	}
	c.stats.Accesses++
	c.stats.Reads++

	tag := c.addr.Tag(addr)
	setIdx := int(c.addr.SetIndex(addr))
	set := c.sets[setIdx]

	if idx, ok := set.FindLine(tag); ok {
		set.UpdateLRU(idx)
		return true, 1
	}

	c.stats.ReadMisses++
	cycles = c.issueTransaction(core.BusRd, addr, func(dataProvided bool, busCycles int) int {
		return c.completeMiss(tag, setIdx, dataProvided, false)
	})
	return true, cycles
}

// Write serves a local store.
func (c *Cache) Write(addr uint32) (accepted bool, cycles int) {
	if c.IsBlocking() {
		return false, 0
	}
	c.stats.Accesses++
	c.stats.Writes++

	tag := c.addr.Tag(addr)
	setIdx := int(c.addr.SetIndex(addr))
	set := c.sets[setIdx]

	if idx, ok := set.FindLine(tag); ok {
		line := set.Line(idx)
		switch line.State() {
		case core.Modified:
			set.UpdateLRU(idx)
			return true, 1
		case core.Exclusive:
			line.setState(core.Modified)
			set.UpdateLRU(idx)
			return true, 1
		case core.Shared:
			set.UpdateLRU(idx)
			cycles = c.issueTransaction(core.BusUpgr, addr, func(dataProvided bool, busCycles int) int {
				line.setState(core.Modified)
				return 0
			})
			return true, cycles
		}
	}

	c.stats.WriteMisses++
	cycles = c.issueTransaction(core.BusRdX, addr, func(dataProvided bool, busCycles int) int {
		return c.completeMiss(tag, setIdx, dataProvided, true)
	})
	return true, cycles
}

// issueTransaction submits op to the bus and returns the cycles the
// caller should report. onComplete runs the allocation/state-update side
// effects for the transaction and returns any extra cycles an eviction
// added on top of the bus's own busCycles (original_source/Cache.cpp's
// evictLine folds a dirty victim's 100-cycle writeback into the same
// miss's latency rather than treating it as a background cost). That
// extra is also handed back to the Bus itself (via BusOperation's
// callback return value), so the bus's own draining countdown — the sole
// driver of IsBlocking and idle-cycle accrual — actually spans the
// writeback too, not just this method's local return value.
//
// When the bus starts the transaction immediately, onComplete runs inline
// and the true 1+busCycles+evictionExtra total is returned. When the bus
// queues it, onComplete runs later (from the bus's processCycle); the
// caller only learns "this is a miss" (cycles > 1), not the eventual
// total — Processor accounting never needs the exact deferred value (see
// DESIGN.md).
func (c *Cache) issueTransaction(op core.BusOp, addr uint32, onComplete func(dataProvided bool, busCycles int) int) int {
	cycles := 2
	c.bus.BusOperation(op, addr, c.coreID, func(dataProvided bool, busCycles int) int {
		extra := onComplete(dataProvided, busCycles)
		cycles = 1 + busCycles + extra
		return extra
	})
	return cycles
}

// completeMiss runs once a BusRd/BusRdX this cache originated finishes:
// evict the victim if the target slot is occupied, then allocate. Returns
// any extra cycles the eviction added (a dirty victim's writeback).
func (c *Cache) completeMiss(tag uint32, setIdx int, dataProvided, isWrite bool) int {
	set := c.sets[setIdx]
	victim := set.PeekVictim()
	evictionExtra := 0
	if set.Line(victim).IsValid() {
		evictionExtra = c.evict(setIdx, victim)
	}

	var newState core.MESIState
	switch {
	case isWrite:
		newState = core.Modified
	case dataProvided:
		newState = core.Shared
	default:
		newState = core.Exclusive
	}
	set.AllocateLine(tag, newState)
	return evictionExtra
}

// evict runs the side effects for dropping the valid line at
// (setIdx, idx), then invalidates it. Returns the extra cycles a dirty
// victim's writeback adds to the in-progress transaction's latency.
func (c *Cache) evict(setIdx, idx int) int {
	set := c.sets[setIdx]
	line := set.Line(idx)
	tag := line.Tag()

	c.stats.Evictions++
	extra := 0
	dirty := line.State() == core.Modified
	switch line.State() {
	case core.Modified:
		c.stats.Writebacks++
		c.bus.RecordFlush()
		extra = writebackCycles
	case core.Shared:
		c.promoteLoneSharer(setIdx, tag)
	case core.Exclusive:
		// No peers to consider, no cycles charged.
	}
	c.broker.EmitEvict(&hooks.EvictContext{
		CoreID: c.coreID,
		SetIdx: setIdx,
		Tag:    tag,
		State:  line.State(),
		Dirty:  dirty,
	})
	set.InvalidateLine(idx)
	return extra
}

// promoteLoneSharer implements the one non-bus-mediated peer mutation in
// the whole engine: if exactly one peer still holds (setIdx, tag) in
// SHARED after this cache drops its own copy, that peer is now the sole
// clean holder and is silently promoted to EXCLUSIVE. Read-only except
// for that single flip; always triggered by the block's departing owner.
func (c *Cache) promoteLoneSharer(setIdx int, tag uint32) {
	var lone *Cache
	loneIdx := notFound
	count := 0
	for id, peer := range c.peers {
		if id == c.coreID {
			continue
		}
		if idx, ok := peer.sets[setIdx].FindLine(tag); ok && peer.sets[setIdx].Line(idx).State() == core.Shared {
			count++
			lone = peer
			loneIdx = idx
		}
	}
	if count == 1 {
		lone.sets[setIdx].Line(loneIdx).setState(core.Exclusive)
	}
}

// Snoop answers a bus transaction originated by another core, per the
// MESI snoop-response table (see protocol.Spec).
func (c *Cache) Snoop(op core.BusOp, addr uint32) (providedData bool, snoopCycles int) {
	tag := c.addr.Tag(addr)
	setIdx := int(c.addr.SetIndex(addr))
	set := c.sets[setIdx]

	idx, ok := set.FindLine(tag)
	if !ok {
		return false, 0
	}
	line := set.Line(idx)
	transfer := 2 * (c.blockSize / wordSize)

	// provide reports c supplied data for this snoop: charged here, on the
	// providing side, rather than on the requester (original_source's
	// Cache.cpp increments its own stats.busTraffic inside the snoop
	// handler, not the requester's), so summing every cache's DataTraffic
	// reconciles exactly with bus.Stats.TotalTraffic (also one
	// blockSize charge per data-providing snoop).
	provide := func() (bool, int) {
		c.stats.DataTraffic += int64(c.blockSize)
		return true, transfer
	}

	switch op {
	case core.BusRd:
		switch line.State() {
		case core.Shared:
			return provide()
		case core.Exclusive:
			line.setState(core.Shared)
			return provide()
		case core.Modified:
			line.setState(core.Shared)
			c.stats.Writebacks++
			provided, cycles := provide()
			return provided, cycles + writebackCycles
		}
	case core.BusRdX:
		switch line.State() {
		case core.Shared:
			c.stats.Invalidations++
			set.InvalidateLine(idx)
			return provide()
		case core.Exclusive:
			c.stats.Invalidations++
			set.InvalidateLine(idx)
			return provide()
		case core.Modified:
			c.stats.Invalidations++
			c.stats.Writebacks++
			set.InvalidateLine(idx)
			provided, cycles := provide()
			return provided, cycles + writebackCycles
		}
	case core.BusUpgr:
		switch line.State() {
		case core.Shared:
			c.stats.Invalidations++
			set.InvalidateLine(idx)
			return false, 0
		case core.Exclusive, core.Modified:
			// Not expected under correct MESI operation: a BusUpgr
			// implies the requester already holds S, which excludes
			// any peer holding E or M. If it happens anyway, fail
			// safe by invalidating; whether to also hand over data
			// is the Open Question (b) toggle.
			c.stats.Invalidations++
			set.InvalidateLine(idx)
			if c.cfg.BusUpgradeRespondsWithData {
				return provide()
			}
			return false, 0
		}
	}
	return false, 0
}

// PeekState returns the MESI state of whichever line currently holds addr,
// or INVALID if the block isn't resident. Used by tests and by Dump.
func (c *Cache) PeekState(addr uint32) core.MESIState {
	tag := c.addr.Tag(addr)
	setIdx := int(c.addr.SetIndex(addr))
	if idx, ok := c.sets[setIdx].FindLine(tag); ok {
		return c.sets[setIdx].Line(idx).State()
	}
	return core.Invalid
}

// Dump writes a human-readable listing of every valid line, set by set.
// Grounded on original_source/CACHE/Cache.cpp's debug dump used under -v.
func (c *Cache) Dump(w io.Writer) {
	for setIdx, set := range c.sets {
		for lineIdx, line := range set.lines {
			if !line.IsValid() {
				continue
			}
			fmt.Fprintf(w, "core %d set %d line %d: tag=%d state=%s\n",
				c.coreID, setIdx, lineIdx, line.Tag(), line.State())
		}
	}
}
