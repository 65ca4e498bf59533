// Package processor drives one core's reference stream against its Cache,
// one simulated cycle at a time.
package processor

import (
	"github.com/Readm/coheresim/cache"
	"github.com/Readm/coheresim/queue"
	"github.com/Readm/coheresim/trace"
)

const (
	preloadCount    = 10
	refillThreshold = 5
	refillCount     = 5
)

// Stats accumulates the per-core counters the report needs that don't
// belong to the Cache. TotalCycles is the "Execution Cycles" report
// field — a count of every tick this processor was offered to
// ExecuteCycle, including the idle ones, matching
// original_source/CACHE/Processor.cpp's getTotalCycles naming.
type Stats struct {
	TotalInstructions int
	ReadInstructions  int
	WriteInstructions int
	TotalCycles       int
	IdleCycles        int
}

// Processor pulls references from a trace.Source and offers them to its
// Cache one at a time, honoring the Cache's blocking state. Grounded on
// original_source/CACHE/Processor.h/.cpp, adapted to the corrected
// multi-tick blocking model documented in cache.Cache.IsBlocking and to
// use queue.TrackedQueue instead of a raw std::queue.
type Processor struct {
	coreID int
	cache  *cache.Cache
	source trace.Source

	pending *queue.TrackedQueue[trace.Reference]

	stats Stats

	blocked  bool
	complete bool
}

// New constructs a Processor reading from source and issuing to c. If
// source is nil, the Processor is immediately marked complete — this is
// how a per-core trace-open failure turns a core into a quiescent
// snoop-only participant without aborting the run.
func New(coreID int, c *cache.Cache, source trace.Source) *Processor {
	p := &Processor{
		coreID:  coreID,
		cache:   c,
		source:  source,
		pending: queue.NewTrackedQueue[trace.Reference](queue.UnlimitedCapacity, queue.QueueHooks[trace.Reference]{}),
	}
	if source == nil {
		p.complete = true
		return p
	}
	p.refill(preloadCount)
	return p
}

// CoreID returns this processor's core id.
func (p *Processor) CoreID() int {
	return p.coreID
}

// IsComplete reports whether the trace is exhausted and no further
// references remain to process.
func (p *Processor) IsComplete() bool {
	return p.complete
}

// Stats returns a snapshot of this processor's counters.
func (p *Processor) Stats() Stats {
	return p.stats
}

// refill tops the pending queue up by loading up to n more references
// from the source, stopping early at end of stream.
func (p *Processor) refill(n int) {
	for i := 0; i < n; i++ {
		ref, ok := p.source.Next()
		if !ok {
			return
		}
		p.pending.Enqueue(ref, 0)
	}
}

// ExecuteCycle advances this processor by one simulated cycle.
func (p *Processor) ExecuteCycle() {
	if p.complete {
		return
	}
	p.stats.TotalCycles++

	if p.blocked {
		if p.cache.IsBlocking() {
			p.stats.IdleCycles++
			return
		}
		p.blocked = false
	}

	if p.pending.Len() == 0 {
		p.refill(refillCount)
		if p.pending.Len() == 0 {
			p.complete = true
			// This tick did no work; don't count it.
			p.stats.TotalCycles--
			return
		}
	}

	ref, _ := p.pending.PopFront(0)

	var accepted bool
	var cycles int
	switch ref.Op {
	case trace.Read:
		accepted, cycles = p.cache.Read(ref.Addr)
	case trace.Write:
		accepted, cycles = p.cache.Write(ref.Addr)
	}

	if !accepted {
		// The cache refused (it was already servicing a prior miss); this
		// shouldn't happen since blocked gates every call, but if it
		// does, put the reference back rather than dropping it.
		p.pending.Enqueue(ref, 0)
		return
	}

	p.stats.TotalInstructions++
	if ref.Op == trace.Read {
		p.stats.ReadInstructions++
	} else {
		p.stats.WriteInstructions++
	}

	if cycles > 1 {
		p.blocked = true
		// The bus, not the processor, owns the countdown from here; this
		// tick's stall contributes the first of the busCycles idle ticks,
		// the rest arrive incrementally as long as p.blocked stays true
		// (see cache.Cache.IsBlocking doc comment).
		p.stats.IdleCycles++
	}

	if p.pending.Len() < refillThreshold {
		p.refill(refillCount)
	}
}
