// Package simulator drives every core's Processor and the shared Bus one
// cycle at a time, detects and recovers from cross-core deadlock, and
// aggregates the final statistics. Grounded on
// original_source/CACHE/Simulator.h/.cpp.
package simulator

import (
	"sort"

	"github.com/Readm/coheresim/bus"
	"github.com/Readm/coheresim/cache"
	"github.com/Readm/coheresim/hooks"
	"github.com/Readm/coheresim/processor"
)

// Stats aggregates the whole-run counters the Overall Summary / Overall
// Bus Summary report blocks need on top of what each Processor/Cache/Bus
// already tracks per-core.
type Stats struct {
	MaxExecutionTime  int
	DeadlocksResolved int
}

// Simulator owns one Bus and one Processor/Cache pair per core, and
// advances them together, cycle by cycle. Grounded on
// original_source/CACHE/Simulator.h/.cpp for runCycles/runUntilCompletion
// and the deadlock detect-and-recover loop; the per-component dependency
// wiring (Bus.Register/PublishRoster, SetBroker) replaces the original's
// constructor-time raw pointer wiring since this engine builds caches and
// the bus as separate packages rather than one translation unit.
type Simulator struct {
	bus        *bus.Bus
	caches     []*cache.Cache
	processors []*processor.Processor

	broker *hooks.PluginBroker

	currentCycle int
	cycleCeiling int

	stats Stats
}

// New constructs a Simulator from an already-wired bus and the per-core
// processors driving it. Callers are expected to have called
// bus.Register and bus.PublishRoster for every cache before constructing
// the Simulator (cmd/coheresim's setup path does this).
func New(b *bus.Bus, caches []*cache.Cache, procs []*processor.Processor, broker *hooks.PluginBroker, cycleCeiling int) *Simulator {
	return &Simulator{
		bus:          b,
		caches:       caches,
		processors:   procs,
		broker:       broker,
		cycleCeiling: cycleCeiling,
	}
}

// CurrentCycle returns the number of cycles run so far.
func (s *Simulator) CurrentCycle() int {
	return s.currentCycle
}

// IsComplete reports whether every processor has exhausted its trace.
func (s *Simulator) IsComplete() bool {
	for _, p := range s.processors {
		if !p.IsComplete() {
			return false
		}
	}
	return true
}

// Stats returns the whole-run counters collected so far. MaxExecutionTime
// and DeadlocksResolved are only final once IsComplete (or the cycle
// ceiling) has been reached.
func (s *Simulator) Stats() Stats {
	st := s.stats
	st.MaxExecutionTime = s.maxExecutionTime()
	return st
}

// maxExecutionTime is the "Maximum Execution Time in cycles" Overall
// Summary field: the largest TotalCycles+IdleCycles over all processors,
// matching original_source/CACHE/Simulator.cpp's getMaxExecutionTime.
// TotalCycles already counts idle ticks, so this sum counts them twice.
func (s *Simulator) maxExecutionTime() int {
	max := 0
	for _, p := range s.processors {
		st := p.Stats()
		total := st.TotalCycles + st.IdleCycles
		if total > max {
			max = total
		}
	}
	return max
}

// RunCycles advances the simulation by up to n cycles, stopping early if
// every processor completes or the configured cycle ceiling is reached.
// Returns the number of cycles actually advanced.
func (s *Simulator) RunCycles(n int) int {
	advanced := 0
	for i := 0; i < n; i++ {
		if s.IsComplete() {
			break
		}
		if s.cycleCeiling > 0 && s.currentCycle >= s.cycleCeiling {
			break
		}
		s.step()
		advanced++
	}
	return advanced
}

// RunUntilCompletion runs the simulation to natural completion or until
// the cycle ceiling stops it, whichever comes first. Returns true if the
// run completed naturally.
func (s *Simulator) RunUntilCompletion() bool {
	for {
		if s.IsComplete() {
			return true
		}
		if s.cycleCeiling > 0 && s.currentCycle >= s.cycleCeiling {
			return false
		}
		s.step()
	}
}

// step advances every component by exactly one cycle, in the order the
// original drives them: the bus first (so a transaction that completes
// this tick is visible to the processors that unblock on it), then every
// non-complete processor, then the deadlock check.
//
// Grounded on original_source/CACHE/Simulator.cpp's runCycles: increment
// the cycle counter, processBus, executeCycle on every processor, then
// checkDeadlock.
func (s *Simulator) step() {
	s.currentCycle++
	s.bus.ProcessCycle()
	for _, p := range s.processors {
		if !p.IsComplete() {
			p.ExecuteCycle()
		}
	}
	s.checkDeadlock()
}

// checkDeadlock implements deadlock recovery: if the cache of every
// incomplete processor reports IsBlocking while the bus is neither busy
// nor holding queued transactions, nothing can ever unblock anything
// (this shouldn't happen under correct operation, but the original guards
// against it defensively and this port keeps that guard). Recovery resets
// the bus, counts the event in DeadlocksResolved, and fires the deadlock
// hook. Cache.IsBlocking is derived from the bus's in-flight and queued
// transactions, so with the bus idle and its queue empty no cache reports
// blocking and this guard does not fire.
func (s *Simulator) checkDeadlock() {
	if s.bus.IsBusy() || s.bus.PendingCount() > 0 {
		return
	}

	var blocked []int
	anyIncomplete := false
	for i, c := range s.caches {
		p := s.processors[i]
		if p.IsComplete() {
			continue
		}
		anyIncomplete = true
		if !c.IsBlocking() {
			return
		}
		blocked = append(blocked, c.CoreID())
	}
	if !anyIncomplete || len(blocked) == 0 {
		return
	}

	sort.Ints(blocked)
	s.stats.DeadlocksResolved++
	s.bus.Reset()
	s.broker.EmitDeadlock(&hooks.DeadlockContext{
		Cycle:       s.currentCycle,
		BlockedCore: blocked,
	})
}
