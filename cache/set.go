package cache

import "github.com/Readm/coheresim/core"

// notFound is returned by FindLine when no valid line in the set matches.
const notFound = -1

// Set is one associativity-wide row of a Cache: N line slots plus N
// per-line LRU counters. Grounded on original_source/CACHE/CacheSet.h/.cpp.
type Set struct {
	lines []*Line
	lru   []int
}

// newSet allocates a set with the given associativity.
func newSet(associativity int) *Set {
	s := &Set{
		lines: make([]*Line, associativity),
		lru:   make([]int, associativity),
	}
	for i := range s.lines {
		s.lines[i] = newLine()
	}
	return s
}

// FindLine linear-scans for a valid line with a matching tag. Matches only
// non-INVALID entries.
func (s *Set) FindLine(tag uint32) (int, bool) {
	for i, l := range s.lines {
		if l.IsValid() && l.tag == tag {
			return i, true
		}
	}
	return notFound, false
}

// Line returns the line at index, for callers that already know the index
// (e.g. a Cache that just resolved it via FindLine or AllocateLine).
func (s *Set) Line(index int) *Line {
	return s.lines[index]
}

// AllocateLine chooses a slot for a new tag: an INVALID slot if one exists,
// otherwise the slot with the maximum LRU counter (ties broken by lowest
// index). It installs the tag and marks the slot most-recently-used, but
// does NOT evict — the caller calls PeekVictim beforehand to run eviction
// side effects on the slot's prior occupant.
func (s *Set) AllocateLine(tag uint32, state core.MESIState) int {
	victim := s.selectVictim()
	s.lines[victim].allocate(tag, state)
	s.UpdateLRU(victim)
	return victim
}

// selectVictim picks the slot AllocateLine will overwrite, without
// mutating anything. Exposed separately so Cache can inspect (and evict)
// the victim's prior occupant before allocation clobbers it.
func (s *Set) selectVictim() int {
	for i, l := range s.lines {
		if !l.IsValid() {
			return i
		}
	}
	maxIdx := 0
	maxLRU := s.lru[0]
	for i := 1; i < len(s.lru); i++ {
		if s.lru[i] > maxLRU {
			maxLRU = s.lru[i]
			maxIdx = i
		}
	}
	return maxIdx
}

// PeekVictim exposes selectVictim to the Cache so it can run eviction side
// effects (writeback, silent S→E promotion) before calling AllocateLine.
func (s *Set) PeekVictim() int {
	return s.selectVictim()
}

// UpdateLRU increments every counter in the set by 1, then resets index's
// counter to 0. This produces strict recency ordering: the just-touched
// line is always the least eligible victim.
func (s *Set) UpdateLRU(index int) {
	for i := range s.lru {
		s.lru[i]++
	}
	s.lru[index] = 0
}

// InvalidateLine flips the line at index to INVALID. The LRU counter is
// left untouched — a freshly invalidated slot is only an attractive victim
// if its counter was already high.
func (s *Set) InvalidateLine(index int) {
	s.lines[index].invalidate()
}

// InvalidateTag invalidates whichever line (if any) currently holds tag.
// No-op if the tag isn't resident.
func (s *Set) InvalidateTag(tag uint32) {
	if idx, ok := s.FindLine(tag); ok {
		s.InvalidateLine(idx)
	}
}
