// Package cache implements the per-core MESI cache: CacheLine and CacheSet
// storage, and the Cache engine that serves local reads/writes and answers
// bus snoops.
package cache

import (
	"github.com/Readm/coheresim/core"
)

const wordSize = 4

// Line is a single cache-line slot: a tag and a MESI state. Grounded on
// original_source/CACHE/CacheLine.h/.cpp, minus the block-sized byte
// payload and its readWord/writeWord accessors: this engine is
// coherence/timing-only and never addresses a line's data, and neither
// does any caller of the original's own readWord/writeWord.
type Line struct {
	tag   uint32
	state core.MESIState
}

// newLine allocates an invalid line.
func newLine() *Line {
	return &Line{state: core.Invalid}
}

// IsValid reports whether the line holds live data.
func (l *Line) IsValid() bool {
	return l.state.IsValid()
}

// IsDirty reports whether the line must be written back before losing its
// copy of the block.
func (l *Line) IsDirty() bool {
	return l.state.IsDirty()
}

// State returns the line's current MESI state.
func (l *Line) State() core.MESIState {
	return l.state
}

// Tag returns the line's tag. Meaningless when the line is invalid.
func (l *Line) Tag() uint32 {
	return l.tag
}

// setState transitions the line, with no side effects beyond the flag flip;
// callers (Cache, CacheSet) are responsible for any cycle accounting or bus
// traffic that accompanies the transition.
func (l *Line) setState(s core.MESIState) {
	l.state = s
}

// invalidate clears the line's state. Invalidation must not be called
// while the line's data is in flight on the bus; the Cache/Bus sequence
// data transfer before flipping state, so this is purely a local
// bookkeeping operation.
func (l *Line) invalidate() {
	l.state = core.Invalid
}

// allocate installs a fresh tag into the line and marks it valid with the
// given state. The caller (CacheSet.AllocateLine) has already evicted any
// prior occupant.
func (l *Line) allocate(tag uint32, state core.MESIState) {
	l.tag = tag
	l.state = state
}
