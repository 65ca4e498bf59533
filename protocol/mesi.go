// Package protocol declares the MESI snooping-bus transition table this
// engine implements as data, separate from the cache package's actual
// switch-statement implementation of it. Grounded on
// protocols/chi/mesi_mid.go, trimmed from a CHI mid-level
// cache's multi-hop request/response state machine down to this
// engine's single-hop snooping-bus protocol, and rebuilt against
// core.MESIState/core.BusOp instead of the CHI controller's own "IS"/
// "IM" transient-state vocabulary, which has no counterpart in a
// synchronous snooping bus (every local transaction here resolves before
// the next cycle, so there's no separately observable "request issued,
// awaiting data" state to name).
//
// Spec declares every reachable (state, event) combination is a
// documentation and test fixture: mesi_test.go cross-checks it
// against the exhaustive switches in cache.Cache.Read/Write/Snoop/evict
// so a protocol omission shows up as a spec gap rather than only as a
// silent fallthrough at runtime.
package protocol

import "github.com/Readm/coheresim/slicc"

// State names are the single-letter abbreviations of core.MESIState's
// values (core.MESIState.String() spells them out in full).
const (
	StateInvalid   = "I"
	StateShared    = "S"
	StateExclusive = "E"
	StateModified  = "M"
)

// Event names split into local (processor-driven) and snoop (bus-driven)
// groups, plus the one non-bus eviction-time event (the silent S→E
// promotion documented in cache.Cache.promoteLoneSharer).
const (
	EventLocalRead             = "LocalRead"
	EventLocalWrite            = "LocalWrite"
	EventSnoopBusRd            = "SnoopBusRd"
	EventSnoopBusRdX           = "SnoopBusRdX"
	EventSnoopBusUpgr          = "SnoopBusUpgr"
	EventEvict                 = "Evict"
	EventPeerLoneSharerEvicted = "PeerLoneSharerEvicted"
)

// Spec is the declarative MESI snooping-bus transition table this
// engine's cache package implements. Every transition here has a
// corresponding case in cache.Cache's Read, Write, Snoop, or evict
// methods (see DESIGN.md for the file-by-file grounding); this table
// exists so that correspondence is checked rather than merely asserted.
var Spec = &slicc.StateMachineSpec{
	Name:         "MESI-snooping-bus",
	Description:  "Single-hop MESI coherence over one shared snooping bus",
	DefaultState: StateInvalid,
	States: []slicc.StateSpec{
		{Name: StateInvalid, Description: "no valid copy resident"},
		{Name: StateShared, Description: "clean copy, possibly shared with peers"},
		{Name: StateExclusive, Description: "clean copy, sole owner"},
		{Name: StateModified, Description: "dirty copy, sole owner"},
	},
	Events: []slicc.EventSpec{
		{Name: EventLocalRead, Description: "this core's processor issues a read"},
		{Name: EventLocalWrite, Description: "this core's processor issues a write"},
		{Name: EventSnoopBusRd, Description: "bus broadcasts a BusRd a peer originated"},
		{Name: EventSnoopBusRdX, Description: "bus broadcasts a BusRdX a peer originated"},
		{Name: EventSnoopBusUpgr, Description: "bus broadcasts a BusUpgr a peer originated"},
		{Name: EventEvict, Description: "this line is chosen as an allocation victim"},
		{Name: EventPeerLoneSharerEvicted, Description: "the only other sharer of this block evicted its copy"},
	},
	Transitions: []slicc.TransitionSpec{
		// Local read, grounded on cache.Cache.Read.
		{FromStates: []string{StateInvalid}, Events: []string{EventLocalRead}, ToState: StateExclusive, Actions: []string{"bus_rd", "no_peer_data"}},
		{FromStates: []string{StateInvalid}, Events: []string{EventLocalRead}, ToState: StateShared, Actions: []string{"bus_rd", "peer_provided_data"}},
		{FromStates: []string{StateShared}, Events: []string{EventLocalRead}, ToState: StateShared, Actions: []string{"hit"}},
		{FromStates: []string{StateExclusive}, Events: []string{EventLocalRead}, ToState: StateExclusive, Actions: []string{"hit"}},
		{FromStates: []string{StateModified}, Events: []string{EventLocalRead}, ToState: StateModified, Actions: []string{"hit"}},

		// Local write, grounded on cache.Cache.Write.
		{FromStates: []string{StateInvalid}, Events: []string{EventLocalWrite}, ToState: StateModified, Actions: []string{"bus_rdx"}},
		{FromStates: []string{StateShared}, Events: []string{EventLocalWrite}, ToState: StateModified, Actions: []string{"bus_upgr"}},
		{FromStates: []string{StateExclusive}, Events: []string{EventLocalWrite}, ToState: StateModified, Actions: []string{"local_promote"}},
		{FromStates: []string{StateModified}, Events: []string{EventLocalWrite}, ToState: StateModified, Actions: []string{"hit"}},

		// Snoop responses, grounded on cache.Cache.Snoop.
		{FromStates: []string{StateShared}, Events: []string{EventSnoopBusRd}, ToState: StateShared, Actions: []string{"provide_data"}},
		{FromStates: []string{StateExclusive}, Events: []string{EventSnoopBusRd}, ToState: StateShared, Actions: []string{"provide_data", "downgrade"}},
		{FromStates: []string{StateModified}, Events: []string{EventSnoopBusRd}, ToState: StateShared, Actions: []string{"provide_data", "writeback"}},
		{FromStates: []string{StateShared}, Events: []string{EventSnoopBusRdX}, ToState: StateInvalid, Actions: []string{"provide_data", "invalidate"}},
		{FromStates: []string{StateExclusive}, Events: []string{EventSnoopBusRdX}, ToState: StateInvalid, Actions: []string{"provide_data", "invalidate"}},
		{FromStates: []string{StateModified}, Events: []string{EventSnoopBusRdX}, ToState: StateInvalid, Actions: []string{"provide_data", "invalidate", "writeback"}},
		{FromStates: []string{StateShared}, Events: []string{EventSnoopBusUpgr}, ToState: StateInvalid, Actions: []string{"invalidate"}},
		// Non-canonical: a peer answering BusUpgr from E/M, gated behind
		// cache.Config.BusUpgradeRespondsWithData (DESIGN.md Open
		// Question (b)).
		{FromStates: []string{StateExclusive}, Events: []string{EventSnoopBusUpgr}, ToState: StateInvalid, Actions: []string{"invalidate", "respond_with_data_if_configured"}},
		{FromStates: []string{StateModified}, Events: []string{EventSnoopBusUpgr}, ToState: StateInvalid, Actions: []string{"invalidate", "respond_with_data_if_configured"}},

		// Eviction, grounded on cache.Cache.evict/promoteLoneSharer.
		{FromStates: []string{StateModified}, Events: []string{EventEvict}, ToState: StateInvalid, Actions: []string{"writeback"}},
		{FromStates: []string{StateShared}, Events: []string{EventEvict}, ToState: StateInvalid, Actions: []string{"maybe_promote_lone_peer_sharer"}},
		{FromStates: []string{StateExclusive}, Events: []string{EventEvict}, ToState: StateInvalid, Actions: []string{}},
		{FromStates: []string{StateShared}, Events: []string{EventPeerLoneSharerEvicted}, ToState: StateExclusive, Actions: []string{"silent_promotion"}},
	},
}
