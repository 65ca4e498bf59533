// Package hooks lets plugins observe coherence engine events without the
// core/cache/bus/processor/simulator packages importing anything outside
// their own dependency order. Grounded on a pre-existing hooks/broker.go
// in the wider NoC-simulation lineage this package descends from, trimmed
// from packet-routing hook points (TxCreated/BeforeRoute/...) down to the
// events this domain actually raises.
package hooks

import (
	"sync"

	"github.com/Readm/coheresim/core"
)

// PluginCategory represents the high-level role of a plugin.
type PluginCategory string

const (
	// PluginCategoryInstrumentation covers metrics, tracing, and logging
	// plugins that observe but never alter engine behavior.
	PluginCategoryInstrumentation PluginCategory = "instrumentation"
	// PluginCategoryPolicy labels policy-oriented plugins (e.g. an
	// injected-fault harness). Like every plugin on this broker, they
	// observe events only; no hook can veto or redirect an operation.
	PluginCategoryPolicy PluginCategory = "policy"
)

// PluginDescriptor describes a plugin registered with the broker.
type PluginDescriptor struct {
	Name        string
	Category    PluginCategory
	Description string
}

// HookBundle groups every hook handler belonging to one plugin, for
// one-shot registration via RegisterBundle.
type HookBundle struct {
	BusTransaction []BusTransactionHook
	Snoop          []SnoopHook
	Evict          []EvictHook
	Deadlock       []DeadlockHook
}

// BusTransactionContext carries the request a cache just originated, as
// the bus begins arbitrating it.
type BusTransactionContext struct {
	Cycle    int
	SourceID int
	Op       core.BusOp
	Addr     uint32
}

// BusTransactionHook observes (but cannot alter) a transaction as it
// starts on the bus.
type BusTransactionHook func(ctx *BusTransactionContext)

// SnoopContext carries one cache's response to a transaction it didn't
// originate.
type SnoopContext struct {
	Cycle        int
	SourceID     int
	SnooperID    int
	Op           core.BusOp
	Addr         uint32
	ProvidedData bool
	Cycles       int
}

// SnoopHook observes a single cache's snoop response.
type SnoopHook func(ctx *SnoopContext)

// EvictContext carries the state of a line a cache is about to drop to
// make room for an incoming block.
type EvictContext struct {
	Cycle   int
	CoreID  int
	SetIdx  int
	Tag     uint32
	State   core.MESIState
	Dirty   bool
}

// EvictHook observes a line leaving a cache.
type EvictHook func(ctx *EvictContext)

// DeadlockContext carries the set of cores the simulator found blocked
// with no forward progress possible.
type DeadlockContext struct {
	Cycle       int
	BlockedCore []int
}

// DeadlockHook observes a detected deadlock, fired after the simulator
// has reset the bus to recover from it.
type DeadlockHook func(ctx *DeadlockContext)

// PluginBroker coordinates hook registration and triggering. Unlike the
// routing hooks it's grounded on, every hook here is a pure observer —
// none returns an error or can veto the event, since the coherence
// engine's behavior must stay fully deterministic regardless of which
// plugins are attached.
type PluginBroker struct {
	mu sync.RWMutex

	busTransactionHooks []BusTransactionHook
	snoopHooks          []SnoopHook
	evictHooks          []EvictHook
	deadlockHooks       []DeadlockHook

	pluginCatalog map[PluginCategory][]PluginDescriptor
	pluginIndex   map[string]PluginDescriptor
}

// NewPluginBroker creates an empty broker instance.
func NewPluginBroker() *PluginBroker {
	return &PluginBroker{
		pluginCatalog: make(map[PluginCategory][]PluginDescriptor),
		pluginIndex:   make(map[string]PluginDescriptor),
	}
}

// RegisterBusTransaction adds a hook fired when a transaction starts.
func (p *PluginBroker) RegisterBusTransaction(h BusTransactionHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busTransactionHooks = append(p.busTransactionHooks, h)
}

// RegisterSnoop adds a hook fired for each cache's snoop response.
func (p *PluginBroker) RegisterSnoop(h SnoopHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snoopHooks = append(p.snoopHooks, h)
}

// RegisterEvict adds a hook fired when a cache drops a line.
func (p *PluginBroker) RegisterEvict(h EvictHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evictHooks = append(p.evictHooks, h)
}

// RegisterDeadlock adds a hook fired when the simulator detects a
// deadlock.
func (p *PluginBroker) RegisterDeadlock(h DeadlockHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deadlockHooks = append(p.deadlockHooks, h)
}

// EmitBusTransaction triggers every registered BusTransactionHook.
func (p *PluginBroker) EmitBusTransaction(ctx *BusTransactionContext) {
	if p == nil || ctx == nil {
		return
	}
	p.mu.RLock()
	handlers := make([]BusTransactionHook, len(p.busTransactionHooks))
	copy(handlers, p.busTransactionHooks)
	p.mu.RUnlock()
	for _, h := range handlers {
		h(ctx)
	}
}

// EmitSnoop triggers every registered SnoopHook.
func (p *PluginBroker) EmitSnoop(ctx *SnoopContext) {
	if p == nil || ctx == nil {
		return
	}
	p.mu.RLock()
	handlers := make([]SnoopHook, len(p.snoopHooks))
	copy(handlers, p.snoopHooks)
	p.mu.RUnlock()
	for _, h := range handlers {
		h(ctx)
	}
}

// EmitEvict triggers every registered EvictHook.
func (p *PluginBroker) EmitEvict(ctx *EvictContext) {
	if p == nil || ctx == nil {
		return
	}
	p.mu.RLock()
	handlers := make([]EvictHook, len(p.evictHooks))
	copy(handlers, p.evictHooks)
	p.mu.RUnlock()
	for _, h := range handlers {
		h(ctx)
	}
}

// EmitDeadlock triggers every registered DeadlockHook.
func (p *PluginBroker) EmitDeadlock(ctx *DeadlockContext) {
	if p == nil || ctx == nil {
		return
	}
	p.mu.RLock()
	handlers := make([]DeadlockHook, len(p.deadlockHooks))
	copy(handlers, p.deadlockHooks)
	p.mu.RUnlock()
	for _, h := range handlers {
		h(ctx)
	}
}

// RegisterBundle registers a plugin descriptor together with every hook
// handler in bundle.
func (p *PluginBroker) RegisterBundle(desc PluginDescriptor, bundle HookBundle) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.registerDescriptorLocked(desc)

	if len(bundle.BusTransaction) > 0 {
		p.busTransactionHooks = append(p.busTransactionHooks, bundle.BusTransaction...)
	}
	if len(bundle.Snoop) > 0 {
		p.snoopHooks = append(p.snoopHooks, bundle.Snoop...)
	}
	if len(bundle.Evict) > 0 {
		p.evictHooks = append(p.evictHooks, bundle.Evict...)
	}
	if len(bundle.Deadlock) > 0 {
		p.deadlockHooks = append(p.deadlockHooks, bundle.Deadlock...)
	}
}

// RegisterPluginMetadata stores plugin metadata without registering hooks.
func (p *PluginBroker) RegisterPluginMetadata(desc PluginDescriptor) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registerDescriptorLocked(desc)
}

// ListPlugins returns descriptors for plugins in the requested category.
func (p *PluginBroker) ListPlugins(category PluginCategory) []PluginDescriptor {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	catalog := p.pluginCatalog[category]
	if len(catalog) == 0 {
		return nil
	}
	out := make([]PluginDescriptor, len(catalog))
	copy(out, catalog)
	return out
}

// ListAllPlugins returns descriptors of every registered plugin.
func (p *PluginBroker) ListAllPlugins() []PluginDescriptor {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]PluginDescriptor, 0, len(p.pluginIndex))
	for _, desc := range p.pluginIndex {
		out = append(out, desc)
	}
	return out
}

func (p *PluginBroker) registerDescriptorLocked(desc PluginDescriptor) {
	if desc.Name == "" {
		return
	}
	if _, exists := p.pluginIndex[desc.Name]; exists {
		return
	}
	p.pluginIndex[desc.Name] = desc
	category := desc.Category
	p.pluginCatalog[category] = append(p.pluginCatalog[category], desc)
}
