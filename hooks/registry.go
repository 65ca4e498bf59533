package hooks

import (
	"fmt"
	"sync"
)

// GlobalPluginFactory installs hooks that observe every core.
type GlobalPluginFactory func(broker *PluginBroker) error

// CorePluginFactory installs hooks scoped to a single core id.
type CorePluginFactory func(coreID int, broker *PluginBroker) error

type registryEntry struct {
	desc    PluginDescriptor
	factory GlobalPluginFactory
}

type coreRegistryEntry struct {
	desc    PluginDescriptor
	factory CorePluginFactory
}

// Registry keeps plugin factories that can be activated by name from
// configuration (the -plugins flag's value), bound to one broker shared
// by every component in a simulation run.
type Registry struct {
	mu     sync.RWMutex
	broker *PluginBroker

	global map[string]registryEntry
	core   map[string]coreRegistryEntry
}

// NewRegistry creates an empty plugin registry bound to broker. A nil
// broker gets a fresh one.
func NewRegistry(broker *PluginBroker) *Registry {
	if broker == nil {
		broker = NewPluginBroker()
	}
	return &Registry{
		broker: broker,
		global: make(map[string]registryEntry),
		core:   make(map[string]coreRegistryEntry),
	}
}

// Broker returns the underlying broker associated with the registry.
func (r *Registry) Broker() *PluginBroker {
	if r == nil {
		return nil
	}
	return r.broker
}

// RegisterGlobal registers a global plugin factory under name.
func (r *Registry) RegisterGlobal(name string, desc PluginDescriptor, factory GlobalPluginFactory) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	if name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("plugin factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.global[name]; exists {
		return fmt.Errorf("global plugin already registered: %s", name)
	}

	r.global[name] = registryEntry{desc: desc, factory: factory}
	return nil
}

// RegisterCore registers a core-scoped plugin factory under name.
func (r *Registry) RegisterCore(name string, desc PluginDescriptor, factory CorePluginFactory) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	if name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("plugin factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.core[name]; exists {
		return fmt.Errorf("core plugin already registered: %s", name)
	}

	r.core[name] = coreRegistryEntry{desc: desc, factory: factory}
	return nil
}

// LoadGlobal activates the requested global plugins.
func (r *Registry) LoadGlobal(names []string) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	for _, name := range names {
		entry, err := r.getGlobal(name)
		if err != nil {
			return err
		}
		if err := entry.factory(r.broker); err != nil {
			return fmt.Errorf("global plugin %s failed: %w", name, err)
		}
		r.broker.RegisterPluginMetadata(entry.desc)
	}
	return nil
}

// LoadForCore activates the requested core-scoped plugins for coreID.
func (r *Registry) LoadForCore(coreID int, names []string) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	for _, name := range names {
		entry, err := r.getCore(name)
		if err != nil {
			return err
		}
		if err := entry.factory(coreID, r.broker); err != nil {
			return fmt.Errorf("core plugin %s failed: %w", name, err)
		}
		r.broker.RegisterPluginMetadata(entry.desc)
	}
	return nil
}

// Descriptor returns metadata registered under name.
func (r *Registry) Descriptor(name string) (PluginDescriptor, bool) {
	if r == nil {
		return PluginDescriptor{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.global[name]; ok {
		return entry.desc, true
	}
	if entry, ok := r.core[name]; ok {
		return entry.desc, true
	}
	return PluginDescriptor{}, false
}

func (r *Registry) getGlobal(name string) (registryEntry, error) {
	r.mu.RLock()
	entry, ok := r.global[name]
	r.mu.RUnlock()
	if !ok {
		return registryEntry{}, fmt.Errorf("global plugin not found: %s", name)
	}
	return entry, nil
}

func (r *Registry) getCore(name string) (coreRegistryEntry, error) {
	r.mu.RLock()
	entry, ok := r.core[name]
	r.mu.RUnlock()
	if !ok {
		return coreRegistryEntry{}, fmt.Errorf("core plugin not found: %s", name)
	}
	return entry, nil
}
