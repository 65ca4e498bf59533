package hooks

import "testing"

func TestRegistryLoadGlobalAndCore(t *testing.T) {
	broker := NewPluginBroker()
	reg := NewRegistry(broker)

	globalDesc := PluginDescriptor{
		Name:     "global-metrics",
		Category: PluginCategoryInstrumentation,
	}

	if err := reg.RegisterGlobal("global-metrics", globalDesc, func(b *PluginBroker) error {
		b.RegisterBundle(globalDesc, HookBundle{
			BusTransaction: []BusTransactionHook{
				func(ctx *BusTransactionContext) {},
			},
		})
		return nil
	}); err != nil {
		t.Fatalf("RegisterGlobal failed: %v", err)
	}

	coreDesc := PluginDescriptor{
		Name:     "core-stub",
		Category: PluginCategoryPolicy,
	}
	var capturedCoreID int
	if err := reg.RegisterCore("core-stub", coreDesc, func(coreID int, b *PluginBroker) error {
		capturedCoreID = coreID
		return nil
	}); err != nil {
		t.Fatalf("RegisterCore failed: %v", err)
	}

	if err := reg.LoadGlobal([]string{"global-metrics"}); err != nil {
		t.Fatalf("LoadGlobal failed: %v", err)
	}
	if err := reg.LoadForCore(2, []string{"core-stub"}); err != nil {
		t.Fatalf("LoadForCore failed: %v", err)
	}

	if capturedCoreID != 2 {
		t.Fatalf("expected core factory to receive id 2, got %d", capturedCoreID)
	}

	descs := broker.ListAllPlugins()
	if len(descs) != 2 {
		t.Fatalf("expected 2 plugin descriptors, got %d", len(descs))
	}
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	reg := NewRegistry(NewPluginBroker())

	desc := PluginDescriptor{Name: "dup", Category: PluginCategoryPolicy}
	err := reg.RegisterGlobal("dup", desc, func(b *PluginBroker) error { return nil })
	if err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	err = reg.RegisterGlobal("dup", desc, func(b *PluginBroker) error { return nil })
	if err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}

	err = reg.RegisterCore("dup", desc, func(coreID int, b *PluginBroker) error { return nil })
	if err != nil {
		t.Fatalf("first core registration failed: %v", err)
	}
	err = reg.RegisterCore("dup", desc, func(coreID int, b *PluginBroker) error { return nil })
	if err == nil {
		t.Fatalf("expected duplicate core registration to fail")
	}
}

func TestRegistryUnknownPlugin(t *testing.T) {
	reg := NewRegistry(NewPluginBroker())

	if err := reg.LoadGlobal([]string{"missing"}); err == nil {
		t.Fatalf("expected error for missing global plugin")
	}

	if err := reg.LoadForCore(1, []string{"missing"}); err == nil {
		t.Fatalf("expected error for missing core plugin")
	}
}
