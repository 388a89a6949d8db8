package payments

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/webhooks"
)

type ProviderPack struct {
	Name      string
	Providers []core.Provider
}

// HandlerPack groups webhook handlers a downstream module contributes.
// An empty ProviderID applies the pack to every provider's engine.
type HandlerPack struct {
	Name       string
	ProviderID string
	Handlers   map[core.EventType]webhooks.Handler
}

type CommandQueryBundleFactory func(providers ProviderResolver) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	providerPacks map[string]ProviderPack
	handlerPacks  map[string]HandlerPack
	bundles       map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		providerPacks: map[string]ProviderPack{},
		handlerPacks:  map[string]HandlerPack{},
		bundles:       map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterProviderPack(pack ProviderPack) error {
	if h == nil {
		return fmt.Errorf("payments: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("payments: provider pack name is required")
	}
	if len(pack.Providers) == 0 {
		return fmt.Errorf("payments: provider pack %q has no providers", name)
	}

	normalized := ProviderPack{
		Name:      name,
		Providers: append([]core.Provider(nil), pack.Providers...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.providerPacks[name]; exists {
		return fmt.Errorf("payments: provider pack %q already registered", name)
	}
	h.providerPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterHandlerPack(pack HandlerPack) error {
	if h == nil {
		return fmt.Errorf("payments: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("payments: handler pack name is required")
	}
	if len(pack.Handlers) == 0 {
		return fmt.Errorf("payments: handler pack %q has no handlers", name)
	}
	normalized := HandlerPack{
		Name:       name,
		ProviderID: strings.TrimSpace(strings.ToLower(pack.ProviderID)),
		Handlers:   make(map[core.EventType]webhooks.Handler, len(pack.Handlers)),
	}
	for event, handler := range pack.Handlers {
		if handler == nil {
			return fmt.Errorf("payments: handler pack %q has nil handler for %q", name, event)
		}
		normalized.Handlers[event] = handler
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.handlerPacks[name]; exists {
		return fmt.Errorf("payments: handler pack %q already registered", name)
	}
	h.handlerPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("payments: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("payments: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("payments: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("payments: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

func (h *ExtensionHooks) ApplyProviderPacks(registry core.Registry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("payments: registry is required")
	}

	for _, pack := range h.ProviderPacks() {
		for _, provider := range pack.Providers {
			if provider == nil {
				return fmt.Errorf("payments: provider pack %q contains nil provider", pack.Name)
			}
			if err := registry.Register(provider); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyHandlerPacks registers every pack matching providerID on the engine.
// Packs apply in name order, so a later pack replaces an earlier handler
// for the same event unless the engine rejects duplicates.
func (h *ExtensionHooks) ApplyHandlerPacks(providerID string, engine *webhooks.Builder) error {
	if h == nil {
		return nil
	}
	if engine == nil {
		return fmt.Errorf("payments: webhook engine is required")
	}
	for _, pack := range h.HandlerPacks(providerID) {
		events := make([]string, 0, len(pack.Handlers))
		for event := range pack.Handlers {
			events = append(events, string(event))
		}
		sort.Strings(events)
		for _, event := range events {
			engine.On(core.EventType(event), pack.Handlers[core.EventType(event)])
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	providers ProviderResolver,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if providers == nil {
		return nil, fmt.Errorf("payments: provider resolver is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		names = append(names, name)
		factories[name] = factory
	}
	h.mu.RUnlock()
	sort.Strings(names)

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](providers)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) ProviderPacks() []ProviderPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.providerPacks))
	for name := range h.providerPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ProviderPack, 0, len(names))
	for _, name := range names {
		pack := h.providerPacks[name]
		out = append(out, ProviderPack{
			Name:      pack.Name,
			Providers: append([]core.Provider(nil), pack.Providers...),
		})
	}
	return out
}

// HandlerPacks lists the packs targeting providerID plus the ones that
// target every provider.
func (h *ExtensionHooks) HandlerPacks(providerID string) []HandlerPack {
	if h == nil {
		return nil
	}
	providerID = strings.TrimSpace(strings.ToLower(providerID))
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.handlerPacks))
	for name, pack := range h.handlerPacks {
		if pack.ProviderID == "" || pack.ProviderID == providerID {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]HandlerPack, 0, len(names))
	for _, name := range names {
		pack := h.handlerPacks[name]
		handlers := make(map[core.EventType]webhooks.Handler, len(pack.Handlers))
		for event, handler := range pack.Handlers {
			handlers[event] = handler
		}
		out = append(out, HandlerPack{Name: pack.Name, ProviderID: pack.ProviderID, Handlers: handlers})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
