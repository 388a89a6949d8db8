package core

import (
	"sort"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

type Registry interface {
	Register(provider Provider) error
	Get(providerID string) (Provider, bool)
	List() []Provider
	IDs() []string
}

// ProviderRegistry holds at most one adapter per provider id. Ids are
// matched case-insensitively, so "Stripe" and "stripe" name the same
// backend.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]Provider)}
}

func (r *ProviderRegistry) Register(provider Provider) error {
	if provider == nil {
		return NewValidationError("", "provider is required", goerrors.FieldError{Field: "provider", Message: "is required"})
	}
	id := normalizeProviderID(provider.ID())
	if id == "" {
		return NewValidationError("", "provider id is required", goerrors.FieldError{Field: "provider", Message: "id is required"})
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[id]; exists {
		return NewValidationError(id, "provider already registered: "+id, goerrors.FieldError{Field: "provider", Message: "already registered"})
	}
	r.providers[id] = provider
	return nil
}

func (r *ProviderRegistry) Get(providerID string) (Provider, bool) {
	id := normalizeProviderID(providerID)
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.providers[id]
	return provider, ok
}

// List returns the adapters ordered by id.
func (r *ProviderRegistry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	providers := make([]Provider, 0, len(r.providers))
	for _, id := range r.sortedIDs() {
		providers = append(providers, r.providers[id])
	}
	return providers
}

func (r *ProviderRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedIDs()
}

func (r *ProviderRegistry) sortedIDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func normalizeProviderID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
