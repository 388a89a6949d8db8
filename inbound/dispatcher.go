package inbound

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/webhooks"
)

// Engine is satisfied by *webhooks.Builder.
type Engine interface {
	Handle(ctx context.Context, delivery core.WebhookDelivery) (webhooks.Report, error)
}

// Dispatcher routes deliveries to the engine registered for a provider id.
type Dispatcher struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{engines: map[string]Engine{}}
}

func (d *Dispatcher) Register(provider string, engine Engine) error {
	provider = normalizeProvider(provider)
	if provider == "" || engine == nil {
		return core.NewConfigurationError(provider, []string{"webhook_engine"})
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.engines[provider]; exists {
		return duplicateProvider(provider)
	}
	d.engines[provider] = engine
	return nil
}

func (d *Dispatcher) Providers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.engines))
	for provider := range d.engines {
		out = append(out, provider)
	}
	sort.Strings(out)
	return out
}

func (d *Dispatcher) Dispatch(ctx context.Context, provider string, delivery core.WebhookDelivery) (webhooks.Report, error) {
	provider = normalizeProvider(provider)
	d.mu.RLock()
	engine, ok := d.engines[provider]
	d.mu.RUnlock()
	if !ok {
		return webhooks.Report{Provider: provider, Stage: webhooks.StageReceived}, providerNotRegistered(provider)
	}
	return engine.Handle(ctx, delivery)
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
