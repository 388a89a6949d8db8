package local

import (
	"encoding/json"
	"time"

	"github.com/goliatone/go-payments/core"
)

// envelope is one entry of a signed batch delivery.
type envelope struct {
	ID      string          `json:"id"`
	Type    core.EventType  `json:"type"`
	Created int64           `json:"created"`
	Object  string          `json:"object"`
	Data    json.RawMessage `json:"data"`
}

// emit queues an event for the next Flush. Callers hold p.mu.
func (p *Provider) emit(eventType core.EventType, resource core.Resource) {
	data, err := json.Marshal(resource)
	if err != nil {
		p.logger.Error("local event dropped", "type", eventType, "error", err)
		return
	}
	p.state.outbox = append(p.state.outbox, envelope{
		ID:      newID("evt"),
		Type:    eventType,
		Created: p.now().Unix(),
		Object:  resource.ResourceKind(),
		Data:    data,
	})
}

// Pending reports how many events wait for the next Flush.
func (p *Provider) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.state.outbox)
}

// Flush drains the outbox into one signed delivery, in emission order. It
// reports false when nothing was pending.
func (p *Provider) Flush() (core.WebhookDelivery, bool, error) {
	p.mu.Lock()
	batch := p.state.outbox
	p.state.outbox = nil
	verifier, at := p.verifier, p.now()
	p.mu.Unlock()

	if len(batch) == 0 {
		return core.WebhookDelivery{}, false, nil
	}
	body, err := json.Marshal(batch)
	if err != nil {
		p.requeue(batch)
		return core.WebhookDelivery{}, false, core.NewUnknownError(ProviderID, "encode webhook batch", err)
	}
	headers := verifier.Sign(body, at)
	headers["Content-Type"] = "application/json"
	return core.WebhookDelivery{Body: body, Headers: headers}, true, nil
}

func (p *Provider) requeue(batch []envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.outbox = append(batch, p.state.outbox...)
}

func unix(seconds int64) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0).UTC()
}
