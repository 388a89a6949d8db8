package local

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-payments/core"
)

func decodeAs[R core.Resource](raw json.RawMessage) (core.Resource, error) {
	var resource R
	if err := json.Unmarshal(raw, &resource); err != nil {
		return nil, core.NewUnknownError(ProviderID, "decode webhook object", err)
	}
	return resource, nil
}

var objectDecoders = map[string]func(json.RawMessage) (core.Resource, error){
	"customer":     decodeAs[core.Customer],
	"checkout":     decodeAs[core.Checkout],
	"subscription": decodeAs[core.Subscription],
	"payment":      decodeAs[core.Payment],
	"refund":       decodeAs[core.Refund],
	"invoice":      decodeAs[core.Invoice],
}

// HandleWebhook verifies a batch produced by Flush and returns its events
// in emission order. Entries with an unknown type are skipped.
func (p *Provider) HandleWebhook(ctx context.Context, delivery core.WebhookDelivery) ([]core.WebhookEvent, error) {
	if err := aborted(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	verifier := p.verifier
	p.mu.Unlock()
	if err := verifier.Verify(delivery); err != nil {
		return nil, err
	}

	var batch []envelope
	if err := json.Unmarshal(delivery.Body, &batch); err != nil {
		return nil, core.NewUnknownError(ProviderID, "decode webhook batch", err)
	}
	events := make([]core.WebhookEvent, 0, len(batch))
	for _, entry := range batch {
		decode, ok := objectDecoders[entry.Object]
		if !ok || !entry.Type.Valid() {
			p.logger.Debug("local webhook entry ignored", "event_id", entry.ID, "type", entry.Type)
			continue
		}
		resource, err := decode(entry.Data)
		if err != nil {
			return nil, err
		}
		event, err := core.NewWebhookEvent(entry.ID, ProviderID, entry.Type, resource, unix(entry.Created))
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}
