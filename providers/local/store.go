package local

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/metadata"
	"github.com/google/uuid"
)

// record keeps a resource the way a remote backend would: the canonical
// fields plus an opaque metadata bag holding caller keys and the internal
// payload side by side.
type record[T core.Resource] struct {
	value T
	bag   map[string]string
}

type state struct {
	customers     map[string]record[core.Customer]
	checkouts     map[string]record[core.Checkout]
	subscriptions map[string]record[core.Subscription]
	payments      map[string]record[core.Payment]
	refunds       map[string]record[core.Refund]
	invoices      map[string]core.Invoice
	// refunded is the ledger of refunded amounts per payment.
	refunded map[string]int64
	outbox   []envelope
}

func newState() *state {
	return &state{
		customers:     map[string]record[core.Customer]{},
		checkouts:     map[string]record[core.Checkout]{},
		subscriptions: map[string]record[core.Subscription]{},
		payments:      map[string]record[core.Payment]{},
		refunds:       map[string]record[core.Refund]{},
		invoices:      map[string]core.Invoice{},
		refunded:      map[string]int64{},
	}
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func notFound(kind string, id string) error {
	return core.NewValidationError(ProviderID, kind+" "+id+" not found", goerrors.FieldError{
		Field:   "id",
		Message: "not found",
	})
}

func conflict(field string, message string) error {
	return core.NewValidationError(ProviderID, message, goerrors.FieldError{
		Field:   field,
		Message: message,
	})
}

func lookup[T core.Resource](table map[string]record[T], kind string, id string) (record[T], error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return record[T]{}, core.NewValidationError(ProviderID, "id is required", goerrors.FieldError{Field: "id", Message: "is required"})
	}
	found, ok := table[id]
	if !ok {
		return record[T]{}, notFound(kind, id)
	}
	return found, nil
}

// pack stores caller metadata with the internal payload.
func (p *Provider) pack(caller map[string]string, internal metadata.Internal) (map[string]string, error) {
	return p.codec.Embed(caller, internal)
}

// repack merges a caller patch into an existing bag and keeps the stored
// internal payload.
func (p *Provider) repack(bag map[string]string, patch map[string]string) (map[string]string, error) {
	caller, internal := p.codec.Extract(bag)
	if patch == nil {
		return bag, nil
	}
	if err := p.codec.Guard(patch); err != nil {
		return nil, err
	}
	for key, value := range patch {
		if value == "" {
			delete(caller, key)
			continue
		}
		caller[key] = value
	}
	return p.codec.Embed(caller, internal)
}

func (p *Provider) unpack(bag map[string]string) (map[string]string, metadata.Internal) {
	return p.codec.Extract(bag)
}
