package query

import (
	"context"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/webhooks"
)

// ProviderResolver looks adapters up by id. An empty id selects the
// configured default.
type ProviderResolver interface {
	Provider(id string) (core.Provider, error)
}

// WebhookEventReader is satisfied by the memory and SQL dedupers.
type WebhookEventReader = webhooks.ClaimReader

type RetrieveCustomerQuery struct {
	providers ProviderResolver
}

func NewRetrieveCustomerQuery(providers ProviderResolver) *RetrieveCustomerQuery {
	return &RetrieveCustomerQuery{providers: providers}
}

func (q *RetrieveCustomerQuery) Query(ctx context.Context, msg RetrieveCustomerMessage) (core.Customer, error) {
	if q == nil || q.providers == nil {
		return core.Customer{}, queryDependencyError("query: customer provider resolver is required")
	}
	provider, err := q.providers.Provider(msg.Provider)
	if err != nil {
		return core.Customer{}, err
	}
	return provider.RetrieveCustomer(ctx, msg.ID)
}

type RetrieveCheckoutQuery struct {
	providers ProviderResolver
}

func NewRetrieveCheckoutQuery(providers ProviderResolver) *RetrieveCheckoutQuery {
	return &RetrieveCheckoutQuery{providers: providers}
}

func (q *RetrieveCheckoutQuery) Query(ctx context.Context, msg RetrieveCheckoutMessage) (core.Checkout, error) {
	if q == nil || q.providers == nil {
		return core.Checkout{}, queryDependencyError("query: checkout provider resolver is required")
	}
	provider, err := q.providers.Provider(msg.Provider)
	if err != nil {
		return core.Checkout{}, err
	}
	return provider.RetrieveCheckout(ctx, msg.ID)
}

type RetrieveSubscriptionQuery struct {
	providers ProviderResolver
}

func NewRetrieveSubscriptionQuery(providers ProviderResolver) *RetrieveSubscriptionQuery {
	return &RetrieveSubscriptionQuery{providers: providers}
}

func (q *RetrieveSubscriptionQuery) Query(ctx context.Context, msg RetrieveSubscriptionMessage) (core.Subscription, error) {
	if q == nil || q.providers == nil {
		return core.Subscription{}, queryDependencyError("query: subscription provider resolver is required")
	}
	provider, err := q.providers.Provider(msg.Provider)
	if err != nil {
		return core.Subscription{}, err
	}
	return provider.RetrieveSubscription(ctx, msg.ID)
}

type RetrievePaymentQuery struct {
	providers ProviderResolver
}

func NewRetrievePaymentQuery(providers ProviderResolver) *RetrievePaymentQuery {
	return &RetrievePaymentQuery{providers: providers}
}

func (q *RetrievePaymentQuery) Query(ctx context.Context, msg RetrievePaymentMessage) (core.Payment, error) {
	if q == nil || q.providers == nil {
		return core.Payment{}, queryDependencyError("query: payment provider resolver is required")
	}
	provider, err := q.providers.Provider(msg.Provider)
	if err != nil {
		return core.Payment{}, err
	}
	return provider.RetrievePayment(ctx, msg.ID)
}

type RetrieveRefundQuery struct {
	providers ProviderResolver
}

func NewRetrieveRefundQuery(providers ProviderResolver) *RetrieveRefundQuery {
	return &RetrieveRefundQuery{providers: providers}
}

func (q *RetrieveRefundQuery) Query(ctx context.Context, msg RetrieveRefundMessage) (core.Refund, error) {
	if q == nil || q.providers == nil {
		return core.Refund{}, queryDependencyError("query: refund provider resolver is required")
	}
	provider, err := q.providers.Provider(msg.Provider)
	if err != nil {
		return core.Refund{}, err
	}
	return provider.RetrieveRefund(ctx, msg.ID)
}

// WebhookEventStatus is the answer of WebhookEventStatusQuery. Seen is
// false when the event was never claimed.
type WebhookEventStatus struct {
	Seen   bool
	Record webhooks.ClaimRecord
}

type WebhookEventStatusQuery struct {
	reader WebhookEventReader
}

func NewWebhookEventStatusQuery(reader WebhookEventReader) *WebhookEventStatusQuery {
	return &WebhookEventStatusQuery{reader: reader}
}

func (q *WebhookEventStatusQuery) Query(ctx context.Context, msg WebhookEventStatusMessage) (WebhookEventStatus, error) {
	if q == nil || q.reader == nil {
		return WebhookEventStatus{}, queryDependencyError("query: webhook event reader is required")
	}
	record, ok, err := q.reader.Get(ctx, msg.Provider, msg.EventID)
	if err != nil {
		return WebhookEventStatus{}, err
	}
	return WebhookEventStatus{Seen: ok, Record: record}, nil
}
