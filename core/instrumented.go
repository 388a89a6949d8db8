package core

import (
	"context"
	"time"
)

type instrumentedProvider struct {
	inner   Provider
	service *Service
}

func observe[T any](ctx context.Context, p *instrumentedProvider, operation string, call func() (T, error)) (T, error) {
	startedAt := time.Now()
	value, err := call()
	providerID := p.inner.ID()
	err = MapError(providerID, err)
	p.service.observeOperation(ctx, startedAt, providerID, operation, err)
	if err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

func (p *instrumentedProvider) ID() string {
	return p.inner.ID()
}

func (p *instrumentedProvider) CreateCheckout(ctx context.Context, params CreateCheckoutParams) (Checkout, error) {
	return observe(ctx, p, string(CapCreateCheckout), func() (Checkout, error) { return p.inner.CreateCheckout(ctx, params) })
}

func (p *instrumentedProvider) RetrieveCheckout(ctx context.Context, id string) (Checkout, error) {
	return observe(ctx, p, string(CapRetrieveCheckout), func() (Checkout, error) { return p.inner.RetrieveCheckout(ctx, id) })
}

func (p *instrumentedProvider) UpdateCheckout(ctx context.Context, params UpdateCheckoutParams) (Checkout, error) {
	return observe(ctx, p, string(CapUpdateCheckout), func() (Checkout, error) { return p.inner.UpdateCheckout(ctx, params) })
}

func (p *instrumentedProvider) DeleteCheckout(ctx context.Context, id string) (Checkout, error) {
	return observe(ctx, p, string(CapDeleteCheckout), func() (Checkout, error) { return p.inner.DeleteCheckout(ctx, id) })
}

func (p *instrumentedProvider) CreateCustomer(ctx context.Context, params CreateCustomerParams) (Customer, error) {
	return observe(ctx, p, string(CapCreateCustomer), func() (Customer, error) { return p.inner.CreateCustomer(ctx, params) })
}

func (p *instrumentedProvider) RetrieveCustomer(ctx context.Context, id string) (Customer, error) {
	return observe(ctx, p, string(CapRetrieveCustomer), func() (Customer, error) { return p.inner.RetrieveCustomer(ctx, id) })
}

func (p *instrumentedProvider) UpdateCustomer(ctx context.Context, params UpdateCustomerParams) (Customer, error) {
	return observe(ctx, p, string(CapUpdateCustomer), func() (Customer, error) { return p.inner.UpdateCustomer(ctx, params) })
}

func (p *instrumentedProvider) DeleteCustomer(ctx context.Context, id string) (Customer, error) {
	return observe(ctx, p, string(CapDeleteCustomer), func() (Customer, error) { return p.inner.DeleteCustomer(ctx, id) })
}

func (p *instrumentedProvider) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (Subscription, error) {
	return observe(ctx, p, string(CapCreateSubscription), func() (Subscription, error) { return p.inner.CreateSubscription(ctx, params) })
}

func (p *instrumentedProvider) RetrieveSubscription(ctx context.Context, id string) (Subscription, error) {
	return observe(ctx, p, string(CapRetrieveSubscription), func() (Subscription, error) { return p.inner.RetrieveSubscription(ctx, id) })
}

func (p *instrumentedProvider) UpdateSubscription(ctx context.Context, params UpdateSubscriptionParams) (Subscription, error) {
	return observe(ctx, p, string(CapUpdateSubscription), func() (Subscription, error) { return p.inner.UpdateSubscription(ctx, params) })
}

func (p *instrumentedProvider) DeleteSubscription(ctx context.Context, id string) (Subscription, error) {
	return observe(ctx, p, string(CapDeleteSubscription), func() (Subscription, error) { return p.inner.DeleteSubscription(ctx, id) })
}

func (p *instrumentedProvider) CreatePayment(ctx context.Context, params CreatePaymentParams) (Payment, error) {
	return observe(ctx, p, string(CapCreatePayment), func() (Payment, error) { return p.inner.CreatePayment(ctx, params) })
}

func (p *instrumentedProvider) RetrievePayment(ctx context.Context, id string) (Payment, error) {
	return observe(ctx, p, string(CapRetrievePayment), func() (Payment, error) { return p.inner.RetrievePayment(ctx, id) })
}

func (p *instrumentedProvider) UpdatePayment(ctx context.Context, params UpdatePaymentParams) (Payment, error) {
	return observe(ctx, p, string(CapUpdatePayment), func() (Payment, error) { return p.inner.UpdatePayment(ctx, params) })
}

func (p *instrumentedProvider) DeletePayment(ctx context.Context, id string) (Payment, error) {
	return observe(ctx, p, string(CapDeletePayment), func() (Payment, error) { return p.inner.DeletePayment(ctx, id) })
}

func (p *instrumentedProvider) CreateRefund(ctx context.Context, params CreateRefundParams) (Refund, error) {
	return observe(ctx, p, string(CapCreateRefund), func() (Refund, error) { return p.inner.CreateRefund(ctx, params) })
}

func (p *instrumentedProvider) RetrieveRefund(ctx context.Context, id string) (Refund, error) {
	return observe(ctx, p, string(CapRetrieveRefund), func() (Refund, error) { return p.inner.RetrieveRefund(ctx, id) })
}

func (p *instrumentedProvider) UpdateRefund(ctx context.Context, id string, metadata map[string]string) (Refund, error) {
	return observe(ctx, p, string(CapUpdateRefund), func() (Refund, error) { return p.inner.UpdateRefund(ctx, id, metadata) })
}

func (p *instrumentedProvider) DeleteRefund(ctx context.Context, id string) (Refund, error) {
	return observe(ctx, p, string(CapDeleteRefund), func() (Refund, error) { return p.inner.DeleteRefund(ctx, id) })
}

func (p *instrumentedProvider) HandleWebhook(ctx context.Context, delivery WebhookDelivery) ([]WebhookEvent, error) {
	return observe(ctx, p, string(CapHandleWebhook), func() ([]WebhookEvent, error) { return p.inner.HandleWebhook(ctx, delivery) })
}
