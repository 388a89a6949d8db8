package core

import "context"

// UnimplementedProvider answers every capability with NotImplementedError.
// Adapters embed it and override what their backend supports. Capabilities
// listed in Planned are reported with future_support=true.
type UnimplementedProvider struct {
	Name    string
	Planned map[Capability]bool
}

func (u UnimplementedProvider) ID() string {
	return u.Name
}

func (u UnimplementedProvider) NotImplemented(capability Capability) error {
	return NewNotImplementedError(u.Name, capability, u.Planned[capability])
}

func (u UnimplementedProvider) CreateCheckout(context.Context, CreateCheckoutParams) (Checkout, error) {
	return Checkout{}, u.NotImplemented(CapCreateCheckout)
}

func (u UnimplementedProvider) RetrieveCheckout(context.Context, string) (Checkout, error) {
	return Checkout{}, u.NotImplemented(CapRetrieveCheckout)
}

func (u UnimplementedProvider) UpdateCheckout(context.Context, UpdateCheckoutParams) (Checkout, error) {
	return Checkout{}, u.NotImplemented(CapUpdateCheckout)
}

func (u UnimplementedProvider) DeleteCheckout(context.Context, string) (Checkout, error) {
	return Checkout{}, u.NotImplemented(CapDeleteCheckout)
}

func (u UnimplementedProvider) CreateCustomer(context.Context, CreateCustomerParams) (Customer, error) {
	return Customer{}, u.NotImplemented(CapCreateCustomer)
}

func (u UnimplementedProvider) RetrieveCustomer(context.Context, string) (Customer, error) {
	return Customer{}, u.NotImplemented(CapRetrieveCustomer)
}

func (u UnimplementedProvider) UpdateCustomer(context.Context, UpdateCustomerParams) (Customer, error) {
	return Customer{}, u.NotImplemented(CapUpdateCustomer)
}

func (u UnimplementedProvider) DeleteCustomer(context.Context, string) (Customer, error) {
	return Customer{}, u.NotImplemented(CapDeleteCustomer)
}

func (u UnimplementedProvider) CreateSubscription(context.Context, CreateSubscriptionParams) (Subscription, error) {
	return Subscription{}, u.NotImplemented(CapCreateSubscription)
}

func (u UnimplementedProvider) RetrieveSubscription(context.Context, string) (Subscription, error) {
	return Subscription{}, u.NotImplemented(CapRetrieveSubscription)
}

func (u UnimplementedProvider) UpdateSubscription(context.Context, UpdateSubscriptionParams) (Subscription, error) {
	return Subscription{}, u.NotImplemented(CapUpdateSubscription)
}

func (u UnimplementedProvider) DeleteSubscription(context.Context, string) (Subscription, error) {
	return Subscription{}, u.NotImplemented(CapDeleteSubscription)
}

func (u UnimplementedProvider) CreatePayment(context.Context, CreatePaymentParams) (Payment, error) {
	return Payment{}, u.NotImplemented(CapCreatePayment)
}

func (u UnimplementedProvider) RetrievePayment(context.Context, string) (Payment, error) {
	return Payment{}, u.NotImplemented(CapRetrievePayment)
}

func (u UnimplementedProvider) UpdatePayment(context.Context, UpdatePaymentParams) (Payment, error) {
	return Payment{}, u.NotImplemented(CapUpdatePayment)
}

func (u UnimplementedProvider) DeletePayment(context.Context, string) (Payment, error) {
	return Payment{}, u.NotImplemented(CapDeletePayment)
}

func (u UnimplementedProvider) CreateRefund(context.Context, CreateRefundParams) (Refund, error) {
	return Refund{}, u.NotImplemented(CapCreateRefund)
}

func (u UnimplementedProvider) RetrieveRefund(context.Context, string) (Refund, error) {
	return Refund{}, u.NotImplemented(CapRetrieveRefund)
}

func (u UnimplementedProvider) UpdateRefund(context.Context, string, map[string]string) (Refund, error) {
	return Refund{}, u.NotImplemented(CapUpdateRefund)
}

func (u UnimplementedProvider) DeleteRefund(context.Context, string) (Refund, error) {
	return Refund{}, u.NotImplemented(CapDeleteRefund)
}

func (u UnimplementedProvider) HandleWebhook(context.Context, WebhookDelivery) ([]WebhookEvent, error) {
	return nil, u.NotImplemented(CapHandleWebhook)
}
