package command

import "github.com/goliatone/go-payments/core"

const (
	TypeCreateCustomer     = "payments.command.customer.create"
	TypeUpdateCustomer     = "payments.command.customer.update"
	TypeDeleteCustomer     = "payments.command.customer.delete"
	TypeCreateCheckout     = "payments.command.checkout.create"
	TypeUpdateCheckout     = "payments.command.checkout.update"
	TypeDeleteCheckout     = "payments.command.checkout.delete"
	TypeCreateSubscription = "payments.command.subscription.create"
	TypeUpdateSubscription = "payments.command.subscription.update"
	TypeDeleteSubscription = "payments.command.subscription.delete"
	TypeCreatePayment      = "payments.command.payment.create"
	TypeUpdatePayment      = "payments.command.payment.update"
	TypeDeletePayment      = "payments.command.payment.delete"
	TypeCreateRefund       = "payments.command.refund.create"
	TypeUpdateRefund       = "payments.command.refund.update"
	TypeDeleteRefund       = "payments.command.refund.delete"
)

type CreateCustomerMessage struct {
	Provider string
	Params   core.CreateCustomerParams
}

func (CreateCustomerMessage) Type() string { return TypeCreateCustomer }

func (m CreateCustomerMessage) Validate() error {
	return core.WithProvider(m.Provider, core.Validate(m.Params))
}

type UpdateCustomerMessage struct {
	Provider string
	Params   core.UpdateCustomerParams
}

func (UpdateCustomerMessage) Type() string { return TypeUpdateCustomer }

func (m UpdateCustomerMessage) Validate() error {
	return core.WithProvider(m.Provider, core.Validate(m.Params))
}

type DeleteCustomerMessage struct {
	Provider string
	ID       string
}

func (DeleteCustomerMessage) Type() string { return TypeDeleteCustomer }

func (m DeleteCustomerMessage) Validate() error {
	return core.WithProvider(m.Provider, core.ValidateID("id", m.ID))
}

type CreateCheckoutMessage struct {
	Provider string
	Params   core.CreateCheckoutParams
}

func (CreateCheckoutMessage) Type() string { return TypeCreateCheckout }

func (m CreateCheckoutMessage) Validate() error {
	return core.WithProvider(m.Provider, core.Validate(m.Params))
}

type UpdateCheckoutMessage struct {
	Provider string
	Params   core.UpdateCheckoutParams
}

func (UpdateCheckoutMessage) Type() string { return TypeUpdateCheckout }

func (m UpdateCheckoutMessage) Validate() error {
	return core.WithProvider(m.Provider, core.Validate(m.Params))
}

type DeleteCheckoutMessage struct {
	Provider string
	ID       string
}

func (DeleteCheckoutMessage) Type() string { return TypeDeleteCheckout }

func (m DeleteCheckoutMessage) Validate() error {
	return core.WithProvider(m.Provider, core.ValidateID("id", m.ID))
}

type CreateSubscriptionMessage struct {
	Provider string
	Params   core.CreateSubscriptionParams
}

func (CreateSubscriptionMessage) Type() string { return TypeCreateSubscription }

func (m CreateSubscriptionMessage) Validate() error {
	return core.WithProvider(m.Provider, core.Validate(m.Params))
}

type UpdateSubscriptionMessage struct {
	Provider string
	Params   core.UpdateSubscriptionParams
}

func (UpdateSubscriptionMessage) Type() string { return TypeUpdateSubscription }

func (m UpdateSubscriptionMessage) Validate() error {
	return core.WithProvider(m.Provider, core.Validate(m.Params))
}

type DeleteSubscriptionMessage struct {
	Provider string
	ID       string
}

func (DeleteSubscriptionMessage) Type() string { return TypeDeleteSubscription }

func (m DeleteSubscriptionMessage) Validate() error {
	return core.WithProvider(m.Provider, core.ValidateID("id", m.ID))
}

type CreatePaymentMessage struct {
	Provider string
	Params   core.CreatePaymentParams
}

func (CreatePaymentMessage) Type() string { return TypeCreatePayment }

func (m CreatePaymentMessage) Validate() error {
	return core.WithProvider(m.Provider, core.Validate(m.Params))
}

type UpdatePaymentMessage struct {
	Provider string
	Params   core.UpdatePaymentParams
}

func (UpdatePaymentMessage) Type() string { return TypeUpdatePayment }

func (m UpdatePaymentMessage) Validate() error {
	return core.WithProvider(m.Provider, core.Validate(m.Params))
}

type DeletePaymentMessage struct {
	Provider string
	ID       string
}

func (DeletePaymentMessage) Type() string { return TypeDeletePayment }

func (m DeletePaymentMessage) Validate() error {
	return core.WithProvider(m.Provider, core.ValidateID("id", m.ID))
}

type CreateRefundMessage struct {
	Provider string
	Params   core.CreateRefundParams
}

func (CreateRefundMessage) Type() string { return TypeCreateRefund }

func (m CreateRefundMessage) Validate() error {
	return core.WithProvider(m.Provider, core.Validate(m.Params))
}

// UpdateRefundMessage patches refund metadata. A key mapped to "" is
// removed.
type UpdateRefundMessage struct {
	Provider string
	ID       string
	Metadata map[string]string
}

func (UpdateRefundMessage) Type() string { return TypeUpdateRefund }

func (m UpdateRefundMessage) Validate() error {
	return core.WithProvider(m.Provider, core.ValidateID("id", m.ID))
}

type DeleteRefundMessage struct {
	Provider string
	ID       string
}

func (DeleteRefundMessage) Type() string { return TypeDeleteRefund }

func (m DeleteRefundMessage) Validate() error {
	return core.WithProvider(m.Provider, core.ValidateID("id", m.ID))
}
