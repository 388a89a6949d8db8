package query

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payments/core"
)

const (
	TypeRetrieveCustomer     = "payments.query.customer.retrieve"
	TypeRetrieveCheckout     = "payments.query.checkout.retrieve"
	TypeRetrieveSubscription = "payments.query.subscription.retrieve"
	TypeRetrievePayment      = "payments.query.payment.retrieve"
	TypeRetrieveRefund       = "payments.query.refund.retrieve"
	TypeWebhookEventStatus   = "payments.query.webhook_event.status"
)

type RetrieveCustomerMessage struct {
	Provider string
	ID       string
}

func (RetrieveCustomerMessage) Type() string { return TypeRetrieveCustomer }

func (m RetrieveCustomerMessage) Validate() error {
	return core.WithProvider(m.Provider, core.ValidateID("id", m.ID))
}

type RetrieveCheckoutMessage struct {
	Provider string
	ID       string
}

func (RetrieveCheckoutMessage) Type() string { return TypeRetrieveCheckout }

func (m RetrieveCheckoutMessage) Validate() error {
	return core.WithProvider(m.Provider, core.ValidateID("id", m.ID))
}

type RetrieveSubscriptionMessage struct {
	Provider string
	ID       string
}

func (RetrieveSubscriptionMessage) Type() string { return TypeRetrieveSubscription }

func (m RetrieveSubscriptionMessage) Validate() error {
	return core.WithProvider(m.Provider, core.ValidateID("id", m.ID))
}

type RetrievePaymentMessage struct {
	Provider string
	ID       string
}

func (RetrievePaymentMessage) Type() string { return TypeRetrievePayment }

func (m RetrievePaymentMessage) Validate() error {
	return core.WithProvider(m.Provider, core.ValidateID("id", m.ID))
}

type RetrieveRefundMessage struct {
	Provider string
	ID       string
}

func (RetrieveRefundMessage) Type() string { return TypeRetrieveRefund }

func (m RetrieveRefundMessage) Validate() error {
	return core.WithProvider(m.Provider, core.ValidateID("id", m.ID))
}

// WebhookEventStatusMessage asks whether a provider event has already been
// claimed or completed by the durable deduper.
type WebhookEventStatusMessage struct {
	Provider string
	EventID  string
}

func (WebhookEventStatusMessage) Type() string { return TypeWebhookEventStatus }

func (m WebhookEventStatusMessage) Validate() error {
	var violations []goerrors.FieldError
	if strings.TrimSpace(m.Provider) == "" {
		violations = append(violations, goerrors.FieldError{Field: "provider", Message: "is required"})
	}
	if strings.TrimSpace(m.EventID) == "" {
		violations = append(violations, goerrors.FieldError{Field: "event_id", Message: "is required"})
	}
	if len(violations) == 0 {
		return nil
	}
	return core.NewValidationError(m.Provider, "query: validation failed", violations...)
}
