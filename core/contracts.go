package core

import (
	"context"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// Capability names one operation of the provider contract.
type Capability string

const (
	CapCreateCheckout       Capability = "create_checkout"
	CapRetrieveCheckout     Capability = "retrieve_checkout"
	CapUpdateCheckout       Capability = "update_checkout"
	CapDeleteCheckout       Capability = "delete_checkout"
	CapCreateCustomer       Capability = "create_customer"
	CapRetrieveCustomer     Capability = "retrieve_customer"
	CapUpdateCustomer       Capability = "update_customer"
	CapDeleteCustomer       Capability = "delete_customer"
	CapCreateSubscription   Capability = "create_subscription"
	CapRetrieveSubscription Capability = "retrieve_subscription"
	CapUpdateSubscription   Capability = "update_subscription"
	CapDeleteSubscription   Capability = "delete_subscription"
	CapCreatePayment        Capability = "create_payment"
	CapRetrievePayment      Capability = "retrieve_payment"
	CapUpdatePayment        Capability = "update_payment"
	CapDeletePayment        Capability = "delete_payment"
	CapCreateRefund         Capability = "create_refund"
	CapRetrieveRefund       Capability = "retrieve_refund"
	CapUpdateRefund         Capability = "update_refund"
	CapDeleteRefund         Capability = "delete_refund"
	CapHandleWebhook        Capability = "handle_webhook"
)

type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, params CreateCheckoutParams) (Checkout, error)
	RetrieveCheckout(ctx context.Context, id string) (Checkout, error)
	UpdateCheckout(ctx context.Context, params UpdateCheckoutParams) (Checkout, error)
	DeleteCheckout(ctx context.Context, id string) (Checkout, error)
}

type CustomerProvider interface {
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (Customer, error)
	RetrieveCustomer(ctx context.Context, id string) (Customer, error)
	UpdateCustomer(ctx context.Context, params UpdateCustomerParams) (Customer, error)
	DeleteCustomer(ctx context.Context, id string) (Customer, error)
}

type SubscriptionProvider interface {
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (Subscription, error)
	RetrieveSubscription(ctx context.Context, id string) (Subscription, error)
	UpdateSubscription(ctx context.Context, params UpdateSubscriptionParams) (Subscription, error)
	DeleteSubscription(ctx context.Context, id string) (Subscription, error)
}

type PaymentProvider interface {
	CreatePayment(ctx context.Context, params CreatePaymentParams) (Payment, error)
	RetrievePayment(ctx context.Context, id string) (Payment, error)
	UpdatePayment(ctx context.Context, params UpdatePaymentParams) (Payment, error)
	DeletePayment(ctx context.Context, id string) (Payment, error)
}

type RefundProvider interface {
	CreateRefund(ctx context.Context, params CreateRefundParams) (Refund, error)
	RetrieveRefund(ctx context.Context, id string) (Refund, error)
	UpdateRefund(ctx context.Context, id string, metadata map[string]string) (Refund, error)
	DeleteRefund(ctx context.Context, id string) (Refund, error)
}

// WebhookProvider verifies a raw delivery and maps it into canonical events.
// A verified delivery with no canonical equivalent yields an empty slice.
type WebhookProvider interface {
	HandleWebhook(ctx context.Context, delivery WebhookDelivery) ([]WebhookEvent, error)
}

// Provider is the capability contract every backend adapter satisfies.
type Provider interface {
	ID() string
	CheckoutProvider
	CustomerProvider
	SubscriptionProvider
	PaymentProvider
	RefundProvider
	WebhookProvider
}

// WebhookDelivery is one inbound webhook call, buffered verbatim.
type WebhookDelivery struct {
	Body    []byte
	Headers map[string]string
	FullURL string
}

// Header looks a header up case-insensitively.
func (d WebhookDelivery) Header(name string) string {
	name = strings.TrimSpace(name)
	if value, ok := d.Headers[name]; ok {
		return value
	}
	for key, value := range d.Headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

type EventType string

const (
	EventCustomerCreated      EventType = "customer.created"
	EventCustomerUpdated      EventType = "customer.updated"
	EventCustomerDeleted      EventType = "customer.deleted"
	EventCheckoutCreated      EventType = "checkout.created"
	EventCheckoutCompleted    EventType = "checkout.completed"
	EventCheckoutExpired      EventType = "checkout.expired"
	EventSubscriptionCreated  EventType = "subscription.created"
	EventSubscriptionUpdated  EventType = "subscription.updated"
	EventSubscriptionCanceled EventType = "subscription.canceled"
	EventPaymentCreated       EventType = "payment.created"
	EventPaymentUpdated       EventType = "payment.updated"
	EventRefundCreated        EventType = "refund.created"
	EventInvoiceGenerated     EventType = "invoice.generated"
)

var eventResourceKinds = map[EventType]string{
	EventCustomerCreated:      "customer",
	EventCustomerUpdated:      "customer",
	EventCustomerDeleted:      "customer",
	EventCheckoutCreated:      "checkout",
	EventCheckoutCompleted:    "checkout",
	EventCheckoutExpired:      "checkout",
	EventSubscriptionCreated:  "subscription",
	EventSubscriptionUpdated:  "subscription",
	EventSubscriptionCanceled: "subscription",
	EventPaymentCreated:       "payment",
	EventPaymentUpdated:       "payment",
	EventRefundCreated:        "refund",
	EventInvoiceGenerated:     "invoice",
}

// EventTypes lists every canonical event literal.
func EventTypes() []EventType {
	return []EventType{
		EventCustomerCreated, EventCustomerUpdated, EventCustomerDeleted,
		EventCheckoutCreated, EventCheckoutCompleted, EventCheckoutExpired,
		EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCanceled,
		EventPaymentCreated, EventPaymentUpdated,
		EventRefundCreated,
		EventInvoiceGenerated,
	}
}

func (e EventType) Valid() bool {
	_, ok := eventResourceKinds[e]
	return ok
}

// WebhookEvent is the canonical discriminated union: Type decides which
// resource Data carries.
type WebhookEvent struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	Type       EventType `json:"type"`
	Data       Resource  `json:"data"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewWebhookEvent pairs an event literal with its resource and rejects
// mismatches such as a refund under customer.created.
func NewWebhookEvent(id string, provider string, eventType EventType, data Resource, occurredAt time.Time) (WebhookEvent, error) {
	kind, ok := eventResourceKinds[eventType]
	if !ok {
		return WebhookEvent{}, NewUnknownError(provider, "unknown event type "+string(eventType), nil)
	}
	if data == nil || data.ResourceKind() != kind {
		return WebhookEvent{}, NewUnknownError(provider, "event "+string(eventType)+" requires a "+kind+" resource", nil)
	}
	return WebhookEvent{
		ID:         id,
		Provider:   provider,
		Type:       eventType,
		Data:       data,
		OccurredAt: occurredAt,
	}, nil
}

func (e WebhookEvent) Customer() (Customer, bool) {
	value, ok := e.Data.(Customer)
	return value, ok
}

func (e WebhookEvent) Checkout() (Checkout, bool) {
	value, ok := e.Data.(Checkout)
	return value, ok
}

func (e WebhookEvent) Subscription() (Subscription, bool) {
	value, ok := e.Data.(Subscription)
	return value, ok
}

func (e WebhookEvent) Payment() (Payment, bool) {
	value, ok := e.Data.(Payment)
	return value, ok
}

func (e WebhookEvent) Refund() (Refund, bool) {
	value, ok := e.Data.(Refund)
	return value, ok
}

func (e WebhookEvent) Invoice() (Invoice, bool) {
	value, ok := e.Data.(Invoice)
	return value, ok
}
