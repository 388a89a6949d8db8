package stripe

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-payments/core"
	"github.com/stripe/stripe-go/v82/webhook"
)

const SignatureHeader = "Stripe-Signature"

type eventMapping struct {
	canonical core.EventType
	decode    func(p *Provider, raw json.RawMessage) (core.Resource, error)
}

func decodeInto[W any, R core.Resource](convert func(*Provider, W) (R, error)) func(*Provider, json.RawMessage) (core.Resource, error) {
	return func(p *Provider, raw json.RawMessage) (core.Resource, error) {
		var wire W
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, core.NewUnknownError(ProviderID, "decode webhook object", err)
		}
		resource, err := convert(p, wire)
		if err != nil {
			return nil, err
		}
		return resource, nil
	}
}

var (
	customerObject     = decodeInto((*Provider).toCustomer)
	checkoutObject     = decodeInto((*Provider).toCheckout)
	subscriptionObject = decodeInto((*Provider).toSubscription)
	paymentObject      = decodeInto((*Provider).toPayment)
	refundObject       = decodeInto((*Provider).toRefund)
	invoiceObject      = decodeInto((*Provider).toInvoice)
)

// failedPaymentObject reports a declined intent as failed. Stripe moves the
// intent back to requires_payment_method, which alone reads as pending.
var failedPaymentObject = decodeInto(func(p *Provider, in wirePaymentIntent) (core.Payment, error) {
	out, err := p.toPayment(in)
	if err != nil {
		return core.Payment{}, err
	}
	out.Status = core.PaymentFailed
	out.RequiresAction = false
	return out, nil
})

// eventTable maps Stripe event types onto canonical events. Types missing
// here are acknowledged and produce no event.
var eventTable = map[string]eventMapping{
	"customer.created":                         {core.EventCustomerCreated, customerObject},
	"customer.updated":                         {core.EventCustomerUpdated, customerObject},
	"customer.deleted":                         {core.EventCustomerDeleted, customerObject},
	"checkout.session.completed":               {core.EventCheckoutCompleted, checkoutObject},
	"checkout.session.async_payment_succeeded": {core.EventCheckoutCompleted, checkoutObject},
	"checkout.session.expired":                 {core.EventCheckoutExpired, checkoutObject},
	"customer.subscription.created":            {core.EventSubscriptionCreated, subscriptionObject},
	"customer.subscription.updated":            {core.EventSubscriptionUpdated, subscriptionObject},
	"customer.subscription.paused":             {core.EventSubscriptionUpdated, subscriptionObject},
	"customer.subscription.resumed":            {core.EventSubscriptionUpdated, subscriptionObject},
	"customer.subscription.deleted":            {core.EventSubscriptionCanceled, subscriptionObject},
	"payment_intent.created":                   {core.EventPaymentCreated, paymentObject},
	"payment_intent.processing":                {core.EventPaymentUpdated, paymentObject},
	"payment_intent.requires_action":           {core.EventPaymentUpdated, paymentObject},
	"payment_intent.amount_capturable_updated": {core.EventPaymentUpdated, paymentObject},
	"payment_intent.succeeded":                 {core.EventPaymentUpdated, paymentObject},
	"payment_intent.payment_failed":            {core.EventPaymentUpdated, failedPaymentObject},
	"payment_intent.canceled":                  {core.EventPaymentUpdated, paymentObject},
	"refund.created":                           {core.EventRefundCreated, refundObject},
	"invoice.finalized":                        {core.EventInvoiceGenerated, invoiceObject},
	"invoice.paid":                             {core.EventInvoiceGenerated, invoiceObject},
}

// HandleWebhook verifies the Stripe-Signature header against the raw body
// and maps the envelope into at most one canonical event.
func (p *Provider) HandleWebhook(_ context.Context, delivery core.WebhookDelivery) ([]core.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(delivery.Body, delivery.Header(SignatureHeader), p.config.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                p.config.Tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, core.NewUnauthorizedError(ProviderID, "webhook signature rejected", err)
	}

	mapping, ok := eventTable[string(event.Type)]
	if !ok {
		p.logger.Debug("stripe webhook ignored", "event_id", event.ID, "type", event.Type)
		return []core.WebhookEvent{}, nil
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, core.NewUnknownError(ProviderID, "webhook event has no data object", nil)
	}
	resource, err := mapping.decode(p, event.Data.Raw)
	if err != nil {
		return nil, err
	}
	mapped, err := core.NewWebhookEvent(event.ID, ProviderID, mapping.canonical, resource, unix(event.Created))
	if err != nil {
		return nil, err
	}
	return []core.WebhookEvent{mapped}, nil
}
