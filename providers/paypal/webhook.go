package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/transport"
)

const (
	HeaderAuthAlgo         = "PAYPAL-AUTH-ALGO"
	HeaderCertURL          = "PAYPAL-CERT-URL"
	HeaderTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	HeaderTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	HeaderTransmissionTime = "PAYPAL-TRANSMISSION-TIME"
)

type eventMapping struct {
	canonical core.EventType
	decode    func(p *Provider, raw json.RawMessage) (core.Resource, error)
}

func decodeInto[W any, R core.Resource](convert func(*Provider, W) (R, error)) func(*Provider, json.RawMessage) (core.Resource, error) {
	return func(p *Provider, raw json.RawMessage) (core.Resource, error) {
		var wire W
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, core.NewUnknownError(ProviderID, "decode webhook resource", err)
		}
		resource, err := convert(p, wire)
		if err != nil {
			return nil, err
		}
		return resource, nil
	}
}

func refundResource(p *Provider, in wireRefund) (core.Refund, error) {
	return p.toRefund(in, "")
}

var (
	orderCheckout = decodeInto((*Provider).orderToCheckout)
	orderPayment  = decodeInto((*Provider).orderToPayment)
	capture       = decodeInto((*Provider).captureToPayment)
	subscription  = decodeInto((*Provider).toSubscription)
	refund        = decodeInto(refundResource)
	sale          = decodeInto((*Provider).saleToInvoice)
)

var eventTable = map[string]eventMapping{
	"CHECKOUT.ORDER.APPROVED":        {core.EventPaymentUpdated, orderPayment},
	"CHECKOUT.ORDER.COMPLETED":       {core.EventCheckoutCompleted, orderCheckout},
	"CHECKOUT.ORDER.VOIDED":          {core.EventPaymentUpdated, orderPayment},
	"PAYMENT.CAPTURE.COMPLETED":      {core.EventPaymentUpdated, capture},
	"PAYMENT.CAPTURE.PENDING":        {core.EventPaymentUpdated, capture},
	"PAYMENT.CAPTURE.DECLINED":       {core.EventPaymentUpdated, capture},
	"PAYMENT.CAPTURE.DENIED":         {core.EventPaymentUpdated, capture},
	"PAYMENT.CAPTURE.REFUNDED":       {core.EventRefundCreated, refund},
	"BILLING.SUBSCRIPTION.CREATED":   {core.EventSubscriptionCreated, subscription},
	"BILLING.SUBSCRIPTION.ACTIVATED": {core.EventSubscriptionUpdated, subscription},
	"BILLING.SUBSCRIPTION.UPDATED":   {core.EventSubscriptionUpdated, subscription},
	"BILLING.SUBSCRIPTION.SUSPENDED": {core.EventSubscriptionUpdated, subscription},
	"BILLING.SUBSCRIPTION.EXPIRED":   {core.EventSubscriptionUpdated, subscription},
	"BILLING.SUBSCRIPTION.CANCELLED": {core.EventSubscriptionCanceled, subscription},
	"PAYMENT.SALE.COMPLETED":         {core.EventInvoiceGenerated, sale},
}

// HandleWebhook asks PayPal to verify the delivery, then maps the event.
// The raw body is forwarded byte for byte; any re-encoding would break
// the signature.
func (p *Provider) HandleWebhook(ctx context.Context, delivery core.WebhookDelivery) ([]core.WebhookEvent, error) {
	if err := p.verify(ctx, delivery); err != nil {
		return nil, err
	}

	var event wireEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		return nil, core.NewUnknownError(ProviderID, "decode webhook event", err)
	}
	mapping, ok := eventTable[strings.ToUpper(event.EventType)]
	if !ok {
		p.logger.Debug("paypal webhook ignored", "event_id", event.ID, "type", event.EventType)
		return []core.WebhookEvent{}, nil
	}
	resource, err := mapping.decode(p, event.Resource)
	if err != nil {
		return nil, err
	}
	mapped, err := core.NewWebhookEvent(event.ID, ProviderID, mapping.canonical, resource, parseTime(event.CreateTime))
	if err != nil {
		return nil, err
	}
	return []core.WebhookEvent{mapped}, nil
}

func (p *Provider) verify(ctx context.Context, delivery core.WebhookDelivery) error {
	payload := wireVerifyRequest{
		AuthAlgo:         delivery.Header(HeaderAuthAlgo),
		CertURL:          delivery.Header(HeaderCertURL),
		TransmissionID:   delivery.Header(HeaderTransmissionID),
		TransmissionSig:  delivery.Header(HeaderTransmissionSig),
		TransmissionTime: delivery.Header(HeaderTransmissionTime),
		WebhookID:        p.config.WebhookID,
	}
	if payload.AuthAlgo == "" || payload.CertURL == "" || payload.TransmissionID == "" || payload.TransmissionSig == "" || payload.TransmissionTime == "" {
		return core.NewUnauthorizedError(ProviderID, "webhook signature headers missing", nil)
	}
	body := delivery.Body
	if !json.Valid(body) {
		return core.NewUnauthorizedError(ProviderID, "webhook body is not a JSON document", nil)
	}

	// encoding/json compacts RawMessage values, so the event is spliced in
	// after the header fields are encoded.
	head, err := json.Marshal(payload)
	if err != nil {
		return core.NewUnknownError(ProviderID, "encode verification request", err)
	}
	envelope := make([]byte, 0, len(head)+len(body)+20)
	envelope = append(envelope, head[:len(head)-1]...)
	envelope = append(envelope, `,"webhook_event":`...)
	envelope = append(envelope, body...)
	envelope = append(envelope, '}')

	req := transport.Request{
		Method: http.MethodPost,
		URL:    p.endpoint("v1", "notifications", "verify-webhook-signature"),
		Headers: map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
		},
		Body: envelope,
	}
	result, err := transport.Send[wireVerifyResponse](ctx, p.client, req).Get()
	if err != nil {
		return err
	}
	if !strings.EqualFold(result.VerificationStatus, "SUCCESS") {
		return core.NewUnauthorizedError(ProviderID, "webhook signature rejected", nil)
	}
	return nil
}
