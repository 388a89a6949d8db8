package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/providers/local"
	"github.com/goliatone/go-payments/webhooks"
)

type stubResolver struct {
	provider core.Provider
	err      error
	lastID   string
}

func (s *stubResolver) Provider(id string) (core.Provider, error) {
	s.lastID = id
	return s.provider, s.err
}

func TestRetrieveQueries_Delegate(t *testing.T) {
	provider, err := local.New(local.Config{WebhookSecret: "query_test_secret"})
	if err != nil {
		t.Fatalf("new local provider: %v", err)
	}
	ctx := context.Background()
	customer, err := provider.CreateCustomer(ctx, core.CreateCustomerParams{Email: "ada@example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	checkout, err := provider.CreateCheckout(ctx, core.CreateCheckoutParams{
		Customer:    core.CustomerID(customer.ID),
		SessionType: core.SessionOneTime,
		ItemID:      "price_1",
		Quantity:    2,
		Amount:      500,
		Currency:    "EUR",
	})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}

	resolver := &stubResolver{provider: provider}
	gotCustomer, err := NewRetrieveCustomerQuery(resolver).Query(ctx, RetrieveCustomerMessage{Provider: "local", ID: customer.ID})
	if err != nil {
		t.Fatalf("query customer: %v", err)
	}
	if gotCustomer.Email != "ada@example.com" || resolver.lastID != "local" {
		t.Fatalf("unexpected customer %#v via %q", gotCustomer, resolver.lastID)
	}

	gotCheckout, err := NewRetrieveCheckoutQuery(resolver).Query(ctx, RetrieveCheckoutMessage{ID: checkout.ID})
	if err != nil {
		t.Fatalf("query checkout: %v", err)
	}
	if gotCheckout.Amount != 1000 || gotCheckout.Status != core.CheckoutOpen {
		t.Fatalf("unexpected checkout %#v", gotCheckout)
	}

	_, err = NewRetrieveRefundQuery(resolver).Query(ctx, RetrieveRefundMessage{ID: "re_missing"})
	if !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected not found validation error, got %v", err)
	}

	failing := &stubResolver{err: fmt.Errorf("registry offline")}
	if _, err := NewRetrievePaymentQuery(failing).Query(ctx, RetrievePaymentMessage{ID: "pay_1"}); err == nil {
		t.Fatalf("expected resolver error")
	}
	var nilQuery *RetrieveSubscriptionQuery
	if _, err := nilQuery.Query(ctx, RetrieveSubscriptionMessage{ID: "sub_1"}); !core.IsKind(err, core.KindConfiguration) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestWebhookEventStatusQuery(t *testing.T) {
	ctx := context.Background()
	deduper := webhooks.NewMemoryDeduper(webhooks.MemoryDeduperOptions{})

	qry := NewWebhookEventStatusQuery(deduper)
	status, err := qry.Query(ctx, WebhookEventStatusMessage{Provider: "stripe", EventID: "evt_1"})
	if err != nil {
		t.Fatalf("query unseen: %v", err)
	}
	if status.Seen {
		t.Fatalf("expected unseen event")
	}

	if _, err := deduper.Claim(ctx, "stripe", "evt_1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := deduper.Complete(ctx, "stripe", "evt_1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	status, err = qry.Query(ctx, WebhookEventStatusMessage{Provider: "stripe", EventID: "evt_1"})
	if err != nil {
		t.Fatalf("query completed: %v", err)
	}
	if !status.Seen || !status.Record.Completed() {
		t.Fatalf("expected completed record, got %#v", status)
	}

	var missing *WebhookEventStatusQuery
	if _, err := missing.Query(ctx, WebhookEventStatusMessage{Provider: "stripe", EventID: "evt_1"}); !core.IsKind(err, core.KindConfiguration) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestWebhookEventStatusMessage_Validate(t *testing.T) {
	err := (WebhookEventStatusMessage{}).Validate()
	if len(core.Violations(err)) != 2 {
		t.Fatalf("expected two violations, got %v", core.Violations(err))
	}
	if err := (WebhookEventStatusMessage{Provider: "paypal", EventID: "WH-1"}).Validate(); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
}
