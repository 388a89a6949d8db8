package local

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/metadata"
	"github.com/goliatone/go-payments/providers/devkit"
	"github.com/goliatone/go-payments/webhooks"
)

const testSecret = "local_test_secret"

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider, err := New(Config{
		WebhookSecret: testSecret,
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return provider
}

func TestConfigFromEnv(t *testing.T) {
	_, err := ConfigFromEnv(map[string]string{EnvCheckoutBase: "https://pay.example.com"})
	if !core.IsKind(err, core.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if missing := core.MissingKeys(err); !reflect.DeepEqual(missing, []string{EnvWebhookSecret}) {
		t.Fatalf("unexpected missing keys %v", missing)
	}

	cfg, err := ConfigFromEnv(map[string]string{EnvWebhookSecret: " s3cret "})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.WebhookSecret != "s3cret" || cfg.CheckoutBase != DefaultCheckoutBase {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if _, err := New(Config{}); !core.IsKind(err, core.KindConfiguration) {
		t.Fatalf("expected New to require a webhook secret, got %v", err)
	}
}

func TestCheckout_CreateAndRetrieve(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	created, err := provider.CreateCheckout(ctx, core.CreateCheckoutParams{
		Customer:    core.CustomerID("cus_1"),
		SessionType: core.SessionOneTime,
		ItemID:      "price_1",
		Quantity:    1,
		Metadata:    map[string]string{"order": "42"},
		SuccessURL:  "https://shop.example.com/ok",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != core.CheckoutOpen || created.PaymentURL == "" || created.Provider != ProviderID {
		t.Fatalf("unexpected checkout %+v", created)
	}

	fetched, err := provider.RetrieveCheckout(ctx, created.ID)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if fetched.ID != created.ID || fetched.Customer.ID != "cus_1" {
		t.Fatalf("unexpected retrieved checkout %+v", fetched)
	}
	if !reflect.DeepEqual(fetched.Metadata, map[string]string{"order": "42"}) {
		t.Fatalf("internal payload leaked into metadata: %v", fetched.Metadata)
	}

	if _, err := provider.RetrieveCheckout(ctx, "cs_missing"); !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected not found validation error, got %v", err)
	}

	canceled, err := provider.DeleteCheckout(ctx, created.ID)
	if err != nil || canceled.Status != core.CheckoutCanceled || canceled.PaymentURL != "" {
		t.Fatalf("unexpected cancel result %+v %v", canceled, err)
	}
	if _, err := provider.UpdateCheckout(ctx, core.UpdateCheckoutParams{ID: created.ID, Quantity: 2}); !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected closed checkout to reject updates, got %v", err)
	}
}

func TestMetadata_ReservedKeysAndPatches(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	_, err := provider.CreateCustomer(ctx, core.CreateCustomerParams{
		Email:    "a@example.com",
		Name:     "A",
		Metadata: map[string]string{metadata.ReservedPrefix + "x": "1"},
	})
	if !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected reserved key rejection, got %v", err)
	}

	customer, err := provider.CreateCustomer(ctx, core.CreateCustomerParams{
		Email:    "a@example.com",
		Name:     "A",
		Metadata: map[string]string{"plan": "pro", "team": "blue"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := provider.UpdateCustomer(ctx, core.UpdateCustomerParams{
		ID:       customer.ID,
		Metadata: map[string]string{"team": "", "seat": "3"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !reflect.DeepEqual(updated.Metadata, map[string]string{"plan": "pro", "seat": "3"}) {
		t.Fatalf("unexpected metadata after patch %v", updated.Metadata)
	}
}

func TestRefund_Ledger(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	payment, err := provider.CreatePayment(ctx, core.CreatePaymentParams{Amount: 1000, Currency: "USD"})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if !payment.RequiresAction || payment.PaymentURL == "" {
		t.Fatalf("expected pending payment to require action, got %+v", payment)
	}
	if _, err := provider.CreateRefund(ctx, core.CreateRefundParams{PaymentID: payment.ID, Amount: 100}); !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected unsettled payment to reject refunds, got %v", err)
	}
	if _, err := provider.CapturePayment(ctx, payment.ID); err != nil {
		t.Fatalf("capture: %v", err)
	}

	first, err := provider.CreateRefund(ctx, core.CreateRefundParams{PaymentID: payment.ID, Amount: 600, Reason: "requested_by_customer"})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if first.Currency != "USD" || first.PaymentID != payment.ID {
		t.Fatalf("unexpected refund %+v", first)
	}

	tests := []struct {
		name   string
		params core.CreateRefundParams
		field  string
	}{
		{name: "over balance", params: core.CreateRefundParams{PaymentID: payment.ID, Amount: 500}, field: "amount"},
		{name: "currency mismatch", params: core.CreateRefundParams{PaymentID: payment.ID, Amount: 10, Currency: "EUR"}, field: "currency"},
		{name: "unknown payment", params: core.CreateRefundParams{PaymentID: "pay_missing", Amount: 10}, field: "id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := provider.CreateRefund(ctx, tc.params)
			violations := core.Violations(err)
			if len(violations) != 1 || violations[0].Field != tc.field {
				t.Fatalf("expected %s violation, got %v", tc.field, err)
			}
		})
	}

	rest, err := provider.CreateRefund(ctx, core.CreateRefundParams{PaymentID: payment.ID})
	if err != nil || rest.Amount != 400 {
		t.Fatalf("expected remainder refund of 400, got %+v %v", rest, err)
	}
	if got := provider.Refunded(payment.ID); got != 1000 {
		t.Fatalf("expected ledger at 1000, got %d", got)
	}
	if _, err := provider.DeleteRefund(ctx, first.ID); !core.IsKind(err, core.KindNotImplemented) {
		t.Fatalf("expected refunds to be final, got %v", err)
	}
	if _, err := provider.UpdateRefund(ctx, first.ID, map[string]string{"note": "x"}); !core.IsKind(err, core.KindNotImplemented) {
		t.Fatalf("expected refund metadata to be frozen, got %v", err)
	}
	if got := provider.Refunded(payment.ID); got != 1000 {
		t.Fatalf("expected ledger to stay at 1000, got %d", got)
	}
	stored, err := provider.RetrieveRefund(ctx, first.ID)
	if err != nil || stored.Amount != 600 || len(stored.Metadata) != 0 {
		t.Fatalf("expected refund to be unchanged, got %+v %v", stored, err)
	}
}

func TestRefund_UnsupportedCapabilities(t *testing.T) {
	err := devkit.ValidateUnsupportedCapabilities(context.Background(), newTestProvider(t), map[core.Capability]bool{
		core.CapUpdateRefund: false,
		core.CapDeleteRefund: false,
	})
	if err != nil {
		t.Fatalf("conformance: %v", err)
	}
}

func TestSubscription_RenewAndCancelAtPeriodEnd(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	sub, err := provider.CreateSubscription(ctx, core.CreateSubscriptionParams{
		Customer:        core.CustomerID("cus_1"),
		ItemID:          "price_monthly",
		BillingInterval: core.IntervalMonth,
		Amount:          900,
		Currency:        "EUR",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !sub.CurrentPeriodEnd.Equal(sub.CurrentPeriodStart.AddDate(0, 1, 0)) {
		t.Fatalf("unexpected period %v - %v", sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	}

	renewed, err := provider.RenewSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if !renewed.CurrentPeriodStart.Equal(sub.CurrentPeriodEnd) {
		t.Fatalf("expected next period to start at %v, got %v", sub.CurrentPeriodEnd, renewed.CurrentPeriodStart)
	}

	flag := true
	if _, err := provider.UpdateSubscription(ctx, core.UpdateSubscriptionParams{ID: sub.ID, CancelAtPeriodEnd: &flag}); err != nil {
		t.Fatalf("update: %v", err)
	}
	ended, err := provider.RenewSubscription(ctx, sub.ID)
	if err != nil || ended.Status != core.SubscriptionCanceled {
		t.Fatalf("expected cancellation at period end, got %+v %v", ended, err)
	}
	if _, err := provider.DeleteSubscription(ctx, sub.ID); !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected second cancel to fail, got %v", err)
	}
}

func TestSubscription_QuantityRescalesAmount(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	sub, err := provider.CreateSubscription(ctx, core.CreateSubscriptionParams{
		Customer: core.CustomerID("cus_1"),
		ItemID:   "price_seat",
		Amount:   1000,
		Quantity: 2,
		Currency: "USD",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sub.Amount != 2000 || sub.Quantity != 2 {
		t.Fatalf("expected 2 seats at 2000, got %d x %d", sub.Quantity, sub.Amount)
	}

	for _, quantity := range []int64{3, 3, 1} {
		updated, err := provider.UpdateSubscription(ctx, core.UpdateSubscriptionParams{ID: sub.ID, Quantity: quantity})
		if err != nil {
			t.Fatalf("update to %d: %v", quantity, err)
		}
		if updated.Quantity != quantity || updated.Amount != 1000*quantity {
			t.Fatalf("expected %d seats at %d, got %d x %d", quantity, 1000*quantity, updated.Quantity, updated.Amount)
		}
	}

	got, err := provider.RetrieveSubscription(ctx, sub.ID)
	if err != nil || got.Amount != 1000 || got.Quantity != 1 {
		t.Fatalf("expected stored quantity to follow updates, got %+v %v", got, err)
	}
}

func TestFlush_SignedBatchThroughEngine(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	checkout, err := provider.CreateCheckout(ctx, core.CreateCheckoutParams{
		Customer:    core.CustomerID("cus_1"),
		SessionType: core.SessionRecurring,
		ItemID:      "price_monthly",
		Quantity:    1,
		Amount:      1500,
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if _, err := provider.CompleteCheckout(ctx, checkout.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	delivery, ok, err := provider.Flush()
	if err != nil || !ok {
		t.Fatalf("flush: %v %v", ok, err)
	}
	if provider.Pending() != 0 {
		t.Fatalf("expected outbox to be drained")
	}

	var seen []core.EventType
	record := func(_ context.Context, event core.WebhookEvent) error {
		seen = append(seen, event.Type)
		return nil
	}
	engine := webhooks.Setup(provider, core.WebhookConfig{})
	for _, eventType := range core.EventTypes() {
		engine.On(eventType, record)
	}
	report, err := engine.Handle(ctx, delivery)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	want := []core.EventType{
		core.EventCheckoutCreated,
		core.EventSubscriptionCreated,
		core.EventCheckoutCompleted,
		core.EventInvoiceGenerated,
	}
	if report.Stage != webhooks.StageCompleted || !reflect.DeepEqual(seen, want) {
		t.Fatalf("unexpected dispatch order %v (report %+v)", seen, report)
	}
	invoice, ok := report.Events[3].Invoice()
	if !ok || invoice.AmountPaid != 1500 || invoice.BillingMode != core.BillingRecurring || invoice.SubscriptionID == "" {
		t.Fatalf("unexpected invoice %+v", invoice)
	}

	if _, ok, _ := provider.Flush(); ok {
		t.Fatalf("expected empty flush after drain")
	}
}

func TestHandleWebhook_RejectsTamperedAndStaleBatches(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()
	if _, err := provider.CreateCustomer(ctx, core.CreateCustomerParams{Email: "a@example.com", Name: "A"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	delivery, _, err := provider.Flush()
	if err != nil {
		t.Fatalf("flush: %v", err)
	}

	tampered := delivery
	tampered.Body = append([]byte(nil), delivery.Body...)
	tampered.Body[len(tampered.Body)-2] = ' '
	if _, err := provider.HandleWebhook(ctx, tampered); !core.IsKind(err, core.KindUnauthorized) {
		t.Fatalf("expected tampered body to be rejected, got %v", err)
	}

	events, err := provider.HandleWebhook(ctx, delivery)
	if err != nil || len(events) != 1 || events[0].Type != core.EventCustomerCreated {
		t.Fatalf("expected original delivery to verify, got %v %v", events, err)
	}

	provider.Advance(time.Hour)
	if _, err := provider.HandleWebhook(ctx, delivery); !core.IsKind(err, core.KindUnauthorized) {
		t.Fatalf("expected stale delivery to be rejected, got %v", err)
	}
}
