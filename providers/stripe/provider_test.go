package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"testing"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/metadata"
	"github.com/goliatone/go-payments/providers/devkit"
)

const testWebhookSecret = "whsec_test_secret"

func newTestProvider(t *testing.T, scripts ...devkit.Script) (*Provider, *devkit.FakeDoer) {
	t.Helper()
	doer := devkit.NewFakeDoer(scripts...)
	provider, err := New(Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		APIBase:       "https://stripe.test",
		HTTPClient:    doer,
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider, doer
}

func TestConfigFromEnv(t *testing.T) {
	_, err := ConfigFromEnv(map[string]string{EnvSecretKey: " "})
	if !core.IsKind(err, core.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if got := core.MissingKeys(err); !reflect.DeepEqual(got, []string{EnvSecretKey, EnvWebhookSecret}) {
		t.Fatalf("unexpected missing keys %v", got)
	}

	cfg, err := ConfigFromEnv(map[string]string{EnvSecretKey: "sk_live", EnvWebhookSecret: "whsec"})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.APIBase != DefaultAPIBase || cfg.SecretKey != "sk_live" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if _, err := New(Config{SecretKey: "sk"}); !core.IsKind(err, core.KindConfiguration) {
		t.Fatalf("expected configuration error for missing webhook secret, got %v", err)
	}
}

func TestCreateCustomer_SendsFormAndStripsInternalMetadata(t *testing.T) {
	provider, doer := newTestProvider(t, devkit.JSON(http.StatusOK, `{
		"id": "cus_1",
		"email": "jane@example.com",
		"name": "Jane",
		"created": 1700000000,
		"address": {"line1": "1 Main St", "country": "US"},
		"metadata": {"order": "42", "__gp_internal": "{\"v\":1}"}
	}`))

	customer, err := provider.CreateCustomer(context.Background(), core.CreateCustomerParams{
		Email:    "jane@example.com",
		Name:     "Jane",
		Address:  &core.Address{Line1: "1 Main St", Country: "US"},
		Metadata: map[string]string{"order": "42"},
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if customer.ID != "cus_1" || customer.Provider != ProviderID || customer.Address == nil || customer.Address.Country != "US" {
		t.Fatalf("unexpected customer %+v", customer)
	}
	if !reflect.DeepEqual(customer.Metadata, map[string]string{"order": "42"}) {
		t.Fatalf("internal keys leaked into metadata: %v", customer.Metadata)
	}

	requests := doer.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected exactly one outbound call, got %d", len(requests))
	}
	req := requests[0]
	if req.Method != http.MethodPost || req.URL != "https://stripe.test/v1/customers" {
		t.Fatalf("unexpected request %s %s", req.Method, req.URL)
	}
	if got := req.Headers.Get("Authorization"); got != "Bearer sk_test_123" {
		t.Fatalf("unexpected authorization %q", got)
	}
	form := req.Form()
	if form["email"] != "jane@example.com" || form["address[country]"] != "US" || form["metadata[order]"] != "42" {
		t.Fatalf("unexpected form %v", form)
	}
	if form["metadata["+metadata.InternalKey+"]"] == "" {
		t.Fatalf("expected internal payload in form %v", form)
	}
}

func TestCreateCustomer_RejectsInvalidInputWithoutCalling(t *testing.T) {
	provider, doer := newTestProvider(t)
	_, err := provider.CreateCustomer(context.Background(), core.CreateCustomerParams{Email: "not-an-email"})
	if !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(doer.Requests()) != 0 {
		t.Fatalf("validation failure must not reach the network")
	}

	_, err = provider.UpdateCustomer(context.Background(), core.UpdateCustomerParams{
		ID:       "cus_1",
		Metadata: map[string]string{metadata.InternalKey: "x"},
	})
	if !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected reserved metadata key to be rejected, got %v", err)
	}
}

func TestCheckout_RestoresLookupFromInternalMetadata(t *testing.T) {
	internal := metadata.DefaultInternal()
	internal.Lookup[lookupItemID] = "price_1"
	internal.Lookup[lookupQuantity] = "2"
	stored, err := metadata.New(ProviderID, metadata.DefaultMaxValueLength).Embed(map[string]string{"cart": "c1"}, internal)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	body := `{"id":"cs_1","mode":"payment","status":"open","url":"https://checkout.stripe.test/cs_1","amount_total":2000,"currency":"usd","customer":"cus_1","metadata":` + mustJSON(t, stored) + `}`
	provider, doer := newTestProvider(t, devkit.JSON(http.StatusOK, body))

	checkout, err := provider.CreateCheckout(context.Background(), core.CreateCheckoutParams{
		Customer:    core.CustomerID("cus_1"),
		SessionType: core.SessionOneTime,
		ItemID:      "price_1",
		Quantity:    2,
		SuccessURL:  "https://shop.example.com/ok",
		Metadata:    map[string]string{"cart": "c1"},
	})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if checkout.ItemID != "price_1" || checkout.Quantity != 2 || checkout.Currency != "USD" || checkout.Status != core.CheckoutOpen {
		t.Fatalf("unexpected checkout %+v", checkout)
	}
	if checkout.PaymentURL == "" || checkout.Customer.ID != "cus_1" {
		t.Fatalf("unexpected checkout refs %+v", checkout)
	}
	form := doer.Last().Form()
	if form["mode"] != "payment" || form["line_items[0][price]"] != "price_1" || form["line_items[0][quantity]"] != "2" || form["customer"] != "cus_1" {
		t.Fatalf("unexpected form %v", form)
	}
}

func TestStatusTables(t *testing.T) {
	checkoutCases := map[string]core.CheckoutStatus{
		"open":     core.CheckoutOpen,
		"complete": core.CheckoutCompleted,
		"expired":  core.CheckoutExpired,
	}
	for raw, want := range checkoutCases {
		if got, err := checkoutStatuses.Map(raw); err != nil || got != want {
			t.Fatalf("checkout %q: got %q %v", raw, got, err)
		}
	}
	subscriptionCases := map[string]core.SubscriptionStatus{
		"trialing":           core.SubscriptionActive,
		"unpaid":             core.SubscriptionPastDue,
		"incomplete":         core.SubscriptionPending,
		"incomplete_expired": core.SubscriptionExpired,
	}
	for raw, want := range subscriptionCases {
		if got, err := subscriptionStatuses.Map(raw); err != nil || got != want {
			t.Fatalf("subscription %q: got %q %v", raw, got, err)
		}
	}
	if _, err := paymentStatuses.Map("mystery"); !core.IsKind(err, core.KindUnknown) {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestRemoteErrorsAreClassified(t *testing.T) {
	tests := []struct {
		status int
		kind   core.ErrorKind
	}{
		{status: http.StatusUnauthorized, kind: core.KindUnauthorized},
		{status: http.StatusPaymentRequired, kind: core.KindValidation},
		{status: http.StatusServiceUnavailable, kind: core.KindConnection},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			provider, doer := newTestProvider(t, devkit.JSON(tc.status, `{"error":{"message":"nope"}}`))
			_, err := provider.RetrievePayment(context.Background(), "pi_1")
			if !core.IsKind(err, tc.kind) {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
			if len(doer.Requests()) != 1 {
				t.Fatalf("static keys are never refreshed, expected one call, got %d", len(doer.Requests()))
			}
		})
	}
}

func TestSubscriptionAndRefundRules(t *testing.T) {
	provider, doer := newTestProvider(t, devkit.JSON(http.StatusOK, `{
		"id": "re_1", "amount": 500, "currency": "eur", "payment_intent": "pi_1", "created": 1700000000
	}`))

	_, err := provider.CreateSubscription(context.Background(), core.CreateSubscriptionParams{
		Customer: core.CustomerRef{Email: "a@example.com"},
		ItemID:   "price_1",
	})
	if !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected inline customer to be rejected, got %v", err)
	}
	_, err = provider.UpdateSubscription(context.Background(), core.UpdateSubscriptionParams{ID: "sub_1", ItemID: "price_2"})
	if !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected item swap to be rejected, got %v", err)
	}

	refund, err := provider.CreateRefund(context.Background(), core.CreateRefundParams{PaymentID: "pi_1", Amount: 500, Reason: "damaged in transit"})
	if err != nil {
		t.Fatalf("create refund: %v", err)
	}
	if refund.PaymentID != "pi_1" || refund.Currency != "EUR" {
		t.Fatalf("unexpected refund %+v", refund)
	}
	form := doer.Last().Form()
	if _, ok := form["reason"]; ok {
		t.Fatalf("free-form reasons must not be sent as a reason code: %v", form)
	}
	if form["amount"] != "500" || form["payment_intent"] != "pi_1" {
		t.Fatalf("unexpected refund form %v", form)
	}
}

func TestUnsupportedCapabilities(t *testing.T) {
	provider, _ := newTestProvider(t)
	err := devkit.ValidateUnsupportedCapabilities(context.Background(), provider, map[core.Capability]bool{
		core.CapUpdateRefund: false,
		core.CapDeleteRefund: false,
	})
	if err != nil {
		t.Fatalf("conformance: %v", err)
	}
}

func mustJSON(t *testing.T, value any) string {
	t.Helper()
	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}
