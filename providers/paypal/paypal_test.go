package paypal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/providers/devkit"
	"github.com/goliatone/go-payments/webhooks"
)

// fakePayPal serves the token endpoint plus whatever API routes a test
// registers. Every API route requires the most recently issued token.
type fakePayPal struct {
	t       *testing.T
	server  *httptest.Server
	tokens  atomic.Int32
	mu      sync.Mutex
	routes  map[string]http.HandlerFunc
	reject  int
	bodies  map[string][]byte
	granted string
}

func newFakePayPal(t *testing.T) *fakePayPal {
	t.Helper()
	fake := &fakePayPal{t: t, routes: map[string]http.HandlerFunc{}, bodies: map[string][]byte{}}
	fake.server = httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *fakePayPal) handle(route string, handler http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = handler
}

// rejectNext answers the next n API calls with 401.
func (f *fakePayPal) rejectNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reject = n
}

func (f *fakePayPal) body(route string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[route]
}

func (f *fakePayPal) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/v1/oauth2/token" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := f.tokens.Add(1)
		token := "tok-" + strconv.Itoa(int(n))
		f.mu.Lock()
		f.granted = token
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"`+token+`","token_type":"Bearer","expires_in":3600}`)
		return
	}

	route := r.Method + " " + r.URL.Path
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.bodies[route] = body
	handler, ok := f.routes[route]
	granted := f.granted
	rejected := f.reject > 0
	if rejected {
		f.reject--
	}
	f.mu.Unlock()

	if rejected || r.Header.Get("Authorization") != "Bearer "+granted {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if !ok {
		f.t.Errorf("unexpected route %s", route)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	handler(w, r)
}

func (f *fakePayPal) provider(t *testing.T) *Provider {
	t.Helper()
	provider, err := New(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		WebhookID:    "WH-1",
		APIBase:      f.server.URL,
		HTTPClient:   f.server.Client(),
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestConfigFromEnv(t *testing.T) {
	_, err := ConfigFromEnv(map[string]string{})
	if got := core.MissingKeys(err); !reflect.DeepEqual(got, []string{EnvClientID, EnvClientSecret, EnvWebhookID}) {
		t.Fatalf("unexpected missing keys %v (%v)", got, err)
	}
	cfg, err := ConfigFromEnv(map[string]string{
		EnvClientID: "id", EnvClientSecret: "secret", EnvWebhookID: "WH", EnvAPIBase: SandboxAPIBase,
	})
	if err != nil || cfg.APIBase != SandboxAPIBase {
		t.Fatalf("unexpected config %+v %v", cfg, err)
	}
}

func TestMoneyConversion(t *testing.T) {
	tests := []struct {
		minor    int64
		currency string
		decimal  string
	}{
		{minor: 1999, currency: "USD", decimal: "19.99"},
		{minor: 5, currency: "EUR", decimal: "0.05"},
		{minor: 1200, currency: "JPY", decimal: "1200"},
		{minor: -250, currency: "GBP", decimal: "-2.50"},
	}
	for _, tc := range tests {
		if got := formatAmount(tc.minor, tc.currency); got != tc.decimal {
			t.Fatalf("format %d %s: got %q", tc.minor, tc.currency, got)
		}
		if got, err := parseAmount(tc.decimal, tc.currency); err != nil || got != tc.minor {
			t.Fatalf("parse %q %s: got %d %v", tc.decimal, tc.currency, got, err)
		}
	}
	if got, err := parseAmount("10.5", "USD"); err != nil || got != 1050 {
		t.Fatalf("expected short fractions to pad, got %d %v", got, err)
	}
	if _, err := parseAmount("1.001", "USD"); !core.IsKind(err, core.KindUnknown) {
		t.Fatalf("expected excess precision to fail, got %v", err)
	}
}

func TestCreateCheckout_OrderRoundTrip(t *testing.T) {
	fake := newFakePayPal(t)
	fake.handle("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		var order wireOrderRequest
		if err := json.NewDecoder(strings.NewReader(string(fake.body("POST /v2/checkout/orders")))).Decode(&order); err != nil {
			t.Errorf("decode order: %v", err)
		}
		unit := order.PurchaseUnits[0]
		reply, _ := json.Marshal(wireOrder{
			ID:            "ORDER-1",
			Status:        "PAYER_ACTION_REQUIRED",
			PurchaseUnits: []wirePurchaseUnit{unit},
			Links:         []wireLink{{Rel: "payer-action", Href: "https://www.paypal.test/checkoutnow?token=ORDER-1"}},
			CreateTime:    "2024-03-01T10:00:00Z",
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(reply)
	})
	provider := fake.provider(t)

	checkout, err := provider.CreateCheckout(context.Background(), core.CreateCheckoutParams{
		Customer:    core.CustomerID("cus_1"),
		SessionType: core.SessionOneTime,
		ItemID:      "sku_1",
		Quantity:    2,
		Amount:      1000,
		Currency:    "usd",
		SuccessURL:  "https://shop.example.com/ok",
		Metadata:    map[string]string{"cart": "c1"},
	})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if checkout.ID != "ORDER-1" || checkout.Status != core.CheckoutOpen || checkout.PaymentURL == "" {
		t.Fatalf("unexpected checkout %+v", checkout)
	}
	if checkout.Amount != 2000 || checkout.Currency != "USD" || checkout.ItemID != "sku_1" || checkout.Quantity != 2 {
		t.Fatalf("unexpected checkout pricing %+v", checkout)
	}
	if checkout.Customer.ID != "cus_1" || !reflect.DeepEqual(checkout.Metadata, map[string]string{"cart": "c1"}) {
		t.Fatalf("unexpected customer or metadata %+v", checkout)
	}

	var sent wireOrderRequest
	_ = json.Unmarshal(fake.body("POST /v2/checkout/orders"), &sent)
	if sent.PurchaseUnits[0].Amount.Value != "20.00" || sent.PurchaseUnits[0].Items[0].UnitAmount.Value != "10.00" {
		t.Fatalf("unexpected amounts sent %+v", sent.PurchaseUnits[0])
	}
	if len(sent.PurchaseUnits[0].CustomID) > maxCustomID {
		t.Fatalf("custom_id exceeds the backend limit")
	}
}

func TestCreateCheckout_RequiresPrice(t *testing.T) {
	fake := newFakePayPal(t)
	provider := fake.provider(t)
	_, err := provider.CreateCheckout(context.Background(), core.CreateCheckoutParams{
		Customer:    core.CustomerID("cus_1"),
		SessionType: core.SessionOneTime,
		ItemID:      "sku_1",
		Quantity:    1,
	})
	if !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(core.Violations(err)) != 2 {
		t.Fatalf("expected amount and currency violations, got %v", core.Violations(err))
	}
	if fake.tokens.Load() != 0 {
		t.Fatalf("rejected input must not fetch a token")
	}
}

func TestRetrieve_RefreshesTokenOn401(t *testing.T) {
	fake := newFakePayPal(t)
	fake.handle("GET /v2/checkout/orders/ORDER-1", respond(`{
		"id": "ORDER-1", "status": "COMPLETED",
		"purchase_units": [{"amount": {"currency_code": "EUR", "value": "15.00"}}],
		"payer": {"email_address": "buyer@example.com", "name": {"given_name": "Ada", "surname": "Lovelace"}}
	}`))
	provider := fake.provider(t)

	if _, err := provider.RetrievePayment(context.Background(), "ORDER-1"); err != nil {
		t.Fatalf("warm up: %v", err)
	}
	fake.rejectNext(1)
	payment, err := provider.RetrievePayment(context.Background(), "ORDER-1")
	if err != nil {
		t.Fatalf("retrieve after refresh: %v", err)
	}
	if payment.Status != core.PaymentSucceeded || payment.Amount != 1500 || payment.Customer.Email != "buyer@example.com" {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if got := fake.tokens.Load(); got != 2 {
		t.Fatalf("expected one refresh after the 401, got %d token fetches", got)
	}

	fake.rejectNext(3)
	_, err = provider.RetrievePayment(context.Background(), "ORDER-1")
	if !core.IsKind(err, core.KindUnknown) {
		t.Fatalf("expected retry ceiling error, got %v", err)
	}
}

func TestSubscriptionCheckoutAndCancel(t *testing.T) {
	fake := newFakePayPal(t)
	fake.handle("POST /v1/billing/subscriptions", respond(`{
		"id": "I-SUB1", "plan_id": "P-1", "status": "APPROVAL_PENDING", "quantity": "1",
		"links": [{"rel": "approve", "href": "https://www.paypal.test/webapps/billing/subscriptions?ba_token=BA-1"}]
	}`))
	fake.handle("POST /v1/billing/subscriptions/I-SUB1/cancel", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	provider := fake.provider(t)

	checkout, err := provider.CreateCheckout(context.Background(), core.CreateCheckoutParams{
		Customer:    core.CustomerRef{Email: "a@example.com", Name: "Ada Lovelace"},
		SessionType: core.SessionRecurring,
		ItemID:      "P-1",
		Quantity:    1,
	})
	if err != nil {
		t.Fatalf("create recurring checkout: %v", err)
	}
	if checkout.SessionType != core.SessionRecurring || checkout.Status != core.CheckoutOpen || checkout.ItemID != "P-1" {
		t.Fatalf("unexpected checkout %+v", checkout)
	}
	var sent wireSubscriptionRequest
	_ = json.Unmarshal(fake.body("POST /v1/billing/subscriptions"), &sent)
	if sent.Subscriber == nil || sent.Subscriber.Name == nil || sent.Subscriber.Name.Surname != "Lovelace" {
		t.Fatalf("unexpected subscriber %+v", sent.Subscriber)
	}

	canceled, err := provider.DeleteSubscription(context.Background(), "I-SUB1")
	if err != nil || canceled.Status != core.SubscriptionCanceled {
		t.Fatalf("unexpected cancel result %+v %v", canceled, err)
	}
}

func TestUnsupportedCapabilities(t *testing.T) {
	fake := newFakePayPal(t)
	err := devkit.ValidateUnsupportedCapabilities(context.Background(), fake.provider(t), map[core.Capability]bool{
		core.CapCreateCustomer:     false,
		core.CapRetrieveCustomer:   false,
		core.CapUpdateCustomer:     false,
		core.CapDeleteCustomer:     false,
		core.CapUpdateCheckout:     true,
		core.CapDeleteCheckout:     false,
		core.CapUpdateSubscription: true,
		core.CapUpdatePayment:      true,
		core.CapDeletePayment:      false,
		core.CapUpdateRefund:       false,
		core.CapDeleteRefund:       false,
	})
	if err != nil {
		t.Fatalf("conformance: %v", err)
	}
}

func webhookDelivery(body string) core.WebhookDelivery {
	return core.WebhookDelivery{
		Body: []byte(body),
		Headers: map[string]string{
			"Paypal-Auth-Algo":         "SHA256withRSA",
			"Paypal-Cert-Url":          "https://api.paypal.test/certs/CERT-1",
			"Paypal-Transmission-Id":   "tx-1",
			"Paypal-Transmission-Sig":  "sig",
			"Paypal-Transmission-Time": "2024-03-01T10:00:00Z",
		},
	}
}

func TestHandleWebhook_VerifiesRawBodyAndMaps(t *testing.T) {
	fake := newFakePayPal(t)
	var status atomic.Value
	status.Store("SUCCESS")
	fake.handle("POST /v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"verification_status":"`+status.Load().(string)+`"}`)
	})
	provider := fake.provider(t)

	raw := `{"id":"WH-EVT-1",  "event_type":"PAYMENT.CAPTURE.COMPLETED", "create_time":"2024-03-01T10:00:00Z",
		"resource":{"id":"CAP-1","status":"COMPLETED","amount":{"currency_code":"USD","value":"20.00"},
		"supplementary_data":{"related_ids":{"order_id":"ORDER-1"}}}}`

	var payments []core.Payment
	engine := webhooks.Setup(provider, core.WebhookConfig{}).On(core.EventPaymentUpdated, func(_ context.Context, event core.WebhookEvent) error {
		payment, _ := event.Payment()
		payments = append(payments, payment)
		return nil
	})
	report, err := engine.Handle(context.Background(), webhookDelivery(raw))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if report.Stage != webhooks.StageCompleted || len(payments) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if payments[0].ID != "ORDER-1" || payments[0].Status != core.PaymentSucceeded || payments[0].Amount != 2000 {
		t.Fatalf("unexpected payment %+v", payments[0])
	}

	sent := string(fake.body("POST /v1/notifications/verify-webhook-signature"))
	if !strings.Contains(sent, `"webhook_event":`+raw) {
		t.Fatalf("raw body was not forwarded verbatim: %s", sent)
	}
	if !strings.Contains(sent, `"webhook_id":"WH-1"`) || !strings.Contains(sent, `"transmission_id":"tx-1"`) {
		t.Fatalf("unexpected verification request %s", sent)
	}

	status.Store("FAILURE")
	if _, err := provider.HandleWebhook(context.Background(), webhookDelivery(raw)); !core.IsKind(err, core.KindUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestHandleWebhook_MissingHeadersSkipVerificationCall(t *testing.T) {
	fake := newFakePayPal(t)
	provider := fake.provider(t)
	_, err := provider.HandleWebhook(context.Background(), core.WebhookDelivery{Body: []byte(`{}`)})
	if !core.IsKind(err, core.KindUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if fake.tokens.Load() != 0 {
		t.Fatalf("verification must not be attempted without headers")
	}
}
