package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/webhooks"
)

type tokenSource struct {
	verifier webhooks.HeaderTokenVerifier
}

func (s tokenSource) ID() string { return "local" }

func (s tokenSource) HandleWebhook(_ context.Context, delivery core.WebhookDelivery) ([]core.WebhookEvent, error) {
	if err := s.verifier.Verify(delivery); err != nil {
		return nil, err
	}
	event, err := core.NewWebhookEvent("evt_1", "local", core.EventCustomerCreated, core.Customer{ID: "cus_1", Email: string(delivery.Body)}, time.Unix(0, 0))
	if err != nil {
		return nil, err
	}
	return []core.WebhookEvent{event}, nil
}

func newTestHandler(t *testing.T, handler webhooks.Handler) *HTTPHandler {
	t.Helper()
	source := tokenSource{verifier: webhooks.HeaderTokenVerifier{Provider: "local", Header: "X-Token", Token: "tok"}}
	dispatcher := NewDispatcher()
	engine := webhooks.Setup(source, core.WebhookConfig{}).On(core.EventCustomerCreated, handler)
	if err := dispatcher.Register("local", engine); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := dispatcher.Register("LOCAL", engine); !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected duplicate registration error, got %v", err)
	}
	return NewHTTPHandler(dispatcher, nil, WithMaxBodyBytes(64))
}

func TestHTTPHandler_StatusCodes(t *testing.T) {
	var received string
	ok := func(_ context.Context, event core.WebhookEvent) error {
		customer, _ := event.Customer()
		received = customer.Email
		return nil
	}
	failing := func(context.Context, core.WebhookEvent) error { return errors.New("boom") }

	tests := []struct {
		name    string
		handler webhooks.Handler
		method  string
		target  string
		token   string
		body    string
		status  int
	}{
		{name: "accepted", handler: ok, target: "/webhooks?provider=local", token: "tok", body: "a@example.com", status: http.StatusOK},
		{name: "bad signature", handler: ok, target: "/webhooks?provider=local", token: "nope", body: "x", status: http.StatusUnauthorized},
		{name: "handler failed", handler: failing, target: "/webhooks?provider=local", token: "tok", body: "x", status: http.StatusInternalServerError},
		{name: "unknown provider", handler: ok, target: "/webhooks?provider=stripe", token: "tok", body: "x", status: http.StatusNotFound},
		{name: "too large", handler: ok, target: "/webhooks?provider=local", token: "tok", body: strings.Repeat("x", 65), status: http.StatusRequestEntityTooLarge},
		{name: "wrong method", handler: ok, method: http.MethodGet, target: "/webhooks?provider=local", status: http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			method := tc.method
			if method == "" {
				method = http.MethodPost
			}
			req := httptest.NewRequest(method, tc.target, strings.NewReader(tc.body))
			req.Header.Set("X-Token", tc.token)
			rec := httptest.NewRecorder()
			newTestHandler(t, tc.handler).ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
	if received != "a@example.com" {
		t.Fatalf("expected raw body to reach the handler, got %q", received)
	}
}

func TestHTTPHandler_ReportsOutcomes(t *testing.T) {
	handler := newTestHandler(t, func(context.Context, core.WebhookEvent) error { return nil })
	req := httptest.NewRequest(http.MethodPost, "/webhooks?provider=local", strings.NewReader("a@example.com"))
	req.Header.Set("X-Token", "tok")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var payload deliveryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Stage != webhooks.StageCompleted || len(payload.Outcomes) != 1 || payload.Outcomes[0].Status != "completed" {
		t.Fatalf("unexpected response %+v", payload)
	}
}
