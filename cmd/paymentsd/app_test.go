package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-payments/adapters/zerologger"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/providers/local"
	"github.com/rs/zerolog"
)

const testSecret = "paymentsd_test_secret"

func newTestApp(t *testing.T, env map[string]string) *app {
	t.Helper()
	env[local.EnvWebhookSecret] = testSecret
	s, err := parseSettings(env)
	if err != nil {
		t.Fatalf("parse settings: %v", err)
	}
	a, err := newApp(context.Background(), s, zerologger.New(zerolog.New(io.Discard)), nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func signedDelivery(t *testing.T) core.WebhookDelivery {
	t.Helper()
	provider, err := local.New(local.Config{WebhookSecret: testSecret})
	if err != nil {
		t.Fatalf("new local provider: %v", err)
	}
	if _, err := provider.CreateCustomer(context.Background(), core.CreateCustomerParams{Email: "ada@example.com", Name: "Ada"}); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	delivery, ok, err := provider.Flush()
	if err != nil || !ok {
		t.Fatalf("flush: %v %v", ok, err)
	}
	return delivery
}

func post(t *testing.T, server *httptest.Server, path string, delivery core.WebhookDelivery) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, server.URL+path, bytes.NewReader(delivery.Body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for key, value := range delivery.Headers {
		req.Header.Set(key, value)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func get(t *testing.T, server *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := server.Client().Get(server.URL + path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func TestApp_WebhookDeliveryAndStatus(t *testing.T) {
	a := newTestApp(t, map[string]string{})
	server := httptest.NewServer(a.Handler())
	defer server.Close()

	delivery := signedDelivery(t)
	resp, body := post(t, server, "/webhooks/local", delivery)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var report struct {
		Outcomes []struct {
			EventID string `json:"event_id"`
			Status  string `json:"status"`
		} `json:"outcomes"`
	}
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Outcomes) != 1 || report.Outcomes[0].Status != "completed" {
		t.Fatalf("unexpected report %s", body)
	}
	eventID := report.Outcomes[0].EventID

	resp, body = post(t, server, "/webhooks/local", delivery)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "duplicate") {
		t.Fatalf("expected redelivery to be reported as duplicate, got %d: %s", resp.StatusCode, body)
	}

	resp, body = get(t, server, "/webhooks/local/events/"+eventID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected event status, got %d: %s", resp.StatusCode, body)
	}
	var status eventStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Seen || status.Status != "completed" || status.CompletedAt == "" {
		t.Fatalf("unexpected status %+v", status)
	}

	if resp, _ := get(t, server, "/webhooks/local/events/evt_missing"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown event, got %d", resp.StatusCode)
	}

	resp, body = get(t, server, "/metrics")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "payments_webhook_events_total") {
		t.Fatalf("expected webhook metrics to be exported, got %d", resp.StatusCode)
	}
}

func TestApp_RejectsTamperedAndUnknownProvider(t *testing.T) {
	a := newTestApp(t, map[string]string{})
	server := httptest.NewServer(a.Handler())
	defer server.Close()

	delivery := signedDelivery(t)
	delivery.Body = append([]byte(nil), delivery.Body...)
	delivery.Body[len(delivery.Body)-2] ^= 1
	if resp, body := post(t, server, "/webhooks/local", delivery); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for tampered body, got %d: %s", resp.StatusCode, body)
	}
	if resp, _ := post(t, server, "/webhooks/stripe", signedDelivery(t)); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unregistered provider, got %d", resp.StatusCode)
	}
}

func TestApp_SQLClaimsAndPurge(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "payments.db") + "?_busy_timeout=5000"
	a := newTestApp(t, map[string]string{envDBDSN: dsn})
	server := httptest.NewServer(a.Handler())
	defer server.Close()

	if resp, body := post(t, server, "/webhooks/local", signedDelivery(t)); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	s, _ := parseSettings(map[string]string{})
	if _, err := a.Purge(context.Background(), s); err != nil {
		t.Fatalf("purge: %v", err)
	}
}

func TestApp_PurgeRequiresDatabase(t *testing.T) {
	a := newTestApp(t, map[string]string{})
	s, _ := parseSettings(map[string]string{})
	if _, err := a.Purge(context.Background(), s); err == nil {
		t.Fatalf("expected purge without a database to fail")
	}
}

func TestApp_MissingProviderKeys(t *testing.T) {
	s, err := parseSettings(map[string]string{envEnabledProviders: "stripe"})
	if err != nil {
		t.Fatalf("parse settings: %v", err)
	}
	_, err = newApp(context.Background(), s, zerologger.New(zerolog.New(io.Discard)), nil)
	if !core.IsKind(err, core.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
