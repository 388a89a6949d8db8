package devkit

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/webhooks"
)

func TestFakeDoer_ScriptsAndCapturesRequests(t *testing.T) {
	doer := NewFakeDoer(JSON(http.StatusTooManyRequests, `{}`), JSON(http.StatusOK, `{"id":"x"}`))

	req, _ := http.NewRequest(http.MethodPost, "https://api.example.test/items", strings.NewReader("a=1&metadata%5Bk%5D=v"))
	first, err := doer.Do(req)
	if err != nil || first.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected first answer %v %v", first, err)
	}
	req, _ = http.NewRequest(http.MethodGet, "https://api.example.test/items", nil)
	second, err := doer.Do(req)
	if err != nil || second.StatusCode != http.StatusOK {
		t.Fatalf("unexpected second answer %v %v", second, err)
	}
	third, _ := doer.Do(req)
	if third.StatusCode != http.StatusOK {
		t.Fatalf("expected last script to repeat")
	}

	requests := doer.Requests()
	if len(requests) != 3 {
		t.Fatalf("expected three captured requests, got %d", len(requests))
	}
	if form := requests[0].Form(); form["a"] != "1" || form["metadata[k]"] != "v" {
		t.Fatalf("unexpected form %v", form)
	}

	failing := NewFakeDoer(Script{Err: errors.New("dial tcp: connection refused")})
	if _, err := failing.Do(req); err == nil {
		t.Fatalf("expected scripted error")
	}
}

func TestValidateUnsupportedCapabilities(t *testing.T) {
	provider := core.UnimplementedProvider{Name: "stub", Planned: map[core.Capability]bool{core.CapUpdateCheckout: true}}
	expected := map[core.Capability]bool{}
	for _, capability := range AllCapabilities() {
		expected[capability] = capability == core.CapUpdateCheckout
	}
	if err := ValidateUnsupportedCapabilities(context.Background(), provider, expected); err != nil {
		t.Fatalf("conformance: %v", err)
	}

	expected[core.CapUpdateCheckout] = false
	if err := ValidateUnsupportedCapabilities(context.Background(), provider, expected); err == nil {
		t.Fatalf("expected future_support mismatch to be reported")
	}
}

func TestValidateDeduperConformance_Memory(t *testing.T) {
	deduper := webhooks.NewMemoryDeduper(webhooks.MemoryDeduperOptions{Window: time.Hour})
	if err := ValidateDeduperConformance(context.Background(), deduper, "stripe", "evt_1"); err != nil {
		t.Fatalf("conformance: %v", err)
	}
}
