package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/ratelimit"
)

func TestClient_RateLimiterGatesThrottledBucket(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	t.Cleanup(server.Close)

	limiter := ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	client := NewClient("stripe", WithRateLimiter(limiter), WithHTTPClient(server.Client()))

	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL, Bucket: "customers"})
	if core.StatusOf(err) != http.StatusTooManyRequests {
		t.Fatalf("expected the 429 answer to surface, got %v", err)
	}

	_, err = client.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL, Bucket: "customers"})
	if wait, ok := ratelimit.RetryAfter(err); !ok || wait <= 0 {
		t.Fatalf("expected a local throttle error, got %v", err)
	}
	if !core.IsKind(err, core.KindUnknown) {
		t.Fatalf("expected throttling to keep the 429 kind, got %s", core.KindOf(err))
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected the gated call to stay local, got %d remote calls", got)
	}

	if _, err := client.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL, Bucket: "refunds"}); core.StatusOf(err) != http.StatusTooManyRequests {
		t.Fatalf("expected other buckets to reach the provider, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected two remote calls, got %d", got)
	}
}
