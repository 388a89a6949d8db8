package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-payments/core"
)

func TestAPIKey_Profiles(t *testing.T) {
	tests := []struct {
		name       string
		authorizer *APIKey
		header     string
		want       string
		query      string
	}{
		{name: "bearer", authorizer: NewBearer("stripe", "sk_test_1"), header: "Authorization", want: "Bearer sk_test_1"},
		{name: "default header", authorizer: NewAPIKey(APIKeyConfig{Key: "k1"}), header: defaultAPIKeyHeader, want: "k1"},
		{name: "query param", authorizer: NewAPIKey(APIKeyConfig{Key: "k2", Profile: APIKeyProfile{QueryParam: "api_key"}}), query: "k2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "https://api.example.com/v1/customers", nil)
			if err := tc.authorizer.Authorize(context.Background(), req); err != nil {
				t.Fatalf("authorize: %v", err)
			}
			if tc.header != "" && req.Header.Get(tc.header) != tc.want {
				t.Fatalf("expected %s=%q, got %q", tc.header, tc.want, req.Header.Get(tc.header))
			}
			if tc.query != "" && req.URL.Query().Get("api_key") != tc.query {
				t.Fatalf("expected query credential, got %q", req.URL.RawQuery)
			}
		})
	}
}

func TestAPIKey_MissingKeyIsConfigurationError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://api.example.com", nil)
	err := NewBearer("stripe", " ").Authorize(context.Background(), req)
	if !core.IsKind(err, core.KindConfiguration) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if keys := core.MissingKeys(err); len(keys) != 1 || keys[0] != "api_key" {
		t.Fatalf("expected missing api_key, got %v", keys)
	}
}

type tokenServer struct {
	server  *httptest.Server
	calls   int32
	release chan struct{}
	status  int
}

func newTokenServer(t *testing.T, expiresIn int) *tokenServer {
	t.Helper()
	ts := &tokenServer{status: http.StatusOK}
	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&ts.calls, 1)
		if ts.release != nil {
			<-ts.release
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client_1" || pass != "secret_1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.FormValue("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if ts.status != http.StatusOK {
			w.WriteHeader(ts.status)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":%d}`, n, expiresIn)
	}))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *tokenServer) config() ClientCredentialsConfig {
	return ClientCredentialsConfig{
		Provider:     "paypal",
		ClientID:     "client_1",
		ClientSecret: "secret_1",
		TokenURL:     ts.server.URL + "/v1/oauth2/token",
		HTTPClient:   ts.server.Client(),
	}
}

func authHeader(t *testing.T, cc *ClientCredentials) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "https://api.example.com", nil)
	if err := cc.Authorize(context.Background(), req); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	return req.Header.Get("Authorization")
}

func TestClientCredentials_CachesUntilNearExpiry(t *testing.T) {
	ts := newTokenServer(t, 3600)
	now := time.Now()
	cfg := ts.config()
	cfg.Now = func() time.Time { return now }
	cc := NewClientCredentials(cfg)

	first := authHeader(t, cc)
	second := authHeader(t, cc)
	if first != "Bearer token-1" || second != first {
		t.Fatalf("expected cached token reuse, got %q then %q", first, second)
	}

	now = now.Add(59 * time.Minute)
	if third := authHeader(t, cc); third != "Bearer token-2" {
		t.Fatalf("expected renewal near expiry, got %q", third)
	}
	if cc.Fetches() != 2 {
		t.Fatalf("expected two fetches, got %d", cc.Fetches())
	}
}

func TestClientCredentials_ReauthenticateReplacesToken(t *testing.T) {
	ts := newTokenServer(t, 3600)
	cc := NewClientCredentials(ts.config())

	_ = authHeader(t, cc)
	if err := cc.Reauthenticate(context.Background()); err != nil {
		t.Fatalf("reauthenticate: %v", err)
	}
	if err := cc.Reauthenticate(context.Background()); err != nil {
		t.Fatalf("reauthenticate: %v", err)
	}
	if got := authHeader(t, cc); got != "Bearer token-3" {
		t.Fatalf("expected freshly issued token, got %q", got)
	}
	if cc.Fetches() != 3 {
		t.Fatalf("expected independent refreshes, got %d fetches", cc.Fetches())
	}
}

func TestClientCredentials_CoalescesConcurrentRefreshes(t *testing.T) {
	ts := newTokenServer(t, 3600)
	ts.release = make(chan struct{})
	cfg := ts.config()
	cfg.Coalesce = true
	cc := NewClientCredentials(cfg)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- cc.Reauthenticate(context.Background())
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(ts.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("reauthenticate: %v", err)
		}
	}
	if got := atomic.LoadInt32(&ts.calls); got != 1 {
		t.Fatalf("expected one shared token fetch, got %d", got)
	}
}

func TestClientCredentials_Errors(t *testing.T) {
	ts := newTokenServer(t, 3600)
	ts.status = http.StatusUnauthorized
	cc := NewClientCredentials(ts.config())
	req := httptest.NewRequest(http.MethodGet, "https://api.example.com", nil)
	if err := cc.Authorize(context.Background(), req); !core.IsKind(err, core.KindUnauthorized) {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}

	missing := NewClientCredentials(ClientCredentialsConfig{Provider: "paypal", TokenURL: ts.server.URL})
	err := missing.Authorize(context.Background(), req)
	if !core.IsKind(err, core.KindConfiguration) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	keys := core.MissingKeys(err)
	if len(keys) != 2 || keys[0] != "client_id" || keys[1] != "client_secret" {
		t.Fatalf("unexpected missing keys %v", keys)
	}
}
