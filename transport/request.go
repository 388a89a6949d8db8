package transport

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Request is one outbound call. Body is sent verbatim.
type Request struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
	// Bucket names the provider quota the call counts against.
	Bucket string
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Attempts   int
	Duration   time.Duration
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Authorizer writes credentials onto an outgoing request.
type Authorizer interface {
	Authorize(ctx context.Context, req *http.Request) error
}

// RateLimiter gates calls per provider bucket using what earlier answers
// reported about the remaining quota.
type RateLimiter interface {
	BeforeCall(ctx context.Context, provider string, bucket string) error
	AfterCall(ctx context.Context, provider string, bucket string, status int, headers map[string]string) error
}

// Reauthenticator refreshes credentials after the remote rejected them.
type Reauthenticator interface {
	Reauthenticate(ctx context.Context) error
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}
