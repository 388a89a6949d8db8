package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-payments/core"
)

const (
	defaultTimeout                 = 30 * time.Second
	defaultResponseBodyLimit int64 = 10 << 20 // 10 MiB
)

// Client issues provider API calls. A 401 answer triggers one credential
// refresh and a retry of the same request, up to MaxAttempts in total.
// Every other failure is surfaced after a single attempt.
type Client struct {
	provider    string
	http        HTTPDoer
	auth        Authorizer
	limiter     RateLimiter
	headers     map[string]string
	maxAttempts int
	maxBody     int64
	timeout     time.Duration
	newBackOff  func() backoff.BackOff
	logger      core.Logger
}

type Option func(*Client)

func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

func WithAuthorizer(auth Authorizer) Option {
	return func(c *Client) {
		c.auth = auth
	}
}

// WithRateLimiter refuses calls locally while the provider bucket is
// throttled. Refused calls count as attempts of their own.
func WithRateLimiter(limiter RateLimiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

func WithDefaultHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for key, value := range headers {
			c.headers[key] = value
		}
	}
}

// WithMaxAttempts caps the attempts of the refresh path at the package
// ceiling.
func WithMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts < 1 {
			attempts = 1
		}
		if attempts > core.MaxRequestAttempts {
			attempts = core.MaxRequestAttempts
		}
		c.maxAttempts = attempts
	}
}

func WithMaxResponseBodyBytes(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxBody = limit
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithBackOff sets the delay schedule between refresh retries.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Client) {
		if factory != nil {
			c.newBackOff = factory
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConfig applies the transport section of the service configuration.
func WithConfig(cfg core.TransportConfig) Option {
	return func(c *Client) {
		WithMaxAttempts(cfg.MaxAttempts)(c)
		WithMaxResponseBodyBytes(cfg.MaxBodyBytes)(c)
		WithTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)(c)
	}
}

func NewClient(provider string, opts ...Option) *Client {
	c := &Client{
		provider:    strings.TrimSpace(provider),
		http:        &http.Client{Timeout: defaultTimeout},
		headers:     map[string]string{},
		maxAttempts: core.MaxRequestAttempts,
		maxBody:     defaultResponseBodyLimit,
		newBackOff:  defaultBackOff,
		logger:      glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	if c == nil || c.http == nil {
		return Response{}, clientMisconfigured("", "http_client")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	if !allowedMethods[method] {
		return Response{}, invalidRequest(c.provider, "method", "unsupported method "+method)
	}
	target, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || target.Scheme == "" || target.Host == "" {
		return Response{}, invalidRequest(c.provider, "url", "must be an absolute URL")
	}
	if len(req.Query) > 0 {
		query := target.Query()
		for key, value := range req.Query {
			if strings.TrimSpace(key) == "" {
				continue
			}
			query.Set(strings.TrimSpace(key), value)
		}
		target.RawQuery = query.Encode()
	}
	if err := ctx.Err(); err != nil {
		return Response{}, core.ClassifyError(c.provider, err)
	}

	reauth, _ := c.auth.(Reauthenticator)
	startedAt := time.Now()
	attempts := 0
	refreshes := 0
	var response Response

	operation := func() error {
		attempts++
		if attempts > 1 {
			refreshes++
			c.logger.Warn("authorization rejected, refreshing credentials",
				"provider", c.provider, "attempt", attempts, "url", target.String())
			if err := reauth.Reauthenticate(ctx); err != nil {
				return backoff.Permanent(core.MapError(c.provider, err))
			}
		}
		res, err := c.send(ctx, method, target.String(), req)
		if err == nil {
			response = res
			return nil
		}
		if reauth != nil && core.StatusOf(err) == http.StatusUnauthorized {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		err = core.MapError(c.provider, err)
		if refreshes > 0 && attempts >= c.maxAttempts && core.IsKind(err, core.KindUnauthorized) {
			c.logger.Error("authorization retry ceiling reached", "provider", c.provider, "attempts", attempts)
			return Response{}, retryCeilingExceeded(c.provider, attempts, err)
		}
		return Response{}, err
	}

	response.Attempts = attempts
	response.Duration = time.Since(startedAt)
	c.logger.Debug("provider request completed",
		"provider", c.provider,
		"method", method,
		"status", response.StatusCode,
		"attempts", attempts,
		"duration_ms", response.Duration.Milliseconds(),
	)
	return response, nil
}

func (c *Client) send(ctx context.Context, method string, target string, req Request) (Response, error) {
	requestCtx := ctx
	cancel := func() {}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.BeforeCall(ctx, c.provider, req.Bucket); err != nil {
			return Response{}, core.MapError(c.provider, err)
		}
	}

	httpReq, err := http.NewRequestWithContext(requestCtx, method, target, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, invalidRequest(c.provider, "request", err.Error())
	}
	for key, value := range c.headers {
		if strings.TrimSpace(key) != "" {
			httpReq.Header.Set(strings.TrimSpace(key), value)
		}
	}
	for key, value := range req.Headers {
		if strings.TrimSpace(key) != "" {
			httpReq.Header.Set(strings.TrimSpace(key), value)
		}
	}
	if c.auth != nil {
		if err := c.auth.Authorize(requestCtx, httpReq); err != nil {
			return Response{}, core.MapError(c.provider, err)
		}
	}

	httpRes, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, core.ClassifyError(c.provider, err)
	}
	defer httpRes.Body.Close()
	headers := flattenHeaders(httpRes.Header)
	if c.limiter != nil {
		if err := c.limiter.AfterCall(ctx, c.provider, req.Bucket, httpRes.StatusCode, headers); err != nil {
			c.logger.Warn("rate limit state not recorded", "provider", c.provider, "error", err)
		}
	}

	limit := req.MaxResponseBodyBytes
	if limit <= 0 {
		limit = c.maxBody
	}
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, limit+1))
	if err != nil {
		return Response{}, core.ClassifyError(c.provider, err)
	}
	if int64(len(body)) > limit {
		return Response{}, responseTooLarge(c.provider, httpRes.StatusCode, limit)
	}
	if err := core.ClassifyStatus(c.provider, httpRes.StatusCode, body); err != nil {
		return Response{}, err
	}
	return Response{
		StatusCode: httpRes.StatusCode,
		Headers:    headers,
		Body:       body,
	}, nil
}
