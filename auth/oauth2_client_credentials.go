package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-payments/core"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

type ClientCredentialsConfig struct {
	Provider     string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	// RenewBefore fetches a new token this long before the cached one expires.
	RenewBefore time.Duration
	// Coalesce shares one token fetch between concurrent refreshes.
	Coalesce   bool
	HTTPClient *http.Client
	Logger     core.Logger
	Now        func() time.Time
}

// ClientCredentials authorizes requests with an OAuth2 bearer token obtained
// through the client credentials grant. Tokens are cached until they near
// expiry or the remote rejects them.
type ClientCredentials struct {
	config ClientCredentialsConfig
	oauth  clientcredentials.Config
	group  singleflight.Group

	mu      sync.Mutex
	token   *oauth2.Token
	fetches int
}

func NewClientCredentials(cfg ClientCredentialsConfig) *ClientCredentials {
	renewBefore := cfg.RenewBefore
	if renewBefore <= 0 {
		renewBefore = 2 * time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	normalized := ClientCredentialsConfig{
		Provider:     strings.TrimSpace(cfg.Provider),
		ClientID:     strings.TrimSpace(cfg.ClientID),
		ClientSecret: strings.TrimSpace(cfg.ClientSecret),
		TokenURL:     strings.TrimSpace(cfg.TokenURL),
		Scopes:       normalizeValues(cfg.Scopes),
		RenewBefore:  renewBefore,
		Coalesce:     cfg.Coalesce,
		HTTPClient:   cfg.HTTPClient,
		Logger:       logger,
		Now:          now,
	}
	return &ClientCredentials{
		config: normalized,
		oauth: clientcredentials.Config{
			ClientID:     normalized.ClientID,
			ClientSecret: normalized.ClientSecret,
			TokenURL:     normalized.TokenURL,
			Scopes:       normalized.Scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
	}
}

func (c *ClientCredentials) Authorize(ctx context.Context, req *http.Request) error {
	token, err := c.current(ctx)
	if err != nil {
		return err
	}
	token.SetAuthHeader(req)
	return nil
}

// Reauthenticate drops the cached token and fetches a new one.
func (c *ClientCredentials) Reauthenticate(ctx context.Context) error {
	if !c.config.Coalesce {
		c.invalidate()
		_, err := c.fetch(ctx)
		return err
	}
	_, err, shared := c.group.Do("reauthenticate", func() (any, error) {
		c.invalidate()
		return c.fetch(ctx)
	})
	if shared {
		c.config.Logger.Debug("shared in-flight token refresh", "provider", c.config.Provider)
	}
	return err
}

// Fetches reports how many tokens were requested from the token endpoint.
func (c *ClientCredentials) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

func (c *ClientCredentials) current(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if c.usable(token) {
		return token, nil
	}
	return c.fetch(ctx)
}

func (c *ClientCredentials) usable(token *oauth2.Token) bool {
	if token == nil || token.AccessToken == "" {
		return false
	}
	if token.Expiry.IsZero() {
		return true
	}
	return token.Expiry.After(c.config.Now().Add(c.config.RenewBefore))
}

func (c *ClientCredentials) invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

func (c *ClientCredentials) fetch(ctx context.Context) (*oauth2.Token, error) {
	var missing []string
	if c.config.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.config.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.config.TokenURL == "" {
		missing = append(missing, "token_url")
	}
	if len(missing) > 0 {
		return nil, core.NewConfigurationError(c.config.Provider, missing)
	}

	if c.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.config.HTTPClient)
	}
	token, err := c.oauth.Token(ctx)
	if err != nil {
		return nil, c.tokenError(err)
	}

	c.mu.Lock()
	c.token = token
	c.fetches++
	c.mu.Unlock()
	c.config.Logger.Debug("issued client credentials token",
		"provider", c.config.Provider,
		"expires_at", token.Expiry,
	)
	return token, nil
}

func (c *ClientCredentials) tokenError(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) && retrieve.Response != nil {
		status := retrieve.Response.StatusCode
		if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden {
			return core.NewUnauthorizedError(c.config.Provider, "auth: token endpoint rejected client credentials", err)
		}
		if mapped := core.ClassifyStatus(c.config.Provider, status, retrieve.Body); mapped != nil {
			return mapped
		}
	}
	return core.ClassifyError(c.config.Provider, err)
}
