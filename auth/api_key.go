package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-payments/core"
)

const defaultAPIKeyHeader = "X-API-Key"

// APIKeyProfile describes where a static key travels on the request.
type APIKeyProfile struct {
	Header     string
	Prefix     string
	QueryParam string
}

type APIKeyConfig struct {
	Provider string
	Key      string
	Profile  APIKeyProfile
}

// APIKey authorizes requests with a long lived secret. It never refreshes,
// so a 401 from the remote is surfaced as-is by the transport.
type APIKey struct {
	config APIKeyConfig
}

func NewAPIKey(cfg APIKeyConfig) *APIKey {
	profile := cfg.Profile
	profile.Header = strings.TrimSpace(profile.Header)
	profile.QueryParam = strings.TrimSpace(profile.QueryParam)
	if profile.Header == "" && profile.QueryParam == "" {
		profile.Header = defaultAPIKeyHeader
	}
	return &APIKey{
		config: APIKeyConfig{
			Provider: strings.TrimSpace(cfg.Provider),
			Key:      strings.TrimSpace(cfg.Key),
			Profile:  profile,
		},
	}
}

// NewBearer sends the key as an Authorization: Bearer credential, the shape
// Stripe secret keys use.
func NewBearer(provider string, key string) *APIKey {
	return NewAPIKey(APIKeyConfig{
		Provider: provider,
		Key:      key,
		Profile:  APIKeyProfile{Header: "Authorization", Prefix: "Bearer"},
	})
}

func (a *APIKey) Authorize(_ context.Context, req *http.Request) error {
	if a == nil || a.config.Key == "" {
		provider := ""
		if a != nil {
			provider = a.config.Provider
		}
		return core.NewConfigurationError(provider, []string{"api_key"})
	}
	value := a.config.Key
	if prefix := strings.TrimSpace(a.config.Profile.Prefix); prefix != "" {
		value = prefix + " " + value
	}
	if a.config.Profile.Header != "" {
		req.Header.Set(a.config.Profile.Header, value)
	}
	if a.config.Profile.QueryParam != "" {
		query := req.URL.Query()
		query.Set(a.config.Profile.QueryParam, a.config.Key)
		req.URL.RawQuery = query.Encode()
	}
	return nil
}
