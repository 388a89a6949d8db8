package paypal

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/transport"
)

const (
	ProviderID = "paypal"

	EnvClientID     = "PAYPAL_CLIENT_ID"
	EnvClientSecret = "PAYPAL_CLIENT_SECRET"
	EnvWebhookID    = "PAYPAL_WEBHOOK_ID"
	EnvAPIBase      = "PAYPAL_API_BASE"

	DefaultAPIBase = "https://api-m.paypal.com"
	SandboxAPIBase = "https://api-m.sandbox.paypal.com"
)

type Config struct {
	ClientID     string
	ClientSecret string
	// WebhookID identifies the subscription PayPal signs deliveries for.
	WebhookID string
	APIBase   string
	// CoalesceRefresh shares one token fetch between concurrent requests
	// rejected with 401.
	CoalesceRefresh bool
	Transport       core.TransportConfig
	HTTPClient      *http.Client
	RateLimiter     transport.RateLimiter
	Logger          core.Logger
}

func ConfigFromEnv(env map[string]string) (Config, error) {
	values, err := core.RequireEnv(ProviderID, env, EnvClientID, EnvClientSecret, EnvWebhookID)
	if err != nil {
		return Config{}, err
	}
	return Config{
		ClientID:     values[EnvClientID],
		ClientSecret: values[EnvClientSecret],
		WebhookID:    values[EnvWebhookID],
		APIBase:      core.EnvOr(env, EnvAPIBase, DefaultAPIBase),
		Transport:    core.DefaultConfig().Transport,
	}, nil
}

func (c Config) normalized() Config {
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.ClientSecret = strings.TrimSpace(c.ClientSecret)
	c.WebhookID = strings.TrimSpace(c.WebhookID)
	c.APIBase = strings.TrimRight(strings.TrimSpace(c.APIBase), "/")
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	return c
}

func (c Config) missing() []string {
	missing := []string{}
	if c.ClientID == "" {
		missing = append(missing, EnvClientID)
	}
	if c.ClientSecret == "" {
		missing = append(missing, EnvClientSecret)
	}
	if c.WebhookID == "" {
		missing = append(missing, EnvWebhookID)
	}
	return missing
}
