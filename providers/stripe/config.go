package stripe

import (
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/transport"
)

const (
	ProviderID = "stripe"

	EnvSecretKey     = "STRIPE_SECRET_KEY"
	EnvWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	EnvAPIBase       = "STRIPE_API_BASE"

	DefaultAPIBase = "https://api.stripe.com"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	APIBase       string
	// Tolerance is the accepted age of a signed delivery.
	Tolerance   time.Duration
	Transport   core.TransportConfig
	HTTPClient  transport.HTTPDoer
	RateLimiter transport.RateLimiter
	Logger      core.Logger
}

// ConfigFromEnv reads the adapter settings from a supplied map. It never
// touches the process environment.
func ConfigFromEnv(env map[string]string) (Config, error) {
	values, err := core.RequireEnv(ProviderID, env, EnvSecretKey, EnvWebhookSecret)
	if err != nil {
		return Config{}, err
	}
	return Config{
		SecretKey:     values[EnvSecretKey],
		WebhookSecret: values[EnvWebhookSecret],
		APIBase:       core.EnvOr(env, EnvAPIBase, DefaultAPIBase),
		Transport:     core.DefaultConfig().Transport,
	}, nil
}

func (c Config) normalized() Config {
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.WebhookSecret = strings.TrimSpace(c.WebhookSecret)
	c.APIBase = strings.TrimRight(strings.TrimSpace(c.APIBase), "/")
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 5 * time.Minute
	}
	return c
}

func (c Config) missing() []string {
	missing := []string{}
	if c.SecretKey == "" {
		missing = append(missing, EnvSecretKey)
	}
	if c.WebhookSecret == "" {
		missing = append(missing, EnvWebhookSecret)
	}
	return missing
}
