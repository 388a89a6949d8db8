package local

import (
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/metadata"
)

const (
	ProviderID = "local"

	EnvWebhookSecret = "LOCAL_WEBHOOK_SECRET"
	EnvCheckoutBase  = "LOCAL_CHECKOUT_BASE_URL"

	DefaultCheckoutBase = "https://pay.local.test"

	SignatureHeader = "X-Local-Signature"
	TimestampHeader = "X-Local-Timestamp"
)

type Config struct {
	WebhookSecret string
	// CheckoutBase prefixes the payment URLs handed out for open sessions.
	CheckoutBase string
	// MetadataValueLimit mirrors the per-value limit of a real backend.
	MetadataValueLimit int
	Tolerance          time.Duration
	Logger             core.Logger
	Now                func() time.Time
}

func ConfigFromEnv(env map[string]string) (Config, error) {
	values, err := core.RequireEnv(ProviderID, env, EnvWebhookSecret)
	if err != nil {
		return Config{}, err
	}
	return Config{
		WebhookSecret: values[EnvWebhookSecret],
		CheckoutBase:  core.EnvOr(env, EnvCheckoutBase, DefaultCheckoutBase),
	}, nil
}

func (c Config) normalized() Config {
	c.WebhookSecret = strings.TrimSpace(c.WebhookSecret)
	c.CheckoutBase = strings.TrimRight(strings.TrimSpace(c.CheckoutBase), "/")
	if c.CheckoutBase == "" {
		c.CheckoutBase = DefaultCheckoutBase
	}
	if c.MetadataValueLimit <= 0 {
		c.MetadataValueLimit = metadata.DefaultMaxValueLength
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 5 * time.Minute
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	return c
}
