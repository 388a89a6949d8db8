package core

import (
	"fmt"
	"strings"
)

// MaxRequestAttempts is the ceiling of the authorization-refresh retry.
const MaxRequestAttempts = 3

type WebhookConfig struct {
	RejectDuplicateHandlers bool  `koanf:"reject_duplicate_handlers" mapstructure:"reject_duplicate_handlers"`
	PropagateHandlerErrors  bool  `koanf:"propagate_handler_errors" mapstructure:"propagate_handler_errors"`
	MaxBodyBytes            int64 `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
}

type TransportConfig struct {
	TimeoutSeconds int   `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxAttempts    int   `koanf:"max_attempts" mapstructure:"max_attempts"`
	MaxBodyBytes   int64 `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
}

type Config struct {
	ServiceName      string          `koanf:"service_name" mapstructure:"service_name"`
	DefaultProvider  string          `koanf:"default_provider" mapstructure:"default_provider"`
	EnabledProviders []string        `koanf:"enabled_providers" mapstructure:"enabled_providers"`
	Webhooks         WebhookConfig   `koanf:"webhooks" mapstructure:"webhooks"`
	Transport        TransportConfig `koanf:"transport" mapstructure:"transport"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "payments",
		Webhooks: WebhookConfig{
			MaxBodyBytes: 1 << 20,
		},
		Transport: TransportConfig{
			TimeoutSeconds: 30,
			MaxAttempts:    MaxRequestAttempts,
			MaxBodyBytes:   4 << 20,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Transport.MaxAttempts < 1 || c.Transport.MaxAttempts > MaxRequestAttempts {
		return fmt.Errorf("core: transport.max_attempts must be between 1 and %d", MaxRequestAttempts)
	}
	if c.Transport.TimeoutSeconds <= 0 {
		return fmt.Errorf("core: transport.timeout_seconds must be positive")
	}
	if c.Transport.MaxBodyBytes < 0 || c.Webhooks.MaxBodyBytes < 0 {
		return fmt.Errorf("core: max_body_bytes must not be negative")
	}
	if def := strings.TrimSpace(c.DefaultProvider); def != "" && len(c.EnabledProviders) > 0 {
		for _, id := range c.EnabledProviders {
			if strings.TrimSpace(id) == def {
				return nil
			}
		}
		return fmt.Errorf("core: default_provider %q is not enabled", def)
	}
	return nil
}

// ProviderEnabled reports whether id may be registered. An empty allow list
// enables every provider.
func (c Config) ProviderEnabled(id string) bool {
	if len(c.EnabledProviders) == 0 {
		return true
	}
	id = strings.TrimSpace(id)
	for _, candidate := range c.EnabledProviders {
		if strings.TrimSpace(candidate) == id {
			return true
		}
	}
	return false
}
