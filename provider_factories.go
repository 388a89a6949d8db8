package payments

import (
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-payments/adapters/gologger"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/providers/local"
	"github.com/goliatone/go-payments/providers/paypal"
	"github.com/goliatone/go-payments/providers/stripe"
	"github.com/goliatone/go-payments/ratelimit"
)

// ProviderFactory builds one adapter from an env-style map. Remote adapters
// get an in-memory quota gate of their own.
type ProviderFactory func(env map[string]string, logger core.Logger) (core.Provider, error)

func StripeProvider(env map[string]string, logger core.Logger) (core.Provider, error) {
	cfg, err := stripe.ConfigFromEnv(env)
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger
	cfg.RateLimiter = ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	provider, err := stripe.New(cfg)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func PayPalProvider(env map[string]string, logger core.Logger) (core.Provider, error) {
	cfg, err := paypal.ConfigFromEnv(env)
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger
	cfg.RateLimiter = ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	provider, err := paypal.New(cfg)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func LocalProvider(env map[string]string, logger core.Logger) (core.Provider, error) {
	cfg, err := local.ConfigFromEnv(env)
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger
	provider, err := local.New(cfg)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func BuiltinFactories() map[string]ProviderFactory {
	return map[string]ProviderFactory{
		stripe.ProviderID: StripeProvider,
		paypal.ProviderID: PayPalProvider,
		local.ProviderID:  LocalProvider,
	}
}

// ProvidersFromEnv builds every enabled adapter. Missing keys across all
// adapters are reported together in one ConfigurationError so an operator
// can fix the environment in a single pass.
func ProvidersFromEnv(enabled []string, env map[string]string, loggers LoggerProvider) ([]core.Provider, error) {
	factories := BuiltinFactories()
	var (
		providers []core.Provider
		missing   []string
		seen      = map[string]bool{}
	)
	for _, raw := range enabled {
		id := strings.ToLower(strings.TrimSpace(raw))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		factory, ok := factories[id]
		if !ok {
			return nil, core.NewValidationError(id, "payments: unknown provider", goerrors.FieldError{
				Field:   "enabled_providers",
				Message: "unknown provider " + id,
			})
		}
		_, logger := gologger.Resolve(id, loggers, nil)
		provider, err := factory(env, glog.Ensure(logger))
		if err != nil {
			if core.IsKind(err, core.KindConfiguration) {
				missing = append(missing, core.MissingKeys(err)...)
				continue
			}
			return nil, err
		}
		providers = append(providers, provider)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, core.NewConfigurationError("", missing)
	}
	return providers, nil
}
