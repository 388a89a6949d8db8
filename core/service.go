package core

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service owns the provider registry and hands out instrumented providers.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	registry        Registry
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("payments", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("payments"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewProviderRegistry()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, configBuildError(err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, configBuildError(err)
	}

	svc := &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		registry:        builder.registry,
	}
	for _, p := range builder.providers {
		if err := svc.Register(p); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

func (s *Service) Config() Config {
	return s.config
}

func (s *Service) Logger() Logger {
	return s.logger
}

// LoggerFor returns a named child logger for collaborators such as adapters.
func (s *Service) LoggerFor(name string) Logger {
	if s.loggerProvider != nil {
		if named := s.loggerProvider.GetLogger(name); named != nil {
			return named
		}
	}
	return s.logger
}

func (s *Service) Registry() Registry {
	return s.registry
}

// Register adds an adapter. Adapters missing from a non-empty
// enabled_providers list are skipped with a warning.
func (s *Service) Register(provider Provider) error {
	if provider == nil {
		return NewValidationError("", "provider is required", goerrors.FieldError{
			Field:   "provider",
			Message: "is required",
		})
	}
	id := strings.TrimSpace(provider.ID())
	if !s.config.ProviderEnabled(id) {
		s.logger.Warn("provider not enabled, skipping registration", "provider_id", id)
		return nil
	}
	if err := s.registry.Register(provider); err != nil {
		if IsKind(err, KindValidation) {
			return err
		}
		return NewValidationError(id, err.Error(), goerrors.FieldError{
			Field:   "provider",
			Message: err.Error(),
		})
	}
	s.logger.Info("provider registered", "provider_id", id)
	return nil
}

// Provider returns the adapter registered under id wrapped with logging and
// metrics for every operation.
func (s *Service) Provider(id string) (Provider, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = strings.TrimSpace(s.config.DefaultProvider)
	}
	provider, ok := s.registry.Get(id)
	if !ok {
		return nil, NewValidationError(id, "provider not registered: "+id, goerrors.FieldError{
			Field:   "provider",
			Message: "is not registered",
		})
	}
	return &instrumentedProvider{inner: provider, service: s}, nil
}

// Default returns the configured default provider.
func (s *Service) Default() (Provider, error) {
	return s.Provider("")
}

func configBuildError(err error) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && isTaxonomyCode(rich.TextCode) {
		return err
	}
	return attachMetadata(newKindError(KindConfiguration, "", "invalid payments configuration", err), map[string]any{
		metaMissingKeys: []string{},
	})
}
