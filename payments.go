package payments

import (
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/webhooks"
)

type Config = core.Config
type WebhookConfig = core.WebhookConfig
type TransportConfig = core.TransportConfig

type Option = core.Option

type Service = core.Service
type Provider = core.Provider
type Registry = core.Registry
type Logger = core.Logger
type LoggerProvider = core.LoggerProvider
type MetricsRecorder = core.MetricsRecorder

type WebhookDelivery = core.WebhookDelivery
type WebhookEvent = core.WebhookEvent
type EventType = core.EventType

type WebhookHandler = webhooks.Handler
type Deduper = webhooks.Deduper

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithRegistry        = core.WithRegistry
	WithProviders       = core.WithProviders
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
