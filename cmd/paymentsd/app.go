package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	payments "github.com/goliatone/go-payments"
	"github.com/goliatone/go-payments/adapters/gocommand"
	"github.com/goliatone/go-payments/adapters/gologger"
	"github.com/goliatone/go-payments/adapters/prommetrics"
	"github.com/goliatone/go-payments/adapters/zerologger"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/inbound"
	paymentsquery "github.com/goliatone/go-payments/query"
	sqlstore "github.com/goliatone/go-payments/store/sql"
	"github.com/goliatone/go-payments/webhooks"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type claimStore interface {
	webhooks.Deduper
	webhooks.ClaimReader
}

type app struct {
	logger     *zerologger.Logger
	service    *payments.Service
	facade     *payments.Facade
	dispatcher *inbound.Dispatcher
	claims     claimStore
	events     *sqlstore.EventDeduper
	metrics    *prometheus.Registry
	router     *mux.Router
	commands   gocommand.Subscriptions
	closers    []func() error
}

func newApp(ctx context.Context, s settings, logger *zerologger.Logger, hooks *payments.ExtensionHooks) (*app, error) {
	a := &app{logger: logger, metrics: prometheus.NewRegistry()}
	if err := a.build(ctx, s, hooks); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context, s settings, hooks *payments.ExtensionHooks) error {
	logger := a.logger

	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := prommetrics.NewRecorder(prommetrics.Options{Registerer: a.metrics})

	providers, err := payments.ProvidersFromEnv(s.Enabled, s.Env, logger)
	if err != nil {
		return err
	}
	a.service, err = payments.NewService(payments.Config{},
		payments.WithConfigProvider(core.NewCfgxConfigProvider(core.MapConfigLoader{Values: s.Raw})),
		payments.WithLoggerProvider(logger),
		payments.WithMetricsRecorder(recorder),
		payments.WithProviders(providers...),
	)
	if err != nil {
		return err
	}

	if err := a.openClaims(ctx, s); err != nil {
		return err
	}

	a.facade, err = payments.NewFacade(a.service, payments.WithClaimReader(a.claims))
	if err != nil {
		return err
	}
	adapter := gocommand.NewRegistryAdapter(nil)
	a.commands, err = gocommand.RegisterPayments(adapter, a.service, a.claims)
	if err != nil {
		return err
	}
	if err := adapter.Initialize(); err != nil {
		return err
	}
	a.logger.Info("payments messages registered", "count", len(adapter.MessageTypes()))

	if hooks == nil {
		hooks = payments.NewExtensionHooks()
	}
	if err := hooks.RegisterHandlerPack(auditPack(logger.GetLogger(gologger.Name("audit")))); err != nil {
		return err
	}

	cfg := a.service.Config()
	a.dispatcher = inbound.NewDispatcher()
	engineLogger := logger.GetLogger(gologger.Name("webhooks"))
	for _, provider := range a.service.Registry().List() {
		engine := webhooks.Setup(provider, cfg.Webhooks,
			webhooks.WithLogger(engineLogger),
			webhooks.WithMetricsRecorder(recorder),
			webhooks.WithDeduper(a.claims),
		)
		if err := hooks.ApplyHandlerPacks(provider.ID(), engine); err != nil {
			return err
		}
		if err := a.dispatcher.Register(provider.ID(), engine); err != nil {
			return err
		}
	}

	a.router = a.routes(cfg)
	return nil
}

// openClaims uses the SQL store when a DSN is configured, fronted by a
// read cache for completed events. Without a DSN claims live in memory.
func (a *app) openClaims(ctx context.Context, s settings) error {
	if s.DBDSN == "" {
		a.claims = webhooks.NewMemoryDeduper(webhooks.MemoryDeduperOptions{Window: s.DedupeWindow})
		a.logger.Warn("no database configured, webhook claims are kept in memory")
		return nil
	}
	client, err := sqlstore.Open(ctx, sqlstore.Config{Driver: s.DBDriver, DSN: s.DBDSN})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, client.Close)

	a.events, err = sqlstore.NewEventDeduper(client.DB())
	if err != nil {
		return err
	}
	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = s.DedupeCacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return fmt.Errorf("paymentsd: event cache: %w", err)
	}
	cached, err := sqlstore.NewCachedEventDeduper(a.events, cacheService)
	if err != nil {
		return err
	}
	a.claims = cached
	return nil
}

func (a *app) routes(cfg core.Config) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/webhooks/{provider}", inbound.NewHTTPHandler(a.dispatcher,
		func(r *http.Request) string { return mux.Vars(r)["provider"] },
		inbound.WithMaxBodyBytes(cfg.Webhooks.MaxBodyBytes),
		inbound.WithHandlerLogger(a.logger.GetLogger(gologger.Name("inbound"))),
	))
	router.HandleFunc("/webhooks/{provider}/events/{event_id}", a.eventStatus).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet)
	return router
}

type eventStatusResponse struct {
	Provider    string `json:"provider"`
	EventID     string `json:"event_id"`
	Seen        bool   `json:"seen"`
	Status      string `json:"status,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
	ClaimedAt   string `json:"claimed_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

func (a *app) eventStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	status, err := a.facade.Queries().WebhookEventStatus.Query(r.Context(), paymentsquery.WebhookEventStatusMessage{
		Provider: vars["provider"],
		EventID:  vars["event_id"],
	})
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		code := http.StatusInternalServerError
		if core.IsKind(err, core.KindValidation) {
			code = http.StatusBadRequest
		}
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"kind": string(core.KindOf(err)), "message": err.Error()})
		return
	}

	body := eventStatusResponse{Provider: vars["provider"], EventID: vars["event_id"], Seen: status.Seen}
	if status.Seen {
		body.Status = status.Record.Status
		body.Attempts = status.Record.Attempts
		body.ClaimedAt = status.Record.ClaimedAt.UTC().Format(time.RFC3339Nano)
		if status.Record.CompletedAt != nil {
			body.CompletedAt = status.Record.CompletedAt.UTC().Format(time.RFC3339Nano)
		}
	} else {
		w.WriteHeader(http.StatusNotFound)
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (a *app) Handler() http.Handler {
	return a.router
}

// Purge drops completed claims older than the dedupe window. Only the SQL
// store keeps history long enough to need it.
func (a *app) Purge(ctx context.Context, s settings) (int64, error) {
	if a.events == nil {
		return 0, fmt.Errorf("paymentsd: purge requires %s", envDBDSN)
	}
	return a.events.Purge(ctx, time.Now().UTC().Add(-s.DedupeWindow))
}

func (a *app) Close() error {
	if a == nil {
		return nil
	}
	a.commands.Unsubscribe()
	a.commands = nil
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// auditPack logs every canonical event at info level.
func auditPack(logger core.Logger) payments.HandlerPack {
	handlers := map[core.EventType]webhooks.Handler{}
	for _, event := range core.EventTypes() {
		handlers[event] = func(_ context.Context, evt core.WebhookEvent) error {
			logger.Info("webhook event",
				"provider", evt.Provider,
				"event_id", evt.ID,
				"event", string(evt.Type),
			)
			return nil
		}
	}
	return payments.HandlerPack{Name: "audit", Handlers: handlers}
}
