package webhooks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-payments/core"
)

// Handler consumes one canonical event.
type Handler func(ctx context.Context, event core.WebhookEvent) error

type Option func(*Builder)

func WithLogger(logger core.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *Builder) {
		if recorder != nil {
			b.metrics = recorder
		}
	}
}

// WithDeduper enables at-most-once handling per provider event id.
func WithDeduper(deduper Deduper) Option {
	return func(b *Builder) {
		b.deduper = deduper
	}
}

// Builder accumulates one handler per event literal and dispatches verified
// deliveries from a single source adapter.
type Builder struct {
	source  core.WebhookProvider
	config  core.WebhookConfig
	logger  core.Logger
	metrics core.MetricsRecorder
	deduper Deduper

	mu       sync.RWMutex
	handlers map[core.EventType]Handler
	replaced   int
	duplicates []string
	errs       []error
}

func Setup(source core.WebhookProvider, cfg core.WebhookConfig, opts ...Option) *Builder {
	b := &Builder{
		source:   source,
		config:   cfg,
		logger:   glog.Nop(),
		metrics:  core.NopMetricsRecorder{},
		handlers: map[core.EventType]Handler{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// On registers handler for event. Registering the same literal again
// replaces the previous handler unless RejectDuplicateHandlers is set, in
// which case Handle reports the conflict.
func (b *Builder) On(event core.EventType, handler Handler) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()

	field := "handlers." + string(event)
	switch {
	case !event.Valid():
		b.errs = append(b.errs, core.NewValidationError(b.providerID(), "webhooks: unknown event literal", goerrors.FieldError{
			Field: field, Message: "is not a canonical event literal",
		}))
		return b
	case handler == nil:
		b.errs = append(b.errs, core.NewValidationError(b.providerID(), "webhooks: handler is required", goerrors.FieldError{
			Field: field, Message: "handler is nil",
		}))
		return b
	}

	if _, exists := b.handlers[event]; exists {
		if b.config.RejectDuplicateHandlers {
			b.duplicates = append(b.duplicates, field)
			return b
		}
		b.replaced++
		b.logger.Warn("replacing webhook handler", "provider", b.providerID(), "event", string(event))
	}
	b.handlers[event] = handler
	return b
}

// Replaced reports how many registrations overwrote an earlier handler.
func (b *Builder) Replaced() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.replaced
}

// Events lists the literals that have a handler.
func (b *Builder) Events() []core.EventType {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := []core.EventType{}
	for _, event := range core.EventTypes() {
		if _, ok := b.handlers[event]; ok {
			out = append(out, event)
		}
	}
	return out
}

// Handle verifies and maps delivery through the source adapter, then runs
// the handler of every mapped event in order. Handler failures are isolated
// and reported on the returned Report.
func (b *Builder) Handle(ctx context.Context, delivery core.WebhookDelivery) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	provider := b.providerID()
	report := Report{Provider: provider, Stage: StageReceived}
	defer b.recordDelivery(ctx, &report)

	if b.source == nil {
		return report, core.NewConfigurationError("", []string{"webhook_source"})
	}
	if err := b.registrationError(); err != nil {
		return report, err
	}
	if limit := b.config.MaxBodyBytes; limit > 0 && int64(len(delivery.Body)) > limit {
		return report, core.NewValidationError(provider, "webhooks: delivery too large", goerrors.FieldError{
			Field: "body", Message: fmt.Sprintf("exceeds %d bytes", limit),
		})
	}

	events, err := b.source.HandleWebhook(ctx, delivery)
	if err != nil {
		err = core.MapError(provider, err)
		if !core.IsKind(err, core.KindUnauthorized) {
			report.Stage = StageSignatureVerified
		}
		b.logger.Warn("webhook delivery rejected",
			"provider", provider,
			"stage", string(report.Stage),
			"error_kind", string(core.KindOf(err)),
			"error", err.Error(),
		)
		return report, err
	}
	report.Stage = StageEventMapped
	report.Events = append([]core.WebhookEvent(nil), events...)
	if len(events) == 0 {
		b.logger.Info("webhook delivery carried no canonical event", "provider", provider)
		report.Stage = StageCompleted
		return report, nil
	}

	report.Stage = StageDispatched
	b.mu.RLock()
	handlers := make(map[core.EventType]Handler, len(b.handlers))
	for event, handler := range b.handlers {
		handlers[event] = handler
	}
	b.mu.RUnlock()

	for _, event := range events {
		outcome := b.dispatch(ctx, handlers, event)
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.Stage = StageCompleted
	failures := report.Failures()
	if len(failures) == 0 {
		return report, nil
	}
	report.Stage = StageHandlerFailed
	if !b.config.PropagateHandlerErrors {
		return report, nil
	}
	causes := make([]error, 0, len(failures))
	for _, failure := range failures {
		causes = append(causes, failure.Err)
	}
	return report, core.NewUnknownError(provider,
		fmt.Sprintf("webhooks: %d of %d handlers failed", len(failures), len(report.Outcomes)),
		errors.Join(causes...))
}

func (b *Builder) dispatch(ctx context.Context, handlers map[core.EventType]Handler, event core.WebhookEvent) Outcome {
	outcome := Outcome{EventID: event.ID, Type: event.Type}
	handler, ok := handlers[event.Type]
	if !ok {
		outcome.Status = OutcomeSkipped
		outcome.Reason = ReasonNoHandler
		b.recordEvent(ctx, outcome)
		return outcome
	}
	if err := ctx.Err(); err != nil {
		outcome.Status = OutcomeSkipped
		outcome.Reason = ReasonCanceled
		outcome.Err = core.ClassifyError(b.providerID(), err)
		b.recordEvent(ctx, outcome)
		return outcome
	}

	deduped := b.deduper != nil && strings.TrimSpace(event.ID) != ""
	if deduped {
		claimed, err := b.deduper.Claim(ctx, event.Provider, event.ID)
		if err != nil {
			outcome.Status = OutcomeHandlerFailed
			outcome.Err = core.MapError(b.providerID(), err)
			b.recordEvent(ctx, outcome)
			return outcome
		}
		if !claimed {
			outcome.Status = OutcomeSkipped
			outcome.Reason = ReasonDuplicate
			b.recordEvent(ctx, outcome)
			return outcome
		}
	}

	startedAt := time.Now()
	err := b.invoke(ctx, handler, event)
	outcome.Duration = time.Since(startedAt)
	if err != nil {
		outcome.Status = OutcomeHandlerFailed
		outcome.Err = err
		b.logger.Error("webhook handler failed",
			"provider", b.providerID(),
			"event", string(event.Type),
			"event_id", event.ID,
			"error", err.Error(),
		)
		if deduped {
			if releaseErr := b.deduper.Release(ctx, event.Provider, event.ID); releaseErr != nil {
				b.logger.Warn("release webhook event claim failed", "event_id", event.ID, "error", releaseErr.Error())
			}
		}
	} else {
		outcome.Status = OutcomeCompleted
		if deduped {
			if completeErr := b.deduper.Complete(ctx, event.Provider, event.ID); completeErr != nil {
				b.logger.Warn("complete webhook event claim failed", "event_id", event.ID, "error", completeErr.Error())
			}
		}
	}
	b.recordEvent(ctx, outcome)
	return outcome
}

func (b *Builder) invoke(ctx context.Context, handler Handler, event core.WebhookEvent) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			b.logger.Error("webhook handler panicked",
				"event", string(event.Type),
				"panic", fmt.Sprint(recovered),
				"stack", string(debug.Stack()),
			)
			err = core.NewUnknownError(b.providerID(), fmt.Sprintf("webhooks: handler panicked: %v", recovered), nil)
		}
	}()
	return handler(ctx, event)
}

func (b *Builder) registrationError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.duplicates) > 0 {
		return core.NewConflictingConfigurationError(b.providerID(), "webhooks: duplicate handler registration", b.duplicates)
	}
	if len(b.errs) == 0 {
		return nil
	}
	violations := []goerrors.FieldError{}
	for _, err := range b.errs {
		violations = append(violations, core.Violations(err)...)
	}
	return core.NewValidationError(b.providerID(), "webhooks: invalid handler registration", violations...)
}

func (b *Builder) providerID() string {
	if b == nil || b.source == nil {
		return ""
	}
	if identified, ok := b.source.(interface{ ID() string }); ok {
		return identified.ID()
	}
	return ""
}

func (b *Builder) recordDelivery(ctx context.Context, report *Report) {
	b.metrics.IncCounter(ctx, core.MetricWebhookDeliveries, 1, map[string]string{
		"provider_id": report.Provider,
		"stage":       string(report.Stage),
	})
}

func (b *Builder) recordEvent(ctx context.Context, outcome Outcome) {
	tags := map[string]string{
		"provider_id": b.providerID(),
		"event":       string(outcome.Type),
		"outcome":     string(outcome.Status),
	}
	b.metrics.IncCounter(ctx, core.MetricWebhookEvents, 1, tags)
	if outcome.Duration > 0 {
		b.metrics.ObserveHistogram(ctx, core.MetricWebhookHandlerLatency, float64(outcome.Duration.Milliseconds()), tags)
	}
}
