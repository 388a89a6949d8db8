package gojob

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/webhooks"
)

const (
	JobIDWebhookDelivery = "payments.webhook.delivery"

	paramProvider = "provider"
	paramBody     = "body"
	paramHeaders  = "headers"
	paramFullURL  = "full_url"
	paramSealed   = "sealed"
)

// Sealer protects queued bodies at rest. *security.AppKeySealer and
// *security.Keyring satisfy it.
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte) ([]byte, error)
	Open(ctx context.Context, sealed []byte) ([]byte, error)
}

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
//
// Replayed deliveries are verified again. Providers that bound signature
// age reject late replays: Stripe refuses deliveries older than its
// Tolerance (5 minutes by default), so a Stripe delivery still requeued
// past that point is dead-lettered as unauthorized. Keep Span below the
// tolerance or raise the tolerance.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// Span is the total delay spent waiting between attempts before the last
// one runs. It is zero when MaxAttempts is unbounded.
func (p RetryPolicy) Span() time.Duration {
	if p.MaxAttempts <= 1 {
		return 0
	}
	var total time.Duration
	for attempt := 1; attempt < p.MaxAttempts; attempt++ {
		delay := p.delay(attempt)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		total += delay
	}
	return total
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// delay doubles BaseDelay per attempt.
func (p RetryPolicy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt && (p.MaxDelay <= 0 || delay < p.MaxDelay); i++ {
		delay *= 2
	}
	return delay
}

// ToExecutionMessage packs a buffered delivery into a go-job message. The
// idempotency key is derived from the provider and the raw body so that a
// redelivered webhook collapses onto the queued one.
func ToExecutionMessage(provider string, delivery core.WebhookDelivery) (*job.ExecutionMessage, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return nil, fmt.Errorf("gojob: provider is required")
	}
	headers := make(map[string]any, len(delivery.Headers))
	for key, value := range delivery.Headers {
		headers[key] = value
	}
	sum := sha256.Sum256(append([]byte(provider+"\n"), delivery.Body...))
	return &job.ExecutionMessage{
		JobID:      JobIDWebhookDelivery,
		ScriptPath: JobIDWebhookDelivery,
		Parameters: map[string]any{
			paramProvider: provider,
			paramBody:     base64.StdEncoding.EncodeToString(delivery.Body),
			paramHeaders:  headers,
			paramFullURL:  delivery.FullURL,
		},
		IdempotencyKey: hex.EncodeToString(sum[:]),
		DedupPolicy:    job.DeduplicationPolicy("drop"),
	}, nil
}

// FromExecutionMessage restores the provider id and the delivery exactly as
// it was received.
func FromExecutionMessage(msg *job.ExecutionMessage) (string, core.WebhookDelivery, error) {
	if msg == nil {
		return "", core.WebhookDelivery{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDWebhookDelivery {
		return "", core.WebhookDelivery{}, fmt.Errorf("gojob: unexpected job id %q", msg.JobID)
	}
	provider, _ := msg.Parameters[paramProvider].(string)
	if strings.TrimSpace(provider) == "" {
		return "", core.WebhookDelivery{}, fmt.Errorf("gojob: provider parameter is required")
	}
	encoded, _ := msg.Parameters[paramBody].(string)
	body, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", core.WebhookDelivery{}, fmt.Errorf("gojob: decode body: %w", err)
	}
	delivery := core.WebhookDelivery{Body: body, Headers: map[string]string{}}
	delivery.FullURL, _ = msg.Parameters[paramFullURL].(string)
	switch headers := msg.Parameters[paramHeaders].(type) {
	case map[string]any:
		for key, value := range headers {
			if text, ok := value.(string); ok {
				delivery.Headers[key] = text
			}
		}
	case map[string]string:
		for key, value := range headers {
			delivery.Headers[key] = value
		}
	}
	return provider, delivery, nil
}

// SealMessage replaces the queued body with its sealed form. The
// idempotency key is left alone, so it still reflects the plaintext.
func SealMessage(ctx context.Context, msg *job.ExecutionMessage, sealer Sealer) error {
	if msg == nil || sealer == nil {
		return fmt.Errorf("gojob: message and sealer are required")
	}
	if sealed, _ := msg.Parameters[paramSealed].(bool); sealed {
		return nil
	}
	encoded, _ := msg.Parameters[paramBody].(string)
	body, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("gojob: decode body: %w", err)
	}
	sealed, err := sealer.Seal(ctx, body)
	if err != nil {
		return fmt.Errorf("gojob: seal body: %w", err)
	}
	msg.Parameters[paramBody] = base64.StdEncoding.EncodeToString(sealed)
	msg.Parameters[paramSealed] = true
	return nil
}

// IsSealed reports whether the queued body was sealed on enqueue.
func IsSealed(msg *job.ExecutionMessage) bool {
	if msg == nil {
		return false
	}
	sealed, _ := msg.Parameters[paramSealed].(bool)
	return sealed
}

// DeliveryEnqueuer queues raw deliveries for deferred handling.
type DeliveryEnqueuer struct {
	enqueuer queue.Enqueuer
	sealer   Sealer
}

func NewDeliveryEnqueuer(enqueuer queue.Enqueuer) *DeliveryEnqueuer {
	return &DeliveryEnqueuer{enqueuer: enqueuer}
}

// WithSealer seals every body before it reaches the queue backend.
func (a *DeliveryEnqueuer) WithSealer(sealer Sealer) *DeliveryEnqueuer {
	a.sealer = sealer
	return a
}

func (a *DeliveryEnqueuer) Enqueue(ctx context.Context, provider string, delivery core.WebhookDelivery) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := ToExecutionMessage(provider, delivery)
	if err != nil {
		return err
	}
	if a.sealer != nil {
		if err := SealMessage(ctx, msg, a.sealer); err != nil {
			return err
		}
	}
	return a.enqueuer.Enqueue(ctx, msg)
}

// Router is satisfied by *inbound.Dispatcher.
type Router interface {
	Dispatch(ctx context.Context, provider string, delivery core.WebhookDelivery) (webhooks.Report, error)
}

// DeliveryJob replays queued deliveries through the webhook engines.
// Signature, validation and configuration failures are dead-lettered since
// a retry cannot fix them; handler failures are requeued with backoff.
type DeliveryJob struct {
	router Router
	policy RetryPolicy
	logger core.Logger
	sealer Sealer
}

func NewDeliveryJob(router Router, policy RetryPolicy, logger core.Logger) *DeliveryJob {
	if logger == nil {
		logger = glog.Nop()
	}
	return &DeliveryJob{router: router, policy: policy, logger: logger}
}

// WithSealer opens sealed bodies before dispatch. Sealed messages that
// reach a job without a sealer are dead-lettered.
func (j *DeliveryJob) WithSealer(sealer Sealer) *DeliveryJob {
	j.sealer = sealer
	return j
}

// Process handles one dequeued delivery and settles it. attempt starts at 1.
func (j *DeliveryJob) Process(ctx context.Context, delivery queue.Delivery, attempt int) error {
	_, err := j.process(ctx, delivery, attempt)
	return err
}

// process reports whether the delivery went back on the queue.
func (j *DeliveryJob) process(ctx context.Context, delivery queue.Delivery, attempt int) (bool, error) {
	if j == nil || j.router == nil {
		return false, fmt.Errorf("gojob: delivery job is not configured")
	}
	if delivery == nil {
		return false, fmt.Errorf("gojob: delivery is required")
	}
	provider, raw, err := FromExecutionMessage(delivery.Message())
	if err == nil && IsSealed(delivery.Message()) {
		raw.Body, err = j.open(ctx, raw.Body)
	}
	if err != nil {
		j.logger.Error("webhook job dropped", "error", err)
		opts := j.policy.NormalizeAttempt(queue.NackOptions{DeadLetter: true, Reason: err.Error()}, attempt)
		return opts.Requeue, delivery.Nack(ctx, opts)
	}

	report, err := j.router.Dispatch(ctx, provider, raw)
	if err == nil && !report.Failed() {
		return false, delivery.Ack(ctx)
	}
	if err == nil {
		err = fmt.Errorf("gojob: %d webhook handlers failed", len(report.Failures()))
	}

	opts := queue.NackOptions{Requeue: true, Delay: j.policy.delay(attempt), Reason: err.Error()}
	switch core.KindOf(err) {
	case core.KindUnauthorized, core.KindValidation, core.KindConfiguration:
		opts = queue.NackOptions{DeadLetter: true, Reason: err.Error()}
	}
	opts = j.policy.NormalizeAttempt(opts, attempt)
	j.logger.Warn("webhook job failed",
		"provider", provider,
		"attempt", attempt,
		"requeue", opts.Requeue,
		"dead_letter", opts.DeadLetter,
		"error", err,
	)
	return opts.Requeue, delivery.Nack(ctx, opts)
}

func (j *DeliveryJob) open(ctx context.Context, body []byte) ([]byte, error) {
	if j.sealer == nil {
		return nil, fmt.Errorf("gojob: sealed delivery but no sealer configured")
	}
	plain, err := j.sealer.Open(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("gojob: open body: %w", err)
	}
	return plain, nil
}

// Drain dequeues and processes deliveries until ctx is done or the
// dequeuer fails. Attempts are counted per idempotency key and forgotten
// once a delivery is acked or dead-lettered.
func (j *DeliveryJob) Drain(ctx context.Context, dequeuer queue.Dequeuer) error {
	if dequeuer == nil {
		return fmt.Errorf("gojob: dequeuer is required")
	}
	attempts := map[string]int{}
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		delivery, err := dequeuer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if delivery == nil {
			continue
		}
		key := ""
		if msg := delivery.Message(); msg != nil {
			key = msg.IdempotencyKey
		}
		attempts[key]++
		requeued, err := j.process(ctx, delivery, attempts[key])
		if !requeued {
			delete(attempts, key)
		}
		if err != nil {
			return err
		}
	}
}

// LoggingHook reports worker lifecycle events through the payments logger.
type LoggingHook struct {
	logger core.Logger
}

func NewLoggingHook(logger core.Logger) *LoggingHook {
	if logger == nil {
		logger = glog.Nop()
	}
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.logger.Debug("webhook job started", eventFields(event)...)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.logger.Info("webhook job completed", eventFields(event)...)
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	h.logger.Error("webhook job failed", eventFields(event)...)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.logger.Warn("webhook job retrying", eventFields(event)...)
}

func eventFields(event worker.Event) []any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	fields := []any{"attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds()}
	if message != nil {
		fields = append(fields, "job_id", message.JobID, "idempotency_key", message.IdempotencyKey)
		if provider, ok := message.Parameters[paramProvider].(string); ok {
			fields = append(fields, "provider", provider)
		}
	}
	if event.Delay > 0 {
		fields = append(fields, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err)
	}
	return fields
}

var _ worker.Hook = (*LoggingHook)(nil)
