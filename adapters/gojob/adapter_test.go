package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/security"
	"github.com/goliatone/go-payments/webhooks"
)

func TestMessageMappingRoundTrip(t *testing.T) {
	delivery := core.WebhookDelivery{
		Body:    []byte(`{"id":"evt_1"}`),
		Headers: map[string]string{"Stripe-Signature": "t=1,v1=abc"},
		FullURL: "https://example.test/webhooks/stripe",
	}
	msg, err := ToExecutionMessage(" Stripe ", delivery)
	if err != nil {
		t.Fatalf("to message: %v", err)
	}
	if msg.JobID != JobIDWebhookDelivery || msg.IdempotencyKey == "" {
		t.Fatalf("unexpected message %+v", msg)
	}
	again, _ := ToExecutionMessage("stripe", delivery)
	if again.IdempotencyKey != msg.IdempotencyKey {
		t.Fatalf("expected stable idempotency key")
	}

	provider, restored, err := FromExecutionMessage(msg)
	if err != nil {
		t.Fatalf("from message: %v", err)
	}
	if provider != "stripe" {
		t.Fatalf("expected normalized provider, got %q", provider)
	}
	if string(restored.Body) != string(delivery.Body) {
		t.Fatalf("expected body to survive mapping, got %q", restored.Body)
	}
	if restored.Header("stripe-signature") != "t=1,v1=abc" || restored.FullURL != delivery.FullURL {
		t.Fatalf("unexpected restored delivery %+v", restored)
	}

	if _, err := ToExecutionMessage("", delivery); err == nil {
		t.Fatalf("expected missing provider error")
	}
	if _, _, err := FromExecutionMessage(&job.ExecutionMessage{JobID: "other"}); err == nil {
		t.Fatalf("expected foreign job to be rejected")
	}
}

func TestDeliveryEnqueuer(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{}
	if err := NewDeliveryEnqueuer(enqueuer).Enqueue(context.Background(), "local", core.WebhookDelivery{Body: []byte("[]")}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.Parameters["provider"] != "local" {
		t.Fatalf("expected mapped go-job message, got %+v", enqueuer.last)
	}
	if err := NewDeliveryEnqueuer(nil).Enqueue(context.Background(), "local", core.WebhookDelivery{}); err == nil {
		t.Fatalf("expected unconfigured enqueuer error")
	}
}

func TestSealedDeliveries(t *testing.T) {
	sealer, err := security.NewAppKeySealerFromString("queue-test-key", security.WithKeyID("queue"))
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	body := []byte(`{"id":"evt_sealed","email":"a@example.com"}`)
	plain, _ := ToExecutionMessage("local", core.WebhookDelivery{Body: body})

	enqueuer := &stubQueueEnqueuer{}
	if err := NewDeliveryEnqueuer(enqueuer).WithSealer(sealer).Enqueue(context.Background(), "local", core.WebhookDelivery{Body: body}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	msg := enqueuer.last
	if !IsSealed(msg) || msg.IdempotencyKey != plain.IdempotencyKey {
		t.Fatalf("expected sealed message keyed on the plaintext, got %+v", msg)
	}
	if msg.Parameters["body"] == plain.Parameters["body"] {
		t.Fatalf("expected queued body to differ from plaintext")
	}

	router := &stubRouter{}
	delivery := &stubQueueDelivery{msg: msg}
	if err := NewDeliveryJob(router, RetryPolicy{}, nil).WithSealer(sealer).Process(context.Background(), delivery, 1); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !delivery.acked || string(router.body) != string(body) {
		t.Fatalf("expected opened body to reach the router, got %q", router.body)
	}

	unsealed := &stubQueueDelivery{msg: msg}
	other := &stubRouter{}
	if err := NewDeliveryJob(other, RetryPolicy{}, nil).Process(context.Background(), unsealed, 1); err != nil {
		t.Fatalf("process: %v", err)
	}
	if other.calls != 0 || !unsealed.nackOpts.DeadLetter {
		t.Fatalf("expected sealed message without sealer to be dead-lettered, got %+v", unsealed.nackOpts)
	}
}

func TestNackRetryPolicyBoundaries(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, MaxDelay: 10 * time.Second, DeadLetterOnMax: true}

	opts := policy.NormalizeAttempt(queue.NackOptions{Delay: 30 * time.Second, Requeue: true, Reason: " transient "}, 1)
	if opts.Delay != 10*time.Second || !opts.Requeue || opts.Reason != "transient" {
		t.Fatalf("unexpected bounded options %+v", opts)
	}
	opts = policy.NormalizeAttempt(queue.NackOptions{Delay: time.Second, Requeue: true}, 3)
	if opts.Requeue || !opts.DeadLetter {
		t.Fatalf("expected dead letter on max attempts, got %+v", opts)
	}
	opts = RetryPolicy{}.NormalizeAttempt(queue.NackOptions{}, 1)
	if !opts.Requeue {
		t.Fatalf("expected requeue when nothing else is set")
	}
	if got := (RetryPolicy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}).delay(4); got != 8*time.Second {
		t.Fatalf("expected doubling delay, got %s", got)
	}
}

func TestDeliveryJob_Process(t *testing.T) {
	failed := webhooks.Report{Provider: "local", Stage: webhooks.StageHandlerFailed, Outcomes: []webhooks.Outcome{{EventID: "evt_1", Status: webhooks.OutcomeHandlerFailed}}}
	tests := []struct {
		name       string
		report     webhooks.Report
		err        error
		attempt    int
		acked      bool
		requeue    bool
		deadLetter bool
	}{
		{name: "completed", report: webhooks.Report{Stage: webhooks.StageCompleted}, attempt: 1, acked: true},
		{name: "handler failed", report: failed, attempt: 1, requeue: true},
		{name: "handler failed at max", report: failed, attempt: 3, deadLetter: true},
		{name: "bad signature", err: core.NewUnauthorizedError("local", "signature mismatch", nil), attempt: 1, deadLetter: true},
		{name: "transport error", err: errors.New("connection reset"), attempt: 1, requeue: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ToExecutionMessage("local", core.WebhookDelivery{Body: []byte("[]")})
			if err != nil {
				t.Fatalf("to message: %v", err)
			}
			router := &stubRouter{report: tc.report, err: tc.err}
			delivery := &stubQueueDelivery{msg: msg}
			runner := NewDeliveryJob(router, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, DeadLetterOnMax: true}, nil)
			if err := runner.Process(context.Background(), delivery, tc.attempt); err != nil {
				t.Fatalf("process: %v", err)
			}
			if router.provider != "local" {
				t.Fatalf("expected routing to local, got %q", router.provider)
			}
			if delivery.acked != tc.acked {
				t.Fatalf("expected acked=%v", tc.acked)
			}
			if tc.acked {
				return
			}
			if delivery.nackOpts.Requeue != tc.requeue || delivery.nackOpts.DeadLetter != tc.deadLetter {
				t.Fatalf("unexpected nack options %+v", delivery.nackOpts)
			}
			if tc.requeue && delivery.nackOpts.Delay != time.Second {
				t.Fatalf("expected first retry delay of 1s, got %s", delivery.nackOpts.Delay)
			}
		})
	}
}

func TestDeliveryJob_DeadLettersUndecodableMessages(t *testing.T) {
	delivery := &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: JobIDWebhookDelivery}}
	runner := NewDeliveryJob(&stubRouter{}, RetryPolicy{}, nil)
	if err := runner.Process(context.Background(), delivery, 1); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !delivery.nackOpts.DeadLetter || delivery.nackOpts.Requeue {
		t.Fatalf("expected dead letter, got %+v", delivery.nackOpts)
	}
}

func TestDeliveryJob_DrainStopsOnContext(t *testing.T) {
	msg, _ := ToExecutionMessage("local", core.WebhookDelivery{Body: []byte("[]")})
	ctx, cancel := context.WithCancel(context.Background())
	router := &stubRouter{onDispatch: cancel}
	dequeuer := &stubQueueDequeuer{delivery: &stubQueueDelivery{msg: msg}}
	if err := NewDeliveryJob(router, RetryPolicy{}, nil).Drain(ctx, dequeuer); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if router.calls != 1 {
		t.Fatalf("expected one dispatch before cancellation, got %d", router.calls)
	}
}

func TestDeliveryJob_DrainForgetsSettledAttempts(t *testing.T) {
	msg, _ := ToExecutionMessage("local", core.WebhookDelivery{Body: []byte("[]")})
	first := &stubQueueDelivery{msg: msg}
	redelivered := &stubQueueDelivery{msg: msg}
	ctx, cancel := context.WithCancel(context.Background())
	router := &sequenceRouter{errs: []error{nil, core.NewUnknownError("local", "handler failed", nil)}, done: cancel}
	dequeuer := &sequenceDequeuer{deliveries: []queue.Delivery{first, redelivered}}

	policy := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second, DeadLetterOnMax: true}
	if err := NewDeliveryJob(router, policy, nil).Drain(ctx, dequeuer); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if !first.acked {
		t.Fatalf("expected first delivery to be acked")
	}
	if !redelivered.nackOpts.Requeue || redelivered.nackOpts.DeadLetter {
		t.Fatalf("expected a fresh attempt count after ack, got %+v", redelivered.nackOpts)
	}
}

func TestRetryPolicySpan(t *testing.T) {
	tests := []struct {
		name   string
		policy RetryPolicy
		want   time.Duration
	}{
		{name: "unbounded", policy: RetryPolicy{BaseDelay: time.Second}, want: 0},
		{name: "single attempt", policy: RetryPolicy{MaxAttempts: 1}, want: 0},
		{name: "doubling", policy: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}, want: 3 * time.Second},
		{name: "capped", policy: RetryPolicy{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: 3 * time.Second}, want: 6 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.Span(); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestLoggingHookFields(t *testing.T) {
	msg, _ := ToExecutionMessage("paypal", core.WebhookDelivery{Body: []byte("{}")})
	fields := eventFields(worker.Event{
		Message:  msg,
		Attempt:  2,
		Delay:    5 * time.Second,
		Err:      errors.New("retry"),
		Duration: 250 * time.Millisecond,
	})
	got := map[any]any{}
	for i := 0; i+1 < len(fields); i += 2 {
		got[fields[i]] = fields[i+1]
	}
	if got["provider"] != "paypal" || got["attempt"] != 2 || got["delay_ms"] != int64(5000) || got["duration_ms"] != int64(250) {
		t.Fatalf("unexpected fields %v", got)
	}
	NewLoggingHook(nil).OnRetry(context.Background(), worker.Event{Message: msg})
}

type stubRouter struct {
	report     webhooks.Report
	err        error
	provider   string
	body       []byte
	calls      int
	onDispatch func()
}

func (s *stubRouter) Dispatch(_ context.Context, provider string, delivery core.WebhookDelivery) (webhooks.Report, error) {
	s.calls++
	s.provider = provider
	s.body = delivery.Body
	if s.onDispatch != nil {
		s.onDispatch()
	}
	return s.report, s.err
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}

type sequenceRouter struct {
	errs  []error
	calls int
	done  func()
}

func (s *sequenceRouter) Dispatch(context.Context, string, core.WebhookDelivery) (webhooks.Report, error) {
	err := s.errs[s.calls]
	s.calls++
	if s.calls == len(s.errs) && s.done != nil {
		s.done()
	}
	return webhooks.Report{}, err
}

type sequenceDequeuer struct {
	deliveries []queue.Delivery
}

func (s *sequenceDequeuer) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if len(s.deliveries) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	next := s.deliveries[0]
	s.deliveries = s.deliveries[1:]
	return next, nil
}
