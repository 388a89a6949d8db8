package core

import "context"

// Metric names shared by the service and the webhook engine. Provider
// operations are recorded under OperationMetric.
const (
	MetricWebhookDeliveries     = "payments.webhook.deliveries.total"
	MetricWebhookEvents         = "payments.webhook.events.total"
	MetricWebhookHandlerLatency = "payments.webhook.handler.duration_ms"
)

// OperationMetric names the series of one provider operation, for example
// OperationMetric("create_checkout", "total") is
// "payments.create_checkout.total".
func OperationMetric(operation string, suffix string) string {
	return "payments." + operation + "." + suffix
}

// Operation status tag values.
const (
	StatusSuccess  = "success"
	StatusRejected = "rejected"
	StatusAborted  = "aborted"
	StatusFailure  = "failure"
)

// OperationStatus buckets an operation result: caller mistakes and
// unsupported capabilities are rejected, cancellations are aborted, and
// everything else that went wrong is a failure.
func OperationStatus(err error) string {
	if err == nil {
		return StatusSuccess
	}
	switch KindOf(err) {
	case KindValidation, KindNotImplemented:
		return StatusRejected
	case KindAborted:
		return StatusAborted
	default:
		return StatusFailure
	}
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}
