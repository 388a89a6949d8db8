package core

import (
	"context"
	"sort"
	"strings"
	"time"
)

// observeOperation logs and records one provider call. Rejected calls log
// at warn, failures at error, and aborted calls at info.
func (s *Service) observeOperation(ctx context.Context, startedAt time.Time, providerID string, operation string, err error) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := OperationStatus(err)
	elapsed := time.Since(startedAt)

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	if providerID = strings.TrimSpace(providerID); providerID != "" {
		tags["provider_id"] = providerID
	}
	if err != nil {
		tags["error_kind"] = string(KindOf(err))
	}
	if s.metricsRecorder != nil {
		s.metricsRecorder.IncCounter(ctx, OperationMetric(operation, "total"), 1, cloneTags(tags))
		s.metricsRecorder.ObserveHistogram(ctx, OperationMetric(operation, "duration_ms"), float64(elapsed.Milliseconds()), cloneTags(tags))
	}

	fields := map[string]any{"duration_ms": elapsed.Milliseconds()}
	for key, value := range tags {
		fields[key] = value
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	switch status {
	case StatusSuccess:
		s.log(ctx, "info", operation+" succeeded", fields)
	case StatusRejected:
		s.log(ctx, "warn", operation+" rejected", fields)
	case StatusAborted:
		s.log(ctx, "info", operation+" aborted", fields)
	default:
		s.log(ctx, "error", operation+" failed", fields)
	}
}

func (s *Service) log(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(fields)
	}
	args := flattenFields(fields)
	switch level {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func flattenFields(fields map[string]any) []any {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

// normalizeOperation turns "Create Checkout" or "create-checkout" into
// "create_checkout".
func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	return strings.ReplaceAll(operation, "-", "_")
}
