// Package webhooks verifies, normalizes and dispatches inbound payment
// deliveries.
//
// Each delivery moves through
// received -> signature_verified -> event_mapped -> dispatched -> completed|handler_failed.
// The source adapter owns signature checks and mapping; the engine owns
// handler registration, ordering and per-event isolation.
package webhooks
