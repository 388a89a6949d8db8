package webhooks

import (
	"time"

	"github.com/goliatone/go-payments/core"
)

type Stage string

const (
	StageReceived          Stage = "received"
	StageSignatureVerified Stage = "signature_verified"
	StageEventMapped       Stage = "event_mapped"
	StageDispatched        Stage = "dispatched"
	StageCompleted         Stage = "completed"
	StageHandlerFailed     Stage = "handler_failed"
)

type OutcomeStatus string

const (
	OutcomeCompleted     OutcomeStatus = "completed"
	OutcomeHandlerFailed OutcomeStatus = "handler_failed"
	OutcomeSkipped       OutcomeStatus = "skipped"
)

// Skip reasons.
const (
	ReasonNoHandler = "no_handler"
	ReasonDuplicate = "duplicate"
	ReasonCanceled  = "canceled"
)

type Outcome struct {
	EventID  string
	Type     core.EventType
	Status   OutcomeStatus
	Reason   string
	Err      error
	Duration time.Duration
}

// Report describes how far one delivery progressed and what happened to
// each mapped event, in mapping order.
type Report struct {
	Provider string
	Stage    Stage
	Events   []core.WebhookEvent
	Outcomes []Outcome
}

func (r Report) Failures() []Outcome {
	out := []Outcome{}
	for _, outcome := range r.Outcomes {
		if outcome.Status == OutcomeHandlerFailed {
			out = append(out, outcome)
		}
	}
	return out
}

// Failed is true when the remote should be asked to redeliver.
func (r Report) Failed() bool {
	return r.Stage == StageHandlerFailed
}
