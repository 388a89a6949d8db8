package sqlstore

import (
	"time"

	"github.com/goliatone/go-payments/webhooks"
	"github.com/uptrace/bun"
)

const (
	statusProcessing = webhooks.ClaimProcessing
	statusCompleted  = webhooks.ClaimCompleted
)

// webhookEventRecord tracks one backend event id through claim and
// completion. (provider_id, event_id) is unique.
type webhookEventRecord struct {
	bun.BaseModel `bun:"table:payment_webhook_events,alias:pwe"`

	ID          string     `bun:"id,pk"`
	ProviderID  string     `bun:"provider_id,notnull"`
	EventID     string     `bun:"event_id,notnull"`
	Status      string     `bun:"status,notnull"`
	Attempts    int        `bun:"attempts,notnull"`
	ClaimedAt   time.Time  `bun:"claimed_at,notnull"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// EventRecord is the stored state of a deduplicated webhook event.
type EventRecord = webhooks.ClaimRecord

func (r *webhookEventRecord) toDomain() EventRecord {
	if r == nil {
		return EventRecord{}
	}
	out := EventRecord{
		ID:         r.ID,
		ProviderID: r.ProviderID,
		EventID:    r.EventID,
		Status:     r.Status,
		Attempts:   r.Attempts,
		ClaimedAt:  r.ClaimedAt,
	}
	if r.CompletedAt != nil {
		value := *r.CompletedAt
		out.CompletedAt = &value
	}
	return out
}
