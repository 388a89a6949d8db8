package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const DefaultLease = 30 * time.Second

type EventDeduperOption func(*EventDeduper)

// WithLease bounds how long an unfinished claim blocks redelivery. A claim
// older than the lease is taken over by the next delivery.
func WithLease(lease time.Duration) EventDeduperOption {
	return func(d *EventDeduper) {
		if lease > 0 {
			d.lease = lease
		}
	}
}

func WithClock(now func() time.Time) EventDeduperOption {
	return func(d *EventDeduper) {
		if now != nil {
			d.now = now
		}
	}
}

// EventDeduper persists webhook claims so that duplicate deliveries are
// skipped across restarts and replicas.
type EventDeduper struct {
	db    *bun.DB
	repo  repository.Repository[*webhookEventRecord]
	lease time.Duration
	now   func() time.Time
}

func NewEventDeduper(db *bun.DB, opts ...EventDeduperOption) (*EventDeduper, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookEventRecord](db, webhookEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook event repository wiring: %w", err)
		}
	}
	d := &EventDeduper{
		db:    db,
		repo:  repo,
		lease: DefaultLease,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

func normalizeKey(provider string, eventID string) (string, string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	eventID = strings.TrimSpace(eventID)
	if provider == "" || eventID == "" {
		return "", "", fmt.Errorf("sqlstore: provider and event id are required")
	}
	return provider, eventID, nil
}

func (d *EventDeduper) Claim(ctx context.Context, provider string, eventID string) (bool, error) {
	if d == nil || d.db == nil {
		return false, fmt.Errorf("sqlstore: event deduper is not configured")
	}
	provider, eventID, err := normalizeKey(provider, eventID)
	if err != nil {
		return false, err
	}
	now := d.now().UTC()
	record := &webhookEventRecord{
		ID:         uuid.NewString(),
		ProviderID: provider,
		EventID:    eventID,
		Status:     statusProcessing,
		Attempts:   1,
		ClaimedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := d.repo.Create(ctx, record); err == nil {
		return true, nil
	} else if !isUniqueViolation(err) {
		return false, err
	}

	existing, err := d.find(ctx, provider, eventID)
	if err != nil {
		return false, err
	}
	if existing.Status == statusCompleted || now.Sub(existing.ClaimedAt) < d.lease {
		return false, nil
	}

	// Take over a stale claim. The attempts guard leaves a single winner
	// when two deliveries race for it.
	result, err := d.db.NewUpdate().
		Model((*webhookEventRecord)(nil)).
		Set("claimed_at = ?", now).
		Set("attempts = attempts + 1").
		Set("updated_at = ?", now).
		Where("id = ?", existing.ID).
		Where("status = ?", statusProcessing).
		Where("attempts = ?", existing.Attempts).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (d *EventDeduper) Complete(ctx context.Context, provider string, eventID string) error {
	if d == nil || d.db == nil {
		return fmt.Errorf("sqlstore: event deduper is not configured")
	}
	provider, eventID, err := normalizeKey(provider, eventID)
	if err != nil {
		return err
	}
	now := d.now().UTC()
	_, err = d.db.NewUpdate().
		Model((*webhookEventRecord)(nil)).
		Set("status = ?", statusCompleted).
		Set("completed_at = ?", now).
		Set("updated_at = ?", now).
		Where("provider_id = ?", provider).
		Where("event_id = ?", eventID).
		Exec(ctx)
	return err
}

// Release drops an unfinished claim so the next delivery can retry it.
// Completed events are left alone.
func (d *EventDeduper) Release(ctx context.Context, provider string, eventID string) error {
	if d == nil || d.db == nil {
		return fmt.Errorf("sqlstore: event deduper is not configured")
	}
	provider, eventID, err := normalizeKey(provider, eventID)
	if err != nil {
		return err
	}
	_, err = d.db.NewDelete().
		Model((*webhookEventRecord)(nil)).
		Where("provider_id = ?", provider).
		Where("event_id = ?", eventID).
		Where("status = ?", statusProcessing).
		Exec(ctx)
	return err
}

// Get returns the stored record. A missing event reports ok=false.
func (d *EventDeduper) Get(ctx context.Context, provider string, eventID string) (EventRecord, bool, error) {
	if d == nil || d.db == nil {
		return EventRecord{}, false, fmt.Errorf("sqlstore: event deduper is not configured")
	}
	provider, eventID, err := normalizeKey(provider, eventID)
	if err != nil {
		return EventRecord{}, false, err
	}
	record, err := d.find(ctx, provider, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return EventRecord{}, false, nil
	}
	if err != nil {
		return EventRecord{}, false, err
	}
	return record.toDomain(), true, nil
}

// Completed reports whether the event finished processing.
func (d *EventDeduper) Completed(ctx context.Context, provider string, eventID string) (bool, error) {
	record, ok, err := d.Get(ctx, provider, eventID)
	if err != nil || !ok {
		return false, err
	}
	return record.Completed(), nil
}

// Purge deletes completed events older than the cutoff and returns how many
// were removed.
func (d *EventDeduper) Purge(ctx context.Context, before time.Time) (int64, error) {
	if d == nil || d.db == nil {
		return 0, fmt.Errorf("sqlstore: event deduper is not configured")
	}
	result, err := d.db.NewDelete().
		Model((*webhookEventRecord)(nil)).
		Where("status = ?", statusCompleted).
		Where("completed_at < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (d *EventDeduper) find(ctx context.Context, provider string, eventID string) (*webhookEventRecord, error) {
	records, _, err := d.repo.List(ctx,
		repository.SelectBy("provider_id", "=", provider),
		repository.SelectBy("event_id", "=", eventID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, sql.ErrNoRows
	}
	return records[0], nil
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
