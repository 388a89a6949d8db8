package webhooks

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Deduper is the optional idempotency collaborator. A claimed event that is
// released can be claimed again; a completed one cannot.
type Deduper interface {
	Claim(ctx context.Context, provider string, eventID string) (bool, error)
	Complete(ctx context.Context, provider string, eventID string) error
	Release(ctx context.Context, provider string, eventID string) error
}

const (
	ClaimProcessing = "processing"
	ClaimCompleted  = "completed"
)

// ClaimRecord is the recorded dedupe state of one provider event id.
type ClaimRecord struct {
	ID          string
	ProviderID  string
	EventID     string
	Status      string
	Attempts    int
	ClaimedAt   time.Time
	CompletedAt *time.Time
}

func (r ClaimRecord) Completed() bool {
	return r.Status == ClaimCompleted
}

// ClaimReader exposes recorded claims for status lookups. A missing event
// reports ok=false.
type ClaimReader interface {
	Get(ctx context.Context, provider string, eventID string) (ClaimRecord, bool, error)
}

type MemoryDeduperOptions struct {
	// Window is how long a completed event id is remembered.
	Window time.Duration
	// Lease bounds how long an unfinished claim blocks redelivery.
	Lease      time.Duration
	MaxEntries int
	Now        func() time.Time
}

type dedupeEntry struct {
	completed bool
	attempts  int
	claimedAt time.Time
	seenAt    time.Time
}

// MemoryDeduper remembers event ids in process. Entries expire after the
// window, so it narrows duplicate handling rather than eliminating it.
type MemoryDeduper struct {
	window     time.Duration
	lease      time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]dedupeEntry
}

func NewMemoryDeduper(opts MemoryDeduperOptions) *MemoryDeduper {
	window := opts.Window
	if window <= 0 {
		window = 24 * time.Hour
	}
	lease := opts.Lease
	if lease <= 0 {
		lease = 30 * time.Second
	}
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryDeduper{
		window:     window,
		lease:      lease,
		maxEntries: maxEntries,
		now:        now,
		entries:    map[string]dedupeEntry{},
	}
}

func (d *MemoryDeduper) Claim(_ context.Context, provider string, eventID string) (bool, error) {
	key := dedupeKey(provider, eventID)
	now := d.now().UTC()
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.entries[key]
	if ok && !d.expired(entry, now) {
		return false, nil
	}
	attempts := 1
	if ok && !entry.completed {
		attempts = entry.attempts + 1
	}
	d.entries[key] = dedupeEntry{attempts: attempts, claimedAt: now, seenAt: now}
	d.cleanup(now)
	return true, nil
}

func (d *MemoryDeduper) Complete(_ context.Context, provider string, eventID string) error {
	key := dedupeKey(provider, eventID)
	now := d.now().UTC()
	d.mu.Lock()
	defer d.mu.Unlock()
	entry := d.entries[key]
	if entry.claimedAt.IsZero() {
		entry.claimedAt = now
	}
	if entry.attempts == 0 {
		entry.attempts = 1
	}
	entry.completed = true
	entry.seenAt = now
	d.entries[key] = entry
	return nil
}

func (d *MemoryDeduper) Release(_ context.Context, provider string, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, dedupeKey(provider, eventID))
	return nil
}

// Get reports the remembered state of an event. Expired entries are
// reported as missing.
func (d *MemoryDeduper) Get(_ context.Context, provider string, eventID string) (ClaimRecord, bool, error) {
	key := dedupeKey(provider, eventID)
	now := d.now().UTC()
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.entries[key]
	if !ok || d.expired(entry, now) {
		return ClaimRecord{}, false, nil
	}
	record := ClaimRecord{
		ID:         key,
		ProviderID: strings.ToLower(strings.TrimSpace(provider)),
		EventID:    strings.TrimSpace(eventID),
		Status:     ClaimProcessing,
		Attempts:   entry.attempts,
		ClaimedAt:  entry.claimedAt,
	}
	if entry.completed {
		completedAt := entry.seenAt
		record.Status = ClaimCompleted
		record.CompletedAt = &completedAt
	}
	return record, true, nil
}

func (d *MemoryDeduper) expired(entry dedupeEntry, now time.Time) bool {
	if entry.completed {
		return now.Sub(entry.seenAt) >= d.window
	}
	return now.Sub(entry.seenAt) >= d.lease
}

func (d *MemoryDeduper) cleanup(now time.Time) {
	for key, entry := range d.entries {
		if d.expired(entry, now) {
			delete(d.entries, key)
		}
	}
	if len(d.entries) <= d.maxEntries {
		return
	}
	oldestKey := ""
	var oldest time.Time
	for len(d.entries) > d.maxEntries {
		for key, entry := range d.entries {
			if oldestKey == "" || entry.seenAt.Before(oldest) {
				oldestKey, oldest = key, entry.seenAt
			}
		}
		delete(d.entries, oldestKey)
		oldestKey = ""
	}
}

func dedupeKey(provider string, eventID string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + ":" + strings.TrimSpace(eventID)
}

var (
	_ Deduper     = (*MemoryDeduper)(nil)
	_ ClaimReader = (*MemoryDeduper)(nil)
)
