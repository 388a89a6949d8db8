package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const eventCacheKeyPrefix = "go-payments::webhook_event::v1"

// CachedEventDeduper answers repeat deliveries of completed events from a
// read-through cache before touching the database. Claims and releases
// always go to the base store.
type CachedEventDeduper struct {
	base  *EventDeduper
	cache repositorycache.CacheService
}

func NewCachedEventDeduper(base *EventDeduper, cacheService repositorycache.CacheService) (*CachedEventDeduper, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base event deduper is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: event cache service is required")
	}
	return &CachedEventDeduper{base: base, cache: cacheService}, nil
}

// EventCacheKey returns go-payments::webhook_event::v1::<provider>::<event_id>
// with each segment URL-path escaped.
func EventCacheKey(provider string, eventID string) (string, error) {
	provider, eventID, err := normalizeKey(provider, eventID)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{eventCacheKeyPrefix, url.PathEscape(provider), url.PathEscape(eventID)}, "::"), nil
}

func (d *CachedEventDeduper) Claim(ctx context.Context, provider string, eventID string) (bool, error) {
	if d == nil || d.base == nil || d.cache == nil {
		return false, fmt.Errorf("sqlstore: cached event deduper is not configured")
	}
	key, err := EventCacheKey(provider, eventID)
	if err != nil {
		return false, err
	}
	completed, err := repositorycache.GetOrFetch(ctx, d.cache, key, func(ctx context.Context) (bool, error) {
		return d.base.Completed(ctx, provider, eventID)
	})
	if err != nil {
		return false, err
	}
	if completed {
		return false, nil
	}
	return d.base.Claim(ctx, provider, eventID)
}

func (d *CachedEventDeduper) Complete(ctx context.Context, provider string, eventID string) error {
	if d == nil || d.base == nil || d.cache == nil {
		return fmt.Errorf("sqlstore: cached event deduper is not configured")
	}
	if err := d.base.Complete(ctx, provider, eventID); err != nil {
		return err
	}
	return d.invalidate(ctx, provider, eventID)
}

func (d *CachedEventDeduper) Release(ctx context.Context, provider string, eventID string) error {
	if d == nil || d.base == nil || d.cache == nil {
		return fmt.Errorf("sqlstore: cached event deduper is not configured")
	}
	return d.base.Release(ctx, provider, eventID)
}

// Get reads through to the database; only the completion flag is cached.
func (d *CachedEventDeduper) Get(ctx context.Context, provider string, eventID string) (EventRecord, bool, error) {
	if d == nil || d.base == nil {
		return EventRecord{}, false, fmt.Errorf("sqlstore: cached event deduper is not configured")
	}
	return d.base.Get(ctx, provider, eventID)
}

func (d *CachedEventDeduper) invalidate(ctx context.Context, provider string, eventID string) error {
	key, err := EventCacheKey(provider, eventID)
	if err != nil {
		return err
	}
	return d.cache.Delete(ctx, key)
}
