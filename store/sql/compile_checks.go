package sqlstore

import "github.com/goliatone/go-payments/webhooks"

var (
	_ webhooks.Deduper = (*EventDeduper)(nil)
	_ webhooks.Deduper = (*CachedEventDeduper)(nil)

	_ webhooks.ClaimReader = (*EventDeduper)(nil)
	_ webhooks.ClaimReader = (*CachedEventDeduper)(nil)
)
