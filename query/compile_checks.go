package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/webhooks"
)

var (
	_ gocmd.Querier[RetrieveCustomerMessage, core.Customer]         = (*RetrieveCustomerQuery)(nil)
	_ gocmd.Querier[RetrieveCheckoutMessage, core.Checkout]         = (*RetrieveCheckoutQuery)(nil)
	_ gocmd.Querier[RetrieveSubscriptionMessage, core.Subscription] = (*RetrieveSubscriptionQuery)(nil)
	_ gocmd.Querier[RetrievePaymentMessage, core.Payment]           = (*RetrievePaymentQuery)(nil)
	_ gocmd.Querier[RetrieveRefundMessage, core.Refund]             = (*RetrieveRefundQuery)(nil)
	_ gocmd.Querier[WebhookEventStatusMessage, WebhookEventStatus]  = (*WebhookEventStatusQuery)(nil)
	_ WebhookEventReader                                            = (*webhooks.MemoryDeduper)(nil)
)
