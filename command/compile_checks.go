package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreateCustomerMessage]     = (*CreateCustomerCommand)(nil)
	_ gocmd.Commander[UpdateCustomerMessage]     = (*UpdateCustomerCommand)(nil)
	_ gocmd.Commander[DeleteCustomerMessage]     = (*DeleteCustomerCommand)(nil)
	_ gocmd.Commander[CreateCheckoutMessage]     = (*CreateCheckoutCommand)(nil)
	_ gocmd.Commander[UpdateCheckoutMessage]     = (*UpdateCheckoutCommand)(nil)
	_ gocmd.Commander[DeleteCheckoutMessage]     = (*DeleteCheckoutCommand)(nil)
	_ gocmd.Commander[CreateSubscriptionMessage] = (*CreateSubscriptionCommand)(nil)
	_ gocmd.Commander[UpdateSubscriptionMessage] = (*UpdateSubscriptionCommand)(nil)
	_ gocmd.Commander[DeleteSubscriptionMessage] = (*DeleteSubscriptionCommand)(nil)
	_ gocmd.Commander[CreatePaymentMessage]      = (*CreatePaymentCommand)(nil)
	_ gocmd.Commander[UpdatePaymentMessage]      = (*UpdatePaymentCommand)(nil)
	_ gocmd.Commander[DeletePaymentMessage]      = (*DeletePaymentCommand)(nil)
	_ gocmd.Commander[CreateRefundMessage]       = (*CreateRefundCommand)(nil)
	_ gocmd.Commander[UpdateRefundMessage]       = (*UpdateRefundCommand)(nil)
	_ gocmd.Commander[DeleteRefundMessage]       = (*DeleteRefundCommand)(nil)
)
