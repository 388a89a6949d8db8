package payments

import (
	"fmt"

	paymentscommand "github.com/goliatone/go-payments/command"
	paymentsquery "github.com/goliatone/go-payments/query"
	"github.com/goliatone/go-payments/webhooks"
)

// ProviderResolver hands out adapters by id; *Service satisfies it.
type ProviderResolver = paymentscommand.ProviderResolver

type Commands struct {
	CreateCustomer     *paymentscommand.CreateCustomerCommand
	UpdateCustomer     *paymentscommand.UpdateCustomerCommand
	DeleteCustomer     *paymentscommand.DeleteCustomerCommand
	CreateCheckout     *paymentscommand.CreateCheckoutCommand
	UpdateCheckout     *paymentscommand.UpdateCheckoutCommand
	DeleteCheckout     *paymentscommand.DeleteCheckoutCommand
	CreateSubscription *paymentscommand.CreateSubscriptionCommand
	UpdateSubscription *paymentscommand.UpdateSubscriptionCommand
	DeleteSubscription *paymentscommand.DeleteSubscriptionCommand
	CreatePayment      *paymentscommand.CreatePaymentCommand
	UpdatePayment      *paymentscommand.UpdatePaymentCommand
	DeletePayment      *paymentscommand.DeletePaymentCommand
	CreateRefund       *paymentscommand.CreateRefundCommand
	UpdateRefund       *paymentscommand.UpdateRefundCommand
	DeleteRefund       *paymentscommand.DeleteRefundCommand
}

type Queries struct {
	RetrieveCustomer     *paymentsquery.RetrieveCustomerQuery
	RetrieveCheckout     *paymentsquery.RetrieveCheckoutQuery
	RetrieveSubscription *paymentsquery.RetrieveSubscriptionQuery
	RetrievePayment      *paymentsquery.RetrievePaymentQuery
	RetrieveRefund       *paymentsquery.RetrieveRefundQuery
	// WebhookEventStatus is nil unless a claim reader was supplied.
	WebhookEventStatus *paymentsquery.WebhookEventStatusQuery
}

type Facade struct {
	providers ProviderResolver
	commands  Commands
	queries   Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	claims webhooks.ClaimReader
}

// WithClaimReader enables the webhook event status query.
func WithClaimReader(reader webhooks.ClaimReader) FacadeOption {
	return func(options *facadeOptions) {
		options.claims = reader
	}
}

func NewFacade(providers ProviderResolver, opts ...FacadeOption) (*Facade, error) {
	if providers == nil {
		return nil, fmt.Errorf("payments: provider resolver is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{providers: providers}
	facade.commands = Commands{
		CreateCustomer:     paymentscommand.NewCreateCustomerCommand(providers),
		UpdateCustomer:     paymentscommand.NewUpdateCustomerCommand(providers),
		DeleteCustomer:     paymentscommand.NewDeleteCustomerCommand(providers),
		CreateCheckout:     paymentscommand.NewCreateCheckoutCommand(providers),
		UpdateCheckout:     paymentscommand.NewUpdateCheckoutCommand(providers),
		DeleteCheckout:     paymentscommand.NewDeleteCheckoutCommand(providers),
		CreateSubscription: paymentscommand.NewCreateSubscriptionCommand(providers),
		UpdateSubscription: paymentscommand.NewUpdateSubscriptionCommand(providers),
		DeleteSubscription: paymentscommand.NewDeleteSubscriptionCommand(providers),
		CreatePayment:      paymentscommand.NewCreatePaymentCommand(providers),
		UpdatePayment:      paymentscommand.NewUpdatePaymentCommand(providers),
		DeletePayment:      paymentscommand.NewDeletePaymentCommand(providers),
		CreateRefund:       paymentscommand.NewCreateRefundCommand(providers),
		UpdateRefund:       paymentscommand.NewUpdateRefundCommand(providers),
		DeleteRefund:       paymentscommand.NewDeleteRefundCommand(providers),
	}
	facade.queries = Queries{
		RetrieveCustomer:     paymentsquery.NewRetrieveCustomerQuery(providers),
		RetrieveCheckout:     paymentsquery.NewRetrieveCheckoutQuery(providers),
		RetrieveSubscription: paymentsquery.NewRetrieveSubscriptionQuery(providers),
		RetrievePayment:      paymentsquery.NewRetrievePaymentQuery(providers),
		RetrieveRefund:       paymentsquery.NewRetrieveRefundQuery(providers),
	}
	if cfg.claims != nil {
		facade.queries.WebhookEventStatus = paymentsquery.NewWebhookEventStatusQuery(cfg.claims)
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Providers() ProviderResolver {
	if f == nil {
		return nil
	}
	return f.providers
}
