package gocommand

import (
	"errors"
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	paymentscommand "github.com/goliatone/go-payments/command"
	paymentsquery "github.com/goliatone/go-payments/query"
)

// Subscriptions groups dispatcher subscriptions so they can be released
// together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterPayments registers and subscribes every provider command and
// retrieve query. The webhook event status query is only wired when events
// is not nil. If any registration fails, every subscription is released.
func RegisterPayments(
	adapter *RegistryAdapter,
	providers paymentscommand.ProviderResolver,
	events paymentsquery.WebhookEventReader,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if providers == nil {
		return nil, fmt.Errorf("gocommand: provider resolver is required")
	}
	var subs Subscriptions
	add := func(sub commanddispatcher.Subscription, err error) error {
		if err == nil {
			subs = append(subs, sub)
		}
		return err
	}

	errs := []error{
		add(RegisterCommand(adapter, paymentscommand.NewCreateCustomerCommand(providers), runnerOpts...)),
		add(RegisterCommand(adapter, paymentscommand.NewUpdateCustomerCommand(providers), runnerOpts...)),
		add(RegisterCommand(adapter, paymentscommand.NewDeleteCustomerCommand(providers), runnerOpts...)),
		add(RegisterCommand(adapter, paymentscommand.NewCreateCheckoutCommand(providers), runnerOpts...)),
		add(RegisterCommand(adapter, paymentscommand.NewUpdateCheckoutCommand(providers), runnerOpts...)),
		add(RegisterCommand(adapter, paymentscommand.NewDeleteCheckoutCommand(providers), runnerOpts...)),
		add(RegisterCommand(adapter, paymentscommand.NewCreateSubscriptionCommand(providers), runnerOpts...)),
		add(RegisterCommand(adapter, paymentscommand.NewUpdateSubscriptionCommand(providers), runnerOpts...)),
		add(RegisterCommand(adapter, paymentscommand.NewDeleteSubscriptionCommand(providers), runnerOpts...)),
		add(RegisterCommand(adapter, paymentscommand.NewCreatePaymentCommand(providers), runnerOpts...)),
		add(RegisterCommand(adapter, paymentscommand.NewUpdatePaymentCommand(providers), runnerOpts...)),
		add(RegisterCommand(adapter, paymentscommand.NewDeletePaymentCommand(providers), runnerOpts...)),
		add(RegisterCommand(adapter, paymentscommand.NewCreateRefundCommand(providers), runnerOpts...)),
		add(RegisterCommand(adapter, paymentscommand.NewUpdateRefundCommand(providers), runnerOpts...)),
		add(RegisterCommand(adapter, paymentscommand.NewDeleteRefundCommand(providers), runnerOpts...)),

		add(RegisterQuery(adapter, paymentsquery.NewRetrieveCustomerQuery(providers), runnerOpts...)),
		add(RegisterQuery(adapter, paymentsquery.NewRetrieveCheckoutQuery(providers), runnerOpts...)),
		add(RegisterQuery(adapter, paymentsquery.NewRetrieveSubscriptionQuery(providers), runnerOpts...)),
		add(RegisterQuery(adapter, paymentsquery.NewRetrievePaymentQuery(providers), runnerOpts...)),
		add(RegisterQuery(adapter, paymentsquery.NewRetrieveRefundQuery(providers), runnerOpts...)),
	}
	if events != nil {
		errs = append(errs, add(RegisterQuery(adapter, paymentsquery.NewWebhookEventStatusQuery(events), runnerOpts...)))
	}
	if err := errors.Join(errs...); err != nil {
		subs.Unsubscribe()
		return nil, err
	}
	return subs, nil
}
