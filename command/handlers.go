package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-payments/core"
)

// ProviderResolver looks adapters up by id. An empty id selects the
// configured default. *core.Service satisfies it.
type ProviderResolver interface {
	Provider(id string) (core.Provider, error)
}

type CreateCustomerCommand struct {
	providers ProviderResolver
}

func NewCreateCustomerCommand(providers ProviderResolver) *CreateCustomerCommand {
	return &CreateCustomerCommand{providers: providers}
}

func (c *CreateCustomerCommand) Execute(ctx context.Context, msg CreateCustomerMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: create customer requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.CreateCustomer(ctx, msg.Params)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateCustomerCommand struct {
	providers ProviderResolver
}

func NewUpdateCustomerCommand(providers ProviderResolver) *UpdateCustomerCommand {
	return &UpdateCustomerCommand{providers: providers}
}

func (c *UpdateCustomerCommand) Execute(ctx context.Context, msg UpdateCustomerMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: update customer requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.UpdateCustomer(ctx, msg.Params)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteCustomerCommand struct {
	providers ProviderResolver
}

func NewDeleteCustomerCommand(providers ProviderResolver) *DeleteCustomerCommand {
	return &DeleteCustomerCommand{providers: providers}
}

func (c *DeleteCustomerCommand) Execute(ctx context.Context, msg DeleteCustomerMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: delete customer requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.DeleteCustomer(ctx, msg.ID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateCheckoutCommand struct {
	providers ProviderResolver
}

func NewCreateCheckoutCommand(providers ProviderResolver) *CreateCheckoutCommand {
	return &CreateCheckoutCommand{providers: providers}
}

func (c *CreateCheckoutCommand) Execute(ctx context.Context, msg CreateCheckoutMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: create checkout requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.CreateCheckout(ctx, msg.Params)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateCheckoutCommand struct {
	providers ProviderResolver
}

func NewUpdateCheckoutCommand(providers ProviderResolver) *UpdateCheckoutCommand {
	return &UpdateCheckoutCommand{providers: providers}
}

func (c *UpdateCheckoutCommand) Execute(ctx context.Context, msg UpdateCheckoutMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: update checkout requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.UpdateCheckout(ctx, msg.Params)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteCheckoutCommand struct {
	providers ProviderResolver
}

func NewDeleteCheckoutCommand(providers ProviderResolver) *DeleteCheckoutCommand {
	return &DeleteCheckoutCommand{providers: providers}
}

func (c *DeleteCheckoutCommand) Execute(ctx context.Context, msg DeleteCheckoutMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: delete checkout requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.DeleteCheckout(ctx, msg.ID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateSubscriptionCommand struct {
	providers ProviderResolver
}

func NewCreateSubscriptionCommand(providers ProviderResolver) *CreateSubscriptionCommand {
	return &CreateSubscriptionCommand{providers: providers}
}

func (c *CreateSubscriptionCommand) Execute(ctx context.Context, msg CreateSubscriptionMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: create subscription requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.CreateSubscription(ctx, msg.Params)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateSubscriptionCommand struct {
	providers ProviderResolver
}

func NewUpdateSubscriptionCommand(providers ProviderResolver) *UpdateSubscriptionCommand {
	return &UpdateSubscriptionCommand{providers: providers}
}

func (c *UpdateSubscriptionCommand) Execute(ctx context.Context, msg UpdateSubscriptionMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: update subscription requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.UpdateSubscription(ctx, msg.Params)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteSubscriptionCommand struct {
	providers ProviderResolver
}

func NewDeleteSubscriptionCommand(providers ProviderResolver) *DeleteSubscriptionCommand {
	return &DeleteSubscriptionCommand{providers: providers}
}

func (c *DeleteSubscriptionCommand) Execute(ctx context.Context, msg DeleteSubscriptionMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: delete subscription requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.DeleteSubscription(ctx, msg.ID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreatePaymentCommand struct {
	providers ProviderResolver
}

func NewCreatePaymentCommand(providers ProviderResolver) *CreatePaymentCommand {
	return &CreatePaymentCommand{providers: providers}
}

func (c *CreatePaymentCommand) Execute(ctx context.Context, msg CreatePaymentMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: create payment requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.CreatePayment(ctx, msg.Params)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdatePaymentCommand struct {
	providers ProviderResolver
}

func NewUpdatePaymentCommand(providers ProviderResolver) *UpdatePaymentCommand {
	return &UpdatePaymentCommand{providers: providers}
}

func (c *UpdatePaymentCommand) Execute(ctx context.Context, msg UpdatePaymentMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: update payment requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.UpdatePayment(ctx, msg.Params)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeletePaymentCommand struct {
	providers ProviderResolver
}

func NewDeletePaymentCommand(providers ProviderResolver) *DeletePaymentCommand {
	return &DeletePaymentCommand{providers: providers}
}

func (c *DeletePaymentCommand) Execute(ctx context.Context, msg DeletePaymentMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: delete payment requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.DeletePayment(ctx, msg.ID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateRefundCommand struct {
	providers ProviderResolver
}

func NewCreateRefundCommand(providers ProviderResolver) *CreateRefundCommand {
	return &CreateRefundCommand{providers: providers}
}

func (c *CreateRefundCommand) Execute(ctx context.Context, msg CreateRefundMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: create refund requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.CreateRefund(ctx, msg.Params)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateRefundCommand struct {
	providers ProviderResolver
}

func NewUpdateRefundCommand(providers ProviderResolver) *UpdateRefundCommand {
	return &UpdateRefundCommand{providers: providers}
}

func (c *UpdateRefundCommand) Execute(ctx context.Context, msg UpdateRefundMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: update refund requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.UpdateRefund(ctx, msg.ID, msg.Metadata)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteRefundCommand struct {
	providers ProviderResolver
}

func NewDeleteRefundCommand(providers ProviderResolver) *DeleteRefundCommand {
	return &DeleteRefundCommand{providers: providers}
}

func (c *DeleteRefundCommand) Execute(ctx context.Context, msg DeleteRefundMessage) error {
	if c == nil || c.providers == nil {
		return commandDependencyError("command: delete refund requires a provider resolver")
	}
	provider, err := c.providers.Provider(msg.Provider)
	if err != nil {
		return err
	}
	out, err := provider.DeleteRefund(ctx, msg.ID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
