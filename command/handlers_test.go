package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/providers/local"
)

func newTestService(t *testing.T) *core.Service {
	t.Helper()
	provider, err := local.New(local.Config{WebhookSecret: "command_test_secret"})
	if err != nil {
		t.Fatalf("new local provider: %v", err)
	}
	svc, err := core.NewService(core.Config{DefaultProvider: local.ProviderID}, core.WithProviders(provider))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCustomerCommands_DelegateAndStoreResult(t *testing.T) {
	svc := newTestService(t)

	collector := gocmd.NewResult[core.Customer]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewCreateCustomerCommand(svc).Execute(ctx, CreateCustomerMessage{
		Provider: local.ProviderID,
		Params:   core.CreateCustomerParams{Email: "ada@example.com", Name: "Ada"},
	})
	if err != nil {
		t.Fatalf("execute create customer: %v", err)
	}
	created, ok := collector.Load()
	if !ok || created.ID == "" || created.Email != "ada@example.com" {
		t.Fatalf("unexpected stored customer %#v", created)
	}

	updated := gocmd.NewResult[core.Customer]()
	ctx = gocmd.ContextWithResult(context.Background(), updated)
	if err := NewUpdateCustomerCommand(svc).Execute(ctx, UpdateCustomerMessage{
		Params: core.UpdateCustomerParams{ID: created.ID, Name: "Ada L."},
	}); err != nil {
		t.Fatalf("execute update customer (default provider): %v", err)
	}
	if got, _ := updated.Load(); got.Name != "Ada L." {
		t.Fatalf("unexpected updated customer %#v", got)
	}

	if err := NewDeleteCustomerCommand(svc).Execute(context.Background(), DeleteCustomerMessage{ID: created.ID}); err != nil {
		t.Fatalf("execute delete customer: %v", err)
	}
	err = NewDeleteCustomerCommand(svc).Execute(context.Background(), DeleteCustomerMessage{ID: created.ID})
	if !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected not found validation error, got %v", err)
	}
}

func TestPaymentCommands_RefundFlow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	payments := gocmd.NewResult[core.Payment]()
	if err := NewCreatePaymentCommand(svc).Execute(gocmd.ContextWithResult(ctx, payments), CreatePaymentMessage{
		Params: core.CreatePaymentParams{Amount: 1500, Currency: "USD"},
	}); err != nil {
		t.Fatalf("execute create payment: %v", err)
	}
	payment, _ := payments.Load()
	if payment.ID == "" || payment.Status != core.PaymentRequiresAction {
		t.Fatalf("unexpected payment %#v", payment)
	}

	err := NewCreateRefundCommand(svc).Execute(ctx, CreateRefundMessage{Params: core.CreateRefundParams{PaymentID: payment.ID}})
	if !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected refund of unsettled payment to fail, got %v", err)
	}
	if err := NewDeletePaymentCommand(svc).Execute(ctx, DeletePaymentMessage{ID: payment.ID}); err != nil {
		t.Fatalf("execute delete payment: %v", err)
	}
	provider, err := svc.Provider(local.ProviderID)
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	retrieved, err := provider.RetrievePayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("retrieve payment: %v", err)
	}
	if retrieved.Status != core.PaymentCanceled {
		t.Fatalf("expected canceled payment, got %q", retrieved.Status)
	}
}

func TestCommands_PropagateResolverErrors(t *testing.T) {
	resolver := stubResolver{err: errors.New("registry offline")}
	err := NewCreateCheckoutCommand(resolver).Execute(context.Background(), CreateCheckoutMessage{Provider: "stripe"})
	if err == nil || err.Error() != "registry offline" {
		t.Fatalf("expected resolver error, got %v", err)
	}

	svc := newTestService(t)
	err = NewDeleteRefundCommand(svc).Execute(context.Background(), DeleteRefundMessage{Provider: "adyen", ID: "re_1"})
	if !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected unknown provider validation error, got %v", err)
	}
}

func TestMessages_Validate(t *testing.T) {
	tests := []struct {
		name  string
		msg   interface{ Validate() error }
		field string
	}{
		{name: "create customer", msg: CreateCustomerMessage{Provider: "stripe", Params: core.CreateCustomerParams{Name: "Ada"}}, field: "email"},
		{name: "update checkout", msg: UpdateCheckoutMessage{Params: core.UpdateCheckoutParams{}}, field: "id"},
		{name: "delete subscription", msg: DeleteSubscriptionMessage{Provider: "stripe"}, field: "id"},
		{name: "update refund", msg: UpdateRefundMessage{Provider: "paypal"}, field: "id"},
		{name: "create payment", msg: CreatePaymentMessage{Params: core.CreatePaymentParams{Currency: "USD"}}, field: "amount"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if !core.IsKind(err, core.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			found := false
			for _, violation := range core.Violations(err) {
				if violation.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected violation on %q, got %v", tc.field, core.Violations(err))
			}
		})
	}

	valid := CreateCustomerMessage{Params: core.CreateCustomerParams{Email: "ada@example.com", Name: "Ada"}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if got := core.ProviderOf((DeleteRefundMessage{Provider: "stripe"}).Validate()); got != "stripe" {
		t.Fatalf("expected provider stamped on validation error, got %q", got)
	}
}

func TestCommand_NilResolverReturnsRichError(t *testing.T) {
	var cmd *CreatePaymentCommand
	err := cmd.Execute(context.Background(), CreatePaymentMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if !core.IsKind(err, core.KindConfiguration) {
		t.Fatalf("expected configuration kind, got %q", core.KindOf(err))
	}
}

type stubResolver struct {
	provider core.Provider
	err      error
}

func (s stubResolver) Provider(string) (core.Provider, error) {
	return s.provider, s.err
}
