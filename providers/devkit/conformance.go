package devkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/webhooks"
)

// Invoke calls the provider method behind capability with zero inputs.
func Invoke(ctx context.Context, provider core.Provider, capability core.Capability) error {
	var err error
	switch capability {
	case core.CapCreateCheckout:
		_, err = provider.CreateCheckout(ctx, core.CreateCheckoutParams{})
	case core.CapRetrieveCheckout:
		_, err = provider.RetrieveCheckout(ctx, "")
	case core.CapUpdateCheckout:
		_, err = provider.UpdateCheckout(ctx, core.UpdateCheckoutParams{})
	case core.CapDeleteCheckout:
		_, err = provider.DeleteCheckout(ctx, "")
	case core.CapCreateCustomer:
		_, err = provider.CreateCustomer(ctx, core.CreateCustomerParams{})
	case core.CapRetrieveCustomer:
		_, err = provider.RetrieveCustomer(ctx, "")
	case core.CapUpdateCustomer:
		_, err = provider.UpdateCustomer(ctx, core.UpdateCustomerParams{})
	case core.CapDeleteCustomer:
		_, err = provider.DeleteCustomer(ctx, "")
	case core.CapCreateSubscription:
		_, err = provider.CreateSubscription(ctx, core.CreateSubscriptionParams{})
	case core.CapRetrieveSubscription:
		_, err = provider.RetrieveSubscription(ctx, "")
	case core.CapUpdateSubscription:
		_, err = provider.UpdateSubscription(ctx, core.UpdateSubscriptionParams{})
	case core.CapDeleteSubscription:
		_, err = provider.DeleteSubscription(ctx, "")
	case core.CapCreatePayment:
		_, err = provider.CreatePayment(ctx, core.CreatePaymentParams{})
	case core.CapRetrievePayment:
		_, err = provider.RetrievePayment(ctx, "")
	case core.CapUpdatePayment:
		_, err = provider.UpdatePayment(ctx, core.UpdatePaymentParams{})
	case core.CapDeletePayment:
		_, err = provider.DeletePayment(ctx, "")
	case core.CapCreateRefund:
		_, err = provider.CreateRefund(ctx, core.CreateRefundParams{})
	case core.CapRetrieveRefund:
		_, err = provider.RetrieveRefund(ctx, "")
	case core.CapUpdateRefund:
		_, err = provider.UpdateRefund(ctx, "", nil)
	case core.CapDeleteRefund:
		_, err = provider.DeleteRefund(ctx, "")
	case core.CapHandleWebhook:
		_, err = provider.HandleWebhook(ctx, core.WebhookDelivery{})
	default:
		return fmt.Errorf("devkit: unknown capability %q", capability)
	}
	return err
}

// ValidateUnsupportedCapabilities checks that every listed capability fails
// with NotImplementedError carrying the expected future_support hint, and
// that every other capability fails for a different reason.
func ValidateUnsupportedCapabilities(ctx context.Context, provider core.Provider, unsupported map[core.Capability]bool) error {
	if provider == nil {
		return fmt.Errorf("devkit: provider is required")
	}
	if strings.TrimSpace(provider.ID()) == "" {
		return fmt.Errorf("devkit: provider id is required")
	}
	for _, capability := range AllCapabilities() {
		err := Invoke(ctx, provider, capability)
		wantFuture, listed := unsupported[capability]
		if !listed {
			if core.IsKind(err, core.KindNotImplemented) {
				return fmt.Errorf("devkit: %s: %s unexpectedly not implemented", provider.ID(), capability)
			}
			continue
		}
		if !core.IsKind(err, core.KindNotImplemented) {
			return fmt.Errorf("devkit: %s: %s expected NotImplementedError, got %v", provider.ID(), capability, err)
		}
		future, ok := core.FutureSupport(err)
		if !ok || future != wantFuture {
			return fmt.Errorf("devkit: %s: %s future_support=%v, want %v", provider.ID(), capability, future, wantFuture)
		}
	}
	return nil
}

func AllCapabilities() []core.Capability {
	return []core.Capability{
		core.CapCreateCheckout, core.CapRetrieveCheckout, core.CapUpdateCheckout, core.CapDeleteCheckout,
		core.CapCreateCustomer, core.CapRetrieveCustomer, core.CapUpdateCustomer, core.CapDeleteCustomer,
		core.CapCreateSubscription, core.CapRetrieveSubscription, core.CapUpdateSubscription, core.CapDeleteSubscription,
		core.CapCreatePayment, core.CapRetrievePayment, core.CapUpdatePayment, core.CapDeletePayment,
		core.CapCreateRefund, core.CapRetrieveRefund, core.CapUpdateRefund, core.CapDeleteRefund,
		core.CapHandleWebhook,
	}
}

// ValidateDeduperConformance runs the claim, release and complete cycle a
// webhooks.Deduper must honor.
func ValidateDeduperConformance(ctx context.Context, deduper webhooks.Deduper, provider string, eventID string) error {
	if deduper == nil {
		return fmt.Errorf("devkit: deduper is required")
	}
	claimed, err := deduper.Claim(ctx, provider, eventID)
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("devkit: first claim should be accepted")
	}
	if claimed, err := deduper.Claim(ctx, provider, eventID); err != nil {
		return err
	} else if claimed {
		return fmt.Errorf("devkit: second claim should be rejected while in flight")
	}
	if err := deduper.Release(ctx, provider, eventID); err != nil {
		return err
	}
	if claimed, err := deduper.Claim(ctx, provider, eventID); err != nil {
		return err
	} else if !claimed {
		return fmt.Errorf("devkit: released event should be claimable again")
	}
	if err := deduper.Complete(ctx, provider, eventID); err != nil {
		return err
	}
	if claimed, err := deduper.Claim(ctx, provider, eventID); err != nil {
		return err
	} else if claimed {
		return fmt.Errorf("devkit: completed event should not be claimable")
	}
	return nil
}
