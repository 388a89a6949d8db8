package local

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/metadata"
)

// The methods below drive state changes a customer or the backend would
// cause on a real processor.

// CompleteCheckout marks an open session as paid. One-time sessions settle a
// payment; recurring sessions start a subscription. Both produce a paid
// invoice.
func (p *Provider) CompleteCheckout(ctx context.Context, id string) (core.Checkout, error) {
	if err := aborted(ctx); err != nil {
		return core.Checkout{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.checkouts, "checkout", id)
	if err != nil {
		return core.Checkout{}, err
	}
	if r.value.Status != core.CheckoutOpen {
		return core.Checkout{}, conflict("status", "checkout is "+string(r.value.Status))
	}
	caller, _ := p.unpack(r.bag)

	invoice := core.Invoice{
		ID:          newID("in"),
		Provider:    ProviderID,
		BillingMode: core.BillingOneTime,
		AmountPaid:  r.value.Amount,
		Currency:    r.value.Currency,
		Status:      core.InvoicePaid,
		LineItems:   checkoutLines(r.value),
		Metadata:    core.CloneMetadata(caller),
		Customer:    r.value.Customer,
	}
	paidAt := p.now()
	invoice.PaidAt = &paidAt

	if r.value.SessionType == core.SessionRecurring {
		sub, err := p.subscribe(core.CreateSubscriptionParams{
			Customer: r.value.Customer,
			ItemID:   r.value.ItemID,
			Amount:   r.value.Amount,
			Currency: r.value.Currency,
			Metadata: caller,
		}, r.value.ID)
		if err != nil {
			return core.Checkout{}, err
		}
		invoice.BillingMode = core.BillingRecurring
		invoice.SubscriptionID = sub.ID
	} else {
		bag, err := p.pack(caller, checkoutRef(r.value.ID))
		if err != nil {
			return core.Checkout{}, err
		}
		payment := record[core.Payment]{
			value: core.Payment{
				ID:        newID("pay"),
				Provider:  ProviderID,
				Amount:    r.value.Amount,
				Currency:  r.value.Currency,
				Status:    core.PaymentSucceeded,
				Customer:  r.value.Customer,
				ItemID:    r.value.ItemID,
				CreatedAt: paidAt,
			},
			bag: bag,
		}
		p.state.payments[payment.value.ID] = payment
		p.emit(core.EventPaymentCreated, p.paymentOut(payment))
	}

	r.value.Status = core.CheckoutCompleted
	r.value.PaymentURL = ""
	p.state.checkouts[r.value.ID] = r
	p.state.invoices[invoice.ID] = invoice
	out := p.checkoutOut(r)
	p.emit(core.EventCheckoutCompleted, out)
	p.emit(core.EventInvoiceGenerated, invoice)
	return out, nil
}

// ExpireCheckout closes an open session without payment.
func (p *Provider) ExpireCheckout(ctx context.Context, id string) (core.Checkout, error) {
	if err := aborted(ctx); err != nil {
		return core.Checkout{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.checkouts, "checkout", id)
	if err != nil {
		return core.Checkout{}, err
	}
	if r.value.Status != core.CheckoutOpen {
		return core.Checkout{}, conflict("status", "checkout is "+string(r.value.Status))
	}
	r.value.Status = core.CheckoutExpired
	r.value.PaymentURL = ""
	p.state.checkouts[r.value.ID] = r
	out := p.checkoutOut(r)
	p.emit(core.EventCheckoutExpired, out)
	return out, nil
}

// CapturePayment settles a payment that is waiting for the customer.
func (p *Provider) CapturePayment(ctx context.Context, id string) (core.Payment, error) {
	return p.settle(ctx, id, core.PaymentSucceeded)
}

// FailPayment declines a payment that is waiting for the customer.
func (p *Provider) FailPayment(ctx context.Context, id string) (core.Payment, error) {
	return p.settle(ctx, id, core.PaymentFailed)
}

func (p *Provider) settle(ctx context.Context, id string, status core.PaymentStatus) (core.Payment, error) {
	if err := aborted(ctx); err != nil {
		return core.Payment{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.payments, "payment", id)
	if err != nil {
		return core.Payment{}, err
	}
	switch r.value.Status {
	case core.PaymentSucceeded, core.PaymentCanceled, core.PaymentFailed:
		return core.Payment{}, conflict("status", "payment is "+string(r.value.Status))
	}
	r.value.Status = status
	r.value.RequiresAction = false
	r.value.PaymentURL = ""
	p.state.payments[r.value.ID] = r
	out := p.paymentOut(r)
	p.emit(core.EventPaymentUpdated, out)
	return out, nil
}

// RenewSubscription rolls an active subscription into its next period and
// bills it. Subscriptions flagged to cancel at period end are canceled
// instead.
func (p *Provider) RenewSubscription(ctx context.Context, id string) (core.Subscription, error) {
	if err := aborted(ctx); err != nil {
		return core.Subscription{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.subscriptions, "subscription", id)
	if err != nil {
		return core.Subscription{}, err
	}
	if r.value.Status != core.SubscriptionActive {
		return core.Subscription{}, conflict("status", "subscription is "+string(r.value.Status))
	}
	if r.value.CancelAtPeriodEnd {
		r.value.Status = core.SubscriptionCanceled
		p.state.subscriptions[r.value.ID] = r
		out := p.subscriptionOut(r)
		p.emit(core.EventSubscriptionCanceled, out)
		return out, nil
	}

	start := r.value.CurrentPeriodEnd
	r.value.CurrentPeriodStart = start
	r.value.CurrentPeriodEnd = periodEnd(start, r.value.BillingInterval)
	p.state.subscriptions[r.value.ID] = r
	out := p.subscriptionOut(r)

	paidAt := p.now()
	invoice := core.Invoice{
		ID:             newID("in"),
		Provider:       ProviderID,
		SubscriptionID: out.ID,
		BillingMode:    core.BillingRecurring,
		AmountPaid:     out.Amount,
		Currency:       out.Currency,
		Status:         core.InvoicePaid,
		PaidAt:         &paidAt,
		LineItems: []core.LineItem{{
			ItemID:   out.ItemID,
			Quantity: 1,
			Amount:   out.Amount,
			Currency: out.Currency,
		}},
		CustomFields: core.CloneMetadata(out.CustomFields),
		Metadata:     core.CloneMetadata(out.Metadata),
		Customer:     out.Customer,
	}
	p.state.invoices[invoice.ID] = invoice
	p.emit(core.EventSubscriptionUpdated, out)
	p.emit(core.EventInvoiceGenerated, invoice)
	return out, nil
}

// Advance moves the provider clock forward by d.
func (p *Provider) Advance(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.config.Now().Add(d)
	p.config.Now = func() time.Time { return now }
	p.verifier.Now = p.config.Now
}

func checkoutLines(c core.Checkout) []core.LineItem {
	if len(c.Products) > 0 {
		return append([]core.LineItem(nil), c.Products...)
	}
	unit := c.Amount
	if c.Quantity > 0 {
		unit = c.Amount / c.Quantity
	}
	return []core.LineItem{{ItemID: c.ItemID, Quantity: c.Quantity, Amount: unit, Currency: c.Currency}}
}

func checkoutRef(id string) metadata.Internal {
	internal := metadata.DefaultInternal()
	internal.Refs[refCheckout] = id
	return internal
}

func sameCurrency(a string, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
