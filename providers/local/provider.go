package local

import (
	"context"
	"strconv"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/metadata"
	"github.com/goliatone/go-payments/webhooks"
)

const (
	lookupSuccessURL = "success_url"
	lookupCancelURL  = "cancel_url"
	lookupReturnURL  = "return_url"
	lookupTrialDays  = "trial_days"
	refCheckout      = "checkout"
)

// Provider is an in-process payment backend. It keeps every resource in
// memory, enforces the refund ledger and emits signed webhook batches for
// every state change. It exists for tests, demos and local development.
type Provider struct {
	config   Config
	codec    metadata.Codec
	verifier webhooks.TimestampedHMACVerifier
	logger   core.Logger

	mu    sync.Mutex
	state *state
}

var _ core.Provider = (*Provider)(nil)

func New(cfg Config) (*Provider, error) {
	cfg = cfg.normalized()
	if cfg.WebhookSecret == "" {
		return nil, core.NewConfigurationError(ProviderID, []string{EnvWebhookSecret})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	return &Provider{
		config: cfg,
		codec:  metadata.New(ProviderID, cfg.MetadataValueLimit),
		verifier: webhooks.TimestampedHMACVerifier{
			Provider:        ProviderID,
			SignatureHeader: SignatureHeader,
			TimestampHeader: TimestampHeader,
			Secret:          cfg.WebhookSecret,
			Encoding:        webhooks.EncodingHex,
			Tolerance:       cfg.Tolerance,
			Now:             cfg.Now,
		},
		logger: logger,
		state:  newState(),
	}, nil
}

func (p *Provider) ID() string { return ProviderID }

func (p *Provider) now() time.Time {
	return p.config.Now()
}

func aborted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return core.ClassifyError(ProviderID, err)
	}
	return nil
}

func (p *Provider) customerOut(r record[core.Customer]) core.Customer {
	out := r.value
	out.Metadata, _ = p.unpack(r.bag)
	return out
}

func (p *Provider) checkoutOut(r record[core.Checkout]) core.Checkout {
	out := r.value
	out.Metadata, _ = p.unpack(r.bag)
	return out
}

func (p *Provider) subscriptionOut(r record[core.Subscription]) core.Subscription {
	out := r.value
	out.Metadata, _ = p.unpack(r.bag)
	return out
}

func (p *Provider) paymentOut(r record[core.Payment]) core.Payment {
	out := r.value
	out.Metadata, _ = p.unpack(r.bag)
	return out
}

func (p *Provider) refundOut(r record[core.Refund]) core.Refund {
	out := r.value
	out.Metadata, _ = p.unpack(r.bag)
	return out
}

func (p *Provider) CreateCustomer(ctx context.Context, params core.CreateCustomerParams) (core.Customer, error) {
	if err := core.Validate(params); err != nil {
		return core.Customer{}, core.MapError(ProviderID, err)
	}
	if err := aborted(ctx); err != nil {
		return core.Customer{}, err
	}
	bag, err := p.pack(params.Metadata, metadata.DefaultInternal())
	if err != nil {
		return core.Customer{}, err
	}
	now := p.now()
	r := record[core.Customer]{
		value: core.Customer{
			ID:        newID("cus"),
			Provider:  ProviderID,
			Email:     params.Email,
			Name:      params.Name,
			Phone:     params.Phone,
			Address:   params.Address,
			CreatedAt: now,
			UpdatedAt: now,
		},
		bag: bag,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.customers[r.value.ID] = r
	out := p.customerOut(r)
	p.emit(core.EventCustomerCreated, out)
	return out, nil
}

func (p *Provider) RetrieveCustomer(ctx context.Context, id string) (core.Customer, error) {
	if err := aborted(ctx); err != nil {
		return core.Customer{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.customers, "customer", id)
	if err != nil {
		return core.Customer{}, err
	}
	return p.customerOut(r), nil
}

func (p *Provider) UpdateCustomer(ctx context.Context, params core.UpdateCustomerParams) (core.Customer, error) {
	if err := core.Validate(params); err != nil {
		return core.Customer{}, core.MapError(ProviderID, err)
	}
	if err := aborted(ctx); err != nil {
		return core.Customer{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.customers, "customer", params.ID)
	if err != nil {
		return core.Customer{}, err
	}
	if params.Email != "" {
		r.value.Email = params.Email
	}
	if params.Name != "" {
		r.value.Name = params.Name
	}
	if params.Phone != "" {
		r.value.Phone = params.Phone
	}
	if params.Address != nil {
		r.value.Address = params.Address
	}
	if r.bag, err = p.repack(r.bag, params.Metadata); err != nil {
		return core.Customer{}, err
	}
	r.value.UpdatedAt = p.now()
	p.state.customers[r.value.ID] = r
	out := p.customerOut(r)
	p.emit(core.EventCustomerUpdated, out)
	return out, nil
}

func (p *Provider) DeleteCustomer(ctx context.Context, id string) (core.Customer, error) {
	if err := aborted(ctx); err != nil {
		return core.Customer{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.customers, "customer", id)
	if err != nil {
		return core.Customer{}, err
	}
	delete(p.state.customers, r.value.ID)
	out := p.customerOut(r)
	p.emit(core.EventCustomerDeleted, out)
	return out, nil
}

func (p *Provider) CreateCheckout(ctx context.Context, params core.CreateCheckoutParams) (core.Checkout, error) {
	if err := core.Validate(params); err != nil {
		return core.Checkout{}, core.MapError(ProviderID, err)
	}
	if err := aborted(ctx); err != nil {
		return core.Checkout{}, err
	}
	internal := metadata.DefaultInternal()
	if params.SuccessURL != "" {
		internal.Lookup[lookupSuccessURL] = params.SuccessURL
	}
	if params.CancelURL != "" {
		internal.Lookup[lookupCancelURL] = params.CancelURL
	}
	bag, err := p.pack(params.Metadata, internal)
	if err != nil {
		return core.Checkout{}, err
	}

	amount := params.Amount * params.Quantity
	currency := params.Currency
	for _, item := range params.Products {
		amount += item.Amount * item.Quantity
		if currency == "" {
			currency = item.Currency
		}
	}
	id := newID("cs")
	r := record[core.Checkout]{
		value: core.Checkout{
			ID:          id,
			Provider:    ProviderID,
			Customer:    params.Customer,
			SessionType: params.SessionType,
			ItemID:      params.ItemID,
			Quantity:    params.Quantity,
			Currency:    currency,
			Amount:      amount,
			Products:    append([]core.LineItem(nil), params.Products...),
			Status:      core.CheckoutOpen,
			PaymentURL:  p.config.CheckoutBase + "/checkout/" + id,
			CreatedAt:   p.now(),
		},
		bag: bag,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.checkouts[id] = r
	out := p.checkoutOut(r)
	p.emit(core.EventCheckoutCreated, out)
	return out, nil
}

func (p *Provider) RetrieveCheckout(ctx context.Context, id string) (core.Checkout, error) {
	if err := aborted(ctx); err != nil {
		return core.Checkout{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.checkouts, "checkout", id)
	if err != nil {
		return core.Checkout{}, err
	}
	return p.checkoutOut(r), nil
}

func (p *Provider) UpdateCheckout(ctx context.Context, params core.UpdateCheckoutParams) (core.Checkout, error) {
	if err := core.Validate(params); err != nil {
		return core.Checkout{}, core.MapError(ProviderID, err)
	}
	if err := aborted(ctx); err != nil {
		return core.Checkout{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.checkouts, "checkout", params.ID)
	if err != nil {
		return core.Checkout{}, err
	}
	if r.value.Status.Terminal() {
		return core.Checkout{}, conflict("status", "checkout is "+string(r.value.Status))
	}
	if params.Quantity > 0 && len(r.value.Products) == 0 && r.value.Quantity > 0 {
		r.value.Amount = r.value.Amount / r.value.Quantity * params.Quantity
		r.value.Quantity = params.Quantity
	}
	if r.bag, err = p.repack(r.bag, params.Metadata); err != nil {
		return core.Checkout{}, err
	}
	p.state.checkouts[r.value.ID] = r
	return p.checkoutOut(r), nil
}

// DeleteCheckout cancels an open session.
func (p *Provider) DeleteCheckout(ctx context.Context, id string) (core.Checkout, error) {
	if err := aborted(ctx); err != nil {
		return core.Checkout{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.checkouts, "checkout", id)
	if err != nil {
		return core.Checkout{}, err
	}
	if r.value.Status.Terminal() {
		return core.Checkout{}, conflict("status", "checkout is "+string(r.value.Status))
	}
	r.value.Status = core.CheckoutCanceled
	r.value.PaymentURL = ""
	p.state.checkouts[r.value.ID] = r
	return p.checkoutOut(r), nil
}

func periodEnd(start time.Time, interval core.BillingInterval) time.Time {
	switch interval {
	case core.IntervalDay:
		return start.AddDate(0, 0, 1)
	case core.IntervalWeek:
		return start.AddDate(0, 0, 7)
	case core.IntervalYear:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}

func (p *Provider) CreateSubscription(ctx context.Context, params core.CreateSubscriptionParams) (core.Subscription, error) {
	if err := core.Validate(params); err != nil {
		return core.Subscription{}, core.MapError(ProviderID, err)
	}
	if err := aborted(ctx); err != nil {
		return core.Subscription{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out, err := p.subscribe(params, "")
	if err != nil {
		return core.Subscription{}, err
	}
	return out, nil
}

// subscribe must run with p.mu held.
func (p *Provider) subscribe(params core.CreateSubscriptionParams, checkoutID string) (core.Subscription, error) {
	internal := metadata.DefaultInternal()
	if params.TrialDays > 0 {
		internal.Lookup[lookupTrialDays] = strconv.Itoa(params.TrialDays)
	}
	if checkoutID != "" {
		internal.Refs[refCheckout] = checkoutID
	}
	bag, err := p.pack(params.Metadata, internal)
	if err != nil {
		return core.Subscription{}, err
	}
	interval := params.BillingInterval
	if interval == "" {
		interval = core.IntervalMonth
	}
	start := p.now()
	end := periodEnd(start, interval)
	if params.TrialDays > 0 {
		end = start.AddDate(0, 0, params.TrialDays)
	}
	quantity := params.Quantity
	if quantity < 1 {
		quantity = 1
	}
	r := record[core.Subscription]{
		value: core.Subscription{
			ID:                 newID("sub"),
			Provider:           ProviderID,
			Customer:           params.Customer,
			ItemID:             params.ItemID,
			BillingInterval:    interval,
			Amount:             params.Amount * quantity,
			Quantity:           quantity,
			Currency:           params.Currency,
			Status:             core.SubscriptionActive,
			CurrentPeriodStart: start,
			CurrentPeriodEnd:   end,
			CustomFields:       core.CloneMetadata(params.CustomFields),
		},
		bag: bag,
	}
	p.state.subscriptions[r.value.ID] = r
	out := p.subscriptionOut(r)
	p.emit(core.EventSubscriptionCreated, out)
	return out, nil
}

func (p *Provider) RetrieveSubscription(ctx context.Context, id string) (core.Subscription, error) {
	if err := aborted(ctx); err != nil {
		return core.Subscription{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.subscriptions, "subscription", id)
	if err != nil {
		return core.Subscription{}, err
	}
	return p.subscriptionOut(r), nil
}

func (p *Provider) UpdateSubscription(ctx context.Context, params core.UpdateSubscriptionParams) (core.Subscription, error) {
	if err := core.Validate(params); err != nil {
		return core.Subscription{}, core.MapError(ProviderID, err)
	}
	if err := aborted(ctx); err != nil {
		return core.Subscription{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.subscriptions, "subscription", params.ID)
	if err != nil {
		return core.Subscription{}, err
	}
	if r.value.Status == core.SubscriptionCanceled || r.value.Status == core.SubscriptionExpired {
		return core.Subscription{}, conflict("status", "subscription is "+string(r.value.Status))
	}
	if params.ItemID != "" {
		r.value.ItemID = params.ItemID
	}
	if params.Quantity > 0 && r.value.Quantity > 0 {
		r.value.Amount = r.value.Amount / r.value.Quantity * params.Quantity
		r.value.Quantity = params.Quantity
	}
	if params.CancelAtPeriodEnd != nil {
		r.value.CancelAtPeriodEnd = *params.CancelAtPeriodEnd
	}
	if r.bag, err = p.repack(r.bag, params.Metadata); err != nil {
		return core.Subscription{}, err
	}
	p.state.subscriptions[r.value.ID] = r
	out := p.subscriptionOut(r)
	p.emit(core.EventSubscriptionUpdated, out)
	return out, nil
}

// DeleteSubscription cancels immediately and closes the current period.
func (p *Provider) DeleteSubscription(ctx context.Context, id string) (core.Subscription, error) {
	if err := aborted(ctx); err != nil {
		return core.Subscription{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.subscriptions, "subscription", id)
	if err != nil {
		return core.Subscription{}, err
	}
	if r.value.Status == core.SubscriptionCanceled {
		return core.Subscription{}, conflict("status", "subscription is already canceled")
	}
	r.value.Status = core.SubscriptionCanceled
	if now := p.now(); now.Before(r.value.CurrentPeriodEnd) && !now.Before(r.value.CurrentPeriodStart) {
		r.value.CurrentPeriodEnd = now
	}
	p.state.subscriptions[r.value.ID] = r
	out := p.subscriptionOut(r)
	p.emit(core.EventSubscriptionCanceled, out)
	return out, nil
}

func (p *Provider) CreatePayment(ctx context.Context, params core.CreatePaymentParams) (core.Payment, error) {
	if err := core.Validate(params); err != nil {
		return core.Payment{}, core.MapError(ProviderID, err)
	}
	if err := aborted(ctx); err != nil {
		return core.Payment{}, err
	}
	internal := metadata.DefaultInternal()
	if params.ReturnURL != "" {
		internal.Lookup[lookupReturnURL] = params.ReturnURL
	}
	bag, err := p.pack(params.Metadata, internal)
	if err != nil {
		return core.Payment{}, err
	}
	id := newID("pay")
	r := record[core.Payment]{
		value: core.Payment{
			ID:             id,
			Provider:       ProviderID,
			Amount:         params.Amount,
			Currency:       params.Currency,
			Status:         core.PaymentRequiresAction,
			ItemID:         params.ItemID,
			RequiresAction: true,
			PaymentURL:     p.config.CheckoutBase + "/pay/" + id,
			CreatedAt:      p.now(),
		},
		bag: bag,
	}
	if params.Customer != nil {
		r.value.Customer = *params.Customer
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.payments[id] = r
	out := p.paymentOut(r)
	p.emit(core.EventPaymentCreated, out)
	return out, nil
}

func (p *Provider) RetrievePayment(ctx context.Context, id string) (core.Payment, error) {
	if err := aborted(ctx); err != nil {
		return core.Payment{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.payments, "payment", id)
	if err != nil {
		return core.Payment{}, err
	}
	return p.paymentOut(r), nil
}

func (p *Provider) UpdatePayment(ctx context.Context, params core.UpdatePaymentParams) (core.Payment, error) {
	if err := core.Validate(params); err != nil {
		return core.Payment{}, core.MapError(ProviderID, err)
	}
	if err := aborted(ctx); err != nil {
		return core.Payment{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.payments, "payment", params.ID)
	if err != nil {
		return core.Payment{}, err
	}
	if params.Amount > 0 {
		if r.value.Status == core.PaymentSucceeded || r.value.Status == core.PaymentCanceled {
			return core.Payment{}, conflict("amount", "amount is fixed once the payment is "+string(r.value.Status))
		}
		r.value.Amount = params.Amount
	}
	if r.bag, err = p.repack(r.bag, params.Metadata); err != nil {
		return core.Payment{}, err
	}
	p.state.payments[r.value.ID] = r
	out := p.paymentOut(r)
	p.emit(core.EventPaymentUpdated, out)
	return out, nil
}

// DeletePayment cancels a payment that has not settled.
func (p *Provider) DeletePayment(ctx context.Context, id string) (core.Payment, error) {
	if err := aborted(ctx); err != nil {
		return core.Payment{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.payments, "payment", id)
	if err != nil {
		return core.Payment{}, err
	}
	if r.value.Status == core.PaymentSucceeded || r.value.Status == core.PaymentCanceled {
		return core.Payment{}, conflict("status", "payment is "+string(r.value.Status))
	}
	r.value.Status = core.PaymentCanceled
	r.value.RequiresAction = false
	r.value.PaymentURL = ""
	p.state.payments[r.value.ID] = r
	out := p.paymentOut(r)
	p.emit(core.EventPaymentUpdated, out)
	return out, nil
}

// CreateRefund refunds a settled payment. The sum of refunds never exceeds
// the payment amount; a zero Amount refunds what remains.
func (p *Provider) CreateRefund(ctx context.Context, params core.CreateRefundParams) (core.Refund, error) {
	if err := core.Validate(params); err != nil {
		return core.Refund{}, core.MapError(ProviderID, err)
	}
	if err := aborted(ctx); err != nil {
		return core.Refund{}, err
	}
	bag, err := p.pack(params.Metadata, metadata.DefaultInternal())
	if err != nil {
		return core.Refund{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	payment, err := lookup(p.state.payments, "payment", params.PaymentID)
	if err != nil {
		return core.Refund{}, err
	}
	if payment.value.Status != core.PaymentSucceeded {
		return core.Refund{}, conflict("payment_id", "only succeeded payments can be refunded")
	}
	remaining := payment.value.Amount - p.state.refunded[payment.value.ID]
	amount := params.Amount
	if amount == 0 {
		amount = remaining
	}
	if amount <= 0 || amount > remaining {
		return core.Refund{}, conflict("amount", "exceeds the refundable balance of "+strconv.FormatInt(remaining, 10))
	}
	if params.Currency != "" && !sameCurrency(params.Currency, payment.value.Currency) {
		return core.Refund{}, conflict("currency", "must match the payment currency "+payment.value.Currency)
	}
	r := record[core.Refund]{
		value: core.Refund{
			ID:        newID("re"),
			Provider:  ProviderID,
			PaymentID: payment.value.ID,
			Amount:    amount,
			Currency:  payment.value.Currency,
			Reason:    params.Reason,
			CreatedAt: p.now(),
		},
		bag: bag,
	}
	p.state.refunded[payment.value.ID] += amount
	p.state.refunds[r.value.ID] = r
	out := p.refundOut(r)
	p.emit(core.EventRefundCreated, out)
	return out, nil
}

func (p *Provider) RetrieveRefund(ctx context.Context, id string) (core.Refund, error) {
	if err := aborted(ctx); err != nil {
		return core.Refund{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := lookup(p.state.refunds, "refund", id)
	if err != nil {
		return core.Refund{}, err
	}
	return p.refundOut(r), nil
}

// UpdateRefund and DeleteRefund are rejected: a refund is final once
// issued, as on the hosted backends.
func (p *Provider) UpdateRefund(context.Context, string, map[string]string) (core.Refund, error) {
	return core.Refund{}, core.NewNotImplementedError(ProviderID, core.CapUpdateRefund, false)
}

func (p *Provider) DeleteRefund(context.Context, string) (core.Refund, error) {
	return core.Refund{}, core.NewNotImplementedError(ProviderID, core.CapDeleteRefund, false)
}

// Refunded reports the ledger balance refunded so far for a payment.
func (p *Provider) Refunded(paymentID string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.refunded[paymentID]
}
