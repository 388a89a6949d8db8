package stripe

import (
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
)

const (
	lookupItemID    = "item_id"
	lookupQuantity  = "quantity"
	lookupReturnURL = "return_url"
	lookupReason    = "reason"
	customFieldKey  = "cf:"
)

var (
	checkoutStatuses = core.StatusMapper[core.CheckoutStatus]{
		Provider: ProviderID,
		Field:    "checkout status",
		Table: map[string]core.CheckoutStatus{
			"open":     core.CheckoutOpen,
			"complete": core.CheckoutCompleted,
			"expired":  core.CheckoutExpired,
		},
	}
	subscriptionStatuses = core.StatusMapper[core.SubscriptionStatus]{
		Provider: ProviderID,
		Field:    "subscription status",
		Table: map[string]core.SubscriptionStatus{
			"active":             core.SubscriptionActive,
			"trialing":           core.SubscriptionActive,
			"past_due":           core.SubscriptionPastDue,
			"unpaid":             core.SubscriptionPastDue,
			"canceled":           core.SubscriptionCanceled,
			"incomplete":         core.SubscriptionPending,
			"paused":             core.SubscriptionPending,
			"incomplete_expired": core.SubscriptionExpired,
		},
	}
	paymentStatuses = core.StatusMapper[core.PaymentStatus]{
		Provider: ProviderID,
		Field:    "payment status",
		Table: map[string]core.PaymentStatus{
			"requires_payment_method": core.PaymentPending,
			"requires_confirmation":   core.PaymentPending,
			"requires_action":         core.PaymentRequiresAction,
			"processing":              core.PaymentProcessing,
			"requires_capture":        core.PaymentRequiresCapture,
			"succeeded":               core.PaymentSucceeded,
			"canceled":                core.PaymentCanceled,
		},
	}
	invoiceStatuses = core.StatusMapper[core.InvoiceStatus]{
		Provider: ProviderID,
		Field:    "invoice status",
		Table: map[string]core.InvoiceStatus{
			"paid":          core.InvoicePaid,
			"open":          core.InvoiceOpen,
			"draft":         core.InvoiceOpen,
			"uncollectible": core.InvoiceOpen,
		},
	}
	intervals = core.StatusMapper[core.BillingInterval]{
		Provider: ProviderID,
		Field:    "billing interval",
		Table: map[string]core.BillingInterval{
			"day":   core.IntervalDay,
			"week":  core.IntervalWeek,
			"month": core.IntervalMonth,
			"year":  core.IntervalYear,
		},
	}
)

// refundReasons are the only reason codes the refunds endpoint accepts.
// Free-form reasons travel in the internal metadata payload instead.
var refundReasons = map[string]bool{
	"duplicate":             true,
	"fraudulent":            true,
	"requested_by_customer": true,
}

func unix(seconds int64) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0).UTC()
}

func currency(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func (p *Provider) toCustomer(in wireCustomer) (core.Customer, error) {
	caller, _ := p.codec.Extract(in.Metadata)
	out := core.Customer{
		ID:        in.ID,
		Provider:  ProviderID,
		Email:     in.Email,
		Name:      in.Name,
		Phone:     in.Phone,
		Metadata:  caller,
		CreatedAt: unix(in.Created),
		UpdatedAt: unix(in.Created),
	}
	if in.Address != nil && in.Address.Country != "" {
		out.Address = &core.Address{
			Line1:      in.Address.Line1,
			Line2:      in.Address.Line2,
			City:       in.Address.City,
			State:      in.Address.State,
			PostalCode: in.Address.PostalCode,
			Country:    in.Address.Country,
		}
	}
	return out, nil
}

func (p *Provider) toCheckout(in wireCheckout) (core.Checkout, error) {
	status, err := checkoutStatuses.Map(in.Status)
	if err != nil {
		return core.Checkout{}, err
	}
	caller, internal := p.codec.Extract(in.Metadata)
	out := core.Checkout{
		ID:          in.ID,
		Provider:    ProviderID,
		Customer:    core.CustomerID(in.Customer.ID),
		SessionType: core.SessionOneTime,
		ItemID:      internal.Lookup[lookupItemID],
		Quantity:    parseQuantity(internal.Lookup[lookupQuantity]),
		Currency:    currency(in.Currency),
		Amount:      in.AmountTotal,
		Metadata:    caller,
		Status:      status,
		PaymentURL:  in.URL,
		CreatedAt:   unix(in.Created),
	}
	if in.Mode == "subscription" {
		out.SessionType = core.SessionRecurring
	}
	if out.Customer.ID == "" {
		email := in.CustomerEmail
		if in.CustomerDetails != nil {
			out.Customer.Name = in.CustomerDetails.Name
			out.Customer.Phone = in.CustomerDetails.Phone
			if in.CustomerDetails.Email != "" {
				email = in.CustomerDetails.Email
			}
		}
		out.Customer.Email = email
	}
	if in.LineItems != nil {
		for _, line := range in.LineItems.Data {
			out.Products = append(out.Products, toLineItem(line))
		}
	}
	return out, nil
}

func toLineItem(line wireLineItem) core.LineItem {
	amount := line.AmountTotal
	if amount == 0 {
		amount = line.Amount
	}
	code := line.Currency
	if code == "" {
		code = line.Price.Currency
	}
	return core.LineItem{
		ItemID:   line.Price.ID,
		Name:     line.Description,
		Quantity: line.Quantity,
		Amount:   amount,
		Currency: currency(code),
	}
}

func (p *Provider) toSubscription(in wireSubscription) (core.Subscription, error) {
	status, err := subscriptionStatuses.Map(in.Status)
	if err != nil {
		return core.Subscription{}, err
	}
	caller, internal := p.codec.Extract(in.Metadata)
	out := core.Subscription{
		ID:                 in.ID,
		Provider:           ProviderID,
		Customer:           core.CustomerID(in.Customer.ID),
		Status:             status,
		CurrentPeriodStart: unix(in.CurrentPeriodStart),
		CurrentPeriodEnd:   unix(in.CurrentPeriodEnd),
		CancelAtPeriodEnd:  in.CancelAtPeriodEnd,
		Metadata:           caller,
		CustomFields:       customFields(internal.Lookup),
	}
	if len(in.Items.Data) > 0 {
		item := in.Items.Data[0]
		out.ItemID = item.Price.ID
		out.Amount = item.Price.UnitAmount
		out.Currency = currency(item.Price.Currency)
		if item.Price.Recurring != nil {
			interval, err := intervals.Map(item.Price.Recurring.Interval)
			if err != nil {
				return core.Subscription{}, err
			}
			out.BillingInterval = interval
		}
		// Newer API versions report the billing period per item.
		if out.CurrentPeriodStart.IsZero() {
			out.CurrentPeriodStart = unix(item.CurrentPeriodStart)
			out.CurrentPeriodEnd = unix(item.CurrentPeriodEnd)
		}
	}
	return out, nil
}

func (p *Provider) toPayment(in wirePaymentIntent) (core.Payment, error) {
	status, err := paymentStatuses.Map(in.Status)
	if err != nil {
		return core.Payment{}, err
	}
	caller, internal := p.codec.Extract(in.Metadata)
	out := core.Payment{
		ID:             in.ID,
		Provider:       ProviderID,
		Amount:         in.Amount,
		Currency:       currency(in.Currency),
		Status:         status,
		Customer:       core.CustomerID(in.Customer.ID),
		ItemID:         internal.Lookup[lookupItemID],
		Metadata:       caller,
		RequiresAction: status == core.PaymentRequiresAction,
		PaymentURL:     internal.Lookup[lookupReturnURL],
		CreatedAt:      unix(in.Created),
	}
	if in.NextAction != nil && in.NextAction.RedirectToURL != nil {
		out.PaymentURL = in.NextAction.RedirectToURL.URL
	}
	return out, nil
}

func (p *Provider) toRefund(in wireRefund) (core.Refund, error) {
	caller, internal := p.codec.Extract(in.Metadata)
	reason := internal.Lookup[lookupReason]
	if reason == "" {
		reason = in.Reason
	}
	return core.Refund{
		ID:        in.ID,
		Provider:  ProviderID,
		PaymentID: in.PaymentIntent.ID,
		Amount:    in.Amount,
		Currency:  currency(in.Currency),
		Reason:    reason,
		Metadata:  caller,
		CreatedAt: unix(in.Created),
	}, nil
}

func (p *Provider) toInvoice(in wireInvoice) (core.Invoice, error) {
	status, err := invoiceStatuses.Map(in.Status)
	if err != nil {
		return core.Invoice{}, err
	}
	caller, _ := p.codec.Extract(in.Metadata)
	out := core.Invoice{
		ID:             in.ID,
		Provider:       ProviderID,
		SubscriptionID: in.Subscription.ID,
		BillingMode:    core.BillingOneTime,
		AmountPaid:     in.AmountPaid,
		Currency:       currency(in.Currency),
		Status:         status,
		Metadata:       caller,
		Customer:       core.CustomerID(in.Customer.ID),
	}
	if out.SubscriptionID == "" && in.Parent != nil && in.Parent.SubscriptionDetails != nil {
		out.SubscriptionID = in.Parent.SubscriptionDetails.Subscription.ID
	}
	if out.SubscriptionID != "" || strings.HasPrefix(in.BillingReason, "subscription") {
		out.BillingMode = core.BillingRecurring
	}
	if out.Customer.ID == "" {
		out.Customer = core.CustomerRef{Email: in.CustomerEmail, Name: in.CustomerName}
	}
	if paid := unix(in.Transitions.PaidAt); !paid.IsZero() {
		out.PaidAt = &paid
	}
	for _, line := range in.Lines.Data {
		out.LineItems = append(out.LineItems, toLineItem(line))
	}
	if len(in.CustomFields) > 0 {
		out.CustomFields = make(map[string]string, len(in.CustomFields))
		for _, field := range in.CustomFields {
			out.CustomFields[field.Name] = field.Value
		}
	}
	return out, nil
}

func customFields(lookup map[string]string) map[string]string {
	var out map[string]string
	for key, value := range lookup {
		name, ok := strings.CutPrefix(key, customFieldKey)
		if !ok {
			continue
		}
		if out == nil {
			out = map[string]string{}
		}
		out[name] = value
	}
	return out
}
