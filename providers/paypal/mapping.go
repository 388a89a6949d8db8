package paypal

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/metadata"
)

// maxCustomID is the size of the single free-form field PayPal keeps per
// order, subscription and refund.
const maxCustomID = 127

const (
	lookupItemID   = "item_id"
	lookupQuantity = "quantity"
	refCustomer    = "customer"
	customFieldKey = "cf:"
)

var (
	orderCheckoutStatuses = core.StatusMapper[core.CheckoutStatus]{
		Provider: ProviderID,
		Field:    "order status",
		Table: map[string]core.CheckoutStatus{
			"created":               core.CheckoutOpen,
			"saved":                 core.CheckoutOpen,
			"approved":              core.CheckoutOpen,
			"payer_action_required": core.CheckoutOpen,
			"completed":             core.CheckoutCompleted,
			"voided":                core.CheckoutCanceled,
		},
	}
	subscriptionCheckoutStatuses = core.StatusMapper[core.CheckoutStatus]{
		Provider: ProviderID,
		Field:    "subscription status",
		Table: map[string]core.CheckoutStatus{
			"approval_pending": core.CheckoutOpen,
			"approved":         core.CheckoutOpen,
			"active":           core.CheckoutCompleted,
			"suspended":        core.CheckoutCompleted,
			"cancelled":        core.CheckoutCanceled,
			"expired":          core.CheckoutExpired,
		},
	}
	subscriptionStatuses = core.StatusMapper[core.SubscriptionStatus]{
		Provider: ProviderID,
		Field:    "subscription status",
		Table: map[string]core.SubscriptionStatus{
			"approval_pending": core.SubscriptionPending,
			"approved":         core.SubscriptionPending,
			"active":           core.SubscriptionActive,
			"suspended":        core.SubscriptionPastDue,
			"cancelled":        core.SubscriptionCanceled,
			"expired":          core.SubscriptionExpired,
		},
	}
	orderPaymentStatuses = core.StatusMapper[core.PaymentStatus]{
		Provider: ProviderID,
		Field:    "order status",
		Table: map[string]core.PaymentStatus{
			"created":               core.PaymentRequiresAction,
			"saved":                 core.PaymentPending,
			"payer_action_required": core.PaymentRequiresAction,
			"approved":              core.PaymentRequiresCapture,
			"completed":             core.PaymentSucceeded,
			"voided":                core.PaymentCanceled,
		},
	}
	captureStatuses = core.StatusMapper[core.PaymentStatus]{
		Provider: ProviderID,
		Field:    "capture status",
		Table: map[string]core.PaymentStatus{
			"pending":            core.PaymentProcessing,
			"completed":          core.PaymentSucceeded,
			"refunded":           core.PaymentSucceeded,
			"partially_refunded": core.PaymentSucceeded,
			"declined":           core.PaymentFailed,
			"failed":             core.PaymentFailed,
		},
	}
)

func parseTime(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

func link(links []wireLink, rels ...string) string {
	for _, rel := range rels {
		for _, candidate := range links {
			if strings.EqualFold(candidate.Rel, rel) {
				return candidate.Href
			}
		}
	}
	return ""
}

// encodeCustomID packs caller metadata and the internal payload into the
// custom_id field. A default payload is left out to save space.
func (p *Provider) encodeCustomID(caller map[string]string, internal metadata.Internal) (string, error) {
	if err := p.codec.Guard(caller); err != nil {
		return "", err
	}
	merged := core.CloneMetadata(caller)
	if !internal.IsDefault() {
		embedded, err := p.codec.Embed(caller, internal)
		if err != nil {
			return "", err
		}
		merged = embedded
	}
	if len(merged) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return "", core.NewUnknownError(ProviderID, "encode custom_id", err)
	}
	if len(raw) > maxCustomID {
		return "", core.NewValidationError(ProviderID, "metadata does not fit in custom_id", goerrors.FieldError{
			Field:   "metadata",
			Message: "encoded size " + strconv.Itoa(len(raw)) + " exceeds " + strconv.Itoa(maxCustomID),
		})
	}
	return string(raw), nil
}

// decodeCustomID never fails. Values written by other integrations are
// surfaced to the caller under the custom_id key.
func (p *Provider) decodeCustomID(raw string) (map[string]string, metadata.Internal) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]string{}, metadata.DefaultInternal()
	}
	merged := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		return map[string]string{"custom_id": raw}, metadata.DefaultInternal()
	}
	return p.codec.Extract(merged)
}

func firstUnit(units []wirePurchaseUnit) wirePurchaseUnit {
	if len(units) == 0 {
		return wirePurchaseUnit{}
	}
	return units[0]
}

func toLineItems(items []wireItem) ([]core.LineItem, error) {
	var out []core.LineItem
	for _, item := range items {
		amount, err := parseAmount(item.UnitAmount.Value, item.UnitAmount.CurrencyCode)
		if err != nil {
			return nil, err
		}
		quantity, _ := strconv.ParseInt(item.Quantity, 10, 64)
		id := item.SKU
		if id == "" {
			id = item.Name
		}
		out = append(out, core.LineItem{
			ItemID:   id,
			Name:     item.Name,
			Quantity: quantity,
			Amount:   amount,
			Currency: item.UnitAmount.CurrencyCode,
		})
	}
	return out, nil
}

func payerRef(payer *wirePayer, refs map[string]string) core.CustomerRef {
	if id := refs[refCustomer]; id != "" {
		return core.CustomerID(id)
	}
	if payer == nil {
		return core.CustomerRef{}
	}
	ref := core.CustomerRef{Email: payer.EmailAddress}
	if payer.Name != nil {
		ref.Name = strings.TrimSpace(payer.Name.GivenName + " " + payer.Name.Surname)
	}
	if !ref.IsInline() {
		ref.ID = payer.PayerID
	}
	return ref
}

func (p *Provider) orderToCheckout(in wireOrder) (core.Checkout, error) {
	status, err := orderCheckoutStatuses.Map(in.Status)
	if err != nil {
		return core.Checkout{}, err
	}
	unit := firstUnit(in.PurchaseUnits)
	caller, internal := p.decodeCustomID(unit.CustomID)
	amount, err := parseAmount(unit.Amount.Value, unit.Amount.CurrencyCode)
	if err != nil {
		return core.Checkout{}, err
	}
	products, err := toLineItems(unit.Items)
	if err != nil {
		return core.Checkout{}, err
	}
	quantity, _ := strconv.ParseInt(internal.Lookup[lookupQuantity], 10, 64)
	return core.Checkout{
		ID:          in.ID,
		Provider:    ProviderID,
		Customer:    payerRef(in.Payer, internal.Refs),
		SessionType: core.SessionOneTime,
		ItemID:      internal.Lookup[lookupItemID],
		Quantity:    quantity,
		Currency:    unit.Amount.CurrencyCode,
		Amount:      amount,
		Products:    products,
		Metadata:    caller,
		Status:      status,
		PaymentURL:  link(in.Links, "payer-action", "approve"),
		CreatedAt:   parseTime(in.CreateTime),
	}, nil
}

func (p *Provider) subscriptionToCheckout(in wireSubscription) (core.Checkout, error) {
	status, err := subscriptionCheckoutStatuses.Map(in.Status)
	if err != nil {
		return core.Checkout{}, err
	}
	caller, internal := p.decodeCustomID(in.CustomID)
	quantity, _ := strconv.ParseInt(in.Quantity, 10, 64)
	return core.Checkout{
		ID:          in.ID,
		Provider:    ProviderID,
		Customer:    subscriberRef(in.Subscriber, internal.Refs),
		SessionType: core.SessionRecurring,
		ItemID:      in.PlanID,
		Quantity:    quantity,
		Metadata:    caller,
		Status:      status,
		PaymentURL:  link(in.Links, "approve"),
		CreatedAt:   parseTime(in.CreateTime),
	}, nil
}

func subscriberRef(subscriber *wireSubscriber, refs map[string]string) core.CustomerRef {
	if subscriber == nil {
		return payerRef(nil, refs)
	}
	return payerRef(&wirePayer{
		EmailAddress: subscriber.EmailAddress,
		PayerID:      subscriber.PayerID,
		Name:         subscriber.Name,
	}, refs)
}

func (p *Provider) toSubscription(in wireSubscription) (core.Subscription, error) {
	status, err := subscriptionStatuses.Map(in.Status)
	if err != nil {
		return core.Subscription{}, err
	}
	caller, internal := p.decodeCustomID(in.CustomID)
	out := core.Subscription{
		ID:                 in.ID,
		Provider:           ProviderID,
		Customer:           subscriberRef(in.Subscriber, internal.Refs),
		ItemID:             in.PlanID,
		Status:             status,
		CurrentPeriodStart: parseTime(in.StartTime),
		Metadata:           caller,
		CustomFields:       customFields(internal.Lookup),
	}
	if in.BillingInfo != nil {
		out.CurrentPeriodEnd = parseTime(in.BillingInfo.NextBillingTime)
		if last := in.BillingInfo.LastPayment; last != nil {
			out.CurrentPeriodStart = parseTime(last.Time)
			out.Currency = last.Amount.CurrencyCode
			out.Amount, err = parseAmount(last.Amount.Value, last.Amount.CurrencyCode)
			if err != nil {
				return core.Subscription{}, err
			}
		}
	}
	if !out.CurrentPeriodEnd.IsZero() && out.CurrentPeriodEnd.Before(out.CurrentPeriodStart) {
		out.CurrentPeriodEnd = time.Time{}
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

func (p *Provider) orderToPayment(in wireOrder) (core.Payment, error) {
	status, err := orderPaymentStatuses.Map(in.Status)
	if err != nil {
		return core.Payment{}, err
	}
	unit := firstUnit(in.PurchaseUnits)
	caller, internal := p.decodeCustomID(unit.CustomID)
	amount, err := parseAmount(unit.Amount.Value, unit.Amount.CurrencyCode)
	if err != nil {
		return core.Payment{}, err
	}
	return core.Payment{
		ID:             in.ID,
		Provider:       ProviderID,
		Amount:         amount,
		Currency:       unit.Amount.CurrencyCode,
		Status:         status,
		Customer:       payerRef(in.Payer, internal.Refs),
		ItemID:         internal.Lookup[lookupItemID],
		Metadata:       caller,
		RequiresAction: status == core.PaymentRequiresAction,
		PaymentURL:     link(in.Links, "payer-action", "approve"),
		CreatedAt:      parseTime(in.CreateTime),
	}, nil
}

// captureToPayment reports a capture under the id of the order it settles.
func (p *Provider) captureToPayment(in wireCapture) (core.Payment, error) {
	status, err := captureStatuses.Map(in.Status)
	if err != nil {
		return core.Payment{}, err
	}
	caller, internal := p.decodeCustomID(in.CustomID)
	amount, err := parseAmount(in.Amount.Value, in.Amount.CurrencyCode)
	if err != nil {
		return core.Payment{}, err
	}
	id := in.ID
	if in.SupplementaryData != nil && in.SupplementaryData.RelatedIDs.OrderID != "" {
		id = in.SupplementaryData.RelatedIDs.OrderID
	}
	return core.Payment{
		ID:        id,
		Provider:  ProviderID,
		Amount:    amount,
		Currency:  in.Amount.CurrencyCode,
		Status:    status,
		Customer:  payerRef(nil, internal.Refs),
		ItemID:    internal.Lookup[lookupItemID],
		Metadata:  caller,
		CreatedAt: parseTime(in.CreateTime),
	}, nil
}

func (p *Provider) toRefund(in wireRefund, paymentID string) (core.Refund, error) {
	caller, _ := p.decodeCustomID(in.CustomID)
	amount, err := parseAmount(in.Amount.Value, in.Amount.CurrencyCode)
	if err != nil {
		return core.Refund{}, err
	}
	if up := link(in.Links, "up"); up != "" {
		paymentID = up[strings.LastIndex(up, "/")+1:]
	}
	return core.Refund{
		ID:        in.ID,
		Provider:  ProviderID,
		PaymentID: paymentID,
		Amount:    amount,
		Currency:  in.Amount.CurrencyCode,
		Reason:    in.NoteToPayer,
		Metadata:  caller,
		CreatedAt: parseTime(in.CreateTime),
	}, nil
}

func (p *Provider) saleToInvoice(in wireSale) (core.Invoice, error) {
	currency := strings.ToUpper(in.Amount.Currency)
	amount, err := parseAmount(in.Amount.Total, currency)
	if err != nil {
		return core.Invoice{}, err
	}
	out := core.Invoice{
		ID:             in.ID,
		Provider:       ProviderID,
		SubscriptionID: in.BillingAgreementID,
		BillingMode:    core.BillingOneTime,
		AmountPaid:     amount,
		Currency:       currency,
		Status:         core.InvoiceOpen,
		Metadata:       map[string]string{},
	}
	if in.BillingAgreementID != "" {
		out.BillingMode = core.BillingRecurring
	}
	if strings.EqualFold(in.State, "completed") {
		out.Status = core.InvoicePaid
		if paid := parseTime(in.CreateTime); !paid.IsZero() {
			out.PaidAt = &paid
		}
	}
	if in.Custom != "" {
		out.Metadata["custom"] = in.Custom
	}
	return out, nil
}
