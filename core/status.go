package core

import (
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

type SessionType string

const (
	SessionOneTime   SessionType = "one_time"
	SessionRecurring SessionType = "recurring"
)

type BillingMode string

const (
	BillingOneTime   BillingMode = "one_time"
	BillingRecurring BillingMode = "recurring"
)

type BillingInterval string

const (
	IntervalDay   BillingInterval = "day"
	IntervalWeek  BillingInterval = "week"
	IntervalMonth BillingInterval = "month"
	IntervalYear  BillingInterval = "year"
)

type CheckoutStatus string

const (
	CheckoutOpen      CheckoutStatus = "open"
	CheckoutCompleted CheckoutStatus = "completed"
	CheckoutExpired   CheckoutStatus = "expired"
	CheckoutCanceled  CheckoutStatus = "canceled"
)

// Terminal reports whether no further transition is possible.
func (s CheckoutStatus) Terminal() bool {
	return s == CheckoutCompleted || s == CheckoutExpired || s == CheckoutCanceled
}

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionExpired  SubscriptionStatus = "expired"
	SubscriptionPending  SubscriptionStatus = "pending"
)

type PaymentStatus string

const (
	PaymentPending         PaymentStatus = "pending"
	PaymentProcessing      PaymentStatus = "processing"
	PaymentRequiresAction  PaymentStatus = "requires_action"
	PaymentRequiresCapture PaymentStatus = "requires_capture"
	PaymentSucceeded       PaymentStatus = "succeeded"
	PaymentCanceled        PaymentStatus = "canceled"
	PaymentFailed          PaymentStatus = "failed"
)

type InvoiceStatus string

const (
	InvoicePaid InvoiceStatus = "paid"
	InvoiceOpen InvoiceStatus = "open"
)

var (
	sessionTypes       = []SessionType{SessionOneTime, SessionRecurring}
	billingModes       = []BillingMode{BillingOneTime, BillingRecurring}
	billingIntervals   = []BillingInterval{IntervalDay, IntervalWeek, IntervalMonth, IntervalYear}
	checkoutStatuses   = []CheckoutStatus{CheckoutOpen, CheckoutCompleted, CheckoutExpired, CheckoutCanceled}
	invoiceStatuses    = []InvoiceStatus{InvoicePaid, InvoiceOpen}
	subscriptionStatus = []SubscriptionStatus{
		SubscriptionActive,
		SubscriptionPastDue,
		SubscriptionCanceled,
		SubscriptionExpired,
		SubscriptionPending,
	}
	paymentStatuses = []PaymentStatus{
		PaymentPending,
		PaymentProcessing,
		PaymentRequiresAction,
		PaymentRequiresCapture,
		PaymentSucceeded,
		PaymentCanceled,
		PaymentFailed,
	}
)

func ParseSessionType(raw string) (SessionType, error) {
	return parseEnum("session_type", raw, sessionTypes)
}

func ParseBillingMode(raw string) (BillingMode, error) {
	return parseEnum("billing_mode", raw, billingModes)
}

func ParseBillingInterval(raw string) (BillingInterval, error) {
	return parseEnum("billing_interval", raw, billingIntervals)
}

func ParseCheckoutStatus(raw string) (CheckoutStatus, error) {
	return parseEnum("status", raw, checkoutStatuses)
}

func ParseSubscriptionStatus(raw string) (SubscriptionStatus, error) {
	return parseEnum("status", raw, subscriptionStatus)
}

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	return parseEnum("status", raw, paymentStatuses)
}

func ParseInvoiceStatus(raw string) (InvoiceStatus, error) {
	return parseEnum("status", raw, invoiceStatuses)
}

func parseEnum[T ~string](field string, raw string, allowed []T) (T, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, candidate := range allowed {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	var zero T
	options := make([]string, 0, len(allowed))
	for _, candidate := range allowed {
		options = append(options, string(candidate))
	}
	message := fmt.Sprintf("must be one of: %s", strings.Join(options, ", "))
	return zero, NewValidationError("", fmt.Sprintf("unknown %s %q", field, raw), goerrors.FieldError{
		Field:   field,
		Message: message,
	})
}

// StatusMapper translates backend status strings through a fixed table.
// Unknown statuses fail with UnknownError unless Fallback is set.
type StatusMapper[T ~string] struct {
	Provider string
	Field    string
	Table    map[string]T
	Fallback T
}

func (m StatusMapper[T]) Map(raw string) (T, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := m.Table[key]; ok {
		return mapped, nil
	}
	if m.Fallback != "" {
		return m.Fallback, nil
	}
	var zero T
	field := m.Field
	if field == "" {
		field = "status"
	}
	return zero, NewUnknownError(m.Provider, fmt.Sprintf("unrecognized %s %q", field, raw), nil)
}
