package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// CustomerRef points at a customer either by backend id or by an inline
// shape. It marshals to a bare string when only the id is set.
type CustomerRef struct {
	ID    string `json:"id,omitempty" validate:"omitempty,max=255"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Name  string `json:"name,omitempty" validate:"omitempty,max=255"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

func CustomerID(id string) CustomerRef {
	return CustomerRef{ID: strings.TrimSpace(id)}
}

func (r CustomerRef) IsZero() bool {
	return r == CustomerRef{}
}

// IsInline reports whether the reference carries a customer shape instead
// of a bare id.
func (r CustomerRef) IsInline() bool {
	return r.Email != "" || r.Name != "" || r.Phone != ""
}

func (r CustomerRef) MarshalJSON() ([]byte, error) {
	if !r.IsInline() {
		return json.Marshal(r.ID)
	}
	type plain CustomerRef
	return json.Marshal(plain(r))
}

func (r *CustomerRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = CustomerRef{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = CustomerRef{ID: id}
		return nil
	}
	type plain CustomerRef
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*r = CustomerRef(decoded)
	return nil
}

type Address struct {
	Line1      string `json:"line1,omitempty" validate:"omitempty,max=255"`
	Line2      string `json:"line2,omitempty" validate:"omitempty,max=255"`
	City       string `json:"city,omitempty" validate:"omitempty,max=120"`
	State      string `json:"state,omitempty" validate:"omitempty,max=120"`
	PostalCode string `json:"postal_code,omitempty" validate:"omitempty,max=32"`
	Country    string `json:"country" validate:"required,iso3166_1_alpha2"`
}

type LineItem struct {
	ItemID   string `json:"item_id" validate:"required"`
	Name     string `json:"name,omitempty"`
	Quantity int64  `json:"quantity" validate:"gte=1"`
	Amount   int64  `json:"amount,omitempty" validate:"gte=0"`
	Currency string `json:"currency,omitempty" validate:"omitempty,currency"`
}

// Resource is implemented only by the canonical resources.
type Resource interface {
	ResourceKind() string
	ProviderID() string
	resource()
}

type Customer struct {
	ID        string            `json:"id" validate:"required"`
	Provider  string            `json:"provider" validate:"required"`
	Email     string            `json:"email,omitempty" validate:"omitempty,email"`
	Name      string            `json:"name,omitempty"`
	Phone     string            `json:"phone,omitempty"`
	Address   *Address          `json:"address,omitempty" validate:"omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type Checkout struct {
	ID          string            `json:"id" validate:"required"`
	Provider    string            `json:"provider" validate:"required"`
	Customer    CustomerRef       `json:"customer"`
	SessionType SessionType       `json:"session_type" validate:"required,oneof=one_time recurring"`
	ItemID      string            `json:"item_id,omitempty"`
	Quantity    int64             `json:"quantity" validate:"gte=0"`
	Currency    string            `json:"currency,omitempty" validate:"omitempty,currency"`
	Amount      int64             `json:"amount,omitempty" validate:"gte=0"`
	Products    []LineItem        `json:"products,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Status      CheckoutStatus    `json:"status" validate:"required,oneof=open completed expired canceled"`
	PaymentURL  string            `json:"payment_url,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type Subscription struct {
	ID                 string             `json:"id" validate:"required"`
	Provider           string             `json:"provider" validate:"required"`
	Customer           CustomerRef        `json:"customer"`
	ItemID             string             `json:"item_id,omitempty"`
	BillingInterval    BillingInterval    `json:"billing_interval,omitempty" validate:"omitempty,oneof=day week month year"`
	Amount             int64              `json:"amount,omitempty" validate:"gte=0"`
	Quantity           int64              `json:"quantity,omitempty" validate:"gte=0"`
	Currency           string             `json:"currency,omitempty" validate:"omitempty,currency"`
	Status             SubscriptionStatus `json:"status" validate:"required,oneof=active past_due canceled expired pending"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end,omitempty"`
	Metadata           map[string]string  `json:"metadata,omitempty"`
	CustomFields       map[string]string  `json:"custom_fields,omitempty"`
}

type Payment struct {
	ID             string            `json:"id" validate:"required"`
	Provider       string            `json:"provider" validate:"required"`
	Amount         int64             `json:"amount" validate:"gte=0"`
	Currency       string            `json:"currency" validate:"omitempty,currency"`
	Status         PaymentStatus     `json:"status" validate:"required,oneof=pending processing requires_action requires_capture succeeded canceled failed"`
	Customer       CustomerRef       `json:"customer"`
	ItemID         string            `json:"item_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	RequiresAction bool              `json:"requires_action"`
	PaymentURL     string            `json:"payment_url,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

type Refund struct {
	ID        string            `json:"id" validate:"required"`
	Provider  string            `json:"provider" validate:"required"`
	PaymentID string            `json:"payment_id" validate:"required"`
	Amount    int64             `json:"amount" validate:"gte=0"`
	Currency  string            `json:"currency" validate:"omitempty,currency"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type Invoice struct {
	ID             string            `json:"id" validate:"required"`
	Provider       string            `json:"provider" validate:"required"`
	SubscriptionID string            `json:"subscription_id,omitempty"`
	BillingMode    BillingMode       `json:"billing_mode" validate:"required,oneof=one_time recurring"`
	AmountPaid     int64             `json:"amount_paid" validate:"gte=0"`
	Currency       string            `json:"currency" validate:"omitempty,currency"`
	Status         InvoiceStatus     `json:"status" validate:"required,oneof=paid open"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	LineItems      []LineItem        `json:"line_items,omitempty"`
	CustomFields   map[string]string `json:"custom_fields,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Customer       CustomerRef       `json:"customer"`
}

func (Customer) ResourceKind() string     { return "customer" }
func (Checkout) ResourceKind() string     { return "checkout" }
func (Subscription) ResourceKind() string { return "subscription" }
func (Payment) ResourceKind() string      { return "payment" }
func (Refund) ResourceKind() string       { return "refund" }
func (Invoice) ResourceKind() string      { return "invoice" }

func (c Customer) ProviderID() string     { return c.Provider }
func (c Checkout) ProviderID() string     { return c.Provider }
func (s Subscription) ProviderID() string { return s.Provider }
func (p Payment) ProviderID() string      { return p.Provider }
func (r Refund) ProviderID() string       { return r.Provider }
func (i Invoice) ProviderID() string      { return i.Provider }

func (Customer) resource()     {}
func (Checkout) resource()     {}
func (Subscription) resource() {}
func (Payment) resource()      {}
func (Refund) resource()       {}
func (Invoice) resource()      {}

// CloneMetadata returns a copy that is never nil.
func CloneMetadata(metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata))
	for key, value := range metadata {
		out[key] = value
	}
	return out
}
