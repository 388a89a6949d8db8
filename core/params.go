package core

type CreateCustomerParams struct {
	Email    string            `json:"email" validate:"required,email"`
	Name     string            `json:"name" validate:"required,max=255"`
	Phone    string            `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address  *Address          `json:"address,omitempty" validate:"omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type UpdateCustomerParams struct {
	ID       string            `json:"id" validate:"required"`
	Email    string            `json:"email,omitempty" validate:"omitempty,email"`
	Name     string            `json:"name,omitempty" validate:"omitempty,max=255"`
	Phone    string            `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address  *Address          `json:"address,omitempty" validate:"omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type CreateCheckoutParams struct {
	Customer    CustomerRef       `json:"customer"`
	SessionType SessionType       `json:"session_type" validate:"required,oneof=one_time recurring"`
	ItemID      string            `json:"item_id,omitempty" validate:"required_without=Products"`
	Quantity    int64             `json:"quantity" validate:"gte=1"`
	Currency    string            `json:"currency,omitempty" validate:"omitempty,currency"`
	Amount      int64             `json:"amount,omitempty" validate:"gte=0"`
	Products    []LineItem        `json:"products,omitempty" validate:"omitempty,dive"`
	SuccessURL  string            `json:"success_url,omitempty" validate:"omitempty,url"`
	CancelURL   string            `json:"cancel_url,omitempty" validate:"omitempty,url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type UpdateCheckoutParams struct {
	ID       string            `json:"id" validate:"required"`
	Quantity int64             `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type CreateSubscriptionParams struct {
	Customer        CustomerRef       `json:"customer"`
	ItemID          string            `json:"item_id" validate:"required"`
	BillingInterval BillingInterval   `json:"billing_interval,omitempty" validate:"omitempty,oneof=day week month year"`
	Amount          int64             `json:"amount,omitempty" validate:"gte=0"`
	Currency        string            `json:"currency,omitempty" validate:"omitempty,currency"`
	Quantity        int64             `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	TrialDays       int               `json:"trial_days,omitempty" validate:"gte=0,lte=730"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CustomFields    map[string]string `json:"custom_fields,omitempty"`
}

type UpdateSubscriptionParams struct {
	ID                string            `json:"id" validate:"required"`
	ItemID            string            `json:"item_id,omitempty"`
	Quantity          int64             `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	CancelAtPeriodEnd *bool             `json:"cancel_at_period_end,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type CreatePaymentParams struct {
	Customer  *CustomerRef      `json:"customer,omitempty" validate:"omitempty"`
	Amount    int64             `json:"amount" validate:"gt=0"`
	Currency  string            `json:"currency" validate:"required,currency"`
	ItemID    string            `json:"item_id,omitempty"`
	ReturnURL string            `json:"return_url,omitempty" validate:"omitempty,url"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type UpdatePaymentParams struct {
	ID       string            `json:"id" validate:"required"`
	Amount   int64             `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CreateRefundParams refunds part or all of a payment. A zero Amount
// refunds the remaining balance. Currency is needed by backends that price
// partial refunds explicitly.
type CreateRefundParams struct {
	PaymentID string            `json:"payment_id" validate:"required"`
	Amount    int64             `json:"amount,omitempty" validate:"gte=0"`
	Currency  string            `json:"currency,omitempty" validate:"omitempty,currency"`
	Reason    string            `json:"reason,omitempty" validate:"omitempty,max=500"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
