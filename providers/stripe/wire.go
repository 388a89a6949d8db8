package stripe

import (
	"bytes"
	"encoding/json"
)

// expandable holds a field Stripe returns either as an id string or as the
// expanded object.
type expandable struct {
	ID string
}

func (e *expandable) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		e.ID = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &e.ID)
	}
	var object struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &object); err != nil {
		return err
	}
	e.ID = object.ID
	return nil
}

type wireAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type wireCustomer struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Phone    string            `json:"phone"`
	Address  *wireAddress      `json:"address"`
	Metadata map[string]string `json:"metadata"`
	Created  int64             `json:"created"`
	Deleted  bool              `json:"deleted"`
}

type wirePrice struct {
	ID         string `json:"id"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	Recurring  *struct {
		Interval string `json:"interval"`
	} `json:"recurring"`
}

type wireLineItem struct {
	Price       wirePrice `json:"price"`
	Quantity    int64     `json:"quantity"`
	Amount      int64     `json:"amount"`
	AmountTotal int64     `json:"amount_total"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
}

type wireList[T any] struct {
	Data []T `json:"data"`
}

type wireCheckout struct {
	ID              string     `json:"id"`
	Customer        expandable `json:"customer"`
	CustomerEmail   string     `json:"customer_email"`
	CustomerDetails *struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Phone string `json:"phone"`
	} `json:"customer_details"`
	Mode        string                  `json:"mode"`
	Status      string                  `json:"status"`
	URL         string                  `json:"url"`
	AmountTotal int64                   `json:"amount_total"`
	Currency    string                  `json:"currency"`
	LineItems   *wireList[wireLineItem] `json:"line_items"`
	Metadata    map[string]string       `json:"metadata"`
	Created     int64                   `json:"created"`
}

type wireSubscriptionItem struct {
	ID                 string    `json:"id"`
	Price              wirePrice `json:"price"`
	Quantity           int64     `json:"quantity"`
	CurrentPeriodStart int64     `json:"current_period_start"`
	CurrentPeriodEnd   int64     `json:"current_period_end"`
}

type wireSubscription struct {
	ID                 string                         `json:"id"`
	Customer           expandable                     `json:"customer"`
	Status             string                         `json:"status"`
	Items              wireList[wireSubscriptionItem] `json:"items"`
	CurrentPeriodStart int64                          `json:"current_period_start"`
	CurrentPeriodEnd   int64                          `json:"current_period_end"`
	CancelAtPeriodEnd  bool                           `json:"cancel_at_period_end"`
	Metadata           map[string]string              `json:"metadata"`
}

type wirePaymentIntent struct {
	ID         string            `json:"id"`
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	Status     string            `json:"status"`
	Customer   expandable        `json:"customer"`
	Metadata   map[string]string `json:"metadata"`
	Created    int64             `json:"created"`
	NextAction *struct {
		RedirectToURL *struct {
			URL string `json:"url"`
		} `json:"redirect_to_url"`
	} `json:"next_action"`
}

type wireRefund struct {
	ID            string            `json:"id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	PaymentIntent expandable        `json:"payment_intent"`
	Reason        string            `json:"reason"`
	Metadata      map[string]string `json:"metadata"`
	Created       int64             `json:"created"`
}

type wireInvoice struct {
	ID            string                  `json:"id"`
	Subscription  expandable              `json:"subscription"`
	Customer      expandable              `json:"customer"`
	CustomerEmail string                  `json:"customer_email"`
	CustomerName  string                  `json:"customer_name"`
	BillingReason string                  `json:"billing_reason"`
	AmountPaid    int64                   `json:"amount_paid"`
	Currency      string                  `json:"currency"`
	Status        string                  `json:"status"`
	Lines         wireList[wireLineItem]  `json:"lines"`
	Metadata      map[string]string       `json:"metadata"`
	CustomFields  []wireInvoiceCustomField `json:"custom_fields"`
	Transitions   struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
	Parent *struct {
		SubscriptionDetails *struct {
			Subscription expandable `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

type wireInvoiceCustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
