package paypal

import "encoding/json"

type wireMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type wireAmount struct {
	CurrencyCode string         `json:"currency_code"`
	Value        string         `json:"value"`
	Breakdown    *wireBreakdown `json:"breakdown,omitempty"`
}

type wireBreakdown struct {
	ItemTotal wireMoney `json:"item_total"`
}

type wireLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type wireName struct {
	GivenName string `json:"given_name,omitempty"`
	Surname   string `json:"surname,omitempty"`
}

type wirePayer struct {
	EmailAddress string    `json:"email_address,omitempty"`
	PayerID      string    `json:"payer_id,omitempty"`
	Name         *wireName `json:"name,omitempty"`
}

type wireItem struct {
	Name       string    `json:"name"`
	SKU        string    `json:"sku,omitempty"`
	Quantity   string    `json:"quantity"`
	UnitAmount wireMoney `json:"unit_amount"`
}

type wireCapture struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"`
	Amount            wireMoney `json:"amount"`
	CustomID          string    `json:"custom_id"`
	CreateTime        string    `json:"create_time"`
	SupplementaryData *struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

type wirePurchaseUnit struct {
	ReferenceID string     `json:"reference_id,omitempty"`
	CustomID    string     `json:"custom_id,omitempty"`
	Amount      wireAmount `json:"amount"`
	Items       []wireItem `json:"items,omitempty"`
	Payments    *struct {
		Captures []wireCapture `json:"captures"`
	} `json:"payments,omitempty"`
}

type wireExperience struct {
	ReturnURL  string `json:"return_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
	UserAction string `json:"user_action,omitempty"`
}

type wireOrderRequest struct {
	Intent        string             `json:"intent"`
	PurchaseUnits []wirePurchaseUnit `json:"purchase_units"`
	PaymentSource *wirePaymentSource `json:"payment_source,omitempty"`
}

type wirePaymentSource struct {
	PayPal wirePayPalSource `json:"paypal"`
}

type wirePayPalSource struct {
	EmailAddress      string         `json:"email_address,omitempty"`
	ExperienceContext wireExperience `json:"experience_context"`
}

type wireOrder struct {
	ID            string             `json:"id"`
	Status        string             `json:"status"`
	Intent        string             `json:"intent"`
	Links         []wireLink         `json:"links"`
	PurchaseUnits []wirePurchaseUnit `json:"purchase_units"`
	Payer         *wirePayer         `json:"payer"`
	CreateTime    string             `json:"create_time"`
}

type wireSubscriber struct {
	EmailAddress string    `json:"email_address,omitempty"`
	PayerID      string    `json:"payer_id,omitempty"`
	Name         *wireName `json:"name,omitempty"`
}

type wireSubscriptionRequest struct {
	PlanID             string          `json:"plan_id"`
	Quantity           string          `json:"quantity,omitempty"`
	CustomID           string          `json:"custom_id,omitempty"`
	Subscriber         *wireSubscriber `json:"subscriber,omitempty"`
	ApplicationContext *wireExperience `json:"application_context,omitempty"`
}

type wireSubscription struct {
	ID          string          `json:"id"`
	PlanID      string          `json:"plan_id"`
	Status      string          `json:"status"`
	Quantity    string          `json:"quantity"`
	CustomID    string          `json:"custom_id"`
	StartTime   string          `json:"start_time"`
	CreateTime  string          `json:"create_time"`
	Subscriber  *wireSubscriber `json:"subscriber"`
	BillingInfo *struct {
		NextBillingTime string `json:"next_billing_time"`
		LastPayment     *struct {
			Amount wireMoney `json:"amount"`
			Time   string    `json:"time"`
		} `json:"last_payment"`
	} `json:"billing_info"`
	Links []wireLink `json:"links"`
}

type wireRefundRequest struct {
	Amount      *wireMoney `json:"amount,omitempty"`
	CustomID    string     `json:"custom_id,omitempty"`
	NoteToPayer string     `json:"note_to_payer,omitempty"`
}

type wireRefund struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Amount      wireMoney  `json:"amount"`
	CustomID    string     `json:"custom_id"`
	NoteToPayer string     `json:"note_to_payer"`
	CreateTime  string     `json:"create_time"`
	Links       []wireLink `json:"links"`
}

// wireSale is the resource of recurring PAYMENT.SALE.* notifications.
type wireSale struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Amount struct {
		Total    string `json:"total"`
		Currency string `json:"currency"`
	} `json:"amount"`
	BillingAgreementID string `json:"billing_agreement_id"`
	Custom             string `json:"custom"`
	CreateTime         string `json:"create_time"`
}

type wireEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	CreateTime   string          `json:"create_time"`
	Resource     json.RawMessage `json:"resource"`
}

type wireVerifyRequest struct {
	AuthAlgo         string `json:"auth_algo"`
	CertURL          string `json:"cert_url"`
	TransmissionID   string `json:"transmission_id"`
	TransmissionSig  string `json:"transmission_sig"`
	TransmissionTime string `json:"transmission_time"`
	WebhookID        string `json:"webhook_id"`
}

type wireVerifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}
