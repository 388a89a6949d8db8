package paypal

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-payments/auth"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/metadata"
	"github.com/goliatone/go-payments/transport"
)

// Provider talks to the PayPal REST API with an OAuth2 client credentials
// bearer. A 401 triggers one token refresh before the call is replayed.
//
// PayPal has no customer objects, and orders cannot be edited or voided
// through the API once created, so those capabilities report
// NotImplementedError.
type Provider struct {
	core.UnimplementedProvider
	config Config
	tokens *auth.ClientCredentials
	client *transport.Client
	codec  metadata.Codec
	logger core.Logger
}

func New(cfg Config) (*Provider, error) {
	cfg = cfg.normalized()
	if missing := cfg.missing(); len(missing) > 0 {
		return nil, core.NewConfigurationError(ProviderID, missing)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	tokens := auth.NewClientCredentials(auth.ClientCredentialsConfig{
		Provider:     ProviderID,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.APIBase + "/v1/oauth2/token",
		Coalesce:     cfg.CoalesceRefresh,
		HTTPClient:   cfg.HTTPClient,
		Logger:       logger,
	})
	opts := []transport.Option{
		transport.WithAuthorizer(tokens),
		transport.WithConfig(cfg.Transport),
		transport.WithLogger(logger),
		transport.WithDefaultHeaders(map[string]string{"Prefer": "return=representation"}),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, transport.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.RateLimiter != nil {
		opts = append(opts, transport.WithRateLimiter(cfg.RateLimiter))
	}
	return &Provider{
		UnimplementedProvider: core.UnimplementedProvider{
			Name: ProviderID,
			Planned: map[core.Capability]bool{
				core.CapUpdateCheckout:     true,
				core.CapUpdateSubscription: true,
				core.CapUpdatePayment:      true,
			},
		},
		config: cfg,
		tokens: tokens,
		client: transport.NewClient(ProviderID, opts...),
		codec:  metadata.New(ProviderID, 0),
		logger: logger,
	}, nil
}

func (p *Provider) ID() string { return ProviderID }

func (p *Provider) endpoint(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	return p.config.APIBase + "/" + strings.Join(escaped, "/")
}

func call[W any, R any](ctx context.Context, p *Provider, req transport.Request, convert func(W) (R, error)) (R, error) {
	wire, err := transport.Send[W](ctx, p.client, req).Get()
	if err != nil {
		var zero R
		return zero, err
	}
	return convert(wire)
}

func jsonRequest(method string, target string, payload any) (transport.Request, error) {
	req, err := transport.JSONRequest(method, target, payload)
	if err != nil {
		return transport.Request{}, core.MapError(ProviderID, err)
	}
	return req, nil
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", core.NewValidationError(ProviderID, "id is required", goerrors.FieldError{Field: "id", Message: "is required"})
	}
	return id, nil
}

// isSubscriptionID recognizes billing subscription ids, which PayPal
// prefixes with "I-".
func isSubscriptionID(id string) bool {
	return strings.HasPrefix(id, "I-")
}

func experience(successURL, cancelURL string) *wireExperience {
	if successURL == "" && cancelURL == "" {
		return nil
	}
	return &wireExperience{ReturnURL: successURL, CancelURL: cancelURL, UserAction: "PAY_NOW"}
}

func subscriber(ref core.CustomerRef) *wireSubscriber {
	if !ref.IsInline() {
		return nil
	}
	out := &wireSubscriber{EmailAddress: ref.Email}
	if ref.Name != "" {
		given, surname, _ := strings.Cut(ref.Name, " ")
		out.Name = &wireName{GivenName: given, Surname: surname}
	}
	return out
}

func (p *Provider) CreateCheckout(ctx context.Context, params core.CreateCheckoutParams) (core.Checkout, error) {
	if err := core.Validate(params); err != nil {
		return core.Checkout{}, core.MapError(ProviderID, err)
	}
	if params.SessionType == core.SessionRecurring {
		req, err := p.subscriptionRequest(params.Customer, params.ItemID, params.Quantity, params.Metadata, nil, experience(params.SuccessURL, params.CancelURL))
		if err != nil {
			return core.Checkout{}, err
		}
		return call(ctx, p, req, p.subscriptionToCheckout)
	}

	currency := strings.ToUpper(params.Currency)
	items := params.Products
	if len(items) == 0 {
		items = []core.LineItem{{ItemID: params.ItemID, Quantity: params.Quantity, Amount: params.Amount, Currency: currency}}
	}
	unit := wirePurchaseUnit{ReferenceID: "default"}
	var total int64
	for _, item := range items {
		code := strings.ToUpper(item.Currency)
		if code == "" {
			code = currency
		}
		if currency == "" {
			currency = code
		}
		if err := requirePrice(item.Amount, code); err != nil {
			return core.Checkout{}, err
		}
		name := item.Name
		if name == "" {
			name = item.ItemID
		}
		unit.Items = append(unit.Items, wireItem{
			Name:       name,
			SKU:        item.ItemID,
			Quantity:   strconv.FormatInt(item.Quantity, 10),
			UnitAmount: money(item.Amount, code),
		})
		total += item.Amount * item.Quantity
	}
	unit.Amount = wireAmount{
		CurrencyCode: currency,
		Value:        formatAmount(total, currency),
		Breakdown:    &wireBreakdown{ItemTotal: money(total, currency)},
	}

	internal := metadata.DefaultInternal()
	if len(params.Products) == 0 {
		internal.Lookup[lookupItemID] = params.ItemID
		internal.Lookup[lookupQuantity] = strconv.FormatInt(params.Quantity, 10)
	}
	if params.Customer.ID != "" {
		internal.Refs[refCustomer] = params.Customer.ID
	}
	customID, err := p.encodeCustomID(params.Metadata, internal)
	if err != nil {
		return core.Checkout{}, err
	}
	unit.CustomID = customID

	order := wireOrderRequest{Intent: "CAPTURE", PurchaseUnits: []wirePurchaseUnit{unit}}
	if ctxExperience := experience(params.SuccessURL, params.CancelURL); ctxExperience != nil || params.Customer.Email != "" {
		source := &wirePaymentSource{PayPal: wirePayPalSource{EmailAddress: params.Customer.Email}}
		if ctxExperience != nil {
			source.PayPal.ExperienceContext = *ctxExperience
		}
		order.PaymentSource = source
	}
	req, err := jsonRequest(http.MethodPost, p.endpoint("v2", "checkout", "orders"), order)
	if err != nil {
		return core.Checkout{}, err
	}
	return call(ctx, p, req, p.orderToCheckout)
}

func (p *Provider) RetrieveCheckout(ctx context.Context, id string) (core.Checkout, error) {
	id, err := requireID(id)
	if err != nil {
		return core.Checkout{}, err
	}
	if isSubscriptionID(id) {
		req, err := jsonRequest(http.MethodGet, p.endpoint("v1", "billing", "subscriptions", id), nil)
		if err != nil {
			return core.Checkout{}, err
		}
		return call(ctx, p, req, p.subscriptionToCheckout)
	}
	req, err := jsonRequest(http.MethodGet, p.endpoint("v2", "checkout", "orders", id), nil)
	if err != nil {
		return core.Checkout{}, err
	}
	return call(ctx, p, req, p.orderToCheckout)
}

func (p *Provider) subscriptionRequest(customer core.CustomerRef, planID string, quantity int64, caller map[string]string, custom map[string]string, ctxExperience *wireExperience) (transport.Request, error) {
	internal := metadata.DefaultInternal()
	if customer.ID != "" {
		internal.Refs[refCustomer] = customer.ID
	}
	for name, value := range custom {
		internal.Lookup[customFieldKey+name] = value
	}
	customID, err := p.encodeCustomID(caller, internal)
	if err != nil {
		return transport.Request{}, err
	}
	payload := wireSubscriptionRequest{
		PlanID:             planID,
		CustomID:           customID,
		Subscriber:         subscriber(customer),
		ApplicationContext: ctxExperience,
	}
	if quantity > 0 {
		payload.Quantity = strconv.FormatInt(quantity, 10)
	}
	return jsonRequest(http.MethodPost, p.endpoint("v1", "billing", "subscriptions"), payload)
}

func (p *Provider) CreateSubscription(ctx context.Context, params core.CreateSubscriptionParams) (core.Subscription, error) {
	if err := core.Validate(params); err != nil {
		return core.Subscription{}, core.MapError(ProviderID, err)
	}
	req, err := p.subscriptionRequest(params.Customer, params.ItemID, params.Quantity, params.Metadata, params.CustomFields, nil)
	if err != nil {
		return core.Subscription{}, err
	}
	return call(ctx, p, req, p.toSubscription)
}

func (p *Provider) RetrieveSubscription(ctx context.Context, id string) (core.Subscription, error) {
	id, err := requireID(id)
	if err != nil {
		return core.Subscription{}, err
	}
	req, err := jsonRequest(http.MethodGet, p.endpoint("v1", "billing", "subscriptions", id), nil)
	if err != nil {
		return core.Subscription{}, err
	}
	return call(ctx, p, req, p.toSubscription)
}

// DeleteSubscription cancels the subscription. PayPal answers with an empty
// body, so the result carries only the id and the canceled status.
func (p *Provider) DeleteSubscription(ctx context.Context, id string) (core.Subscription, error) {
	id, err := requireID(id)
	if err != nil {
		return core.Subscription{}, err
	}
	req, err := jsonRequest(http.MethodPost, p.endpoint("v1", "billing", "subscriptions", id, "cancel"), map[string]string{
		"reason": "canceled by merchant",
	})
	if err != nil {
		return core.Subscription{}, err
	}
	if _, err := p.client.Do(ctx, req); err != nil {
		return core.Subscription{}, err
	}
	return core.Subscription{ID: id, Provider: ProviderID, Status: core.SubscriptionCanceled}, nil
}

func (p *Provider) CreatePayment(ctx context.Context, params core.CreatePaymentParams) (core.Payment, error) {
	if err := core.Validate(params); err != nil {
		return core.Payment{}, core.MapError(ProviderID, err)
	}
	currency := strings.ToUpper(params.Currency)
	internal := metadata.DefaultInternal()
	if params.ItemID != "" {
		internal.Lookup[lookupItemID] = params.ItemID
	}
	var email string
	if params.Customer != nil {
		if params.Customer.ID != "" {
			internal.Refs[refCustomer] = params.Customer.ID
		}
		email = params.Customer.Email
	}
	customID, err := p.encodeCustomID(params.Metadata, internal)
	if err != nil {
		return core.Payment{}, err
	}
	order := wireOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []wirePurchaseUnit{{
			ReferenceID: "default",
			CustomID:    customID,
			Amount:      wireAmount{CurrencyCode: currency, Value: formatAmount(params.Amount, currency)},
		}},
	}
	if params.ReturnURL != "" || email != "" {
		order.PaymentSource = &wirePaymentSource{PayPal: wirePayPalSource{
			EmailAddress:      email,
			ExperienceContext: wireExperience{ReturnURL: params.ReturnURL, CancelURL: params.ReturnURL, UserAction: "PAY_NOW"},
		}}
	}
	req, err := jsonRequest(http.MethodPost, p.endpoint("v2", "checkout", "orders"), order)
	if err != nil {
		return core.Payment{}, err
	}
	return call(ctx, p, req, p.orderToPayment)
}

func (p *Provider) RetrievePayment(ctx context.Context, id string) (core.Payment, error) {
	id, err := requireID(id)
	if err != nil {
		return core.Payment{}, err
	}
	req, err := jsonRequest(http.MethodGet, p.endpoint("v2", "checkout", "orders", id), nil)
	if err != nil {
		return core.Payment{}, err
	}
	return call(ctx, p, req, p.orderToPayment)
}

// CreateRefund refunds a capture. PaymentID must be the capture id; a
// partial refund needs Currency as well.
func (p *Provider) CreateRefund(ctx context.Context, params core.CreateRefundParams) (core.Refund, error) {
	if err := core.Validate(params); err != nil {
		return core.Refund{}, core.MapError(ProviderID, err)
	}
	payload := wireRefundRequest{NoteToPayer: strings.TrimSpace(params.Reason)}
	if params.Amount > 0 {
		if err := requirePrice(params.Amount, params.Currency); err != nil {
			return core.Refund{}, err
		}
		amount := money(params.Amount, params.Currency)
		payload.Amount = &amount
	}
	customID, err := p.encodeCustomID(params.Metadata, metadata.DefaultInternal())
	if err != nil {
		return core.Refund{}, err
	}
	payload.CustomID = customID
	req, err := jsonRequest(http.MethodPost, p.endpoint("v2", "payments", "captures", params.PaymentID, "refund"), payload)
	if err != nil {
		return core.Refund{}, err
	}
	return call(ctx, p, req, func(in wireRefund) (core.Refund, error) {
		return p.toRefund(in, params.PaymentID)
	})
}

func (p *Provider) RetrieveRefund(ctx context.Context, id string) (core.Refund, error) {
	id, err := requireID(id)
	if err != nil {
		return core.Refund{}, err
	}
	req, err := jsonRequest(http.MethodGet, p.endpoint("v2", "payments", "refunds", id), nil)
	if err != nil {
		return core.Refund{}, err
	}
	return call(ctx, p, req, func(in wireRefund) (core.Refund, error) {
		return p.toRefund(in, "")
	})
}
