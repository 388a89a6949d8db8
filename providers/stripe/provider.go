package stripe

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

// Provider talks to the Stripe REST API. Every method issues exactly one
// outbound request. Refunds cannot be edited or removed once issued.
type Provider struct {
	core.UnimplementedProvider
	config Config
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
	opts := []transport.Option{
		transport.WithAuthorizer(auth.NewBearer(ProviderID, cfg.SecretKey)),
		transport.WithConfig(cfg.Transport),
		transport.WithLogger(logger),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, transport.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.RateLimiter != nil {
		opts = append(opts, transport.WithRateLimiter(cfg.RateLimiter))
	}
	return &Provider{
		UnimplementedProvider: core.UnimplementedProvider{Name: ProviderID},
		config:                cfg,
		client:                transport.NewClient(ProviderID, opts...),
		codec:                 metadata.New(ProviderID, metadata.DefaultMaxValueLength),
		logger:                logger,
	}, nil
}

func (p *Provider) ID() string { return ProviderID }

func (p *Provider) endpoint(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	return p.config.APIBase + "/v1/" + strings.Join(escaped, "/")
}

func call[W any, R any](ctx context.Context, p *Provider, req transport.Request, convert func(W) (R, error)) (R, error) {
	wire, err := transport.Send[W](ctx, p.client, req).Get()
	if err != nil {
		var zero R
		return zero, err
	}
	return convert(wire)
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", core.NewValidationError(ProviderID, "id is required", goerrors.FieldError{Field: "id", Message: "is required"})
	}
	return id, nil
}

func parseQuantity(raw string) int64 {
	quantity, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return quantity
}

func (p *Provider) embed(values url.Values, caller map[string]string, internal metadata.Internal) error {
	merged, err := p.codec.Embed(caller, internal)
	if err != nil {
		return err
	}
	transport.MetadataForm(values, "metadata", merged)
	return nil
}

// patchMetadata sends caller keys only. Stripe merges metadata on update, so
// the stored internal payload is left untouched.
func (p *Provider) patchMetadata(values url.Values, caller map[string]string) error {
	if err := p.codec.Guard(caller); err != nil {
		return err
	}
	transport.MetadataForm(values, "metadata", caller)
	return nil
}

func addressForm(values url.Values, address *core.Address) {
	if address == nil {
		return
	}
	set := func(key, value string) {
		if value != "" {
			values.Set("address["+key+"]", value)
		}
	}
	set("line1", address.Line1)
	set("line2", address.Line2)
	set("city", address.City)
	set("state", address.State)
	set("postal_code", address.PostalCode)
	set("country", address.Country)
}

func (p *Provider) CreateCustomer(ctx context.Context, params core.CreateCustomerParams) (core.Customer, error) {
	if err := core.Validate(params); err != nil {
		return core.Customer{}, core.MapError(ProviderID, err)
	}
	values := url.Values{}
	values.Set("email", params.Email)
	values.Set("name", params.Name)
	if params.Phone != "" {
		values.Set("phone", params.Phone)
	}
	addressForm(values, params.Address)
	if err := p.embed(values, params.Metadata, metadata.DefaultInternal()); err != nil {
		return core.Customer{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodPost, p.endpoint("customers"), values), p.toCustomer)
}

func (p *Provider) RetrieveCustomer(ctx context.Context, id string) (core.Customer, error) {
	id, err := requireID(id)
	if err != nil {
		return core.Customer{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodGet, p.endpoint("customers", id), nil), p.toCustomer)
}

func (p *Provider) UpdateCustomer(ctx context.Context, params core.UpdateCustomerParams) (core.Customer, error) {
	if err := core.Validate(params); err != nil {
		return core.Customer{}, core.MapError(ProviderID, err)
	}
	values := url.Values{}
	if params.Email != "" {
		values.Set("email", params.Email)
	}
	if params.Name != "" {
		values.Set("name", params.Name)
	}
	if params.Phone != "" {
		values.Set("phone", params.Phone)
	}
	addressForm(values, params.Address)
	if err := p.patchMetadata(values, params.Metadata); err != nil {
		return core.Customer{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodPost, p.endpoint("customers", params.ID), values), p.toCustomer)
}

func (p *Provider) DeleteCustomer(ctx context.Context, id string) (core.Customer, error) {
	id, err := requireID(id)
	if err != nil {
		return core.Customer{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodDelete, p.endpoint("customers", id), nil), p.toCustomer)
}

func (p *Provider) CreateCheckout(ctx context.Context, params core.CreateCheckoutParams) (core.Checkout, error) {
	if err := core.Validate(params); err != nil {
		return core.Checkout{}, core.MapError(ProviderID, err)
	}
	values := url.Values{}
	values.Set("mode", "payment")
	if params.SessionType == core.SessionRecurring {
		values.Set("mode", "subscription")
	}
	if params.SuccessURL != "" {
		values.Set("success_url", params.SuccessURL)
	}
	if params.CancelURL != "" {
		values.Set("cancel_url", params.CancelURL)
	}
	switch {
	case params.Customer.ID != "":
		values.Set("customer", params.Customer.ID)
	case params.Customer.Email != "":
		values.Set("customer_email", params.Customer.Email)
	}

	internal := metadata.DefaultInternal()
	items := params.Products
	if len(items) == 0 {
		items = []core.LineItem{{ItemID: params.ItemID, Quantity: params.Quantity}}
		internal.Lookup[lookupItemID] = params.ItemID
		internal.Lookup[lookupQuantity] = strconv.FormatInt(params.Quantity, 10)
	}
	for i, item := range items {
		prefix := "line_items[" + strconv.Itoa(i) + "]"
		values.Set(prefix+"[price]", item.ItemID)
		values.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
	}
	if err := p.embed(values, params.Metadata, internal); err != nil {
		return core.Checkout{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodPost, p.endpoint("checkout", "sessions"), values), p.toCheckout)
}

func (p *Provider) RetrieveCheckout(ctx context.Context, id string) (core.Checkout, error) {
	id, err := requireID(id)
	if err != nil {
		return core.Checkout{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodGet, p.endpoint("checkout", "sessions", id), nil), p.toCheckout)
}

// UpdateCheckout only rewrites caller metadata. Stripe freezes line items
// once a session is open, so a quantity change is rejected.
func (p *Provider) UpdateCheckout(ctx context.Context, params core.UpdateCheckoutParams) (core.Checkout, error) {
	if err := core.Validate(params); err != nil {
		return core.Checkout{}, core.MapError(ProviderID, err)
	}
	if params.Quantity > 0 {
		return core.Checkout{}, core.NewValidationError(ProviderID, "open sessions cannot change quantity", goerrors.FieldError{
			Field:   "quantity",
			Message: "cannot be changed after creation",
		})
	}
	values := url.Values{}
	if err := p.patchMetadata(values, params.Metadata); err != nil {
		return core.Checkout{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodPost, p.endpoint("checkout", "sessions", params.ID), values), p.toCheckout)
}

// DeleteCheckout expires the session.
func (p *Provider) DeleteCheckout(ctx context.Context, id string) (core.Checkout, error) {
	id, err := requireID(id)
	if err != nil {
		return core.Checkout{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodPost, p.endpoint("checkout", "sessions", id, "expire"), nil), p.toCheckout)
}

func (p *Provider) CreateSubscription(ctx context.Context, params core.CreateSubscriptionParams) (core.Subscription, error) {
	if err := core.Validate(params); err != nil {
		return core.Subscription{}, core.MapError(ProviderID, err)
	}
	if params.Customer.ID == "" {
		return core.Subscription{}, core.NewValidationError(ProviderID, "subscriptions need an existing customer", goerrors.FieldError{
			Field:   "customer",
			Message: "must reference a customer id",
		})
	}
	values := url.Values{}
	values.Set("customer", params.Customer.ID)
	values.Set("items[0][price]", params.ItemID)
	if params.Quantity > 0 {
		values.Set("items[0][quantity]", strconv.FormatInt(params.Quantity, 10))
	}
	if params.TrialDays > 0 {
		values.Set("trial_period_days", strconv.Itoa(params.TrialDays))
	}
	internal := metadata.DefaultInternal()
	for name, value := range params.CustomFields {
		internal.Lookup[customFieldKey+name] = value
	}
	if err := p.embed(values, params.Metadata, internal); err != nil {
		return core.Subscription{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodPost, p.endpoint("subscriptions"), values), p.toSubscription)
}

func (p *Provider) RetrieveSubscription(ctx context.Context, id string) (core.Subscription, error) {
	id, err := requireID(id)
	if err != nil {
		return core.Subscription{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodGet, p.endpoint("subscriptions", id), nil), p.toSubscription)
}

// UpdateSubscription changes the period-end cancellation flag and caller
// metadata. Swapping prices needs the subscription item id, which the
// canonical shape does not carry, so item and quantity changes are
// rejected.
func (p *Provider) UpdateSubscription(ctx context.Context, params core.UpdateSubscriptionParams) (core.Subscription, error) {
	if err := core.Validate(params); err != nil {
		return core.Subscription{}, core.MapError(ProviderID, err)
	}
	if params.ItemID != "" || params.Quantity > 0 {
		return core.Subscription{}, core.NewValidationError(ProviderID, "subscription items cannot be changed in place", goerrors.FieldError{
			Field:   "item_id",
			Message: "cancel and create a new subscription instead",
		})
	}
	values := url.Values{}
	if params.CancelAtPeriodEnd != nil {
		values.Set("cancel_at_period_end", strconv.FormatBool(*params.CancelAtPeriodEnd))
	}
	if err := p.patchMetadata(values, params.Metadata); err != nil {
		return core.Subscription{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodPost, p.endpoint("subscriptions", params.ID), values), p.toSubscription)
}

// DeleteSubscription cancels immediately.
func (p *Provider) DeleteSubscription(ctx context.Context, id string) (core.Subscription, error) {
	id, err := requireID(id)
	if err != nil {
		return core.Subscription{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodDelete, p.endpoint("subscriptions", id), nil), p.toSubscription)
}

func (p *Provider) CreatePayment(ctx context.Context, params core.CreatePaymentParams) (core.Payment, error) {
	if err := core.Validate(params); err != nil {
		return core.Payment{}, core.MapError(ProviderID, err)
	}
	values := url.Values{}
	values.Set("amount", strconv.FormatInt(params.Amount, 10))
	values.Set("currency", strings.ToLower(params.Currency))
	values.Set("automatic_payment_methods[enabled]", "true")
	if params.Customer != nil {
		switch {
		case params.Customer.ID != "":
			values.Set("customer", params.Customer.ID)
		case params.Customer.Email != "":
			values.Set("receipt_email", params.Customer.Email)
		}
	}
	internal := metadata.DefaultInternal()
	if params.ItemID != "" {
		internal.Lookup[lookupItemID] = params.ItemID
	}
	if params.ReturnURL != "" {
		internal.Lookup[lookupReturnURL] = params.ReturnURL
	}
	if err := p.embed(values, params.Metadata, internal); err != nil {
		return core.Payment{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodPost, p.endpoint("payment_intents"), values), p.toPayment)
}

func (p *Provider) RetrievePayment(ctx context.Context, id string) (core.Payment, error) {
	id, err := requireID(id)
	if err != nil {
		return core.Payment{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodGet, p.endpoint("payment_intents", id), nil), p.toPayment)
}

func (p *Provider) UpdatePayment(ctx context.Context, params core.UpdatePaymentParams) (core.Payment, error) {
	if err := core.Validate(params); err != nil {
		return core.Payment{}, core.MapError(ProviderID, err)
	}
	values := url.Values{}
	if params.Amount > 0 {
		values.Set("amount", strconv.FormatInt(params.Amount, 10))
	}
	if err := p.patchMetadata(values, params.Metadata); err != nil {
		return core.Payment{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodPost, p.endpoint("payment_intents", params.ID), values), p.toPayment)
}

// DeletePayment cancels the intent.
func (p *Provider) DeletePayment(ctx context.Context, id string) (core.Payment, error) {
	id, err := requireID(id)
	if err != nil {
		return core.Payment{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodPost, p.endpoint("payment_intents", id, "cancel"), nil), p.toPayment)
}

func (p *Provider) CreateRefund(ctx context.Context, params core.CreateRefundParams) (core.Refund, error) {
	if err := core.Validate(params); err != nil {
		return core.Refund{}, core.MapError(ProviderID, err)
	}
	values := url.Values{}
	values.Set("payment_intent", params.PaymentID)
	if params.Amount > 0 {
		values.Set("amount", strconv.FormatInt(params.Amount, 10))
	}
	internal := metadata.DefaultInternal()
	if reason := strings.TrimSpace(params.Reason); reason != "" {
		if refundReasons[reason] {
			values.Set("reason", reason)
		} else {
			internal.Lookup[lookupReason] = reason
		}
	}
	if err := p.embed(values, params.Metadata, internal); err != nil {
		return core.Refund{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodPost, p.endpoint("refunds"), values), p.toRefund)
}

func (p *Provider) RetrieveRefund(ctx context.Context, id string) (core.Refund, error) {
	id, err := requireID(id)
	if err != nil {
		return core.Refund{}, err
	}
	return call(ctx, p, transport.FormRequest(http.MethodGet, p.endpoint("refunds", id), nil), p.toRefund)
}
