package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	goerrors "github.com/goliatone/go-errors"
)

var structValidator = sync.OnceValue(newStructValidator)

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("currency", validateCurrency)
	v.RegisterStructValidation(validateCustomerRefParams,
		CreateCheckoutParams{},
		CreateSubscriptionParams{},
		CreatePaymentParams{},
	)
	v.RegisterStructValidation(validatePeriodOrder, Subscription{})
	return v
}

// Validate checks any resource or parameter shape and reports every
// violated field in a single ValidationError.
func Validate(value any) error {
	if value == nil {
		return NewValidationError("", "validation failed", goerrors.FieldError{
			Field:   "input",
			Message: "is required",
		})
	}
	err := structValidator().Struct(value)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return NewValidationError("", "validation failed", goerrors.FieldError{
			Field:   "input",
			Message: invalid.Error(),
		})
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return NewUnknownError("", "validation failed", err)
	}
	violations := make([]goerrors.FieldError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		violations = append(violations, goerrors.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: violationMessage(fe.Tag(), fe.Param()),
		})
	}
	return NewValidationError("", fmt.Sprintf("%d field(s) failed validation", len(violations)), violations...)
}

// ValidateID guards retrieve and delete calls.
func ValidateID(field string, id string) error {
	if strings.TrimSpace(id) != "" {
		return nil
	}
	if field = strings.TrimSpace(field); field == "" {
		field = "id"
	}
	return NewValidationError("", "validation failed", goerrors.FieldError{
		Field:   field,
		Message: "is required",
	})
}

// WithProvider stamps the provider id on an error produced before the
// provider was known.
func WithProvider(provider string, err error) error {
	var rich *goerrors.Error
	if err == nil || !goerrors.As(err, &rich) || strings.TrimSpace(provider) == "" {
		return err
	}
	if ProviderOf(rich) == "" {
		rich = attachMetadata(rich, map[string]any{metaProvider: provider})
	}
	return rich
}

func validateCurrency(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if len(value) != 3 {
		return false
	}
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

func validateCustomerRefParams(sl validator.StructLevel) {
	var ref *CustomerRef
	switch params := sl.Current().Interface().(type) {
	case CreateCheckoutParams:
		ref = &params.Customer
	case CreateSubscriptionParams:
		ref = &params.Customer
	case CreatePaymentParams:
		if params.Customer == nil {
			return
		}
		ref = params.Customer
	default:
		return
	}
	if strings.TrimSpace(ref.ID) == "" && strings.TrimSpace(ref.Email) == "" {
		sl.ReportError(ref.ID, "customer", "Customer", "customer_ref", "")
	}
}

func validatePeriodOrder(sl validator.StructLevel) {
	sub, ok := sl.Current().Interface().(Subscription)
	if !ok || sub.CurrentPeriodStart.IsZero() || sub.CurrentPeriodEnd.IsZero() {
		return
	}
	if sub.CurrentPeriodEnd.Before(sub.CurrentPeriodStart) {
		sl.ReportError(sub.CurrentPeriodEnd, "current_period_end", "CurrentPeriodEnd", "period_order", "current_period_start")
	}
}

func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func violationMessage(tag string, param string) string {
	switch tag {
	case "required", "required_without":
		if param != "" && tag == "required_without" {
			return fmt.Sprintf("is required when %s is empty", strings.ToLower(param))
		}
		return "is required"
	case "email":
		return "must be a valid email address"
	case "currency":
		return "must be a 3-letter currency code"
	case "iso3166_1_alpha2":
		return "must be an ISO 3166-1 alpha-2 country code"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(param, " ", ", ")
	case "url":
		return "must be a valid URL"
	case "gt":
		return "must be greater than " + param
	case "gte", "min":
		return "must be at least " + param
	case "lte", "max":
		return "must be at most " + param
	case "customer_ref":
		return "requires a customer id or an inline email"
	case "period_order":
		return "must not be before " + param
	default:
		return fmt.Sprintf("failed %s validation", tag)
	}
}
