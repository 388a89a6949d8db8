package core

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrorKind is the closed failure taxonomy shared by every adapter. It is
// carried as the TextCode of a *goerrors.Error.
type ErrorKind string

const (
	KindConnection     ErrorKind = "ConnectionError"
	KindTimeout        ErrorKind = "TimeoutError"
	KindAborted        ErrorKind = "AbortedError"
	KindUnauthorized   ErrorKind = "UnauthorizedError"
	KindValidation     ErrorKind = "ValidationError"
	KindNotImplemented ErrorKind = "NotImplementedError"
	KindConfiguration  ErrorKind = "ConfigurationError"
	KindUnknown        ErrorKind = "UnknownError"
)

const (
	metaProvider      = "provider"
	metaFutureSupport = "future_support"
	metaMissingKeys   = "missing_keys"
	metaConflicts     = "conflicts"
	metaCapability    = "capability"
)

// StatusClientClosedRequest mirrors the non-standard 499 used for caller aborts.
const StatusClientClosedRequest = 499

var kinds = []ErrorKind{
	KindConnection,
	KindTimeout,
	KindAborted,
	KindUnauthorized,
	KindValidation,
	KindNotImplemented,
	KindConfiguration,
	KindUnknown,
}

func (k ErrorKind) String() string {
	return string(k)
}

func (k ErrorKind) category() goerrors.Category {
	switch k {
	case KindConnection, KindTimeout:
		return goerrors.CategoryExternal
	case KindAborted, KindNotImplemented:
		return goerrors.CategoryOperation
	case KindUnauthorized:
		return goerrors.CategoryAuth
	case KindValidation:
		return goerrors.CategoryValidation
	default:
		return goerrors.CategoryInternal
	}
}

func (k ErrorKind) httpStatus() int {
	switch k {
	case KindConnection:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindAborted:
		return StatusClientClosedRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func newKindError(kind ErrorKind, provider string, message string, cause error) *goerrors.Error {
	var err *goerrors.Error
	if cause != nil {
		err = goerrors.Wrap(cause, kind.category(), message)
	} else {
		err = goerrors.New(message, kind.category())
	}
	err = err.WithCode(kind.httpStatus()).WithTextCode(string(kind))
	if provider = strings.TrimSpace(provider); provider != "" {
		err = attachMetadata(err, map[string]any{metaProvider: provider})
	}
	return err
}

// attachMetadata merges meta into the error metadata without dropping keys
// that are already present.
func attachMetadata(err *goerrors.Error, meta map[string]any) *goerrors.Error {
	if err == nil || len(meta) == 0 {
		return err
	}
	merged := make(map[string]any, len(err.Metadata)+len(meta))
	for key, value := range err.Metadata {
		merged[key] = value
	}
	for key, value := range meta {
		merged[key] = value
	}
	return err.WithMetadata(merged)
}

func NewConnectionError(provider string, message string, cause error) *goerrors.Error {
	return newKindError(KindConnection, provider, message, cause)
}

func NewTimeoutError(provider string, message string, cause error) *goerrors.Error {
	return newKindError(KindTimeout, provider, message, cause)
}

func NewAbortedError(provider string, message string, cause error) *goerrors.Error {
	return newKindError(KindAborted, provider, message, cause)
}

func NewUnauthorizedError(provider string, message string, cause error) *goerrors.Error {
	return newKindError(KindUnauthorized, provider, message, cause)
}

func NewUnknownError(provider string, message string, cause error) *goerrors.Error {
	return newKindError(KindUnknown, provider, message, cause)
}

// NewValidationError reports every violated field at once.
func NewValidationError(provider string, message string, violations ...goerrors.FieldError) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "validation failed"
	}
	err := goerrors.NewValidation(message, violations...).
		WithCode(KindValidation.httpStatus()).
		WithTextCode(string(KindValidation))
	if provider = strings.TrimSpace(provider); provider != "" {
		err = attachMetadata(err, map[string]any{metaProvider: provider})
	}
	return err
}

// NewNotImplementedError marks a capability the adapter does not offer.
// futureSupport distinguishes "not wired yet" from "this backend never will".
func NewNotImplementedError(provider string, capability Capability, futureSupport bool) *goerrors.Error {
	message := fmt.Sprintf("%s: %s is not supported", strings.TrimSpace(provider), capability)
	if futureSupport {
		message = fmt.Sprintf("%s: %s is not implemented yet", strings.TrimSpace(provider), capability)
	}
	return attachMetadata(newKindError(KindNotImplemented, provider, message, nil), map[string]any{
		metaCapability:    string(capability),
		metaFutureSupport: futureSupport,
	})
}

// NewConfigurationError lists exactly the configuration keys that are missing.
func NewConfigurationError(provider string, missing []string) *goerrors.Error {
	keys := append([]string(nil), missing...)
	message := fmt.Sprintf("%s: missing required configuration: %s", strings.TrimSpace(provider), strings.Join(keys, ", "))
	return attachMetadata(newKindError(KindConfiguration, provider, message, nil), map[string]any{metaMissingKeys: keys})
}

// NewConflictingConfigurationError reports settings that were supplied but
// contradict each other or a strict policy.
func NewConflictingConfigurationError(provider string, message string, conflicts []string) *goerrors.Error {
	keys := append([]string(nil), conflicts...)
	if strings.TrimSpace(message) == "" {
		message = "conflicting configuration"
	}
	message = fmt.Sprintf("%s: %s: %s", strings.TrimSpace(provider), message, strings.Join(keys, ", "))
	return attachMetadata(newKindError(KindConfiguration, provider, message, nil), map[string]any{metaConflicts: keys})
}

// Conflicts returns the keys carried by a conflicting configuration error.
func Conflicts(err error) []string {
	rich := asKind(err, KindConfiguration)
	if rich == nil || rich.Metadata == nil {
		return nil
	}
	keys, _ := rich.Metadata[metaConflicts].([]string)
	return append([]string(nil), keys...)
}

// KindOf reports the taxonomy kind of err. Errors outside the taxonomy are
// reported as KindUnknown; a nil error yields "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if isTaxonomyCode(rich.TextCode) {
			return ErrorKind(strings.TrimSpace(rich.TextCode))
		}
	}
	return KindUnknown
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// FutureSupport returns the hint carried by a NotImplementedError.
func FutureSupport(err error) (future bool, ok bool) {
	rich := asKind(err, KindNotImplemented)
	if rich == nil {
		return false, false
	}
	value, found := rich.Metadata[metaFutureSupport].(bool)
	return value, found
}

// MissingKeys returns the keys reported by a ConfigurationError.
func MissingKeys(err error) []string {
	rich := asKind(err, KindConfiguration)
	if rich == nil {
		return nil
	}
	keys, _ := rich.Metadata[metaMissingKeys].([]string)
	return append([]string(nil), keys...)
}

// Violations returns the field-level violations of a ValidationError.
func Violations(err error) []goerrors.FieldError {
	rich := asKind(err, KindValidation)
	if rich == nil {
		return nil
	}
	violations := []goerrors.FieldError{}
	for _, violation := range rich.AllValidationErrors() {
		violations = append(violations, violation)
	}
	return violations
}

// ProviderOf returns the provider id an error originated from.
func ProviderOf(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Metadata == nil {
		return ""
	}
	provider, _ := rich.Metadata[metaProvider].(string)
	return provider
}

// MapError normalizes any error into the taxonomy so public methods never
// surface an opaque failure.
func MapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && isTaxonomyCode(rich.TextCode) {
		return err
	}
	return ClassifyError(provider, err)
}

func isTaxonomyCode(code string) bool {
	code = strings.TrimSpace(code)
	for _, kind := range kinds {
		if code == string(kind) {
			return true
		}
	}
	return false
}

func asKind(err error, kind ErrorKind) *goerrors.Error {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return nil
	}
	if ErrorKind(rich.TextCode) != kind {
		return nil
	}
	return rich
}
