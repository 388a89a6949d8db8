package transport

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payments/core"
)

func clientMisconfigured(provider string, key string) error {
	return core.NewConfigurationError(provider, []string{key})
}

func invalidRequest(provider string, field string, message string) error {
	return core.NewValidationError(provider, "transport: invalid request", goerrors.FieldError{
		Field:   field,
		Message: message,
	})
}

func responseTooLarge(provider string, status int, limit int64) error {
	return core.NewUnknownError(provider, fmt.Sprintf("transport: response body exceeds limit of %d bytes (status %d)", limit, status), nil)
}

func decodeFailed(provider string, status int, cause error) error {
	return core.NewUnknownError(provider, fmt.Sprintf("transport: decode %s response", http.StatusText(status)), cause)
}

func retryCeilingExceeded(provider string, attempts int, last error) error {
	return core.NewUnknownError(provider, fmt.Sprintf("transport: authorization still rejected after %d attempts", attempts), last)
}
