package inbound

import (
	"encoding/json"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payments/core"
)

func providerNotRegistered(provider string) error {
	return core.NewValidationError(provider, "inbound: no webhook engine registered", goerrors.FieldError{
		Field:   "provider",
		Message: "not registered",
	})
}

func duplicateProvider(provider string) error {
	return core.NewValidationError(provider, "inbound: webhook engine already registered", goerrors.FieldError{
		Field:   "provider",
		Message: "already registered",
	})
}

// statusFor maps a taxonomy error to the answer the remote backend sees.
// Unauthorized deliveries get 401 so backends do not treat them as accepted.
func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch core.KindOf(err) {
	case core.KindUnauthorized:
		return http.StatusUnauthorized
	case core.KindValidation:
		violations := core.Violations(err)
		if len(violations) == 1 {
			switch violations[0].Field {
			case "provider":
				return http.StatusNotFound
			case "body":
				return http.StatusRequestEntityTooLarge
			}
		}
		return http.StatusBadRequest
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code >= http.StatusBadRequest {
		return rich.Code
	}
	return http.StatusInternalServerError
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorEnvelope{Error: errorBody{
		Kind:    string(core.KindOf(err)),
		Message: err.Error(),
	}})
}
