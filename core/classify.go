package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"syscall"

	goerrors "github.com/goliatone/go-errors"
)

const maxStatusBodyMessage = 512

var (
	abortedPrefixes = []string{
		"context canceled",
		"request aborted",
		"operation was canceled",
		"aborted",
	}
	timeoutPrefixes = []string{
		"context deadline exceeded",
		"i/o timeout",
		"timeout",
		"request timed out",
	}
	connectionPrefixes = []string{
		"dial tcp",
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"eof",
	}
)

// ClassifyError maps a raw transport failure into the taxonomy. It is the
// single home of classification heuristics; adapters must not duplicate them.
func ClassifyError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && isTaxonomyCode(rich.TextCode) {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return NewAbortedError(provider, "request aborted", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError(provider, "request exceeded deadline", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError(provider, "request timed out", err)
	}
	if isConnectionErrno(err) {
		return NewConnectionError(provider, "connection failed", err)
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return NewConnectionError(provider, "connection failed", err)
	}

	if kind := kindFromName(err); kind != "" {
		return newKindError(kind, provider, err.Error(), err)
	}
	if kind := kindFromMessage(err.Error()); kind != "" {
		return newKindError(kind, provider, err.Error(), err)
	}
	return NewUnknownError(provider, "unclassified failure", err)
}

// ClassifyStatus maps a non-2xx HTTP response into the taxonomy. A 2xx
// status yields nil.
func ClassifyStatus(provider string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	message := statusMessage(status, body)
	var err *goerrors.Error
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		err = NewUnauthorizedError(provider, message, nil)
	case http.StatusBadRequest, http.StatusPaymentRequired, http.StatusNotFound,
		http.StatusConflict, http.StatusUnprocessableEntity:
		err = NewValidationError(provider, message, goerrors.FieldError{
			Field:   "request",
			Message: message,
		})
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		err = NewTimeoutError(provider, message, nil)
	case StatusClientClosedRequest:
		err = NewAbortedError(provider, message, nil)
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		err = NewConnectionError(provider, message, nil)
	default:
		err = NewUnknownError(provider, message, nil)
	}
	return attachMetadata(err, map[string]any{"status": status})
}

// StatusOf returns the HTTP status recorded by ClassifyStatus, or 0.
func StatusOf(err error) int {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Metadata == nil {
		return 0
	}
	status, _ := rich.Metadata["status"].(int)
	return status
}

func isConnectionErrno(err error) bool {
	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.EPIPE,
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func kindFromName(err error) ErrorKind {
	name := strings.ToLower(reflect.TypeOf(err).String())
	switch {
	case strings.Contains(name, "abort"), strings.Contains(name, "cancel"):
		return KindAborted
	case strings.Contains(name, "timeout"):
		return KindTimeout
	case strings.Contains(name, "connection"):
		return KindConnection
	}
	return ""
}

func kindFromMessage(message string) ErrorKind {
	message = strings.ToLower(strings.TrimSpace(message))
	if idx := strings.LastIndex(message, ": "); idx >= 0 && idx+2 < len(message) {
		message = message[idx+2:]
	}
	for _, prefix := range abortedPrefixes {
		if strings.HasPrefix(message, prefix) {
			return KindAborted
		}
	}
	for _, prefix := range timeoutPrefixes {
		if strings.HasPrefix(message, prefix) {
			return KindTimeout
		}
	}
	for _, prefix := range connectionPrefixes {
		if strings.HasPrefix(message, prefix) {
			return KindConnection
		}
	}
	return ""
}

func statusMessage(status int, body []byte) string {
	var envelope struct {
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            any    `json:"error"`
		Details          []struct {
			Issue       string `json:"issue"`
			Description string `json:"description"`
		} `json:"details"`
	}
	if len(body) > 0 && json.Unmarshal(body, &envelope) == nil {
		if nested, ok := envelope.Error.(map[string]any); ok {
			if msg, _ := nested["message"].(string); strings.TrimSpace(msg) != "" {
				return msg
			}
		}
		if len(envelope.Details) > 0 && strings.TrimSpace(envelope.Details[0].Description) != "" {
			return envelope.Details[0].Description
		}
		for _, candidate := range []string{envelope.Message, envelope.ErrorDescription} {
			if strings.TrimSpace(candidate) != "" {
				return candidate
			}
		}
		if msg, ok := envelope.Error.(string); ok && strings.TrimSpace(msg) != "" {
			return msg
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxStatusBodyMessage {
		text = text[:maxStatusBodyMessage]
	}
	if text == "" {
		text = http.StatusText(status)
	}
	return fmt.Sprintf("remote returned status %d: %s", status, text)
}
