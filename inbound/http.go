package inbound

import (
	"io"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/webhooks"
)

const defaultMaxBodyBytes int64 = 1 << 20

// ProviderResolver extracts the provider id from a request, typically from
// a route variable.
type ProviderResolver func(r *http.Request) string

type HandlerOption func(*HTTPHandler)

func WithMaxBodyBytes(limit int64) HandlerOption {
	return func(h *HTTPHandler) {
		if limit > 0 {
			h.maxBody = limit
		}
	}
}

func WithHandlerLogger(logger core.Logger) HandlerOption {
	return func(h *HTTPHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// HTTPHandler buffers the request verbatim and hands it to the dispatcher.
// Handler failures answer 500 so the backend redelivers.
type HTTPHandler struct {
	dispatcher *Dispatcher
	resolve    ProviderResolver
	maxBody    int64
	logger     core.Logger
}

func NewHTTPHandler(dispatcher *Dispatcher, resolve ProviderResolver, opts ...HandlerOption) *HTTPHandler {
	h := &HTTPHandler{
		dispatcher: dispatcher,
		resolve:    resolve,
		maxBody:    defaultMaxBodyBytes,
		logger:     glog.Nop(),
	}
	if h.resolve == nil {
		h.resolve = func(r *http.Request) string { return r.URL.Query().Get("provider") }
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

type deliveryResponse struct {
	Provider string            `json:"provider"`
	Stage    webhooks.Stage    `json:"stage"`
	Outcomes []outcomeResponse `json:"outcomes"`
}

type outcomeResponse struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorEnvelope{Error: errorBody{Message: "method not allowed"}})
		return
	}
	provider := h.resolve(r)

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
	if err != nil {
		writeError(w, core.ClassifyError(provider, err))
		return
	}
	if int64(len(body)) > h.maxBody {
		writeError(w, core.NewValidationError(provider, "inbound: body too large", goerrors.FieldError{
			Field:   "body",
			Message: "exceeds limit",
		}))
		return
	}

	delivery := core.WebhookDelivery{
		Body:    body,
		Headers: flattenHeaders(r.Header),
		FullURL: fullURL(r),
	}
	report, err := h.dispatcher.Dispatch(r.Context(), provider, delivery)
	if err != nil {
		h.logger.Warn("webhook delivery not accepted",
			"provider", provider,
			"stage", string(report.Stage),
			"error", err.Error(),
		)
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if report.Failed() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, toResponse(report))
}

func toResponse(report webhooks.Report) deliveryResponse {
	out := deliveryResponse{Provider: report.Provider, Stage: report.Stage, Outcomes: []outcomeResponse{}}
	for _, outcome := range report.Outcomes {
		out.Outcomes = append(out.Outcomes, outcomeResponse{
			EventID: outcome.EventID,
			Type:    string(outcome.Type),
			Status:  string(outcome.Status),
			Reason:  outcome.Reason,
		})
	}
	return out
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func fullURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
