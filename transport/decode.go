package transport

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/goliatone/go-payments/core"
)

// DecodeJSON parses a successful response body into T.
func DecodeJSON[T any](provider string, res Response) core.Result[T] {
	var out T
	if len(strings.TrimSpace(string(res.Body))) == 0 {
		return core.Ok(out)
	}
	if err := json.Unmarshal(res.Body, &out); err != nil {
		return core.Err[T](decodeFailed(provider, res.StatusCode, err))
	}
	return core.Ok(out)
}

// Send performs the request and decodes its JSON answer.
func Send[T any](ctx context.Context, client *Client, req Request) core.Result[T] {
	res, err := client.Do(ctx, req)
	if err != nil {
		return core.Err[T](err)
	}
	return DecodeJSON[T](client.Provider(), res)
}

// JSONRequest builds a request with a JSON encoded body.
func JSONRequest(method string, target string, payload any) (Request, error) {
	req := Request{
		Method:  method,
		URL:     target,
		Headers: map[string]string{"Accept": "application/json"},
	}
	if payload == nil {
		return req, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Request{}, core.NewUnknownError("", "encode request body", err)
	}
	req.Body = body
	req.Headers["Content-Type"] = "application/json"
	return req, nil
}

// FormRequest builds a request with an application/x-www-form-urlencoded
// body. Keys are encoded in sorted order.
func FormRequest(method string, target string, values url.Values) Request {
	req := Request{
		Method:  method,
		URL:     target,
		Headers: map[string]string{"Accept": "application/json"},
	}
	if len(values) == 0 {
		return req
	}
	req.Body = []byte(values.Encode())
	req.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	return req
}

// MetadataForm flattens a metadata bag into bracketed form keys such as
// metadata[order_id].
func MetadataForm(values url.Values, prefix string, metadata map[string]string) {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		values.Set(prefix+"["+key+"]", metadata[key])
	}
}
