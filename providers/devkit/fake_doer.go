package devkit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// Script is one canned answer of a FakeDoer.
type Script struct {
	Status  int
	Body    string
	Headers map[string]string
	Err     error
}

// CapturedRequest is a buffered copy of a request seen by a FakeDoer.
type CapturedRequest struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// FakeDoer answers HTTP calls from a script without touching the network.
// Once the script is exhausted the last entry repeats.
type FakeDoer struct {
	mu       sync.Mutex
	scripts  []Script
	requests []CapturedRequest
}

func NewFakeDoer(scripts ...Script) *FakeDoer {
	return &FakeDoer{scripts: append([]Script(nil), scripts...)}
}

// JSON is a shorthand script for a JSON answer.
func JSON(status int, body string) Script {
	return Script{Status: status, Body: body, Headers: map[string]string{"Content-Type": "application/json"}}
}

func (d *FakeDoer) Do(req *http.Request) (*http.Response, error) {
	if d == nil {
		return nil, fmt.Errorf("devkit: fake doer is nil")
	}
	var body []byte
	if req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = raw
	}
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, CapturedRequest{
		Method:  req.Method,
		URL:     req.URL.String(),
		Headers: req.Header.Clone(),
		Body:    body,
	})
	script := Script{Status: http.StatusOK, Body: "{}"}
	index := len(d.requests) - 1
	switch {
	case index < len(d.scripts):
		script = d.scripts[index]
	case len(d.scripts) > 0:
		script = d.scripts[len(d.scripts)-1]
	}
	if script.Err != nil {
		return nil, script.Err
	}
	status := script.Status
	if status == 0 {
		status = http.StatusOK
	}
	headers := http.Header{}
	for key, value := range script.Headers {
		headers.Set(key, value)
	}
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     headers,
		Body:       io.NopCloser(bytes.NewReader([]byte(script.Body))),
		Request:    req,
	}, nil
}

func (d *FakeDoer) Requests() []CapturedRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]CapturedRequest, 0, len(d.requests))
	for _, item := range d.requests {
		out = append(out, CapturedRequest{
			Method:  item.Method,
			URL:     item.URL,
			Headers: item.Headers.Clone(),
			Body:    append([]byte(nil), item.Body...),
		})
	}
	return out
}

// Last returns the most recent request, or a zero value.
func (d *FakeDoer) Last() CapturedRequest {
	requests := d.Requests()
	if len(requests) == 0 {
		return CapturedRequest{}
	}
	return requests[len(requests)-1]
}

// Form decodes a captured x-www-form-urlencoded body.
func (r CapturedRequest) Form() map[string]string {
	out := map[string]string{}
	values, err := url.ParseQuery(string(r.Body))
	if err != nil {
		return out
	}
	for key := range values {
		out[key] = values.Get(key)
	}
	return out
}
