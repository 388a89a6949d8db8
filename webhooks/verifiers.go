package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
)

// Verifier checks the authenticity of a delivery against its exact raw
// bytes. Failures are UnauthorizedError.
type Verifier interface {
	Verify(delivery core.WebhookDelivery) error
}

type VerifierFunc func(delivery core.WebhookDelivery) error

func (f VerifierFunc) Verify(delivery core.WebhookDelivery) error {
	return f(delivery)
}

const (
	EncodingHex    = "hex"
	EncodingBase64 = "base64"
)

// HeaderHMACVerifier compares an HMAC-SHA256 of the body with a header
// carried signature.
type HeaderHMACVerifier struct {
	Provider string
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HeaderHMACVerifier) Verify(delivery core.WebhookDelivery) error {
	header := strings.TrimSpace(delivery.Header(v.Header))
	if header == "" {
		return rejected(v.Provider, strings.TrimSpace(v.Header)+" signature header is required")
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return core.NewConfigurationError(v.Provider, []string{"webhook_secret"})
	}
	signature := strings.TrimSpace(strings.TrimPrefix(header, strings.TrimSpace(v.Prefix)))
	if signature == "" {
		return rejected(v.Provider, "signature value is required")
	}
	decoded, err := decodeSignature(v.Encoding, signature)
	if err != nil {
		return rejected(v.Provider, "signature is not valid "+normalizeEncoding(v.Encoding))
	}
	if subtle.ConstantTimeCompare(decoded, computeHMAC(secret, delivery.Body)) != 1 {
		return rejected(v.Provider, "signature verification failed")
	}
	return nil
}

// Sign returns the header value a sender would attach to body.
func (v HeaderHMACVerifier) Sign(body []byte) string {
	return strings.TrimSpace(v.Prefix) + encodeSignature(v.Encoding, computeHMAC(strings.TrimSpace(v.Secret), body))
}

// TimestampedHMACVerifier signs "<timestamp>.<body>" and rejects deliveries
// whose timestamp falls outside Tolerance.
type TimestampedHMACVerifier struct {
	Provider        string
	SignatureHeader string
	TimestampHeader string
	Secret          string
	Encoding        string
	Tolerance       time.Duration
	Now             func() time.Time
}

func (v TimestampedHMACVerifier) Verify(delivery core.WebhookDelivery) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return core.NewConfigurationError(v.Provider, []string{"webhook_secret"})
	}
	rawTimestamp := strings.TrimSpace(delivery.Header(v.TimestampHeader))
	signature := strings.TrimSpace(delivery.Header(v.SignatureHeader))
	if rawTimestamp == "" || signature == "" {
		return rejected(v.Provider, "timestamp and signature headers are required")
	}
	seconds, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return rejected(v.Provider, "timestamp is not a unix time")
	}
	skew := v.now().Sub(time.Unix(seconds, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance() {
		return rejected(v.Provider, "timestamp outside tolerance window")
	}
	decoded, err := decodeSignature(v.Encoding, signature)
	if err != nil {
		return rejected(v.Provider, "signature is not valid "+normalizeEncoding(v.Encoding))
	}
	if subtle.ConstantTimeCompare(decoded, computeHMAC(secret, signedPayload(rawTimestamp, delivery.Body))) != 1 {
		return rejected(v.Provider, "signature verification failed")
	}
	return nil
}

// Sign returns the timestamp and signature headers for body sent at at.
func (v TimestampedHMACVerifier) Sign(body []byte, at time.Time) map[string]string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	return map[string]string{
		v.TimestampHeader: timestamp,
		v.SignatureHeader: encodeSignature(v.Encoding, computeHMAC(strings.TrimSpace(v.Secret), signedPayload(timestamp, body))),
	}
}

func (v TimestampedHMACVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func (v TimestampedHMACVerifier) tolerance() time.Duration {
	if v.Tolerance > 0 {
		return v.Tolerance
	}
	return 5 * time.Minute
}

// HeaderTokenVerifier matches a shared token carried in a header.
type HeaderTokenVerifier struct {
	Provider string
	Header   string
	Token    string
}

func (v HeaderTokenVerifier) Verify(delivery core.WebhookDelivery) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return core.NewConfigurationError(v.Provider, []string{"webhook_token"})
	}
	actual := strings.TrimSpace(delivery.Header(v.Header))
	if actual == "" {
		return rejected(v.Provider, strings.TrimSpace(v.Header)+" verification header is required")
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return rejected(v.Provider, "verification token mismatch")
	}
	return nil
}

func rejected(provider string, message string) error {
	return core.NewUnauthorizedError(provider, "webhooks: "+message, nil)
}

func computeHMAC(secret string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return mac.Sum(nil)
}

func signedPayload(timestamp string, body []byte) []byte {
	payload := make([]byte, 0, len(timestamp)+1+len(body))
	payload = append(payload, timestamp...)
	payload = append(payload, '.')
	return append(payload, body...)
}

func normalizeEncoding(encoding string) string {
	if strings.EqualFold(strings.TrimSpace(encoding), EncodingBase64) {
		return EncodingBase64
	}
	return EncodingHex
}

func decodeSignature(encoding string, signature string) ([]byte, error) {
	if normalizeEncoding(encoding) == EncodingBase64 {
		return base64.StdEncoding.DecodeString(signature)
	}
	return hex.DecodeString(signature)
}

func encodeSignature(encoding string, sum []byte) string {
	if normalizeEncoding(encoding) == EncodingBase64 {
		return base64.StdEncoding.EncodeToString(sum)
	}
	return hex.EncodeToString(sum)
}
