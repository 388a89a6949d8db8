// Package providers groups the payment backend adapters.
//
// Each subpackage exposes a ProviderID constant, a Config with a
// ConfigFromEnv constructor that reads a supplied map, and New returning a
// core.Provider. Capabilities a backend cannot serve answer with
// NotImplementedError through core.UnimplementedProvider.
//
//   - stripe: form-encoded REST, static secret key, signed webhooks.
//   - paypal: JSON REST, OAuth2 client credentials, verify-signature API.
//   - local: in-memory backend with signed batch deliveries.
//   - devkit: fakes and conformance checks for adapter tests.
package providers
