// Package core contains the canonical payment resources, the provider
// capability contract, the error taxonomy and the service that instruments
// registered providers. Adapters depend on this package; core must not
// depend on provider-specific or transport-specific code.
package core
