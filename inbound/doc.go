// Package inbound bridges net/http webhook requests onto the webhook
// engines registered per provider.
package inbound
