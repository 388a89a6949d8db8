package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Root is the logger name every payments component hangs off.
const Root = "payments"

// Name scopes a component under Root, so "webhooks" becomes
// "payments.webhooks". An empty component yields Root itself.
func Name(component string) string {
	component = strings.Trim(strings.TrimSpace(component), ".")
	if component == "" || component == Root || strings.HasPrefix(component, Root+".") {
		if component == "" {
			return Root
		}
		return component
	}
	return Root + "." + component
}

// Resolve uses deterministic precedence provider > logger > nop for the
// named component.
func Resolve(component string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(Name(component), provider, logger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves the component logger and returns the go-job
// bridges the webhook delivery worker is built with.
func ResolveForJob(
	component string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(component, provider, logger)
	return resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
