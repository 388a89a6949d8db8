package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
	"github.com/joho/godotenv"
)

const (
	envHTTPAddr         = "PAYMENTS_HTTP_ADDR"
	envServiceName      = "PAYMENTS_SERVICE_NAME"
	envEnabledProviders = "PAYMENTS_ENABLED_PROVIDERS"
	envDefaultProvider  = "PAYMENTS_DEFAULT_PROVIDER"
	envRejectDuplicates = "PAYMENTS_REJECT_DUPLICATE_HANDLERS"
	envWebhookMaxBody   = "PAYMENTS_WEBHOOK_MAX_BODY_BYTES"
	envDBDriver         = "PAYMENTS_DB_DRIVER"
	envDBDSN            = "PAYMENTS_DB_DSN"
	envDedupeWindow     = "PAYMENTS_DEDUPE_WINDOW"
	envDedupeCacheTTL   = "PAYMENTS_DEDUPE_CACHE_TTL"
	envLogLevel         = "PAYMENTS_LOG_LEVEL"
	envLogPretty        = "PAYMENTS_LOG_PRETTY"
	defaultHTTPAddr     = ":8080"
	defaultDedupeWindow = 72 * time.Hour
	defaultDedupeCache  = 10 * time.Minute
	defaultEnvFile      = ".env"
	defaultEnabledList  = "local"
	defaultDBDriver     = "sqlite3"
)

type settings struct {
	Env     map[string]string
	Addr    string
	Enabled []string
	// Raw feeds the core config loader; keys follow the koanf tags of core.Config.
	Raw map[string]any

	DBDriver       string
	DBDSN          string
	DedupeWindow   time.Duration
	DedupeCacheTTL time.Duration

	LogLevel  string
	LogPretty bool
}

// loadEnv merges the dotenv files in order with the process environment.
// Process variables win. A missing default file is not an error.
func loadEnv(files []string, environ []string) (map[string]string, error) {
	env := map[string]string{}
	if len(files) == 0 {
		values, err := godotenv.Read(defaultEnvFile)
		switch {
		case err == nil:
			for key, value := range values {
				env[key] = value
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("paymentsd: read %s: %w", defaultEnvFile, err)
		}
	}
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("paymentsd: read %s: %w", file, err)
		}
		for key, value := range values {
			env[key] = value
		}
	}
	for _, pair := range environ {
		key, value, ok := strings.Cut(pair, "=")
		if ok && key != "" {
			env[key] = value
		}
	}
	return env, nil
}

func parseSettings(env map[string]string) (settings, error) {
	s := settings{
		Env:      env,
		Addr:     core.EnvOr(env, envHTTPAddr, defaultHTTPAddr),
		DBDriver: core.EnvOr(env, envDBDriver, defaultDBDriver),
		DBDSN:    strings.TrimSpace(env[envDBDSN]),
		LogLevel: core.EnvOr(env, envLogLevel, "info"),
		Enabled:  splitList(core.EnvOr(env, envEnabledProviders, defaultEnabledList)),
		Raw:      map[string]any{},
	}

	var errs []error
	var err error
	if s.LogPretty, err = envBool(env, envLogPretty); err != nil {
		errs = append(errs, err)
	}
	if s.DedupeWindow, err = envDuration(env, envDedupeWindow, defaultDedupeWindow); err != nil {
		errs = append(errs, err)
	}
	if s.DedupeCacheTTL, err = envDuration(env, envDedupeCacheTTL, defaultDedupeCache); err != nil {
		errs = append(errs, err)
	}

	if name := strings.TrimSpace(env[envServiceName]); name != "" {
		s.Raw["service_name"] = name
	}
	s.Raw["enabled_providers"] = append([]string(nil), s.Enabled...)
	if def := strings.ToLower(strings.TrimSpace(env[envDefaultProvider])); def != "" {
		s.Raw["default_provider"] = def
	} else if len(s.Enabled) == 1 {
		s.Raw["default_provider"] = s.Enabled[0]
	}

	webhooks := map[string]any{}
	reject, err := envBool(env, envRejectDuplicates)
	if err != nil {
		errs = append(errs, err)
	}
	webhooks["reject_duplicate_handlers"] = reject
	if raw := strings.TrimSpace(env[envWebhookMaxBody]); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || limit <= 0 {
			errs = append(errs, fmt.Errorf("paymentsd: %s must be a positive integer", envWebhookMaxBody))
		} else {
			webhooks["max_body_bytes"] = limit
		}
	}
	s.Raw["webhooks"] = webhooks

	if err := errors.Join(errs...); err != nil {
		return settings{}, err
	}
	return s, nil
}

func splitList(raw string) []string {
	out := []string{}
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envBool(env map[string]string, key string) (bool, error) {
	raw := strings.TrimSpace(env[key])
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("paymentsd: %s must be a boolean", key)
	}
	return value, nil
}

func envDuration(env map[string]string, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(env[key])
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("paymentsd: %s must be a positive duration", key)
	}
	return value, nil
}

func environ() []string {
	return os.Environ()
}
