package core

import (
	"sort"
	"strings"
)

// RequireEnv checks that every key is present and non-blank in env and
// returns the values. The error lists exactly the missing keys.
func RequireEnv(provider string, env map[string]string, keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	missing := []string{}
	for _, key := range keys {
		value := strings.TrimSpace(env[key])
		if value == "" {
			missing = append(missing, key)
			continue
		}
		values[key] = value
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, NewConfigurationError(provider, missing)
	}
	return values, nil
}

// EnvOr returns env[key] or fallback when the key is absent or blank.
func EnvOr(env map[string]string, key string, fallback string) string {
	if value := strings.TrimSpace(env[key]); value != "" {
		return value
	}
	return fallback
}
