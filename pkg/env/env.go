// Package env reads process environment variables with defaults, for the
// few knobs that need resolving before the config layer is up.
package env

import "os"

// Get returns the named variable, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
