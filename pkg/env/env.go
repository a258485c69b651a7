// Package env holds the one lookup helper used outside envconfig-loaded
// structs, for knobs read before config is available.
package env

import "os"

// Get reads key from the environment, falling back when it is unset or blank.
func Get(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
