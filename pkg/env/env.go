package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// ListenPort is the port the API binds to. Hosting platforms inject PORT,
// which wins over the configured STOCKCAST_APP_PORT.
func ListenPort(configured string) string {
	return Get("PORT", configured)
}
