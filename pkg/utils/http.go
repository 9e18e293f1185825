// Package utils provides common utility functions.
package utils

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultAgentName identifies the pipeline to remote servers.
const DefaultAgentName = "DataSyncBot/1.0"

// HTTPHelper provides HTTP utility functions.
type HTTPHelper struct {
	userAgent string
}

// NewHTTPHelper creates a new HTTP helper. Contact info is appended to the
// user agent because some government servers reject anonymous crawlers.
func NewHTTPHelper(contact string) *HTTPHelper {
	agent := DefaultAgentName
	if strings.TrimSpace(contact) != "" {
		agent = fmt.Sprintf("%s (%s)", DefaultAgentName, strings.TrimSpace(contact))
	}

	return &HTTPHelper{userAgent: agent}
}

// UserAgent returns the configured user agent.
func (h *HTTPHelper) UserAgent() string {
	return h.userAgent
}

// IsValidURL reports whether raw is an absolute http(s) URL.
func (h *HTTPHelper) IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// BuildHeaders creates HTTP headers with defaults.
func (h *HTTPHelper) BuildHeaders(customHeaders map[string]string) http.Header {
	headers := http.Header{}

	headers.Set("User-Agent", h.userAgent)
	headers.Set("Accept", "application/json, text/html, */*")

	for key, value := range customHeaders {
		headers.Set(key, value)
	}

	return headers
}
