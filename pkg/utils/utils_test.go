package utils

import "testing"

func TestHTTPHelper_UserAgent(t *testing.T) {
	h := NewHTTPHelper("ops (ops@example.com)")
	if got := h.UserAgent(); got != "DataSyncBot/1.0 (ops (ops@example.com))" {
		t.Errorf("UserAgent = %q", got)
	}

	if got := NewHTTPHelper("").UserAgent(); got != DefaultAgentName {
		t.Errorf("UserAgent without contact = %q, want %q", got, DefaultAgentName)
	}
}

func TestHTTPHelper_BuildHeaders(t *testing.T) {
	h := NewHTTPHelper("")
	headers := h.BuildHeaders(map[string]string{"Accept": "text/html"})

	if headers.Get("Accept") != "text/html" {
		t.Errorf("Expected custom Accept header, got %q", headers.Get("Accept"))
	}

	if headers.Get("User-Agent") != DefaultAgentName {
		t.Errorf("Expected default User-Agent, got %q", headers.Get("User-Agent"))
	}
}

func TestHTTPHelper_IsValidURL(t *testing.T) {
	h := NewHTTPHelper("")

	tests := []struct {
		url  string
		want bool
	}{
		{"https://download.bls.gov/pub/time.series/pr/", true},
		{"http://localhost:9000/x", true},
		{"ftp://example.com/", false},
		{"/relative/path", false},
		{"://bad", false},
	}

	for _, tt := range tests {
		if got := h.IsValidURL(tt.url); got != tt.want {
			t.Errorf("IsValidURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestStringHelper_NormalizeFieldName(t *testing.T) {
	s := NewStringHelper()

	tests := map[string]string{
		"  Series ID ":    "series_id",
		"Year":            "year",
		"footnote_codes":  "footnote_codes",
		"\tSlug Nation\n": "slug_nation",
	}

	for in, want := range tests {
		if got := s.NormalizeFieldName(in); got != want {
			t.Errorf("NormalizeFieldName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStringHelper_NormalizeWhitespace(t *testing.T) {
	s := NewStringHelper()

	if got := s.NormalizeWhitespace("1/2/2024   5:00  AM"); got != "1/2/2024 5:00 AM" {
		t.Errorf("NormalizeWhitespace = %q", got)
	}
}
