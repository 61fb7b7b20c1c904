package httputil

import (
	"net/http"
	"testing"
	"time"
)

func TestKeyFetchConfig(t *testing.T) {
	cfg := KeyFetchConfig()

	tests := []struct {
		name     string
		got      time.Duration
		expected time.Duration
	}{
		{"Timeout", cfg.Timeout, 10 * time.Second},
		{"DialTimeout", cfg.DialTimeout, 5 * time.Second},
		{"ResponseHeaderTimeout", cfg.ResponseHeaderTimeout, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(OracleConfig())

	if client.Timeout != 120*time.Second {
		t.Errorf("Timeout = %v, want 120s", client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatal("Transport is not *http.Transport")
	}
	if transport.MaxIdleConnsPerHost != 10 {
		t.Errorf("MaxIdleConnsPerHost = %d, want 10", transport.MaxIdleConnsPerHost)
	}
}

func TestMaxAge(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"public, max-age=19302, must-revalidate, no-transform", 19302 * time.Second},
		{"max-age=60", time.Minute},
		{"", 0},
		{"public", 0},
		{"max-age=abc", 0},
		{"no-store, max-age=60", 0},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Cache-Control", tt.header)
			}
			if got := MaxAge(h); got != tt.want {
				t.Errorf("MaxAge(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}
