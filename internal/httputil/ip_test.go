package httputil

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr with port", "10.0.0.7:5123", "", "10.0.0.7"},
		{"remote addr without port", "10.0.0.7", "", "10.0.0.7"},
		{"single forwarded hop", "10.0.0.7:5123", "203.0.113.9", "203.0.113.9"},
		{"multiple forwarded hops", "10.0.0.7:5123", "203.0.113.9, 10.0.0.1", "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
