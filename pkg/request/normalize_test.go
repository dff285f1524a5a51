package request

import "testing"

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		host     string
		expected string
	}{
		{"unpkg.com", "npm-cdn"},
		{"cdn.jsdelivr.net", "npm-cdn"},
		{"www.naturalearthdata.com", "naturalearthdata.com"},
		{"Example.COM:8443", "example.com"},
		{"127.0.0.1:5555", "127.0.0.1"},
		{"other.com", "other.com"},
	}

	for _, tt := range tests {
		if got := normalizeHost(tt.host); got != tt.expected {
			t.Errorf("normalizeHost(%q) = %q; want %q", tt.host, got, tt.expected)
		}
	}
}
