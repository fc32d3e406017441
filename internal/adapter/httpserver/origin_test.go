package httpserver

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	allowed := parseOrigins("https://stampsys.example.com/app, https://admin.example.com")

	tests := []struct {
		name          string
		origin        string
		isDevelopment bool
		want          bool
	}{
		// Always allowed
		{"empty origin", "", false, true},
		{"app origin", "https://stampsys.example.com", false, true},
		{"second origin", "https://admin.example.com", false, true},

		// Rejected in production
		{"different host", "https://evil.com", false, false},
		{"different port", "https://stampsys.example.com:9090", false, false},
		{"http instead of https", "http://stampsys.example.com", false, false},
		{"subdomain", "https://sub.stampsys.example.com", false, false},

		// Localhost: allowed in dev, rejected in prod
		{"localhost dev", "http://localhost:5173", true, true},
		{"127.0.0.1 dev", "http://127.0.0.1:3000", true, true},
		{"localhost prod rejected", "http://localhost:5173", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := newCheckOrigin(allowed, tt.isDevelopment)
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/api/rooms/1/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}

func TestNewCheckOrigin_NoneConfiguredAllowsAll(t *testing.T) {
	checker := newCheckOrigin(nil, false)
	r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/api/rooms/1/ws", nil)
	r.Header.Set("Origin", "https://anywhere.example.org")

	assert.True(t, checker(r))
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t,
		[]string{"https://a.example.com", "http://localhost:8080"},
		parseOrigins(" https://a.example.com/path ,not-a-url,, http://localhost:8080"),
	)
	assert.Empty(t, parseOrigins(""))
}

func TestExtractOrigin(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		want   string
	}{
		{"full URL with path", "https://example.com/rooms/1", "https://example.com"},
		{"URL with port", "https://example.com:8443/path", "https://example.com:8443"},
		{"http URL", "http://localhost:8080/callback", "http://localhost:8080"},
		{"empty string", "", ""},
		{"no host", "mailto:user@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractOrigin(tt.rawURL))
		})
	}
}
