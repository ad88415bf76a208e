package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		expected string
		wantErr  error
	}{
		{
			name:     "http upgrades to ws",
			origin:   "http://localhost:8080",
			expected: "ws://localhost:8080/ws",
		},
		{
			name:     "https upgrades to wss",
			origin:   "https://mock.example.com",
			expected: "wss://mock.example.com/ws",
		},
		{
			name:     "page path is replaced",
			origin:   "http://localhost:8080/index.html?x=1#top",
			expected: "ws://localhost:8080/ws",
		},
		{
			name:     "ws origin kept",
			origin:   "ws://queue:80",
			expected: "ws://queue:80/ws",
		},
		{
			name:     "wss origin kept",
			origin:   "WSS://queue",
			expected: "wss://queue/ws",
		},
		{
			name:     "bare host and port",
			origin:   "localhost:8080",
			expected: "ws://localhost:8080/ws",
		},
		{
			name:     "ipv6 host",
			origin:   "http://[::1]:8080",
			expected: "ws://[::1]:8080/ws",
		},
		{
			name:     "surrounding whitespace",
			origin:   "  http://localhost  ",
			expected: "ws://localhost/ws",
		},
		{
			name:    "empty origin",
			origin:  "   ",
			wantErr: ErrEmptyOrigin,
		},
		{
			name:    "unsupported scheme",
			origin:  "ftp://files.example.com",
			wantErr: ErrUnsupportedScheme,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EndpointURL(tt.origin)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEndpointURLMissingHost(t *testing.T) {
	_, err := EndpointURL("http://")
	assert.Error(t, err)
}
