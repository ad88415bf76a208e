package client

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// StreamPath is the fixed websocket path served by the queue server
const StreamPath = "/ws"

var (
	ErrEmptyOrigin       = errors.New("origin is empty")
	ErrUnsupportedScheme = errors.New("unsupported origin scheme")
)

// EndpointURL derives the websocket endpoint from the origin of the page
// (or server) hosting the queue: same host, http upgraded to ws and https
// to wss, fixed path. A bare host[:port] is treated as http.
func EndpointURL(origin string) (string, error) {
	trimmed := strings.TrimSpace(origin)
	if trimmed == "" {
		return "", ErrEmptyOrigin
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid origin %q: missing host", origin)
	}

	var scheme string
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		scheme = "ws"
	case "https", "wss":
		scheme = "wss"
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)
	}

	endpoint := url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   StreamPath,
	}
	return endpoint.String(), nil
}
