package entity

import (
	"fmt"
	"net/url"
	"strings"

	"rpc-scanner/internal/pkg/apperrors"
)

// Endpoint is a validated base URL of one RPC service.
type Endpoint string

// NewEndpoint validates rawURL and returns it as an Endpoint. Only http and https are accepted.
func NewEndpoint(rawURL string) (Endpoint, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: endpoint url cannot be empty", apperrors.ErrInvalidInput)
	}

	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid endpoint url format '%s': %v", apperrors.ErrInvalidInput, rawURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("%w: endpoint url '%s' has unsupported scheme: '%s'",
			apperrors.ErrInvalidInput, rawURL, u.Scheme,
		)
	}

	if u.Host == "" || u.Hostname() == "" {
		return "", fmt.Errorf("%w: endpoint url '%s' has no host", apperrors.ErrInvalidInput, rawURL)
	}

	return Endpoint(strings.TrimRight(rawURL, "/")), nil
}

// MustEndpoint is NewEndpoint for static values; it panics on invalid input.
func MustEndpoint(rawURL string) Endpoint {
	e, err := NewEndpoint(rawURL)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the string representation of the Endpoint.
func (e Endpoint) String() string {
	return string(e)
}

// IsTLS reports whether the endpoint uses https.
func (e Endpoint) IsTLS() bool {
	return strings.HasPrefix(strings.ToLower(string(e)), "https://")
}

// WebsocketURL returns the ws:// or wss:// form of the endpoint.
func (e Endpoint) WebsocketURL() string {
	scheme, rest, _ := strings.Cut(string(e), "://")
	if strings.EqualFold(scheme, "https") {
		return "wss://" + rest
	}
	return "ws://" + rest
}

// Short renders the endpoint the way the batch table shows it: (S) for https, (H) for http.
func (e Endpoint) Short() string {
	_, rest, _ := strings.Cut(string(e), "://")
	if e.IsTLS() {
		return "(S)" + rest
	}
	return "(H)" + rest
}
