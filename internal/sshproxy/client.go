// Package sshproxy is the client for the NERSC sshproxy signing service.
package sshproxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const (
	// DefaultURL is the production sshproxy endpoint.
	DefaultURL = "https://sshproxy.nersc.gov"
	// DefaultScope selects the standard 24 hour certificate.
	DefaultScope = "default"
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second

	maxBody = 1 << 20
)

var (
	// ErrNetwork covers transport failures and unexpected HTTP statuses.
	ErrNetwork = errors.New("network failure")

	// ErrAuthentication is returned when the service rejects the password
	// and one-time code.
	ErrAuthentication = errors.New("authentication failed")
)

// Client requests key pairs from the signing service.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.http.Timeout = d }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	transport := cleanhttp.DefaultTransport()
	// The service speaks HTTP/1.1 only.
	transport.ForceAttemptHTTP2 = false
	transport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: transport,
			Timeout:   DefaultTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the create_pair URL for scope.
func (c *Client) Endpoint(scope string) string {
	return fmt.Sprintf("%s/create_pair/%s/", c.baseURL, url.PathEscape(scope))
}

// CreatePair posts to create_pair/<scope>/ with Basic-Auth (user, token)
// and returns the raw response body.
func (c *Client) CreatePair(ctx context.Context, scope, user, token string) ([]byte, error) {
	endpoint := c.Endpoint(scope)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth(user, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: POST %s: %w", ErrNetwork, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrNetwork, err)
	}
	if len(body) > maxBody {
		return nil, fmt.Errorf("%w: response too large (over %d bytes)", ErrNetwork, maxBody)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: server returned %s; check your password and OTP", ErrAuthentication, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: server returned %s: %s", ErrNetwork, resp.Status, snippet(body))
	case bytes.Contains(body, []byte("Authentication failed")):
		return nil, fmt.Errorf("%w: check your password and OTP", ErrAuthentication)
	}

	return body, nil
}

// snippet keeps error messages short; a misbehaving proxy can return a page
// of HTML.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
