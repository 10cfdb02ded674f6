// Package client provides an HTTP client for the networking API that owns
// router rules, tenant policies and reachability tests.
package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"grimm.is/policyctl/internal/brand"
	"grimm.is/policyctl/internal/config"
	"grimm.is/policyctl/internal/rules"
)

// errNotFound marks a 404 so callers can map it to their own sentinel.
var errNotFound = errors.New("not found")

// HTTPClient talks to the networking API.
type HTTPClient struct {
	baseURL             string
	token               string
	httpClient          *http.Client
	expectedFingerprint string
}

// ClientOption configures the HTTPClient.
type ClientOption func(*HTTPClient)

// WithToken sets the X-Auth-Token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *HTTPClient) {
		c.token = token
	}
}

// WithFingerprint pins the server certificate (SHA-256 hex).
func WithFingerprint(fp string) ClientOption {
	return func(c *HTTPClient) {
		c.expectedFingerprint = strings.ToLower(fp)
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client. Fingerprint pinning is
// not applied to a caller-supplied client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// NewHTTPClient creates a client for the given base URL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: config.DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.expectedFingerprint != "" && c.httpClient.Transport == nil {
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				// Chain verification is replaced by the pin below.
				InsecureSkipVerify:    true,
				VerifyPeerCertificate: c.verifyFingerprint,
			},
		}
	}
	return c
}

// FromConfig builds a client from the api block of the configuration.
func FromConfig(cfg *config.APIConfig) (*HTTPClient, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("api endpoint is not configured")
	}
	return NewHTTPClient(cfg.Endpoint,
		WithToken(cfg.Token),
		WithFingerprint(cfg.Fingerprint),
		WithTimeout(cfg.TimeoutDuration()),
	), nil
}

func (c *HTTPClient) verifyFingerprint(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("server presented no certificate")
	}
	hash := sha256.Sum256(rawCerts[0])
	fingerprint := hex.EncodeToString(hash[:])

	if fingerprint != c.expectedFingerprint {
		return fmt.Errorf("certificate fingerprint mismatch! Expected %s, got %s", c.expectedFingerprint, fingerprint)
	}
	return nil
}

// doRequest performs an HTTP request and decodes the JSON response.
// Transport errors and non-2xx statuses wrap rules.ErrUpstreamFailure;
// 404 additionally wraps errNotFound.
func (c *HTTPClient) doRequest(ctx context.Context, method, path string, body, result any) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	req.Header.Set("User-Agent", brand.UserAgent(brand.Version))
	if c.token != "" {
		req.Header.Set("X-Auth-Token", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, rules.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w: %w", rules.ErrUpstreamFailure, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w (status 404): %w", method, path, rules.ErrUpstreamFailure, errNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %w (status %d): %s", method, path, rules.ErrUpstreamFailure, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w: %w", method, path, rules.ErrUpstreamFailure, err)
		}
	}

	return nil
}
