// File: pkg/broker/coinbase/cclient.go
package coinbase

import (
	utils "Windfall/utilities"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// errEndpointUnsupported marks a response that indicates the endpoint variant
// does not exist on this account's API surface, so the next variant in the
// chain should be tried.
var errEndpointUnsupported = errors.New("coinbase: endpoint variant unsupported")

// errAuthRejected marks a 401/403. A key issued for one API surface is often
// rejected by the other, so reads treat this as a reason to try the next
// variant.
var errAuthRejected = errors.New("coinbase: authentication rejected")

// errVenueUnavailable marks a 5xx response from the venue.
var errVenueUnavailable = errors.New("coinbase: venue unavailable")

// Client is the low-level signed HTTP client for the venue. It knows how to
// authenticate a request and how to classify failures; the Adapter above it
// decides which endpoints to call.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	passphrase string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *utils.Logger
}

func NewClient(cfg *utils.VenueConfig, logger *utils.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("coinbase client: config cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("coinbase client: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("coinbase client: invalid BaseURL: %w", err)
	}
	if logger == nil {
		logger = utils.NewLogger(utils.Info)
	}
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		passphrase: cfg.Passphrase,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the full credential triple is configured.
func (c *Client) HasCredentials() bool {
	return c.apiKey != "" && c.apiSecret != "" && c.passphrase != ""
}

// doPublic performs an unauthenticated GET against the venue.
func (c *Client) doPublic(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil, false)
}

// doPrivate performs a signed request against the venue. It fails fast with
// broker-level semantics when no credentials are configured; the caller is
// expected to have checked already.
func (c *Client) doPrivate(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	return c.do(ctx, method, path, body, true)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, signed bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("coinbase: build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	if signed {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		headers, err := utils.GenerateVenueAuthHeaders(c.apiKey, c.apiSecret, c.passphrase, timestamp, method, path, string(body))
		if err != nil {
			return nil, fmt.Errorf("coinbase: sign request %s %s: %w", method, path, err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coinbase: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coinbase: read response for %s %s: %w", method, path, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return payload, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed:
		// Path not present on this API surface: signal the adapter to try
		// the next endpoint variant.
		c.logger.LogDebug("Coinbase: %s %s returned %d, trying next endpoint variant.", method, path, resp.StatusCode)
		return nil, fmt.Errorf("%w: %s %s (status %d)", errEndpointUnsupported, method, path, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s %s (status %d): %s", errAuthRejected, method, path, resp.StatusCode, truncate(payload, 256))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s %s (status %d): %s", errVenueUnavailable, method, path, resp.StatusCode, truncate(payload, 256))
	default:
		return nil, fmt.Errorf("coinbase: %s %s: status %d: %s", method, path, resp.StatusCode, truncate(payload, 256))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
