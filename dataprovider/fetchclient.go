// File: dataprovider/fetchclient.go
package dataprovider

import (
	"Windfall/utilities"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// FetchClient wraps outbound HTTP GETs to market-data providers with a rate
// limiter, bounded exponential-backoff retry on transient failure, and a
// small in-memory TTL cache for list responses.
type FetchClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *utilities.Logger
	maxRetries uint64
	baseDelay  time.Duration
	cacheTTL   time.Duration

	cacheMu sync.Mutex
	cache   map[string]cachedResponse
}

type cachedResponse struct {
	body      []byte
	fetchedAt time.Time
}

// FetchOptions configures a FetchClient. Zero values fall back to safe defaults.
type FetchOptions struct {
	Timeout         time.Duration
	RateLimitPerSec float64
	RateLimitBurst  int
	MaxRetries      int
	BaseDelay       time.Duration
	CacheTTL        time.Duration
}

// NewFetchClient creates a FetchClient from the given options.
func NewFetchClient(opts FetchOptions, logger *utilities.Logger) *FetchClient {
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
		logger.LogWarn("FetchClient: Logger fallback used.")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RateLimitPerSec <= 0 {
		opts.RateLimitPerSec = 1.0
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 1
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3 // 4 attempts total
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 2 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 4 * time.Minute
	}
	return &FetchClient{
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst),
		logger:     logger,
		maxRetries: uint64(opts.MaxRetries),
		baseDelay:  opts.BaseDelay,
		cacheTTL:   opts.CacheTTL,
		cache:      make(map[string]cachedResponse),
	}
}

// Fetch issues a GET and returns the response body. Network errors, timeouts,
// rate-limit responses, and 5xx responses are retried with exponential
// backoff plus jitter up to the configured bound; other non-2xx responses
// fail immediately.
func (f *FetchClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait for %s: %w", url, err)
	}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request for %s: %w", url, err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "WindfallBot/1.0")

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("execute request for %s: %w", url, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return fmt.Errorf("read response body for %s: %w", url, err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: http 429 for %s", ErrRateLimited, url)
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: http %d for %s", ErrUpstream, resp.StatusCode, url)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return backoff.Permanent(fmt.Errorf("%w: http %d for %s: %s", ErrUpstream, resp.StatusCode, url, string(data[:min(len(data), 256)])))
		}

		body = data
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = f.baseDelay
	expo.Multiplier = 2.0
	expo.RandomizationFactor = 0.5
	expo.MaxElapsedTime = 0

	policy := backoff.WithMaxRetries(backoff.WithContext(expo, ctx), f.maxRetries)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}

// FetchCached serves from the TTL cache when fresh, fetches otherwise, and on
// total fetch failure returns the last-known (possibly stale) cached body
// rather than failing the caller. Staleness beats unavailability for ranking
// inputs.
func (f *FetchClient) FetchCached(ctx context.Context, url string) ([]byte, error) {
	f.cacheMu.Lock()
	entry, ok := f.cache[url]
	f.cacheMu.Unlock()

	if ok && time.Since(entry.fetchedAt) < f.cacheTTL {
		f.logger.LogDebug("FetchClient: cache hit for %s (age %s)", url, time.Since(entry.fetchedAt).Round(time.Millisecond))
		return entry.body, nil
	}

	body, err := f.Fetch(ctx, url)
	if err != nil {
		if ok {
			f.logger.LogWarn("FetchClient: fetch failed for %s, serving stale cache from %s: %v", url, entry.fetchedAt.Format(time.RFC3339), err)
			return entry.body, nil
		}
		return nil, err
	}

	f.cacheMu.Lock()
	f.cache[url] = cachedResponse{body: body, fetchedAt: time.Now()}
	f.cacheMu.Unlock()
	return body, nil
}
