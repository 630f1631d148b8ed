// File: dataprovider/coingecko/cgclient.go
package coingecko

import (
	"Windfall/dataprovider"
	utils "Windfall/utilities"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client fetches the ranked coin universe from the CoinGecko markets API.
// Responses flow through the shared FetchClient, which rate-limits, retries
// transient failures, caches the list with a short TTL, and serves the
// last-known snapshot when the upstream is down.
type Client struct {
	BaseURL string
	APIKey  string
	fetch   *dataprovider.FetchClient
	logger  *utils.Logger
	cfg     *utils.CoingeckoConfig
}

type cgMarketRow struct {
	ID            string  `json:"id"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	CurrentPrice  float64 `json:"current_price"`
	MarketCap     float64 `json:"market_cap"`
	MarketCapRank int     `json:"market_cap_rank"`
	TotalVolume   float64 `json:"total_volume"`
}

func NewClient(cfg *utils.CoingeckoConfig, logger *utils.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("coingecko client: config cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("coingecko client: BaseURL is required")
	}
	if logger == nil {
		logger = utils.NewLogger(utils.Info)
		logger.LogWarn("CoinGecko Client: Logger not provided, using default logger.")
	}

	fetch := dataprovider.NewFetchClient(dataprovider.FetchOptions{
		Timeout:         time.Duration(cfg.RequestTimeoutSec) * time.Second,
		RateLimitPerSec: cfg.RateLimitPerSec,
		RateLimitBurst:  cfg.RateLimitBurst,
		MaxRetries:      cfg.MaxRetries,
		BaseDelay:       time.Duration(cfg.RetryDelaySec) * time.Second,
		CacheTTL:        time.Duration(cfg.CacheTTLMinutes) * time.Minute,
	}, logger)

	logger.LogInfo("CoinGecko client initialized with URL: %s, cache TTL: %dm", cfg.BaseURL, cfg.CacheTTLMinutes)
	return &Client{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		fetch:   fetch,
		logger:  logger,
		cfg:     cfg,
	}, nil
}

// GetMarketSnapshot returns the top coins by market cap, descending. The
// result is the TTL-cached markets list; a stale snapshot is preferred over
// an error when the upstream fails completely.
func (c *Client) GetMarketSnapshot(ctx context.Context, limit int) ([]dataprovider.MarketEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("page", "1")
	if c.APIKey != "" {
		params.Set("x_cg_pro_api_key", c.APIKey)
	}
	endpoint := strings.TrimSuffix(c.BaseURL, "/") + "/coins/markets?" + params.Encode()

	body, err := c.fetch.FetchCached(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("coingecko: fetch markets: %w", err)
	}

	var rows []cgMarketRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("coingecko: decode markets response: %w", err)
	}

	entries := make([]dataprovider.MarketEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, dataprovider.MarketEntry{
			Symbol:    strings.ToUpper(row.Symbol),
			Price:     row.CurrentPrice,
			Volume:    row.TotalVolume,
			MarketCap: row.MarketCap,
		})
	}
	c.logger.LogDebug("CoinGecko: market snapshot returned %d entries.", len(entries))
	return entries, nil
}
