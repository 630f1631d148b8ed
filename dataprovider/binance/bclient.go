// File: dataprovider/binance/bclient.go
package binance

import (
	"Windfall/dataprovider"
	utils "Windfall/utilities"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Client fetches candle series and spot prices from the Binance public API.
// Candle responses are not cached: every scan wants the freshest bars, and
// the FetchClient's limiter keeps the request rate bounded.
type Client struct {
	BaseURL string
	fetch   *dataprovider.FetchClient
	logger  *utils.Logger
}

// supportedTimeframes maps our timeframe strings to the Binance kline
// interval parameter. Only the scan timeframes are allowed through.
var supportedTimeframes = map[string]string{
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"1h":  "1h",
	"4h":  "4h",
	"1d":  "1d",
}

type bTickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func NewClient(cfg *utils.BinanceConfig, logger *utils.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("binance client: config cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("binance client: BaseURL is required")
	}
	if logger == nil {
		logger = utils.NewLogger(utils.Info)
		logger.LogWarn("Binance Client: Logger not provided, using default logger.")
	}

	fetch := dataprovider.NewFetchClient(dataprovider.FetchOptions{
		Timeout:         time.Duration(cfg.RequestTimeoutSec) * time.Second,
		RateLimitPerSec: cfg.RateLimitPerSec,
		RateLimitBurst:  cfg.RateLimitBurst,
		MaxRetries:      cfg.MaxRetries,
		BaseDelay:       time.Duration(cfg.RetryDelaySec) * time.Second,
	}, logger)

	logger.LogInfo("Binance client initialized with URL: %s", cfg.BaseURL)
	return &Client{BaseURL: cfg.BaseURL, fetch: fetch, logger: logger}, nil
}

// GetCandles returns up to limit candles for the pair and timeframe,
// oldest-first. Klines arrive as mixed-type arrays: open time, then OHLCV as
// strings, then fields we ignore.
func (c *Client) GetCandles(ctx context.Context, pair, timeframe string, limit int) ([]utils.Candle, error) {
	interval, ok := supportedTimeframes[timeframe]
	if !ok {
		return nil, fmt.Errorf("binance: unsupported timeframe %q", timeframe)
	}
	if limit <= 0 {
		limit = 100
	}

	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	endpoint := c.BaseURL + "/api/v3/klines?" + params.Encode()

	body, err := c.fetch.Fetch(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("binance: fetch klines for %s %s: %w", pair, timeframe, err)
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("binance: decode klines for %s: %w", pair, err)
	}

	candles := make([]utils.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			return nil, fmt.Errorf("binance: short kline row for %s (len %d)", pair, len(k))
		}
		ts, err := utils.ParseFloatFromInterface(k[0])
		if err != nil {
			return nil, fmt.Errorf("binance: parse kline timestamp for %s: %w", pair, err)
		}
		var fields [5]float64
		for i := 1; i <= 5; i++ {
			v, err := utils.ParseFloatFromInterface(k[i])
			if err != nil {
				return nil, fmt.Errorf("binance: parse kline field %d for %s: %w", i, pair, err)
			}
			fields[i-1] = v
		}
		candles = append(candles, utils.Candle{
			Timestamp: int64(ts),
			Open:      fields[0],
			High:      fields[1],
			Low:       fields[2],
			Close:     fields[3],
			Volume:    fields[4],
		})
	}
	utils.SortCandlesByTimestamp(candles)
	return candles, nil
}

// GetPrice returns the latest traded price for the pair.
func (c *Client) GetPrice(ctx context.Context, pair string) (float64, error) {
	endpoint := c.BaseURL + "/api/v3/ticker/price?symbol=" + url.QueryEscape(pair)
	body, err := c.fetch.Fetch(ctx, endpoint)
	if err != nil {
		return 0, fmt.Errorf("binance: fetch ticker for %s: %w", pair, err)
	}

	var ticker bTickerPrice
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, fmt.Errorf("binance: decode ticker for %s: %w", pair, err)
	}
	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: parse ticker price %q for %s: %w", ticker.Price, pair, err)
	}
	return price, nil
}
