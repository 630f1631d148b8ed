// File: dataprovider/dataproviders.go
package dataprovider

import (
	"Windfall/utilities"
	"context"
	"errors"
)

// Transient classification for fetch failures. A timeout is treated the same
// as a network error; both are retried at the fetch layer before surfacing.
var (
	ErrRateLimited = errors.New("dataprovider: rate limited by upstream")
	ErrUpstream    = errors.New("dataprovider: upstream returned an error")
)

// CandleProvider fetches OHLCV candle series and spot prices for a trading
// pair (e.g. "BTCUSDT"). Candles are returned oldest-first.
type CandleProvider interface {
	GetCandles(ctx context.Context, pair, timeframe string, limit int) ([]utilities.Candle, error)
	GetPrice(ctx context.Context, pair string) (float64, error)
}

// MarketEntry is one row of the ranked coin universe.
type MarketEntry struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	MarketCap float64 `json:"marketCap"`
}

// MarketProvider returns the ranked coin universe, ordered by market cap.
// Implementations cache the list with a short TTL and fall back to the
// last-known snapshot when the upstream is unreachable.
type MarketProvider interface {
	GetMarketSnapshot(ctx context.Context, limit int) ([]MarketEntry, error)
}
