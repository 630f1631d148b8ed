package strategy

import (
	"Windfall/dataprovider"
	"Windfall/utilities"
	"context"
	"errors"
	"testing"
)

// fakeCandleProvider serves canned candle series per pair and records which
// pairs were requested.
type fakeCandleProvider struct {
	candles   map[string][]utilities.Candle
	errors    map[string]error
	requested []string
}

func (f *fakeCandleProvider) GetCandles(ctx context.Context, pair, timeframe string, limit int) ([]utilities.Candle, error) {
	f.requested = append(f.requested, pair+"/"+timeframe)
	if err, ok := f.errors[pair]; ok {
		return nil, err
	}
	series, ok := f.candles[pair]
	if !ok {
		return nil, errors.New("unknown pair")
	}
	return series, nil
}

func (f *fakeCandleProvider) GetPrice(ctx context.Context, pair string) (float64, error) {
	series, ok := f.candles[pair]
	if !ok || len(series) == 0 {
		return 0, errors.New("unknown pair")
	}
	return series[len(series)-1].Close, nil
}

func testTradingConfig() utilities.TradingConfig {
	return utilities.TradingConfig{
		QuoteCurrency:   "USDT",
		Stablecoins:     []string{"USDT", "USDC", "DAI"},
		CandleHistory1h: 60,
		CandleHistory4h: 30,
	}
}

func TestScanSkipsStablecoinsAndQuote(t *testing.T) {
	provider := &fakeCandleProvider{candles: map[string][]utilities.Candle{}}
	scanner := NewScanner(provider, testTradingConfig(), utilities.IndicatorsConfig{}, utilities.NewLogger(utilities.Error))

	universe := []dataprovider.MarketEntry{
		{Symbol: "USDT"},
		{Symbol: "USDC"},
		{Symbol: "DAI"},
	}
	signals, err := scanner.Scan(context.Background(), universe, 2.5, 1, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("expected no signals, got %d", len(signals))
	}
	if len(provider.requested) != 0 {
		t.Errorf("stablecoins should be skipped before any fetch, got requests: %v", provider.requested)
	}
}

func TestScanSurvivesPerSymbolFailures(t *testing.T) {
	// The fake serves the same series for both timeframes; it is long enough
	// to satisfy the 1h and the 4h minimum.
	uptrend := trendCandles(60, 100, 1, 10)
	provider := &fakeCandleProvider{
		candles: map[string][]utilities.Candle{
			"ETHUSDT": uptrend,
		},
		errors: map[string]error{
			"BTCUSDT": dataprovider.ErrRateLimited,
		},
	}

	scanner := NewScanner(provider, testTradingConfig(), utilities.IndicatorsConfig{}, utilities.NewLogger(utilities.Error))
	universe := []dataprovider.MarketEntry{
		{Symbol: "BTC"}, // provider fails for this one
		{Symbol: "ETH"},
	}
	signals, err := scanner.Scan(context.Background(), universe, 2.5, 1, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal despite BTC failure, got %d", len(signals))
	}
	if signals[0].Symbol != "ETHUSDT" {
		t.Errorf("signal symbol = %q, want ETHUSDT", signals[0].Symbol)
	}
	if signals[0].Score < 1 {
		t.Errorf("signal score = %d, want >= 1", signals[0].Score)
	}
}

func TestScanRespectsMaxResultsAndThreshold(t *testing.T) {
	uptrend := trendCandles(60, 100, 1, 10)
	provider := &fakeCandleProvider{
		candles: map[string][]utilities.Candle{
			"AAAUSDT": uptrend,
			"BBBUSDT": uptrend,
			"CCCUSDT": uptrend,
		},
	}
	scanner := NewScanner(provider, testTradingConfig(), utilities.IndicatorsConfig{}, utilities.NewLogger(utilities.Error))
	universe := []dataprovider.MarketEntry{
		{Symbol: "AAA"}, {Symbol: "BBB"}, {Symbol: "CCC"},
	}

	signals, err := scanner.Scan(context.Background(), universe, 2.5, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 2 {
		t.Errorf("expected maxResults to cap signals at 2, got %d", len(signals))
	}

	// A threshold above the achievable score filters everything out.
	signals, err = scanner.Scan(context.Background(), universe, 2.5, 10, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("expected no signals above score 10, got %d", len(signals))
	}
}

func TestScanStopsOnCancelledContext(t *testing.T) {
	provider := &fakeCandleProvider{candles: map[string][]utilities.Candle{}}
	scanner := NewScanner(provider, testTradingConfig(), utilities.IndicatorsConfig{}, utilities.NewLogger(utilities.Error))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := scanner.Scan(ctx, []dataprovider.MarketEntry{{Symbol: "BTC"}}, 2.5, 1, 5)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
