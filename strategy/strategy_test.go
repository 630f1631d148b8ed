package strategy

import (
	"Windfall/utilities"
	"testing"
)

// trendCandles builds a steadily rising series with flat volume; the last
// candle's volume is multiplied by volSpike.
func trendCandles(n int, start, step, volSpike float64) []utilities.Candle {
	candles := make([]utilities.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		vol := 100.0
		if i == n-1 {
			vol *= volSpike
		}
		candles[i] = utilities.Candle{
			Timestamp: int64(i) * 3600,
			Open:      price,
			High:      price + step,
			Low:       price - step/2,
			Close:     price + step,
			Volume:    vol,
		}
		price += step
	}
	return candles
}

// fallingCandles builds a steadily declining series with flat volume.
func fallingCandles(n int, start, step float64) []utilities.Candle {
	candles := make([]utilities.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		candles[i] = utilities.Candle{
			Timestamp: int64(i) * 3600,
			Open:      price,
			High:      price + step/2,
			Low:       price - step,
			Close:     price - step,
			Volume:    100,
		}
		price -= step
	}
	return candles
}

// zigzagCandles builds an upward-drifting series that alternates a +1.5 gain
// with a -1.0 loss, ending on a gain. Over any 14-candle RSI window the ratio
// of gains to losses is 1.5, which puts RSI at 60 — inside the neutral band.
func zigzagCandles(n int) []utilities.Candle {
	candles := make([]utilities.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		if i > 0 {
			if i%2 == 1 {
				price += 1.5
			} else {
				price -= 1.0
			}
		}
		candles[i] = utilities.Candle{
			Timestamp: int64(i) * 3600,
			Open:      price,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price,
			Volume:    100,
		}
	}
	return candles
}

func TestEvaluateFullConfluence(t *testing.T) {
	// Uptrend on both timeframes with neutral RSI and flat volume: both EMA
	// crossovers, both MACD histograms, and the RSI band fire; the volume
	// condition does not.
	c1h := zigzagCandles(60)
	c4h := trendCandles(30, 100, 2, 1)

	eval := Evaluate(c1h, c4h, utilities.IndicatorsConfig{}, 2.5, 1.5)
	if !eval.OK {
		t.Fatalf("expected OK evaluation, got reason %q", eval.Reason)
	}
	if eval.Score != 9 {
		t.Fatalf("expected score 9, got %d (reasons: %v)", eval.Score, eval.Reasons)
	}
	if len(eval.Reasons) != 5 {
		t.Fatalf("expected exactly 5 reasons, got %d: %v", len(eval.Reasons), eval.Reasons)
	}
	var sawRSI, sawVolume bool
	for _, reason := range eval.Reasons {
		if len(reason) >= 6 && reason[:6] == "1h RSI" {
			sawRSI = true
		}
		if len(reason) >= 6 && reason[:6] == "volume" {
			sawVolume = true
		}
	}
	if !sawRSI {
		t.Errorf("neutral RSI should contribute a reason: %v", eval.Reasons)
	}
	if sawVolume {
		t.Errorf("flat volume must not contribute a reason: %v", eval.Reasons)
	}

	lastClose := c1h[len(c1h)-1].Close
	if eval.Entry != lastClose {
		t.Errorf("entry = %f, want last 1h close %f", eval.Entry, lastClose)
	}
	wantTP := utilities.Round8(lastClose * 1.025)
	if eval.TakeProfit != wantTP {
		t.Errorf("take profit = %f, want %f", eval.TakeProfit, wantTP)
	}
	if eval.StopLoss <= 0 || eval.StopLoss >= eval.Entry {
		t.Errorf("stop loss = %f, want positive and below entry %f", eval.StopLoss, eval.Entry)
	}
}

func TestEvaluateVolumeSpikeReplacesRSIPoint(t *testing.T) {
	// Monotonic rise pins RSI at 100 (out of band) but the spiked last candle
	// contributes the volume point instead: still score 9, five reasons.
	c1h := trendCandles(60, 100, 1, 10)
	c4h := trendCandles(30, 100, 2, 1)

	eval := Evaluate(c1h, c4h, utilities.IndicatorsConfig{}, 2.5, 1.5)
	if !eval.OK {
		t.Fatalf("expected OK evaluation, got reason %q", eval.Reason)
	}
	if eval.Score != 9 {
		t.Fatalf("expected score 9, got %d (reasons: %v)", eval.Score, eval.Reasons)
	}
	if len(eval.Reasons) != 5 {
		t.Fatalf("expected 5 reasons, got %d: %v", len(eval.Reasons), eval.Reasons)
	}
}

func TestEvaluateDowntrendScoresZero(t *testing.T) {
	c1h := fallingCandles(60, 1000, 1)
	c4h := fallingCandles(30, 1000, 2)

	eval := Evaluate(c1h, c4h, utilities.IndicatorsConfig{}, 2.5, 1.5)
	if !eval.OK {
		t.Fatalf("expected OK evaluation, got reason %q", eval.Reason)
	}
	if eval.Score != 0 {
		t.Errorf("expected score 0 for downtrend, got %d (reasons: %v)", eval.Score, eval.Reasons)
	}
	if len(eval.Reasons) != 0 {
		t.Errorf("expected no reasons, got %v", eval.Reasons)
	}
}

func TestEvaluateInsufficientHistory(t *testing.T) {
	cases := []struct {
		name string
		n1h  int
		n4h  int
	}{
		{"short 1h", MinCandles1h - 1, 30},
		{"short 4h", 60, MinCandles4h - 1},
		{"both empty", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c1h := trendCandles(tc.n1h, 100, 1, 1)
			c4h := trendCandles(tc.n4h, 100, 2, 1)
			eval := Evaluate(c1h, c4h, utilities.IndicatorsConfig{}, 2.5, 1.5)
			if eval.OK {
				t.Fatal("expected evaluation to fail on short history")
			}
			if eval.Reason != InsufficientDataReason {
				t.Errorf("reason = %q, want %q", eval.Reason, InsufficientDataReason)
			}
		})
	}
}

func TestEvaluateStopLossFloor(t *testing.T) {
	// A micro-priced asset whose ATR dwarfs its price must not produce a
	// non-positive stop.
	c1h := trendCandles(60, 0.00000050, 0.00000001, 1)
	c4h := trendCandles(30, 0.00000050, 0.00000002, 1)
	// Inflate volatility far above the price level.
	for i := range c1h {
		c1h[i].High = c1h[i].Close + 0.01
		c1h[i].Low = 0
	}

	eval := Evaluate(c1h, c4h, utilities.IndicatorsConfig{}, 2.5, 1.5)
	if !eval.OK {
		t.Fatalf("expected OK evaluation, got reason %q", eval.Reason)
	}
	if eval.StopLoss != 1e-8 {
		t.Errorf("stop loss = %g, want floor 1e-8", eval.StopLoss)
	}
}

func TestCheckVolumeSpike(t *testing.T) {
	candles := trendCandles(30, 100, 1, 1)
	if CheckVolumeSpike(candles, 1.5, 20) {
		t.Error("flat volume should not register as a spike")
	}
	candles[len(candles)-1].Volume = 150 // exactly 1.5x the trailing average
	if !CheckVolumeSpike(candles, 1.5, 20) {
		t.Error("volume at exactly factor times the average should register")
	}
}

func TestCalculateRSIBounds(t *testing.T) {
	rising := trendCandles(30, 100, 1, 1)
	if got := CalculateRSI(rising, 14); got != 100 {
		t.Errorf("RSI of all-gain series = %f, want 100", got)
	}
	falling := fallingCandles(30, 1000, 1)
	if got := CalculateRSI(falling, 14); got != 0 {
		t.Errorf("RSI of all-loss series = %f, want 0", got)
	}
	if got := CalculateRSI(rising[:5], 14); got != 50 {
		t.Errorf("RSI with insufficient history = %f, want neutral 50", got)
	}
}

func TestCalculateATRRequiresHistory(t *testing.T) {
	candles := trendCandles(10, 100, 1, 1)
	if _, err := CalculateATR(candles, 14); err == nil {
		t.Error("expected error for ATR over insufficient history")
	}
	atr, err := CalculateATR(trendCandles(20, 100, 1, 1), 14)
	if err != nil {
		t.Fatalf("unexpected ATR error: %v", err)
	}
	if atr <= 0 {
		t.Errorf("ATR = %f, want positive", atr)
	}
}
