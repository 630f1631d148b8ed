package strategy

import (
	"Windfall/utilities"
	"fmt"
	"time"
)

// Minimum candle history for stable indicator values. Shorter series produce
// an InsufficientData evaluation, which is a valid terminal outcome for the
// symbol, not an error to retry.
const (
	MinCandles1h = 50
	MinCandles4h = 20
)

// Confluence weights. Each condition is independent and additive; the
// long-timeframe trend dominates.
const (
	weight4hTrend    = 3
	weight4hMomentum = 2
	weight1hTrend    = 2
	weight1hMomentum = 1
	weightRSINeutral = 1
	weightVolSpike   = 1
)

// RSI neutral band: avoids both oversold and overbought entries.
const (
	rsiBandLow  = 45.0
	rsiBandHigh = 65.0
)

// stopLossFloor prevents a non-positive or nonsensical stop price for
// low-priced assets.
const stopLossFloor = 1e-8

// InsufficientDataReason is the fixed reason string for a series too short to score.
const InsufficientDataReason = "not enough candles"

// Evaluation is the outcome of scoring one symbol's multi-timeframe candles.
// When OK is false, Reason explains why no score was produced.
type Evaluation struct {
	OK         bool
	Reason     string
	Score      int
	Entry      float64
	TakeProfit float64
	StopLoss   float64
	Reasons    []string
}

// Signal is a scored, ranked trading candidate produced by one scan pass.
type Signal struct {
	Symbol      string    `json:"symbol"`
	Score       int       `json:"score"`
	Entry       float64   `json:"entry"`
	TakeProfit  float64   `json:"takeProfit"`
	StopLoss    float64   `json:"stopLoss"`
	Reasons     []string  `json:"reasons"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Evaluate reduces 1h and 4h candle series to a single confluence score with
// the list of contributing reasons. The algorithm is fixed and deterministic:
// EMA(fast/slow) and MACD histogram on both timeframes, RSI and ATR on the
// short timeframe, and a volume-spike check on the most recent candle.
func Evaluate(candles1h, candles4h []utilities.Candle, ind utilities.IndicatorsConfig, tpPercent, slATRMultiple float64) Evaluation {
	ind = ind.Defaults()
	if slATRMultiple <= 0 {
		slATRMultiple = 1.5
	}

	if len(candles1h) < MinCandles1h || len(candles4h) < MinCandles4h {
		return Evaluation{OK: false, Reason: InsufficientDataReason}
	}

	closes1h := extractCloses(candles1h)
	closes4h := extractCloses(candles4h)

	atr, err := CalculateATR(candles1h, ind.ATRPeriod)
	if err != nil {
		return Evaluation{OK: false, Reason: InsufficientDataReason}
	}

	ema4hFast := ComputeEMASeries(closes4h, ind.EMAFastPeriod)
	ema4hSlow := ComputeEMASeries(closes4h, ind.EMASlowPeriod)
	ema1hFast := ComputeEMASeries(closes1h, ind.EMAFastPeriod)
	ema1hSlow := ComputeEMASeries(closes1h, ind.EMASlowPeriod)

	macdHist4h := CalculateMACDHistogram(closes4h, ind.MACDFastPeriod, ind.MACDSlowPeriod, ind.MACDSignalPeriod)
	macdHist1h := CalculateMACDHistogram(closes1h, ind.MACDFastPeriod, ind.MACDSlowPeriod, ind.MACDSignalPeriod)
	rsi := CalculateRSI(candles1h, ind.RSIPeriod)

	score := 0
	var reasons []string

	if last(ema4hFast) > last(ema4hSlow) {
		score += weight4hTrend
		reasons = append(reasons, fmt.Sprintf("4h EMA%d above EMA%d (bullish trend)", ind.EMAFastPeriod, ind.EMASlowPeriod))
	}
	if macdHist4h > 0 {
		score += weight4hMomentum
		reasons = append(reasons, "4h MACD histogram positive")
	}
	if last(ema1hFast) > last(ema1hSlow) {
		score += weight1hTrend
		reasons = append(reasons, fmt.Sprintf("1h EMA%d above EMA%d", ind.EMAFastPeriod, ind.EMASlowPeriod))
	}
	if macdHist1h > 0 {
		score += weight1hMomentum
		reasons = append(reasons, "1h MACD histogram positive")
	}
	if rsi >= rsiBandLow && rsi <= rsiBandHigh {
		score += weightRSINeutral
		reasons = append(reasons, fmt.Sprintf("1h RSI neutral (%.1f)", rsi))
	}
	if CheckVolumeSpike(candles1h, ind.VolumeSpikeFactor, ind.VolumeLookbackPeriod) {
		score += weightVolSpike
		reasons = append(reasons, fmt.Sprintf("volume spike vs %d-candle average", ind.VolumeLookbackPeriod))
	}

	entry := closes1h[len(closes1h)-1]
	takeProfit := utilities.Round8(entry * (1 + tpPercent/100))
	stopLoss := entry - slATRMultiple*atr
	if stopLoss < stopLossFloor {
		stopLoss = stopLossFloor
	}

	return Evaluation{
		OK:         true,
		Score:      score,
		Entry:      entry,
		TakeProfit: takeProfit,
		StopLoss:   utilities.Round8(stopLoss),
		Reasons:    reasons,
	}
}

func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
