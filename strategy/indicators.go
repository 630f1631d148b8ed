package strategy

import (
	"Windfall/utilities"
	"fmt"
	"math"
)

// ComputeEMASeries explicitly computes the Exponential Moving Average (EMA)
// series over the data, seeded with the first value.
func ComputeEMASeries(data []float64, period int) []float64 {
	if period <= 0 || len(data) == 0 {
		return nil
	}

	ema := make([]float64, len(data))
	multiplier := 2.0 / float64(period+1)

	ema[0] = data[0]
	for i := 1; i < len(data); i++ {
		ema[i] = (data[i]-ema[i-1])*multiplier + ema[i-1]
	}
	return ema
}

// CalculateRSI explicitly calculates the Relative Strength Index (RSI) over the given candles.
func CalculateRSI(candles []utilities.Candle, period int) float64 {
	if len(candles) < period+1 || period <= 0 {
		return 50.0 // neutral
	}
	gains, losses := 0.0, 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// CalculateMACDHistogram computes the latest MACD histogram value
// (MACD line minus signal line) over the close series.
func CalculateMACDHistogram(closes []float64, fastPeriod, slowPeriod, signalPeriod int) float64 {
	fastEMA := ComputeEMASeries(closes, fastPeriod)
	slowEMA := ComputeEMASeries(closes, slowPeriod)
	if fastEMA == nil || slowEMA == nil {
		return 0
	}

	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalEMA := ComputeEMASeries(macdLine, signalPeriod)

	idx := len(macdLine) - 1
	return macdLine[idx] - signalEMA[idx]
}

// CalculateATR explicitly calculates the Average True Range (ATR) over the last 'period' candles.
func CalculateATR(candles []utilities.Candle, period int) (float64, error) {
	n := len(candles)
	if period <= 0 || n < period+1 {
		return 0.0, fmt.Errorf("not enough candles (%d) for ATR calculation of period %d", n, period)
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		curr := candles[n-i]
		prev := candles[n-i-1]

		highLow := curr.High - curr.Low
		highClose := math.Abs(curr.High - prev.Close)
		lowClose := math.Abs(curr.Low - prev.Close)

		trueRange := math.Max(highLow, math.Max(highClose, lowClose))
		sum += trueRange
	}
	return sum / float64(period), nil
}

// CheckVolumeSpike explicitly checks whether the most recent candle's volume
// exceeds the trailing average (excluding itself) by the given factor.
func CheckVolumeSpike(candles []utilities.Candle, factor float64, period int) bool {
	if len(candles) <= period {
		return false
	}
	sum := 0.0
	for i := len(candles) - period - 1; i < len(candles)-1; i++ {
		sum += candles[i].Volume
	}
	avg := sum / float64(period)
	return candles[len(candles)-1].Volume >= avg*factor
}

// extractCloses is a helper function to get a slice of close prices from candles.
func extractCloses(candles []utilities.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}
