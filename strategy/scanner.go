package strategy

import (
	"Windfall/dataprovider"
	"Windfall/utilities"
	"context"
	"sort"
	"strings"
	"time"
)

// Scanner walks a ranked coin universe, evaluates each tradable symbol, and
// returns the highest-scoring candidates. Per-symbol failures (thin history,
// unknown pair, provider hiccups) are logged and skipped so one bad symbol
// never sinks the whole pass.
type Scanner struct {
	provider      dataprovider.CandleProvider
	logger        *utilities.Logger
	quote         string
	stables       map[string]bool
	indicators    utilities.IndicatorsConfig
	history1h     int
	history4h     int
	slATRMultiple float64
}

func NewScanner(provider dataprovider.CandleProvider, trading utilities.TradingConfig, indicators utilities.IndicatorsConfig, logger *utilities.Logger) *Scanner {
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}
	quote := strings.ToUpper(trading.QuoteCurrency)
	if quote == "" {
		quote = "USDT"
	}
	stables := make(map[string]bool)
	for _, s := range trading.Stablecoins {
		stables[strings.ToUpper(s)] = true
	}
	if len(stables) == 0 {
		for _, s := range []string{"USDT", "USDC", "DAI", "BUSD", "TUSD", "FDUSD"} {
			stables[s] = true
		}
	}
	history1h := trading.CandleHistory1h
	if history1h < MinCandles1h {
		history1h = 100
	}
	history4h := trading.CandleHistory4h
	if history4h < MinCandles4h {
		history4h = 60
	}
	slATRMultiple := trading.StopLossATRMultiple
	if slATRMultiple <= 0 {
		slATRMultiple = 1.5
	}
	return &Scanner{
		provider:      provider,
		logger:        logger,
		quote:         quote,
		stables:       stables,
		indicators:    indicators.Defaults(),
		history1h:     history1h,
		history4h:     history4h,
		slATRMultiple: slATRMultiple,
	}
}

// Scan evaluates the universe in rank order and returns up to maxResults
// signals with score >= minScore, sorted by score descending. Stablecoins and
// the quote currency itself are skipped before any network call.
func (s *Scanner) Scan(ctx context.Context, universe []dataprovider.MarketEntry, tpPercent float64, minScore, maxResults int) ([]Signal, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	var signals []Signal
	for _, entry := range universe {
		if err := ctx.Err(); err != nil {
			return signals, err
		}
		base := strings.ToUpper(entry.Symbol)
		if base == "" || base == s.quote || s.stables[base] {
			continue
		}
		pair := base + s.quote

		candles1h, err := s.provider.GetCandles(ctx, pair, "1h", s.history1h)
		if err != nil {
			s.logger.LogDebug("Scanner: skipping %s, 1h candles unavailable: %v", pair, err)
			continue
		}
		candles4h, err := s.provider.GetCandles(ctx, pair, "4h", s.history4h)
		if err != nil {
			s.logger.LogDebug("Scanner: skipping %s, 4h candles unavailable: %v", pair, err)
			continue
		}

		eval := Evaluate(candles1h, candles4h, s.indicators, tpPercent, s.slATRMultiple)
		if !eval.OK {
			s.logger.LogDebug("Scanner: %s not scored: %s", pair, eval.Reason)
			continue
		}
		if eval.Score < minScore {
			s.logger.LogDebug("Scanner: %s scored %d, below threshold %d.", pair, eval.Score, minScore)
			continue
		}

		s.logger.LogInfo("Scanner: %s%s%s scored %d (entry %.8f, TP %.8f).",
			utilities.ColorYellow, pair, utilities.ColorReset, eval.Score, eval.Entry, eval.TakeProfit)
		signals = append(signals, Signal{
			Symbol:      pair,
			Score:       eval.Score,
			Entry:       eval.Entry,
			TakeProfit:  eval.TakeProfit,
			StopLoss:    eval.StopLoss,
			Reasons:     eval.Reasons,
			GeneratedAt: time.Now().UTC(),
		})
		if len(signals) >= maxResults {
			break
		}
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Score > signals[j].Score
	})
	return signals, nil
}
