// File: pkg/app/cycles.go
package app

import (
	"Windfall/dataprovider"
	"Windfall/dataprovider/binance"
	"Windfall/dataprovider/coingecko"
	"Windfall/notification/discord"
	"Windfall/pkg/broker/coinbase"
	"Windfall/pkg/ledger"
	"Windfall/strategy"
	"Windfall/utilities"
	"Windfall/web"
	"context"
	"fmt"
	"time"
)

// runBuyCycle executes one autonomous buy pass: scan the market, then open
// positions from the strongest signals, respecting the open-position cap and
// the one-position-per-symbol rule. The busy flag guarantees at most one buy
// cycle runs at a time; a tick that arrives mid-cycle is dropped.
func (a *App) runBuyCycle(ctx context.Context) {
	if !a.AutoTradeEnabled() {
		a.logger.LogDebug("App: buy cycle skipped, auto-trade disabled.")
		return
	}
	if !a.buyBusy.CompareAndSwap(false, true) {
		a.logger.LogWarn("App: buy cycle still running, skipping this tick.")
		return
	}
	defer a.buyBusy.Store(false)

	settings := a.GetSettings()
	if a.book.OpenCount() >= settings.MaxOpenPositions {
		a.logger.LogDebug("App: open-position cap (%d) already reached, skipping scan.", settings.MaxOpenPositions)
		return
	}

	result, err := a.TriggerScan(ctx)
	if err != nil {
		a.logger.LogError("App: buy cycle scan failed: %v", err)
		return
	}
	if len(result.Signals) == 0 {
		return
	}

	balance, err := a.quoteBalance(ctx)
	if err != nil {
		a.logger.LogError("App: buy cycle could not read balance: %v", err)
		return
	}

	for _, sig := range result.Signals {
		if err := ctx.Err(); err != nil {
			return
		}
		if a.book.OpenCount() >= settings.MaxOpenPositions {
			a.logger.LogInfo("App: open-position cap (%d) reached, buy cycle done.", settings.MaxOpenPositions)
			return
		}
		if a.book.HasOpen(sig.Symbol) {
			a.logger.LogDebug("App: %s already has an open position, skipping.", sig.Symbol)
			continue
		}

		invested := utilities.Round8(balance * settings.InvestPercent / 100)
		if invested <= 0 {
			a.logger.LogWarn("App: balance %.2f too small to size a buy, buy cycle done.", balance)
			return
		}

		pos, err := a.openAt(ctx, sig.Symbol, sig.Entry, invested, settings.TakeProfitPercent, settings.AutoSellDefault)
		if err != nil {
			a.logger.LogError("App: buy cycle could not open %s: %v", sig.Symbol, err)
			continue
		}
		balance -= invested
		a.logger.LogInfo("App: %sBUY%s %s score=%d invested=%.2f entry=%.8f",
			utilities.ColorCyan, utilities.ColorReset, pos.Symbol, sig.Score, pos.Invested, pos.EntryPrice)
		if a.notifier != nil {
			if err := a.notifier.NotifyPositionOpened(pos, sig.Score, sig.Reasons); err != nil {
				a.logger.LogWarn("App: open notification for %s failed: %v", pos.Symbol, err)
			}
		}
	}
}

// runMonitorCycle checks every open auto-sell position against its take-profit
// price and closes the ones that reached it. Positions without auto-sell are
// left alone; closing them is a manual API action.
func (a *App) runMonitorCycle(ctx context.Context) {
	if !a.monitorBusy.CompareAndSwap(false, true) {
		a.logger.LogWarn("App: monitor cycle still running, skipping this tick.")
		return
	}
	defer a.monitorBusy.Store(false)

	for _, pos := range a.book.ListOpen() {
		if err := ctx.Err(); err != nil {
			return
		}
		if !pos.AutoSell {
			continue
		}

		price, err := a.currentPrice(ctx, pos.Symbol)
		if err != nil {
			a.logger.LogWarn("App: monitor could not price %s: %v", pos.Symbol, err)
			continue
		}
		if price < pos.TakeProfitPrice {
			a.logger.LogDebug("App: %s at %.8f, below TP %.8f, holding.", pos.Symbol, price, pos.TakeProfitPrice)
			continue
		}

		closed, err := a.closeAt(ctx, pos, price)
		if err != nil {
			a.logger.LogError("App: monitor could not close %s: %v", pos.Symbol, err)
			continue
		}
		a.logger.LogInfo("App: %sSELL%s %s exit=%.8f pnl=%.8f",
			utilities.ColorRed, utilities.ColorReset, closed.Symbol, closed.ExitPrice, closed.PnL)
	}
}

// cycleInterval converts a configured second count to a duration, falling
// back to the given default when the config leaves it unset.
func cycleInterval(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Run wires the whole application together, starts the API server and the
// autonomous cycles, and blocks until the context is cancelled.
func Run(ctx context.Context, cfg utilities.AppConfig, logger *utilities.Logger) error {
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}

	store, err := dataprovider.NewSQLiteStore(cfg.DB, logger)
	if err != nil {
		return fmt.Errorf("app: open store: %w", err)
	}
	defer store.Close()

	book, err := ledger.NewLedger(store, cfg.Trading.FeePercent, logger)
	if err != nil {
		return err
	}

	candleClient, err := binance.NewClient(&cfg.Binance, logger)
	if err != nil {
		return err
	}
	marketClient, err := coingecko.NewClient(&cfg.Coingecko, logger)
	if err != nil {
		return err
	}
	venue, err := coinbase.NewAdapter(&cfg.Venue, logger)
	if err != nil {
		return err
	}
	notifier := discord.NewClient(cfg.Discord.WebhookURL, logger)
	scanner := strategy.NewScanner(candleClient, cfg.Trading, cfg.Indicators, logger)

	a, err := New(cfg, store, book, scanner, marketClient, candleClient, venue, notifier, logger)
	if err != nil {
		return err
	}

	web.StartWebServer(ctx, cfg.Server.ListenAddr, a)

	buyInterval := cycleInterval(cfg.Trading.BuyIntervalSec, 45*time.Second)
	monitorInterval := cycleInterval(cfg.Trading.MonitorIntervalSec, 5*time.Second)

	logger.LogInfo("App: started (buy cycle every %s, monitor cycle every %s, autotrade=%t).",
		buyInterval, monitorInterval, a.AutoTradeEnabled())

	buyTicker := time.NewTicker(buyInterval)
	defer buyTicker.Stop()
	monitorTicker := time.NewTicker(monitorInterval)
	defer monitorTicker.Stop()

	// Run an initial buy pass at startup rather than waiting a full interval.
	go a.runBuyCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.LogInfo("App: shutdown requested, stopping cycles.")
			return nil
		case <-buyTicker.C:
			go a.runBuyCycle(ctx)
		case <-monitorTicker.C:
			go a.runMonitorCycle(ctx)
		}
	}
}
