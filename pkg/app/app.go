// File: pkg/app/app.go
package app

import (
	"Windfall/dataprovider"
	"Windfall/notification/discord"
	"Windfall/pkg/broker"
	"Windfall/pkg/ledger"
	"Windfall/strategy"
	"Windfall/utilities"
	"Windfall/web"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPriceUnavailable means no usable current price could be obtained for a
// symbol, so a buy or sell that depends on it was not attempted.
var ErrPriceUnavailable = errors.New("app: current price unavailable")

// App is the autonomous controller: it owns the runtime settings, the trade
// ledger, the data providers, and the venue adapter, and it implements
// web.AppController for the JSON API.
type App struct {
	cfg       utilities.AppConfig
	logger    *utilities.Logger
	store     *dataprovider.SQLiteStore
	book      *ledger.Ledger
	scanner   *strategy.Scanner
	markets   dataprovider.MarketProvider
	candles   dataprovider.CandleProvider
	venue     broker.Broker
	notifier  *discord.Client
	startedAt time.Time

	settingsMu sync.RWMutex
	settings   utilities.Settings

	scanMu   sync.RWMutex
	lastScan *web.ScanResult

	simMu      sync.Mutex
	simBalance float64

	// busy flags: a cycle that is still running when its ticker fires again
	// is skipped, never stacked.
	buyBusy     atomic.Bool
	monitorBusy atomic.Bool
}

// New wires the application together from its already-constructed parts.
func New(cfg utilities.AppConfig, store *dataprovider.SQLiteStore, book *ledger.Ledger,
	scanner *strategy.Scanner, markets dataprovider.MarketProvider, candles dataprovider.CandleProvider,
	venue broker.Broker, notifier *discord.Client, logger *utilities.Logger) (*App, error) {

	if store == nil || book == nil || scanner == nil || markets == nil || candles == nil || venue == nil {
		return nil, errors.New("app: all components must be non-nil")
	}
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}

	a := &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		book:      book,
		scanner:   scanner,
		markets:   markets,
		candles:   candles,
		venue:     venue,
		notifier:  notifier,
		startedAt: time.Now().UTC(),
	}

	// Settings: durable snapshot wins over config defaults.
	settings := cfg.Trading.DefaultSettings()
	if persisted, found, err := store.LoadSettings(); err != nil {
		return nil, fmt.Errorf("app: load settings: %w", err)
	} else if found {
		settings = persisted
		logger.LogInfo("App: restored settings from store (autotrade=%t, minScore=%d).",
			settings.AutoTradeEnabled, settings.MinScore)
	}
	a.settings = settings

	// Simulated balance: replay the simulated positions against the
	// configured starting balance so restarts keep the paper account honest.
	simBalance := cfg.Trading.SimStartingBalance
	if simBalance <= 0 {
		simBalance = 10000
	}
	for _, pos := range book.ListAll() {
		if !pos.Simulated {
			continue
		}
		simBalance -= pos.Invested
		if pos.Status == ledger.StatusClosed {
			simBalance += pos.NetProceeds
		}
	}
	a.simBalance = simBalance

	// Last-scan snapshot survives restarts too.
	if payload, takenAt, err := store.LoadScanSnapshot(); err != nil {
		logger.LogWarn("App: could not load last scan snapshot: %v", err)
	} else if len(payload) > 0 {
		var signals []strategy.Signal
		if err := json.Unmarshal(payload, &signals); err != nil {
			logger.LogWarn("App: could not decode last scan snapshot: %v", err)
		} else {
			a.lastScan = &web.ScanResult{Signals: signals, TakenAt: takenAt}
		}
	}

	return a, nil
}

func (a *App) Logger() *utilities.Logger { return a.logger }

// --- Scanning ---

// TriggerScan runs one full scan pass: universe fetch, per-symbol evaluation,
// ranking, then snapshot persistence. Safe to call concurrently with the
// autonomous cycles.
func (a *App) TriggerScan(ctx context.Context) (web.ScanResult, error) {
	settings := a.GetSettings()

	universeSize := a.cfg.Coingecko.UniverseSize
	if universeSize <= 0 {
		universeSize = 50
	}
	universe, err := a.markets.GetMarketSnapshot(ctx, universeSize)
	if err != nil {
		return web.ScanResult{}, fmt.Errorf("app: fetch market universe: %w", err)
	}

	signals, err := a.scanner.Scan(ctx, universe, settings.TakeProfitPercent, settings.MinScore, settings.MaxScanResults)
	if err != nil {
		return web.ScanResult{}, fmt.Errorf("app: scan: %w", err)
	}

	result := web.ScanResult{Signals: signals, TakenAt: time.Now().UTC()}
	a.scanMu.Lock()
	a.lastScan = &result
	a.scanMu.Unlock()

	if payload, err := json.Marshal(signals); err != nil {
		a.logger.LogWarn("App: could not encode scan snapshot: %v", err)
	} else if err := a.store.SaveScanSnapshot(payload, result.TakenAt); err != nil {
		a.logger.LogWarn("App: could not persist scan snapshot: %v", err)
	}

	a.logger.LogInfo("App: scan completed, %d signal(s) at or above score %d.", len(signals), settings.MinScore)
	return result, nil
}

// LastScan returns the most recent scan result without triggering a new pass.
func (a *App) LastScan() (web.ScanResult, bool) {
	a.scanMu.RLock()
	defer a.scanMu.RUnlock()
	if a.lastScan == nil {
		return web.ScanResult{}, false
	}
	return *a.lastScan, true
}

// --- Balance ---

// GetBalance returns the venue balances. Without credentials the paper
// account is served instead, flagged as simulated.
func (a *App) GetBalance(ctx context.Context) (web.BalanceView, error) {
	quote := strings.ToUpper(a.cfg.Trading.QuoteCurrency)
	if quote == "" {
		quote = "USDT"
	}

	balances, err := a.venue.GetBalances(ctx)
	if err != nil {
		if errors.Is(err, broker.ErrNoCredentials) {
			a.simMu.Lock()
			sim := a.simBalance
			a.simMu.Unlock()
			return web.BalanceView{
				Balances:      map[string]float64{quote: utilities.Round8(sim)},
				QuoteCurrency: quote,
				Simulated:     true,
			}, nil
		}
		return web.BalanceView{}, err
	}
	return web.BalanceView{Balances: balances, QuoteCurrency: quote, Simulated: false}, nil
}

// quoteBalance returns the spendable quote-currency balance for sizing buys.
func (a *App) quoteBalance(ctx context.Context) (float64, error) {
	view, err := a.GetBalance(ctx)
	if err != nil {
		return 0, err
	}
	return view.Balances[view.QuoteCurrency], nil
}

// --- Positions ---

// ListPositions returns positions filtered by status; empty status means all.
// Open positions are augmented with the current price and unrealized PnL;
// a symbol whose price cannot be resolved is listed without live figures.
func (a *App) ListPositions(ctx context.Context, status string) []web.PositionView {
	var positions []ledger.Position
	switch strings.ToUpper(status) {
	case ledger.StatusOpen:
		positions = a.book.ListOpen()
	case ledger.StatusClosed:
		for _, pos := range a.book.ListAll() {
			if pos.Status == ledger.StatusClosed {
				positions = append(positions, pos)
			}
		}
	default:
		positions = a.book.ListAll()
	}

	prices := make(map[string]float64)
	views := make([]web.PositionView, 0, len(positions))
	for _, pos := range positions {
		view := web.PositionView{Position: pos}
		if pos.Status == ledger.StatusOpen {
			price, ok := prices[pos.Symbol]
			if !ok {
				var err error
				price, err = a.currentPrice(ctx, pos.Symbol)
				if err != nil {
					a.logger.LogDebug("App: no live price for %s: %v", pos.Symbol, err)
					price = 0
				}
				prices[pos.Symbol] = price
			}
			if price > 0 {
				view.CurrentPrice = price
				view.UnrealizedPnL = utilities.Round8(pos.Quantity*price - pos.Invested)
				if pos.Invested > 0 {
					view.UnrealizedPnLPercent = utilities.Round8(view.UnrealizedPnL / pos.Invested * 100)
				}
			}
		}
		views = append(views, view)
	}
	return views
}

// OpenPosition performs a manual market buy at the current price. Sizing
// comes from the absolute invested amount when given, otherwise from a
// percent of the available quote balance (the request's override or the
// configured default).
func (a *App) OpenPosition(ctx context.Context, req web.OpenPositionRequest) (ledger.Position, error) {
	settings := a.GetSettings()
	autoSell := settings.AutoSellDefault
	if req.AutoSell != nil {
		autoSell = *req.AutoSell
	}

	invested := req.Invested
	if invested <= 0 {
		percent := settings.InvestPercent
		if req.SizingPercent != nil {
			percent = *req.SizingPercent
		}
		balance, err := a.quoteBalance(ctx)
		if err != nil {
			return ledger.Position{}, err
		}
		invested = utilities.Round8(balance * percent / 100)
		if invested <= 0 {
			return ledger.Position{}, fmt.Errorf("app: balance %.2f too small for a %.1f%% buy", balance, percent)
		}
	}

	price, err := a.currentPrice(ctx, req.Symbol)
	if err != nil {
		return ledger.Position{}, err
	}
	return a.openAt(ctx, req.Symbol, price, invested, settings.TakeProfitPercent, autoSell)
}

// openAt places the buy on the venue (falling back to simulation when the
// venue cannot take it) and records the position. The ledger write is the
// commit point.
func (a *App) openAt(ctx context.Context, symbol string, price, invested, tpPercent float64, autoSell bool) (ledger.Position, error) {
	if price <= 0 {
		return ledger.Position{}, ErrPriceUnavailable
	}
	quantity := utilities.Round8(invested / price)

	simulated := false
	if _, err := a.venue.PlaceOrder(ctx, symbol, "buy", "market", quantity, 0); err != nil {
		if errors.Is(err, broker.ErrNoCredentials) || errors.Is(err, broker.ErrDemo) {
			simulated = true
			a.logger.LogInfo("App: simulating buy for %s: %v", symbol, err)
		} else {
			return ledger.Position{}, fmt.Errorf("app: place buy order for %s: %w", symbol, err)
		}
	}

	if simulated {
		a.simMu.Lock()
		if a.simBalance < invested {
			a.simMu.Unlock()
			return ledger.Position{}, fmt.Errorf("app: insufficient simulated balance (%.2f) for %.2f buy", a.simBalance, invested)
		}
		a.simBalance -= invested
		a.simMu.Unlock()
	}

	pos, err := a.book.Open(symbol, price, invested, tpPercent, autoSell, simulated)
	if err != nil {
		if simulated {
			a.simMu.Lock()
			a.simBalance += invested
			a.simMu.Unlock()
		}
		return ledger.Position{}, err
	}
	return pos, nil
}

// ClosePosition sells an open position and records the transition. A
// positive exitPrice overrides the market price; zero means sell at the
// current price.
func (a *App) ClosePosition(ctx context.Context, id string, exitPrice float64) (ledger.Position, error) {
	pos, err := a.book.Get(id)
	if err != nil {
		return ledger.Position{}, err
	}
	if pos.Status != ledger.StatusOpen {
		return ledger.Position{}, ledger.ErrNotOpen
	}

	price := exitPrice
	if price <= 0 {
		price, err = a.currentPrice(ctx, pos.Symbol)
		if err != nil {
			return ledger.Position{}, err
		}
	}
	return a.closeAt(ctx, pos, price)
}

func (a *App) closeAt(ctx context.Context, pos ledger.Position, price float64) (ledger.Position, error) {
	if price <= 0 {
		return ledger.Position{}, ErrPriceUnavailable
	}

	// Claim the position first: a manual close and a monitor close racing on
	// the same id must never both reach the venue with a sell.
	claimed, err := a.book.BeginClose(pos.ID)
	if err != nil {
		return ledger.Position{}, err
	}
	pos = claimed

	if !pos.Simulated {
		if _, err := a.venue.PlaceOrder(ctx, pos.Symbol, "sell", "market", pos.Quantity, 0); err != nil {
			if !errors.Is(err, broker.ErrDemo) {
				a.book.AbortClose(pos.ID)
				return ledger.Position{}, fmt.Errorf("app: place sell order for %s: %w", pos.Symbol, err)
			}
			a.logger.LogInfo("App: demo mode, recording sell for %s without venue order.", pos.Symbol)
		}
	}

	closed, err := a.book.Close(pos.ID, price)
	if err != nil {
		return ledger.Position{}, err
	}

	if closed.Simulated {
		a.simMu.Lock()
		a.simBalance += closed.NetProceeds
		a.simMu.Unlock()
	}

	if a.notifier != nil {
		if err := a.notifier.NotifyPositionClosed(closed); err != nil {
			a.logger.LogWarn("App: close notification for %s failed: %v", closed.Symbol, err)
		}
	}
	return closed, nil
}

// currentPrice resolves the freshest price for a symbol: venue ticker first,
// market-data provider as fallback.
func (a *App) currentPrice(ctx context.Context, symbol string) (float64, error) {
	if ticker, err := a.venue.GetTicker(ctx, symbol); err == nil && ticker.Price > 0 {
		return ticker.Price, nil
	} else if err != nil {
		a.logger.LogDebug("App: venue ticker for %s unavailable: %v", symbol, err)
	}
	price, err := a.candles.GetPrice(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, symbol, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	return price, nil
}

// --- Settings ---

func (a *App) AutoTradeEnabled() bool {
	a.settingsMu.RLock()
	defer a.settingsMu.RUnlock()
	return a.settings.AutoTradeEnabled
}

// SetAutoTrade flips the autonomous trading switch and persists the snapshot.
func (a *App) SetAutoTrade(enabled bool) error {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	a.settings.AutoTradeEnabled = enabled
	if err := a.store.SaveSettings(a.settings); err != nil {
		return fmt.Errorf("app: persist settings: %w", err)
	}
	a.logger.LogInfo("App: auto-trade set to %t.", enabled)
	return nil
}

func (a *App) GetSettings() utilities.Settings {
	a.settingsMu.RLock()
	defer a.settingsMu.RUnlock()
	return a.settings
}

// UpdateSettings validates and applies a full settings snapshot, persisting
// it before it takes effect for the next cycle.
func (a *App) UpdateSettings(s utilities.Settings) (utilities.Settings, error) {
	if s.InvestPercent <= 0 || s.InvestPercent > 100 {
		return utilities.Settings{}, fmt.Errorf("app: investPercent must be in (0, 100], got %.2f", s.InvestPercent)
	}
	if s.TakeProfitPercent <= 0 {
		return utilities.Settings{}, fmt.Errorf("app: takeProfitPercent must be positive, got %.2f", s.TakeProfitPercent)
	}
	if s.MaxOpenPositions <= 0 {
		return utilities.Settings{}, fmt.Errorf("app: maxOpenPositions must be positive, got %d", s.MaxOpenPositions)
	}
	if s.MinScore < 0 {
		return utilities.Settings{}, fmt.Errorf("app: minScore must not be negative, got %d", s.MinScore)
	}
	if s.MaxScanResults <= 0 {
		return utilities.Settings{}, fmt.Errorf("app: maxScanResults must be positive, got %d", s.MaxScanResults)
	}

	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	if err := a.store.SaveSettings(s); err != nil {
		return utilities.Settings{}, fmt.Errorf("app: persist settings: %w", err)
	}
	a.settings = s
	a.logger.LogInfo("App: settings updated (autotrade=%t, invest=%.1f%%, tp=%.2f%%, minScore=%d).",
		s.AutoTradeEnabled, s.InvestPercent, s.TakeProfitPercent, s.MinScore)
	return s, nil
}

// --- Status ---

func (a *App) Status() web.StatusView {
	a.simMu.Lock()
	sim := a.simBalance
	a.simMu.Unlock()

	view := web.StatusView{
		AppName:          a.cfg.AppName,
		Version:          a.cfg.Version,
		Uptime:           time.Since(a.startedAt).Round(time.Second).String(),
		AutoTradeEnabled: a.AutoTradeEnabled(),
		DemoMode:         a.cfg.Venue.DemoMode,
		OpenPositions:    a.book.OpenCount(),
		SimulatedBalance: utilities.Round8(sim),
	}
	if last, ok := a.LastScan(); ok {
		t := last.TakenAt
		view.LastScanAt = &t
	}
	return view
}
