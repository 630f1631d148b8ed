package web

import (
	"Windfall/pkg/ledger"
	"Windfall/strategy"
	"Windfall/utilities"
	"context"
	"time"
)

// ScanResult is one completed scan pass: the ranked signals and when the pass
// finished.
type ScanResult struct {
	Signals []strategy.Signal `json:"signals"`
	TakenAt time.Time         `json:"takenAt"`
}

// BalanceView is the balance snapshot exposed over the API. Simulated marks a
// balance served from the internal paper account rather than the venue.
type BalanceView struct {
	Balances      map[string]float64 `json:"balances"`
	QuoteCurrency string             `json:"quoteCurrency"`
	Simulated     bool               `json:"simulated"`
}

// StatusView is the liveness/overview snapshot for GET /api/status.
type StatusView struct {
	AppName          string     `json:"appName"`
	Version          string     `json:"version"`
	Uptime           string     `json:"uptime"`
	AutoTradeEnabled bool       `json:"autoTradeEnabled"`
	DemoMode         bool       `json:"demoMode"`
	OpenPositions    int        `json:"openPositions"`
	SimulatedBalance float64    `json:"simulatedBalance"`
	LastScanAt       *time.Time `json:"lastScanAt,omitempty"`
}

// PositionView is a ledger position augmented with live pricing for open
// positions. Closed positions carry their realized figures only.
type PositionView struct {
	ledger.Position
	CurrentPrice         float64 `json:"currentPrice,omitempty"`
	UnrealizedPnL        float64 `json:"unrealizedPnl,omitempty"`
	UnrealizedPnLPercent float64 `json:"unrealizedPnlPercent,omitempty"`
}

// OpenPositionRequest is the body of POST /api/positions: a manual buy.
// Exactly one sizing input applies: an absolute Invested amount, or a
// SizingPercent of the available quote balance (defaulting to the configured
// investment percent when both are omitted). AutoSell defaults to the
// configured auto-sell setting when omitted.
type OpenPositionRequest struct {
	Symbol        string   `json:"symbol"`
	Invested      float64  `json:"invested,omitempty"`
	SizingPercent *float64 `json:"sizingPercent,omitempty"`
	AutoSell      *bool    `json:"autoSell,omitempty"`
}

// AppController defines the interface the web package needs to interact with
// the main application's state. The application implements it; the web layer
// stays free of trading logic.
type AppController interface {
	// TriggerScan runs a full scan pass synchronously and returns its result.
	TriggerScan(ctx context.Context) (ScanResult, error)
	// LastScan returns the most recent scan result, ok=false when none exists.
	LastScan() (ScanResult, bool)
	// GetBalance returns venue balances, or the simulated account when the
	// venue is unavailable.
	GetBalance(ctx context.Context) (BalanceView, error)
	// ListPositions returns positions, optionally filtered by status
	// ("OPEN", "CLOSED", or "" for all), with live unrealized PnL on the
	// open ones.
	ListPositions(ctx context.Context, status string) []PositionView
	// OpenPosition performs a manual buy at the current market price.
	OpenPosition(ctx context.Context, req OpenPositionRequest) (ledger.Position, error)
	// ClosePosition sells an open position. A positive exitPrice overrides
	// the market price; zero means sell at the current price.
	ClosePosition(ctx context.Context, id string, exitPrice float64) (ledger.Position, error)
	// AutoTradeEnabled reports whether the autonomous cycles act on signals.
	AutoTradeEnabled() bool
	// SetAutoTrade flips the autonomous trading switch and persists it.
	SetAutoTrade(enabled bool) error
	// GetSettings returns the current runtime settings.
	GetSettings() utilities.Settings
	// UpdateSettings validates, applies, and persists new runtime settings.
	UpdateSettings(s utilities.Settings) (utilities.Settings, error)
	// Status returns the overview snapshot.
	Status() StatusView
	Logger() *utilities.Logger
}
