// File: pkg/broker/brokers.go
package broker

import (
	"context"
	"errors"
)

// ErrNoCredentials means the venue was asked to do authenticated work without
// an API key, secret, and passphrase configured. Callers treat it as a cue to
// fall back to simulated execution rather than as a hard failure.
var ErrNoCredentials = errors.New("broker: API credentials not configured")

// ErrDemo means the venue is running in demo mode: order placement is
// short-circuited before any network call so no real order can be created.
var ErrDemo = errors.New("broker: demo mode, order not sent")

// Ticker is the venue's latest view of a trading pair.
type Ticker struct {
	Pair   string
	Price  float64
	Bid    float64
	Ask    float64
	Volume float64
}

// OrderResult describes an accepted order.
type OrderResult struct {
	OrderID       string
	Pair          string
	Side          string
	OrderType     string
	Quantity      float64
	Price         float64
	ExecutedValue float64
}

// Broker abstracts the trading venue. Implementations own their own
// authentication, rate limiting, and endpoint selection.
type Broker interface {
	// GetBalances returns available balances keyed by upper-case asset code.
	GetBalances(ctx context.Context) (map[string]float64, error)
	// PlaceOrder submits an order. side is "buy" or "sell"; orderType is
	// "market" or "limit" (price is ignored for market orders).
	PlaceOrder(ctx context.Context, pair, side, orderType string, quantity, price float64) (OrderResult, error)
	// GetTicker returns the current ticker for the pair.
	GetTicker(ctx context.Context, pair string) (Ticker, error)
}
