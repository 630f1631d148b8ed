// File: pkg/broker/coinbase/cadapter.go
package coinbase

import (
	"Windfall/pkg/broker"
	utils "Windfall/utilities"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// knownQuotes are the quote assets we can split off the end of a compact pair
// like "BTCUSDT" to build the venue's dashed product ID. Longest first so
// "USDT" wins over "USD".
var knownQuotes = []string{"USDT", "USDC", "FDUSD", "BUSD", "TUSD", "USD", "EUR", "GBP", "BTC", "ETH", "DAI"}

// Adapter implements broker.Broker against the venue. Each logical operation
// walks an ordered chain of endpoint variants: the exchange-style path first,
// then the brokerage-style path, stopping at the first variant the account's
// API surface supports.
type Adapter struct {
	client   *Client
	demoMode bool
	logger   *utils.Logger
}

func NewAdapter(cfg *utils.VenueConfig, logger *utils.Logger) (*Adapter, error) {
	if logger == nil {
		logger = utils.NewLogger(utils.Info)
	}
	client, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.DemoMode {
		logger.LogWarn("Coinbase: demo mode enabled, orders will not reach the venue.")
	}
	if !client.HasCredentials() {
		logger.LogWarn("Coinbase: no API credentials configured, private operations will be unavailable.")
	}
	return &Adapter{client: client, demoMode: cfg.DemoMode, logger: logger}, nil
}

// ProductID converts a compact pair ("BTCUSDT") to the venue's dashed product
// ID ("BTC-USDT"). Already-dashed input passes through unchanged.
func ProductID(pair string) string {
	pair = strings.ToUpper(pair)
	if strings.Contains(pair, "-") {
		return pair
	}
	for _, quote := range knownQuotes {
		if strings.HasSuffix(pair, quote) && len(pair) > len(quote) {
			return pair[:len(pair)-len(quote)] + "-" + quote
		}
	}
	return pair
}

// readFallsThrough reports whether a read operation should move on to the
// next endpoint variant: a missing path, an auth rejection, or a server-side
// failure can all mean the account lives on the other API surface. Decode
// failures and client-side 4xx are real errors and stop the chain. Order
// placement falls through only on a missing path, because an ambiguous
// failure may mean the venue accepted the order and re-submitting it on
// another surface could execute it twice.
func readFallsThrough(err error) bool {
	return errors.Is(err, errEndpointUnsupported) ||
		errors.Is(err, errAuthRejected) ||
		errors.Is(err, errVenueUnavailable)
}

// GetBalances returns available balances keyed by asset code. Fails with
// broker.ErrNoCredentials before any network call when the credential triple
// is incomplete.
func (a *Adapter) GetBalances(ctx context.Context) (map[string]float64, error) {
	if !a.client.HasCredentials() {
		return nil, broker.ErrNoCredentials
	}

	variants := []struct {
		name  string
		fetch func(context.Context) (map[string]float64, error)
	}{
		{"exchange", a.exchangeBalances},
		{"brokerage", a.brokerageBalances},
	}
	var lastErr error
	for _, v := range variants {
		balances, err := v.fetch(ctx)
		if err == nil {
			return balances, nil
		}
		if !readFallsThrough(err) {
			return nil, err
		}
		a.logger.LogDebug("Coinbase: %s balances variant failed, trying next: %v", v.name, err)
		lastErr = err
	}
	return nil, fmt.Errorf("coinbase: no balances endpoint variant succeeded: %w", lastErr)
}

func (a *Adapter) exchangeBalances(ctx context.Context) (map[string]float64, error) {
	payload, err := a.client.doPrivate(ctx, "GET", "/accounts", nil)
	if err != nil {
		return nil, err
	}
	var accounts []exchangeAccount
	if err := json.Unmarshal(payload, &accounts); err != nil {
		return nil, fmt.Errorf("coinbase: decode exchange accounts: %w", err)
	}
	balances := make(map[string]float64, len(accounts))
	for _, acct := range accounts {
		avail, err := strconv.ParseFloat(acct.Available, 64)
		if err != nil {
			a.logger.LogWarn("Coinbase: unparseable balance %q for %s, skipping.", acct.Available, acct.Currency)
			continue
		}
		balances[strings.ToUpper(acct.Currency)] = avail
	}
	return balances, nil
}

func (a *Adapter) brokerageBalances(ctx context.Context) (map[string]float64, error) {
	payload, err := a.client.doPrivate(ctx, "GET", "/api/v3/brokerage/accounts", nil)
	if err != nil {
		return nil, err
	}
	var resp brokerageAccountsResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("coinbase: decode brokerage accounts: %w", err)
	}
	balances := make(map[string]float64, len(resp.Accounts))
	for _, acct := range resp.Accounts {
		avail, err := strconv.ParseFloat(acct.AvailableBalance.Value, 64)
		if err != nil {
			a.logger.LogWarn("Coinbase: unparseable balance %q for %s, skipping.", acct.AvailableBalance.Value, acct.Currency)
			continue
		}
		balances[strings.ToUpper(acct.Currency)] = avail
	}
	return balances, nil
}

// GetTicker returns the latest ticker for the pair using the public market
// data endpoints; no credentials are required.
func (a *Adapter) GetTicker(ctx context.Context, pair string) (broker.Ticker, error) {
	productID := ProductID(pair)

	variants := []func(context.Context, string) (broker.Ticker, error){
		a.exchangeTicker,
		a.brokerageTicker,
	}
	var lastErr error
	for _, fetch := range variants {
		ticker, err := fetch(ctx, productID)
		if err == nil {
			ticker.Pair = pair
			return ticker, nil
		}
		if !readFallsThrough(err) {
			return broker.Ticker{}, err
		}
		lastErr = err
	}
	return broker.Ticker{}, fmt.Errorf("coinbase: no ticker endpoint variant succeeded for %s: %w", productID, lastErr)
}

func (a *Adapter) exchangeTicker(ctx context.Context, productID string) (broker.Ticker, error) {
	payload, err := a.client.doPublic(ctx, "/products/"+productID+"/ticker")
	if err != nil {
		return broker.Ticker{}, err
	}
	var raw exchangeTicker
	if err := json.Unmarshal(payload, &raw); err != nil {
		return broker.Ticker{}, fmt.Errorf("coinbase: decode exchange ticker for %s: %w", productID, err)
	}
	price, err := strconv.ParseFloat(raw.Price, 64)
	if err != nil {
		return broker.Ticker{}, fmt.Errorf("coinbase: parse ticker price %q for %s: %w", raw.Price, productID, err)
	}
	bid, _ := strconv.ParseFloat(raw.Bid, 64)
	ask, _ := strconv.ParseFloat(raw.Ask, 64)
	volume, _ := strconv.ParseFloat(raw.Volume, 64)
	return broker.Ticker{Price: price, Bid: bid, Ask: ask, Volume: volume}, nil
}

func (a *Adapter) brokerageTicker(ctx context.Context, productID string) (broker.Ticker, error) {
	payload, err := a.client.doPublic(ctx, "/api/v3/brokerage/market/products/"+productID+"/ticker?limit=1")
	if err != nil {
		return broker.Ticker{}, err
	}
	var raw brokerageTickerResponse
	if err := json.Unmarshal(payload, &raw); err != nil {
		return broker.Ticker{}, fmt.Errorf("coinbase: decode brokerage ticker for %s: %w", productID, err)
	}
	if len(raw.Trades) == 0 {
		return broker.Ticker{}, fmt.Errorf("coinbase: brokerage ticker for %s returned no trades", productID)
	}
	price, err := strconv.ParseFloat(raw.Trades[0].Price, 64)
	if err != nil {
		return broker.Ticker{}, fmt.Errorf("coinbase: parse trade price %q for %s: %w", raw.Trades[0].Price, productID, err)
	}
	bid, _ := strconv.ParseFloat(raw.BestBid, 64)
	ask, _ := strconv.ParseFloat(raw.BestAsk, 64)
	return broker.Ticker{Price: price, Bid: bid, Ask: ask}, nil
}

// PlaceOrder submits an order. Credentials are checked before anything else;
// demo mode short-circuits with broker.ErrDemo so no order can ever reach the
// venue from a demo deployment.
func (a *Adapter) PlaceOrder(ctx context.Context, pair, side, orderType string, quantity, price float64) (broker.OrderResult, error) {
	if !a.client.HasCredentials() {
		return broker.OrderResult{}, broker.ErrNoCredentials
	}
	if a.demoMode {
		a.logger.LogInfo("Coinbase: demo mode, suppressing %s %s order for %s (qty %.8f).", side, orderType, pair, quantity)
		return broker.OrderResult{}, broker.ErrDemo
	}
	side = strings.ToLower(side)
	if side != "buy" && side != "sell" {
		return broker.OrderResult{}, fmt.Errorf("coinbase: invalid order side %q", side)
	}
	orderType = strings.ToLower(orderType)
	if orderType != "market" && orderType != "limit" {
		return broker.OrderResult{}, fmt.Errorf("coinbase: invalid order type %q", orderType)
	}
	if quantity <= 0 {
		return broker.OrderResult{}, fmt.Errorf("coinbase: invalid order quantity %.8f", quantity)
	}
	productID := ProductID(pair)

	result, err := a.exchangeOrder(ctx, productID, side, orderType, quantity, price)
	if err == nil {
		result.Pair = pair
		return result, nil
	}
	// Writes fall through only on a missing path; see readFallsThrough.
	if !errors.Is(err, errEndpointUnsupported) {
		return broker.OrderResult{}, err
	}

	result, err = a.brokerageOrder(ctx, productID, side, orderType, quantity, price)
	if err != nil {
		return broker.OrderResult{}, err
	}
	result.Pair = pair
	return result, nil
}

func (a *Adapter) exchangeOrder(ctx context.Context, productID, side, orderType string, quantity, price float64) (broker.OrderResult, error) {
	reqBody := exchangeOrderRequest{
		ProductID: productID,
		Side:      side,
		Type:      orderType,
		Size:      strconv.FormatFloat(quantity, 'f', 8, 64),
	}
	if orderType == "limit" {
		reqBody.Price = strconv.FormatFloat(price, 'f', 8, 64)
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return broker.OrderResult{}, fmt.Errorf("coinbase: marshal exchange order: %w", err)
	}
	payload, err := a.client.doPrivate(ctx, "POST", "/orders", body)
	if err != nil {
		return broker.OrderResult{}, err
	}
	var resp exchangeOrderResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return broker.OrderResult{}, fmt.Errorf("coinbase: decode exchange order response: %w", err)
	}
	if resp.ID == "" {
		return broker.OrderResult{}, fmt.Errorf("coinbase: exchange order for %s rejected: %s", productID, truncate(payload, 256))
	}
	execValue, _ := strconv.ParseFloat(resp.ExecutedValue, 64)
	respPrice, _ := strconv.ParseFloat(resp.Price, 64)
	a.logger.LogInfo("Coinbase: placed %s %s order %s for %s.", side, orderType, resp.ID, productID)
	return broker.OrderResult{
		OrderID:       resp.ID,
		Side:          side,
		OrderType:     orderType,
		Quantity:      quantity,
		Price:         respPrice,
		ExecutedValue: execValue,
	}, nil
}

func (a *Adapter) brokerageOrder(ctx context.Context, productID, side, orderType string, quantity, price float64) (broker.OrderResult, error) {
	reqBody := brokerageOrderRequest{
		ClientOrderID: uuid.New().String(),
		ProductID:     productID,
		Side:          strings.ToUpper(side),
	}
	size := strconv.FormatFloat(quantity, 'f', 8, 64)
	if orderType == "market" {
		reqBody.OrderConfiguration.MarketMarketIOC = &brokerageMarketConfig{BaseSize: size}
	} else {
		reqBody.OrderConfiguration.LimitLimitGTC = &brokerageLimitConfig{
			BaseSize:   size,
			LimitPrice: strconv.FormatFloat(price, 'f', 8, 64),
		}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return broker.OrderResult{}, fmt.Errorf("coinbase: marshal brokerage order: %w", err)
	}
	payload, err := a.client.doPrivate(ctx, "POST", "/api/v3/brokerage/orders", body)
	if err != nil {
		return broker.OrderResult{}, err
	}
	var resp brokerageOrderResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return broker.OrderResult{}, fmt.Errorf("coinbase: decode brokerage order response: %w", err)
	}
	if !resp.Success {
		return broker.OrderResult{}, fmt.Errorf("coinbase: brokerage order for %s rejected: %s", productID, resp.FailureReason)
	}
	orderID := resp.OrderID
	if orderID == "" {
		orderID = resp.SuccessResponse.OrderID
	}
	a.logger.LogInfo("Coinbase: placed %s %s order %s for %s.", side, orderType, orderID, productID)
	return broker.OrderResult{
		OrderID:   orderID,
		Side:      side,
		OrderType: orderType,
		Quantity:  quantity,
		Price:     price,
	}, nil
}
