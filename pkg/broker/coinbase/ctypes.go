// File: pkg/broker/coinbase/ctypes.go
package coinbase

// Wire types for the two endpoint generations the venue exposes. The exchange
// API is tried first; the brokerage API shapes cover accounts migrated to the
// newer surface.

// --- Exchange API ---

type exchangeAccount struct {
	ID        string `json:"id"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	Available string `json:"available"`
	Hold      string `json:"hold"`
}

type exchangeTicker struct {
	TradeID int64  `json:"trade_id"`
	Price   string `json:"price"`
	Bid     string `json:"bid"`
	Ask     string `json:"ask"`
	Volume  string `json:"volume"`
	Time    string `json:"time"`
}

type exchangeOrderRequest struct {
	ProductID string `json:"product_id"`
	Side      string `json:"side"`
	Type      string `json:"type"`
	Size      string `json:"size,omitempty"`
	Price     string `json:"price,omitempty"`
	Funds     string `json:"funds,omitempty"`
}

type exchangeOrderResponse struct {
	ID            string `json:"id"`
	ProductID     string `json:"product_id"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Size          string `json:"size"`
	Price         string `json:"price"`
	ExecutedValue string `json:"executed_value"`
	Status        string `json:"status"`
}

// --- Brokerage API ---

type brokerageAccountsResponse struct {
	Accounts []brokerageAccount `json:"accounts"`
	HasNext  bool               `json:"has_next"`
}

type brokerageAccount struct {
	UUID             string           `json:"uuid"`
	Currency         string           `json:"currency"`
	AvailableBalance brokerageBalance `json:"available_balance"`
}

type brokerageBalance struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type brokerageTickerResponse struct {
	Trades  []brokerageTrade `json:"trades"`
	BestBid string           `json:"best_bid"`
	BestAsk string           `json:"best_ask"`
}

type brokerageTrade struct {
	TradeID   string `json:"trade_id"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
}

type brokerageOrderRequest struct {
	ClientOrderID      string               `json:"client_order_id"`
	ProductID          string               `json:"product_id"`
	Side               string               `json:"side"`
	OrderConfiguration brokerageOrderConfig `json:"order_configuration"`
}

type brokerageOrderConfig struct {
	MarketMarketIOC *brokerageMarketConfig `json:"market_market_ioc,omitempty"`
	LimitLimitGTC   *brokerageLimitConfig  `json:"limit_limit_gtc,omitempty"`
}

type brokerageMarketConfig struct {
	BaseSize  string `json:"base_size,omitempty"`
	QuoteSize string `json:"quote_size,omitempty"`
}

type brokerageLimitConfig struct {
	BaseSize   string `json:"base_size"`
	LimitPrice string `json:"limit_price"`
}

type brokerageOrderResponse struct {
	Success         bool   `json:"success"`
	OrderID         string `json:"order_id"`
	FailureReason   string `json:"failure_reason"`
	SuccessResponse struct {
		OrderID   string `json:"order_id"`
		ProductID string `json:"product_id"`
		Side      string `json:"side"`
	} `json:"success_response"`
}
