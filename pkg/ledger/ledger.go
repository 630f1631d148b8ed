// File: pkg/ledger/ledger.go
package ledger

import (
	"Windfall/utilities"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Position lifecycle status.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

var (
	ErrNotFound = errors.New("ledger: position not found")
	ErrNotOpen  = errors.New("ledger: position is not open")
)

// Position is the durable record of a single trade. Quantity and Invested are
// fixed at creation; the single close transition fills the exit fields and is
// the only mutation a position ever sees.
type Position struct {
	ID              string    `json:"id"`
	Symbol          string    `json:"symbol"`
	Quantity        float64   `json:"quantity"`
	EntryPrice      float64   `json:"entryPrice"`
	Invested        float64   `json:"invested"`
	BuyFee          float64   `json:"buyFee"`
	TakeProfitPrice float64   `json:"takeProfitPrice"`
	Status          string    `json:"status"`
	AutoSell        bool      `json:"autoSell"`
	Simulated       bool      `json:"simulated"`
	OpenedAt        time.Time `json:"openedAt"`

	ExitPrice     float64    `json:"exitPrice,omitempty"`
	SellFee       float64    `json:"sellFee,omitempty"`
	GrossProceeds float64    `json:"grossProceeds,omitempty"`
	NetProceeds   float64    `json:"netProceeds,omitempty"`
	PnL           float64    `json:"pnl,omitempty"`
	ClosedAt      *time.Time `json:"closedAt,omitempty"`
}

// PositionStore is the durable backing for the ledger. Every mutating ledger
// operation is flushed through it before the operation reports success.
type PositionStore interface {
	SavePosition(pos Position) error
	LoadPositions() ([]Position, error)
}

// Ledger exclusively owns read-modify-write access to the position
// collection. All mutations funnel through one mutex, which closes the
// lost-update race a concurrent buy and monitor cycle could otherwise hit.
type Ledger struct {
	mu         sync.Mutex
	store      PositionStore
	logger     *utilities.Logger
	feePercent float64
	positions  map[string]*Position
	order      []string            // creation order, for stable listings
	closing    map[string]struct{} // positions claimed by an in-flight close
}

// NewLedger loads the persisted positions and returns a ready ledger.
// feePercent is the venue taker fee, expressed in percent (0.2 = 0.2%).
func NewLedger(store PositionStore, feePercent float64, logger *utilities.Logger) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger: store cannot be nil")
	}
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}

	persisted, err := store.LoadPositions()
	if err != nil {
		return nil, fmt.Errorf("ledger: load positions: %w", err)
	}

	l := &Ledger{
		store:      store,
		logger:     logger,
		feePercent: feePercent,
		positions:  make(map[string]*Position, len(persisted)),
		closing:    make(map[string]struct{}),
	}
	for i := range persisted {
		pos := persisted[i]
		l.positions[pos.ID] = &pos
		l.order = append(l.order, pos.ID)
	}
	logger.LogInfo("Ledger: loaded %d position(s) from store.", len(persisted))
	return l, nil
}

// Open creates a new OPEN position and persists it before returning.
// Quantity is derived from invested/entryPrice and rounded to 8 decimals.
func (l *Ledger) Open(symbol string, entryPrice, invested, tpPercent float64, autoSell, simulated bool) (Position, error) {
	if entryPrice <= 0 {
		return Position{}, fmt.Errorf("ledger: entry price must be positive, got %f", entryPrice)
	}
	if invested <= 0 {
		return Position{}, fmt.Errorf("ledger: invested amount must be positive, got %f", invested)
	}

	entry := decimal.NewFromFloat(entryPrice)
	inv := decimal.NewFromFloat(invested)
	qty := inv.Div(entry).Round(8)
	buyFee := inv.Mul(l.feeRate()).Round(8)
	tp := entry.Mul(decimal.NewFromFloat(1 + tpPercent/100)).Round(8)

	pos := Position{
		ID:              uuid.NewString(),
		Symbol:          symbol,
		Quantity:        qty.InexactFloat64(),
		EntryPrice:      utilities.Round8(entryPrice),
		Invested:        utilities.Round8(invested),
		BuyFee:          buyFee.InexactFloat64(),
		TakeProfitPrice: tp.InexactFloat64(),
		Status:          StatusOpen,
		AutoSell:        autoSell,
		Simulated:       simulated,
		OpenedAt:        time.Now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.SavePosition(pos); err != nil {
		return Position{}, fmt.Errorf("ledger: persist new position for %s: %w", symbol, err)
	}
	stored := pos
	l.positions[pos.ID] = &stored
	l.order = append(l.order, pos.ID)

	l.logger.LogInfo("Ledger: opened %s qty=%.8f entry=%.8f invested=%.2f tp=%.8f (simulated=%t)",
		symbol, pos.Quantity, pos.EntryPrice, pos.Invested, pos.TakeProfitPrice, simulated)
	return pos, nil
}

// BeginClose claims an OPEN position for an in-flight close. At most one
// caller holds the claim at a time, so a manual close and a monitor close
// racing on the same position can never both reach the venue with a sell.
// The claim is released by Close (on either outcome) or by AbortClose.
func (l *Ledger) BeginClose(id string) (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[id]
	if !ok {
		return Position{}, ErrNotFound
	}
	if pos.Status != StatusOpen {
		return Position{}, ErrNotOpen
	}
	if _, busy := l.closing[id]; busy {
		return Position{}, ErrNotOpen
	}
	l.closing[id] = struct{}{}
	return *pos, nil
}

// AbortClose releases a claim taken by BeginClose without closing the
// position, leaving it OPEN and claimable again.
func (l *Ledger) AbortClose(id string) {
	l.mu.Lock()
	delete(l.closing, id)
	l.mu.Unlock()
}

// Close transitions an OPEN position to CLOSED, computing proceeds, fee, and
// realized PnL, and persists the full transition atomically. A second Close
// on the same id returns ErrNotOpen and leaves the stored record unchanged.
func (l *Ledger) Close(id string, exitPrice float64) (Position, error) {
	if exitPrice <= 0 {
		return Position{}, fmt.Errorf("ledger: exit price must be positive, got %f", exitPrice)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	defer delete(l.closing, id) // release any BeginClose claim on either outcome

	pos, ok := l.positions[id]
	if !ok {
		return Position{}, ErrNotFound
	}
	if pos.Status != StatusOpen {
		return Position{}, ErrNotOpen
	}

	qty := decimal.NewFromFloat(pos.Quantity)
	exit := decimal.NewFromFloat(exitPrice)
	gross := qty.Mul(exit).Round(8)
	sellFee := gross.Mul(l.feeRate()).Round(8)
	net := gross.Sub(sellFee)
	pnl := net.Sub(decimal.NewFromFloat(pos.Invested))

	now := time.Now().UTC()
	closed := *pos
	closed.Status = StatusClosed
	closed.ExitPrice = utilities.Round8(exitPrice)
	closed.GrossProceeds = gross.InexactFloat64()
	closed.SellFee = sellFee.InexactFloat64()
	closed.NetProceeds = net.InexactFloat64()
	closed.PnL = pnl.InexactFloat64()
	closed.ClosedAt = &now

	if err := l.store.SavePosition(closed); err != nil {
		return Position{}, fmt.Errorf("ledger: persist close for %s: %w", id, err)
	}
	*pos = closed

	l.logger.LogInfo("Ledger: closed %s exit=%.8f gross=%.8f fee=%.8f net=%.8f pnl=%.8f",
		closed.Symbol, closed.ExitPrice, closed.GrossProceeds, closed.SellFee, closed.NetProceeds, closed.PnL)
	return closed, nil
}

// Get returns a position by id.
func (l *Ledger) Get(id string) (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[id]
	if !ok {
		return Position{}, ErrNotFound
	}
	return *pos, nil
}

// ListOpen returns the OPEN positions in creation order.
func (l *Ledger) ListOpen() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Position
	for _, id := range l.order {
		if pos := l.positions[id]; pos.Status == StatusOpen {
			out = append(out, *pos)
		}
	}
	return out
}

// ListAll returns every position in creation order.
func (l *Ledger) ListAll() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Position, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.positions[id])
	}
	return out
}

// OpenCount returns the number of OPEN positions.
func (l *Ledger) OpenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, pos := range l.positions {
		if pos.Status == StatusOpen {
			n++
		}
	}
	return n
}

// HasOpen reports whether an OPEN position exists for the given symbol.
func (l *Ledger) HasOpen(symbol string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, pos := range l.positions {
		if pos.Status == StatusOpen && pos.Symbol == symbol {
			return true
		}
	}
	return false
}

func (l *Ledger) feeRate() decimal.Decimal {
	return decimal.NewFromFloat(l.feePercent).Div(decimal.NewFromInt(100))
}
