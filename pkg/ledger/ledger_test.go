package ledger

import (
	"Windfall/utilities"
	"errors"
	"testing"
)

// memoryStore is an in-memory PositionStore that can be told to fail, for
// exercising the persist-before-commit contract.
type memoryStore struct {
	saved    map[string]Position
	order    []string
	failSave bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{saved: make(map[string]Position)}
}

func (m *memoryStore) SavePosition(pos Position) error {
	if m.failSave {
		return errors.New("store unavailable")
	}
	if _, ok := m.saved[pos.ID]; !ok {
		m.order = append(m.order, pos.ID)
	}
	m.saved[pos.ID] = pos
	return nil
}

func (m *memoryStore) LoadPositions() ([]Position, error) {
	out := make([]Position, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.saved[id])
	}
	return out, nil
}

func newTestLedger(t *testing.T, store PositionStore, feePercent float64) *Ledger {
	t.Helper()
	l, err := NewLedger(store, feePercent, utilities.NewLogger(utilities.Error))
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	return l
}

func TestOpenDerivesQuantityAndFee(t *testing.T) {
	store := newMemoryStore()
	l := newTestLedger(t, store, 0.2)

	pos, err := l.Open("BTCUSDT", 10, 100, 2.5, true, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if pos.Quantity != 10 {
		t.Errorf("quantity = %f, want 10 (100 invested at price 10)", pos.Quantity)
	}
	if pos.BuyFee != 0.2 {
		t.Errorf("buy fee = %f, want 0.2 (0.2%% of 100)", pos.BuyFee)
	}
	if pos.TakeProfitPrice != 10.25 {
		t.Errorf("take profit = %f, want 10.25", pos.TakeProfitPrice)
	}
	if pos.Status != StatusOpen {
		t.Errorf("status = %q, want %q", pos.Status, StatusOpen)
	}
	if _, ok := store.saved[pos.ID]; !ok {
		t.Error("position was not persisted on open")
	}
}

func TestBeginCloseClaimsExclusively(t *testing.T) {
	store := newMemoryStore()
	l := newTestLedger(t, store, 0.2)

	pos, err := l.Open("BTCUSDT", 10, 100, 2.5, true, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	claimed, err := l.BeginClose(pos.ID)
	if err != nil {
		t.Fatalf("BeginClose: %v", err)
	}
	if claimed.ID != pos.ID {
		t.Errorf("claimed id = %q, want %q", claimed.ID, pos.ID)
	}
	if _, err := l.BeginClose(pos.ID); !errors.Is(err, ErrNotOpen) {
		t.Errorf("second claim error = %v, want ErrNotOpen", err)
	}

	l.AbortClose(pos.ID)
	if _, err := l.BeginClose(pos.ID); err != nil {
		t.Fatalf("claim after abort: %v", err)
	}

	if _, err := l.Close(pos.ID, 11); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := l.BeginClose(pos.ID); !errors.Is(err, ErrNotOpen) {
		t.Errorf("claim on closed position error = %v, want ErrNotOpen", err)
	}
}

func TestFailedPersistReleasesCloseClaim(t *testing.T) {
	store := newMemoryStore()
	l := newTestLedger(t, store, 0.2)

	pos, err := l.Open("BTCUSDT", 10, 100, 2.5, true, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := l.BeginClose(pos.ID); err != nil {
		t.Fatalf("BeginClose: %v", err)
	}

	store.failSave = true
	if _, err := l.Close(pos.ID, 11); err == nil {
		t.Fatal("expected Close to fail with the store down")
	}

	// The position stayed OPEN and must be claimable and closable again.
	store.failSave = false
	if _, err := l.BeginClose(pos.ID); err != nil {
		t.Fatalf("claim after failed persist: %v", err)
	}
	if _, err := l.Close(pos.ID, 11); err != nil {
		t.Errorf("close after failed persist: %v", err)
	}
}

func TestCloseComputesExactPnL(t *testing.T) {
	store := newMemoryStore()
	l := newTestLedger(t, store, 0.2)

	pos, err := l.Open("BTCUSDT", 10, 100, 2.5, true, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	closed, err := l.Close(pos.ID, 11)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	// 10 units at 11 = 110 gross; 0.2% fee = 0.22; net 109.78; pnl 9.78.
	if closed.GrossProceeds != 110 {
		t.Errorf("gross = %f, want 110", closed.GrossProceeds)
	}
	if closed.SellFee != 0.22 {
		t.Errorf("sell fee = %f, want 0.22", closed.SellFee)
	}
	if closed.NetProceeds != 109.78 {
		t.Errorf("net = %f, want 109.78", closed.NetProceeds)
	}
	if closed.PnL != 9.78 {
		t.Errorf("pnl = %f, want 9.78", closed.PnL)
	}
	if closed.Status != StatusClosed {
		t.Errorf("status = %q, want %q", closed.Status, StatusClosed)
	}
	if closed.ClosedAt == nil {
		t.Error("closed position has no ClosedAt timestamp")
	}

	// The persisted record matches the returned one.
	persisted := store.saved[pos.ID]
	if persisted.PnL != closed.PnL || persisted.Status != StatusClosed {
		t.Errorf("persisted record diverges: %+v", persisted)
	}
}

func TestCloseTwiceReturnsErrNotOpen(t *testing.T) {
	store := newMemoryStore()
	l := newTestLedger(t, store, 0.2)

	pos, _ := l.Open("ETHUSDT", 100, 50, 2.5, true, true)
	first, err := l.Close(pos.ID, 110)
	if err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if _, err := l.Close(pos.ID, 200); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("second Close error = %v, want ErrNotOpen", err)
	}
	// The stored record still reflects the first close.
	if got := store.saved[pos.ID]; got.ExitPrice != first.ExitPrice {
		t.Errorf("second close mutated stored record: exit = %f, want %f", got.ExitPrice, first.ExitPrice)
	}
}

func TestCloseUnknownIDReturnsErrNotFound(t *testing.T) {
	l := newTestLedger(t, newMemoryStore(), 0.2)
	if _, err := l.Close("no-such-id", 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestFailedPersistDoesNotCommit(t *testing.T) {
	store := newMemoryStore()
	l := newTestLedger(t, store, 0.2)

	pos, err := l.Open("SOLUSDT", 20, 100, 2.5, true, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	store.failSave = true
	if _, err := l.Close(pos.ID, 25); err == nil {
		t.Fatal("expected Close to fail when the store fails")
	}
	// In-memory state is untouched: the position is still open and closable.
	store.failSave = false
	if got, err := l.Get(pos.ID); err != nil || got.Status != StatusOpen {
		t.Fatalf("position after failed close: %+v, err %v; want still OPEN", got, err)
	}
	if _, err := l.Close(pos.ID, 25); err != nil {
		t.Errorf("Close after store recovery: %v", err)
	}

	store.failSave = true
	if _, err := l.Open("ADAUSDT", 1, 100, 2.5, true, true); err == nil {
		t.Fatal("expected Open to fail when the store fails")
	}
	if l.HasOpen("ADAUSDT") {
		t.Error("failed Open must not leave an in-memory position")
	}
}

func TestLedgerReloadsPersistedPositions(t *testing.T) {
	store := newMemoryStore()
	l := newTestLedger(t, store, 0.2)
	opened, _ := l.Open("BTCUSDT", 10, 100, 2.5, true, true)
	l.Close(opened.ID, 11)
	l.Open("ETHUSDT", 100, 50, 2.5, false, true)

	reloaded := newTestLedger(t, store, 0.2)
	if got := len(reloaded.ListAll()); got != 2 {
		t.Fatalf("reloaded ledger has %d positions, want 2", got)
	}
	if got := reloaded.OpenCount(); got != 1 {
		t.Errorf("reloaded open count = %d, want 1", got)
	}
	if !reloaded.HasOpen("ETHUSDT") {
		t.Error("reloaded ledger lost the open ETHUSDT position")
	}
	closed, err := reloaded.Get(opened.ID)
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if closed.PnL != 9.78 {
		t.Errorf("reloaded pnl = %f, want 9.78", closed.PnL)
	}
}

func TestOpenRejectsInvalidInputs(t *testing.T) {
	l := newTestLedger(t, newMemoryStore(), 0.2)
	if _, err := l.Open("BTCUSDT", 0, 100, 2.5, true, true); err == nil {
		t.Error("expected error for zero entry price")
	}
	if _, err := l.Open("BTCUSDT", 10, 0, 2.5, true, true); err == nil {
		t.Error("expected error for zero invested amount")
	}
	if _, err := l.Close("whatever", 0); err == nil {
		t.Error("expected error for zero exit price")
	}
}

func TestQuantityRoundsToEightDecimals(t *testing.T) {
	l := newTestLedger(t, newMemoryStore(), 0.2)
	// 100 / 3 = 33.33333333... rounds to 8 places.
	pos, err := l.Open("XRPUSDT", 3, 100, 2.5, true, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if pos.Quantity != 33.33333333 {
		t.Errorf("quantity = %.10f, want 33.33333333", pos.Quantity)
	}
}
