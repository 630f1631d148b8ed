package web

import (
	"Windfall/pkg/ledger"
	"Windfall/strategy"
	"Windfall/utilities"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// stubController is a canned AppController for handler tests.
type stubController struct {
	scan      ScanResult
	scanErr   error
	last      *ScanResult
	positions []PositionView
	opened    ledger.Position
	openErr   error
	closed    ledger.Position
	closeErr  error
	settings  utilities.Settings
	autoTrade bool
	logger    *utilities.Logger
}

func (s *stubController) TriggerScan(ctx context.Context) (ScanResult, error) {
	return s.scan, s.scanErr
}

func (s *stubController) LastScan() (ScanResult, bool) {
	if s.last == nil {
		return ScanResult{}, false
	}
	return *s.last, true
}

func (s *stubController) GetBalance(ctx context.Context) (BalanceView, error) {
	return BalanceView{Balances: map[string]float64{"USDT": 1000}, QuoteCurrency: "USDT", Simulated: true}, nil
}

func (s *stubController) ListPositions(ctx context.Context, status string) []PositionView {
	return s.positions
}

func (s *stubController) OpenPosition(ctx context.Context, req OpenPositionRequest) (ledger.Position, error) {
	return s.opened, s.openErr
}

func (s *stubController) ClosePosition(ctx context.Context, id string, exitPrice float64) (ledger.Position, error) {
	return s.closed, s.closeErr
}

func (s *stubController) AutoTradeEnabled() bool { return s.autoTrade }

func (s *stubController) SetAutoTrade(enabled bool) error {
	s.autoTrade = enabled
	return nil
}

func (s *stubController) GetSettings() utilities.Settings { return s.settings }

func (s *stubController) UpdateSettings(settings utilities.Settings) (utilities.Settings, error) {
	s.settings = settings
	return settings, nil
}

func (s *stubController) Status() StatusView { return StatusView{AppName: "test"} }

func (s *stubController) Logger() *utilities.Logger { return s.logger }

func newStub() *stubController {
	return &stubController{
		logger: utilities.NewLogger(utilities.Error),
		settings: utilities.Settings{
			InvestPercent: 10, TakeProfitPercent: 2.5, MaxOpenPositions: 3, MinScore: 6, MaxScanResults: 5,
		},
	}
}

func doRequest(t *testing.T, controller AppController, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	NewMux(controller).ServeHTTP(rec, req)
	return rec
}

func TestScanEndpointMethods(t *testing.T) {
	stub := newStub()
	stub.scan = ScanResult{
		Signals: []strategy.Signal{{Symbol: "BTCUSDT", Score: 9}},
		TakenAt: time.Now().UTC(),
	}

	rec := doRequest(t, stub, http.MethodPost, "/api/scan", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/scan status = %d, want 200", rec.Code)
	}
	var result ScanResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Signals) != 1 || result.Signals[0].Symbol != "BTCUSDT" {
		t.Errorf("unexpected scan payload: %+v", result)
	}

	if rec := doRequest(t, stub, http.MethodGet, "/api/scan", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/scan status = %d, want 405", rec.Code)
	}
}

func TestLastScanNotFoundBeforeFirstScan(t *testing.T) {
	stub := newStub()
	if rec := doRequest(t, stub, http.MethodGet, "/api/scan/last", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 before any scan", rec.Code)
	}

	stub.last = &ScanResult{TakenAt: time.Now().UTC()}
	if rec := doRequest(t, stub, http.MethodGet, "/api/scan/last", nil); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 after a scan", rec.Code)
	}
}

func TestPositionsEndpointValidation(t *testing.T) {
	stub := newStub()

	if rec := doRequest(t, stub, http.MethodGet, "/api/positions?status=WEIRD", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad status filter: code = %d, want 400", rec.Code)
	}

	rec := doRequest(t, stub, http.MethodGet, "/api/positions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/positions status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body == "null\n" {
		t.Error("empty position list must encode as [], not null")
	}

	if rec := doRequest(t, stub, http.MethodPost, "/api/positions", map[string]interface{}{"invested": 100}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing symbol: code = %d, want 400", rec.Code)
	}
	if rec := doRequest(t, stub, http.MethodPost, "/api/positions", map[string]interface{}{"symbol": "BTCUSDT", "invested": -1}); rec.Code != http.StatusBadRequest {
		t.Errorf("negative invested: code = %d, want 400", rec.Code)
	}

	stub.opened = ledger.Position{ID: "p1", Symbol: "BTCUSDT", Status: ledger.StatusOpen}
	rec = doRequest(t, stub, http.MethodPost, "/api/positions", map[string]interface{}{"symbol": "BTCUSDT", "invested": 100})
	if rec.Code != http.StatusCreated {
		t.Errorf("valid open: code = %d, want 201", rec.Code)
	}
}

func TestClosePositionErrorMapping(t *testing.T) {
	stub := newStub()

	stub.closeErr = ledger.ErrNotFound
	if rec := doRequest(t, stub, http.MethodPost, "/api/positions/close", map[string]string{"id": "nope"}); rec.Code != http.StatusNotFound {
		t.Errorf("ErrNotFound: code = %d, want 404", rec.Code)
	}

	stub.closeErr = ledger.ErrNotOpen
	if rec := doRequest(t, stub, http.MethodPost, "/api/positions/close", map[string]string{"id": "p1"}); rec.Code != http.StatusConflict {
		t.Errorf("ErrNotOpen: code = %d, want 409", rec.Code)
	}

	stub.closeErr = nil
	stub.closed = ledger.Position{ID: "p1", Status: ledger.StatusClosed, PnL: 9.78}
	rec := doRequest(t, stub, http.MethodPost, "/api/positions/close", map[string]string{"id": "p1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("close: code = %d, want 200", rec.Code)
	}
	var pos ledger.Position
	if err := json.Unmarshal(rec.Body.Bytes(), &pos); err != nil {
		t.Fatalf("decode close response: %v", err)
	}
	if pos.PnL != 9.78 {
		t.Errorf("pnl in response = %f, want 9.78", pos.PnL)
	}

	if rec := doRequest(t, stub, http.MethodPost, "/api/positions/close", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing id: code = %d, want 400", rec.Code)
	}
}

func TestAutotradeToggle(t *testing.T) {
	stub := newStub()

	rec := doRequest(t, stub, http.MethodPost, "/api/autotrade", map[string]bool{"enabled": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/autotrade status = %d, want 200", rec.Code)
	}
	if !stub.autoTrade {
		t.Error("toggle did not reach the controller")
	}

	rec = doRequest(t, stub, http.MethodGet, "/api/autotrade", nil)
	var state struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode autotrade state: %v", err)
	}
	if !state.Enabled {
		t.Error("GET /api/autotrade did not reflect the toggle")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	stub := newStub()

	update := stub.settings
	update.MinScore = 8
	rec := doRequest(t, stub, http.MethodPost, "/api/settings", update)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/settings status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, stub, http.MethodGet, "/api/settings", nil)
	var got utilities.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if got.MinScore != 8 {
		t.Errorf("minScore = %d, want 8", got.MinScore)
	}
}

func TestStatusEndpoint(t *testing.T) {
	rec := doRequest(t, newStub(), http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/status status = %d, want 200", rec.Code)
	}
	var status StatusView
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.AppName != "test" {
		t.Errorf("appName = %q, want test", status.AppName)
	}
}
