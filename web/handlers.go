package web

import (
	"Windfall/pkg/broker"
	"Windfall/pkg/ledger"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrNotOpen):
		return http.StatusConflict
	case errors.Is(err, broker.ErrNoCredentials):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// scanHandler triggers a synchronous scan pass.
func scanHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		result, err := controller.TriggerScan(r.Context())
		if err != nil {
			controller.Logger().LogError("Web: scan failed: %v", err)
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// lastScanHandler serves the most recent scan result without triggering a new one.
func lastScanHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		result, ok := controller.LastScan()
		if !ok {
			writeError(w, http.StatusNotFound, "no scan has completed yet")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func balanceHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		balance, err := controller.GetBalance(r.Context())
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, balance)
	}
}

// positionsHandler lists positions on GET and opens a manual position on POST.
func positionsHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			status := strings.ToUpper(r.URL.Query().Get("status"))
			if status != "" && status != ledger.StatusOpen && status != ledger.StatusClosed {
				writeError(w, http.StatusBadRequest, "status must be OPEN or CLOSED")
				return
			}
			positions := controller.ListPositions(r.Context(), status)
			if positions == nil {
				positions = []PositionView{}
			}
			writeJSON(w, http.StatusOK, positions)
		case http.MethodPost:
			var req OpenPositionRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
				return
			}
			if req.Symbol == "" {
				writeError(w, http.StatusBadRequest, "symbol is required")
				return
			}
			if req.Invested < 0 {
				writeError(w, http.StatusBadRequest, "invested must not be negative")
				return
			}
			if req.SizingPercent != nil && (*req.SizingPercent <= 0 || *req.SizingPercent > 100) {
				writeError(w, http.StatusBadRequest, "sizingPercent must be in (0, 100]")
				return
			}
			pos, err := controller.OpenPosition(r.Context(), req)
			if err != nil {
				controller.Logger().LogError("Web: open position for %s failed: %v", req.Symbol, err)
				writeError(w, statusForError(err), err.Error())
				return
			}
			writeJSON(w, http.StatusCreated, pos)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// closePositionHandler sells an open position at the current market price.
func closePositionHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			ID        string  `json:"id"`
			ExitPrice float64 `json:"exitPrice,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		if req.ID == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}
		if req.ExitPrice < 0 {
			writeError(w, http.StatusBadRequest, "exitPrice must not be negative")
			return
		}
		pos, err := controller.ClosePosition(r.Context(), req.ID, req.ExitPrice)
		if err != nil {
			controller.Logger().LogError("Web: close position %s failed: %v", req.ID, err)
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, pos)
	}
}

// autotradeHandler reads or flips the autonomous trading switch.
func autotradeHandler(controller AppController) http.HandlerFunc {
	type autotradeState struct {
		Enabled bool `json:"enabled"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, autotradeState{Enabled: controller.AutoTradeEnabled()})
		case http.MethodPost:
			var req autotradeState
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
				return
			}
			if err := controller.SetAutoTrade(req.Enabled); err != nil {
				writeError(w, statusForError(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, autotradeState{Enabled: controller.AutoTradeEnabled()})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// settingsHandler reads or replaces the runtime settings.
func settingsHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, controller.GetSettings())
		case http.MethodPost:
			current := controller.GetSettings()
			if err := json.NewDecoder(r.Body).Decode(&current); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
				return
			}
			updated, err := controller.UpdateSettings(current)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, updated)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

func statusHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, controller.Status())
	}
}
