package web

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// NewMux builds the API route table. Exposed separately so tests can drive
// the handlers without binding a socket.
func NewMux(controller AppController) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scan", scanHandler(controller))
	mux.HandleFunc("/api/scan/last", lastScanHandler(controller))
	mux.HandleFunc("/api/balance", balanceHandler(controller))
	mux.HandleFunc("/api/positions", positionsHandler(controller))
	mux.HandleFunc("/api/positions/close", closePositionHandler(controller))
	mux.HandleFunc("/api/autotrade", autotradeHandler(controller))
	mux.HandleFunc("/api/settings", settingsHandler(controller))
	mux.HandleFunc("/api/status", statusHandler(controller))
	return mux
}

// StartWebServer starts the JSON API server and shuts it down gracefully when
// the context is cancelled. It returns immediately; the server runs in its
// own goroutines until shutdown.
func StartWebServer(ctx context.Context, addr string, controller AppController) {
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      NewMux(controller),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		controller.Logger().LogInfo("Web: API server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			controller.Logger().LogError("Web: server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			controller.Logger().LogError("Web: graceful shutdown failed: %v", err)
		} else {
			controller.Logger().LogInfo("Web: server stopped.")
		}
	}()
}
