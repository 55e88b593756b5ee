package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blockwatch/internal/config"
	"blockwatch/internal/ingest"
	"blockwatch/internal/security"
)

const shutdownTimeout = 10 * time.Second

// API carries the collaborators the HTTP handlers need.
type API struct {
	Service   *ingest.Service
	Records   ingest.RecordStore
	Catalog   config.Catalog
	Namespace uuid.UUID

	// Auth guards the mutating endpoints. They answer 503 when it is nil.
	Auth *security.Authenticator

	// Instances reports live instances for /health; optional.
	Instances func(ctx context.Context) (int, error)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) requireAdmin(next http.HandlerFunc) http.Handler {
	if a.Auth == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, "admin API disabled", http.StatusServiceUnavailable)
		})
	}
	return a.Auth.RequireAdmin(next)
}

func (a *API) Handler() http.Handler {
	router := http.NewServeMux()
	router.HandleFunc("GET /health", a.health)
	router.HandleFunc("GET /version", getVersion)
	router.Handle("GET /metrics", promhttp.Handler())

	router.HandleFunc("GET /api/feeds", a.listFeeds)
	router.HandleFunc("GET /api/runs/last", a.lastRun)
	router.Handle("POST /api/runs", a.requireAdmin(a.triggerRun))
	router.HandleFunc("GET /api/records/{address...}", a.getRecord)
	router.Handle("DELETE /api/records/{address...}", a.requireAdmin(a.deleteRecord))

	return router
}

// OpenRoutes serves the API on port until ctx is cancelled.
func OpenRoutes(ctx context.Context, port int, api *API) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("API server shutdown failed", "error", err)
		}
	}()

	log.Infof("Starting blockwatch API on port :%d", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}
