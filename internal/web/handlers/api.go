package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cali-upid/internal/etl"
	"github.com/cali-upid/internal/metrics"
	"github.com/cali-upid/internal/record"
	"github.com/cali-upid/internal/store"
	"github.com/cali-upid/internal/validation"
)

// Config carries the handler settings derived from the server configuration
type Config struct {
	Fields       record.Fields
	MaxBodyBytes int64
	Timeout      time.Duration
	Debug        bool
}

// APIHandler serves the processing, lookup and statistics endpoints
type APIHandler struct {
	Pipeline *etl.Pipeline
	Store    *store.Store // nil when running without a database
	DB       *sql.DB
	Config   Config

	mu         sync.RWMutex
	lastReport *validation.Report
	lastRunID  int64
}

// StatsResponse wraps the most recent batch report
type StatsResponse struct {
	RunID  int64              `json:"run_id,omitempty"`
	Origin string             `json:"origin"`
	Report *validation.Report `json:"report"`
}

func (h *APIHandler) remember(runID int64, rep *validation.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastReport = rep
	h.lastRunID = runID
}

// GetStats returns the report of the last batch processed by this server,
// falling back to the last run stored in the database
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	rep, runID := h.lastReport, h.lastRunID
	h.mu.RUnlock()

	if rep != nil {
		writeJSON(w, r, http.StatusOK, StatsResponse{RunID: runID, Origin: "memory", Report: rep})
		return
	}

	if h.Store == nil {
		writeError(w, r, http.StatusNotFound, "no batch processed yet")
		return
	}

	id, stored, err := h.Store.LatestReport(r.Context())
	if errors.Is(err, store.ErrNoRuns) {
		writeError(w, r, http.StatusNotFound, "no batch processed yet")
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, r, http.StatusOK, StatsResponse{RunID: id, Origin: "database", Report: stored})
}

// HealthResponse reports service readiness
type HealthResponse struct {
	Status     string `json:"status"`
	References int    `json:"references"`
	Database   string `json:"database,omitempty"`
}

// Health reports whether the service and its database are reachable
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", References: len(h.Pipeline.References())}
	status := http.StatusOK

	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
		metrics.UpdateDBPoolMetrics(h.DB)
	}

	writeJSON(w, r, status, resp)
}
