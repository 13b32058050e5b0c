package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cali-upid/internal/debug"
	"github.com/cali-upid/internal/etl"
	"github.com/cali-upid/internal/record"
	"github.com/cali-upid/internal/validation"
)

// ProcessResponse is returned by POST /api/process
type ProcessResponse struct {
	RunID  int64              `json:"run_id,omitempty"`
	Report *validation.Report `json:"report"`
	Data   json.RawMessage    `json:"data"`
}

// ProcessBatch runs a posted JSON array or FeatureCollection through the
// pipeline. The data member mirrors the shape of the request body.
//
// Query parameters: lat_field, lon_field override the coordinate property
// names; save=true stores the run when a database is configured.
func (h *APIHandler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	defer debug.DebugTiming(h.Config.Debug, "POST /api/process")()

	if h.Config.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "failed to read request body")
		return
	}

	fields := h.Config.Fields
	if fields.Lat == "" || fields.Lon == "" {
		fields = record.DefaultFields()
	}
	if v := r.URL.Query().Get("lat_field"); v != "" {
		fields.Lat = v
	}
	if v := r.URL.Query().Get("lon_field"); v != "" {
		fields.Lon = v
	}

	batch, err := etl.Decode(body, fields)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if h.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Config.Timeout)
		defer cancel()
	}

	started := time.Now()
	out, err := h.Pipeline.Run(ctx, h.Config.Debug, batch)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			writeError(w, r, http.StatusServiceUnavailable, "batch processing timed out")
			return
		}
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := out.Encode()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	var runID int64
	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save {
		if h.Store == nil {
			writeError(w, r, http.StatusConflict, "no database configured")
			return
		}
		runID, _, err = h.Store.SaveBatch(ctx, h.Config.Debug, "api", started, out)
		if err != nil {
			log.Printf("failed to save run: %v", err)
			writeError(w, r, http.StatusInternalServerError, "Database error")
			return
		}
	}

	h.remember(runID, out.Report)
	writeJSON(w, r, http.StatusOK, ProcessResponse{RunID: runID, Report: out.Report, Data: data})
}
