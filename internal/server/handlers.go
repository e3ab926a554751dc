package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Usaidkhxn/LaunchLens/internal/analysis"
	"github.com/Usaidkhxn/LaunchLens/internal/report"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

type HealthResponse struct {
	Status           string `json:"status"`
	Schema           string `json:"schema"`
	ExperimentsCount int    `json:"experiments_count"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := HealthResponse{
		Status:        "ok",
		Schema:        "ok",
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}

	if err := s.warehouse.CheckSchema(ctx); err != nil {
		response.Status = "degraded"
		response.Schema = err.Error()
	} else {
		exps, err := s.warehouse.Experiments(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		response.ExperimentsCount = len(exps)
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleExperiments(w http.ResponseWriter, r *http.Request) {
	exps, err := s.warehouse.Experiments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	// Return empty array instead of null
	if exps == nil {
		exps = []warehouse.ExperimentSummary{}
	}
	writeJSON(w, http.StatusOK, exps)
}

func (s *Server) handleReadout(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.requestConfig(w, r)
	if !ok {
		return
	}
	format := report.FormatJSON
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := report.ParseFormat(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "bad_request"})
			return
		}
		format = f
	}

	b, err := analysis.Run(r.Context(), s.warehouse, chi.URLParam(r, "id"), cfg)
	if err != nil {
		writeError(w, err)
		return
	}

	switch format {
	case report.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		err = report.WriteCSV(w, b.Rows)
	case report.FormatYAML:
		w.Header().Set("Content-Type", "application/yaml")
		err = report.WriteYAML(w, b)
	case report.FormatText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		err = report.WriteText(w, b, cfg.Catalog)
	default:
		w.Header().Set("Content-Type", "application/json")
		err = report.WriteJSON(w, b)
	}
	if err != nil {
		zap.L().Error("write readout", zap.String("component", "server"), zap.Error(err))
	}
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.requestConfig(w, r)
	if !ok {
		return
	}

	tr, err := analysis.RunTrend(r.Context(), s.warehouse, chi.URLParam(r, "id"), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// requestConfig applies the optional start and end query parameters to the
// server's analysis config.
func (s *Server) requestConfig(w http.ResponseWriter, r *http.Request) (analysis.Config, bool) {
	cfg := s.cfg
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"start", &cfg.Window.Start}, {"end", &cfg.Window.End}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		d, err := warehouse.ParseDate(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "bad_request"})
			return cfg, false
		}
		*p.dst = d
	}
	return cfg, true
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, analysis.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, warehouse.ErrSchemaMismatch):
		status, kind = http.StatusServiceUnavailable, "schema_mismatch"
	case errors.Is(err, analysis.ErrUnexpectedVariant):
		status, kind = http.StatusUnprocessableEntity, "unexpected_variant"
	case errors.Is(err, analysis.ErrInvalidConfig):
		status, kind = http.StatusBadRequest, "bad_request"
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.String("component", "server"), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
