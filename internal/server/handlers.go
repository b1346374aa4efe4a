package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Hackerer/sql-builder-BI-sub000/catalog"
	"github.com/Hackerer/sql-builder-BI-sub000/engine"
	"github.com/Hackerer/sql-builder-BI-sub000/internal/metrics"
	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"` // seconds
}

// CatalogResponse describes the loaded dataset.
type CatalogResponse struct {
	Catalog  *catalog.Catalog     `json:"catalog"`
	Rows     int                  `json:"rows"`
	DateSpan *timeframe.DateRange `json:"dateSpan,omitempty"`
}

// ComparisonOption is one selectable comparison for a granularity.
type ComparisonOption struct {
	Type  timeframe.ComparisonType `json:"type"`
	Label string                   `json:"label"`
}

type ComparisonRangeRequest struct {
	DateRange   timeframe.DateRange      `json:"dateRange"`
	Granularity timeframe.Granularity    `json:"granularity"`
	Type        timeframe.ComparisonType `json:"type"`
}

type ComparisonRangeResponse struct {
	DateRange timeframe.DateRange `json:"dateRange"`
	Label     string              `json:"label"`
}

// QueryRequest carries a client generation counter, echoed back so the
// client can drop responses to queries it has since replaced.
type QueryRequest struct {
	Generation uint64           `json:"generation"`
	Spec       engine.QuerySpec `json:"spec"`
}

type QueryResponse struct {
	Generation uint64         `json:"generation"`
	Result     *engine.Result `json:"result"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write healthz response", "error", err)
	}
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	resp := CatalogResponse{
		Catalog: s.cfg.Store.Catalog(),
		Rows:    s.cfg.Store.Len(),
	}
	if span, ok := s.cfg.Store.DateSpan(); ok {
		resp.DateSpan = &span
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleComparisonTypes(w http.ResponseWriter, r *http.Request) {
	g := timeframe.Granularity(r.URL.Query().Get("granularity"))
	if !g.Valid() {
		s.writeError(w, http.StatusBadRequest, "invalid_granularity", "granularity must be one of hour, day, week, month")
		return
	}

	options := []ComparisonOption{{Type: timeframe.ComparisonNone, Label: timeframe.ComparisonLabel(timeframe.ComparisonNone, g)}}
	for _, t := range timeframe.ValidComparisonTypes(g) {
		options = append(options, ComparisonOption{Type: t, Label: timeframe.ComparisonLabel(t, g)})
	}
	s.writeJSON(w, http.StatusOK, options)
}

func (s *Server) handleComparisonRange(w http.ResponseWriter, r *http.Request) {
	var req ComparisonRangeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.DateRange.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_date_range", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, ComparisonRangeResponse{
		DateRange: timeframe.ComparisonRange(req.DateRange, req.Granularity, req.Type),
		Label:     timeframe.ComparisonLabel(req.Type, req.Granularity),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.cfg.Store.Catalog().Validate(req.Spec); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	ctx := r.Context()
	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.cfg.Runner.Run(ctx, req.Spec)
	metrics.RecordQuery(time.Since(start), res, err)

	log := s.log.With("request_id", middleware.GetReqID(r.Context()), "generation", req.Generation)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrInvalidGranularity), errors.Is(err, engine.ErrInvalidDateRange):
			s.writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			log.Warn("query timed out", "timeout", s.cfg.QueryTimeout)
			s.writeError(w, http.StatusGatewayTimeout, "query_timeout", err.Error())
		case errors.Is(err, context.Canceled):
			log.Debug("query canceled by client")
			s.writeError(w, http.StatusServiceUnavailable, "query_canceled", err.Error())
		default:
			log.Error("query failed", "error", err)
			s.writeError(w, http.StatusInternalServerError, "internal_error", "query failed")
		}
		return
	}

	log.Debug("query served", "query_id", res.QueryID, "rows", len(res.Rows), "series", len(res.Series))
	s.writeJSON(w, http.StatusOK, QueryResponse{Generation: req.Generation, Result: res})
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
