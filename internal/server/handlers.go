package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/leapstack-labs/pasture/internal/dataset"
	"github.com/leapstack-labs/pasture/pkg/core"
)

type requestIDKey struct{}

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID returns the request ID stored by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID tags each request with the caller's X-Request-ID or a new UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(started),
			"request_id", RequestID(r.Context()))
	})
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Dataset string `json:"dataset"`
}

// CategoriesResponse is the body of GET /categories.
type CategoriesResponse struct {
	AboveMax   string    `json:"above_max"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
	Categories []float64 `json:"categories"`
}

// GrowthResponse is the body of GET /growth.
type GrowthResponse struct {
	Request  dataset.Request     `json:"request"`
	Category float64             `json:"category"`
	Records  []core.GrowthRecord `json:"records"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok", Dataset: s.opts.Dataset.Path()}
	status := http.StatusOK
	if !s.opts.Dataset.Ready() {
		resp.Status = "not ready"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	idx := s.opts.Dataset.Categories()
	if idx == nil {
		s.writeError(w, r, dataset.ErrNotReady)
		return
	}
	resp := CategoriesResponse{
		AboveMax:   idx.Policy().String(),
		Categories: idx.Values(),
	}
	resp.Min, _ = idx.Min()
	resp.Max, _ = idx.Max()
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGrowth(w http.ResponseWriter, r *http.Request) {
	req, err := parseGrowthRequest(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	idx := s.opts.Dataset.Categories()
	if idx == nil {
		s.writeError(w, r, dataset.ErrNotReady)
		return
	}
	cat, err := idx.Resolve(req.StkRate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	records, err := s.opts.Dataset.IntervalRecords(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, GrowthResponse{Request: req, Category: cat, Records: records})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.events.Subscribe()
	defer s.events.Unsubscribe(ch)

	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Debug("event stream cannot flush", "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("failed to encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err, "request_id", RequestID(r.Context()))
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error(), RequestID: RequestID(r.Context())})
}

// parseGrowthRequest reads a growth request from query parameters. Every
// site field, stk_rate and start are required; months defaults to twelve.
func parseGrowthRequest(q url.Values) (dataset.Request, error) {
	var req dataset.Request
	var err error

	ints := []struct {
		name string
		dst  *int
	}{
		{"region", &req.Site.Region},
		{"soil", &req.Site.Soil},
		{"grass_ba", &req.Site.GrassBA},
		{"land_con", &req.Site.LandCon},
	}
	for _, p := range ints {
		if *p.dst, err = intParam(q, p.name); err != nil {
			return req, err
		}
	}

	raw := q.Get("stk_rate")
	if raw == "" {
		return req, fmt.Errorf("%w: stk_rate is required", ErrBadParam)
	}
	if req.StkRate, err = strconv.ParseFloat(raw, 64); err != nil {
		return req, fmt.Errorf("%w: stk_rate: %q is not a number", ErrBadParam, raw)
	}

	raw = q.Get("start")
	if raw == "" {
		return req, fmt.Errorf("%w: start is required", ErrBadParam)
	}
	if req.Start, err = time.Parse(time.DateOnly, raw); err != nil {
		return req, fmt.Errorf("%w: start: %q is not a YYYY-MM-DD date", ErrBadParam, raw)
	}

	req.Months = DefaultMonths
	if q.Has("months") {
		if req.Months, err = intParam(q, "months"); err != nil {
			return req, err
		}
	}
	return req, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrBadParam, name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not an integer", ErrBadParam, name, raw)
	}
	return n, nil
}
