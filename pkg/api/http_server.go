package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"geokd/pkg/common"
	"geokd/pkg/core"
	"geokd/pkg/monitor"
	"geokd/pkg/query"
)

type Server struct {
	store *core.GeoStore
	log   *slog.Logger
	mux   *http.ServeMux
	srv   *http.Server
}

func NewServer(store *core.GeoStore, log *slog.Logger) *Server {
	s := &Server{store: store, log: log, mux: http.NewServeMux()}
	s.mux.HandleFunc("/api/nearest", s.handleNearest)
	s.mux.HandleFunc("/api/range", s.handleRange)
	s.mux.HandleFunc("/api/find", s.handleFind)
	s.mux.HandleFunc("/api/query", s.handleQuery)
	s.mux.HandleFunc("/api/insert", s.handleInsert)
	s.mux.HandleFunc("/api/tree", s.handleTree)
	s.mux.HandleFunc("/api/export", s.handleExport)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/api/benchmark", s.handleBenchmark)
	s.mux.Handle("/metrics", monitor.Handler())
	return s
}

// Handler exposes the routing table without binding a port.
func (s *Server) Handler() http.Handler { return s.mux }

// Start blocks serving HTTP on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("http_listening", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	if errors.Is(err, common.ErrEmptyTree) || errors.Is(err, common.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, common.ErrInvalidCoordinate) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func floatParams(r *http.Request, names ...string) ([]float64, error) {
	q := r.URL.Query()
	out := make([]float64, len(names))
	for i, name := range names {
		v, err := strconv.ParseFloat(q.Get(name), 64)
		if err != nil || !common.Finite(v) {
			return nil, errors.New("invalid " + name)
		}
		out[i] = v
	}
	return out, nil
}

type recordJSON struct {
	City string  `json:"city"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

func toJSON(records []common.Record) []recordJSON {
	out := make([]recordJSON, len(records))
	for i, r := range records {
		out[i] = recordJSON{City: r.City, Lat: r.Lat, Lon: r.Lon}
	}
	return out
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	vals, err := floatParams(r, "lat", "lon")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	var (
		rec  common.Record
		dist float64
	)
	exact := r.URL.Query().Get("exact") == "1"
	if exact {
		rec, dist, err = s.store.NearestExact(vals[0], vals[1])
	} else {
		rec, dist, err = s.store.Nearest(vals[0], vals[1])
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"city":        rec.City,
		"lat":         rec.Lat,
		"lon":         rec.Lon,
		"distance_km": dist,
		"exact":       exact,
		"latency_ns":  time.Since(start).Nanoseconds(),
	})
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	vals, err := floatParams(r, "min_lat", "min_lon", "max_lat", "max_lon")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rect, err := common.NewRect(vals[0], vals[1], vals[2], vals[3])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	records := s.store.Range(rect)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"records": toJSON(records),
	})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("city")
	if name == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing city"))
		return
	}
	records := s.store.Find(name)
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, common.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"records": toJSON(records),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if r.Method == http.MethodPost {
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid body"))
			return
		}
		q = req.Query
	}

	stmt, err := query.Parse(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := s.store.Query(stmt)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"kind":    stmt.Kind.String(),
		"count":   len(records),
		"records": toJSON(records),
	})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	var req struct {
		City     string   `json:"city"`
		Lat      *float64 `json:"lat"`
		Lon      *float64 `json:"lon"`
		Balanced bool     `json:"balanced"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid body"))
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(w, http.StatusBadRequest, errors.New("lat and lon are required"))
		return
	}

	rec := common.Record{City: req.City, Lat: *req.Lat, Lon: *req.Lon}
	if err := s.store.Insert(rec, req.Balanced); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"records":  s.store.Len(),
		"height":   s.store.Height(),
		"balanced": req.Balanced,
	})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.WriteDocument(w); err != nil {
		writeError(w, statusFor(err), err)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment;filename=geokd_export.csv")
	if err := s.store.WriteCSV(w); err != nil {
		s.log.Warn("export_failed", "error", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats())
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	iterations := 10000
	if v, err := strconv.Atoi(r.URL.Query().Get("n")); err == nil && v > 0 {
		iterations = v
	}

	kdTime, linearTime, err := s.store.BenchmarkAlgo(iterations)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	winner := "Linear Scan"
	if kdTime < linearTime {
		winner = "KD-Tree"
	}
	speedup := 0.0
	if kdTime > 0 {
		speedup = linearTime / kdTime
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"iterations":    iterations,
		"kdtree_avg_ns": kdTime,
		"linear_avg_ns": linearTime,
		"speedup":       speedup,
		"winner":        winner,
	})
}
