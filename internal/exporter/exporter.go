// Package exporter serves the read-only HTTP surface: Prometheus
// instruments fed from each tick, JSON views of the latest snapshot and
// the retained history, and process termination for operators. The
// monitor core never learns the exporter exists; it only publishes ticks.
package exporter

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/gpu"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"codeberg.org/mutker/nvidiamon/internal/monitor"
	"codeberg.org/mutker/nvidiamon/internal/proc"
)

const defaultTimeout = 15 * time.Second

// TickSource exposes the most recent completed tick.
type TickSource interface {
	Latest() (monitor.Tick, bool)
}

// HistorySource exposes the retained series for one device and metric.
type HistorySource interface {
	Devices() int
	Snapshot(device int, metric gpu.Metric) ([]float64, []int)
}

type Server struct {
	srv        *http.Server
	router     *mux.Router
	collectors *collectors
	ticks      TickSource
	history    HistorySource
	caps       proc.Capabilities
}

// NewServer wires the HTTP surface. caps may be nil, which disables the
// process termination endpoint.
func NewServer(addr string, ticks TickSource, history HistorySource, caps proc.Capabilities) (*Server, error) {
	errFactory := errors.New()

	if addr == "" {
		return nil, errFactory.New(ErrInvalidListenAddr)
	}
	if ticks == nil || history == nil {
		return nil, errFactory.New(ErrInvalidSource)
	}

	s := &Server{
		router:     mux.NewRouter(),
		collectors: newCollectors(),
		ticks:      ticks,
		history:    history,
		caps:       caps,
	}
	s.routes()

	s.srv = &http.Server{
		Handler:      s.router,
		Addr:         addr,
		ReadTimeout:  defaultTimeout,
		WriteTimeout: defaultTimeout,
	}

	return s, nil
}

func (s *Server) routes() {
	s.router.Handle("/metrics",
		promhttp.HandlerFor(s.collectors.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/history/{device:[0-9]+}/{metric}", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/processes/{pid:[0-9]+}", s.handleTerminate).Methods(http.MethodDelete)
}

// Observe feeds one tick into the Prometheus instruments. It is meant to
// run as a monitor consumer.
func (s *Server) Observe(t monitor.Tick) {
	s.collectors.observe(t)
}

// Handler exposes the routes without the listener for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the listener fails or Shutdown runs.
func (s *Server) ListenAndServe() error {
	errFactory := errors.New()

	logger.Info().Str("addr", s.srv.Addr).Msg("Exporter listening")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errFactory.Wrap(ErrServerFailed, err)
	}

	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	errFactory := errors.New()

	if err := s.srv.Shutdown(ctx); err != nil {
		return errFactory.Wrap(ErrShutdownFailed, err)
	}

	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	_, sampled := s.ticks.Latest()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sampling": sampled,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	tick, ok := s.ticks.Latest()
	if !ok {
		http.Error(w, "no sample completed yet", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, renderTick(tick))
}

// renderTick cuts ranked process names to display width. The tick's
// slices are shared with other consumers, so the rankings are copied,
// never edited in place. Raw samples keep their full names.
func renderTick(t monitor.Tick) monitor.Tick {
	rankings := make([][]gpu.ProcessEntry, len(t.Rankings))
	for i, ranking := range t.Rankings {
		rendered := make([]gpu.ProcessEntry, len(ranking))
		copy(rendered, ranking)
		for j := range rendered {
			rendered[j].Name = proc.DisplayName(rendered[j].Name)
		}
		rankings[i] = rendered
	}
	t.Rankings = rankings

	return t
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	device, err := strconv.Atoi(vars["device"])
	if err != nil || device < 0 || device >= s.history.Devices() {
		http.Error(w, "unknown device", http.StatusNotFound)
		return
	}

	metric := gpu.Metric(vars["metric"])
	if !knownMetric(metric) {
		http.Error(w, "unknown metric", http.StatusNotFound)
		return
	}

	values, ticks := s.history.Snapshot(device, metric)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"device": device,
		"metric": metric,
		"values": values,
		"ticks":  ticks,
	})
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	if s.caps == nil {
		http.Error(w, "process control unavailable", http.StatusNotImplemented)
		return
	}

	pid, err := strconv.ParseInt(mux.Vars(r)["pid"], 10, 32)
	if err != nil {
		http.Error(w, "invalid pid", http.StatusBadRequest)
		return
	}

	if err := s.caps.Terminate(int32(pid)); err != nil {
		logger.Warn().Err(err).Int64("pid", pid).Msg("Process termination failed")
		http.Error(w, "termination failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pid":    pid,
		"status": "terminated",
	})
}

func knownMetric(m gpu.Metric) bool {
	for _, known := range gpu.Metrics() {
		if known == m {
			return true
		}
	}

	return false
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Debug().Err(err).Msg("Failed to encode response")
	}
}
