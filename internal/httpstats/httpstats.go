// Package httpstats exposes the telemetry surface of spec.md §7 over
// HTTP, grounded on the teacher's JSON-response shape in
// daemon/http.go (status code plus a serialized body) but trimmed to
// the one read-only endpoint this rewrite needs.
package httpstats

import (
	"encoding/json"
	"net/http"

	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/logging"
	"github.com/DUNE-DAQ/dpdklibs-sub000/internal/stats"
)

// TelemetrySource is whatever can produce a point-in-time snapshot,
// satisfied by internal/root.Root.Telemetry.
type TelemetrySource interface {
	Telemetry() map[string]map[int]stats.QueueSnapshot
}

// Handler serves GET /telemetry as a JSON document: interface id ->
// rx-queue -> QueueSnapshot.
type Handler struct {
	source TelemetrySource
}

func NewHandler(source TelemetrySource) *Handler {
	return &Handler{source: source}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := json.Marshal(h.source.Telemetry())
	if err != nil {
		logging.Errorf("failed to serialize telemetry: %v\n", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Serve registers the telemetry handler on addr and blocks until the
// server stops or errors.
func Serve(addr string, source TelemetrySource) error {
	mux := http.NewServeMux()
	mux.Handle("/telemetry", NewHandler(source))
	logging.Infof("telemetry server listening on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}
