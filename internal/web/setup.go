package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/zaplink/zaplink/internal/metrics"
	"github.com/zaplink/zaplink/internal/provision"
)

// handleProvision runs one saga and streams its progress events as SSE.
// The connection stays open for the whole run; each event is one
// data-prefixed JSON line.
func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Saga == nil {
		http.Error(w, "provisioner not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes()))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err := validateSetupRequest(body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var req provision.ProvisionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	_, _ = fmt.Fprint(w, ":ok\n\n")
	flusher.Flush()

	metrics.ActiveSetupStreams.Inc()
	defer metrics.ActiveSetupStreams.Dec()

	ctx, cancel := context.WithTimeout(r.Context(), s.requestBudget())
	defer cancel()

	s.Status.Start()
	emit := func(ev provision.ProgressEvent) {
		s.Status.Observe(ev)
		payload, err := marshalEvent(ev)
		if err != nil {
			slog.Error("marshal progress event", "error", err)
			return
		}
		_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	if err := s.Saga.Run(ctx, req, emit); err != nil {
		// The failure already went down the stream as an error event;
		// the log keeps the raw cause.
		slog.Error("provision run failed", "error", err)
	}
}

var marshalEvent = json.Marshal
