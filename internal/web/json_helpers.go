package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSON serves the setup API's plain JSON responses: status reports,
// health probes, and request validation errors. The provisioning stream
// never goes through here; it writes SSE frames directly.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode setup response", "error", err)
	}
}
