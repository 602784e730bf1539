// Package httpapi is the HTTP Surface (C10): a thin chi router
// translating query parameters into Analytics Engine calls and
// background-job requests into Job Tracker + Ingestion Pipeline calls
// (spec §4.10).
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-logr/logr"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
	"github.com/jordigilh/regtrack/internal/platform/logging"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err to its canonical HTTP status (spec §7's
// taxonomy, via apperrors.StatusFor) and writes a small JSON envelope.
func writeError(w http.ResponseWriter, log logr.Logger, err error) {
	status := apperrors.StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(err, "request failed", logging.NewFields().Component("httpapi").KeysAndValues()...)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
