package httpapi

import (
	"net/http"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

// readyz checks that the store's connection pool can reach Postgres,
// distinguishing "process is up" (/healthz) from "process can serve
// reads/writes" (spec §4.2).
func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DB().PingContext(r.Context()); err != nil {
		writeError(w, a.log, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "database not ready"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
