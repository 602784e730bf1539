package httpapi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

// adminPINHeader is the header carrying the plaintext operator PIN;
// never logged, never persisted (spec §6 "Exit codes / admin
// operations").
const adminPINHeader = "X-Admin-PIN"

// requireAdminPIN gates a handler behind the hashed-PIN check: the
// header's SHA-256 hex digest must match the configured hash, by
// constant-time comparison (spec §6).
func (a *API) requireAdminPIN(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.adminPINHash == "" {
			writeError(w, a.log, apperrors.New(apperrors.ErrorTypeAuth, "admin operations are disabled: no PIN configured"))
			return
		}

		pin := r.Header.Get(adminPINHeader)
		if pin == "" {
			writeError(w, a.log, apperrors.New(apperrors.ErrorTypeAuth, "missing X-Admin-PIN header"))
			return
		}

		sum := sha256.Sum256([]byte(pin))
		got := hex.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(got), []byte(a.adminPINHash)) != 1 {
			err := apperrors.New(apperrors.ErrorTypeAuth, "invalid admin PIN")
			err.StatusCode = http.StatusForbidden
			writeError(w, a.log, err)
			return
		}

		next(w, r)
	}
}
