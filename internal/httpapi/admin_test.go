package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-logr/logr"
)

func hashPIN(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

func TestRequireAdminPIN_RejectsMissingHeader(t *testing.T) {
	a := &API{adminPINHash: hashPIN("1234"), log: logr.Discard()}
	called := false
	h := a.requireAdminPIN(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/jenkins/discover-jobs", nil))

	if called {
		t.Fatal("handler should not run without a PIN header")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAdminPIN_RejectsWrongPIN(t *testing.T) {
	a := &API{adminPINHash: hashPIN("1234"), log: logr.Discard()}
	h := a.requireAdminPIN(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run with a wrong PIN")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jenkins/discover-jobs", nil)
	req.Header.Set(adminPINHeader, "0000")
	h(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequireAdminPIN_AcceptsCorrectPIN(t *testing.T) {
	a := &API{adminPINHash: hashPIN("1234"), log: logr.Discard()}
	called := false
	h := a.requireAdminPIN(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jenkins/discover-jobs", nil)
	req.Header.Set(adminPINHeader, "1234")
	h(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("called=%v code=%d", called, rec.Code)
	}
}

func TestRequireAdminPIN_DisabledWhenNoHashConfigured(t *testing.T) {
	a := &API{log: logr.Discard()}
	h := a.requireAdminPIN(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run when admin PIN is unconfigured")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jenkins/discover-jobs", nil)
	req.Header.Set(adminPINHeader, "anything")
	h(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
