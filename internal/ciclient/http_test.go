package ciclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/jordigilh/regtrack/internal/ciclient"
	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

func TestClient_GetJobBuilds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"builds":[{"number":10},{"number":11},{"number":9}]}`))
	}))
	defer server.Close()

	c := ciclient.New(ciclient.Config{MaxRetries: 0}, logr.Discard())
	builds, err := c.GetJobBuilds(context.Background(), server.URL, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int64{11, 10, 9}
	if len(builds) != len(want) {
		t.Fatalf("got %v, want %v", builds, want)
	}
	for i := range want {
		if builds[i] != want[i] {
			t.Fatalf("got %v, want %v", builds, want)
		}
	}
}

func TestClient_GetJobInfo_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := ciclient.New(ciclient.Config{MaxRetries: 0}, logr.Discard())
	_, err := c.GetJobInfo(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected an error")
	}
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Type != apperrors.ErrorTypeNotFound {
		t.Fatalf("expected NotFound apperror, got %v", err)
	}
}

func TestClient_GetJobInfo_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := ciclient.New(ciclient.Config{MaxRetries: 2}, logr.Discard())
	start := time.Now()
	_, err := c.GetJobInfo(context.Background(), server.URL)
	if time.Since(start) > time.Second {
		t.Fatal("401 should be fatal for the call and never retried")
	}
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Type != apperrors.ErrorTypeAuth {
		t.Fatalf("expected Auth apperror, got %v", err)
	}
}

func TestClient_DownloadBuildMap_MissingReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := ciclient.New(ciclient.Config{MaxRetries: 0}, logr.Discard())
	m, err := c.DownloadBuildMap(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil map, got %v", m)
	}
}
