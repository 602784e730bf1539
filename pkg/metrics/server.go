package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes /metrics and /health on a dedicated listener, separate
// from the main API router, mirroring the teacher's standalone
// metrics-server idiom.
type Server struct {
	server *http.Server
	log    logr.Logger
}

// NewServer builds a metrics server bound to the given port.
func NewServer(port string, log logr.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: mux,
		},
		log: log.WithName("metrics-server"),
	}
}

// StartAsync starts the server in the background, logging a fatal-ish
// error if it exits for any reason other than a clean Stop.
func (s *Server) StartAsync() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error(err, "metrics server exited unexpectedly")
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
