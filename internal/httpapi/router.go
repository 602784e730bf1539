package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-logr/logr"
	"github.com/go-playground/validator/v10"

	"github.com/jordigilh/regtrack/internal/analytics"
	"github.com/jordigilh/regtrack/internal/ciclient"
	"github.com/jordigilh/regtrack/internal/ingestion"
	"github.com/jordigilh/regtrack/internal/jobtracker"
	"github.com/jordigilh/regtrack/internal/scheduler"
	"github.com/jordigilh/regtrack/internal/sse"
	"github.com/jordigilh/regtrack/internal/store"
)

// API holds every dependency the HTTP Surface's handlers need. It is
// deliberately a thin translation layer: all domain logic lives in the
// Analytics Engine, the Ingestion Pipeline, the Job Tracker and the
// SSE Streamer (spec §4.10).
type API struct {
	store     *store.Store
	analytics *analytics.Engine
	ci        *ciclient.Client
	pipeline  *ingestion.Pipeline
	tracker   jobtracker.Tracker
	streamer  *sse.Streamer
	scheduler *scheduler.Scheduler
	validate  *validator.Validate
	log       logr.Logger

	adminPINHash string
}

// New wires an API and returns the chi.Mux ready to be handed to
// http.Server.
func New(
	s *store.Store,
	eng *analytics.Engine,
	ci *ciclient.Client,
	pipeline *ingestion.Pipeline,
	tracker jobtracker.Tracker,
	streamer *sse.Streamer,
	sched *scheduler.Scheduler,
	adminPINHash string,
	log logr.Logger,
) http.Handler {
	a := &API{
		store:        s,
		analytics:    eng,
		ci:           ci,
		pipeline:     pipeline,
		tracker:      tracker,
		streamer:     streamer,
		scheduler:    sched,
		validate:     validator.New(),
		log:          log,
		adminPINHash: adminPINHash,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", adminPINHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", a.readyz)

	r.Get("/releases", a.listReleases)
	r.Get("/modules/{release}", a.listModules)
	r.Get("/versions/{release}", a.listVersions)
	r.Get("/parent-jobs/{release}/{module}", a.listParentJobs)

	r.Get("/summary/{release}/{module}", a.moduleSummary)
	r.Get("/priority-stats/{release}/{module}/{job}", a.priorityStats)
	r.Get("/trends/{release}/{module}", a.trends)
	r.Get("/jobs/{release}/{module}/{job}/tests", a.jobTests)
	r.Get("/jobs/{release}/{module}/{job}/failures/clustered", a.clusteredFailures)

	r.Get("/bug-breakdown", a.bugBreakdown)
	r.Get("/bug-details", a.bugDetails)
	r.Get("/bug-affected-tests", a.bugAffectedTests)

	r.Get("/search/testcases", a.searchTestcases)
	r.Get("/search/testcases/{name}", a.searchTestcaseByName)
	r.Get("/search/autocomplete", a.searchAutocomplete)
	r.Get("/search/statistics", a.searchStatistics)
	r.Get("/search/filtered-testcases", a.searchFilteredTestcases)

	r.Post("/jenkins/discover-jobs", a.requireAdminPIN(a.discoverJobs))
	r.Post("/jenkins/download-selected", a.requireAdminPIN(a.downloadSelected))
	r.Get("/jenkins/download-selected/{jobId}", a.downloadSelectedStream)

	r.Get("/settings", a.requireAdminPIN(a.listSettings))
	r.Put("/settings/{key}", a.requireAdminPIN(a.putSetting))

	return r
}
