// Command server runs the regression-test observability service: the
// Ingestion Pipeline's scheduler, the Analytics Engine, the Job
// Tracker + SSE Streamer, and the HTTP Surface, all behind one
// process (spec §2 overview).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"

	"github.com/jordigilh/regtrack/internal/analytics"
	"github.com/jordigilh/regtrack/internal/ciclient"
	"github.com/jordigilh/regtrack/internal/config"
	"github.com/jordigilh/regtrack/internal/httpapi"
	"github.com/jordigilh/regtrack/internal/importer"
	"github.com/jordigilh/regtrack/internal/ingestion"
	"github.com/jordigilh/regtrack/internal/jobtracker"
	"github.com/jordigilh/regtrack/internal/notify"
	"github.com/jordigilh/regtrack/internal/platform/logging"
	"github.com/jordigilh/regtrack/internal/scheduler"
	"github.com/jordigilh/regtrack/internal/sse"
	"github.com/jordigilh/regtrack/internal/store"
	"github.com/jordigilh/regtrack/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	dbCfg := store.DefaultConfig()
	dbCfg.LoadFromEnv()
	if cfg.Database.MaxOpenConns > 0 {
		dbCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	}
	if cfg.Database.MaxIdleConns > 0 {
		dbCfg.MaxIdleConns = cfg.Database.MaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		dbCfg.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	}

	db, err := store.Open(dbCfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	s := store.New(db)
	if err := s.MigrateLegacyPollingSetting(context.Background(), db); err != nil {
		log.Error(err, "migrate legacy polling setting failed")
	}

	ci := ciclient.New(ciclient.Config{
		Username:   os.Getenv("JENKINS_USER"),
		Password:   os.Getenv("JENKINS_API_TOKEN"),
		MaxRetries: ciclient.DefaultConfig().MaxRetries,
		BaseDelay:  ciclient.DefaultConfig().BaseDelay,
	}, log)

	imp := importer.New(s, log)
	pipeline := ingestion.New(ci, s, imp, ingestion.Config{
		ParentJobURL:       cfg.Jenkins.ParentJobURL,
		LogsBaseDir:        cfg.Ingestion.LogsBaseDir,
		ModuleWorkerPool:   cfg.Ingestion.ModuleWorkerPoolSize,
		CleanupAfterImport: cfg.Ingestion.CleanupAfterImport,
	}, log)
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		if channel := os.Getenv("SLACK_ALERT_CHANNEL"); channel != "" {
			pipeline.SetNotifier(notify.NewSlackSink(token, channel))
		}
	}

	var bugUpdater *ingestion.BugUpdater
	if cfg.Jenkins.BugTrackerURL != "" {
		bugSource := ingestion.NewHTTPBugSource(cfg.Jenkins.BugTrackerURL, os.Getenv("JENKINS_USER"), os.Getenv("JENKINS_API_TOKEN"))
		bugUpdater = ingestion.NewBugUpdater(bugSource, s, log)
	}

	eng := analytics.New(s, log)

	var tracker jobtracker.Tracker = jobtracker.NewMemory()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisTracker := jobtracker.NewRedis(jobtracker.RedisConfig{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
		if err := redisTracker.Ping(context.Background()); err != nil {
			log.Error(err, "redis job tracker unreachable, falling back to the in-process tracker")
		} else {
			tracker = redisTracker
		}
	}

	streamer := sse.New(tracker, sse.Config{
		DrainTimeout:      time.Duration(cfg.SSE.DrainTimeoutSeconds * float64(time.Second)),
		DrainPollInterval: time.Duration(cfg.SSE.DrainPollInterval * float64(time.Second)),
	}, log)

	sched := scheduler.New(
		func(ctx context.Context) {
			if err := pipeline.Poll(ctx); err != nil {
				log.Error(err, "scheduled poll failed")
			}
		},
		func(ctx context.Context) {
			runMetadataSync(ctx, s, bugUpdater, log, cfg.Scheduler.MetadataSyncEnabled)
		},
		log,
	)
	sched.Start(cfg.Scheduler.AutoUpdateEnabled, cfg.Scheduler.PollingIntervalHours)

	watcher, err := config.WatchForChanges(configPath, log, func(newCfg *config.Config) {
		sched.UpdatePollingSchedule(newCfg.Scheduler.AutoUpdateEnabled, newCfg.Scheduler.PollingIntervalHours)
	})
	if err != nil {
		log.Error(err, "config file watcher failed to start, dynamic reconfiguration from config.yaml edits is disabled")
	} else {
		defer watcher.Stop()
	}

	metricsServer := metrics.NewServer(cfg.Server.MetricsPort, log)
	metricsServer.StartAsync()

	handler := httpapi.New(s, eng, ci, pipeline, tracker, streamer, sched, cfg.Admin.PINHash, log)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: handler,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "http server exited unexpectedly")
		}
	}()
	log.Info("regtrack server started", "http_port", cfg.Server.HTTPPort, "metrics_port", cfg.Server.MetricsPort)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sched.Stop(shutdownCtx)
	_ = metricsServer.Stop(shutdownCtx)
	return httpServer.Shutdown(shutdownCtx)
}

// runMetadataSync records a MetadataSyncLog entry for the daily
// bug_updater tick. When no bug tracker URL is configured, updater is
// nil and the tick is recorded as "skipped" so the scheduled
// contract's audit trail stays observable without fabricating a
// connector.
func runMetadataSync(ctx context.Context, s *store.Store, updater *ingestion.BugUpdater, log logr.Logger, enabled bool) {
	if !enabled {
		return
	}
	id, err := s.StartMetadataSyncLog(ctx, s.DB(), "bug_metadata")
	if err != nil {
		log.Error(err, "start metadata sync log failed")
		return
	}

	if updater == nil {
		if err := s.FinishMetadataSyncLog(ctx, s.DB(), id, "skipped", 0, 0, nil); err != nil {
			log.Error(err, "finish metadata sync log failed")
		}
		return
	}

	stats, err := updater.Run(ctx)
	if err != nil {
		msg := err.Error()
		if ferr := s.FinishMetadataSyncLog(ctx, s.DB(), id, "failed", 0, 0, &msg); ferr != nil {
			log.Error(ferr, "finish metadata sync log failed")
		}
		log.Error(err, "bug metadata sync failed")
		return
	}
	if err := s.FinishMetadataSyncLog(ctx, s.DB(), id, "success", stats.BugsUpdated, stats.MappingsCreated, nil); err != nil {
		log.Error(err, "finish metadata sync log failed")
	}
}
