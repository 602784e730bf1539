package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when config file exists with valid content", func() {
			BeforeEach(func() {
				validConfig := `
server:
  http_port: "8080"
  metrics_port: "9090"

database:
  dsn: "postgres://localhost/regtrack"
  max_open_conns: 20
  max_idle_conns: 10
  conn_max_lifetime: "15m"

jenkins:
  parent_job_url: "https://ci.example.com/job/MODULE-RUN-ESXI-IPV4-ALL"

ingestion:
  logs_base_dir: "/data/artifacts"
  module_worker_pool_size: 5
  cleanup_artifacts_after_import: true
  flaky_detection_job_window: 5

scheduler:
  auto_update_enabled: true
  polling_interval_hours: 4
  metadata_sync_enabled: true
  metadata_sync_interval_hours: 24

sse:
  drain_timeout_seconds: 2.0
  drain_poll_interval: 0.05

logging:
  level: "info"
  format: "json"
`
				Expect(os.WriteFile(configFile, []byte(validConfig), 0644)).To(Succeed())
			})

			It("should load configuration successfully", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())

				Expect(cfg.Server.HTTPPort).To(Equal("8080"))
				Expect(cfg.Server.MetricsPort).To(Equal("9090"))

				Expect(cfg.Database.DSN).To(Equal("postgres://localhost/regtrack"))
				Expect(cfg.Database.MaxOpenConns).To(Equal(20))
				Expect(cfg.Database.ConnMaxLifetime).To(Equal(15 * time.Minute))

				Expect(cfg.Jenkins.ParentJobURL).To(Equal("https://ci.example.com/job/MODULE-RUN-ESXI-IPV4-ALL"))

				Expect(cfg.Ingestion.ModuleWorkerPoolSize).To(Equal(5))
				Expect(cfg.Ingestion.CleanupAfterImport).To(BeTrue())

				Expect(cfg.Scheduler.PollingIntervalHours).To(Equal(4))

				Expect(cfg.SSE.DrainTimeoutSeconds).To(Equal(2.0))

				Expect(cfg.Logging.Level).To(Equal("info"))
				Expect(cfg.Logging.Format).To(Equal("json"))
			})
		})

		Context("when config file has minimal content", func() {
			BeforeEach(func() {
				minimalConfig := `
server:
  http_port: "3000"
`
				Expect(os.WriteFile(configFile, []byte(minimalConfig), 0644)).To(Succeed())
			})

			It("should load with defaults for missing values", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Server.HTTPPort).To(Equal("3000"))
				Expect(cfg.Server.MetricsPort).To(Equal("9090"))
				Expect(cfg.Ingestion.ModuleWorkerPoolSize).To(Equal(5))
				Expect(cfg.Scheduler.PollingIntervalHours).To(Equal(4))
				Expect(cfg.SSE.DrainTimeoutSeconds).To(Equal(2.0))
			})
		})

		Context("when config file does not exist", func() {
			It("should return an error", func() {
				_, err := Load("/nonexistent/config.yaml")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when config file has invalid YAML", func() {
			BeforeEach(func() {
				invalidConfig := `
server:
  http_port: "8080"
  invalid_yaml: [
`
				Expect(os.WriteFile(configFile, []byte(invalidConfig), 0644)).To(Succeed())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})

		Context("when worker pool size exceeds the backpressure bound", func() {
			BeforeEach(func() {
				cfg := `
ingestion:
  module_worker_pool_size: 12
`
				Expect(os.WriteFile(configFile, []byte(cfg), 0644)).To(Succeed())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})
	})

	Describe("validate", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = &Config{
				Server:  ServerConfig{HTTPPort: "8080", MetricsPort: "9090"},
				Logging: LoggingConfig{Level: "info", Format: "json"},
			}
		})

		It("should pass validation and apply defaults", func() {
			Expect(validate(cfg)).To(Succeed())
			Expect(cfg.Ingestion.ModuleWorkerPoolSize).To(Equal(5))
		})

		It("should reject an unsupported logging level", func() {
			cfg.Logging.Level = "verbose"
			err := validate(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported logging level"))
		})
	})
})
