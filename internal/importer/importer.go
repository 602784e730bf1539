// Package importer implements the Import Service (spec §4.3): turning
// a parsed job directory into persisted Release/Module/Job/TestResult
// rows, idempotently.
package importer

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/jordigilh/regtrack/internal/parser"
	"github.com/jordigilh/regtrack/internal/platform/apperrors"
	"github.com/jordigilh/regtrack/internal/platform/logging"
	"github.com/jordigilh/regtrack/internal/store"
	"github.com/jordigilh/regtrack/pkg/metrics"
)

// Service is the Import Service.
type Service struct {
	store *store.Store
	log   logr.Logger
}

// New builds an Import Service backed by s.
func New(s *store.Store, log logr.Logger) *Service {
	return &Service{store: s, log: log}
}

// ImportJobInput is everything importJob needs about a single job's
// execution, beyond the parsed TestResults themselves.
type ImportJobInput struct {
	ReleaseName   string
	ModuleName    string
	JobID         string
	JenkinsURL    string
	Version       *string
	ParentJobID   *string
	ExecutedAt    *time.Time
	SkipIfExists  bool
	Results       []parser.TestResult
}

// ImportResult reports the outcome of an importJob call.
type ImportResult struct {
	Job          *store.Job
	Count        int
	SkippedExist bool
}

// ImportJob runs the full import algorithm inside a single
// transaction: upsert release, upsert module, upsert job (or
// short-circuit on SkipIfExists), compute statistics folding ERROR
// into FAILED, insert test results with testcase_module derivation
// and metadata-backed priority backfill (spec §4.3).
func (svc *Service) ImportJob(ctx context.Context, db store.DBTX, in ImportJobInput) (*ImportResult, error) {
	fields := logging.NewFields().Component("importer").Operation("import_job").
		Release(in.ReleaseName).Module(in.ModuleName).JobID(in.JobID)

	release, err := svc.store.GetOrCreateRelease(ctx, db, in.ReleaseName)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeImport, "get or create release %q", in.ReleaseName)
	}

	module, err := svc.store.GetOrCreateModule(ctx, db, release.ID, in.ModuleName)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeImport, "get or create module %q", in.ModuleName)
	}

	if in.SkipIfExists {
		existing, err := svc.store.GetJob(ctx, db, module.ID, in.JobID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			svc.log.V(1).Info("job already imported, skipping", fields.KeysAndValues()...)
			return &ImportResult{Job: existing, SkippedExist: true}, nil
		}
	}

	total, passed, failed, skipped := tally(in.Results)

	job, err := svc.store.UpsertJob(ctx, db, store.UpsertJobInput{
		ModuleID:    module.ID,
		JobID:       in.JobID,
		ParentJobID: in.ParentJobID,
		Total:       total,
		Passed:      passed,
		Failed:      failed,
		Skipped:     skipped,
		JenkinsURL:  in.JenkinsURL,
		Version:     in.Version,
		ExecutedAt:  in.ExecutedAt,
	})
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeImport, "upsert job %q", in.JobID)
	}

	rows := make([]store.InsertTestResultInput, len(in.Results))
	for i, r := range in.Results {
		rows[i] = store.InsertTestResultInput{
			JobID:            job.ID,
			FilePath:         r.FilePath,
			ClassName:        r.ClassName,
			TestName:         r.TestName,
			Status:           foldStatus(r.Status),
			JenkinsTopology:  nonEmptyPtr(r.JenkinsTopology),
			OrderIndex:       r.OrderIndex,
			WasRerun:         r.WasRerun,
			RerunStillFailed: r.RerunStillFailed,
			FailureMessage:   r.FailureMessage,
			TestcaseModule:   store.DeriveTestcaseModule(r.FilePath),
		}
		if r.SetupIP != "" {
			rows[i].SetupIP = nonEmptyPtr(r.SetupIP)
		}
	}

	if err := svc.store.InsertTestResults(ctx, db, rows); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeImport, "insert test results for job %q", in.JobID)
	}
	if _, err := svc.store.DedupTestResults(ctx, db, job.ID); err != nil {
		return nil, err
	}
	if _, err := svc.store.BackfillPriorityFromMetadata(ctx, db); err != nil {
		return nil, err
	}

	metrics.RecordTestResultsImported("passed", passed)
	metrics.RecordTestResultsImported("failed", failed)
	metrics.RecordTestResultsImported("skipped", skipped)
	metrics.RecordModuleImported(in.ReleaseName)
	svc.log.Info("imported job", fields.Count("total", total).Count("passed", passed).
		Count("failed", failed).Count("skipped", skipped).KeysAndValues()...)

	return &ImportResult{Job: job, Count: len(rows)}, nil
}

// tally computes total/passed/failed/skipped per spec §4.3 step 4,
// folding ERROR into FAILED for the failed count.
func tally(results []parser.TestResult) (total, passed, failed, skipped int) {
	total = len(results)
	for _, r := range results {
		switch r.Status {
		case parser.StatusPassed:
			passed++
		case parser.StatusFailed, parser.StatusError:
			failed++
		case parser.StatusSkipped:
			skipped++
		}
	}
	return
}

// foldStatus implements I2: ERROR is folded into FAILED at the import
// boundary; the parser-level ERROR status never reaches the store.
func foldStatus(s parser.Status) store.TestStatus {
	switch s {
	case parser.StatusPassed:
		return store.StatusPassed
	case parser.StatusSkipped:
		return store.StatusSkipped
	default:
		return store.StatusFailed
	}
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
