package importer_test

import (
	"context"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-logr/logr"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/regtrack/internal/importer"
	"github.com/jordigilh/regtrack/internal/parser"
	"github.com/jordigilh/regtrack/internal/store"
)

var _ = Describe("Importer", func() {
	var (
		ctx  context.Context
		db   *sqlx.DB
		mock sqlmock.Sqlmock
		svc  *importer.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockDB, mockSQL, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())
		db = sqlx.NewDb(mockDB, "sqlmock")
		mock = mockSQL
		svc = importer.New(store.New(db), logr.Discard())
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	Describe("ImportJob", func() {
		It("upserts release/module/job and folds ERROR into FAILED", func() {
			releaseRows := sqlmock.NewRows([]string{"id", "name", "is_active", "last_processed_build"}).
				AddRow(int64(1), "2.1", true, int64(0))
			mock.ExpectQuery(`SELECT \* FROM releases WHERE name = \$1`).
				WithArgs("2.1").WillReturnRows(releaseRows)

			moduleRows := sqlmock.NewRows([]string{"id", "release_id", "name"}).
				AddRow(int64(5), int64(1), "auth")
			mock.ExpectQuery(`SELECT \* FROM modules WHERE release_id = \$1 AND name = \$2`).
				WithArgs(int64(1), "auth").WillReturnRows(moduleRows)

			jobRows := sqlmock.NewRows([]string{"id", "module_id", "job_id", "total", "passed", "failed", "skipped", "pass_rate"}).
				AddRow(int64(9), int64(5), "100", 2, 1, 1, 0, 50.0)
			mock.ExpectQuery(`INSERT INTO jobs`).WillReturnRows(jobRows)

			mock.ExpectExec(`INSERT INTO test_results`).WillReturnResult(sqlmock.NewResult(0, 2))
			mock.ExpectExec(`DELETE FROM test_results tr`).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(`UPDATE test_results tr`).WillReturnResult(sqlmock.NewResult(0, 0))

			result, err := svc.ImportJob(ctx, db, importer.ImportJobInput{
				ReleaseName: "2.1",
				ModuleName:  "auth",
				JobID:       "100",
				JenkinsURL:  "https://ci.example.com",
				Results: []parser.TestResult{
					{FilePath: "data_plane/tests/auth/a_test.go", ClassName: "TestA", TestName: "it_works", Status: parser.StatusPassed},
					{FilePath: "data_plane/tests/auth/b_test.go", ClassName: "TestB", TestName: "it_errors", Status: parser.StatusError},
				},
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Count).To(Equal(2))
			Expect(result.Job.Failed).To(Equal(1))
		})

		It("short-circuits when SkipIfExists and the job already exists", func() {
			releaseRows := sqlmock.NewRows([]string{"id", "name", "is_active", "last_processed_build"}).
				AddRow(int64(1), "2.1", true, int64(0))
			mock.ExpectQuery(`SELECT \* FROM releases WHERE name = \$1`).
				WithArgs("2.1").WillReturnRows(releaseRows)

			moduleRows := sqlmock.NewRows([]string{"id", "release_id", "name"}).
				AddRow(int64(5), int64(1), "auth")
			mock.ExpectQuery(`SELECT \* FROM modules WHERE release_id = \$1 AND name = \$2`).
				WithArgs(int64(1), "auth").WillReturnRows(moduleRows)

			existingJobRows := sqlmock.NewRows([]string{"id", "module_id", "job_id"}).
				AddRow(int64(9), int64(5), "100")
			mock.ExpectQuery(`SELECT \* FROM jobs WHERE module_id = \$1 AND job_id = \$2`).
				WithArgs(int64(5), "100").WillReturnRows(existingJobRows)

			result, err := svc.ImportJob(ctx, db, importer.ImportJobInput{
				ReleaseName:  "2.1",
				ModuleName:   "auth",
				JobID:        "100",
				SkipIfExists: true,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.SkippedExist).To(BeTrue())
		})
	})
})
