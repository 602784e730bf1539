package store_test

import (
	"context"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/regtrack/internal/store"
)

var _ = Describe("Jobs", func() {
	var (
		ctx  context.Context
		db   *sqlx.DB
		mock sqlmock.Sqlmock
		s    *store.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockDB, mockSQL, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())
		db = sqlx.NewDb(mockDB, "sqlmock")
		mock = mockSQL
		s = store.New(db)
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	Describe("GetJob", func() {
		It("returns nil, nil when no row matches", func() {
			mock.ExpectQuery(`SELECT \* FROM jobs WHERE module_id = \$1 AND job_id = \$2`).
				WithArgs(int64(1), "42").
				WillReturnRows(sqlmock.NewRows(nil))

			job, err := s.GetJob(ctx, db, 1, "42")
			Expect(err).ToNot(HaveOccurred())
			Expect(job).To(BeNil())
		})

		It("returns the row when found", func() {
			rows := sqlmock.NewRows([]string{"id", "module_id", "job_id", "total", "passed", "failed", "skipped", "pass_rate"}).
				AddRow(int64(9), int64(1), "42", 10, 8, 2, 0, 80.0)
			mock.ExpectQuery(`SELECT \* FROM jobs WHERE module_id = \$1 AND job_id = \$2`).
				WithArgs(int64(1), "42").
				WillReturnRows(rows)

			job, err := s.GetJob(ctx, db, 1, "42")
			Expect(err).ToNot(HaveOccurred())
			Expect(job).ToNot(BeNil())
			Expect(job.ID).To(Equal(int64(9)))
		})
	})

	Describe("UpsertJob", func() {
		It("upserts and returns the row", func() {
			now := time.Now()
			rows := sqlmock.NewRows([]string{"id", "module_id", "job_id", "total", "passed", "failed", "skipped", "pass_rate"}).
				AddRow(int64(1), int64(5), "100", 20, 19, 1, 0, 95.0)
			mock.ExpectQuery(`INSERT INTO jobs`).
				WithArgs(int64(5), "100", nil, 20, 19, 1, 0, 95.0, "https://ci.example.com", nil, nil, nil).
				WillReturnRows(rows)

			job, err := s.UpsertJob(ctx, db, store.UpsertJobInput{
				ModuleID:   5,
				JobID:      "100",
				Total:      20,
				Passed:     19,
				Failed:     1,
				JenkinsURL: "https://ci.example.com",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(job.PassRate).To(Equal(95.0))
			_ = now
		})
	})

	Describe("ListParentJobIDs", func() {
		It("returns distinct parent ids in descending order", func() {
			rows := sqlmock.NewRows([]string{"pid"}).AddRow("103").AddRow("102")
			mock.ExpectQuery(`SELECT DISTINCT COALESCE\(j.parent_job_id, j.job_id\) AS pid`).
				WithArgs(int64(1), "auth", 2).
				WillReturnRows(rows)

			ids, err := s.ListParentJobIDs(ctx, db, 1, "auth", 2)
			Expect(err).ToNot(HaveOccurred())
			Expect(ids).To(Equal([]string{"103", "102"}))
		})
	})
})
