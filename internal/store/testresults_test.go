package store_test

import (
	"context"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/regtrack/internal/store"
)

var _ = Describe("TestResults", func() {
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

	Describe("InsertTestResults", func() {
		It("is a no-op for an empty slice", func() {
			Expect(s.InsertTestResults(ctx, db, nil)).To(Succeed())
		})

		It("issues a single named insert for all rows", func() {
			mock.ExpectExec(`INSERT INTO test_results`).
				WillReturnResult(sqlmock.NewResult(0, 2))

			err := s.InsertTestResults(ctx, db, []store.InsertTestResultInput{
				{JobID: 1, FilePath: "a_test.go", ClassName: "TestA", TestName: "it_works", Status: store.StatusPassed},
				{JobID: 1, FilePath: "b_test.go", ClassName: "TestB", TestName: "it_fails", Status: store.StatusFailed},
			})
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("DedupTestResults", func() {
		It("deletes every row except the highest id per key, per job", func() {
			mock.ExpectExec(`DELETE FROM test_results tr`).
				WithArgs(int64(7)).
				WillReturnResult(sqlmock.NewResult(0, 3))

			n, err := s.DedupTestResults(ctx, db, 7)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(3)))
		})
	})

	Describe("BackfillPriorityFromMetadata", func() {
		It("updates rows joined on normalized test name", func() {
			mock.ExpectExec(`UPDATE test_results tr`).
				WillReturnResult(sqlmock.NewResult(0, 5))

			n, err := s.BackfillPriorityFromMetadata(ctx, db)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(5)))
		})
	})

	Describe("CountFlakyPassesByJob", func() {
		It("is a no-op when there are no jobs or no flaky keys", func() {
			counts, err := s.CountFlakyPassesByJob(ctx, db, nil, [][3]string{{"a", "b", "c"}})
			Expect(err).ToNot(HaveOccurred())
			Expect(counts).To(BeEmpty())
		})

		It("issues a single batched query across job ids and flaky keys", func() {
			rows := sqlmock.NewRows([]string{"job_id", "n"}).
				AddRow(int64(1), 2).
				AddRow(int64(2), 1)
			mock.ExpectQuery(`SELECT tr\.job_id AS job_id, COUNT\(\*\) AS n`).
				WithArgs(int64(1), int64(2), "a_test.py", "A", "it_works", "b_test.py", "B", "it_fails").
				WillReturnRows(rows)

			counts, err := s.CountFlakyPassesByJob(ctx, db, []int64{1, 2}, [][3]string{
				{"a_test.py", "A", "it_works"},
				{"b_test.py", "B", "it_fails"},
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(counts).To(HaveKeyWithValue(int64(1), 2))
			Expect(counts).To(HaveKeyWithValue(int64(2), 1))
		})
	})
})
