package analytics_test

import (
	"context"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-logr/logr"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/regtrack/internal/analytics"
	"github.com/jordigilh/regtrack/internal/store"
)

var _ = Describe("CalculateTestTrends", func() {
	var (
		ctx  context.Context
		db   *sqlx.DB
		mock sqlmock.Sqlmock
		s    *store.Store
		eng  *analytics.Engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockDB, mockSQL, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())
		db = sqlx.NewDb(mockDB, "sqlmock")
		mock = mockSQL
		s = store.New(db)
		eng = analytics.New(s, logr.Discard())
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("groups test results into a test_key -> TestTrend map across the selected jobs", func() {
		jobRows := sqlmock.NewRows([]string{
			"id", "module_id", "job_id", "parent_job_id", "total", "passed", "failed", "skipped",
			"pass_rate", "jenkins_url", "version", "created_at", "executed_at", "downloaded_at",
		}).AddRow(1, 10, "101", nil, 2, 1, 1, 0, 50.0, "https://ci/1", nil, time.Now(), nil, nil).
			AddRow(2, 10, "102", nil, 2, 2, 0, 0, 100.0, "https://ci/2", nil, time.Now(), nil, nil)
		mock.ExpectQuery(`SELECT DISTINCT j\.\* FROM jobs j`).WillReturnRows(jobRows)

		trRows := sqlmock.NewRows([]string{
			"id", "job_id", "file_path", "class_name", "test_name", "status", "setup_ip",
			"jenkins_topology", "order_index", "was_rerun", "rerun_still_failed", "failure_message",
			"priority", "topology_metadata", "testcase_module", "created_at",
		}).AddRow(1, 1, "a_test.py", "A", "it_works", "FAILED", nil, nil, 0, false, false, nil, nil, nil, "mod_a", time.Now()).
			AddRow(2, 2, "a_test.py", "A", "it_works", "PASSED", nil, nil, 0, false, false, nil, nil, nil, "mod_a", time.Now())
		mock.ExpectQuery(`SELECT \* FROM test_results WHERE job_id IN`).WillReturnRows(trRows)

		mdRows := sqlmock.NewRows([]string{
			"id", "testcase_name", "test_case_id", "priority", "testrail_id", "component",
			"automation_status", "module", "test_state", "test_class_name", "test_path", "topology",
		})
		mock.ExpectQuery(`SELECT \* FROM testcase_metadata`).WillReturnRows(mdRows)

		trends, err := eng.CalculateTestTrends(ctx, db, 1, "mod_a", true, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(trends).To(HaveLen(1))
		Expect(trends[0].TestKey()).To(Equal("a_test.py::A::it_works"))
		Expect(trends[0].ResultsByJob).To(HaveKeyWithValue("101", store.StatusFailed))
		Expect(trends[0].ResultsByJob).To(HaveKeyWithValue("102", store.StatusPassed))

		c := analytics.Classify(trends[0])
		Expect(c.IsNewFailure).To(BeFalse())
		Expect(c.LatestStatus).To(Equal(store.StatusPassed))
	})
})
