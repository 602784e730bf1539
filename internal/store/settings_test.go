package store_test

import (
	"context"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/regtrack/internal/store"
)

var _ = Describe("Settings", func() {
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

	Describe("MigrateLegacyPollingSetting", func() {
		It("does nothing when no legacy setting exists", func() {
			mock.ExpectQuery(`SELECT \* FROM app_settings WHERE key = \$1`).
				WithArgs(store.PollingIntervalMinutesKey).
				WillReturnRows(sqlmock.NewRows(nil))

			Expect(s.MigrateLegacyPollingSetting(ctx, db)).To(Succeed())
		})

		It("converts minutes to hours when the hours key is unset", func() {
			mock.ExpectQuery(`SELECT \* FROM app_settings WHERE key = \$1`).
				WithArgs(store.PollingIntervalMinutesKey).
				WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).AddRow(store.PollingIntervalMinutesKey, "90"))
			mock.ExpectQuery(`SELECT \* FROM app_settings WHERE key = \$1`).
				WithArgs(store.PollingIntervalHoursKey).
				WillReturnRows(sqlmock.NewRows(nil))
			mock.ExpectExec(`INSERT INTO app_settings`).
				WithArgs(store.PollingIntervalHoursKey, "1.5", nil).
				WillReturnResult(sqlmock.NewResult(0, 1))

			Expect(s.MigrateLegacyPollingSetting(ctx, db)).To(Succeed())
		})

		It("leaves the hours key untouched when already set", func() {
			mock.ExpectQuery(`SELECT \* FROM app_settings WHERE key = \$1`).
				WithArgs(store.PollingIntervalMinutesKey).
				WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).AddRow(store.PollingIntervalMinutesKey, "60"))
			mock.ExpectQuery(`SELECT \* FROM app_settings WHERE key = \$1`).
				WithArgs(store.PollingIntervalHoursKey).
				WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).AddRow(store.PollingIntervalHoursKey, "1"))

			Expect(s.MigrateLegacyPollingSetting(ctx, db)).To(Succeed())
		})
	})
})
