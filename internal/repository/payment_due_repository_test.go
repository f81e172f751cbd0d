package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftlearn/academy-billing-api/internal/models"
)

func newDueRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func dueColumns() []string {
	return []string{
		"id", "enrollment_id", "plan_id", "installment_number", "total_installments",
		"due_amount", "due_date", "status", "paid_amount", "paid_date",
		"payment_reference", "created_at", "updated_at",
	}
}

func TestPaymentDueRepositoryCreateBatch(t *testing.T) {
	db, mock, cleanup := newDueRepoMock(t)
	defer cleanup()
	repo := NewPaymentDueRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_dues").
		WithArgs(sqlmock.AnyArg(), "enr-1", "bronze", 1, 4, int64(15000000), sqlmock.AnyArg(), string(models.PaymentDueStatusPending), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payment_dues").
		WithArgs(sqlmock.AnyArg(), "enr-1", "bronze", 2, 4, int64(15000000), sqlmock.AnyArg(), string(models.PaymentDueStatusPending), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	dues := []models.PaymentDue{
		{EnrollmentID: "enr-1", PlanID: "bronze", InstallmentNumber: 1, TotalInstallments: 4, DueAmount: 15000000, DueDate: time.Now().UTC()},
		{EnrollmentID: "enr-1", PlanID: "bronze", InstallmentNumber: 2, TotalInstallments: 4, DueAmount: 15000000, DueDate: time.Now().UTC().AddDate(0, 3, 0)},
	}
	require.NoError(t, repo.CreateBatch(context.Background(), dues))
	assert.NotEmpty(t, dues[0].ID)
	assert.Equal(t, models.PaymentDueStatusPending, dues[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentDueRepositoryCreateBatchRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newDueRepoMock(t)
	defer cleanup()
	repo := NewPaymentDueRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_dues").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payment_dues").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	dues := []models.PaymentDue{
		{EnrollmentID: "enr-1", PlanID: "bronze", InstallmentNumber: 1, TotalInstallments: 2, DueAmount: 30000000, DueDate: time.Now().UTC()},
		{EnrollmentID: "enr-1", PlanID: "bronze", InstallmentNumber: 2, TotalInstallments: 2, DueAmount: 30000000, DueDate: time.Now().UTC()},
	}
	require.Error(t, repo.CreateBatch(context.Background(), dues))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentDueRepositoryMarkPaid(t *testing.T) {
	db, mock, cleanup := newDueRepoMock(t)
	defer cleanup()
	repo := NewPaymentDueRepository(db)

	paidAt := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(dueColumns()).
		AddRow("due-1", "enr-1", "bronze", 1, 4, int64(15000000), paidAt, string(models.PaymentDueStatusPaid),
			int64(15000000), paidAt, "ref-1", time.Now(), time.Now())
	mock.ExpectQuery(`UPDATE payment_dues SET status = \$2, paid_amount = \$3, paid_date = \$4, payment_reference = \$5`).
		WithArgs("due-1", string(models.PaymentDueStatusPaid), int64(15000000), paidAt, "ref-1", sqlmock.AnyArg(), string(models.PaymentDueStatusPending)).
		WillReturnRows(rows)

	due, err := repo.MarkPaid(context.Background(), "due-1", 15000000, "ref-1", paidAt)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentDueStatusPaid, due.Status)
	require.NotNil(t, due.PaidAmount)
	assert.Equal(t, int64(15000000), *due.PaidAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentDueRepositoryMarkPaidAlreadySettled(t *testing.T) {
	db, mock, cleanup := newDueRepoMock(t)
	defer cleanup()
	repo := NewPaymentDueRepository(db)

	mock.ExpectQuery(`UPDATE payment_dues SET status = \$2`).
		WillReturnRows(sqlmock.NewRows(dueColumns()))

	_, err := repo.MarkPaid(context.Background(), "due-1", 15000000, "ref-1", time.Now().UTC())
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentDueRepositoryListPendingInWindow(t *testing.T) {
	db, mock, cleanup := newDueRepoMock(t)
	defer cleanup()
	repo := NewPaymentDueRepository(db)

	cutoff := time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(dueColumns()).
		AddRow("due-1", "enr-1", "bronze", 2, 4, int64(15000000), cutoff.AddDate(0, 0, -5),
			string(models.PaymentDueStatusPending), nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(`SELECT .+ FROM payment_dues WHERE status = \$1 AND due_date <= \$2`).
		WithArgs(string(models.PaymentDueStatusPending), cutoff).
		WillReturnRows(rows)

	dues, err := repo.ListPendingInWindow(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, dues, 1)
	assert.Equal(t, 2, dues[0].InstallmentNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentDueRepositoryCancelOutstanding(t *testing.T) {
	db, mock, cleanup := newDueRepoMock(t)
	defer cleanup()
	repo := NewPaymentDueRepository(db)

	mock.ExpectExec(`UPDATE payment_dues SET status = \$3, updated_at = \$4`).
		WithArgs("enr-1", "bronze", string(models.PaymentDueStatusCancelled), sqlmock.AnyArg(), string(models.PaymentDueStatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.CancelOutstanding(context.Background(), "enr-1", "bronze")
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
