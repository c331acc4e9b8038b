package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCounterRepositoryNextValue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCounterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO organization_counters")).
		WithArgs("org-1", "diploma:school-1:2026").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT last_value FROM organization_counters")).
		WithArgs("org-1", "diploma:school-1:2026").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(int64(7)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE organization_counters SET last_value = $3")).
		WithArgs("org-1", "diploma:school-1:2026", int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	next, err := repo.NextValue(context.Background(), tx, "org-1", "diploma:school-1:2026")
	require.NoError(t, err)
	require.Equal(t, int64(8), next)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCounterRepositoryNextValueFirstUse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCounterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO organization_counters")).
		WithArgs("org-1", "diploma:school-1:2026").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT last_value FROM organization_counters")).
		WithArgs("org-1", "diploma:school-1:2026").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(int64(0)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE organization_counters SET last_value = $3")).
		WithArgs("org-1", "diploma:school-1:2026", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	next, err := repo.NextValue(context.Background(), tx, "org-1", "diploma:school-1:2026")
	require.NoError(t, err)
	require.Equal(t, int64(1), next)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
