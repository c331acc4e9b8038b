package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/edukita/gradcert-api/internal/models"
)

func certFixture() *models.IssuedCertificate {
	return &models.IssuedCertificate{
		OrganizationID:   "org-1",
		SchoolID:         "school-1",
		TemplateID:       "tpl-1",
		BatchID:          "batch-1",
		StudentID:        "stu-a",
		StudentName:      "Alice",
		CertificateNo:    "PFX-DIPLOMA-2026-0001",
		VerificationHash: "hash-1",
		QRPayload:        "https://example.test/verify/hash-1",
		IssuedBy:         "user-1",
	}
}

func certificateRows(id string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "organization_id", "school_id", "template_id", "batch_id", "student_id",
		"student_name", "certificate_no", "verification_hash", "qr_payload", "pdf_path",
		"issued_by", "issued_at",
	}).AddRow(id, "org-1", "school-1", "tpl-1", "batch-1", "stu-a",
		"Alice", "PFX-DIPLOMA-2026-0001", "hash-1", "https://example.test/verify/hash-1", nil,
		"user-1", time.Now())
}

func TestCertificateRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO issued_certificates")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	cert := certFixture()
	require.NoError(t, repo.Insert(context.Background(), tx, cert))
	require.NotEmpty(t, cert.ID, "id assigned on insert")
	require.False(t, cert.IssuedAt.IsZero())
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryFindByHash(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM issued_certificates WHERE verification_hash = $1")).
		WithArgs("hash-1").
		WillReturnRows(certificateRows("cert-1"))

	cert, err := repo.FindByHash(context.Background(), "hash-1")
	require.NoError(t, err)
	require.Equal(t, "PFX-DIPLOMA-2026-0001", cert.CertificateNo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryFindByHashUnknown(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM issued_certificates WHERE verification_hash = $1")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByHash(context.Background(), "nope")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryUpdatePDFPath(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE issued_certificates SET pdf_path = $2 WHERE id = $1")).
		WithArgs("cert-1", "batch-1/cert-1.pdf").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdatePDFPath(context.Background(), "cert-1", "batch-1/cert-1.pdf"))
	require.NoError(t, mock.ExpectationsWereMet())
}
