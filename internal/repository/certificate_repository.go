package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edukita/gradcert-api/internal/models"
)

// CertificateRepository persists issued certificate records.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository creates a new certificate repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

const certificateColumns = `id, organization_id, school_id, template_id, batch_id, student_id, student_name, certificate_no, verification_hash, qr_payload, pdf_path, issued_by, issued_at`

// Insert writes one issued certificate inside tx. The unique constraints on
// (organization_id, certificate_no) and verification_hash are the final line
// of defense against duplicate numbering.
func (r *CertificateRepository) Insert(ctx context.Context, tx *sqlx.Tx, cert *models.IssuedCertificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.IssuedAt.IsZero() {
		cert.IssuedAt = time.Now().UTC()
	}
	const query = `INSERT INTO issued_certificates (id, organization_id, school_id, template_id, batch_id, student_id, student_name, certificate_no, verification_hash, qr_payload, pdf_path, issued_by, issued_at)
        VALUES (:id, :organization_id, :school_id, :template_id, :batch_id, :student_id, :student_name, :certificate_no, :verification_hash, :qr_payload, :pdf_path, :issued_by, :issued_at)`
	if _, err := tx.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

// UpdatePDFPath backfills the rendered file location. Runs outside the
// issuance transaction once rendering completes.
func (r *CertificateRepository) UpdatePDFPath(ctx context.Context, certificateID, pdfPath string) error {
	const query = `UPDATE issued_certificates SET pdf_path = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, certificateID, pdfPath); err != nil {
		return fmt.Errorf("update certificate pdf path: %w", err)
	}
	return nil
}

// FindByID loads a certificate within the tenant scope.
func (r *CertificateRepository) FindByID(ctx context.Context, organizationID, id string) (*models.IssuedCertificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM issued_certificates WHERE id = $1 AND organization_id = $2`, certificateColumns)
	var cert models.IssuedCertificate
	if err := r.db.GetContext(ctx, &cert, query, id, organizationID); err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindByIDUnscoped loads a certificate without tenant scoping. Only the
// render pipeline uses this; it runs without an acting user.
func (r *CertificateRepository) FindByIDUnscoped(ctx context.Context, id string) (*models.IssuedCertificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM issued_certificates WHERE id = $1`, certificateColumns)
	var cert models.IssuedCertificate
	if err := r.db.GetContext(ctx, &cert, query, id); err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindByHash resolves a certificate by verification hash. Unscoped: the
// public verification endpoint has no tenant context.
func (r *CertificateRepository) FindByHash(ctx context.Context, hash string) (*models.IssuedCertificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM issued_certificates WHERE verification_hash = $1`, certificateColumns)
	var cert models.IssuedCertificate
	if err := r.db.GetContext(ctx, &cert, query, hash); err != nil {
		return nil, err
	}
	return &cert, nil
}

// ListByBatch returns all certificates issued for a batch.
func (r *CertificateRepository) ListByBatch(ctx context.Context, organizationID, batchID string) ([]models.IssuedCertificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM issued_certificates WHERE organization_id = $1 AND batch_id = $2 ORDER BY certificate_no`, certificateColumns)
	var certs []models.IssuedCertificate
	if err := r.db.SelectContext(ctx, &certs, query, organizationID, batchID); err != nil {
		return nil, fmt.Errorf("list batch certificates: %w", err)
	}
	return certs, nil
}
