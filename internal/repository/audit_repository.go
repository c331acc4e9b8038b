package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edukita/gradcert-api/internal/models"
)

// AuditRepository appends to the certificate audit trail. No update or delete
// methods exist on purpose.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one trail entry inside tx so the entry commits or rolls back
// together with the mutation it describes.
func (r *AuditRepository) Append(ctx context.Context, tx *sqlx.Tx, entry *models.CertificateAuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificate_audit_logs (id, organization_id, school_id, entity_type, entity_id, action, metadata, performed_by, performed_at)
        VALUES (:id, :organization_id, :school_id, :entity_type, :entity_id, :action, :metadata, :performed_by, :performed_at)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

// ListByEntity returns the trail for one entity, newest first.
func (r *AuditRepository) ListByEntity(ctx context.Context, organizationID, entityType, entityID string) ([]models.CertificateAuditLog, error) {
	const query = `SELECT id, organization_id, school_id, entity_type, entity_id, action, metadata, performed_by, performed_at
        FROM certificate_audit_logs
        WHERE organization_id = $1 AND entity_type = $2 AND entity_id = $3
        ORDER BY performed_at DESC`
	var entries []models.CertificateAuditLog
	if err := r.db.SelectContext(ctx, &entries, query, organizationID, entityType, entityID); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, nil
}
