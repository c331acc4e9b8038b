package service

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edukita/gradcert-api/internal/models"
	appErrors "github.com/edukita/gradcert-api/pkg/errors"
)

type auditAppender interface {
	Append(ctx context.Context, tx *sqlx.Tx, entry *models.CertificateAuditLog) error
	ListByEntity(ctx context.Context, organizationID, entityType, entityID string) ([]models.CertificateAuditLog, error)
}

// AuditService writes the append-only certificate trail. Entries go into the
// same transaction as the mutation they describe, so the trail can never
// disagree with committed state.
type AuditService struct {
	repo   auditAppender
	logger *zap.Logger
}

// NewAuditService constructs AuditService.
func NewAuditService(repo auditAppender, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Log appends one trail entry within tx. An empty actor id is recorded as the
// system actor rather than rejected.
func (s *AuditService) Log(ctx context.Context, tx *sqlx.Tx, actor models.Actor, entityType, entityID, action string, metadata interface{}) error {
	performer := actor.UserID
	if performer == "" {
		performer = models.SystemActor
	}

	var payload []byte
	if metadata != nil {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			s.logger.Warn("audit metadata not encodable", zap.String("action", action), zap.Error(err))
		} else {
			payload = encoded
		}
	}

	entry := &models.CertificateAuditLog{
		OrganizationID: actor.OrganizationID,
		SchoolID:       actor.SchoolID,
		EntityType:     entityType,
		EntityID:       entityID,
		Action:         action,
		Metadata:       payload,
		PerformedBy:    performer,
	}
	if err := s.repo.Append(ctx, tx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write audit log")
	}
	return nil
}

// Trail returns the recorded history for one entity.
func (s *AuditService) Trail(ctx context.Context, organizationID, entityType, entityID string) ([]models.CertificateAuditLog, error) {
	entries, err := s.repo.ListByEntity(ctx, organizationID, entityType, entityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	return entries, nil
}
