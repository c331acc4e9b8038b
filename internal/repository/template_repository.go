package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/edukita/gradcert-api/internal/models"
)

// TemplateRepository resolves certificate templates. Template management
// lives elsewhere; issuance only needs the active design.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// FindActive resolves the active template of the given type, preferring a
// school-specific design over an organization-wide one.
func (r *TemplateRepository) FindActive(ctx context.Context, organizationID, schoolID, certificateType string) (*models.CertificateTemplate, error) {
	const query = `SELECT id, organization_id, school_id, name, type, body_html, background_path, layout_config, page_size, orientation, is_active
        FROM certificate_templates
        WHERE organization_id = $1 AND type = $2 AND is_active = TRUE
          AND (school_id = $3 OR school_id IS NULL)
        ORDER BY school_id NULLS LAST
        LIMIT 1`
	var tmpl models.CertificateTemplate
	if err := r.db.GetContext(ctx, &tmpl, query, organizationID, certificateType, schoolID); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// FindByID loads a template within the organization scope.
func (r *TemplateRepository) FindByID(ctx context.Context, organizationID, id string) (*models.CertificateTemplate, error) {
	const query = `SELECT id, organization_id, school_id, name, type, body_html, background_path, layout_config, page_size, orientation, is_active
        FROM certificate_templates WHERE id = $1 AND organization_id = $2`
	var tmpl models.CertificateTemplate
	if err := r.db.GetContext(ctx, &tmpl, query, id, organizationID); err != nil {
		return nil, err
	}
	return &tmpl, nil
}
