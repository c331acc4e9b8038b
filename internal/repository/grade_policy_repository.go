package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// GradePolicyRepository consults the organization grading scale. A missing
// scale is not an error: eligibility then falls back to the per-subject
// passing marks alone.
type GradePolicyRepository struct {
	db *sqlx.DB
}

// NewGradePolicyRepository creates a new grade policy repository.
func NewGradePolicyRepository(db *sqlx.DB) *GradePolicyRepository {
	return &GradePolicyRepository{db: db}
}

// IsPass resolves the overall percentage against the organization's grade
// bands. Returns nil when no band covers the percentage, meaning the policy
// has no opinion.
func (r *GradePolicyRepository) IsPass(ctx context.Context, organizationID string, percentage float64) (*bool, error) {
	const query = `SELECT is_passing FROM grade_bands
        WHERE organization_id = $1 AND $2 >= min_percentage AND $2 <= max_percentage
        ORDER BY min_percentage DESC
        LIMIT 1`
	var passing bool
	err := r.db.GetContext(ctx, &passing, query, organizationID, percentage)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve grade band: %w", err)
	}
	return &passing, nil
}
