package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CounterRepository allocates monotonic sequence values from
// organization_counters rows.
type CounterRepository struct {
	db *sqlx.DB
}

// NewCounterRepository creates a new counter repository.
func NewCounterRepository(db *sqlx.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// NextValue increments and returns the sequence for (organizationID,
// counterKey) inside tx. The counter row is created on first use, then read
// under FOR UPDATE so concurrent allocators serialize on the row lock and the
// sequence stays gapless as long as the surrounding transaction commits.
func (r *CounterRepository) NextValue(ctx context.Context, tx *sqlx.Tx, organizationID, counterKey string) (int64, error) {
	const insertQuery = `INSERT INTO organization_counters (organization_id, counter_key, last_value, updated_at)
        VALUES ($1, $2, 0, NOW())
        ON CONFLICT (organization_id, counter_key) DO NOTHING`
	if _, err := tx.ExecContext(ctx, insertQuery, organizationID, counterKey); err != nil {
		return 0, fmt.Errorf("seed counter: %w", err)
	}

	var last int64
	const lockQuery = `SELECT last_value FROM organization_counters
        WHERE organization_id = $1 AND counter_key = $2 FOR UPDATE`
	if err := tx.GetContext(ctx, &last, lockQuery, organizationID, counterKey); err != nil {
		return 0, fmt.Errorf("lock counter: %w", err)
	}

	next := last + 1
	const updateQuery = `UPDATE organization_counters SET last_value = $3, updated_at = NOW()
        WHERE organization_id = $1 AND counter_key = $2`
	if _, err := tx.ExecContext(ctx, updateQuery, organizationID, counterKey, next); err != nil {
		return 0, fmt.Errorf("advance counter: %w", err)
	}
	return next, nil
}
