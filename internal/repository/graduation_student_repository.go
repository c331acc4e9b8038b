package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edukita/gradcert-api/internal/models"
)

// GraduationStudentRepository persists batch eligibility snapshots.
type GraduationStudentRepository struct {
	db *sqlx.DB
}

// NewGraduationStudentRepository creates a new snapshot repository.
func NewGraduationStudentRepository(db *sqlx.DB) *GraduationStudentRepository {
	return &GraduationStudentRepository{db: db}
}

const studentColumns = `id, batch_id, student_id, student_name, final_result_status, position, eligibility_json, created_at`

// DeleteByBatch removes the entire snapshot for a batch. Always paired with a
// fresh insert inside the same transaction (replace, never merge).
func (r *GraduationStudentRepository) DeleteByBatch(ctx context.Context, tx *sqlx.Tx, batchID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM graduation_students WHERE batch_id = $1`, batchID); err != nil {
		return fmt.Errorf("delete batch students: %w", err)
	}
	return nil
}

// BulkInsert writes a fresh snapshot within tx.
func (r *GraduationStudentRepository) BulkInsert(ctx context.Context, tx *sqlx.Tx, students []models.GraduationStudent) error {
	const query = `INSERT INTO graduation_students (id, batch_id, student_id, student_name, final_result_status, position, eligibility_json, created_at)
        VALUES (:id, :batch_id, :student_id, :student_name, :final_result_status, :position, :eligibility_json, :created_at)`
	now := time.Now().UTC()
	for i := range students {
		if students[i].ID == "" {
			students[i].ID = uuid.NewString()
		}
		students[i].CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, students[i]); err != nil {
			return fmt.Errorf("insert graduation student: %w", err)
		}
	}
	return nil
}

// ListByBatch returns the current snapshot rows.
func (r *GraduationStudentRepository) ListByBatch(ctx context.Context, batchID string) ([]models.GraduationStudent, error) {
	query := fmt.Sprintf(`SELECT %s FROM graduation_students WHERE batch_id = $1 ORDER BY position NULLS LAST, student_name`, studentColumns)
	var students []models.GraduationStudent
	if err := r.db.SelectContext(ctx, &students, query, batchID); err != nil {
		return nil, fmt.Errorf("list graduation students: %w", err)
	}
	return students, nil
}

// ListPassingForUpdate returns passing snapshot rows inside tx. The rows are
// frozen once the batch leaves draft; the lock only guards against concurrent
// issuance reading a half-written snapshot.
func (r *GraduationStudentRepository) ListPassingForUpdate(ctx context.Context, tx *sqlx.Tx, batchID string) ([]models.GraduationStudent, error) {
	query := fmt.Sprintf(`SELECT %s FROM graduation_students WHERE batch_id = $1 AND final_result_status = $2 ORDER BY position NULLS LAST, student_name FOR UPDATE`, studentColumns)
	var students []models.GraduationStudent
	if err := tx.SelectContext(ctx, &students, query, batchID, models.ResultPass); err != nil {
		return nil, fmt.Errorf("list passing students: %w", err)
	}
	return students, nil
}
