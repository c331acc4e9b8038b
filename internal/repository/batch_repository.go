package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edukita/gradcert-api/internal/models"
)

// BatchRepository handles graduation batch persistence.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository creates a new batch repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

const batchColumns = `id, organization_id, school_id, academic_year_id, class_id, graduation_date, min_attendance_pct, exclude_leaves, status, created_by, approved_by, approved_at, created_at, updated_at`

// Create inserts a new batch together with its exam links.
func (r *BatchRepository) Create(ctx context.Context, tx *sqlx.Tx, batch *models.GraduationBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now

	const query = `INSERT INTO graduation_batches (id, organization_id, school_id, academic_year_id, class_id, graduation_date, min_attendance_pct, exclude_leaves, status, created_by, created_at, updated_at)
        VALUES (:id, :organization_id, :school_id, :academic_year_id, :class_id, :graduation_date, :min_attendance_pct, :exclude_leaves, :status, :created_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	return r.insertExams(ctx, tx, batch.ID, batch.Exams)
}

// FindByID loads a batch within the tenant scope, including exam links.
func (r *BatchRepository) FindByID(ctx context.Context, organizationID, schoolID, id string) (*models.GraduationBatch, error) {
	query := fmt.Sprintf(`SELECT %s FROM graduation_batches WHERE id = $1 AND organization_id = $2 AND school_id = $3`, batchColumns)
	var batch models.GraduationBatch
	if err := r.db.GetContext(ctx, &batch, query, id, organizationID, schoolID); err != nil {
		return nil, err
	}
	exams, err := r.listExams(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	batch.Exams = exams
	return &batch, nil
}

// FindByIDForUpdate loads a batch under a row lock inside tx. Concurrent
// callers operating on the same batch serialize here.
func (r *BatchRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, organizationID, schoolID, id string) (*models.GraduationBatch, error) {
	query := fmt.Sprintf(`SELECT %s FROM graduation_batches WHERE id = $1 AND organization_id = $2 AND school_id = $3 FOR UPDATE`, batchColumns)
	var batch models.GraduationBatch
	if err := tx.GetContext(ctx, &batch, query, id, organizationID, schoolID); err != nil {
		return nil, err
	}
	exams, err := r.listExams(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	batch.Exams = exams
	return &batch, nil
}

// List returns batches for the tenant scope with paging.
func (r *BatchRepository) List(ctx context.Context, filter models.BatchFilter) ([]models.GraduationBatch, int, error) {
	args := []interface{}{filter.OrganizationID, filter.SchoolID}
	where := `WHERE organization_id = $1 AND school_id = $2`
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM graduation_batches " + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM graduation_batches %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		batchColumns, where, len(args)-1, len(args))

	var batches []models.GraduationBatch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}
	return batches, total, nil
}

// Update persists draft-editable batch fields.
func (r *BatchRepository) Update(ctx context.Context, tx *sqlx.Tx, batch *models.GraduationBatch) error {
	batch.UpdatedAt = time.Now().UTC()
	const query = `UPDATE graduation_batches
        SET academic_year_id = :academic_year_id, class_id = :class_id, graduation_date = :graduation_date,
            min_attendance_pct = :min_attendance_pct, exclude_leaves = :exclude_leaves, updated_at = :updated_at
        WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

// SetStatus advances the batch lifecycle within tx.
func (r *BatchRepository) SetStatus(ctx context.Context, tx *sqlx.Tx, batch *models.GraduationBatch) error {
	batch.UpdatedAt = time.Now().UTC()
	const query = `UPDATE graduation_batches
        SET status = :status, approved_by = :approved_by, approved_at = :approved_at, updated_at = :updated_at
        WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("set batch status: %w", err)
	}
	return nil
}

// ReplaceExams swaps the exam links of a draft batch.
func (r *BatchRepository) ReplaceExams(ctx context.Context, tx *sqlx.Tx, batchID string, exams []models.GraduationBatchExam) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM graduation_batch_exams WHERE batch_id = $1`, batchID); err != nil {
		return fmt.Errorf("delete batch exams: %w", err)
	}
	return r.insertExams(ctx, tx, batchID, exams)
}

func (r *BatchRepository) insertExams(ctx context.Context, tx *sqlx.Tx, batchID string, exams []models.GraduationBatchExam) error {
	const query = `INSERT INTO graduation_batch_exams (id, batch_id, exam_id, weight_percentage, display_order)
        VALUES (:id, :batch_id, :exam_id, :weight_percentage, :display_order)`
	for i := range exams {
		if exams[i].ID == "" {
			exams[i].ID = uuid.NewString()
		}
		exams[i].BatchID = batchID
		exams[i].DisplayOrder = i
		if _, err := tx.NamedExecContext(ctx, query, exams[i]); err != nil {
			return fmt.Errorf("insert batch exam: %w", err)
		}
	}
	return nil
}

func (r *BatchRepository) listExams(ctx context.Context, q sqlx.QueryerContext, batchID string) ([]models.GraduationBatchExam, error) {
	const query = `SELECT id, batch_id, exam_id, weight_percentage, display_order
        FROM graduation_batch_exams WHERE batch_id = $1 ORDER BY display_order`
	rows, err := q.QueryxContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch exams: %w", err)
	}
	defer rows.Close()
	var exams []models.GraduationBatchExam
	for rows.Next() {
		var exam models.GraduationBatchExam
		if err := rows.StructScan(&exam); err != nil {
			return nil, fmt.Errorf("scan batch exam: %w", err)
		}
		exams = append(exams, exam)
	}
	return exams, rows.Err()
}
