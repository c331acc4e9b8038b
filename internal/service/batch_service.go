package service

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edukita/gradcert-api/internal/models"
	appErrors "github.com/edukita/gradcert-api/pkg/errors"
	"github.com/edukita/gradcert-api/pkg/export"
)

type batchRepo interface {
	Create(ctx context.Context, tx *sqlx.Tx, batch *models.GraduationBatch) error
	FindByID(ctx context.Context, organizationID, schoolID, id string) (*models.GraduationBatch, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, organizationID, schoolID, id string) (*models.GraduationBatch, error)
	List(ctx context.Context, filter models.BatchFilter) ([]models.GraduationBatch, int, error)
	Update(ctx context.Context, tx *sqlx.Tx, batch *models.GraduationBatch) error
	SetStatus(ctx context.Context, tx *sqlx.Tx, batch *models.GraduationBatch) error
	ReplaceExams(ctx context.Context, tx *sqlx.Tx, batchID string, exams []models.GraduationBatchExam) error
}

type snapshotRepo interface {
	DeleteByBatch(ctx context.Context, tx *sqlx.Tx, batchID string) error
	BulkInsert(ctx context.Context, tx *sqlx.Tx, students []models.GraduationStudent) error
	ListByBatch(ctx context.Context, batchID string) ([]models.GraduationStudent, error)
}

type eligibilityEvaluator interface {
	Evaluate(ctx context.Context, scope EligibilityScope) ([]models.GraduationStudent, error)
}

type auditLogger interface {
	Log(ctx context.Context, tx *sqlx.Tx, actor models.Actor, entityType, entityID, action string, metadata interface{}) error
}

type transactor interface {
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

const entityBatch = "graduation_batch"

// BatchExamInput links one source exam with an optional weight.
type BatchExamInput struct {
	ExamID           string   `json:"exam_id" validate:"required"`
	WeightPercentage *float64 `json:"weight_percentage" validate:"omitempty,gt=0,lte=100"`
}

// CreateBatchRequest is the payload for opening a new draft batch. A nil
// MinAttendancePct disables the attendance requirement for this batch.
type CreateBatchRequest struct {
	AcademicYearID   string           `json:"academic_year_id" validate:"required"`
	ClassID          string           `json:"class_id" validate:"required"`
	GraduationDate   time.Time        `json:"graduation_date" validate:"required"`
	MinAttendancePct *float64         `json:"min_attendance_pct" validate:"omitempty,gt=0,lte=100"`
	ExcludeLeaves    *bool            `json:"exclude_leaves"`
	Exams            []BatchExamInput `json:"exams" validate:"required,min=1,dive"`
}

// UpdateBatchRequest edits a draft batch. Nil fields are left untouched.
type UpdateBatchRequest struct {
	AcademicYearID   *string          `json:"academic_year_id"`
	ClassID          *string          `json:"class_id"`
	GraduationDate   *time.Time       `json:"graduation_date"`
	MinAttendancePct *float64         `json:"min_attendance_pct" validate:"omitempty,gt=0,lte=100"`
	ExcludeLeaves    *bool            `json:"exclude_leaves"`
	Exams            []BatchExamInput `json:"exams" validate:"omitempty,min=1,dive"`
}

// GenerateStudentsResult summarises one snapshot regeneration.
type GenerateStudentsResult struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// BatchService drives the graduation batch lifecycle.
type BatchService struct {
	batches     batchRepo
	snapshots   snapshotRepo
	eligibility eligibilityEvaluator
	audit       auditLogger
	tx          transactor
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewBatchService constructs BatchService.
func NewBatchService(batches batchRepo, snapshots snapshotRepo, eligibility eligibilityEvaluator, audit auditLogger, tx transactor, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{
		batches:     batches,
		snapshots:   snapshots,
		eligibility: eligibility,
		audit:       audit,
		tx:          tx,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Create opens a new draft batch.
func (s *BatchService) Create(ctx context.Context, req CreateBatchRequest, actor models.Actor) (*models.GraduationBatch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	excludeLeaves := true
	if req.ExcludeLeaves != nil {
		excludeLeaves = *req.ExcludeLeaves
	}
	batch := &models.GraduationBatch{
		OrganizationID:   actor.OrganizationID,
		SchoolID:         actor.SchoolID,
		AcademicYearID:   req.AcademicYearID,
		ClassID:          req.ClassID,
		GraduationDate:   req.GraduationDate,
		MinAttendancePct: req.MinAttendancePct,
		ExcludeLeaves:    excludeLeaves,
		Status:           models.BatchStatusDraft,
		CreatedBy:        actor.UserID,
		Exams:            examLinks(req.Exams),
	}
	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.batches.Create(ctx, tx, batch); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create batch")
		}
		return s.audit.Log(ctx, tx, actor, entityBatch, batch.ID, models.AuditActionCreate, nil)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("batch created", zap.String("batch_id", batch.ID), zap.String("class_id", batch.ClassID))
	return batch, nil
}

// Update edits a draft batch in place. Any other status is rejected.
func (s *BatchService) Update(ctx context.Context, id string, req UpdateBatchRequest, actor models.Actor) (*models.GraduationBatch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	var updated *models.GraduationBatch
	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		batch, err := s.lockBatch(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if batch.Status != models.BatchStatusDraft {
			return appErrors.Clone(appErrors.ErrInvalidState, "only draft batches can be edited")
		}
		if req.AcademicYearID != nil {
			batch.AcademicYearID = *req.AcademicYearID
		}
		if req.ClassID != nil {
			batch.ClassID = *req.ClassID
		}
		if req.GraduationDate != nil {
			batch.GraduationDate = *req.GraduationDate
		}
		if req.MinAttendancePct != nil {
			batch.MinAttendancePct = req.MinAttendancePct
		}
		if req.ExcludeLeaves != nil {
			batch.ExcludeLeaves = *req.ExcludeLeaves
		}
		if err := s.batches.Update(ctx, tx, batch); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update batch")
		}
		if req.Exams != nil {
			batch.Exams = examLinks(req.Exams)
			if err := s.batches.ReplaceExams(ctx, tx, batch.ID, batch.Exams); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace batch exams")
			}
		}
		updated = batch
		return s.audit.Log(ctx, tx, actor, entityBatch, batch.ID, models.AuditActionUpdate, nil)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get loads a batch within the actor's tenant scope.
func (s *BatchService) Get(ctx context.Context, id string, actor models.Actor) (*models.GraduationBatch, error) {
	batch, err := s.batches.FindByID(ctx, actor.OrganizationID, actor.SchoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	return batch, nil
}

// List returns batches with paging metadata.
func (s *BatchService) List(ctx context.Context, filter models.BatchFilter) ([]models.GraduationBatch, *models.Pagination, error) {
	if filter.Status != "" && !models.BatchStatus(filter.Status).Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown batch status")
	}
	batches, total, err := s.batches.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
	}
	return batches, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// GenerateStudents evaluates eligibility and replaces the batch snapshot.
// Safe to repeat while the batch is draft; each run discards the previous
// snapshot entirely.
func (s *BatchService) GenerateStudents(ctx context.Context, id string, actor models.Actor) (*GenerateStudentsResult, error) {
	batch, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if batch.Status != models.BatchStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "students can only be generated while the batch is draft")
	}

	students, err := s.eligibility.Evaluate(ctx, EligibilityScope{
		OrganizationID:   actor.OrganizationID,
		AcademicYearID:   batch.AcademicYearID,
		ClassID:          batch.ClassID,
		Exams:            batch.Exams,
		MinAttendancePct: batch.MinAttendancePct,
		ExcludeLeaves:    batch.ExcludeLeaves,
	})
	if err != nil {
		return nil, err
	}
	AssignRanks(students)

	result := &GenerateStudentsResult{Total: len(students)}
	for i := range students {
		students[i].BatchID = batch.ID
		if students[i].FinalResultStatus == models.ResultPass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.lockBatch(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if locked.Status != models.BatchStatusDraft {
			return appErrors.Clone(appErrors.ErrInvalidState, "students can only be generated while the batch is draft")
		}
		if err := s.snapshots.DeleteByBatch(ctx, tx, batch.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear snapshot")
		}
		if err := s.snapshots.BulkInsert(ctx, tx, students); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write snapshot")
		}
		return s.audit.Log(ctx, tx, actor, entityBatch, batch.ID, models.AuditActionGenerateStudents, result)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("batch snapshot generated",
		zap.String("batch_id", batch.ID),
		zap.Int("total", result.Total),
		zap.Int("passed", result.Passed))
	return result, nil
}

// Approve moves a draft batch to approved under a row lock. When two callers
// race, the second finds a non-draft row and fails.
func (s *BatchService) Approve(ctx context.Context, id string, actor models.Actor) (*models.GraduationBatch, error) {
	var approved *models.GraduationBatch
	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		batch, err := s.lockBatch(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if !batch.Status.CanTransition(models.BatchStatusApproved) {
			return appErrors.Clone(appErrors.ErrInvalidState, "batch is not in draft status")
		}
		now := time.Now().UTC()
		batch.Status = models.BatchStatusApproved
		batch.ApprovedBy = &actor.UserID
		batch.ApprovedAt = &now
		if err := s.batches.SetStatus(ctx, tx, batch); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve batch")
		}
		approved = batch
		return s.audit.Log(ctx, tx, actor, entityBatch, batch.ID, models.AuditActionApprove, nil)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordBatchTransition(string(models.BatchStatusApproved))
	s.logger.Info("batch approved", zap.String("batch_id", approved.ID), zap.String("approved_by", actor.UserID))
	return approved, nil
}

// ListStudents returns the current snapshot of a batch.
func (s *BatchService) ListStudents(ctx context.Context, id string, actor models.Actor) ([]models.GraduationStudent, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	students, err := s.snapshots.ListByBatch(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
	}
	return students, nil
}

// ExportStudents renders the snapshot as a CSV dataset.
func (s *BatchService) ExportStudents(ctx context.Context, id string, actor models.Actor) (*export.Dataset, error) {
	students, err := s.ListStudents(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	dataset := &export.Dataset{
		Headers: []string{"student_id", "student_name", "result", "percentage", "position", "issues"},
	}
	for _, st := range students {
		pct := ""
		if st.Eligibility.Percentage != nil {
			pct = strconv.FormatFloat(*st.Eligibility.Percentage, 'f', 2, 64)
		}
		pos := ""
		if st.Position != nil {
			pos = strconv.Itoa(*st.Position)
		}
		dataset.Append(export.Row{
			"student_id":   st.StudentID,
			"student_name": st.StudentName,
			"result":       string(st.FinalResultStatus),
			"percentage":   pct,
			"position":     pos,
			"issues":       issueSummary(st.Eligibility.Issues),
		})
	}
	return dataset, nil
}

func (s *BatchService) lockBatch(ctx context.Context, tx *sqlx.Tx, actor models.Actor, id string) (*models.GraduationBatch, error) {
	batch, err := s.batches.FindByIDForUpdate(ctx, tx, actor.OrganizationID, actor.SchoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock batch")
	}
	return batch, nil
}

func examLinks(inputs []BatchExamInput) []models.GraduationBatchExam {
	links := make([]models.GraduationBatchExam, 0, len(inputs))
	for _, in := range inputs {
		links = append(links, models.GraduationBatchExam{ExamID: in.ExamID, WeightPercentage: in.WeightPercentage})
	}
	return links
}

func issueSummary(issues []models.EligibilityIssue) string {
	if len(issues) == 0 {
		return ""
	}
	out := issues[0].Type
	for _, issue := range issues[1:] {
		out += ";" + issue.Type
	}
	return out
}
