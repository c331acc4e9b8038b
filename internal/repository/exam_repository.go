package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edukita/gradcert-api/internal/models"
)

// ExamRepository reads finalized exam data for eligibility evaluation. The
// exam tables are owned by the wider system; everything here is read-only.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository creates a new exam repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindExam loads an exam within the organization scope.
func (r *ExamRepository) FindExam(ctx context.Context, organizationID, examID string) (*models.Exam, error) {
	const query = `SELECT id, organization_id, name, status FROM exams WHERE id = $1 AND organization_id = $2`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, examID, organizationID); err != nil {
		return nil, err
	}
	return &exam, nil
}

// SubjectsForScope returns the marking scheme for one exam scope. Scope is
// the academic-year+class pair a batch targets.
func (r *ExamRepository) SubjectsForScope(ctx context.Context, examID, academicYearID, classID string) ([]models.ExamSubject, error) {
	const query = `SELECT id, exam_id, subject_id, total_marks, passing_marks
        FROM exam_subjects WHERE exam_id = $1 AND academic_year_id = $2 AND class_id = $3`
	var subjects []models.ExamSubject
	if err := r.db.SelectContext(ctx, &subjects, query, examID, academicYearID, classID); err != nil {
		return nil, fmt.Errorf("list exam subjects: %w", err)
	}
	return subjects, nil
}

// CandidatesForScope returns exam-student rows joined to the student roster.
// student_id comes back NULL when the admission record no longer resolves.
func (r *ExamRepository) CandidatesForScope(ctx context.Context, examID, academicYearID, classID string) ([]models.ExamCandidate, error) {
	const query = `SELECT es.id AS exam_student_id, es.exam_id, s.id AS student_id, s.full_name AS student_name
        FROM exam_students es
        LEFT JOIN students s ON s.admission_no = es.admission_no
        WHERE es.exam_id = $1 AND es.academic_year_id = $2 AND es.class_id = $3`
	var candidates []models.ExamCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, examID, academicYearID, classID); err != nil {
		return nil, fmt.Errorf("list exam candidates: %w", err)
	}
	return candidates, nil
}

// ResultsForCandidates returns all subject results for the given exam-student
// ids. Returns nil for an empty id set so callers skip the round trip.
func (r *ExamRepository) ResultsForCandidates(ctx context.Context, examStudentIDs []string) ([]models.ExamResult, error) {
	if len(examStudentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT exam_student_id, exam_subject_id, marks_obtained, is_absent
        FROM exam_results WHERE exam_student_id IN (?)`, examStudentIDs)
	if err != nil {
		return nil, fmt.Errorf("build results query: %w", err)
	}
	query = r.db.Rebind(query)
	var results []models.ExamResult
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}
	return results, nil
}
