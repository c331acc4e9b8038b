package models

// Exam read model. Exams and their results are owned by the surrounding
// system; this service only reads finalized data for eligibility evaluation.

// ExamStatusCompleted marks results as finalized and safe to evaluate.
const ExamStatusCompleted = "completed"

// Exam is the minimal projection needed for eligibility preconditions.
type Exam struct {
	ID             string `db:"id" json:"id"`
	OrganizationID string `db:"organization_id" json:"organization_id"`
	Name           string `db:"name" json:"name"`
	Status         string `db:"status" json:"status"`
}

// ExamSubject carries the marking scheme for one subject within an exam-class
// scope. TotalMarks and PassingMarks are nullable in source data.
type ExamSubject struct {
	ID           string   `db:"id" json:"id"`
	ExamID       string   `db:"exam_id" json:"exam_id"`
	SubjectID    string   `db:"subject_id" json:"subject_id"`
	TotalMarks   *float64 `db:"total_marks" json:"total_marks,omitempty"`
	PassingMarks *float64 `db:"passing_marks" json:"passing_marks,omitempty"`
}

// ExamCandidate is a student sitting an exam within the evaluated scope.
// StudentID is nil when the admission no longer resolves to a student; such
// rows are dropped from evaluation output.
type ExamCandidate struct {
	ExamStudentID string  `db:"exam_student_id" json:"exam_student_id"`
	ExamID        string  `db:"exam_id" json:"exam_id"`
	StudentID     *string `db:"student_id" json:"student_id,omitempty"`
	StudentName   *string `db:"student_name" json:"student_name,omitempty"`
}

// ExamResult is one recorded subject result for a candidate.
type ExamResult struct {
	ExamStudentID string   `db:"exam_student_id" json:"exam_student_id"`
	ExamSubjectID string   `db:"exam_subject_id" json:"exam_subject_id"`
	MarksObtained *float64 `db:"marks_obtained" json:"marks_obtained,omitempty"`
	IsAbsent      bool     `db:"is_absent" json:"is_absent"`
}

// GradeBand is one row of an organization's grading scale, consulted as the
// grade policy during eligibility evaluation.
type GradeBand struct {
	ID             string  `db:"id" json:"id"`
	OrganizationID string  `db:"organization_id" json:"organization_id"`
	MinPercentage  float64 `db:"min_percentage" json:"min_percentage"`
	MaxPercentage  float64 `db:"max_percentage" json:"max_percentage"`
	IsPassing      bool    `db:"is_passing" json:"is_passing"`
}
