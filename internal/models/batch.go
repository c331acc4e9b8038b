package models

import "time"

// BatchStatus captures the graduation batch lifecycle.
type BatchStatus string

const (
	BatchStatusDraft    BatchStatus = "draft"
	BatchStatusApproved BatchStatus = "approved"
	BatchStatusIssued   BatchStatus = "issued"
)

// batchTransitions is the single source of truth for legal status moves.
// Draft may be regenerated in place, hence the draft→draft entry.
var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusDraft:    {BatchStatusDraft, BatchStatusApproved},
	BatchStatusApproved: {BatchStatusIssued},
	BatchStatusIssued:   {},
}

// CanTransition reports whether moving from s to target is legal.
func (s BatchStatus) CanTransition(target BatchStatus) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Valid reports whether the status is a known lifecycle state.
func (s BatchStatus) Valid() bool {
	_, ok := batchTransitions[s]
	return ok
}

// GraduationBatch is a unit of graduation processing scoped to one
// class/academic-year/exam set within a school.
type GraduationBatch struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	SchoolID       string    `db:"school_id" json:"school_id"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	GraduationDate time.Time `db:"graduation_date" json:"graduation_date"`
	// MinAttendancePct gates eligibility on attendance; nil disables the check.
	MinAttendancePct *float64    `db:"min_attendance_pct" json:"min_attendance_pct,omitempty"`
	ExcludeLeaves    bool        `db:"exclude_leaves" json:"exclude_leaves"`
	Status           BatchStatus `db:"status" json:"status"`
	CreatedBy        string      `db:"created_by" json:"created_by"`
	ApprovedBy       *string     `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time  `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`

	Exams []GraduationBatchExam `json:"exams,omitempty"`
}

// GraduationBatchExam links a batch to one of its source exams with an
// optional contribution weight.
type GraduationBatchExam struct {
	ID               string   `db:"id" json:"id"`
	BatchID          string   `db:"batch_id" json:"batch_id"`
	ExamID           string   `db:"exam_id" json:"exam_id"`
	WeightPercentage *float64 `db:"weight_percentage" json:"weight_percentage,omitempty"`
	DisplayOrder     int      `db:"display_order" json:"display_order"`
}

// BatchFilter scopes batch listing queries.
type BatchFilter struct {
	OrganizationID string
	SchoolID       string
	Status         string
	Page           int
	Limit          int
}
