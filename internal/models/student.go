package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FinalResultStatus is the per-student verdict inside a batch snapshot.
type FinalResultStatus string

const (
	ResultPass FinalResultStatus = "pass"
	ResultFail FinalResultStatus = "fail"
)

// Eligibility issue types recorded during evaluation.
const (
	IssueMissingResult          = "missing_result"
	IssueAbsent                 = "absent"
	IssueBelowPassing           = "below_passing"
	IssueNotEnrolled            = "not_enrolled"
	IssueInsufficientAttendance = "insufficient_attendance"
)

// EligibilityIssue is one diagnostic explaining a failed verdict.
type EligibilityIssue struct {
	Type          string   `json:"type"`
	ExamID        string   `json:"exam_id,omitempty"`
	ExamSubjectID string   `json:"exam_subject_id,omitempty"`
	PassingMarks  *float64 `json:"passing_marks,omitempty"`
	MarksObtained *float64 `json:"marks_obtained,omitempty"`
	AttendancePct *float64 `json:"attendance_pct,omitempty"`
	RequiredPct   *float64 `json:"required_pct,omitempty"`
}

// AttendanceSummary aggregates one student's attendance over the batch scope.
// Percentage is derived from the counts by the evaluation, not the database.
type AttendanceSummary struct {
	Percentage  float64 `db:"-" json:"percentage"`
	TotalDays   int     `db:"total_days" json:"total_days"`
	PresentDays int     `db:"present_days" json:"present_days"`
	AbsentDays  int     `db:"absent_days" json:"absent_days"`
	LeaveDays   int     `db:"leave_days" json:"leave_days"`
	ExcusedDays int     `db:"excused_days" json:"excused_days"`
}

// EligibilityReport is the evaluation detail persisted alongside the verdict.
type EligibilityReport struct {
	Issues        []EligibilityIssue `json:"issues"`
	Percentage    *float64           `json:"percentage"`
	GradePass     *bool              `json:"grade_pass"`
	TotalObtained float64            `json:"total_obtained"`
	TotalPossible float64            `json:"total_possible"`
	Attendance    *AttendanceSummary `json:"attendance,omitempty"`
}

// Value implements driver.Valuer so the report is stored as JSONB.
func (r EligibilityReport) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *EligibilityReport) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	case nil:
		*r = EligibilityReport{}
		return nil
	default:
		return fmt.Errorf("unsupported eligibility scan type %T", src)
	}
}

// GraduationStudent is one row of a batch eligibility snapshot. Rows are
// replaced wholesale on regeneration and frozen once the batch leaves draft.
type GraduationStudent struct {
	ID                string            `db:"id" json:"id"`
	BatchID           string            `db:"batch_id" json:"batch_id"`
	StudentID         string            `db:"student_id" json:"student_id"`
	StudentName       string            `db:"student_name" json:"student_name"`
	FinalResultStatus FinalResultStatus `db:"final_result_status" json:"final_result_status"`
	Position          *int              `db:"position" json:"position,omitempty"`
	Eligibility       EligibilityReport `db:"eligibility_json" json:"eligibility_json"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
}
