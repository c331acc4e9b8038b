package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edukita/gradcert-api/internal/models"
)

// AttendanceRepository reads the attendance read model for eligibility
// evaluation. Sessions and records are owned by the wider system.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

type attendanceRow struct {
	StudentID   string `db:"student_id"`
	PresentDays int    `db:"present_days"`
	AbsentDays  int    `db:"absent_days"`
	LeaveDays   int    `db:"leave_days"`
	ExcusedDays int    `db:"excused_days"`
}

// SummariesForScope aggregates per-student attendance counts over all
// sessions of one academic-year+class scope. Returns an empty map when the
// scope has no sessions, so callers skip the attendance constraint.
func (r *AttendanceRepository) SummariesForScope(ctx context.Context, organizationID, academicYearID, classID string) (map[string]models.AttendanceSummary, error) {
	const totalQuery = `SELECT COUNT(*) FROM attendance_sessions
        WHERE organization_id = $1 AND academic_year_id = $2 AND class_id = $3`
	var totalDays int
	if err := r.db.GetContext(ctx, &totalDays, totalQuery, organizationID, academicYearID, classID); err != nil {
		return nil, fmt.Errorf("count attendance sessions: %w", err)
	}
	if totalDays == 0 {
		return map[string]models.AttendanceSummary{}, nil
	}

	const query = `SELECT r.student_id,
            COUNT(*) FILTER (WHERE r.status = 'present') AS present_days,
            COUNT(*) FILTER (WHERE r.status = 'absent') AS absent_days,
            COUNT(*) FILTER (WHERE r.status = 'leave') AS leave_days,
            COUNT(*) FILTER (WHERE r.status = 'excused') AS excused_days
        FROM attendance_records r
        JOIN attendance_sessions s ON s.id = r.attendance_session_id
        WHERE s.organization_id = $1 AND s.academic_year_id = $2 AND s.class_id = $3
        GROUP BY r.student_id`
	var rows []attendanceRow
	if err := r.db.SelectContext(ctx, &rows, query, organizationID, academicYearID, classID); err != nil {
		return nil, fmt.Errorf("aggregate attendance records: %w", err)
	}

	summaries := make(map[string]models.AttendanceSummary, len(rows))
	for _, row := range rows {
		summaries[row.StudentID] = models.AttendanceSummary{
			TotalDays:   totalDays,
			PresentDays: row.PresentDays,
			AbsentDays:  row.AbsentDays,
			LeaveDays:   row.LeaveDays,
			ExcusedDays: row.ExcusedDays,
		}
	}
	return summaries, nil
}
