package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/edukita/gradcert-api/internal/models"
	appErrors "github.com/edukita/gradcert-api/pkg/errors"
)

type examReader interface {
	FindExam(ctx context.Context, organizationID, examID string) (*models.Exam, error)
	SubjectsForScope(ctx context.Context, examID, academicYearID, classID string) ([]models.ExamSubject, error)
	CandidatesForScope(ctx context.Context, examID, academicYearID, classID string) ([]models.ExamCandidate, error)
	ResultsForCandidates(ctx context.Context, examStudentIDs []string) ([]models.ExamResult, error)
}

type gradePolicyReader interface {
	IsPass(ctx context.Context, organizationID string, percentage float64) (*bool, error)
}

type attendanceReader interface {
	SummariesForScope(ctx context.Context, organizationID, academicYearID, classID string) (map[string]models.AttendanceSummary, error)
}

// EligibilityScope pins one evaluation run to a batch's academic-year+class
// pair, its source exams, and its attendance policy.
type EligibilityScope struct {
	OrganizationID   string
	AcademicYearID   string
	ClassID          string
	Exams            []models.GraduationBatchExam
	MinAttendancePct *float64
	ExcludeLeaves    bool
}

// EligibilityService evaluates graduation eligibility from finalized exam
// results. It never mutates exam data.
type EligibilityService struct {
	exams      examReader
	policy     gradePolicyReader
	attendance attendanceReader
	logger     *zap.Logger
}

// NewEligibilityService constructs EligibilityService.
func NewEligibilityService(exams examReader, policy gradePolicyReader, attendance attendanceReader, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{exams: exams, policy: policy, attendance: attendance, logger: logger}
}

// examEvaluation is the per-student outcome of evaluating one exam.
type examEvaluation struct {
	studentName   string
	issues        []models.EligibilityIssue
	percentage    *float64
	totalObtained float64
	totalPossible float64
}

// Evaluate produces one verdict per resolvable student in the batch scope.
// Multiple exams are combined with weighted percentages; a single exam is the
// degenerate case with full weight. Students whose admission no longer
// resolves to a roster entry are dropped.
func (s *EligibilityService) Evaluate(ctx context.Context, scope EligibilityScope) ([]models.GraduationStudent, error) {
	if len(scope.Exams) == 0 {
		return []models.GraduationStudent{}, nil
	}

	weights := normalizeWeights(scope.Exams)

	perExam := make([]map[string]examEvaluation, len(scope.Exams))
	for i, link := range scope.Exams {
		evals, err := s.evaluateExam(ctx, scope, link.ExamID)
		if err != nil {
			return nil, err
		}
		perExam[i] = evals
	}

	var attendance map[string]models.AttendanceSummary
	if scope.MinAttendancePct != nil {
		var err error
		attendance, err = s.attendance.SummariesForScope(ctx, scope.OrganizationID, scope.AcademicYearID, scope.ClassID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
		}
	}

	// Union of student ids across all exams, so a student registered for only
	// some exams still gets a verdict (with not_enrolled issues).
	studentIDs := make([]string, 0)
	seen := make(map[string]bool)
	for _, evals := range perExam {
		for id := range evals {
			if !seen[id] {
				seen[id] = true
				studentIDs = append(studentIDs, id)
			}
		}
	}
	sort.Strings(studentIDs)

	students := make([]models.GraduationStudent, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		report := models.EligibilityReport{Issues: []models.EligibilityIssue{}}
		var name string
		var weighted float64
		var covered float64

		for i, link := range scope.Exams {
			eval, ok := perExam[i][studentID]
			if !ok {
				report.Issues = append(report.Issues, models.EligibilityIssue{
					Type:   models.IssueNotEnrolled,
					ExamID: link.ExamID,
				})
				continue
			}
			if name == "" {
				name = eval.studentName
			}
			report.Issues = append(report.Issues, eval.issues...)
			report.TotalObtained += eval.totalObtained
			report.TotalPossible += eval.totalPossible
			if eval.percentage != nil {
				weighted += *eval.percentage * weights[i] / 100
				covered += weights[i]
			}
		}

		if covered > 0 {
			pct := round2(weighted * 100 / covered)
			report.Percentage = &pct
		}

		if report.Percentage != nil {
			verdict, err := s.policy.IsPass(ctx, scope.OrganizationID, *report.Percentage)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consult grade policy")
			}
			report.GradePass = verdict
		}

		if scope.MinAttendancePct != nil {
			if summary, ok := attendance[studentID]; ok {
				summary.Percentage = attendancePercentage(summary, scope.ExcludeLeaves)
				report.Attendance = &summary
				if summary.Percentage < *scope.MinAttendancePct {
					report.Issues = append(report.Issues, models.EligibilityIssue{
						Type:          models.IssueInsufficientAttendance,
						AttendancePct: &summary.Percentage,
						RequiredPct:   scope.MinAttendancePct,
					})
				}
			}
		}

		status := models.ResultFail
		if len(report.Issues) == 0 && (report.GradePass == nil || *report.GradePass) {
			status = models.ResultPass
		}

		students = append(students, models.GraduationStudent{
			StudentID:         studentID,
			StudentName:       name,
			FinalResultStatus: status,
			Eligibility:       report,
		})
	}

	return students, nil
}

// evaluateExam computes per-student outcomes for one exam, keyed by student id.
func (s *EligibilityService) evaluateExam(ctx context.Context, scope EligibilityScope, examID string) (map[string]examEvaluation, error) {
	exam, err := s.exams.FindExam(ctx, scope.OrganizationID, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnprocessable, "exam not found for organization")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if exam.Status != models.ExamStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrUnprocessable, "exam results are not finalized")
	}

	subjects, err := s.exams.SubjectsForScope(ctx, examID, scope.AcademicYearID, scope.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam subjects")
	}
	candidates, err := s.exams.CandidatesForScope(ctx, examID, scope.AcademicYearID, scope.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam candidates")
	}

	examStudentIDs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		examStudentIDs = append(examStudentIDs, c.ExamStudentID)
	}
	results, err := s.exams.ResultsForCandidates(ctx, examStudentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam results")
	}

	resultIndex := make(map[string]map[string]models.ExamResult, len(candidates))
	for _, r := range results {
		if resultIndex[r.ExamStudentID] == nil {
			resultIndex[r.ExamStudentID] = make(map[string]models.ExamResult)
		}
		resultIndex[r.ExamStudentID][r.ExamSubjectID] = r
	}

	evals := make(map[string]examEvaluation, len(candidates))
	for _, candidate := range candidates {
		if candidate.StudentID == nil {
			continue
		}
		eval := examEvaluation{issues: []models.EligibilityIssue{}}
		if candidate.StudentName != nil {
			eval.studentName = *candidate.StudentName
		}

		for _, subject := range subjects {
			result, ok := resultIndex[candidate.ExamStudentID][subject.ID]
			if !ok || (!result.IsAbsent && result.MarksObtained == nil) {
				eval.issues = append(eval.issues, models.EligibilityIssue{
					Type:          models.IssueMissingResult,
					ExamID:        examID,
					ExamSubjectID: subject.ID,
				})
				continue
			}
			if result.IsAbsent {
				eval.issues = append(eval.issues, models.EligibilityIssue{
					Type:          models.IssueAbsent,
					ExamID:        examID,
					ExamSubjectID: subject.ID,
				})
			} else if subject.PassingMarks != nil && *result.MarksObtained < *subject.PassingMarks {
				eval.issues = append(eval.issues, models.EligibilityIssue{
					Type:          models.IssueBelowPassing,
					ExamID:        examID,
					ExamSubjectID: subject.ID,
					PassingMarks:  subject.PassingMarks,
					MarksObtained: result.MarksObtained,
				})
			}
			// Totals only count subjects with a defined maximum. An absent
			// student still pays the full possible marks for the subject.
			if subject.TotalMarks != nil {
				if result.MarksObtained != nil {
					eval.totalObtained += *result.MarksObtained
				}
				eval.totalPossible += *subject.TotalMarks
			}
		}

		if eval.totalPossible > 0 {
			pct := round2(eval.totalObtained / eval.totalPossible * 100)
			eval.percentage = &pct
		}
		evals[*candidate.StudentID] = eval
	}

	return evals, nil
}

// attendancePercentage derives the effective attendance rate. Excluding
// leaves removes them from the denominator and credits them as presence.
func attendancePercentage(sum models.AttendanceSummary, excludeLeaves bool) float64 {
	effectiveTotal := sum.TotalDays
	effectivePresent := sum.PresentDays + sum.ExcusedDays
	if excludeLeaves {
		effectiveTotal -= sum.LeaveDays
		effectivePresent += sum.LeaveDays
	}
	if effectiveTotal <= 0 {
		return 0
	}
	return round2(float64(effectivePresent) / float64(effectiveTotal) * 100)
}

// AssignRanks orders passing students by percentage descending and writes
// competition-style positions (ties share a rank, the next rank skips).
// Failing students keep a nil position.
func AssignRanks(students []models.GraduationStudent) {
	passing := make([]*models.GraduationStudent, 0, len(students))
	for i := range students {
		if students[i].FinalResultStatus == models.ResultPass {
			passing = append(passing, &students[i])
		}
	}
	sort.SliceStable(passing, func(i, j int) bool {
		return pctOf(passing[i]) > pctOf(passing[j])
	})
	rank := 0
	var prev float64 = math.Inf(1)
	for i, st := range passing {
		pct := pctOf(st)
		if pct < prev {
			rank = i + 1
			prev = pct
		}
		pos := rank
		st.Position = &pos
	}
}

func pctOf(st *models.GraduationStudent) float64 {
	if st.Eligibility.Percentage == nil {
		return 0
	}
	return *st.Eligibility.Percentage
}

// normalizeWeights scales the exam weights so they sum to 100. Missing
// weights share the remainder equally; an all-missing set becomes an even
// split.
func normalizeWeights(exams []models.GraduationBatchExam) []float64 {
	weights := make([]float64, len(exams))
	var sum float64
	missing := 0
	for i, link := range exams {
		if link.WeightPercentage == nil {
			missing++
			continue
		}
		weights[i] = *link.WeightPercentage
		sum += *link.WeightPercentage
	}
	if missing > 0 {
		remainder := 100 - sum
		if remainder < 0 {
			remainder = 0
		}
		share := remainder / float64(missing)
		for i, link := range exams {
			if link.WeightPercentage == nil {
				weights[i] = share
				sum += share
			}
		}
	}
	if sum > 0 && sum != 100 {
		for i := range weights {
			weights[i] = weights[i] * 100 / sum
		}
	}
	return weights
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
