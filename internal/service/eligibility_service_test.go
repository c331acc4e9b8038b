package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edukita/gradcert-api/internal/models"
	appErrors "github.com/edukita/gradcert-api/pkg/errors"
)

type mockExamReader struct {
	exams      map[string]models.Exam
	subjects   map[string][]models.ExamSubject
	candidates map[string][]models.ExamCandidate
	results    []models.ExamResult
}

func (m *mockExamReader) FindExam(ctx context.Context, organizationID, examID string) (*models.Exam, error) {
	if e, ok := m.exams[examID]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExamReader) SubjectsForScope(ctx context.Context, examID, academicYearID, classID string) ([]models.ExamSubject, error) {
	return m.subjects[examID], nil
}

func (m *mockExamReader) CandidatesForScope(ctx context.Context, examID, academicYearID, classID string) ([]models.ExamCandidate, error) {
	return m.candidates[examID], nil
}

func (m *mockExamReader) ResultsForCandidates(ctx context.Context, examStudentIDs []string) ([]models.ExamResult, error) {
	wanted := make(map[string]bool, len(examStudentIDs))
	for _, id := range examStudentIDs {
		wanted[id] = true
	}
	var out []models.ExamResult
	for _, r := range m.results {
		if wanted[r.ExamStudentID] {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockGradePolicy struct {
	threshold *float64
}

func (m *mockGradePolicy) IsPass(ctx context.Context, organizationID string, percentage float64) (*bool, error) {
	if m.threshold == nil {
		return nil, nil
	}
	pass := percentage >= *m.threshold
	return &pass, nil
}

type mockAttendanceReader struct {
	summaries map[string]models.AttendanceSummary
	calls     int
}

func (m *mockAttendanceReader) SummariesForScope(ctx context.Context, organizationID, academicYearID, classID string) (map[string]models.AttendanceSummary, error) {
	m.calls++
	if m.summaries == nil {
		return map[string]models.AttendanceSummary{}, nil
	}
	return m.summaries, nil
}

func f(v float64) *float64 { return &v }
func sp(v string) *string  { return &v }

func singleExamFixture() *mockExamReader {
	return &mockExamReader{
		exams: map[string]models.Exam{
			"exam-1": {ID: "exam-1", OrganizationID: "org-1", Status: models.ExamStatusCompleted},
		},
		subjects: map[string][]models.ExamSubject{
			"exam-1": {
				{ID: "sub-math", ExamID: "exam-1", TotalMarks: f(100), PassingMarks: f(40)},
			},
		},
		candidates: map[string][]models.ExamCandidate{
			"exam-1": {
				{ExamStudentID: "es-a", ExamID: "exam-1", StudentID: sp("stu-a"), StudentName: sp("Alice")},
				{ExamStudentID: "es-b", ExamID: "exam-1", StudentID: sp("stu-b"), StudentName: sp("Budi")},
				{ExamStudentID: "es-c", ExamID: "exam-1", StudentID: sp("stu-c"), StudentName: sp("Citra")},
				{ExamStudentID: "es-x", ExamID: "exam-1", StudentID: nil},
			},
		},
		results: []models.ExamResult{
			{ExamStudentID: "es-a", ExamSubjectID: "sub-math", MarksObtained: f(90)},
			{ExamStudentID: "es-b", ExamSubjectID: "sub-math", IsAbsent: true},
			{ExamStudentID: "es-c", ExamSubjectID: "sub-math", MarksObtained: f(35)},
		},
	}
}

func singleExamScope() EligibilityScope {
	return EligibilityScope{
		OrganizationID: "org-1",
		AcademicYearID: "ay-1",
		ClassID:        "class-1",
		Exams:          []models.GraduationBatchExam{{ExamID: "exam-1"}},
	}
}

func evaluateSingle(t *testing.T, exams *mockExamReader, policy gradePolicyReader) map[string]models.GraduationStudent {
	t.Helper()
	svc := NewEligibilityService(exams, policy, &mockAttendanceReader{}, nil)
	students, err := svc.Evaluate(context.Background(), singleExamScope())
	require.NoError(t, err)
	byID := make(map[string]models.GraduationStudent, len(students))
	for _, st := range students {
		byID[st.StudentID] = st
	}
	return byID
}

func TestEvaluateVerdicts(t *testing.T) {
	byID := evaluateSingle(t, singleExamFixture(), &mockGradePolicy{})

	require.Len(t, byID, 3, "unresolvable candidate must be dropped")

	alice := byID["stu-a"]
	assert.Equal(t, models.ResultPass, alice.FinalResultStatus)
	assert.Empty(t, alice.Eligibility.Issues)
	require.NotNil(t, alice.Eligibility.Percentage)
	assert.InDelta(t, 90.0, *alice.Eligibility.Percentage, 0.001)

	budi := byID["stu-b"]
	assert.Equal(t, models.ResultFail, budi.FinalResultStatus)
	require.Len(t, budi.Eligibility.Issues, 1)
	assert.Equal(t, models.IssueAbsent, budi.Eligibility.Issues[0].Type)
	require.NotNil(t, budi.Eligibility.Percentage)
	assert.InDelta(t, 0.0, *budi.Eligibility.Percentage, 0.001, "absent still pays the full possible marks")
	assert.InDelta(t, 100.0, budi.Eligibility.TotalPossible, 0.001)

	citra := byID["stu-c"]
	assert.Equal(t, models.ResultFail, citra.FinalResultStatus)
	require.Len(t, citra.Eligibility.Issues, 1)
	issue := citra.Eligibility.Issues[0]
	assert.Equal(t, models.IssueBelowPassing, issue.Type)
	assert.Equal(t, 40.0, *issue.PassingMarks)
	assert.Equal(t, 35.0, *issue.MarksObtained)
}

func TestEvaluateUncappedSubjectAddsNoMarks(t *testing.T) {
	// A subject without total_marks must not count toward either side of the
	// percentage, or a score there would push the rate past 100.
	exams := singleExamFixture()
	exams.subjects["exam-1"] = append(exams.subjects["exam-1"],
		models.ExamSubject{ID: "sub-extra", ExamID: "exam-1"})
	exams.results = append(exams.results,
		models.ExamResult{ExamStudentID: "es-a", ExamSubjectID: "sub-extra", MarksObtained: f(50)})

	byID := evaluateSingle(t, exams, &mockGradePolicy{})
	alice := byID["stu-a"]
	require.NotNil(t, alice.Eligibility.Percentage)
	assert.InDelta(t, 90.0, *alice.Eligibility.Percentage, 0.001)
	assert.InDelta(t, 90.0, alice.Eligibility.TotalObtained, 0.001)
	assert.InDelta(t, 100.0, alice.Eligibility.TotalPossible, 0.001)
}

func TestEvaluateMissingResult(t *testing.T) {
	exams := singleExamFixture()
	exams.results = exams.results[:2] // citra has no row at all

	byID := evaluateSingle(t, exams, &mockGradePolicy{})
	citra := byID["stu-c"]
	assert.Equal(t, models.ResultFail, citra.FinalResultStatus)
	require.Len(t, citra.Eligibility.Issues, 1)
	assert.Equal(t, models.IssueMissingResult, citra.Eligibility.Issues[0].Type)
}

func TestEvaluateGradePolicyOverrides(t *testing.T) {
	// Alice has no issues but the policy demands 95%.
	byID := evaluateSingle(t, singleExamFixture(), &mockGradePolicy{threshold: f(95)})
	alice := byID["stu-a"]
	assert.Equal(t, models.ResultFail, alice.FinalResultStatus)
	require.NotNil(t, alice.Eligibility.GradePass)
	assert.False(t, *alice.Eligibility.GradePass)
}

func TestEvaluateNotFinalizedExam(t *testing.T) {
	exams := singleExamFixture()
	exam := exams.exams["exam-1"]
	exam.Status = "ongoing"
	exams.exams["exam-1"] = exam

	svc := NewEligibilityService(exams, &mockGradePolicy{}, &mockAttendanceReader{}, nil)
	_, err := svc.Evaluate(context.Background(), singleExamScope())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnprocessable.Code, appErrors.FromError(err).Code)
}

func TestEvaluateUnknownExam(t *testing.T) {
	svc := NewEligibilityService(&mockExamReader{exams: map[string]models.Exam{}}, &mockGradePolicy{}, &mockAttendanceReader{}, nil)
	scope := singleExamScope()
	scope.Exams = []models.GraduationBatchExam{{ExamID: "nope"}}
	_, err := svc.Evaluate(context.Background(), scope)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnprocessable.Code, appErrors.FromError(err).Code,
		"a dangling exam link is a business precondition, not a missing resource")
}

func TestEvaluateWrappedExamLookupError(t *testing.T) {
	exams := singleExamFixture()
	svc := NewEligibilityService(&wrappingExamReader{inner: exams}, &mockGradePolicy{}, &mockAttendanceReader{}, nil)
	scope := singleExamScope()
	scope.Exams = []models.GraduationBatchExam{{ExamID: "nope"}}
	_, err := svc.Evaluate(context.Background(), scope)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnprocessable.Code, appErrors.FromError(err).Code)
}

// wrappingExamReader decorates lookups the way a repository that annotates
// driver errors would.
type wrappingExamReader struct {
	inner *mockExamReader
}

func (w *wrappingExamReader) FindExam(ctx context.Context, organizationID, examID string) (*models.Exam, error) {
	exam, err := w.inner.FindExam(ctx, organizationID, examID)
	if err != nil {
		return nil, fmt.Errorf("find exam: %w", err)
	}
	return exam, nil
}

func (w *wrappingExamReader) SubjectsForScope(ctx context.Context, examID, academicYearID, classID string) ([]models.ExamSubject, error) {
	return w.inner.SubjectsForScope(ctx, examID, academicYearID, classID)
}

func (w *wrappingExamReader) CandidatesForScope(ctx context.Context, examID, academicYearID, classID string) ([]models.ExamCandidate, error) {
	return w.inner.CandidatesForScope(ctx, examID, academicYearID, classID)
}

func (w *wrappingExamReader) ResultsForCandidates(ctx context.Context, examStudentIDs []string) ([]models.ExamResult, error) {
	return w.inner.ResultsForCandidates(ctx, examStudentIDs)
}

func TestEvaluateEmptyScope(t *testing.T) {
	exams := singleExamFixture()
	exams.candidates["exam-1"] = nil

	svc := NewEligibilityService(exams, &mockGradePolicy{}, &mockAttendanceReader{}, nil)
	students, err := svc.Evaluate(context.Background(), singleExamScope())
	require.NoError(t, err)
	assert.Empty(t, students)

	scope := singleExamScope()
	scope.Exams = nil
	students, err = svc.Evaluate(context.Background(), scope)
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestEvaluateMultiExamWeighted(t *testing.T) {
	exams := singleExamFixture()
	exams.exams["exam-2"] = models.Exam{ID: "exam-2", OrganizationID: "org-1", Status: models.ExamStatusCompleted}
	exams.subjects["exam-2"] = []models.ExamSubject{
		{ID: "sub-sci", ExamID: "exam-2", TotalMarks: f(100), PassingMarks: f(40)},
	}
	// Only alice sat the second exam.
	exams.candidates["exam-2"] = []models.ExamCandidate{
		{ExamStudentID: "es-a2", ExamID: "exam-2", StudentID: sp("stu-a"), StudentName: sp("Alice")},
	}
	exams.results = append(exams.results,
		models.ExamResult{ExamStudentID: "es-a2", ExamSubjectID: "sub-sci", MarksObtained: f(70)})

	svc := NewEligibilityService(exams, &mockGradePolicy{}, &mockAttendanceReader{}, nil)
	scope := singleExamScope()
	scope.Exams = []models.GraduationBatchExam{
		{ExamID: "exam-1", WeightPercentage: f(60)},
		{ExamID: "exam-2", WeightPercentage: f(40)},
	}
	students, err := svc.Evaluate(context.Background(), scope)
	require.NoError(t, err)

	byID := make(map[string]models.GraduationStudent)
	for _, st := range students {
		byID[st.StudentID] = st
	}

	alice := byID["stu-a"]
	require.NotNil(t, alice.Eligibility.Percentage)
	assert.InDelta(t, 82.0, *alice.Eligibility.Percentage, 0.001) // 90*0.6 + 70*0.4
	assert.Equal(t, models.ResultPass, alice.FinalResultStatus)

	// Citra never registered for exam-2.
	citra := byID["stu-c"]
	var hasNotEnrolled bool
	for _, issue := range citra.Eligibility.Issues {
		if issue.Type == models.IssueNotEnrolled && issue.ExamID == "exam-2" {
			hasNotEnrolled = true
		}
	}
	assert.True(t, hasNotEnrolled)
	assert.Equal(t, models.ResultFail, citra.FinalResultStatus)
}

func TestEvaluateAttendanceRequirement(t *testing.T) {
	attendance := &mockAttendanceReader{summaries: map[string]models.AttendanceSummary{
		"stu-a": {TotalDays: 100, PresentDays: 60, AbsentDays: 40},
		"stu-c": {TotalDays: 100, PresentDays: 95, AbsentDays: 5},
	}}
	svc := NewEligibilityService(singleExamFixture(), &mockGradePolicy{}, attendance, nil)

	scope := singleExamScope()
	scope.MinAttendancePct = f(75)
	scope.ExcludeLeaves = true
	students, err := svc.Evaluate(context.Background(), scope)
	require.NoError(t, err)

	byID := make(map[string]models.GraduationStudent)
	for _, st := range students {
		byID[st.StudentID] = st
	}

	alice := byID["stu-a"]
	assert.Equal(t, models.ResultFail, alice.FinalResultStatus)
	require.Len(t, alice.Eligibility.Issues, 1)
	issue := alice.Eligibility.Issues[0]
	assert.Equal(t, models.IssueInsufficientAttendance, issue.Type)
	assert.InDelta(t, 60.0, *issue.AttendancePct, 0.001)
	assert.InDelta(t, 75.0, *issue.RequiredPct, 0.001)
	require.NotNil(t, alice.Eligibility.Attendance)

	// Citra fails on marks but clears attendance; no extra issue.
	citra := byID["stu-c"]
	for _, is := range citra.Eligibility.Issues {
		assert.NotEqual(t, models.IssueInsufficientAttendance, is.Type)
	}

	// Budi has no attendance data at all; the constraint does not apply.
	budi := byID["stu-b"]
	assert.Nil(t, budi.Eligibility.Attendance)
}

func TestEvaluateAttendanceSkippedWhenUnset(t *testing.T) {
	attendance := &mockAttendanceReader{}
	svc := NewEligibilityService(singleExamFixture(), &mockGradePolicy{}, attendance, nil)
	_, err := svc.Evaluate(context.Background(), singleExamScope())
	require.NoError(t, err)
	assert.Zero(t, attendance.calls, "no attendance lookup without a minimum")
}

func TestAttendancePercentage(t *testing.T) {
	sum := models.AttendanceSummary{TotalDays: 100, PresentDays: 80, LeaveDays: 10, ExcusedDays: 5}

	// Leaves excluded: dropped from the denominator, credited as presence.
	assert.InDelta(t, 105.56, attendancePercentage(sum, true), 0.01)
	assert.InDelta(t, 85.0, attendancePercentage(sum, false), 0.001)
	assert.Zero(t, attendancePercentage(models.AttendanceSummary{}, true))
}

func TestAssignRanks(t *testing.T) {
	students := []models.GraduationStudent{
		{StudentID: "a", FinalResultStatus: models.ResultPass, Eligibility: models.EligibilityReport{Percentage: f(80)}},
		{StudentID: "b", FinalResultStatus: models.ResultPass, Eligibility: models.EligibilityReport{Percentage: f(92)}},
		{StudentID: "c", FinalResultStatus: models.ResultFail, Eligibility: models.EligibilityReport{Percentage: f(30)}},
		{StudentID: "d", FinalResultStatus: models.ResultPass, Eligibility: models.EligibilityReport{Percentage: f(92)}},
		{StudentID: "e", FinalResultStatus: models.ResultPass, Eligibility: models.EligibilityReport{Percentage: f(75)}},
	}
	AssignRanks(students)

	positions := make(map[string]*int)
	for i := range students {
		positions[students[i].StudentID] = students[i].Position
	}

	require.NotNil(t, positions["b"])
	require.NotNil(t, positions["d"])
	assert.Equal(t, 1, *positions["b"])
	assert.Equal(t, 1, *positions["d"], "ties share a rank")
	assert.Equal(t, 3, *positions["a"], "rank after a tie skips")
	assert.Equal(t, 4, *positions["e"])
	assert.Nil(t, positions["c"], "failing students are unranked")
}

func TestNormalizeWeights(t *testing.T) {
	// Explicit weights that do not sum to 100 are rescaled.
	weights := normalizeWeights([]models.GraduationBatchExam{
		{ExamID: "e1", WeightPercentage: f(1)},
		{ExamID: "e2", WeightPercentage: f(3)},
	})
	assert.InDelta(t, 25.0, weights[0], 0.001)
	assert.InDelta(t, 75.0, weights[1], 0.001)

	// Missing weights share the remainder.
	weights = normalizeWeights([]models.GraduationBatchExam{
		{ExamID: "e1", WeightPercentage: f(50)},
		{ExamID: "e2"},
	})
	assert.InDelta(t, 50.0, weights[0], 0.001)
	assert.InDelta(t, 50.0, weights[1], 0.001)

	// No weights at all becomes an even split.
	weights = normalizeWeights([]models.GraduationBatchExam{{ExamID: "e1"}, {ExamID: "e2"}})
	assert.InDelta(t, 50.0, weights[0], 0.001)
	assert.InDelta(t, 50.0, weights[1], 0.001)
}
