package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edukita/gradcert-api/internal/models"
	appErrors "github.com/edukita/gradcert-api/pkg/errors"
)

type mockTx struct{}

func (m *mockTx) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type mockBatchRepo struct {
	batches  map[string]models.GraduationBatch
	statuses []models.BatchStatus
}

func (m *mockBatchRepo) Create(ctx context.Context, tx *sqlx.Tx, batch *models.GraduationBatch) error {
	if batch.ID == "" {
		batch.ID = "batch-new"
	}
	if m.batches == nil {
		m.batches = make(map[string]models.GraduationBatch)
	}
	m.batches[batch.ID] = *batch
	return nil
}

func (m *mockBatchRepo) FindByID(ctx context.Context, organizationID, schoolID, id string) (*models.GraduationBatch, error) {
	if b, ok := m.batches[id]; ok && b.OrganizationID == organizationID {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBatchRepo) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, organizationID, schoolID, id string) (*models.GraduationBatch, error) {
	return m.FindByID(ctx, organizationID, schoolID, id)
}

func (m *mockBatchRepo) List(ctx context.Context, filter models.BatchFilter) ([]models.GraduationBatch, int, error) {
	var out []models.GraduationBatch
	for _, b := range m.batches {
		out = append(out, b)
	}
	return out, len(out), nil
}

func (m *mockBatchRepo) Update(ctx context.Context, tx *sqlx.Tx, batch *models.GraduationBatch) error {
	m.batches[batch.ID] = *batch
	return nil
}

func (m *mockBatchRepo) SetStatus(ctx context.Context, tx *sqlx.Tx, batch *models.GraduationBatch) error {
	m.batches[batch.ID] = *batch
	m.statuses = append(m.statuses, batch.Status)
	return nil
}

func (m *mockBatchRepo) ReplaceExams(ctx context.Context, tx *sqlx.Tx, batchID string, exams []models.GraduationBatchExam) error {
	b := m.batches[batchID]
	b.Exams = exams
	m.batches[batchID] = b
	return nil
}

type mockSnapshotRepo struct {
	rows    map[string][]models.GraduationStudent
	deletes int
}

func (m *mockSnapshotRepo) DeleteByBatch(ctx context.Context, tx *sqlx.Tx, batchID string) error {
	m.deletes++
	delete(m.rows, batchID)
	return nil
}

func (m *mockSnapshotRepo) BulkInsert(ctx context.Context, tx *sqlx.Tx, students []models.GraduationStudent) error {
	if m.rows == nil {
		m.rows = make(map[string][]models.GraduationStudent)
	}
	for _, st := range students {
		m.rows[st.BatchID] = append(m.rows[st.BatchID], st)
	}
	return nil
}

func (m *mockSnapshotRepo) ListByBatch(ctx context.Context, batchID string) ([]models.GraduationStudent, error) {
	return m.rows[batchID], nil
}

func (m *mockSnapshotRepo) ListPassingForUpdate(ctx context.Context, tx *sqlx.Tx, batchID string) ([]models.GraduationStudent, error) {
	var passing []models.GraduationStudent
	for _, st := range m.rows[batchID] {
		if st.FinalResultStatus == models.ResultPass {
			passing = append(passing, st)
		}
	}
	return passing, nil
}

type mockEligibility struct {
	students  []models.GraduationStudent
	err       error
	calls     int
	lastScope EligibilityScope
}

func (m *mockEligibility) Evaluate(ctx context.Context, scope EligibilityScope) ([]models.GraduationStudent, error) {
	m.calls++
	m.lastScope = scope
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.GraduationStudent, len(m.students))
	copy(out, m.students)
	return out, nil
}

type mockAudit struct {
	actions []string
}

func (m *mockAudit) Log(ctx context.Context, tx *sqlx.Tx, actor models.Actor, entityType, entityID, action string, metadata interface{}) error {
	m.actions = append(m.actions, entityType+":"+action)
	return nil
}

var testActor = models.Actor{UserID: "user-1", OrganizationID: "org-1", SchoolID: "school-1"}

func newBatchServiceFixture(batch *models.GraduationBatch) (*BatchService, *mockBatchRepo, *mockSnapshotRepo, *mockEligibility, *mockAudit) {
	batches := &mockBatchRepo{batches: map[string]models.GraduationBatch{}}
	if batch != nil {
		batches.batches[batch.ID] = *batch
	}
	snapshots := &mockSnapshotRepo{rows: map[string][]models.GraduationStudent{}}
	eligibility := &mockEligibility{}
	audit := &mockAudit{}
	svc := NewBatchService(batches, snapshots, eligibility, audit, &mockTx{}, nil, nil, nil)
	return svc, batches, snapshots, eligibility, audit
}

func draftBatch() *models.GraduationBatch {
	return &models.GraduationBatch{
		ID:             "batch-1",
		OrganizationID: "org-1",
		SchoolID:       "school-1",
		AcademicYearID: "ay-1",
		ClassID:        "class-1",
		GraduationDate: time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
		Status:         models.BatchStatusDraft,
		Exams:          []models.GraduationBatchExam{{ExamID: "exam-1"}},
	}
}

func TestCreateBatchValidation(t *testing.T) {
	svc, _, _, _, _ := newBatchServiceFixture(nil)
	_, err := svc.Create(context.Background(), CreateBatchRequest{ClassID: "class-1"}, testActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateBatchAudited(t *testing.T) {
	svc, batches, _, _, audit := newBatchServiceFixture(nil)
	batch, err := svc.Create(context.Background(), CreateBatchRequest{
		AcademicYearID: "ay-1",
		ClassID:        "class-1",
		GraduationDate: time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
		Exams:          []BatchExamInput{{ExamID: "exam-1"}},
	}, testActor)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusDraft, batch.Status)
	assert.Equal(t, "user-1", batch.CreatedBy)
	assert.Contains(t, audit.actions, "graduation_batch:create")
	assert.Len(t, batches.batches, 1)
}

func TestUpdateBatchRejectsNonDraft(t *testing.T) {
	batch := draftBatch()
	batch.Status = models.BatchStatusApproved
	svc, _, _, _, _ := newBatchServiceFixture(batch)

	classID := "class-2"
	_, err := svc.Update(context.Background(), batch.ID, UpdateBatchRequest{ClassID: &classID}, testActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestGenerateStudentsReplacesSnapshot(t *testing.T) {
	svc, _, snapshots, eligibility, audit := newBatchServiceFixture(draftBatch())
	eligibility.students = []models.GraduationStudent{
		{StudentID: "stu-a", FinalResultStatus: models.ResultPass, Eligibility: models.EligibilityReport{Percentage: f(90)}},
		{StudentID: "stu-b", FinalResultStatus: models.ResultFail},
	}

	result, err := svc.GenerateStudents(context.Background(), "batch-1", testActor)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, snapshots.rows["batch-1"], 2)
	assert.Contains(t, audit.actions, "graduation_batch:generate_students")

	// Regeneration while draft discards the previous snapshot.
	_, err = svc.GenerateStudents(context.Background(), "batch-1", testActor)
	require.NoError(t, err)
	assert.Equal(t, 2, snapshots.deletes)
	assert.Len(t, snapshots.rows["batch-1"], 2)
	assert.Equal(t, 2, eligibility.calls)
}

func TestGenerateStudentsScopesEvaluation(t *testing.T) {
	batch := draftBatch()
	batch.MinAttendancePct = f(75)
	batch.ExcludeLeaves = true
	svc, _, _, eligibility, _ := newBatchServiceFixture(batch)

	_, err := svc.GenerateStudents(context.Background(), "batch-1", testActor)
	require.NoError(t, err)

	scope := eligibility.lastScope
	assert.Equal(t, "org-1", scope.OrganizationID)
	assert.Equal(t, "ay-1", scope.AcademicYearID, "evaluation must target the batch's academic year")
	assert.Equal(t, "class-1", scope.ClassID)
	require.NotNil(t, scope.MinAttendancePct)
	assert.InDelta(t, 75.0, *scope.MinAttendancePct, 0.001)
	assert.True(t, scope.ExcludeLeaves)
	require.Len(t, scope.Exams, 1)
	assert.Equal(t, "exam-1", scope.Exams[0].ExamID)
}

func TestGenerateStudentsRejectsApprovedBatch(t *testing.T) {
	batch := draftBatch()
	batch.Status = models.BatchStatusApproved
	svc, _, _, eligibility, _ := newBatchServiceFixture(batch)

	_, err := svc.GenerateStudents(context.Background(), "batch-1", testActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Zero(t, eligibility.calls)
}

func TestGenerateStudentsUnknownBatch(t *testing.T) {
	svc, _, _, _, _ := newBatchServiceFixture(nil)
	_, err := svc.GenerateStudents(context.Background(), "missing", testActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApproveSetsApproverAndAudits(t *testing.T) {
	svc, batches, _, _, audit := newBatchServiceFixture(draftBatch())

	approved, err := svc.Approve(context.Background(), "batch-1", testActor)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "user-1", *approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)
	assert.Contains(t, audit.actions, "graduation_batch:approve")
	assert.Equal(t, []models.BatchStatus{models.BatchStatusApproved}, batches.statuses)

	// Second approve sees the non-draft row and fails.
	_, err = svc.Approve(context.Background(), "batch-1", testActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestExportStudentsCSVDataset(t *testing.T) {
	svc, _, snapshots, _, _ := newBatchServiceFixture(draftBatch())
	pos := 1
	snapshots.rows["batch-1"] = []models.GraduationStudent{
		{
			BatchID:           "batch-1",
			StudentID:         "stu-a",
			StudentName:       "Alice",
			FinalResultStatus: models.ResultPass,
			Position:          &pos,
			Eligibility:       models.EligibilityReport{Percentage: f(91.5)},
		},
		{
			BatchID:           "batch-1",
			StudentID:         "stu-b",
			StudentName:       "Budi",
			FinalResultStatus: models.ResultFail,
			Eligibility: models.EligibilityReport{
				Issues: []models.EligibilityIssue{{Type: models.IssueAbsent}, {Type: models.IssueBelowPassing}},
			},
		},
	}

	dataset, err := svc.ExportStudents(context.Background(), "batch-1", testActor)
	require.NoError(t, err)
	require.Len(t, dataset.Rows, 2)
	assert.Equal(t, "91.50", dataset.Rows[0]["percentage"])
	assert.Equal(t, "1", dataset.Rows[0]["position"])
	assert.Equal(t, "absent;below_passing", dataset.Rows[1]["issues"])
}
