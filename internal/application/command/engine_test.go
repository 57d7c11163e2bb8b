package command_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fastresult/results-core/internal/application/command"
	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/gpa"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/fastresult/results-core/internal/infrastructure/gradescale"
	"github.com/fastresult/results-core/internal/infrastructure/persistence/memory"
	"github.com/fastresult/results-core/internal/infrastructure/rolegate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

const (
	lecturer = "lecturer-1"
	hod      = "hod-cs"
	officer  = "officer-1"
	dean     = "dean-sci"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) transitionsTo(to result.Status) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if t, ok := ev.(shared.ResultTransitionedEvent); ok && t.To == to.String() {
			n++
		}
	}
	return n
}

type fixture struct {
	t         *testing.T
	db        *memory.DB
	tx        *memory.Transactor
	engine    *command.Engine
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog := memory.NewCatalog()
	for _, c := range []result.Course{
		{ID: "CSC301", CreditHours: 3},
		{ID: "MTH201", CreditHours: 2},
		{ID: "LAW101", CreditHours: 12},
		{ID: "ENG101", CreditHours: 15},
	} {
		c.Code = c.ID
		c.DepartmentID = "cs"
		c.FacultyID = "science"
		c.UniversityID = "uni"
		catalog.AddCourse(c)
	}

	assignments := memory.NewAssignments()
	for _, course := range []string{"CSC301", "MTH201", "LAW101", "ENG101"} {
		assignments.Grant(lecturer, approval.RoleLecturer, approval.ScopeCourse, course)
	}
	assignments.Grant(hod, approval.RoleHOD, approval.ScopeDepartment, "cs")
	assignments.Grant(officer, approval.RoleExamOfficer, approval.ScopeUniversity, "uni")
	assignments.Grant(dean, approval.RoleDean, approval.ScopeFaculty, "science")

	db := memory.NewDB()
	tx := memory.NewTransactor(db)
	publisher := &recordingPublisher{}

	var seq atomic.Int64
	engine := command.NewEngine(
		tx,
		rolegate.New(assignments, catalog),
		gradescale.NewRegistry(),
		catalog,
		publisher,
		command.EngineConfig{BulkBatchSize: 2},
		command.WithClock(func() time.Time { return time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC) }),
		command.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	)

	return &fixture{t: t, db: db, tx: tx, engine: engine, publisher: publisher}
}

type mark struct {
	name     string
	obtained string
	total    int64
	weight   string
}

func (f *fixture) draft(student, course, semester string, marks ...mark) string {
	f.t.Helper()
	ctx := context.Background()

	created, err := f.engine.CreateDraft(ctx, command.CreateDraftCommand{
		StudentID: student, CourseID: course, SemesterID: semester, ActorID: lecturer,
	})
	require.NoError(f.t, err)

	for _, m := range marks {
		cmd := command.RecordComponentCommand{
			ResultID:   created.Result.ID,
			ActorID:    lecturer,
			Name:       m.name,
			MarksTotal: decimal.NewFromInt(m.total),
		}
		if m.obtained != "" {
			v := decimal.RequireFromString(m.obtained)
			cmd.MarksObtained = &v
		}
		if m.weight != "" {
			w := decimal.RequireFromString(m.weight)
			cmd.Weight = &w
		}
		_, err := f.engine.RecordComponent(ctx, cmd)
		require.NoError(f.t, err)
	}
	return created.Result.ID
}

func (f *fixture) advance(resultID, actor string, to result.Status, notes string) (*command.TransitionOutcome, error) {
	return f.engine.AdvanceResult(context.Background(), command.AdvanceResultCommand{
		ResultID:     resultID,
		ActorID:      actor,
		TargetStatus: to,
		Notes:        notes,
	})
}

func (f *fixture) mustAdvance(resultID, actor string, to result.Status, notes string) *command.TransitionOutcome {
	f.t.Helper()
	out, err := f.advance(resultID, actor, to, notes)
	require.NoError(f.t, err)
	return out
}

// approve walks a draft through submit, review and approval.
func (f *fixture) approve(resultID string) *command.TransitionOutcome {
	f.t.Helper()
	f.mustAdvance(resultID, lecturer, result.StatusSubmitted, "")
	f.mustAdvance(resultID, hod, result.StatusUnderReview, "")
	return f.mustAdvance(resultID, officer, result.StatusApproved, "")
}

func (f *fixture) status(resultID string) result.Status {
	f.t.Helper()
	var st result.Status
	require.NoError(f.t, f.tx.InReadTx(context.Background(), func(ctx context.Context, uow approval.UnitOfWork) error {
		r, err := uow.Results().GetByID(ctx, resultID)
		if err != nil {
			return err
		}
		st = r.Status
		return nil
	}))
	return st
}

func (f *fixture) audit(resultID string) []*approval.AuditEntry {
	f.t.Helper()
	var entries []*approval.AuditEntry
	require.NoError(f.t, f.tx.InReadTx(context.Background(), func(ctx context.Context, uow approval.UnitOfWork) error {
		var err error
		entries, err = uow.Audit().ListByResult(ctx, resultID)
		return err
	}))
	return entries
}

func (f *fixture) cgpa(studentID string) gpa.Aggregate {
	f.t.Helper()
	var agg gpa.Aggregate
	require.NoError(f.t, f.tx.InReadTx(context.Background(), func(ctx context.Context, uow approval.UnitOfWork) error {
		rec, err := uow.Aggregates().GetCumulative(ctx, studentID)
		if err != nil {
			return err
		}
		agg = rec.Aggregate
		return nil
	}))
	return agg
}

func (f *fixture) hasGrade(resultID string) bool {
	f.t.Helper()
	found := false
	require.NoError(f.t, f.tx.InReadTx(context.Background(), func(ctx context.Context, uow approval.UnitOfWork) error {
		_, err := uow.Results().Grade(ctx, resultID)
		if shared.IsNotFound(err) {
			return nil
		}
		found = err == nil
		return err
	}))
	return found
}

// ══════════════════════════════════════════════════════════════════════════════
// SCENARIOS
// ══════════════════════════════════════════════════════════════════════════════

func TestAdvance_ApprovalWritesGradeAndAggregates(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1",
		mark{name: "CA", obtained: "18", total: 20, weight: "1"},
		mark{name: "Exam", obtained: "55", total: 80, weight: "2"},
	)

	out := f.approve(id)

	assert.Equal(t, result.StatusUnderReview, out.From)
	assert.Equal(t, result.StatusApproved, out.To)
	require.NotNil(t, out.Grade)
	assert.Equal(t, "75.83", out.Grade.TotalScore.StringFixed(2))
	assert.Equal(t, "C", out.Grade.LetterGrade)
	assert.True(t, out.Grade.GradePoint.Equal(decimal.RequireFromString("2.0")))

	require.NotNil(t, out.Aggregates)
	sem := out.Aggregates.Semester("2025-1")
	require.NotNil(t, sem)
	assert.Equal(t, "2.000", sem.Display())
	assert.Equal(t, 3, sem.TotalCredits)
	assert.Equal(t, "2.000", f.cgpa("S1").Display())

	assert.Equal(t, 1, f.publisher.transitionsTo(result.StatusApproved))
}

func TestAdvance_ZeroWeightsRejectedOnSubmit(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1",
		mark{name: "CA", obtained: "10", total: 20, weight: "0"},
		mark{name: "Exam", obtained: "40", total: 80, weight: "0"},
	)

	_, err := f.advance(id, lecturer, result.StatusSubmitted, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidWeights)
	assert.Equal(t, shared.CategoryValidation, shared.Category(err))
	assert.Equal(t, result.StatusDraft, f.status(id))

	entries := f.audit(id)
	last := entries[len(entries)-1]
	assert.True(t, last.IsFailure())
	assert.Equal(t, "draft", last.FromStatus)
	assert.Equal(t, "submitted", last.ToStatus)
	assert.NotEmpty(t, last.Error)
}

func TestAdvance_RoleCheckPrecedesStateCheck(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "50", total: 100})
	f.mustAdvance(id, lecturer, result.StatusSubmitted, "")

	_, err := f.advance(id, lecturer, result.StatusApproved, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrActorForbidden)
	assert.False(t, errors.Is(err, shared.ErrTransitionDenied))
	assert.Equal(t, shared.CategoryForbidden, shared.Category(err))
	assert.Equal(t, result.StatusSubmitted, f.status(id))
}

func TestAdvance_CGPAAcrossSemesters(t *testing.T) {
	f := newFixture(t)
	a := f.draft("S1", "LAW101", "2025-1", mark{name: "Exam", obtained: "85", total: 100})
	b := f.draft("S1", "ENG101", "2025-2", mark{name: "Exam", obtained: "75", total: 100})

	f.approve(a)
	out := f.approve(b)

	semA := out.Aggregates.Semester("2025-1")
	semB := out.Aggregates.Semester("2025-2")
	require.NotNil(t, semA)
	require.NotNil(t, semB)
	assert.Equal(t, "3.000", semA.Display())
	assert.Equal(t, 12, semA.TotalCredits)
	assert.Equal(t, "2.000", semB.Display())
	assert.Equal(t, 15, semB.TotalCredits)

	cgpa := f.cgpa("S1")
	assert.Equal(t, "2.444", cgpa.Display())
	assert.Equal(t, 27, cgpa.TotalCredits)
	assert.True(t, cgpa.QualityPoints.Equal(decimal.NewFromInt(66)))
}

func TestBulkAdvance_PublishedResultIsIdempotentSuccess(t *testing.T) {
	f := newFixture(t)
	done := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "91", total: 100})
	f.approve(done)
	f.mustAdvance(done, officer, result.StatusPublished, "")

	var pending []string
	for _, student := range []string{"S2", "S3"} {
		id := f.draft(student, "CSC301", "2025-1", mark{name: "Exam", obtained: "64", total: 100})
		f.mustAdvance(id, lecturer, result.StatusSubmitted, "")
		f.mustAdvance(id, hod, result.StatusUnderReview, "")
		pending = append(pending, id)
	}

	out, err := f.engine.BulkAdvance(context.Background(), command.BulkAdvanceCommand{
		ResultIDs:    []string{pending[0], done, pending[1]},
		ActorID:      officer,
		TargetStatus: result.StatusApproved,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, out.Succeeded)
	assert.Equal(t, 0, out.Failed)
	require.Len(t, out.Items, 3)
	assert.False(t, out.Items[0].NoOp)
	assert.True(t, out.Items[1].NoOp)
	assert.Equal(t, result.StatusPublished, out.Items[1].To)
	assert.False(t, out.Items[2].NoOp)

	assert.Equal(t, result.StatusApproved, f.status(pending[0]))
	assert.Equal(t, result.StatusPublished, f.status(done))
	assert.Equal(t, result.StatusApproved, f.status(pending[1]))
}

func TestBulkAdvance_PartialFailure(t *testing.T) {
	f := newFixture(t)
	ready := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "70", total: 100})
	f.mustAdvance(ready, lecturer, result.StatusSubmitted, "")
	f.mustAdvance(ready, hod, result.StatusUnderReview, "")
	stillDraft := f.draft("S2", "CSC301", "2025-1", mark{name: "Exam", obtained: "70", total: 100})

	out, err := f.engine.BulkAdvance(context.Background(), command.BulkAdvanceCommand{
		ResultIDs:    []string{ready, stillDraft, "missing"},
		ActorID:      officer,
		TargetStatus: result.StatusApproved,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 2, out.Failed)
	assert.True(t, out.Items[0].Success)
	assert.Equal(t, shared.CategoryIllegalTransition, out.Items[1].Category)
	assert.Equal(t, shared.CategoryNotFound, out.Items[2].Category)

	assert.Equal(t, result.StatusApproved, f.status(ready))
	assert.Equal(t, result.StatusDraft, f.status(stillDraft))
	assert.True(t, f.audit(stillDraft)[len(f.audit(stillDraft))-1].IsFailure())
}

func TestBulkAdvance_MalformedIDsAreAudited(t *testing.T) {
	f := newFixture(t)
	ready := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "70", total: 100})
	f.mustAdvance(ready, lecturer, result.StatusSubmitted, "")
	f.mustAdvance(ready, hod, result.StatusUnderReview, "")

	padded := " " + ready
	out, err := f.engine.BulkAdvance(context.Background(), command.BulkAdvanceCommand{
		ResultIDs:    []string{padded, ready, "  "},
		ActorID:      officer,
		TargetStatus: result.StatusApproved,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 2, out.Failed)
	assert.Equal(t, shared.CategoryValidation, out.Items[0].Category)
	assert.True(t, out.Items[1].Success)
	assert.Equal(t, shared.CategoryValidation, out.Items[2].Category)

	// Отказ по кривому id попадает в журнал, как и любой другой отказ.
	entries := f.audit(padded)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsFailure())
	assert.Equal(t, officer, entries[0].ActorID)
	assert.Contains(t, entries[0].Error, "invalid ID")
	require.NoError(t, approval.VerifyChain(entries))

	// У пустого id цепочки нет.
	assert.Empty(t, f.audit("  "))
	assert.Equal(t, result.StatusApproved, f.status(ready))
}

// ══════════════════════════════════════════════════════════════════════════════
// PROPERTIES
// ══════════════════════════════════════════════════════════════════════════════

func TestAdvance_NoSkippedStates(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "50", total: 100})

	for _, actor := range []string{lecturer, hod, officer, dean} {
		_, err := f.advance(id, actor, result.StatusApproved, "")
		require.Error(t, err, actor)
		assert.True(t, shared.IsForbidden(err) || shared.IsIllegalTransition(err), actor)
	}
	assert.Equal(t, result.StatusDraft, f.status(id))
	assert.False(t, f.hasGrade(id))
}

func TestAdvance_ConcurrentApprovalsCommitOnce(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "82", total: 100})
	f.mustAdvance(id, lecturer, result.StatusSubmitted, "")
	f.mustAdvance(id, hod, result.StatusUnderReview, "")

	// Память сериализует все транзакции целиком, поэтому здесь проверяется
	// только идемпотентность повтора. Гарантию для PostgreSQL дают
	// SELECT ... FOR UPDATE в result_repo.go и advisory lock в aggregate_repo.go;
	// она проверяется чтением этого кода, а не этим тестом.
	const callers = 2
	var wg sync.WaitGroup
	outcomes := make([]*command.TransitionOutcome, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = f.advance(id, officer, result.StatusApproved, "")
		}(i)
	}
	wg.Wait()

	transitioned := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		if !outcomes[i].NoOp {
			transitioned++
		}
	}
	assert.Equal(t, 1, transitioned)
	assert.Equal(t, 1, f.publisher.transitionsTo(result.StatusApproved))
	assert.Equal(t, 3, f.cgpa("S1").TotalCredits)
}

func TestAdvance_ReturnAndReapproveCountsLatestGradeOnly(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "95", total: 100})
	f.approve(id)
	assert.Equal(t, "4.000", f.cgpa("S1").Display())

	out := f.mustAdvance(id, hod, result.StatusDraft, "exam script re-marked")
	assert.Equal(t, result.StatusDraft, out.To)
	assert.False(t, f.hasGrade(id))
	require.NotNil(t, out.Aggregates)
	assert.True(t, out.Aggregates.Cumulative.IsEmpty())

	var components []*result.Component
	require.NoError(t, f.tx.InReadTx(context.Background(), func(ctx context.Context, uow approval.UnitOfWork) error {
		var err error
		components, err = uow.Results().Components(ctx, id)
		return err
	}))
	require.Len(t, components, 1)

	remarked := decimal.NewFromInt(65)
	_, err := f.engine.RecordComponent(context.Background(), command.RecordComponentCommand{
		ResultID:      id,
		ComponentID:   components[0].ID,
		ActorID:       lecturer,
		Name:          "Exam",
		MarksObtained: &remarked,
		MarksTotal:    decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	approved := f.approve(id)
	assert.Equal(t, "D", approved.Grade.LetterGrade)

	cgpa := f.cgpa("S1")
	assert.Equal(t, "1.000", cgpa.Display())
	assert.Equal(t, 3, cgpa.TotalCredits)
}

func TestAdvance_IdempotentRepeat(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "50", total: 100})

	first := f.mustAdvance(id, lecturer, result.StatusSubmitted, "")
	second := f.mustAdvance(id, lecturer, result.StatusSubmitted, "")

	assert.False(t, first.NoOp)
	assert.True(t, second.NoOp)
	assert.Equal(t, 1, f.publisher.transitionsTo(result.StatusSubmitted))
}

func TestAdvance_HODApprovalIsObservable(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "88", total: 100})
	f.mustAdvance(id, lecturer, result.StatusSubmitted, "")
	f.mustAdvance(id, hod, result.StatusUnderReview, "")

	_, err := f.advance(id, hod, result.StatusApproved, "")
	assert.ErrorIs(t, err, shared.ErrActorForbidden)

	f.mustAdvance(id, hod, result.StatusHODApproved, "")
	assert.Equal(t, result.StatusHODApproved, f.status(id))

	out := f.mustAdvance(id, officer, result.StatusApproved, "")
	assert.Equal(t, result.StatusHODApproved, out.From)
	assert.Equal(t, "B", out.Grade.LetterGrade)
}

func TestAdvance_CorrectiveTransitionsNeedReason(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "50", total: 100})
	f.mustAdvance(id, lecturer, result.StatusSubmitted, "")

	_, err := f.advance(id, officer, result.StatusRejected, "   ")
	assert.ErrorIs(t, err, shared.ErrReasonRequired)
	assert.Equal(t, shared.CategoryValidation, shared.Category(err))
	assert.Equal(t, result.StatusSubmitted, f.status(id))

	f.mustAdvance(id, officer, result.StatusRejected, "wrong course code")
	assert.Equal(t, result.StatusRejected, f.status(id))
	assert.False(t, f.hasGrade(id))

	f.mustAdvance(id, dean, result.StatusDraft, "resubmit under the right code")
	assert.Equal(t, result.StatusDraft, f.status(id))
}

func TestAdvance_AuditFailureAbortsCommit(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "50", total: 100})

	sinkDown := errors.New("audit sink unavailable")
	f.db.FailAuditWhen(func(entry *approval.AuditEntry) error {
		if entry.IsFailure() {
			return nil
		}
		return sinkDown
	})

	_, err := f.advance(id, lecturer, result.StatusSubmitted, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, sinkDown)

	f.db.FailAuditWhen(nil)
	assert.Equal(t, result.StatusDraft, f.status(id))
	assert.Equal(t, 0, f.publisher.transitionsTo(result.StatusSubmitted))

	entries := f.audit(id)
	last := entries[len(entries)-1]
	assert.True(t, last.IsFailure())
	assert.Contains(t, last.Error, "audit sink unavailable")
}

func TestAdvance_AuditChainVerifies(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "77", total: 100})
	f.mustAdvance(id, lecturer, result.StatusSubmitted, "")
	_, _ = f.advance(id, lecturer, result.StatusPublished, "")
	f.mustAdvance(id, hod, result.StatusUnderReview, "")

	entries := f.audit(id)
	require.NoError(t, approval.VerifyChain(entries))

	failures := 0
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
		if e.IsFailure() {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestAdvance_UnknownTargetStatus(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1")

	_, err := f.advance(id, officer, result.Status("archived"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidStatus)
	assert.True(t, shared.IsValidation(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// DRAFT EDITING
// ══════════════════════════════════════════════════════════════════════════════

func TestCreateDraft_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cmd := command.CreateDraftCommand{StudentID: "S1", CourseID: "CSC301", SemesterID: "2025-1", ActorID: lecturer}

	first, err := f.engine.CreateDraft(ctx, cmd)
	require.NoError(t, err)
	second, err := f.engine.CreateDraft(ctx, cmd)
	require.NoError(t, err)

	assert.False(t, first.Existing)
	assert.True(t, second.Existing)
	assert.Equal(t, first.Result.ID, second.Result.ID)
}

func TestCreateDraft_RequiresCourseLecturer(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateDraft(context.Background(), command.CreateDraftCommand{
		StudentID: "S1", CourseID: "CSC301", SemesterID: "2025-1", ActorID: hod,
	})
	assert.ErrorIs(t, err, shared.ErrActorForbidden)

	_, err = f.engine.CreateDraft(context.Background(), command.CreateDraftCommand{
		StudentID: "S1", CourseID: "GHOST", SemesterID: "2025-1", ActorID: lecturer,
	})
	assert.True(t, shared.IsConfiguration(err))
}

func TestRecordComponent_LockedAfterSubmit(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "50", total: 100})
	f.mustAdvance(id, lecturer, result.StatusSubmitted, "")

	_, err := f.engine.RecordComponent(context.Background(), command.RecordComponentCommand{
		ResultID:   id,
		ActorID:    lecturer,
		Name:       "Lab",
		MarksTotal: decimal.NewFromInt(10),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrResultLocked)

	entries := f.audit(id)
	assert.True(t, entries[len(entries)-1].IsFailure())
}

func TestRecordComponent_InvalidMarks(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1")
	over := decimal.NewFromInt(120)

	_, err := f.engine.RecordComponent(context.Background(), command.RecordComponentCommand{
		ResultID:      id,
		ActorID:       lecturer,
		Name:          "Exam",
		MarksObtained: &over,
		MarksTotal:    decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidComponent)
}

func TestRemoveComponent(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "50", total: 100})

	var componentID string
	require.NoError(t, f.tx.InReadTx(context.Background(), func(ctx context.Context, uow approval.UnitOfWork) error {
		list, err := uow.Results().Components(ctx, id)
		if err != nil {
			return err
		}
		componentID = list[0].ID
		return nil
	}))

	require.NoError(t, f.engine.RemoveComponent(context.Background(), command.RemoveComponentCommand{
		ResultID: id, ComponentID: componentID, ActorID: lecturer,
	}))

	_, err := f.advance(id, lecturer, result.StatusSubmitted, "")
	assert.ErrorIs(t, err, shared.ErrIncompleteResult)
}

func TestRecomputeAggregates_RepairsDrift(t *testing.T) {
	f := newFixture(t)
	id := f.draft("S1", "CSC301", "2025-1", mark{name: "Exam", obtained: "95", total: 100})
	f.approve(id)

	require.NoError(t, f.tx.InTx(context.Background(), func(ctx context.Context, uow approval.UnitOfWork) error {
		return uow.Aggregates().SaveCumulative(ctx, &gpa.CumulativeRecord{StudentID: "S1"})
	}))

	out, err := f.engine.RecomputeAggregates(context.Background(), command.RecomputeAggregatesCommand{StudentID: "S1"})
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, "4.000", f.cgpa("S1").Display())

	again, err := f.engine.RecomputeAggregates(context.Background(), command.RecomputeAggregatesCommand{StudentID: "S1"})
	require.NoError(t, err)
	assert.False(t, again.Changed)
}
