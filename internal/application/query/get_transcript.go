package query

import (
	"context"
	"fmt"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/gpa"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TRANSCRIPT QUERY
// Выписка студента: только опубликованные результаты.
// Утверждённые, но не опубликованные оценки студент не видит, поэтому
// GPA выписки считается по опубликованным оценкам, а не берётся из агрегатов.
// ══════════════════════════════════════════════════════════════════════════════

// GetTranscriptQuery содержит параметры запроса.
type GetTranscriptQuery struct {
	StudentID string
}

// Validate проверяет корректность параметров запроса.
func (q GetTranscriptQuery) Validate() error {
	return shared.RequireID("student id", q.StudentID)
}

// TranscriptLineDTO - один курс выписки.
type TranscriptLineDTO struct {
	ResultID    string `json:"result_id"`
	CourseID    string `json:"course_id"`
	CourseCode  string `json:"course_code"`
	CreditHours int    `json:"credit_hours"`
	TotalScore  string `json:"total_score"`
	LetterGrade string `json:"letter_grade"`
	GradePoint  string `json:"grade_point"`
}

// TranscriptSemesterDTO - семестр выписки.
type TranscriptSemesterDTO struct {
	SemesterID   string              `json:"semester_id"`
	Courses      []TranscriptLineDTO `json:"courses"`
	GPA          string              `json:"gpa"`
	TotalCredits int                 `json:"total_credits"`
}

// TranscriptDTO - выписка целиком.
type TranscriptDTO struct {
	StudentID    string                  `json:"student_id"`
	Semesters    []TranscriptSemesterDTO `json:"semesters"`
	CGPA         string                  `json:"cgpa"`
	TotalCredits int                     `json:"total_credits"`
}

// GetTranscriptHandler обрабатывает запрос.
type GetTranscriptHandler struct {
	tx      approval.Transactor
	catalog result.CourseCatalog
}

// NewGetTranscriptHandler создаёт обработчик.
func NewGetTranscriptHandler(tx approval.Transactor, catalog result.CourseCatalog) *GetTranscriptHandler {
	return &GetTranscriptHandler{tx: tx, catalog: catalog}
}

// Handle выполняет запрос.
func (h *GetTranscriptHandler) Handle(ctx context.Context, q GetTranscriptQuery) (*TranscriptDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_transcript: %w", err)
	}

	type line struct {
		r     *result.Result
		grade *result.Grade
	}
	var lines []line

	err := h.tx.InReadTx(ctx, func(ctx context.Context, uow approval.UnitOfWork) error {
		lines = nil
		results, err := uow.Results().ListByStudent(ctx, q.StudentID)
		if err != nil {
			return err
		}
		for _, r := range results {
			if !r.Status.IsVisibleToStudent() {
				continue
			}
			g, err := uow.Results().Grade(ctx, r.ID)
			if err != nil {
				return fmt.Errorf("published result %s: %w", r.ID, err)
			}
			lines = append(lines, line{r: r, grade: g})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get_transcript: %w", err)
	}

	dto := &TranscriptDTO{StudentID: q.StudentID, Semesters: []TranscriptSemesterDTO{}}
	var (
		current    *TranscriptSemesterDTO
		entries    []gpa.Entry
		aggregates []gpa.Aggregate
	)
	flush := func() {
		if current == nil {
			return
		}
		agg := gpa.ComputeSemesterGPA(entries)
		current.GPA = agg.Display()
		current.TotalCredits = agg.TotalCredits
		aggregates = append(aggregates, agg)
		dto.Semesters = append(dto.Semesters, *current)
		current, entries = nil, nil
	}

	// ListByStudent упорядочен по семестру, затем по курсу.
	for _, l := range lines {
		if current == nil || current.SemesterID != l.r.SemesterID {
			flush()
			current = &TranscriptSemesterDTO{SemesterID: l.r.SemesterID, Courses: []TranscriptLineDTO{}}
		}

		course, err := h.catalog.Course(ctx, l.r.CourseID)
		if err != nil {
			return nil, fmt.Errorf("get_transcript: %w", err)
		}
		hours, err := result.CreditLookup(ctx, h.catalog, l.r.CourseID)
		if err != nil {
			return nil, fmt.Errorf("get_transcript: %w", err)
		}

		current.Courses = append(current.Courses, TranscriptLineDTO{
			ResultID:    l.r.ID,
			CourseID:    l.r.CourseID,
			CourseCode:  course.Code,
			CreditHours: hours,
			TotalScore:  l.grade.TotalScore.StringFixed(2),
			LetterGrade: l.grade.LetterGrade,
			GradePoint:  l.grade.GradePoint.StringFixed(1),
		})
		entries = append(entries, gpa.Entry{GradePoint: l.grade.GradePoint, CreditHours: hours})
	}
	flush()

	cgpa := gpa.ComputeCGPA(aggregates)
	dto.CGPA = cgpa.Display()
	dto.TotalCredits = cgpa.TotalCredits
	return dto, nil
}
