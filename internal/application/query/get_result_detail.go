// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/grading"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RESULT DETAIL QUERY
// Результат со всеми компонентами, предварительным баллом и оценкой.
// ══════════════════════════════════════════════════════════════════════════════

// GetResultDetailQuery содержит параметры запроса.
type GetResultDetailQuery struct {
	ResultID string
}

// Validate проверяет корректность параметров запроса.
func (q GetResultDetailQuery) Validate() error {
	return shared.RequireID("result id", q.ResultID)
}

// ComponentDTO - компонент результата.
type ComponentDTO struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	MarksObtained *string `json:"marks_obtained,omitempty"`
	MarksTotal    string  `json:"marks_total"`
	Weight        string  `json:"weight"`
}

// GradeDTO - итоговая оценка.
type GradeDTO struct {
	TotalScore  string    `json:"total_score"`
	LetterGrade string    `json:"letter_grade"`
	GradePoint  string    `json:"grade_point"`
	ScaleName   string    `json:"scale_name"`
	ComputedAt  time.Time `json:"computed_at"`
}

// ResultDetailDTO - результат целиком.
type ResultDetailDTO struct {
	ID         string `json:"id"`
	StudentID  string `json:"student_id"`
	CourseID   string `json:"course_id"`
	SemesterID string `json:"semester_id"`
	Status     string `json:"status"`
	Version    int    `json:"version"`

	Components []ComponentDTO `json:"components"`

	// ProvisionalScore - балл по текущим компонентам, если его можно посчитать.
	// Это не оценка: оценка появляется только при утверждении.
	ProvisionalScore *string `json:"provisional_score,omitempty"`

	// Grade - есть только у approved и published результатов.
	Grade *GradeDTO `json:"grade,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// GetResultDetailHandler обрабатывает запрос.
type GetResultDetailHandler struct {
	tx approval.Transactor
}

// NewGetResultDetailHandler создаёт обработчик.
func NewGetResultDetailHandler(tx approval.Transactor) *GetResultDetailHandler {
	return &GetResultDetailHandler{tx: tx}
}

// Handle выполняет запрос.
func (h *GetResultDetailHandler) Handle(ctx context.Context, q GetResultDetailQuery) (*ResultDetailDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_result_detail: %w", err)
	}

	var dto *ResultDetailDTO
	err := h.tx.InReadTx(ctx, func(ctx context.Context, uow approval.UnitOfWork) error {
		store := result.NewStore(uow.Results())

		r, err := uow.Results().GetByID(ctx, q.ResultID)
		if err != nil {
			return err
		}
		components, err := store.Components(ctx, r.ID)
		if err != nil {
			return err
		}

		dto = &ResultDetailDTO{
			ID:         r.ID,
			StudentID:  r.StudentID,
			CourseID:   r.CourseID,
			SemesterID: r.SemesterID,
			Status:     r.Status.String(),
			Version:    r.Version,
			Components: make([]ComponentDTO, 0, len(components)),
			UpdatedAt:  r.UpdatedAt,
		}
		for _, c := range components {
			dto.Components = append(dto.Components, toComponentDTO(c))
		}

		if score, err := grading.ComputeScore(result.Marks(components)); err == nil {
			s := score.StringFixed(grading.ScorePrecision)
			dto.ProvisionalScore = &s
		}

		grade, err := store.Grade(ctx, r.ID)
		switch {
		case err == nil:
			dto.Grade = toGradeDTO(grade)
		case shared.IsNotFound(err):
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get_result_detail: %w", err)
	}
	return dto, nil
}

func toComponentDTO(c *result.Component) ComponentDTO {
	dto := ComponentDTO{
		ID:         c.ID,
		Name:       c.Name,
		MarksTotal: c.MarksTotal.String(),
		Weight:     c.Weight.String(),
	}
	if c.MarksObtained != nil {
		v := c.MarksObtained.String()
		dto.MarksObtained = &v
	}
	return dto
}

func toGradeDTO(g *result.Grade) *GradeDTO {
	return &GradeDTO{
		TotalScore:  g.TotalScore.StringFixed(grading.ScorePrecision),
		LetterGrade: g.LetterGrade,
		GradePoint:  g.GradePoint.StringFixed(1),
		ScaleName:   g.ScaleName,
		ComputedAt:  g.ComputedAt,
	}
}
