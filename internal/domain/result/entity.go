// Package result содержит доменную модель результата студента по курсу за семестр:
// сам результат, его взвешенные компоненты и итоговую оценку.
// Статус меняет только движок утверждения; компоненты меняются только в draft.
package result

import (
	"fmt"
	"strings"
	"time"

	"github.com/fastresult/results-core/internal/domain/grading"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: RESULT
// ══════════════════════════════════════════════════════════════════════════════

// Result - результат студента по курсу за семестр.
// Уникален по тройке (StudentID, CourseID, SemesterID).
type Result struct {
	ID         string
	StudentID  string
	CourseID   string
	SemesterID string
	Status     Status

	// Version увеличивается при каждой смене статуса.
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDraft создаёт новый результат в статусе draft.
func NewDraft(id, studentID, courseID, semesterID string, now time.Time) (*Result, error) {
	ids := [][2]string{
		{"result id", id},
		{"student id", studentID},
		{"course id", courseID},
		{"semester id", semesterID},
	}
	for _, kv := range ids {
		if err := shared.RequireID(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}

	return &Result{
		ID:         id,
		StudentID:  studentID,
		CourseID:   courseID,
		SemesterID: semesterID,
		Status:     StatusDraft,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsEditable возвращает true, если компоненты результата можно менять.
func (r *Result) IsEditable() bool {
	return r.Status.IsEditable()
}

// MoveTo переводит результат в новый статус.
// Проверку допустимости перехода делает движок утверждения.
func (r *Result) MoveTo(to Status, now time.Time) {
	r.Status = to
	r.Version++
	r.UpdatedAt = now
}

// Key возвращает тройку, по которой результат уникален.
func (r *Result) Key() string {
	return r.StudentID + "/" + r.CourseID + "/" + r.SemesterID
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPONENT
// ══════════════════════════════════════════════════════════════════════════════

// Component - взвешенная часть оценивания внутри результата.
type Component struct {
	ID       string
	ResultID string
	Name     string

	// MarksObtained == nil - баллы ещё не выставлены.
	MarksObtained *decimal.Decimal
	MarksTotal    decimal.Decimal
	Weight        decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComponentInput - данные компонента от преподавателя.
type ComponentInput struct {
	Name          string
	MarksObtained *decimal.Decimal
	MarksTotal    decimal.Decimal
	Weight        *decimal.Decimal // nil → вес по умолчанию 1.0
}

// Validate проверяет инварианты компонента: баллы неотрицательны, obtained ≤ total, вес ≥ 0.
func (in ComponentInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("component name: %w", shared.ErrEmptyValue)
	}
	if in.MarksTotal.IsNegative() {
		return fmt.Errorf("marks total must be non-negative: %w", shared.ErrInvalidComponent)
	}
	if in.MarksObtained != nil {
		if in.MarksObtained.IsNegative() {
			return fmt.Errorf("marks obtained must be non-negative: %w", shared.ErrInvalidComponent)
		}
		if in.MarksObtained.GreaterThan(in.MarksTotal) {
			return fmt.Errorf("marks obtained %s exceed total %s: %w",
				in.MarksObtained, in.MarksTotal, shared.ErrInvalidComponent)
		}
	}
	if in.Weight != nil && in.Weight.IsNegative() {
		return fmt.Errorf("weight must be non-negative: %w", shared.ErrInvalidComponent)
	}
	return nil
}

// NewComponent создаёт компонент из проверенного ввода.
func NewComponent(id, resultID string, in ComponentInput, now time.Time) (*Component, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	c := &Component{
		ID:        id,
		ResultID:  resultID,
		CreatedAt: now,
	}
	c.apply(in, now)
	return c, nil
}

// Update заменяет баллы и вес компонента.
func (c *Component) Update(in ComponentInput, now time.Time) error {
	if err := in.Validate(); err != nil {
		return err
	}
	c.apply(in, now)
	return nil
}

func (c *Component) apply(in ComponentInput, now time.Time) {
	c.Name = strings.TrimSpace(in.Name)
	if in.MarksObtained != nil {
		v := *in.MarksObtained
		c.MarksObtained = &v
	} else {
		c.MarksObtained = nil
	}
	c.MarksTotal = in.MarksTotal
	c.Weight = grading.DefaultWeight()
	if in.Weight != nil {
		c.Weight = *in.Weight
	}
	c.UpdatedAt = now
}

// Mark возвращает компонент в виде входа для расчёта балла.
func (c *Component) Mark() grading.Mark {
	return grading.Mark{
		Name:     c.Name,
		Obtained: c.MarksObtained,
		Total:    c.MarksTotal,
		Weight:   c.Weight,
	}
}

// Marks переводит список компонентов во вход расчёта балла.
func Marks(components []*Component) []grading.Mark {
	marks := make([]grading.Mark, 0, len(components))
	for _, c := range components {
		marks = append(marks, c.Mark())
	}
	return marks
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE
// ══════════════════════════════════════════════════════════════════════════════

// Grade - итоговая оценка результата. Ровно одна на результат.
// Создаётся при утверждении и удаляется при возврате результата в draft.
type Grade struct {
	ResultID    string
	TotalScore  decimal.Decimal
	LetterGrade string
	GradePoint  decimal.Decimal
	ScaleName   string
	ComputedAt  time.Time
}

// CountedGrade - оценка, которая входит в GPA: утверждённый или опубликованный результат.
type CountedGrade struct {
	ResultID   string
	CourseID   string
	SemesterID string
	GradePoint decimal.Decimal
}
