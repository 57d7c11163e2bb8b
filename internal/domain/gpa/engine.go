// Package gpa содержит расчёт семестрового GPA и накопительного CGPA.
// Агрегаты всегда пересчитываются с нуля, без инкрементальных дельт:
// так исправление или откат оценки никогда не приводит к двойному учёту.
package gpa

import (
	"github.com/shopspring/decimal"
)

// StoredPrecision - точность хранения GPA/CGPA.
const StoredPrecision int32 = 4

// DisplayPrecision - точность отображения GPA/CGPA (66/27 → "2.444").
const DisplayPrecision int32 = 3

// Entry - одна засчитанная оценка: балл за оценку и кредиты курса.
type Entry struct {
	GradePoint  decimal.Decimal
	CreditHours int
}

// Aggregate - результат свёртки: GPA, сумма кредитов и сумма качественных баллов.
type Aggregate struct {
	GPA           decimal.Decimal `json:"gpa"`
	TotalCredits  int             `json:"total_credits"`
	QualityPoints decimal.Decimal `json:"quality_points"`
}

// Display возвращает GPA в формате для отображения.
func (a Aggregate) Display() string {
	return a.GPA.StringFixed(DisplayPrecision)
}

// Equal сравнивает агрегаты по значению.
func (a Aggregate) Equal(other Aggregate) bool {
	return a.TotalCredits == other.TotalCredits &&
		a.GPA.Equal(other.GPA) &&
		a.QualityPoints.Equal(other.QualityPoints)
}

// IsEmpty возвращает true, если в агрегате нет ни одного кредита.
func (a Aggregate) IsEmpty() bool {
	return a.TotalCredits == 0
}

// ComputeSemesterGPA вычисляет GPA за семестр.
//
//	qualityPoints = Σ(gradePoint_i * creditHours_i)
//	totalCredits  = Σ(creditHours_i)
//	gpa           = qualityPoints / totalCredits, либо 0 при totalCredits == 0
//
// Пустой семестр - не ошибка.
func ComputeSemesterGPA(entries []Entry) Aggregate {
	qp := decimal.Zero
	credits := 0
	for _, e := range entries {
		if e.CreditHours <= 0 {
			continue
		}
		qp = qp.Add(e.GradePoint.Mul(decimal.NewFromInt(int64(e.CreditHours))))
		credits += e.CreditHours
	}
	return fold(qp, credits)
}

// ComputeCGPA сворачивает все семестровые агрегаты студента в накопительный.
// Та же формула, применённая к суммам; детерминирована при неизменном входе.
func ComputeCGPA(semesters []Aggregate) Aggregate {
	qp := decimal.Zero
	credits := 0
	for _, s := range semesters {
		qp = qp.Add(s.QualityPoints)
		credits += s.TotalCredits
	}
	return fold(qp, credits)
}

func fold(qualityPoints decimal.Decimal, credits int) Aggregate {
	if credits == 0 {
		return Aggregate{GPA: decimal.Zero, TotalCredits: 0, QualityPoints: qualityPoints}
	}
	gpa := qualityPoints.Div(decimal.NewFromInt(int64(credits))).RoundBank(StoredPrecision)
	return Aggregate{GPA: gpa, TotalCredits: credits, QualityPoints: qualityPoints}
}
