// Package grading содержит чистые функции расчёта итогового балла и оценки.
// Здесь нет хранилища и нет побочных эффектов: вход → выход.
package grading

import (
	"fmt"

	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ScorePrecision - количество знаков после запятой в итоговом балле.
const ScorePrecision int32 = 2

var (
	hundred    = decimal.NewFromInt(100)
	maxScore   = hundred
	minScore   = decimal.Zero
	defaultWgt = decimal.NewFromInt(1)
)

// Mark - одна взвешенная часть оценивания (например, CA или экзамен).
// Obtained == nil означает, что оценка ещё не выставлена.
type Mark struct {
	Name     string
	Obtained *decimal.Decimal
	Total    decimal.Decimal
	Weight   decimal.Decimal
}

// DefaultWeight возвращает вес компонента по умолчанию (1.0).
func DefaultWeight() decimal.Decimal {
	return defaultWgt
}

// Percentage возвращает нормализованный процент obtained/total*100.
func (m Mark) Percentage() (decimal.Decimal, error) {
	if m.Obtained == nil {
		return decimal.Zero, fmt.Errorf("component %q: %w", m.Name, shared.ErrIncompleteResult)
	}
	if err := m.validate(); err != nil {
		return decimal.Zero, err
	}
	return m.Obtained.Div(m.Total).Mul(hundred), nil
}

func (m Mark) validate() error {
	switch {
	case m.Total.IsZero():
		return fmt.Errorf("component %q has zero marks total: %w", m.Name, shared.ErrInvalidComponent)
	case m.Total.IsNegative():
		return fmt.Errorf("component %q has negative marks total: %w", m.Name, shared.ErrInvalidComponent)
	case m.Weight.IsNegative():
		return fmt.Errorf("component %q has negative weight: %w", m.Name, shared.ErrInvalidComponent)
	}
	if m.Obtained != nil {
		if m.Obtained.IsNegative() {
			return fmt.Errorf("component %q has negative marks: %w", m.Name, shared.ErrInvalidComponent)
		}
		if m.Obtained.GreaterThan(m.Total) {
			return fmt.Errorf("component %q: obtained %s exceeds total %s: %w",
				m.Name, m.Obtained.String(), m.Total.String(), shared.ErrInvalidComponent)
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// CheckComplete проверяет, что есть хотя бы один компонент и у всех выставлены баллы.
func CheckComplete(marks []Mark) error {
	if len(marks) == 0 {
		return shared.ErrIncompleteResult
	}
	for _, m := range marks {
		if m.Obtained == nil {
			return fmt.Errorf("component %q: %w", m.Name, shared.ErrIncompleteResult)
		}
	}
	return nil
}

// ComputeScore вычисляет итоговый балл как взвешенное среднее процентов:
//
//	total = Σ(pct_i * w_i) / Σ(w_i), pct_i = obtained_i / total_i * 100
//
// Веса относительные, их сумма не обязана быть 1.
// Результат округляется до 2 знаков банковским округлением (half-to-even).
func ComputeScore(marks []Mark) (decimal.Decimal, error) {
	if err := CheckComplete(marks); err != nil {
		return decimal.Zero, err
	}

	weighted := decimal.Zero
	weights := decimal.Zero
	for _, m := range marks {
		pct, err := m.Percentage()
		if err != nil {
			return decimal.Zero, err
		}
		weighted = weighted.Add(pct.Mul(m.Weight))
		weights = weights.Add(m.Weight)
	}

	if weights.IsZero() {
		return decimal.Zero, shared.ErrInvalidWeights
	}

	return weighted.Div(weights).RoundBank(ScorePrecision), nil
}

// InRange проверяет, что балл лежит в [0, 100].
func InRange(score decimal.Decimal) bool {
	return !score.LessThan(minScore) && !score.GreaterThan(maxScore)
}
