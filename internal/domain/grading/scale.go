package grading

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DefaultScaleName - имя шкалы, используемой при отсутствии настройки университета.
const DefaultScaleName = "default"

// Band - диапазон баллов, соответствующий одной буквенной оценке.
type Band struct {
	Letter string          `json:"letter"`
	Min    decimal.Decimal `json:"min"`
	Max    decimal.Decimal `json:"max"`
	Point  decimal.Decimal `json:"point"`
}

// Scale - упорядоченный набор диапазонов, покрывающий [0, 100] без дыр и пересечений.
// Создаётся только через NewScale, поэтому инвариант проверяется один раз при загрузке.
type Scale struct {
	name  string
	bands []Band // по возрастанию Min
}

// ScaleLookup возвращает шкалу для университета.
// Реализация обязана вернуть шкалу по умолчанию, если своей шкалы у университета нет.
type ScaleLookup interface {
	Lookup(ctx context.Context, universityID string) (*Scale, error)
}

// NewScale проверяет диапазоны и создаёт шкалу.
//
// Правила:
//   - минимальная граница нижнего диапазона = 0, верхняя граница верхнего = 100;
//   - в каждом диапазоне Min ≤ Max, балл за оценку неотрицательный;
//   - диапазоны не пересекаются и идут подряд по целочисленной сетке
//     (следующий Min отстоит от предыдущего Max не более чем на 1).
func NewScale(name string, bands []Band) (*Scale, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("scale name is empty: %w", shared.ErrGradeScale)
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("scale %q has no bands: %w", name, shared.ErrGradeScale)
	}

	sorted := make([]Band, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min.LessThan(sorted[j].Min) })

	letters := make(map[string]struct{}, len(sorted))
	one := decimal.NewFromInt(1)

	for i, b := range sorted {
		if strings.TrimSpace(b.Letter) == "" {
			return nil, fmt.Errorf("scale %q: band %d has empty letter: %w", name, i, shared.ErrGradeScale)
		}
		if _, dup := letters[b.Letter]; dup {
			return nil, fmt.Errorf("scale %q: letter %q used twice: %w", name, b.Letter, shared.ErrGradeScale)
		}
		letters[b.Letter] = struct{}{}

		if b.Min.GreaterThan(b.Max) {
			return nil, fmt.Errorf("scale %q: band %s has min %s above max %s: %w",
				name, b.Letter, b.Min, b.Max, shared.ErrGradeScale)
		}
		if b.Point.IsNegative() {
			return nil, fmt.Errorf("scale %q: band %s has negative point: %w", name, b.Letter, shared.ErrGradeScale)
		}

		if i == 0 {
			if !b.Min.Equal(minScore) {
				return nil, fmt.Errorf("scale %q does not start at 0: %w", name, shared.ErrGradeScale)
			}
			continue
		}

		prev := sorted[i-1]
		if !b.Min.GreaterThan(prev.Max) {
			return nil, fmt.Errorf("scale %q: bands %s and %s overlap: %w",
				name, prev.Letter, b.Letter, shared.ErrGradeScale)
		}
		if b.Min.Sub(prev.Max).GreaterThan(one) {
			return nil, fmt.Errorf("scale %q: gap between bands %s and %s: %w",
				name, prev.Letter, b.Letter, shared.ErrGradeScale)
		}
	}

	if !sorted[len(sorted)-1].Max.Equal(maxScore) {
		return nil, fmt.Errorf("scale %q does not end at 100: %w", name, shared.ErrGradeScale)
	}

	return &Scale{name: name, bands: sorted}, nil
}

// MustScale как NewScale, но паникует. Только для статических шкал.
func MustScale(name string, bands []Band) *Scale {
	s, err := NewScale(name, bands)
	if err != nil {
		panic(err)
	}
	return s
}

var defaultScale = MustScale(DefaultScaleName, []Band{
	{Letter: "A", Min: decimal.NewFromInt(90), Max: decimal.NewFromInt(100), Point: decimal.RequireFromString("4.0")},
	{Letter: "B", Min: decimal.NewFromInt(80), Max: decimal.NewFromInt(89), Point: decimal.RequireFromString("3.0")},
	{Letter: "C", Min: decimal.NewFromInt(70), Max: decimal.NewFromInt(79), Point: decimal.RequireFromString("2.0")},
	{Letter: "D", Min: decimal.NewFromInt(60), Max: decimal.NewFromInt(69), Point: decimal.RequireFromString("1.0")},
	{Letter: "F", Min: decimal.NewFromInt(0), Max: decimal.NewFromInt(59), Point: decimal.RequireFromString("0.0")},
})

// DefaultScale возвращает стандартную шкалу: A 90–100, B 80–89, C 70–79, D 60–69, F 0–59.
func DefaultScale() *Scale {
	return defaultScale
}

// Name возвращает имя шкалы.
func (s *Scale) Name() string {
	return s.name
}

// Bands возвращает копию диапазонов по возрастанию.
func (s *Scale) Bands() []Band {
	out := make([]Band, len(s.bands))
	copy(out, s.bands)
	return out
}

// Band находит диапазон для балла.
// Диапазон i покрывает [Min_i, Min_{i+1}), верхний диапазон включает 100,
// поэтому дробные баллы между целыми границами (например, 89.5) попадают ровно в один диапазон.
func (s *Scale) Band(score decimal.Decimal) (Band, error) {
	if s == nil || len(s.bands) == 0 {
		return Band{}, shared.ErrGradeScale
	}
	if !InRange(score) {
		return Band{}, fmt.Errorf("score %s outside [0,100]: %w", score, shared.ErrGradeScale)
	}
	for i := len(s.bands) - 1; i >= 0; i-- {
		if !score.LessThan(s.bands[i].Min) {
			return s.bands[i], nil
		}
	}
	return Band{}, fmt.Errorf("no band for score %s in scale %q: %w", score, s.name, shared.ErrGradeScale)
}

// DeriveGrade возвращает буквенную оценку и балл за оценку по шкале.
func DeriveGrade(score decimal.Decimal, scale *Scale) (string, decimal.Decimal, error) {
	band, err := scale.Band(score)
	if err != nil {
		return "", decimal.Zero, err
	}
	return band.Letter, band.Point, nil
}
