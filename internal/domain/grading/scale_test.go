package grading

import (
	"testing"

	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func band(letter string, min, max int64, point string) Band {
	return Band{Letter: letter, Min: decimal.NewFromInt(min), Max: decimal.NewFromInt(max), Point: dec(point)}
}

func TestDefaultScale_Boundaries(t *testing.T) {
	tests := []struct {
		score  string
		letter string
		point  string
	}{
		{"100", "A", "4.0"},
		{"90", "A", "4.0"},
		{"89.99", "B", "3.0"},
		{"89.5", "B", "3.0"},
		{"80", "B", "3.0"},
		{"79.99", "C", "2.0"},
		{"75.83", "C", "2.0"},
		{"70", "C", "2.0"},
		{"69", "D", "1.0"},
		{"60", "D", "1.0"},
		{"59.99", "F", "0.0"},
		{"0", "F", "0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.score, func(t *testing.T) {
			letter, point, err := DeriveGrade(dec(tt.score), DefaultScale())
			require.NoError(t, err)
			assert.Equal(t, tt.letter, letter)
			assert.True(t, point.Equal(dec(tt.point)), "point %s", point)
		})
	}
}

func TestDefaultScale_OutOfRange(t *testing.T) {
	for _, s := range []string{"-0.01", "100.01"} {
		_, _, err := DeriveGrade(dec(s), DefaultScale())
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrGradeScale)
		assert.True(t, shared.IsConfiguration(err))
	}
}

func TestScale_EveryScoreMapsToOneBand(t *testing.T) {
	scale, err := NewScale("five-point", []Band{
		band("A", 70, 100, "5"),
		band("B", 60, 69, "4"),
		band("C", 50, 59, "3"),
		band("D", 45, 49, "2"),
		band("E", 40, 44, "1"),
		band("F", 0, 39, "0"),
	})
	require.NoError(t, err)

	step := dec("0.25")
	for s := decimal.Zero; !s.GreaterThan(decimal.NewFromInt(100)); s = s.Add(step) {
		matched := 0
		for i, b := range scale.Bands() {
			upper := decimal.NewFromInt(101)
			if i+1 < len(scale.Bands()) {
				upper = scale.Bands()[i+1].Min
			}
			if !s.LessThan(b.Min) && s.LessThan(upper) {
				matched++
			}
		}
		assert.Equal(t, 1, matched, "score %s", s)

		_, err := scale.Band(s)
		assert.NoError(t, err, "score %s", s)
	}
}

func TestNewScale_Validation(t *testing.T) {
	tests := []struct {
		name  string
		bands []Band
	}{
		{"empty", nil},
		{"does not start at zero", []Band{band("A", 50, 100, "4"), band("F", 1, 49, "0")}},
		{"does not end at hundred", []Band{band("A", 50, 99, "4"), band("F", 0, 49, "0")}},
		{"overlap", []Band{band("A", 50, 100, "4"), band("F", 0, 50, "0")}},
		{"gap", []Band{band("A", 60, 100, "4"), band("F", 0, 49, "0")}},
		{"min above max", []Band{band("A", 50, 100, "4"), band("F", 0, 49, "0"), band("X", 70, 60, "1")}},
		{"duplicate letter", []Band{band("A", 50, 100, "4"), band("A", 0, 49, "0")}},
		{"negative point", []Band{band("A", 50, 100, "4"), band("F", 0, 49, "-1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScale("custom", tt.bands)
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrGradeScale)
		})
	}
}

func TestNewScale_SortsBands(t *testing.T) {
	scale, err := NewScale("two", []Band{band("F", 0, 49, "0"), band("P", 50, 100, "1")})
	require.NoError(t, err)

	bands := scale.Bands()
	require.Len(t, bands, 2)
	assert.Equal(t, "F", bands[0].Letter)
	assert.Equal(t, "P", bands[1].Letter)
	assert.Equal(t, "two", scale.Name())
}
