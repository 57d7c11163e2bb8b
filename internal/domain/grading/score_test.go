package grading

import (
	"testing"

	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestComputeScore_WeightedAverage(t *testing.T) {
	marks := []Mark{
		{Name: "Continuous Assessment", Obtained: ptr("18"), Total: dec("20"), Weight: dec("1")},
		{Name: "Exam", Obtained: ptr("55"), Total: dec("80"), Weight: dec("2")},
	}

	score, err := ComputeScore(marks)
	require.NoError(t, err)
	assert.Equal(t, "75.83", score.StringFixed(2))

	letter, point, err := DeriveGrade(score, DefaultScale())
	require.NoError(t, err)
	assert.Equal(t, "C", letter)
	assert.True(t, point.Equal(dec("2.0")))
}

func TestComputeScore_Errors(t *testing.T) {
	tests := []struct {
		name    string
		marks   []Mark
		wantErr error
	}{
		{
			name:    "no components",
			marks:   nil,
			wantErr: shared.ErrIncompleteResult,
		},
		{
			name: "missing marks",
			marks: []Mark{
				{Name: "CA", Obtained: ptr("10"), Total: dec("20"), Weight: dec("1")},
				{Name: "Exam", Obtained: nil, Total: dec("80"), Weight: dec("1")},
			},
			wantErr: shared.ErrIncompleteResult,
		},
		{
			name: "zero marks total",
			marks: []Mark{
				{Name: "CA", Obtained: ptr("0"), Total: dec("0"), Weight: dec("1")},
			},
			wantErr: shared.ErrInvalidComponent,
		},
		{
			name: "obtained above total",
			marks: []Mark{
				{Name: "CA", Obtained: ptr("21"), Total: dec("20"), Weight: dec("1")},
			},
			wantErr: shared.ErrInvalidComponent,
		},
		{
			name: "negative weight",
			marks: []Mark{
				{Name: "CA", Obtained: ptr("5"), Total: dec("20"), Weight: dec("-1")},
			},
			wantErr: shared.ErrInvalidComponent,
		},
		{
			name: "weights sum to zero",
			marks: []Mark{
				{Name: "CA", Obtained: ptr("18"), Total: dec("20"), Weight: dec("0")},
				{Name: "Exam", Obtained: ptr("55"), Total: dec("80"), Weight: dec("0")},
			},
			wantErr: shared.ErrInvalidWeights,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeScore(tt.marks)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestComputeScore_BoundedAverage(t *testing.T) {
	cases := [][]Mark{
		{{Name: "a", Obtained: ptr("0"), Total: dec("10"), Weight: dec("3")}},
		{{Name: "a", Obtained: ptr("10"), Total: dec("10"), Weight: dec("0.5")}},
		{
			{Name: "a", Obtained: ptr("1"), Total: dec("3"), Weight: dec("1")},
			{Name: "b", Obtained: ptr("2"), Total: dec("3"), Weight: dec("1")},
			{Name: "c", Obtained: ptr("7"), Total: dec("7"), Weight: dec("0")},
		},
		{
			{Name: "a", Obtained: ptr("33.5"), Total: dec("40"), Weight: dec("0.4")},
			{Name: "b", Obtained: ptr("12.25"), Total: dec("60"), Weight: dec("0.6")},
		},
	}

	for _, marks := range cases {
		score, err := ComputeScore(marks)
		require.NoError(t, err)
		assert.True(t, InRange(score), "score %s out of range", score)
		assert.LessOrEqual(t, int32(-score.Exponent()), ScorePrecision)
	}
}

func TestComputeScore_RoundHalfEven(t *testing.T) {
	tests := []struct {
		obtained string
		total    string
		want     string
	}{
		{"0.0125", "10", "0.12"},
		{"0.0135", "10", "0.14"},
		{"8.3335", "10", "83.34"},
		{"8.3325", "10", "83.32"},
	}

	for _, tt := range tests {
		score, err := ComputeScore([]Mark{{Name: "x", Obtained: ptr(tt.obtained), Total: dec(tt.total), Weight: dec("1")}})
		require.NoError(t, err)
		assert.Equal(t, tt.want, score.StringFixed(2), "obtained %s", tt.obtained)
	}
}
