package gradescale

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fastresult/results-core/internal/domain/grading"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fivePointYAML = `
default: five-point
universities:
  uni-legacy: default
scales:
  - name: five-point
    bands:
      - {letter: A, min: "70", max: "100", point: "5.0"}
      - {letter: B, min: "60", max: "69", point: "4.0"}
      - {letter: C, min: "50", max: "59", point: "3.0"}
      - {letter: D, min: "45", max: "49", point: "2.0"}
      - {letter: E, min: "40", max: "44", point: "1.0"}
      - {letter: F, min: "0", max: "39", point: "0.0"}
`

func TestParse_ResolvesUniversityScales(t *testing.T) {
	r, err := Parse([]byte(fivePointYAML))
	require.NoError(t, err)
	ctx := context.Background()

	scale, err := r.Lookup(ctx, "uni-new")
	require.NoError(t, err)
	assert.Equal(t, "five-point", scale.Name())

	letter, point, err := grading.DeriveGrade(decimal.RequireFromString("72.5"), scale)
	require.NoError(t, err)
	assert.Equal(t, "A", letter)
	assert.True(t, point.Equal(decimal.RequireFromString("5")))

	legacy, err := r.Lookup(ctx, "uni-legacy")
	require.NoError(t, err)
	assert.Equal(t, grading.DefaultScaleName, legacy.Name())

	assert.ElementsMatch(t, []string{"five-point", grading.DefaultScaleName}, r.Names())
}

func TestNewRegistry_FallsBackToDefault(t *testing.T) {
	scale, err := NewRegistry().Lookup(context.Background(), "anything")
	require.NoError(t, err)
	assert.Same(t, grading.DefaultScale(), scale)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "scales: [unterminated"},
		{"bad number", `
scales:
  - name: x
    bands:
      - {letter: A, min: "zero", max: "100", point: "4"}
`},
		{"gap in bands", `
scales:
  - name: x
    bands:
      - {letter: A, min: "60", max: "100", point: "4"}
      - {letter: F, min: "0", max: "50", point: "0"}
`},
		{"unknown default", "default: missing\n"},
		{"unknown university scale", "universities:\n  u1: missing\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrGradeScale)
			assert.True(t, shared.IsConfiguration(err))
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scales.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fivePointYAML), 0o600))

	r, err := LoadFile(path)
	require.NoError(t, err)
	scale, err := r.Lookup(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "five-point", scale.Name())

	empty, err := LoadFile("")
	require.NoError(t, err)
	assert.NotNil(t, empty)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
