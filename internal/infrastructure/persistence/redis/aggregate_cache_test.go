package redis

import (
	"encoding/json"
	"path"
	"testing"
	"time"

	"github.com/fastresult/results-core/internal/domain/gpa"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "aggen:S1", GenerationKey("S1"))
	assert.Equal(t, "gpa:S1:0:2025-1", SemesterKey("S1", 0, "2025-1"))
	assert.Equal(t, "gpa:S1:12:2025-1", SemesterKey("S1", 12, "2025-1"))
	assert.Equal(t, "cgpa:S1:3", CumulativeKey("S1", 3))

	// Поколения не пересекаются.
	assert.NotEqual(t, CumulativeKey("S1", 1), CumulativeKey("S1", 2))
}

func TestEscapeGlob(t *testing.T) {
	tests := map[string]string{
		"S1":     "S1",
		"a*b":    `a\*b`,
		"q?":     `q\?`,
		"[x]":    `\[x\]`,
		`back\s`: `back\\s`,
	}
	for in, want := range tests {
		assert.Equal(t, want, escapeGlob(in), in)
	}
}

func TestStudentPatterns_MatchOnlyThatStudent(t *testing.T) {
	tests := []struct {
		student string
		own     []string
		foreign []string
	}{
		{
			student: "S1",
			own:     []string{SemesterKey("S1", 0, "2025-1"), CumulativeKey("S1", 4)},
			foreign: []string{SemesterKey("S10", 0, "2025-1"), CumulativeKey("S2", 4)},
		},
		{
			student: "*",
			own:     []string{SemesterKey("*", 1, "2025-1"), CumulativeKey("*", 1)},
			foreign: []string{SemesterKey("S1", 1, "2025-1"), CumulativeKey("S1", 1)},
		},
		{
			student: "s[12]",
			own:     []string{CumulativeKey("s[12]", 0)},
			foreign: []string{CumulativeKey("s1", 0), CumulativeKey("s2", 0)},
		},
		{
			student: "who?",
			own:     []string{SemesterKey("who?", 2, "x")},
			foreign: []string{SemesterKey("whom", 2, "x")},
		},
	}

	matchesAny := func(patterns []string, key string) bool {
		for _, p := range patterns {
			ok, err := path.Match(p, key)
			require.NoError(t, err)
			if ok {
				return true
			}
		}
		return false
	}

	for _, tt := range tests {
		t.Run(tt.student, func(t *testing.T) {
			patterns := studentPatterns(tt.student)
			for _, key := range tt.own {
				assert.True(t, matchesAny(patterns, key), key)
			}
			for _, key := range tt.foreign {
				assert.False(t, matchesAny(patterns, key), key)
			}
			assert.False(t, matchesAny(patterns, GenerationKey(tt.student)), "generation counter must survive invalidation")
		})
	}
}

func TestCachedAggregate_DecimalRoundTrip(t *testing.T) {
	updated := time.Date(2025, 6, 30, 12, 0, 0, 123000, time.UTC)
	agg := gpa.Aggregate{
		GPA:           decimal.RequireFromString("2.4444"),
		TotalCredits:  27,
		QualityPoints: decimal.RequireFromString("66.0"),
	}

	data, err := json.Marshal(fromAggregate("S1", "2025-1", agg, updated))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"gpa":"2.4444"`)

	var back cachedAggregate
	require.NoError(t, json.Unmarshal(data, &back))

	got := back.aggregate()
	assert.True(t, agg.GPA.Equal(got.GPA), got.GPA.String())
	assert.True(t, agg.QualityPoints.Equal(got.QualityPoints), got.QualityPoints.String())
	assert.Equal(t, 27, got.TotalCredits)
	assert.Equal(t, "S1", back.StudentID)
	assert.Equal(t, "2025-1", back.SemesterID)
	assert.True(t, updated.Equal(back.UpdatedAt))
}

func TestNewAggregateCache_Defaults(t *testing.T) {
	c := NewAggregateCache(nil, nil, 0)
	assert.Equal(t, TTLAggregateCache, c.ttl)
	assert.NotNil(t, c.breaker)

	assert.Equal(t, "cache:6380", Config{Host: "cache", Port: 6380}.Addr())
}
