package eventhandler

import (
	"context"
	"errors"
	"testing"

	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	students []string
	err      error
}

func (r *recordingInvalidator) InvalidateStudent(_ context.Context, studentID string) error {
	r.students = append(r.students, studentID)
	return r.err
}

func TestHandleRecomputed_InvalidatesStudent(t *testing.T) {
	cache := &recordingInvalidator{}
	h := NewOnAggregatesRecomputedHandler(cache, nil)

	require.NoError(t, h.HandleRecomputed(shared.NewAggregatesRecomputedEvent("S1", "2025-1", "3.000", "3.000", 3)))
	assert.Equal(t, []string{"S1"}, cache.students)
}

func TestHandleTransitioned_OnlyCountedStatuses(t *testing.T) {
	cases := []struct {
		from, to   string
		invalidate bool
	}{
		{"draft", "submitted", false},
		{"under_review", "hod_approved", false},
		{"hod_approved", "approved", true},
		{"approved", "published", true},
		{"approved", "draft", true},
	}
	for _, tc := range cases {
		t.Run(tc.from+"->"+tc.to, func(t *testing.T) {
			cache := &recordingInvalidator{}
			h := NewOnAggregatesRecomputedHandler(cache, nil)

			ev := shared.NewResultTransitionedEvent("r1", "S1", "CSC301", "2025-1", tc.from, tc.to, "actor", "")
			require.NoError(t, h.HandleTransitioned(ev))
			if tc.invalidate {
				assert.Equal(t, []string{"S1"}, cache.students)
			} else {
				assert.Empty(t, cache.students)
			}
		})
	}
}

func TestHandle_WrongEventTypeIgnored(t *testing.T) {
	cache := &recordingInvalidator{}
	h := NewOnAggregatesRecomputedHandler(cache, nil)

	require.NoError(t, h.HandleRecomputed(shared.NewResultDraftCreatedEvent("r1", "S1", "CSC301", "2025-1", "lec")))
	require.NoError(t, h.HandleTransitioned(shared.NewAggregatesRecomputedEvent("S1", "2025-1", "0.000", "0.000", 0)))
	assert.Empty(t, cache.students)
}

func TestHandle_CacheErrorIsReturned(t *testing.T) {
	cache := &recordingInvalidator{err: errors.New("redis down")}
	h := NewOnAggregatesRecomputedHandler(cache, nil)

	err := h.HandleRecomputed(shared.NewAggregatesRecomputedEvent("S1", "2025-1", "3.000", "3.000", 3))
	assert.ErrorContains(t, err, "redis down")
}
