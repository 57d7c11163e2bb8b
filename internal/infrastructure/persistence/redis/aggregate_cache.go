package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fastresult/results-core/internal/domain/gpa"
	"github.com/fastresult/results-core/pkg/circuitbreaker"
	"github.com/shopspring/decimal"
)

// AggregateCache caches GPA and CGPA records under a per-student generation.
// Calls go through a circuit breaker so a dead Redis costs one failed
// round trip per breaker window instead of one per query.
//
// A reader takes the generation before it reads PostgreSQL and writes its
// result under that generation. InvalidateStudent bumps the generation, so a
// value read before an invalidation can never be served after it.
type AggregateCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
}

// NewAggregateCache creates a new AggregateCache. A non-positive ttl uses TTLAggregateCache.
func NewAggregateCache(cache *Cache, breaker *circuitbreaker.CircuitBreaker, ttl time.Duration) *AggregateCache {
	if ttl <= 0 {
		ttl = TTLAggregateCache
	}
	if breaker == nil {
		breaker = circuitbreaker.CacheBreaker(nil)
	}
	return &AggregateCache{cache: cache, breaker: breaker, ttl: ttl}
}

// cachedAggregate is the JSON shape stored under gpa:* and cgpa:* keys.
// Decimals encode as strings, so values survive the round trip exactly.
type cachedAggregate struct {
	StudentID     string          `json:"student_id"`
	SemesterID    string          `json:"semester_id,omitempty"`
	GPA           decimal.Decimal `json:"gpa"`
	TotalCredits  int             `json:"total_credits"`
	QualityPoints decimal.Decimal `json:"quality_points"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func fromAggregate(studentID, semesterID string, agg gpa.Aggregate, updatedAt time.Time) cachedAggregate {
	return cachedAggregate{
		StudentID:     studentID,
		SemesterID:    semesterID,
		GPA:           agg.GPA,
		TotalCredits:  agg.TotalCredits,
		QualityPoints: agg.QualityPoints,
		UpdatedAt:     updatedAt,
	}
}

func (v cachedAggregate) aggregate() gpa.Aggregate {
	return gpa.Aggregate{GPA: v.GPA, TotalCredits: v.TotalCredits, QualityPoints: v.QualityPoints}
}

// Generation returns the student's current cache generation.
func (a *AggregateCache) Generation(ctx context.Context, studentID string) (int64, error) {
	var gen int64
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		gen, err = a.cache.Counter(ctx, GenerationKey(studentID))
		return err
	})
	return gen, err
}

// GetSemester returns a cached semester GPA. A miss is (nil, false, nil).
func (a *AggregateCache) GetSemester(ctx context.Context, studentID, semesterID string, gen int64) (*gpa.SemesterRecord, bool, error) {
	var v cachedAggregate
	found, err := a.get(ctx, SemesterKey(studentID, gen, semesterID), &v)
	if err != nil || !found {
		return nil, false, err
	}
	return &gpa.SemesterRecord{
		StudentID:  v.StudentID,
		SemesterID: v.SemesterID,
		Aggregate:  v.aggregate(),
		UpdatedAt:  v.UpdatedAt,
	}, true, nil
}

// SetSemester caches a semester GPA under generation gen.
func (a *AggregateCache) SetSemester(ctx context.Context, rec *gpa.SemesterRecord, gen int64) error {
	if rec == nil {
		return ErrCacheNilValue
	}
	return a.set(ctx, SemesterKey(rec.StudentID, gen, rec.SemesterID),
		fromAggregate(rec.StudentID, rec.SemesterID, rec.Aggregate, rec.UpdatedAt))
}

// GetCumulative returns a cached CGPA. A miss is (nil, false, nil).
func (a *AggregateCache) GetCumulative(ctx context.Context, studentID string, gen int64) (*gpa.CumulativeRecord, bool, error) {
	var v cachedAggregate
	found, err := a.get(ctx, CumulativeKey(studentID, gen), &v)
	if err != nil || !found {
		return nil, false, err
	}
	return &gpa.CumulativeRecord{
		StudentID: v.StudentID,
		Aggregate: v.aggregate(),
		UpdatedAt: v.UpdatedAt,
	}, true, nil
}

// SetCumulative caches a CGPA under generation gen.
func (a *AggregateCache) SetCumulative(ctx context.Context, rec *gpa.CumulativeRecord, gen int64) error {
	if rec == nil {
		return ErrCacheNilValue
	}
	return a.set(ctx, CumulativeKey(rec.StudentID, gen),
		fromAggregate(rec.StudentID, "", rec.Aggregate, rec.UpdatedAt))
}

// InvalidateStudent moves the student to a new generation, then sweeps the
// keys of older ones. Only the increment is needed for correctness.
func (a *AggregateCache) InvalidateStudent(ctx context.Context, studentID string) error {
	return a.breaker.Execute(ctx, func(ctx context.Context) error {
		if _, err := a.cache.Incr(ctx, GenerationKey(studentID)); err != nil {
			return err
		}
		for _, pattern := range studentPatterns(studentID) {
			if err := a.cache.DeleteByPattern(ctx, pattern); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *AggregateCache) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	found := true
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		err := a.cache.Get(ctx, key, dest)
		if errors.Is(err, ErrCacheMiss) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (a *AggregateCache) set(ctx context.Context, key string, value interface{}) error {
	return a.breaker.Execute(ctx, func(ctx context.Context) error {
		return a.cache.Set(ctx, key, value, a.ttl)
	})
}

// escapeGlob quotes the SCAN MATCH metacharacters so an id matches itself only.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
