package result_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/fastresult/results-core/internal/infrastructure/persistence/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// withStore runs fn inside a memory transaction with a deterministic Store.
func withStore(t *testing.T, tx approval.Transactor, ids func() string, fn func(ctx context.Context, s *result.Store) error) error {
	t.Helper()
	return tx.InTx(context.Background(), func(ctx context.Context, uow approval.UnitOfWork) error {
		s := result.NewStore(uow.Results(),
			result.WithClock(func() time.Time { return fixedNow }),
			result.WithIDGenerator(ids),
		)
		return fn(ctx, s)
	})
}

func marks(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestStore_CreateDraftIsIdempotent(t *testing.T) {
	tx := memory.NewTransactor(memory.NewDB())
	ids := sequentialIDs()

	var first, second *result.Result
	var existing bool
	require.NoError(t, withStore(t, tx, ids, func(ctx context.Context, s *result.Store) error {
		var err error
		first, existing, err = s.CreateDraft(ctx, "S1", "CSC301", "2025-1")
		return err
	}))
	assert.False(t, existing)
	assert.Equal(t, result.StatusDraft, first.Status)
	assert.Equal(t, fixedNow, first.CreatedAt)

	require.NoError(t, withStore(t, tx, ids, func(ctx context.Context, s *result.Store) error {
		var err error
		second, existing, err = s.CreateDraft(ctx, "S1", "CSC301", "2025-1")
		return err
	}))
	assert.True(t, existing)
	assert.Equal(t, first.ID, second.ID)
}

func TestStore_CreateDraftValidatesIDs(t *testing.T) {
	tx := memory.NewTransactor(memory.NewDB())

	err := withStore(t, tx, sequentialIDs(), func(ctx context.Context, s *result.Store) error {
		_, _, err := s.CreateDraft(ctx, "", "CSC301", "2025-1")
		return err
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestStore_ComponentLifecycle(t *testing.T) {
	tx := memory.NewTransactor(memory.NewDB())
	ids := sequentialIDs()

	var resultID, examID string
	require.NoError(t, withStore(t, tx, ids, func(ctx context.Context, s *result.Store) error {
		r, _, err := s.CreateDraft(ctx, "S1", "CSC301", "2025-1")
		if err != nil {
			return err
		}
		resultID = r.ID

		if _, err := s.AddComponent(ctx, r.ID, result.ComponentInput{Name: "CA", MarksObtained: marks("25"), MarksTotal: decimal.NewFromInt(30)}); err != nil {
			return err
		}
		exam, err := s.AddComponent(ctx, r.ID, result.ComponentInput{Name: "Exam", MarksTotal: decimal.NewFromInt(70)})
		if err != nil {
			return err
		}
		examID = exam.ID
		return nil
	}))

	// Дубликат имени отклоняется.
	err := withStore(t, tx, ids, func(ctx context.Context, s *result.Store) error {
		_, err := s.AddComponent(ctx, resultID, result.ComponentInput{Name: "CA", MarksTotal: decimal.NewFromInt(10)})
		return err
	})
	assert.ErrorIs(t, err, shared.ErrDuplicateComponent)

	require.NoError(t, withStore(t, tx, ids, func(ctx context.Context, s *result.Store) error {
		_, err := s.UpdateComponent(ctx, resultID, examID, result.ComponentInput{Name: "Exam", MarksObtained: marks("45"), MarksTotal: decimal.NewFromInt(70)})
		return err
	}))

	var components []*result.Component
	require.NoError(t, withStore(t, tx, ids, func(ctx context.Context, s *result.Store) error {
		var err error
		components, err = s.Components(ctx, resultID)
		return err
	}))
	require.Len(t, components, 2)
	for _, c := range components {
		require.NotNil(t, c.MarksObtained)
	}

	require.NoError(t, withStore(t, tx, ids, func(ctx context.Context, s *result.Store) error {
		return s.RemoveComponent(ctx, resultID, examID)
	}))
	err = withStore(t, tx, ids, func(ctx context.Context, s *result.Store) error {
		return s.RemoveComponent(ctx, resultID, examID)
	})
	assert.ErrorIs(t, err, shared.ErrComponentNotFound)
}

func TestStore_LockedOutsideDraft(t *testing.T) {
	db := memory.NewDB()
	tx := memory.NewTransactor(db)
	ids := sequentialIDs()

	var resultID string
	require.NoError(t, withStore(t, tx, ids, func(ctx context.Context, s *result.Store) error {
		r, _, err := s.CreateDraft(ctx, "S1", "CSC301", "2025-1")
		resultID = r.ID
		return err
	}))

	require.NoError(t, tx.InTx(context.Background(), func(ctx context.Context, uow approval.UnitOfWork) error {
		r, err := uow.Results().GetForUpdate(ctx, resultID)
		if err != nil {
			return err
		}
		r.MoveTo(result.StatusSubmitted, fixedNow)
		return uow.Results().UpdateStatus(ctx, r)
	}))

	err := withStore(t, tx, ids, func(ctx context.Context, s *result.Store) error {
		_, err := s.AddComponent(ctx, resultID, result.ComponentInput{Name: "Lab", MarksTotal: decimal.NewFromInt(10)})
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrResultLocked)
	assert.Equal(t, shared.CategoryLocked, shared.Category(err))
}

func TestStore_UnknownResult(t *testing.T) {
	tx := memory.NewTransactor(memory.NewDB())

	err := withStore(t, tx, sequentialIDs(), func(ctx context.Context, s *result.Store) error {
		_, err := s.Components(ctx, "missing")
		return err
	})
	assert.ErrorIs(t, err, shared.ErrResultNotFound)
	assert.True(t, shared.IsNotFound(err))
}
