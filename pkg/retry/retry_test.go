package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBusy = errors.New("busy")

func TestRetrier_RetriesRetryableErrors(t *testing.T) {
	attempts := 0
	err := New(WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0)).
		Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return Retryable(errBusy)
			}
			return nil
		})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetrier_ReturnsUnwrappedErrorAfterLastAttempt(t *testing.T) {
	attempts := 0
	err := New(WithMaxAttempts(2), WithInitialDelay(time.Millisecond)).
		Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return Retryable(errBusy)
		})

	assert.Equal(t, 2, attempts)
	assert.Same(t, errBusy, err)
}

func TestRetrier_DefaultPolicySkipsUnmarkedErrors(t *testing.T) {
	attempts := 0
	err := New(WithMaxAttempts(5)).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errBusy
	})

	assert.Equal(t, 1, attempts)
	assert.Same(t, errBusy, err)
}

func TestTransactionRetrier_UsesPredicate(t *testing.T) {
	retryIf := func(err error) bool { return errors.Is(err, errBusy) }
	r := TransactionRetrier(4, retryIf)
	assert.Equal(t, 4, r.MaxAttempts())

	attempts := 0
	other := errors.New("validation")
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return errBusy
		}
		return other
	})

	assert.Equal(t, 2, attempts)
	assert.Same(t, other, err)
}

func TestRetrier_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New().Do(ctx, func(ctx context.Context) error {
		t.Fatal("operation must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDatabaseRetrier_RetriesEverything(t *testing.T) {
	r := DatabaseRetrier()
	assert.Equal(t, 5, r.MaxAttempts())
	assert.True(t, r.shouldRetry(errBusy))
}

func TestCalculateDelay_CappedAtMax(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(250*time.Millisecond), WithJitter(0))

	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 250*time.Millisecond, r.calculateDelay(3))
}
