package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"booklending/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("success on first attempt", func(t *testing.T) {
		calls := 0
		err := OnConflict(ctx, func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("conflict is retried once by default", func(t *testing.T) {
		calls := 0
		err := OnConflict(ctx, func(context.Context) error {
			calls++
			if calls == 1 {
				return fmt.Errorf("save copy: %w", domain.ErrConcurrencyConflict)
			}
			return nil
		}, WithBaseDelay(0))
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("conflict surfaces after the retry", func(t *testing.T) {
		calls := 0
		err := OnConflict(ctx, func(context.Context) error {
			calls++
			return domain.ErrConcurrencyConflict
		}, WithBaseDelay(0))
		assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
		assert.Equal(t, 2, calls)
	})

	t.Run("rule violations fail fast", func(t *testing.T) {
		calls := 0
		err := OnConflict(ctx, func(context.Context) error {
			calls++
			return domain.LimitReached(3)
		})
		assert.ErrorIs(t, err, domain.ErrRuleViolation)
		assert.Equal(t, 1, calls)
	})

	t.Run("canceled context stops the backoff", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		err := OnConflict(cctx, func(context.Context) error {
			calls++
			cancel()
			return domain.ErrConcurrencyConflict
		}, WithBaseDelay(time.Second))
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, 1, calls)
	})
}

func TestOptionsValidation(t *testing.T) {
	noop := func(context.Context) error { return nil }

	assert.ErrorIs(t, OnConflict(context.Background(), noop, WithMaxAttempts(0)), ErrInvalidMaxAttempts)
	assert.ErrorIs(t, OnConflict(context.Background(), noop, WithBaseDelay(-time.Millisecond)), ErrNegativeBaseDelay)
	assert.ErrorIs(t, OnConflict(context.Background(), noop, WithJitterFactor(1.5)), ErrInvalidJitterFactor)
}
