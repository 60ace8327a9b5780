package shared

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithConflictRetrySucceedsAfterConflicts(t *testing.T) {
	calls := 0
	err := WithConflictRetry(context.Background(), 3, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &ConcurrencyConflictError{OrderID: 1}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestWithConflictRetryExhaustsBound(t *testing.T) {
	calls := 0
	err := WithConflictRetry(context.Background(), 3, func(ctx context.Context) error {
		calls++
		return &ConcurrencyConflictError{OrderID: 1}
	})
	require.True(t, IsConflict(err))
	require.Equal(t, 3, calls)
}

func TestWithConflictRetryStopsOnOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := WithConflictRetry(context.Background(), 3, func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestWithConflictRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := WithConflictRetry(ctx, 3, func(ctx context.Context) error {
		calls++
		return &ConcurrencyConflictError{OrderID: 1}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, calls)
}

func TestIsConflictUnwraps(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), &ConcurrencyConflictError{OrderID: 9})
	require.True(t, IsConflict(wrapped))
	require.False(t, IsConflict(errors.New("plain")))
	require.False(t, IsConflict(nil))
}
