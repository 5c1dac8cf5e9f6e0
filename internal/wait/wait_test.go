package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntil_ImmediateSuccess(t *testing.T) {
	calls := 0
	err := Until(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls++
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestUntil_EventualSuccess(t *testing.T) {
	calls := 0
	err := Until(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntil_Timeout(t *testing.T) {
	err := Until(context.Background(), time.Millisecond, 20*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestUntil_TimeoutReportsLastConditionError(t *testing.T) {
	err := Until(context.Background(), time.Millisecond, 20*time.Millisecond, func(context.Context) (bool, error) {
		return false, errors.New("element detached")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "element detached")
}

func TestUntil_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Until(ctx, time.Millisecond, time.Second, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
