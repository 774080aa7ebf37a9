package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_HeldUntilReleased(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	release, err := l.Acquire(ctx, "aggregate", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "aggregate", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	// other keys are independent
	other, err := l.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	again, err := l.Acquire(ctx, "aggregate", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestMemoryLocker_ExpiredLeaseIsReclaimed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }

	stale, err := l.Acquire(ctx, "aggregate", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := l.Acquire(ctx, "aggregate", time.Minute)
	require.NoError(t, err)

	// the stale holder's release must not drop the new lease
	require.NoError(t, stale(ctx))
	_, err = l.Acquire(ctx, "aggregate", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)
	require.NoError(t, fresh(ctx))
}
