package deadline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func TestWithTimeout_FiresOnClock(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	ctx, cancel := WithTimeout(context.Background(), fc, 10*time.Second)
	defer cancel()

	fc.Step(9999 * time.Millisecond)
	require.NoError(t, ctx.Err())
	assert.False(t, Expired(ctx))

	fc.Step(time.Millisecond)
	require.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.True(t, Expired(ctx))
}

func TestWithTimeout_CancelIsNotExpiry(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	ctx, cancel := WithTimeout(context.Background(), fc, time.Second)
	cancel()

	require.Error(t, ctx.Err())
	assert.False(t, Expired(ctx))
	assert.False(t, fc.HasWaiters(), "cancel must release the timer")

	fc.Step(2 * time.Second)
	assert.False(t, Expired(ctx))
}

func TestWithTimeout_ParentCancel(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := WithTimeout(parent, fc, time.Second)
	defer cancel()

	cancelParent()
	require.Error(t, ctx.Err())
	assert.False(t, Expired(ctx))
}
