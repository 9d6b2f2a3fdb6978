package application

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
)

// timeClock usa o pacote time; dentro de synctest o tempo é falso.
type timeClock struct{}

func (timeClock) Now() time.Time { return time.Now() }

func (timeClock) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestCooldownGate_FirstAccessDoesNotWait(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g := NewCooldownGate(timeClock{}, 120*time.Second, 10*time.Second, nil)

		start := time.Now()
		require.NoError(t, g.AwaitClear(context.Background()))
		require.Zero(t, time.Since(start))
		require.Zero(t, g.Remaining())

		_, ok := g.LastAccess()
		require.False(t, ok)
	})
}

func TestCooldownGate_WaitsOutCooldownByPolling(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g := NewCooldownGate(timeClock{}, 120*time.Second, 10*time.Second, nil)
		marked := g.MarkAccessed()

		time.Sleep(35 * time.Second)
		require.Equal(t, 85*time.Second, g.Remaining())

		require.NoError(t, g.AwaitClear(context.Background()))
		elapsed := time.Since(marked)
		require.GreaterOrEqual(t, elapsed, 120*time.Second)
		// polling de 10s a partir de t=35s acorda em t=125s
		require.Equal(t, 125*time.Second, elapsed)
	})
}

func TestCooldownGate_AwaitClearInterrupted(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g := NewCooldownGate(timeClock{}, 120*time.Second, 10*time.Second, nil)
		g.MarkAccessed()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := g.AwaitClear(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestCooldownGate_MarkAccessedOnlyMovesForward(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g := NewCooldownGate(timeClock{}, time.Minute, time.Second, nil)

		first := g.MarkAccessed()
		time.Sleep(time.Second)
		second := g.MarkAccessed()
		require.True(t, second.After(first))

		last, ok := g.LastAccess()
		require.True(t, ok)
		require.Equal(t, second, last)
	})
}

func TestCooldownGate_PollClampedToCooldown(t *testing.T) {
	g := NewCooldownGate(timeClock{}, 5*time.Second, time.Minute, nil)
	require.Equal(t, 5*time.Second, g.PollInterval())

	g = NewCooldownGate(timeClock{}, 5*time.Second, 0, nil)
	require.Equal(t, 5*time.Second, g.PollInterval())
}
