package application

import (
	"context"
	"testing"
	"time"

	"resource-scheduler/resource/domain"

	"github.com/stretchr/testify/require"
)

type blockingPool struct{}

func (p *blockingPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case <-time.After(5 * time.Second):
		// não deve chegar aqui nos testes
		return nil, false
	}
}

type immediatePool struct {
	acquired int
}

func (p *immediatePool) Acquire(ctx context.Context) (func(), bool) {
	p.acquired++
	return func() {}, true
}

func TestConcurrencyService_Acquire_AllowsWhenNoPool(t *testing.T) {
	svc := ConcurrencyService{}
	release, err := svc.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestConcurrencyService_Acquire_UsesTimeout(t *testing.T) {
	svc := ConcurrencyService{Pool: &blockingPool{}, AcquireTimeout: 10 * time.Millisecond}

	_, err := svc.Acquire(context.Background())
	require.ErrorIs(t, err, domain.ErrInterrupted)
	require.ErrorContains(t, err, context.DeadlineExceeded.Error())
}

func TestConcurrencyService_Acquire_CancelledContext(t *testing.T) {
	svc := ConcurrencyService{Pool: &blockingPool{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Acquire(ctx)
	require.ErrorIs(t, err, domain.ErrInterrupted)
}

func TestConcurrencyService_Acquire_NoTimeoutDelegatesToPool(t *testing.T) {
	pool := &immediatePool{}
	svc := ConcurrencyService{Pool: pool}

	_, err := svc.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, pool.acquired)
}
