package infra

import (
	"context"
	"sync"

	"resource-scheduler/resource/domain"
)

var _ domain.SlotPool = (*ChanPool)(nil)

// ChanPool é um semáforo baseado em channel.
type ChanPool struct {
	sem chan struct{}
}

// NewChanPool cria um pool com capacidade `capacity` (mínimo 1).
func NewChanPool(capacity int) *ChanPool {
	if capacity < 1 {
		capacity = 1
	}
	return &ChanPool{sem: make(chan struct{}, capacity)}
}

// Acquire implementa domain.SlotPool. Um ctx já encerrado nunca recebe vaga,
// mesmo com vaga livre. O release é idempotente.
func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	select {
	case p.sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-p.sem }) }, true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *ChanPool) Capacity() int { return cap(p.sem) }
func (p *ChanPool) InUse() int    { return len(p.sem) }
