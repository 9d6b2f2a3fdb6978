package application

import (
	"context"
	"time"

	"resource-scheduler/resource/domain"

	"github.com/pkg/errors"
)

// ConcurrencyService concentra a regra de aquisição/liberação de vagas,
// sem saber nada sobre HTTP.
//
// Com Pool de capacidade 1 ele é o limitador de acesso ao recurso. O mesmo
// serviço limita requisições HTTP em voo no middleware de concorrência.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
//   - Se `AcquireTimeout > 0`, espera até o timeout.
//
// Sem vaga, retorna um erro que satisfaz errors.Is(err, domain.ErrInterrupted).
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if !ok {
		return nil, errors.Wrapf(domain.ErrInterrupted, "no slot: %v", acqCtx.Err())
	}
	return release, nil
}
