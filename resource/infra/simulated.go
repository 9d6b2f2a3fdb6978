package infra

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"resource-scheduler/resource/domain"

	"go.uber.org/zap"
)

var _ domain.ResourceAccess = (*SimulatedResource)(nil)

// SimulatedResource simula o recurso escasso: cada acesso leva
// `min + [0, jitter)` e retorna um texto com a prioridade e o tempo gasto.
type SimulatedResource struct {
	clock  domain.Clock
	min    time.Duration
	jitter time.Duration
	randN  func(n int64) int64
	log    *zap.Logger
}

type SimulatedOption func(*SimulatedResource)

// WithProcessingTime define a duração mínima e a variação aleatória.
func WithProcessingTime(min, jitter time.Duration) SimulatedOption {
	return func(s *SimulatedResource) {
		if min >= 0 {
			s.min = min
		}
		if jitter >= 0 {
			s.jitter = jitter
		}
	}
}

// WithRandSource troca o gerador (útil em testes). randN deve retornar um
// valor em [0, n).
func WithRandSource(randN func(n int64) int64) SimulatedOption {
	return func(s *SimulatedResource) { s.randN = randN }
}

func WithSimulatedLogger(l *zap.Logger) SimulatedOption {
	return func(s *SimulatedResource) { s.log = l }
}

func NewSimulatedResource(clock domain.Clock, opts ...SimulatedOption) *SimulatedResource {
	s := &SimulatedResource{
		clock:  clock,
		min:    5 * time.Second,
		jitter: 10 * time.Second,
		randN:  rand.Int64N,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SimulatedResource) Perform(ctx context.Context, priority int) (string, error) {
	d := s.min
	if s.jitter > 0 {
		d += time.Duration(s.randN(int64(s.jitter)))
	}

	s.log.Info("simulating resource access", zap.Int("priority", priority), zap.Duration("processing", d))
	if err := s.clock.Sleep(ctx, d); err != nil {
		s.log.Warn("resource access interrupted", zap.Int("priority", priority), zap.Error(err))
		return domain.InterruptedResult, nil
	}

	return fmt.Sprintf("resource access succeeded: priority=%d processing=%s accessed_at=%s",
		priority, d.Round(time.Millisecond), s.clock.Now().Format(time.RFC3339)), nil
}
