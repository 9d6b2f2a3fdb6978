package infra

import (
	"context"
	"sync"
	"time"

	"resource-scheduler/resource/domain"

	"golang.org/x/time/rate"
)

// ClientLimiters mantém um token bucket (x/time/rate) por cliente que
// submete, com limpeza periódica de clientes inativos.
type ClientLimiters struct {
	mu           sync.Mutex
	entries      map[domain.Key]*clientEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type clientEntry struct {
	lim      clientLimiter
	lastSeen time.Time
}

// clientLimiter expõe o tempo até o próximo token via domain.RetryHinter.
type clientLimiter struct {
	*rate.Limiter
}

func (l clientLimiter) RetryIn() time.Duration {
	limit := l.Limit()
	if limit <= 0 || limit == rate.Inf {
		return 0
	}
	missing := 1 - l.Tokens()
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(limit) * float64(time.Second))
}

type ClientLimitersOption func(*ClientLimiters)

func WithIdleTTL(d time.Duration) ClientLimitersOption {
	return func(s *ClientLimiters) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) ClientLimitersOption {
	return func(s *ClientLimiters) { s.cleanupEvery = d }
}

func NewClientLimiters(rps float64, burst int, opts ...ClientLimitersOption) *ClientLimiters {
	s := &ClientLimiters{
		entries:      make(map[domain.Key]*clientEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ClientLimiters) RPS() float64 { return float64(s.rps) }
func (s *ClientLimiters) Burst() int   { return s.burst }

// Get implementa domain.LimiterStore.
func (s *ClientLimiters) Get(key domain.Key) domain.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	ent := &clientEntry{lim: clientLimiter{rate.NewLimiter(s.rps, s.burst)}, lastSeen: now}
	s.entries[key] = ent
	return ent.lim
}

func (s *ClientLimiters) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup remove clientes sem submissões há mais de idleTTL.
func (s *ClientLimiters) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa clientes inativos periodicamente.
// Pare cancelando o contexto.
func (s *ClientLimiters) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
