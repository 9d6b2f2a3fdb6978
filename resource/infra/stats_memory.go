package infra

import (
	"context"
	"sync"
	"time"

	"resource-scheduler/resource/domain"
)

type Counters struct {
	Succeeded   int64 `json:"succeeded"`
	Failed      int64 `json:"failed"`
	Interrupted int64 `json:"interrupted"`

	TotalWait     time.Duration `json:"totalWaitNs"`
	TotalDuration time.Duration `json:"totalDurationNs"`
}

func (c *Counters) add(ev domain.AccessEvent) {
	switch ev.Status {
	case domain.AccessSucceeded:
		c.Succeeded++
	case domain.AccessInterrupted:
		c.Interrupted++
	default:
		c.Failed++
	}
	c.TotalWait += ev.Waited
	c.TotalDuration += ev.Duration
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração.
type MemoryStatsStore struct {
	mu         sync.Mutex
	total      Counters
	byPriority map[int]Counters
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{byPriority: make(map[int]Counters)}
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.AccessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)
	c := s.byPriority[ev.Priority]
	c.add(ev)
	s.byPriority[ev.Priority] = c
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByPriority() map[int]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]Counters, len(s.byPriority))
	for k, v := range s.byPriority {
		out[k] = v
	}
	return out
}
