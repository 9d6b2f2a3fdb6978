package application

import (
	"time"

	"resource-scheduler/resource/domain"
)

// RateService decide se um cliente pode submeter agora.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type RateService struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s RateService) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}

	lim := s.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}

	retry := s.RetryAfter
	if h, ok := lim.(domain.RetryHinter); ok {
		if in := h.RetryIn(); in > 0 {
			retry = in.Round(time.Second)
			if retry < in {
				retry += time.Second
			}
		}
	}
	if retry <= 0 {
		retry = time.Second
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}
}
