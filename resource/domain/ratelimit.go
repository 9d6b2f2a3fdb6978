package domain

// Contratos do limite por cliente aplicado antes da submissão.

import "time"

// Key identifica o cliente que submete (IP, API key, ...).
type Key string

// Limiter decide se uma submissão do cliente é permitida agora.
// A camada de infra usa golang.org/x/time/rate.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por cliente.
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

// RetryHinter é implementado por limiters que sabem quando o próximo token
// estará disponível.
type RetryHinter interface {
	RetryIn() time.Duration
}
