package domain

import (
	"context"
	"time"
)

type AccessStatus string

const (
	AccessSucceeded   AccessStatus = "succeeded"
	AccessFailed      AccessStatus = "failed"
	AccessInterrupted AccessStatus = "interrupted"
)

// AccessEvent descreve a conclusão de uma tarefa de acesso.
//
// Waited é o tempo entre o enfileiramento e o início do acesso (fila +
// cooldown + vaga). Duration é o tempo do acesso em si; zero quando o
// acesso nem chegou a começar.
type AccessEvent struct {
	Priority int
	Status   AccessStatus

	Waited   time.Duration
	Duration time.Duration

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de acesso.
//
// Implementações podem armazenar em Redis, memória, etc.
// O agendador trata erro como best-effort (não afeta a requisição).
type StatsStore interface {
	Record(ctx context.Context, ev AccessEvent) error
}
