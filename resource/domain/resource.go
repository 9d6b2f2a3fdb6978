package domain

import (
	"context"
	"time"
)

// Clock fornece o tempo atual e uma espera interrompível.
type Clock interface {
	Now() time.Time
	// Sleep retorna ctx.Err() se o contexto encerrar antes de d.
	Sleep(ctx context.Context, d time.Duration) error
}

// ResourceAccess é a operação opaca e demorada sobre o recurso escasso.
//
// Se o ctx for cancelado durante o acesso, a implementação deve retornar o
// resultado designado de interrupção (InterruptedResult) com erro nil, para
// que o caminho de limpeza do agendador sempre execute.
type ResourceAccess interface {
	Perform(ctx context.Context, priority int) (string, error)
}

// InterruptedResult é o texto retornado por um acesso interrompido.
const InterruptedResult = "resource access interrupted"
