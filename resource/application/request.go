package application

import (
	"context"
	"sync"
	"time"

	"resource-scheduler/resource/domain"

	"github.com/pkg/errors"
)

// Request é uma submissão com prioridade aguardando acesso ao recurso.
//
// O resultado pendente é de atribuição única: somente a tarefa de conclusão
// do Dispatcher o resolve, exatamente uma vez.
type Request struct {
	Priority   int
	EnqueuedAt time.Time

	// seqNo desempata prioridades iguais (ordem de chegada).
	seqNo int64
	index int

	once   sync.Once
	done   chan struct{}
	result string
	err    error
}

func newRequest(priority int, seqNo int64, at time.Time) *Request {
	return &Request{
		Priority:   priority,
		EnqueuedAt: at,
		seqNo:      seqNo,
		index:      -1,
		done:       make(chan struct{}),
	}
}

// Done é fechado quando o resultado é resolvido.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Wait bloqueia até o resultado ser resolvido ou o ctx encerrar.
// Encerrar o ctx não cancela a requisição: ela continua até a resolução.
func (r *Request) Wait(ctx context.Context) (string, error) {
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "waiting for result")
	}
}

// resolve grava o resultado. Uma segunda chamada é rejeitada com
// domain.ErrAlreadyResolved e não altera o resultado.
func (r *Request) resolve(result string, err error) error {
	resolved := false
	r.once.Do(func() {
		r.result, r.err = result, err
		resolved = true
		close(r.done)
	})
	if !resolved {
		return domain.ErrAlreadyResolved
	}
	return nil
}
