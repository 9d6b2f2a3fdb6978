package application

import (
	"container/heap"
	"time"
)

var _ heap.Interface = (*requestHeap)(nil)

// RequestQueue guarda as requisições pendentes em ordem decrescente de
// prioridade. Prioridades iguais saem na ordem de chegada.
//
// Não é seguro para uso concorrente: o Dispatcher o protege com a mesma
// seção crítica da flag de drenagem.
type RequestQueue struct {
	items requestHeap
	seqNo int64
}

// Enqueue cria uma requisição pendente e a coloca na fila.
func (q *RequestQueue) Enqueue(priority int, at time.Time) *Request {
	req := newRequest(priority, q.seqNo, at)
	q.seqNo++
	heap.Push(&q.items, req)
	return req
}

// Drain remove e retorna a requisição de maior prioridade.
// ok=false quando a fila está vazia.
func (q *RequestQueue) Drain() (req *Request, ok bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return heap.Pop(&q.items).(*Request), true
}

// Peek retorna a próxima requisição sem removê-la.
func (q *RequestQueue) Peek() *Request {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *RequestQueue) Len() int { return len(q.items) }

type requestHeap []*Request

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seqNo < h[j].seqNo
}

func (h requestHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *requestHeap) Push(x any) {
	req := x.(*Request)
	req.index = len(*h)
	*h = append(*h, req)
}

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	req := old[n-1]
	old[n-1] = nil
	req.index = -1
	*h = old[:n-1]
	return req
}
