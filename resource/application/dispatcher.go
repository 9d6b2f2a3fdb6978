package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"resource-scheduler/resource/domain"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MetricsHook defines hooks for monitoring the dispatcher. Hooks are called
// outside the dispatcher's critical section and must not block.
type MetricsHook interface {
	OnEnqueue(req *Request)
	OnDequeue(req *Request)
	OnCooldownWait(d time.Duration)
	OnComplete(ev domain.AccessEvent)
}

// Status é um retrato, somente leitura, do estado do agendador.
type Status struct {
	Queued            int
	Draining          bool
	InFlight          int64
	CooldownRemaining time.Duration
	LastAccess        time.Time
}

// Dispatcher admite um acesso por vez ao recurso, respeitando o cooldown
// entre acessos e servindo primeiro as requisições de maior prioridade.
//
// O loop de drenagem retira requisições da fila em ordem de prioridade e
// entrega cada uma a uma tarefa de conclusão independente, sem esperar por
// ela. As tarefas competem pelo limitador sem ordem de prioridade: a
// prioridade vale apenas no momento da retirada da fila.
type Dispatcher struct {
	access  domain.ResourceAccess
	limiter ConcurrencyService
	gate    *CooldownGate
	clock   domain.Clock
	log     *zap.Logger

	metrics      MetricsHook
	stats        domain.StatsStore
	statsTimeout time.Duration

	// mu protege a fila, a flag draining e closed como um único passo.
	mu       sync.Mutex
	queue    RequestQueue
	draining bool
	closed   bool

	inFlight atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
}

// NewDispatcher cria um Dispatcher. O limiter deve ter capacidade 1.
func NewDispatcher(access domain.ResourceAccess, limiter ConcurrencyService, clock domain.Clock, opts ...Option) *Dispatcher {
	o := &Options{
		Cooldown:     DefaultCooldown,
		PollInterval: DefaultPollInterval,
		Logger:       zap.NewNop(),
		StatsTimeout: DefaultStatsTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		access:       access,
		limiter:      limiter,
		gate:         NewCooldownGate(clock, o.Cooldown, o.PollInterval, o.Logger),
		clock:        clock,
		log:          o.Logger,
		metrics:      o.Metrics,
		stats:        o.Stats,
		statsTimeout: o.StatsTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Submit enfileira uma requisição e bloqueia até ela ser resolvida.
//
// Nunca retorna erro: falhas viram um texto descritivo. Encerrar o ctx só
// interrompe a espera do chamador.
func (d *Dispatcher) Submit(ctx context.Context, priority int) string {
	d.log.Info("access request received", zap.Int("priority", priority))

	result, err := d.Enqueue(priority).Wait(ctx)
	if err != nil {
		d.log.Error("resource access failed", zap.Int("priority", priority), zap.Error(err))
		return "access failed: " + err.Error()
	}
	return result
}

// Enqueue adiciona uma requisição pendente e inicia a drenagem se ela estiver
// parada. Depois de Close a requisição já volta resolvida com
// domain.ErrInterrupted.
func (d *Dispatcher) Enqueue(priority int) *Request {
	now := d.clock.Now()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		req := newRequest(priority, -1, now)
		_ = req.resolve("", errors.Wrap(domain.ErrInterrupted, "scheduler closed"))
		return req
	}
	req := d.queue.Enqueue(priority, now)
	if !d.draining {
		d.startDrainLocked()
	}
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.OnEnqueue(req)
	}
	return req
}

func (d *Dispatcher) startDrainLocked() {
	d.draining = true
	d.tasks.Add(1)
	go d.drain()
}

// drain retira requisições até a fila esvaziar. Em caso de pânico a flag
// draining é sempre limpa; se ainda houver fila, um novo loop é iniciado.
func (d *Dispatcher) drain() {
	defer d.tasks.Done()

	var req *Request
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := errors.Wrapf(domain.ErrSchedulingFailure, "drain loop: %v", r)
		d.log.Error("drain loop failed", zap.Error(err))
		if req != nil {
			d.fail(req, err)
		}

		d.mu.Lock()
		defer d.mu.Unlock()
		d.draining = false
		if d.queue.Len() > 0 {
			d.startDrainLocked()
		}
	}()

	for {
		var ok bool
		req, ok = d.next()
		if !ok {
			return
		}
		if d.metrics != nil {
			d.metrics.OnDequeue(req)
		}

		d.inFlight.Add(1)
		d.tasks.Add(1)
		go d.complete(req)
		req = nil
	}
}

func (d *Dispatcher) next() (*Request, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, ok := d.queue.Drain()
	if !ok {
		d.draining = false
	}
	return req, ok
}

// complete executa, em ordem: cooldown, vaga, nova checagem do cooldown com
// a vaga em mãos, marcação do acesso, acesso, resolução e liberação da vaga.
func (d *Dispatcher) complete(req *Request) {
	defer d.tasks.Done()
	defer d.inFlight.Add(-1)

	ev := d.run(req)
	ev.At = d.clock.Now()

	if d.metrics != nil {
		d.metrics.OnComplete(ev)
	}
	d.record(ev)
}

func (d *Dispatcher) run(req *Request) (ev domain.AccessEvent) {
	ev = domain.AccessEvent{Priority: req.Priority, Status: domain.AccessInterrupted}

	defer func() {
		if r := recover(); r != nil {
			ev.Status = domain.AccessFailed
			d.fail(req, errors.Wrapf(domain.ErrAccessFailed, "priority %d: panic: %v", req.Priority, r))
		}
	}()

	if err := d.ctx.Err(); err != nil {
		d.fail(req, errors.Wrapf(domain.ErrInterrupted, "scheduler closed: %v", err))
		return ev
	}
	if err := d.awaitClear(); err != nil {
		d.fail(req, errors.Wrapf(domain.ErrInterrupted, "awaiting cooldown: %v", err))
		return ev
	}

	d.log.Info("acquiring resource", zap.Int("priority", req.Priority))
	release, err := d.limiter.Acquire(d.ctx)
	if err != nil {
		d.fail(req, errors.Wrap(err, "acquiring resource"))
		return ev
	}
	defer release()

	// Outra tarefa pode ter acessado entre a primeira checagem e a vaga.
	if err := d.awaitClear(); err != nil {
		d.fail(req, errors.Wrapf(domain.ErrInterrupted, "awaiting cooldown: %v", err))
		return ev
	}

	started := d.gate.MarkAccessed()
	ev.Waited = started.Sub(req.EnqueuedAt)
	d.log.Info("accessing resource", zap.Int("priority", req.Priority), zap.Duration("waited", ev.Waited))

	result, err := d.access.Perform(d.ctx, req.Priority)
	ev.Duration = d.clock.Now().Sub(started)
	if err != nil {
		ev.Status = domain.AccessFailed
		d.fail(req, errors.Wrapf(domain.ErrAccessFailed, "priority %d: %v", req.Priority, err))
		return ev
	}

	ev.Status = domain.AccessSucceeded
	if result == domain.InterruptedResult {
		ev.Status = domain.AccessInterrupted
	}
	if err := req.resolve(result, nil); err != nil {
		d.log.Warn("request resolved twice", zap.Int("priority", req.Priority))
	}
	d.log.Info("resource access completed",
		zap.Int("priority", req.Priority),
		zap.String("status", string(ev.Status)),
		zap.Duration("duration", ev.Duration),
	)
	return ev
}

func (d *Dispatcher) awaitClear() error {
	start := d.clock.Now()
	err := d.gate.AwaitClear(d.ctx)
	if waited := d.clock.Now().Sub(start); waited > 0 && d.metrics != nil {
		d.metrics.OnCooldownWait(waited)
	}
	return err
}

func (d *Dispatcher) fail(req *Request, err error) {
	d.log.Error("request failed", zap.Int("priority", req.Priority), zap.Error(err))
	if rerr := req.resolve("", err); rerr != nil {
		d.log.Warn("request resolved twice", zap.Int("priority", req.Priority), zap.Error(rerr))
	}
}

func (d *Dispatcher) record(ev domain.AccessEvent) {
	if d.stats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.statsTimeout)
	defer cancel()
	if err := d.stats.Record(ctx, ev); err != nil {
		d.log.Warn("access stats record failed", zap.Error(err))
	}
}

// Status retorna um retrato do estado atual.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	queued, draining := d.queue.Len(), d.draining
	d.mu.Unlock()

	last, _ := d.gate.LastAccess()
	remaining := d.gate.Remaining()
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Queued:            queued,
		Draining:          draining,
		InFlight:          d.inFlight.Load(),
		CooldownRemaining: remaining,
		LastAccess:        last,
	}
}

// Cooldown retorna o intervalo mínimo entre acessos.
func (d *Dispatcher) Cooldown() time.Duration { return d.gate.Cooldown() }

// Context encerra quando o Dispatcher é fechado. Útil para trabalho em
// segundo plano que deve acompanhar a vida do agendador.
func (d *Dispatcher) Context() context.Context { return d.ctx }

// Close interrompe as tarefas em espera e aguarda todas terminarem.
// Requisições interrompidas são resolvidas com domain.ErrInterrupted.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.tasks.Wait()
}
