package application_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"resource-scheduler/resource/application"
	"resource-scheduler/resource/domain"
	"resource-scheduler/resource/infra"

	"github.com/stretchr/testify/require"
)

const cooldown = 120 * time.Second

// recordingResource conta acessos simultâneos e guarda o início de cada um.
type recordingResource struct {
	took    time.Duration
	err     error
	panics  bool
	started chan int

	mu         sync.Mutex
	active     int
	maxActive  int
	starts     []time.Time
	priorities []int
}

func (r *recordingResource) Perform(ctx context.Context, priority int) (string, error) {
	r.mu.Lock()
	r.active++
	r.maxActive = max(r.maxActive, r.active)
	r.starts = append(r.starts, time.Now())
	r.priorities = append(r.priorities, priority)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	}()

	if r.started != nil {
		r.started <- priority
	}
	if r.panics {
		panic("resource exploded")
	}

	select {
	case <-time.After(r.took):
	case <-ctx.Done():
		return domain.InterruptedResult, nil
	}
	if r.err != nil {
		return "", r.err
	}
	return fmt.Sprintf("ok priority=%d", priority), nil
}

func (r *recordingResource) snapshot() (starts []time.Time, priorities []int, maxActive int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.starts), slices.Clone(r.priorities), r.maxActive
}

func newDispatcher(res domain.ResourceAccess, opts ...application.Option) *application.Dispatcher {
	limiter := application.ConcurrencyService{Pool: infra.NewChanPool(1)}
	return application.NewDispatcher(res, limiter, infra.SystemClock{}, opts...)
}

func requireCooldownGaps(t *testing.T, starts []time.Time) {
	t.Helper()
	sorted := slices.Clone(starts)
	slices.SortFunc(sorted, func(a, b time.Time) int { return a.Compare(b) })
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Sub(sorted[i-1])
		require.GreaterOrEqualf(t, gap, cooldown, "gap between access %d and %d", i-1, i)
	}
}

func submitAll(d *application.Dispatcher, priorities ...int) []string {
	results := make([]string, len(priorities))
	var wg sync.WaitGroup
	for i, p := range priorities {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.Submit(context.Background(), p)
		}()
	}
	wg.Wait()
	return results
}

func TestDispatcher_FirstRequestDoesNotWait(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		d := newDispatcher(infra.NewSimulatedResource(infra.SystemClock{}))
		defer d.Close()

		start := time.Now()
		got := d.Submit(context.Background(), 0)

		require.Contains(t, got, "priority=0")
		require.Contains(t, got, "processing=")
		// o acesso simulado leva de 5s a 15s, sem cooldown antes
		elapsed := time.Since(start)
		require.GreaterOrEqual(t, elapsed, 5*time.Second)
		require.Less(t, elapsed, 15*time.Second)
	})
}

func TestDispatcher_SamePriorityRequestsAreSpacedByCooldown(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		res := &recordingResource{took: 7 * time.Second}
		d := newDispatcher(res)
		defer d.Close()

		results := submitAll(d, 1, 1, 1)

		require.Len(t, results, 3)
		for _, r := range results {
			require.Equal(t, "ok priority=1", r)
		}
		starts, _, maxActive := res.snapshot()
		require.Len(t, starts, 3)
		require.Equal(t, 1, maxActive)
		requireCooldownGaps(t, starts)
	})
}

func TestDispatcher_MixedPrioritiesAllResolve(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		res := &recordingResource{took: 3 * time.Second}
		d := newDispatcher(res)
		defer d.Close()

		priorities := []int{1, 5, 10, 1, 5, 10}
		results := submitAll(d, priorities...)

		for i, r := range results {
			require.Equal(t, fmt.Sprintf("ok priority=%d", priorities[i]), r)
		}
		starts, got, maxActive := res.snapshot()
		require.ElementsMatch(t, priorities, got)
		require.Equal(t, 1, maxActive)
		requireCooldownGaps(t, starts)
	})
}

// Depois de despachada, uma requisição não perde a vez para outra de maior
// prioridade: só se afirma que ambas terminam.
func TestDispatcher_LateHighPriorityRequestResolves(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		res := &recordingResource{took: 10 * time.Second, started: make(chan int, 2)}
		d := newDispatcher(res)
		defer d.Close()

		low := d.Enqueue(1)
		require.Equal(t, 1, <-res.started)

		high := d.Enqueue(10)
		require.Equal(t, 10, <-res.started)

		lowResult, err := low.Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, "ok priority=1", lowResult)

		highResult, err := high.Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, "ok priority=10", highResult)

		starts, _, _ := res.snapshot()
		requireCooldownGaps(t, starts)
	})
}

// blockingHook segura o loop de drenagem no primeiro OnDequeue até release
// fechar, para que as demais requisições se acumulem na fila.
type blockingHook struct {
	release chan struct{}

	mu       sync.Mutex
	dequeued []int
	waits    []time.Duration
	events   []domain.AccessEvent
}

func (h *blockingHook) OnEnqueue(*application.Request) {}

func (h *blockingHook) OnDequeue(req *application.Request) {
	h.mu.Lock()
	h.dequeued = append(h.dequeued, req.Priority)
	first := len(h.dequeued) == 1
	h.mu.Unlock()
	if first {
		<-h.release
	}
}

func (h *blockingHook) OnCooldownWait(d time.Duration) {
	h.mu.Lock()
	h.waits = append(h.waits, d)
	h.mu.Unlock()
}

func (h *blockingHook) OnComplete(ev domain.AccessEvent) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
}

func TestDispatcher_DequeuesInPriorityOrder(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		hook := &blockingHook{release: make(chan struct{})}
		d := newDispatcher(&recordingResource{took: time.Second}, application.WithMetricsHook(hook))
		defer d.Close()

		first := d.Enqueue(0)
		synctest.Wait() // loop parado no hook

		reqs := []*application.Request{first}
		for _, p := range []int{1, 5, 10} {
			reqs = append(reqs, d.Enqueue(p))
		}
		require.Equal(t, 3, d.Status().Queued)
		require.True(t, d.Status().Draining)

		close(hook.release)
		for _, r := range reqs {
			_, err := r.Wait(context.Background())
			require.NoError(t, err)
		}
		synctest.Wait() // OnComplete roda depois da resolução

		hook.mu.Lock()
		defer hook.mu.Unlock()
		require.Equal(t, []int{0, 10, 5, 1}, hook.dequeued)
		require.Len(t, hook.events, 4)
		require.NotEmpty(t, hook.waits)
	})
}

func TestDispatcher_AccessFailureIsDeliveredAndSlotReleased(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		res := &recordingResource{took: time.Second, err: errors.New("device busy")}
		d := newDispatcher(res)
		defer d.Close()

		_, err := d.Enqueue(2).Wait(context.Background())
		require.ErrorIs(t, err, domain.ErrAccessFailed)
		require.ErrorContains(t, err, "device busy")

		got := d.Submit(context.Background(), 3)
		require.True(t, strings.HasPrefix(got, "access failed: "), got)

		starts, _, _ := res.snapshot()
		require.Len(t, starts, 2)
		requireCooldownGaps(t, starts)
	})
}

func TestDispatcher_PanickingAccessStillReleasesSlot(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		res := &recordingResource{panics: true}
		d := newDispatcher(res)
		defer d.Close()

		_, err := d.Enqueue(1).Wait(context.Background())
		require.ErrorIs(t, err, domain.ErrAccessFailed)

		res.mu.Lock()
		res.panics = false
		res.mu.Unlock()

		got, err := d.Enqueue(1).Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, "ok priority=1", got)
	})
}

type panickingHook struct {
	once sync.Once
}

func (h *panickingHook) OnEnqueue(*application.Request) {}

func (h *panickingHook) OnDequeue(*application.Request) {
	fire := false
	h.once.Do(func() { fire = true })
	if fire {
		panic("hook exploded")
	}
}

func (h *panickingHook) OnCooldownWait(time.Duration)   {}
func (h *panickingHook) OnComplete(ev domain.AccessEvent) {}

func TestDispatcher_DrainLoopFailureResetsDraining(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		d := newDispatcher(&recordingResource{took: time.Second}, application.WithMetricsHook(&panickingHook{}))
		defer d.Close()

		_, err := d.Enqueue(1).Wait(context.Background())
		require.ErrorIs(t, err, domain.ErrSchedulingFailure)

		synctest.Wait()
		require.False(t, d.Status().Draining)

		got, err := d.Enqueue(2).Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, "ok priority=2", got)
	})
}

func TestDispatcher_CloseInterruptsWaitingRequests(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		res := &recordingResource{took: 10 * time.Second, started: make(chan int, 2)}
		d := newDispatcher(res)

		accessing := d.Enqueue(1)
		<-res.started
		waiting := d.Enqueue(1)
		synctest.Wait()

		d.Close()

		got, err := accessing.Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, domain.InterruptedResult, got)

		_, err = waiting.Wait(context.Background())
		require.ErrorIs(t, err, domain.ErrInterrupted)

		_, err = d.Enqueue(1).Wait(context.Background())
		require.ErrorIs(t, err, domain.ErrInterrupted)
	})
}

func TestDispatcher_CallerGivingUpDoesNotCancelRequest(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		stats := infra.NewMemoryStatsStore()
		res := &recordingResource{took: 5 * time.Second}
		d := newDispatcher(res, application.WithStats(stats))
		defer d.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		got := d.Submit(ctx, 4)
		require.True(t, strings.HasPrefix(got, "access failed: "), got)

		synctest.Wait()
		time.Sleep(10 * time.Second)
		synctest.Wait()

		total := stats.Total()
		require.Equal(t, int64(1), total.Succeeded)
		require.Equal(t, 5*time.Second, total.TotalDuration)
	})
}

func TestDispatcher_StatusReportsCooldown(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		d := newDispatcher(&recordingResource{took: 20 * time.Second})
		defer d.Close()

		st := d.Status()
		require.False(t, st.Draining)
		require.Zero(t, st.CooldownRemaining)
		require.True(t, st.LastAccess.IsZero())

		_, err := d.Enqueue(1).Wait(context.Background())
		require.NoError(t, err)
		synctest.Wait()

		st = d.Status()
		require.Equal(t, cooldown-20*time.Second, st.CooldownRemaining)
		require.False(t, st.LastAccess.IsZero())
		require.Zero(t, st.InFlight)
		require.Equal(t, cooldown, d.Cooldown())
	})
}
