package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"resource-scheduler/resource/application"
	"resource-scheduler/resource/domain"
	"resource-scheduler/resource/infra"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxBatchCount     = 100
	defaultBatchCount = 10
)

// Scheduler é o que as rotas precisam do agendador.
type Scheduler interface {
	Submit(ctx context.Context, priority int) string
	Status() application.Status
	Context() context.Context
}

var _ Scheduler = (*application.Dispatcher)(nil)

// RouterOptions configura NewRouter.
type RouterOptions struct {
	Scheduler Scheduler
	// Stats é exposto em /api/resource/stats quando for um MemoryStatsStore.
	Stats domain.StatsStore
	// Registry habilita /metrics.
	Registry *prometheus.Registry
	// ParallelMax limita as submissões simultâneas de /access-parallel
	// (0 = sem limite).
	ParallelMax int
	// Middlewares são aplicados somente às rotas /api/resource.
	Middlewares []mux.MiddlewareFunc
	Logger      *zap.Logger

	// Escalonamento de /mixed-priority-test.
	MixedStagger time.Duration
	MixedStage   time.Duration
}

type statsSnapshotter interface {
	Total() infra.Counters
	ByPriority() map[int]infra.Counters
}

type handlers struct {
	opts RouterOptions
	log  *zap.Logger
}

// NewRouter registra as rotas HTTP do agendador.
func NewRouter(opts RouterOptions) *mux.Router {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MixedStagger <= 0 {
		opts.MixedStagger = 100 * time.Millisecond
	}
	if opts.MixedStage <= 0 {
		opts.MixedStage = time.Second
	}
	h := &handlers{opts: opts, log: opts.Logger}

	r := mux.NewRouter()
	if opts.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/resource").Subrouter()
	api.Use(opts.Middlewares...)
	api.HandleFunc("/access", h.access).Methods(http.MethodGet)
	api.HandleFunc("/access-sequential", h.accessSequential).Methods(http.MethodGet)
	api.HandleFunc("/access-parallel", h.accessParallel).Methods(http.MethodGet)
	api.HandleFunc("/mixed-priority-test", h.mixedPriorityTest).Methods(http.MethodGet)
	api.HandleFunc("/status", h.status).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	return r
}

func (h *handlers) access(w http.ResponseWriter, r *http.Request) {
	priority, err := intParam(r, "priority", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := h.opts.Scheduler.Submit(r.Context(), priority)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(result))
}

func (h *handlers) accessSequential(w http.ResponseWriter, r *http.Request) {
	count, start, ok := batchParams(w, r)
	if !ok {
		return
	}

	results := make([]string, 0, count)
	for i := range count {
		priority := start + i
		h.log.Info("sequential request", zap.Int("n", i+1), zap.Int("priority", priority))
		results = append(results, h.opts.Scheduler.Submit(r.Context(), priority))
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *handlers) accessParallel(w http.ResponseWriter, r *http.Request) {
	count, start, ok := batchParams(w, r)
	if !ok {
		return
	}

	results := make([]string, count)
	var g errgroup.Group
	if h.opts.ParallelMax > 0 {
		g.SetLimit(h.opts.ParallelMax)
	}
	for i := range count {
		priority := start + i
		g.Go(func() error {
			h.log.Info("parallel request", zap.Int("n", i+1), zap.Int("priority", priority))
			results[i] = h.opts.Scheduler.Submit(r.Context(), priority)
			return nil
		})
	}
	_ = g.Wait()
	writeJSON(w, http.StatusOK, results)
}

// mixedPriorityTest dispara, em segundo plano, 3 submissões de prioridade 1,
// depois 3 de prioridade 5 e depois 3 de prioridade 10.
func (h *handlers) mixedPriorityTest(w http.ResponseWriter, _ *http.Request) {
	ctx := h.opts.Scheduler.Context()

	go func() {
		for stage, priority := range []int{1, 5, 10} {
			if stage > 0 && !sleepCtx(ctx, h.opts.MixedStage) {
				return
			}
			for i := range 3 {
				delay := time.Duration(i) * h.opts.MixedStagger
				go func() {
					if !sleepCtx(ctx, delay) {
						return
					}
					result := h.opts.Scheduler.Submit(ctx, priority)
					h.log.Info("mixed priority result", zap.Int("priority", priority), zap.String("result", result))
				}()
			}
		}
	}()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("mixed priority test started; see logs for results\n"))
}

type statusResponse struct {
	Queued            int        `json:"queued"`
	Draining          bool       `json:"draining"`
	InFlight          int64      `json:"inFlight"`
	CooldownRemaining string     `json:"cooldownRemaining"`
	LastAccess        *time.Time `json:"lastAccess,omitempty"`
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	st := h.opts.Scheduler.Status()
	resp := statusResponse{
		Queued:            st.Queued,
		Draining:          st.Draining,
		InFlight:          st.InFlight,
		CooldownRemaining: st.CooldownRemaining.String(),
	}
	if !st.LastAccess.IsZero() {
		resp.LastAccess = &st.LastAccess
	}
	writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Total      infra.Counters         `json:"total"`
	ByPriority map[int]infra.Counters `json:"byPriority"`
}

func (h *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	s, ok := h.opts.Stats.(statsSnapshotter)
	if !ok {
		http.Error(w, "stats not available", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Total: s.Total(), ByPriority: s.ByPriority()})
}

func batchParams(w http.ResponseWriter, r *http.Request) (count, start int, ok bool) {
	count, err := intParam(r, "count", defaultBatchCount)
	if err == nil && (count < 1 || count > maxBatchCount) {
		err = errInvalidParam("count", "must be between 1 and "+formatInt(maxBatchCount))
	}
	if err == nil {
		start, err = intParam(r, "startPriority", 0)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, 0, false
	}
	return count, start, true
}

type paramError struct {
	name, reason string
}

func (e *paramError) Error() string { return "invalid " + e.name + ": " + e.reason }

func errInvalidParam(name, reason string) error { return &paramError{name: name, reason: reason} }

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, errInvalidParam(name, "not an integer")
	}
	return i, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
