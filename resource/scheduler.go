package resource

import (
	"time"

	"resource-scheduler/resource/application"
	"resource-scheduler/resource/domain"
	"resource-scheduler/resource/infra"

	"go.uber.org/zap"
)

// SchedulerOptions configura NewScheduler. Campos zerados usam os padrões:
// cooldown de 120s, polling de 10s e acesso simulado de 5s a 15s.
type SchedulerOptions struct {
	Cooldown     time.Duration
	PollInterval time.Duration

	// Access substitui o recurso simulado.
	Access       domain.ResourceAccess
	AccessMin    time.Duration
	AccessJitter time.Duration

	Clock   domain.Clock
	Logger  *zap.Logger
	Metrics application.MetricsHook
	Stats   domain.StatsStore
}

// NewScheduler monta o Dispatcher com um limitador de capacidade 1.
func NewScheduler(opts SchedulerOptions) *application.Dispatcher {
	if opts.Clock == nil {
		opts.Clock = infra.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Access == nil {
		simOpts := []infra.SimulatedOption{infra.WithSimulatedLogger(opts.Logger.Named("resource"))}
		if opts.AccessMin > 0 || opts.AccessJitter > 0 {
			simOpts = append(simOpts, infra.WithProcessingTime(opts.AccessMin, opts.AccessJitter))
		}
		opts.Access = infra.NewSimulatedResource(opts.Clock, simOpts...)
	}

	limiter := application.ConcurrencyService{Pool: infra.NewChanPool(1)}

	return application.NewDispatcher(opts.Access, limiter, opts.Clock,
		application.WithCooldown(opts.Cooldown),
		application.WithPollInterval(opts.PollInterval),
		application.WithLogger(opts.Logger.Named("dispatcher")),
		application.WithMetricsHook(opts.Metrics),
		application.WithStats(opts.Stats),
	)
}
