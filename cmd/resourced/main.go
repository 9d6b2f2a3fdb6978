package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"resource-scheduler/resource"
	"resource-scheduler/resource/domain"
	"resource-scheduler/resource/infra"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	cfg := defaultConfig()
	cmd := &cobra.Command{
		Use:   "resourced",
		Short: "resourced gates a single-caller resource behind a priority queue and a cooldown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.validate(); err != nil {
				return errors.Wrap(err, "config error")
			}
			return run(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	}
	cfg.bindFlags(cmd)
	return cmd
}

func run(parent context.Context, cfg config) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var stats domain.StatsStore = infra.NewMemoryStatsStore()
	if cfg.statsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			return errors.Wrap(err, "redis stats ping error")
		}

		stats = infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
		)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infra.NewPromMetrics(registry)

	sched := resource.NewScheduler(resource.SchedulerOptions{
		Cooldown:     cfg.cooldown,
		PollInterval: cfg.cooldownPoll,
		AccessMin:    cfg.accessMin,
		AccessJitter: cfg.accessJitter,
		Logger:       log,
		Metrics:      metrics,
		Stats:        stats,
	})

	var mws []mux.MiddlewareFunc
	mws = append(mws, resource.ConcurrencyMiddleware(resource.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
		Logger:         log,
	}))
	if cfg.rateEnabled {
		limiters := infra.NewClientLimiters(cfg.rateRPS, cfg.rateBurst)
		limiters.StartJanitor(ctx)
		// rate antes de concorrência: cliente recusado não ocupa vaga
		mws = append([]mux.MiddlewareFunc{resource.RateMiddleware(resource.RateOptions{
			Store:               limiters,
			KeyHeader:           cfg.rateKeyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.retryAfter,
			AddRateLimitHeaders: cfg.addHeaders,
			Logger:              log,
		})}, mws...)
	}

	router := resource.NewRouter(resource.RouterOptions{
		Scheduler:   sched,
		Stats:       stats,
		Registry:    registry,
		ParallelMax: cfg.parallelMax,
		Middlewares: mws,
		Logger:      log.Named("http"),
	})

	// Sem WriteTimeout: um chamador pode esperar vários cooldowns.
	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		sched.Close()
	}()

	log.Info("resourced listening",
		zap.String("addr", cfg.listenAddr),
		zap.Duration("cooldown", cfg.cooldown),
		zap.Duration("cooldownPoll", cfg.cooldownPoll),
		zap.Duration("accessMin", cfg.accessMin),
		zap.Duration("accessJitter", cfg.accessJitter),
	)
	log.Info("rate",
		zap.Bool("enabled", cfg.rateEnabled),
		zap.Float64("rps", cfg.rateRPS),
		zap.Int("burst", cfg.rateBurst),
		zap.String("keyHeader", cfg.rateKeyHeader),
		zap.Bool("trustXFF", cfg.trustXFF),
	)
	log.Info("stats", zap.Bool("redis", cfg.statsEnabled), zap.String("redisAddr", cfg.statsRedisAddr), zap.String("bucket", cfg.statsBucket))
	log.Info("concurrency", zap.Int("max", cfg.concurrencyMax), zap.Duration("acquireTimeout", cfg.concurrencyTimeout))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server error")
	}
	<-stopped
	return nil
}

func newLogger(cfg config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.logDevelopment {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(strings.ToLower(cfg.logLevel))
	if err != nil {
		return nil, errors.Wrap(err, "invalid LOG_LEVEL")
	}
	zcfg.Level = level
	return zcfg.Build()
}
