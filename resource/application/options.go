package application

import (
	"time"

	"resource-scheduler/resource/domain"

	"go.uber.org/zap"
)

const (
	DefaultCooldown     = 120 * time.Second
	DefaultPollInterval = 10 * time.Second
	DefaultStatsTimeout = 2 * time.Second
)

// Options holds configuration for the [Dispatcher]. Cooldown and poll
// interval are fixed once the dispatcher is built.
type Options struct {
	Cooldown     time.Duration
	PollInterval time.Duration
	Logger       *zap.Logger
	Metrics      MetricsHook
	Stats        domain.StatsStore
	StatsTimeout time.Duration
}

// Option configures [Options].
type Option func(*Options)

// WithCooldown sets the minimum interval between the start of two accesses.
// Non-positive values are ignored.
func WithCooldown(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Cooldown = d
		}
	}
}

// WithPollInterval sets how often a waiting task re-checks the cooldown.
func WithPollInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.PollInterval = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithMetricsHook sets the hook notified on enqueue, dequeue, cooldown wait
// and completion.
func WithMetricsHook(hook MetricsHook) Option {
	return func(o *Options) {
		o.Metrics = hook
	}
}

// WithStats sets where completed accesses are recorded (best-effort).
func WithStats(s domain.StatsStore) Option {
	return func(o *Options) {
		o.Stats = s
	}
}

func WithStatsTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.StatsTimeout = d
		}
	}
}
