package infra

import (
	"context"
	"time"

	"resource-scheduler/resource/domain"
)

var _ domain.Clock = SystemClock{}

// SystemClock usa o relógio do processo.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
