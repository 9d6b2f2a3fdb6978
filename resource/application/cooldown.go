package application

import (
	"context"
	"sync"
	"time"

	"resource-scheduler/resource/domain"

	"go.uber.org/zap"
)

// CooldownGate guarda o instante do último acesso e calcula quanto falta
// para o intervalo obrigatório entre acessos.
//
// A espera é por polling em intervalo fixo, não por timer preciso: o
// cooldown é muito maior que o intervalo de polling.
type CooldownGate struct {
	clock    domain.Clock
	cooldown time.Duration
	poll     time.Duration
	log      *zap.Logger

	mu         sync.Mutex
	lastAccess time.Time // zero: nenhum acesso ainda
}

func NewCooldownGate(clock domain.Clock, cooldown, poll time.Duration, log *zap.Logger) *CooldownGate {
	if poll <= 0 || poll > cooldown {
		poll = cooldown
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CooldownGate{clock: clock, cooldown: cooldown, poll: poll, log: log}
}

func (g *CooldownGate) Cooldown() time.Duration     { return g.cooldown }
func (g *CooldownGate) PollInterval() time.Duration { return g.poll }

// Remaining retorna quanto falta do cooldown; <= 0 significa liberado.
func (g *CooldownGate) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lastAccess.IsZero() {
		return 0
	}
	return g.cooldown - g.clock.Now().Sub(g.lastAccess)
}

// LastAccess retorna o início do último acesso, se houve algum.
func (g *CooldownGate) LastAccess() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastAccess, !g.lastAccess.IsZero()
}

// AwaitClear bloqueia até o cooldown passar, reavaliando a cada intervalo de
// polling. Retorna imediatamente se nunca houve acesso.
func (g *CooldownGate) AwaitClear(ctx context.Context) error {
	for {
		remaining := g.Remaining()
		if remaining <= 0 {
			return nil
		}
		g.log.Info("resource cooling down",
			zap.Duration("remaining", remaining),
			zap.Duration("poll", g.poll),
		)
		if err := g.clock.Sleep(ctx, g.poll); err != nil {
			return err
		}
	}
}

// MarkAccessed registra agora como início do último acesso e o retorna.
// O instante nunca anda para trás.
func (g *CooldownGate) MarkAccessed() time.Time {
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if now.After(g.lastAccess) {
		g.lastAccess = now
	}
	return g.lastAccess
}
