// Package resource fornece o agendador de acesso a um recurso escasso e seus
// adapters HTTP (net/http + gorilla/mux).
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: fila por prioridade, cooldown, limitador e loop de despacho
//   - infra: implementações concretas (semáforo, relógio, recurso simulado,
//     token bucket, estatísticas em memória/Redis, métricas Prometheus)
//   - resource (este pacote): wiring do agendador, rotas HTTP e middlewares
//
// Fluxo de uma requisição:
//
//  1. GET /api/resource/access?priority=N chega ao router
//  2. Middlewares opcionais: limite por cliente (429) e requisições em voo (503)
//  3. Dispatcher.Submit enfileira com prioridade e bloqueia
//  4. A tarefa de conclusão espera o cooldown, adquire a vaga única, acessa
//     o recurso e resolve o resultado, devolvido como texto
//
// Variáveis de ambiente do binário (cmd/resourced) controlam o comportamento,
// como COOLDOWN, COOLDOWN_POLL, RATE_ENABLED e STATS_ENABLED.
package resource
