// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain e para o MetricsHook do pacote application.
//
// Exemplos:
//   - ChanPool: semáforo simples; com capacidade 1 é o limitador do recurso
//   - SystemClock / SimulatedResource: relógio real e o acesso simulado
//   - ClientLimiters: token bucket por cliente usando golang.org/x/time/rate
//   - MemoryStatsStore / RedisStatsStore: estatísticas de acesso
//   - PromMetrics: métricas Prometheus do despacho
package infra
