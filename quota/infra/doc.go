// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryStore: registros de cota por cliente em memória, com virada diária
//   - EnvPasswords: senhas VIP lidas do ambiente a cada tentativa
//   - BucketStore: token bucket por chave usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore: contadores de resultado das operações
package infra
