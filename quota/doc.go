// Package quota é o front-end HTTP (net/http) do controle de cota diária.
//
// Visão geral (camadas):
//
//   - domain: tipos, erros sentinela e contratos (sem dependência de net/http)
//   - application: casos de uso (status, incremento, unlock, check_auth, throttling)
//   - infra: implementações concretas (store em memória, senhas do ambiente,
//     token bucket, semáforo, estatísticas em memória/Redis)
//   - quota (este pacote): extração de identidade, handlers JSON, middlewares e rotas
//
// Fluxo de um request:
//
//   1) Extrai a chave do cliente (header X-Device-ID ou endereço)
//   2) Chama QuotaService (status, increment, unlock ou check_auth)
//   3) Traduz o resultado/erro para status HTTP + JSON fixo
//
// Rotas: GET /api/status, POST /api/increment, POST /api/unlock,
// POST /api/check_auth, GET /ping,
// GET /healthz e GET / (estáticos com fallback para index.html).
package quota
