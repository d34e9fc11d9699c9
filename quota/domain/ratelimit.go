package domain

// Throttling auxiliar (token bucket) usado para segurar tentativas de senha.
//
// Regras e contratos sem dependência de net/http.

import "time"

// Limiter controla tentativas de uma chave.
//
// Take consome uma tentativa em now. Se não houver ficha, nada é consumido e
// wait diz quanto falta para a próxima (0 quando a chave nunca libera).
// A camada de infra usa golang.org/x/time/rate.
type Limiter interface {
	Take(now time.Time) (ok bool, wait time.Duration)
}

// LimiterStore obtém um limiter por chave (ex: IP do cliente).
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
