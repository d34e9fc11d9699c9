package application

import (
	"time"

	"quota-gateway/quota/domain"
)

// DefaultRetryAfter é usado quando o limiter recusa sem prever reposição.
const DefaultRetryAfter = time.Minute

// ThrottleService decide se mais uma tentativa de senha é permitida e, quando
// não é, quanto tempo o cliente deve esperar. Não sabe nada de HTTP.
type ThrottleService struct {
	Store domain.LimiterStore
	// Now troca o relógio (testes).
	Now func() time.Time
}

// Decide consome uma tentativa de key. RetryAfter é a espera real até a
// próxima ficha, arredondada para cima em segundos inteiros (Retry-After não
// aceita fração e arredondar para baixo faria o cliente voltar cedo demais).
func (s ThrottleService) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	lim := s.Store.Get(key)
	if lim == nil {
		return domain.Decision{Allowed: true}
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ok, wait := lim.Take(now())
	if ok {
		return domain.Decision{Allowed: true}
	}
	if wait <= 0 {
		return domain.Decision{RetryAfter: DefaultRetryAfter}
	}
	return domain.Decision{RetryAfter: ceilSeconds(wait)}
}

func ceilSeconds(d time.Duration) time.Duration {
	if r := d % time.Second; r != 0 {
		d += time.Second - r
	}
	return d
}
