package quota

import (
	"net/http"
	"time"

	"quota-gateway/quota/application"
	"quota-gateway/quota/domain"

	"github.com/go-logr/logr"
)

// ThrottleOptions configura o freio de tentativas de senha.
type ThrottleOptions struct {
	Store domain.LimiterStore
	// KeyFn identifica quem está tentando. O padrão é o endereço do cliente,
	// já que trocar de device id é trivial para quem força senha.
	KeyFn              KeyFunc
	TrustXForwardedFor bool
	Stats              domain.StatsStore
	// Now troca o relógio (testes).
	Now func() time.Time
}

// Throttle segura tentativas de senha por cliente.
type Throttle struct {
	svc   application.ThrottleService
	keyFn KeyFunc
	stats domain.StatsStore
}

// NewThrottle retorna nil quando não há store; um *Throttle nil deixa tudo passar.
func NewThrottle(opts ThrottleOptions) *Throttle {
	if opts.Store == nil {
		return nil
	}
	if opts.KeyFn == nil {
		opts.KeyFn = AddressKeyFunc(opts.TrustXForwardedFor)
	}
	return &Throttle{
		svc:   application.ThrottleService{Store: opts.Store, Now: opts.Now},
		keyFn: opts.KeyFn,
		stats: opts.Stats,
	}
}

// Check consome uma tentativa. Se o cliente estiver freado, já escreve o 429
// e retorna false.
func (t *Throttle) Check(w http.ResponseWriter, r *http.Request, op domain.Op) bool {
	if t == nil {
		return true
	}
	key := t.keyFn(r)
	if key.IsNone() {
		key = "unknown"
	}

	dec := t.svc.Decide(key)
	if dec.Allowed {
		return true
	}

	logr.FromContextOrDiscard(r.Context()).Info("password attempts throttled", "client", key, "op", op, "retryAfter", dec.RetryAfter)
	if t.stats != nil {
		_ = t.stats.Record(r.Context(), domain.StatsEvent{
			Key:     key,
			Op:      op,
			Outcome: domain.OutcomeThrottled,
			At:      time.Now(),
		})
	}
	w.Header().Set("Retry-After", formatInt(int(dec.RetryAfter/time.Second)))
	writeJSON(w, http.StatusTooManyRequests, resultResponse{Status: "error", Message: msgTooManyTries})
	return false
}

// ThrottleMiddleware freia toda requisição que passa por ele (usado em /api/unlock).
func ThrottleMiddleware(opts ThrottleOptions) func(next http.Handler) http.Handler {
	t := NewThrottle(opts)
	if t == nil {
		return identity
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if t.Check(w, r, domain.OpUnlock) {
				next.ServeHTTP(w, r)
			}
		})
	}
}
