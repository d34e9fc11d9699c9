package quota

import (
	"context"
	"net/http"
	"time"

	"quota-gateway/quota/infra"
)

type ConcurrencyOptions struct {
	Max          int
	RejectStatus int
	// AcquireTimeout <= 0 espera por uma vaga até o cliente desistir.
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware limita quantos requests da API rodam ao mesmo tempo.
// Max <= 0 desliga o limite.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return identity
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	pool := infra.NewChanPool(opts.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if opts.AcquireTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.AcquireTimeout)
				defer cancel()
			}

			release, ok := pool.Acquire(ctx)
			if !ok {
				writeJSON(w, opts.RejectStatus, resultResponse{Status: "error", Message: http.StatusText(opts.RejectStatus)})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
