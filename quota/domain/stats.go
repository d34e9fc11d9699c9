package domain

import (
	"context"
	"errors"
	"time"
)

// Op é a operação de cota que gerou o evento.
type Op string

const (
	OpStatus    Op = "status"
	OpIncrement Op = "increment"
	OpUnlock    Op = "unlock"
	OpCheckAuth Op = "check_auth"
)

// Outcomes registrados nas estatísticas.
const (
	OutcomeOK              = "ok"
	OutcomeLimitReached    = "limit_reached"
	OutcomeMissingIdentity = "missing_identity"
	OutcomeInvalidPassword = "invalid_password"
	OutcomeMisconfigured   = "misconfigured"
	OutcomeThrottled       = "throttled"
)

// OutcomeOf traduz o erro de uma operação no outcome correspondente.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrLimitReached):
		return OutcomeLimitReached
	case errors.Is(err, ErrMissingIdentity):
		return OutcomeMissingIdentity
	case errors.Is(err, ErrInvalidPassword):
		return OutcomeInvalidPassword
	case errors.Is(err, ErrServerMisconfigured):
		return OutcomeMisconfigured
	}
	return "error"
}

// StatsEvent representa o resultado de uma operação de cota.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key sem controle pode
// explodir o número de chaves em uma base como Redis).
type StatsEvent struct {
	Key     Key
	Op      Op
	Outcome string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de cota.
//
// Implementações podem armazenar em Redis, memória, etc.
// Quem registra deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
