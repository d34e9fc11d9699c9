package domain

import (
	"errors"
	"fmt"
)

// DefaultDailyLimit é o número de usos gratuitos por dia para clientes não VIP.
const DefaultDailyLimit = 3

// Key identifica um cliente (device id opaco ou endereço de rede).
// A chave vazia representa "sem identidade".
type Key string

func (k Key) IsNone() bool { return k == "" }

// Record é o estado de cota de um cliente.
//
// Count e LastResetDate mudam sempre juntos: quando LastResetDate difere de
// "hoje", Count volta a 0 e a data passa a ser hoje.
type Record struct {
	Count         int
	LastResetDate string
	IsVIP         bool
}

// Status é a projeção somente-leitura exposta para o cliente.
type Status struct {
	Count int
	IsVIP bool
	Limit int
	// Remaining é max(0, Limit-Count); VIP não muda o valor.
	Remaining int
}

func NewStatus(rec Record, limit int) Status {
	return Status{
		Count:     rec.Count,
		IsVIP:     rec.IsVIP,
		Limit:     limit,
		Remaining: max(0, limit-rec.Count),
	}
}

// VIPPolicy decide o que acontece com o VIP quando o dia vira.
type VIPPolicy int

const (
	// VIPResetDaily limpa o VIP na virada do dia (a senha precisa ser digitada de novo).
	VIPResetDaily VIPPolicy = iota
	// VIPKeepAcrossDays mantém o VIP até o processo reiniciar.
	VIPKeepAcrossDays
)

func (p VIPPolicy) String() string {
	switch p {
	case VIPResetDaily:
		return "daily"
	case VIPKeepAcrossDays:
		return "never"
	default:
		return "unknown"
	}
}

// ParseVIPPolicy aceita "daily" ou "never".
func ParseVIPPolicy(s string) (VIPPolicy, error) {
	switch s {
	case "daily", "":
		return VIPResetDaily, nil
	case "never":
		return VIPKeepAcrossDays, nil
	}
	return VIPResetDaily, fmt.Errorf("invalid VIP reset policy %q (want \"daily\" or \"never\")", s)
}

var (
	// ErrMissingIdentity: o cliente não mandou identidade.
	ErrMissingIdentity = errors.New("missing client identity")
	// ErrLimitReached: cota do dia esgotada (condição de negócio, não falha).
	ErrLimitReached = errors.New("daily limit reached")
	// ErrInvalidPassword: senha fora do conjunto configurado.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrServerMisconfigured: nenhuma senha configurada (erro do operador).
	ErrServerMisconfigured = errors.New("no unlock passwords configured")
)

// QuotaStore mantém os registros por chave.
//
// Todas as operações normalizam o registro (virada de dia) antes de agir, e
// cada leitura-modificação-escrita é atômica para a chave.
// Os registros retornados são cópias.
type QuotaStore interface {
	GetOrInit(Key) Record
	Status(Key) Status
	Increment(Key) (int, error)
	GrantVIP(Key) error
}

// PasswordSource devolve o conjunto atual de senhas válidas.
// Deve refletir a configuração viva a cada chamada, sem snapshot.
type PasswordSource interface {
	Passwords() []string
}
