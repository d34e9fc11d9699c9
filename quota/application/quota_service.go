package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"quota-gateway/quota/domain"
)

// QuotaService junta o store de cota com a fonte de senhas.
//
// É criado uma vez no startup e passado por referência aos handlers.
// Stats é opcional; erros ao registrar estatística são ignorados.
type QuotaService struct {
	Store     domain.QuotaStore
	Passwords domain.PasswordSource
	Stats     domain.StatsStore
}

func (s *QuotaService) GetOrInit(key domain.Key) domain.Record {
	return s.Store.GetOrInit(key)
}

func (s *QuotaService) Status(ctx context.Context, key domain.Key) domain.Status {
	st := s.Store.Status(key)
	s.record(ctx, key, domain.OpStatus, nil)
	return st
}

// Increment consome um uso do dia e retorna a nova contagem.
func (s *QuotaService) Increment(ctx context.Context, key domain.Key) (int, error) {
	if key.IsNone() {
		s.record(ctx, key, domain.OpIncrement, domain.ErrMissingIdentity)
		return 0, domain.ErrMissingIdentity
	}
	n, err := s.Store.Increment(key)
	s.record(ctx, key, domain.OpIncrement, err)
	return n, err
}

// Unlock libera o uso ilimitado para a chave.
//
// As senhas são recarregadas a cada chamada. Conjunto vazio é erro de
// configuração, independente da senha enviada. Sem identidade a liberação é
// rejeitada, já que não haveria registro onde guardar o VIP.
func (s *QuotaService) Unlock(ctx context.Context, key domain.Key, password string) error {
	err := s.unlock(key, password)
	s.record(ctx, key, domain.OpUnlock, err)
	return err
}

// AuthResult é o resultado de CheckAuth.
type AuthResult struct {
	// Unlocked indica que a senha estava certa e nenhum uso foi consumido.
	Unlocked bool
	Status   domain.Status
}

// CheckAuth autoriza um uso de uma vez só: senha certa libera o VIP sem
// consumir; sem senha (ou com senha errada) consome um uso da cota do dia.
//
// Erros: ErrServerMisconfigured só quando uma senha foi enviada e não há
// nenhuma configurada; ErrMissingIdentity; ErrLimitReached quando a cota
// acabou e a senha não liberou.
func (s *QuotaService) CheckAuth(ctx context.Context, key domain.Key, password string) (AuthResult, error) {
	res, err := s.checkAuth(key, password)
	s.record(ctx, key, domain.OpCheckAuth, err)
	return res, err
}

func (s *QuotaService) checkAuth(key domain.Key, password string) (AuthResult, error) {
	if password != "" {
		err := s.unlock(key, password)
		switch {
		case err == nil:
			return AuthResult{Unlocked: true, Status: s.Store.Status(key)}, nil
		case !errors.Is(err, domain.ErrInvalidPassword):
			return AuthResult{}, err
		}
	}
	if key.IsNone() {
		return AuthResult{}, domain.ErrMissingIdentity
	}
	if _, err := s.Store.Increment(key); err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Status: s.Store.Status(key)}, nil
}

func (s *QuotaService) unlock(key domain.Key, password string) error {
	var valid []string
	if s.Passwords != nil {
		valid = s.Passwords.Passwords()
	}
	if len(valid) == 0 {
		return domain.ErrServerMisconfigured
	}
	if key.IsNone() {
		return domain.ErrMissingIdentity
	}
	if !containsPassword(valid, password) {
		return domain.ErrInvalidPassword
	}
	return s.Store.GrantVIP(key)
}

// containsPassword compara contra todas as entradas em tempo constante.
// Senha vazia nunca confere.
func containsPassword(valid []string, supplied string) bool {
	if supplied == "" {
		return false
	}
	match := 0
	for _, v := range valid {
		match |= subtle.ConstantTimeCompare([]byte(v), []byte(supplied))
	}
	return match == 1
}

func (s *QuotaService) record(ctx context.Context, key domain.Key, op domain.Op, err error) {
	if s.Stats == nil {
		return
	}
	_ = s.Stats.Record(ctx, domain.StatsEvent{
		Key:     key,
		Op:      op,
		Outcome: domain.OutcomeOf(err),
		At:      time.Now(),
	})
}
