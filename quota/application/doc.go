// Package application contém os casos de uso do gateway de cota:
// consulta, consumo, liberação VIP e check_auth (QuotaService) e o freio de
// tentativas de senha com Retry-After real do bucket (ThrottleService).
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: QuotaService.Increment(ctx, key) retorna a nova contagem ou um erro
// sentinela de domain (ErrLimitReached, ErrMissingIdentity).
package application
