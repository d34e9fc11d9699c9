package quota

import (
	"net"
	"net/http"
	"strings"

	"quota-gateway/quota/domain"
)

// DefaultDeviceHeader é o header com o identificador opaco do dispositivo.
const DefaultDeviceHeader = "X-Device-ID"

// MaxKeyLength limita o tamanho da chave aceita. Chaves maiores contam como
// ausentes (truncar faria dois ids longos colidirem).
const MaxKeyLength = 256

// KeyFunc extrai a identidade do cliente. Retorna "" quando não há identidade.
type KeyFunc func(r *http.Request) domain.Key

// DeviceKeyFunc usa o header informado (ou X-Device-ID), apenas com trim.
// Não passa por cookie nem IP, então é estável atrás de proxy/NAT.
func DeviceKeyFunc(header string) KeyFunc {
	if header == "" {
		header = DefaultDeviceHeader
	}
	return func(r *http.Request) domain.Key {
		return capKey(strings.TrimSpace(r.Header.Get(header)))
	}
}

// AddressKeyFunc usa o endereço de rede do cliente.
func AddressKeyFunc(trustXFF bool) KeyFunc {
	return func(r *http.Request) domain.Key {
		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return capKey(ip)
				}
			}
		}

		// fallback: RemoteAddr
		addr := strings.TrimSpace(r.RemoteAddr)
		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			return capKey(host)
		}
		return capKey(addr)
	}
}

func capKey(s string) domain.Key {
	if len(s) > MaxKeyLength {
		return ""
	}
	return domain.Key(s)
}
