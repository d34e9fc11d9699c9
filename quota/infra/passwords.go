package infra

import (
	"os"
	"strings"
)

// DefaultPasswordVar é a variável de ambiente com as senhas VIP, separadas por vírgula.
const DefaultPasswordVar = "VIP_PASSWORD"

// ParsePasswords quebra a lista por vírgula, faz trim e descarta entradas vazias.
func ParsePasswords(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// EnvPasswords lê as senhas do ambiente a cada chamada, então mudar a
// variável tem efeito sem reiniciar o processo.
type EnvPasswords struct {
	Var string
	// Lookup substitui os.Getenv (testes).
	Lookup func(string) string
}

func (e EnvPasswords) Passwords() []string {
	name := e.Var
	if name == "" {
		name = DefaultPasswordVar
	}
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.Getenv
	}
	return ParsePasswords(lookup(name))
}
