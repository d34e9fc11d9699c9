package quota

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"quota-gateway/quota/application"
	"quota-gateway/quota/domain"

	"github.com/go-logr/logr"
)

// Mensagens fixas do contrato JSON com o front-end.
const (
	msgNoDeviceID     = "No Device ID"
	msgInvalidPass    = "Invalid password"
	msgServerConfig   = "Server configuration error"
	msgInvalidBody    = "Invalid request body"
	msgTooManyTries   = "Too many attempts"
	maxUnlockBodySize = 4 << 10
)

type statusResponse struct {
	Count int  `json:"count"`
	IsVIP bool `json:"is_vip"`
	Limit int  `json:"limit"`
}

type incrementResponse struct {
	Status       string `json:"status"`
	CurrentCount int    `json:"current_count"`
}

type resultResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type checkAuthResponse struct {
	Status    string `json:"status"`
	Unlocked  bool   `json:"unlocked"`
	Count     int    `json:"count"`
	IsVIP     bool   `json:"is_vip"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

// passwordRequest aceita qualquer valor em "password"; só string conta como
// senha, o resto (número, null, ausente) vira senha vazia e cai em 401.
type passwordRequest struct {
	Password json.RawMessage `json:"password"`
}

func (p passwordRequest) value() string {
	var s string
	if err := json.Unmarshal(p.Password, &s); err != nil {
		return ""
	}
	return s
}

// Handlers traduz as operações de cota para HTTP/JSON.
type Handlers struct {
	Service *application.QuotaService
	KeyFn   KeyFunc
	// PasswordThrottle freia /api/check_auth quando o corpo traz senha.
	// /api/unlock é freado pelo RoutesOptions.UnlockMiddleware.
	PasswordThrottle *Throttle
}

func NewHandlers(svc *application.QuotaService, keyFn KeyFunc) *Handlers {
	if keyFn == nil {
		keyFn = DeviceKeyFunc(DefaultDeviceHeader)
	}
	return &Handlers{Service: svc, KeyFn: keyFn}
}

// Status: GET /api/status
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	st := h.Service.Status(r.Context(), h.KeyFn(r))
	writeJSON(w, http.StatusOK, statusResponse{Count: st.Count, IsVIP: st.IsVIP, Limit: st.Limit})
}

// Increment: POST /api/increment
func (h *Handlers) Increment(w http.ResponseWriter, r *http.Request) {
	key := h.KeyFn(r)
	n, err := h.Service.Increment(r.Context(), key)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, incrementResponse{Status: "success", CurrentCount: n})
	case errors.Is(err, domain.ErrMissingIdentity):
		writeJSON(w, http.StatusBadRequest, resultResponse{Status: "error", Message: msgNoDeviceID})
	case errors.Is(err, domain.ErrLimitReached):
		logr.FromContextOrDiscard(r.Context()).V(1).Info("daily limit reached", "key", key)
		writeJSON(w, http.StatusForbidden, resultResponse{Status: "limit_reached"})
	default:
		writeInternalError(w, r, err)
	}
}

// Unlock: POST /api/unlock com {"password": "..."}
func (h *Handlers) Unlock(w http.ResponseWriter, r *http.Request) {
	log := logr.FromContextOrDiscard(r.Context())

	password, ok := readPassword(w, r)
	if !ok {
		return
	}

	key := h.KeyFn(r)
	err := h.Service.Unlock(r.Context(), key, password)
	switch {
	case err == nil:
		log.Info("vip unlocked", "key", key)
		writeJSON(w, http.StatusOK, resultResponse{Status: "success"})
	case errors.Is(err, domain.ErrServerMisconfigured):
		log.Error(err, "unlock attempted without configured passwords")
		writeJSON(w, http.StatusInternalServerError, resultResponse{Status: "error", Message: msgServerConfig})
	case errors.Is(err, domain.ErrMissingIdentity):
		writeJSON(w, http.StatusBadRequest, resultResponse{Status: "error", Message: msgNoDeviceID})
	case errors.Is(err, domain.ErrInvalidPassword):
		log.Info("invalid unlock password", "key", key)
		writeJSON(w, http.StatusUnauthorized, resultResponse{Status: "error", Message: msgInvalidPass})
	default:
		writeInternalError(w, r, err)
	}
}

// CheckAuth: POST /api/check_auth com {"password": "..."} opcional.
// Autoriza um uso: senha certa libera sem consumir, senão consome da cota.
func (h *Handlers) CheckAuth(w http.ResponseWriter, r *http.Request) {
	log := logr.FromContextOrDiscard(r.Context())

	password, ok := readPassword(w, r)
	if !ok {
		return
	}
	if password != "" && !h.PasswordThrottle.Check(w, r, domain.OpCheckAuth) {
		return
	}

	key := h.KeyFn(r)
	res, err := h.Service.CheckAuth(r.Context(), key, password)
	switch {
	case err == nil:
		if res.Unlocked {
			log.Info("vip unlocked", "key", key)
		}
		st := res.Status
		writeJSON(w, http.StatusOK, checkAuthResponse{
			Status:    "ok",
			Unlocked:  res.Unlocked,
			Count:     st.Count,
			IsVIP:     st.IsVIP,
			Limit:     st.Limit,
			Remaining: st.Remaining,
		})
	case errors.Is(err, domain.ErrServerMisconfigured):
		log.Error(err, "check_auth with password but none configured")
		writeJSON(w, http.StatusInternalServerError, resultResponse{Status: "error", Message: msgServerConfig})
	case errors.Is(err, domain.ErrMissingIdentity):
		writeJSON(w, http.StatusBadRequest, resultResponse{Status: "error", Message: msgNoDeviceID})
	case errors.Is(err, domain.ErrLimitReached):
		log.V(1).Info("check_auth refused", "key", key, "withPassword", password != "")
		writeJSON(w, http.StatusForbidden, resultResponse{Status: "error", Message: msgInvalidPass})
	default:
		writeInternalError(w, r, err)
	}
}

// readPassword lê {"password": ...} do corpo. Corpo vazio equivale a senha
// vazia; JSON malformado já responde 400 e retorna false.
func readPassword(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req passwordRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUnlockBodySize))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, resultResponse{Status: "error", Message: msgInvalidBody})
		return "", false
	}
	return req.value(), true
}

func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	logr.FromContextOrDiscard(r.Context()).Error(err, "unexpected quota error", "path", r.URL.Path)
	writeJSON(w, http.StatusInternalServerError, resultResponse{Status: "error", Message: http.StatusText(http.StatusInternalServerError)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
