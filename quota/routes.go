package quota

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/go-logr/logr"
)

// RoutesOptions reúne o que o front-end HTTP precisa.
type RoutesOptions struct {
	Handlers *Handlers
	// UnlockMiddleware envolve só /api/unlock (ex: ThrottleMiddleware).
	UnlockMiddleware func(http.Handler) http.Handler
	// APIMiddleware envolve todas as rotas /api (ex: ConcurrencyMiddleware).
	APIMiddleware func(http.Handler) http.Handler
	// StaticDir é servido em GET /; caminhos sem arquivo caem no index.html.
	// Vazio desliga os estáticos (404).
	StaticDir string
	Log       logr.Logger
}

// NewRouter monta o mux completo, já envolto pelo RequestLogMiddleware.
func NewRouter(opts RoutesOptions) http.Handler {
	unlockMW := opts.UnlockMiddleware
	if unlockMW == nil {
		unlockMW = identity
	}
	apiMW := opts.APIMiddleware
	if apiMW == nil {
		apiMW = identity
	}

	log := opts.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	h := opts.Handlers
	mux := http.NewServeMux()
	mux.Handle("GET /api/status", apiMW(http.HandlerFunc(h.Status)))
	mux.Handle("POST /api/increment", apiMW(http.HandlerFunc(h.Increment)))
	mux.Handle("POST /api/unlock", apiMW(unlockMW(http.HandlerFunc(h.Unlock))))
	mux.Handle("POST /api/check_auth", apiMW(http.HandlerFunc(h.CheckAuth)))

	// liveness para o cron externo que mantém a instância acordada
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	if opts.StaticDir != "" {
		mux.Handle("GET /", spaHandler{dir: opts.StaticDir})
	} else {
		mux.Handle("GET /", http.NotFoundHandler())
	}

	return RequestLogMiddleware(log)(mux)
}

func identity(next http.Handler) http.Handler { return next }

// spaHandler serve arquivos de dir e devolve index.html para qualquer caminho
// que não seja um arquivo (roteamento fica no cliente).
type spaHandler struct {
	dir string
}

func (s spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	if s.serveFile(w, r, name) {
		return
	}
	if !s.serveFile(w, r, "/index.html") {
		http.NotFound(w, r)
	}
}

func (s spaHandler) serveFile(w http.ResponseWriter, r *http.Request, name string) bool {
	f, err := http.Dir(s.dir).Open(name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, os.ErrPermission) {
			logr.FromContextOrDiscard(r.Context()).Error(err, "static file open failed", "name", name)
		}
		return false
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || st.IsDir() {
		return false
	}
	http.ServeContent(w, r, filepath.Base(name), st.ModTime(), f)
	return true
}
