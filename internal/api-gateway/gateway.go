// Package gateway monta o proxy reverso público na frente dos serviços internos.
package gateway

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Upstreams são as URLs base dos serviços internos
type Upstreams struct {
	Discovery string
	Odds      string
	Wallet    string
	Bets      string
}

func rp(log *zap.Logger, name, to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil {
		return nil, err
	}
	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream failed", zap.String("upstream", name), zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream unavailable"}`))
	}
	return p, nil
}

// New devolve o handler do gateway. /api/<serviço>/* vai para o serviço sem o prefixo.
// origins vazio libera qualquer origem.
func New(log *zap.Logger, up Upstreams, origins []string, mw ...func(http.Handler) http.Handler) (http.Handler, error) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(mw...)

	routes := []struct{ prefix, name, target string }{
		{"/api/discovery", "discovery", up.Discovery},
		{"/api/odds", "odds", up.Odds},
		{"/api/wallet", "wallet", up.Wallet},
		{"/api/bets", "bets", up.Bets},
	}
	for _, rt := range routes {
		p, err := rp(log, rt.name, rt.target)
		if err != nil {
			return nil, err
		}
		r.Mount(rt.prefix, http.StripPrefix(rt.prefix, p))
	}
	return r, nil
}

// Origins lê a lista "a,b" de origens permitidas
func Origins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
