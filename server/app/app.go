// Package app wires the rank server together.
package app

import (
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	uuid "github.com/satori/go.uuid"
	"go.uber.org/multierr"

	"github.com/zillionme/2023-naaga/server/auth"
	"github.com/zillionme/2023-naaga/server/rank"
)

// App holds the server's long-lived components.
type App struct {
	Auth    *auth.Auth
	Store   rank.Store
	Service *rank.Service
	Hub     *rank.Hub
}

// New opens the stores named by cfg.
func New(cfg Config) (*App, error) {
	a, err := auth.NewAuth(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	var store rank.Store
	if cfg.RedisAddr != "" {
		log.Println("scores in redis at", cfg.RedisAddr)
		store = rank.NewRedisStore(rank.NewRedisPool(cfg.RedisAddr), cfg.RedisPrefix)
	} else {
		store, err = rank.NewMemoryStore(filepath.Join(cfg.DataDir, "scores.json"))
		if err != nil {
			return nil, err
		}
	}

	hub := rank.NewHub()
	return &App{
		Auth:    a,
		Store:   store,
		Service: rank.NewService(store, hub),
		Hub:     hub,
	}, nil
}

// Router returns every route behind request-id and access-log middleware.
func (a *App) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/auth/register", a.Auth.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", a.Auth.HandleLogin).Methods(http.MethodPost)
	rank.NewHandler(a.Service, a.Hub).Register(r, a.Auth.RequireAuth)

	return requestID(handlers.CombinedLoggingHandler(os.Stdout, r))
}

// requestID tags each request with X-Request-Id, keeping one sent by the caller.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewV4().String()
			r.Header.Set("X-Request-Id", id)
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

// Close flushes and closes the score store.
func (a *App) Close() error {
	return multierr.Combine(a.Store.Close())
}
