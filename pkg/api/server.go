package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/arena/pkg/api/handlers"
	"github.com/cbodonnell/arena/pkg/api/middleware"
	authhandlers "github.com/cbodonnell/arena/pkg/auth/handlers"
	authproviders "github.com/cbodonnell/arena/pkg/auth/providers"
	"github.com/cbodonnell/arena/pkg/game"
	"github.com/cbodonnell/arena/pkg/log"
	"github.com/cbodonnell/arena/pkg/network"
	"github.com/cbodonnell/arena/pkg/repositories"
	"github.com/gorilla/mux"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port           int
	TLS            *TLSConfig
	AllowedOrigins []string
	Resolver       *authproviders.IdentityResolver
	Registry       *game.Registry
	Upgrader       *network.Upgrader
	Heartbeat      *network.Heartbeat
	// Repository is optional; without it the match routes are not served
	Repository repositories.Repository
	// AuthHandler is optional; without it the account routes are not served
	AuthHandler authhandlers.AuthHandler
	// Context bounds every connected channel
	Context context.Context
}

// NewAPIServer creates a new http.Server for the room API and websocket connections
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts),
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// NewRouter builds the route table.
func NewRouter(opts NewAPIServerOptions) http.Handler {
	identity := middleware.NewIdentityMiddleware(opts.Resolver)

	r := mux.NewRouter()
	r.Use(middleware.NewCORSMiddleware(opts.AllowedOrigins))

	r.HandleFunc("/healthz", handlers.HandleHealth()).Methods(http.MethodGet)

	rooms := r.PathPrefix("/rooms").Subrouter()
	rooms.Handle("", identity(handlers.HandleCreateRoom(opts.Registry))).Methods(http.MethodPost, http.MethodOptions)
	rooms.HandleFunc("", handlers.HandleListRooms(opts.Registry)).Methods(http.MethodGet)
	rooms.HandleFunc("/{roomID}", handlers.HandleGetRoom(opts.Registry)).Methods(http.MethodGet)
	rooms.HandleFunc("/{roomID}/metrics", handlers.HandleRoomMetrics(opts.Registry)).Methods(http.MethodGet)
	rooms.Handle("/{roomID}/connect", identity(handlers.HandleConnect(handlers.ConnectOptions{
		Registry:  opts.Registry,
		Upgrader:  opts.Upgrader,
		Heartbeat: opts.Heartbeat,
		Context:   opts.Context,
	}))).Methods(http.MethodGet)

	if opts.Repository != nil {
		matches := r.PathPrefix("/matches").Subrouter()
		matches.HandleFunc("", handlers.HandleListMatches(opts.Repository)).Methods(http.MethodGet)
		matches.HandleFunc("/{matchID}", handlers.HandleGetMatch(opts.Repository)).Methods(http.MethodGet)
		matches.HandleFunc("/{matchID}/replay", handlers.HandleGetReplay(opts.Repository)).Methods(http.MethodGet)
	}

	// registered on the root router so a wrong method answers 405
	if opts.AuthHandler != nil {
		r.HandleFunc("/auth/register", opts.AuthHandler.HandleRegister()).Methods(http.MethodPost, http.MethodOptions)
		r.HandleFunc("/auth/login", opts.AuthHandler.HandleLogin()).Methods(http.MethodPost, http.MethodOptions)
		r.HandleFunc("/auth/refresh", opts.AuthHandler.HandleRefresh()).Methods(http.MethodPost, http.MethodOptions)
		r.HandleFunc("/auth/delete", opts.AuthHandler.HandleDelete()).Methods(http.MethodPost, http.MethodOptions)
	}

	return r
}

// Start serves until Stop is called. It returns nil after a clean shutdown.
func (s *APIServer) Start() error {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return nil
		}
		return fmt.Errorf("API server error: %v", err)
	}
	return nil
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
