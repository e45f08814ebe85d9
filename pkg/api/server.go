package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/tsuro/pkg/api/handlers"
	"github.com/cbodonnell/tsuro/pkg/api/middleware"
	authproviders "github.com/cbodonnell/tsuro/pkg/auth/providers"
	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/network"
	"github.com/cbodonnell/tsuro/pkg/storage"
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
	Port              int
	TLS               *TLSConfig
	AuthProvider      authproviders.AuthProvider
	Storage           *storage.Service
	SubscriberManager *network.SubscriberManager
}

// NewAPIServer creates a new http.Server serving the storage API and the
// notification channel
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

// NewRouter builds the routes of the API server
func NewRouter(opts NewAPIServerOptions) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.NewCORSMiddleware())

	auth := middleware.NewAuthMiddleware(opts.AuthProvider)
	r.Handle("/api/{db}/{key}", auth(handlers.HandleGet(opts.Storage))).Methods(http.MethodGet)
	r.Handle("/api/{db}/{key}", auth(handlers.HandleSet(opts.Storage))).Methods(http.MethodPut)
	r.Handle("/api/{db}/{key}", auth(handlers.HandleAdd(opts.Storage))).Methods(http.MethodPost)
	r.Handle("/api/{db}/{key}", auth(handlers.HandleUpdate(opts.Storage))).Methods(http.MethodPatch)
	r.Handle("/api/{db}/{key}", auth(handlers.HandleDelete(opts.Storage))).Methods(http.MethodDelete)
	// Preflight requests are answered by the CORS middleware.
	r.HandleFunc("/api/{db}/{key}", func(w http.ResponseWriter, r *http.Request) {}).Methods(http.MethodOptions)

	r.HandleFunc("/subscribe/{db}", handlers.HandleSubscribe(opts.SubscriberManager, opts.AuthProvider)).Methods(http.MethodGet)

	return r
}

// Start starts the APIServer
func (s *APIServer) Start() {
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
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
