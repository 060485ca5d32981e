// Package api exposes the signer-proxy and event-query services over HTTP:
// a single /sign endpoint dispatching the signer request union, and a
// single /events endpoint answering on-demand log queries.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ethgate/gateway/abi"
	"github.com/ethgate/gateway/log"
	"github.com/ethgate/gateway/node"
	"github.com/ethgate/gateway/pipeline"
	"github.com/ethgate/gateway/query"
	"github.com/ethgate/gateway/signer"
)

const maxRequestBodyLog = 512

// Config wires a Server to the services it fronts.
type Config struct {
	Host string
	Port int

	Signer    *signer.Signer
	Pipeline  *pipeline.Pipeline
	Client    *node.Client
	Query     *query.Service
	Functions map[string]abi.Function
}

// Server is the HTTP front end for the signer-proxy and event-query
// services. A Server does not own the services it fronts: Signer, Pipeline,
// Client and Query are all started and stopped independently of it.
type Server struct {
	router    *chi.Mux
	signer    *signer.Signer
	pipeline  *pipeline.Pipeline
	client    *node.Client
	query     *query.Service
	functions map[string]abi.Function
	parentCtx context.Context
}

// New builds a Server and starts it listening in the background.
func New(ctx context.Context, conf *Config) (*Server, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Signer == nil {
		return nil, fmt.Errorf("missing signer instance")
	}
	if conf.Functions == nil {
		conf.Functions = map[string]abi.Function{}
	}

	s := &Server{
		signer:    conf.Signer,
		pipeline:  conf.Pipeline,
		client:    conf.Client,
		query:     conf.Query,
		functions: conf.Functions,
		parentCtx: ctx,
	}
	s.initRouter()

	go func() {
		addr := fmt.Sprintf("%s:%d", conf.Host, conf.Port)
		log.Infow("starting API server", "addr", addr)
		if err := http.ListenAndServe(addr, s.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return s, nil
}

// Router returns the chi router, for use in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) initRouter() {
	s.router = chi.NewRouter()
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	s.router.Use(loggingMiddleware(maxRequestBodyLog))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Throttle(100))
	s.router.Use(middleware.Timeout(45 * time.Second))

	s.registerHandlers()
}

func (s *Server) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	s.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})

	log.Infow("register handler", "endpoint", SignEndpoint, "method", "POST")
	s.router.Post(SignEndpoint, s.handleSign)

	log.Infow("register handler", "endpoint", EventsEndpoint, "method", "POST")
	s.router.Post(EventsEndpoint, s.handleEvents)
}
