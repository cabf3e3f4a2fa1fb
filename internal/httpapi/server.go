// Package httpapi implements the HTTP/SSE surface of spec §6: a chi
// router exposing sessions, messages, permissions, questions, and one
// event stream, grounded on the teacher's internal/server package.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/modeladapter"
	"github.com/agentcore/runtime/internal/permission"
	"github.com/agentcore/runtime/internal/question"
	"github.com/agentcore/runtime/internal/storage"
	"github.com/agentcore/runtime/internal/tool"
	"github.com/agentcore/runtime/internal/turn"
)

// Config holds server configuration.
type Config struct {
	Port             int
	Directory        string
	CORSWhitelist    []string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	DataPath         string
	WorktreePath     string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Port:         4096,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no write timeout: the SSE endpoint is long-lived
	}
}

// Server wires the turn engine, permission/question brokers, and storage
// into a chi router. Grounded on internal/server/server.go; the MCP/
// formatter/command/TUI-control wiring the teacher does here is dropped
// (see DESIGN.md, "Dropped route groups").
type Server struct {
	config Config
	router *chi.Mux

	store       *storage.Storage
	engine      *turn.Engine
	agents      *agent.Registry
	tools       *tool.Registry
	models      *modeladapter.Registry
	permissions *permission.Checker
	questions   *question.Broker
	bus         *bus.Bus

	httpSrv *http.Server
}

// New constructs a Server and wires its routes.
func New(
	cfg Config,
	store *storage.Storage,
	engine *turn.Engine,
	agents *agent.Registry,
	tools *tool.Registry,
	models *modeladapter.Registry,
	permissions *permission.Checker,
	questions *question.Broker,
	b *bus.Bus,
) *Server {
	s := &Server{
		config:      cfg,
		router:      chi.NewRouter(),
		store:       store,
		engine:      engine,
		agents:      agents,
		tools:       tools,
		models:      models,
		permissions: permissions,
		questions:   questions,
		bus:         b,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	origins := append([]string{"http://localhost:*", "http://127.0.0.1:*"}, s.config.CORSWhitelist...)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// Router returns the chi router, for tests.
func (s *Server) Router() *chi.Mux { return s.router }

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
