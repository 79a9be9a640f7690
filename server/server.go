package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apperrors "github.com/kbukum/diarizer/errors"
	"github.com/kbukum/diarizer/logger"
	"github.com/kbukum/diarizer/server/endpoint"
	"github.com/kbukum/diarizer/server/middleware"
)

// Server is an HTTP server backed by Gin. Gin is mounted on a root ServeMux
// wrapped with h2c so HTTP/2 cleartext clients are served on the same port.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	mux        *http.ServeMux
	config     Config
	log        *logger.Logger

	mu   sync.RWMutex
	addr string
}

// New creates a new Server. No middleware is applied yet; call
// ApplyMiddleware (or ApplyDefaults) before serving.
func New(cfg Config, log *logger.Logger) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeNotFound, "Not Found", http.StatusNotFound))
	})
	engine.NoMethod(func(c *gin.Context) {
		middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeMethodNotAllowed, "Method Not Allowed", http.StatusMethodNotAllowed))
	})

	mux := http.NewServeMux()
	mux.Handle("/", engine)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      h2cHandler(mux),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		engine:     engine,
		mux:        mux,
		config:     cfg,
		log:        log.WithComponent("server"),
		addr:       addr,
	}
}

func h2cHandler(h http.Handler) http.Handler {
	return h2c.NewHandler(h, &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          120 * time.Second,
	})
}

// GinEngine returns the underlying Gin engine for route registration.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Handle mounts an http.Handler at the given pattern on the root ServeMux.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
	s.log.Debug("Handler mounted", map[string]interface{}{
		"pattern": pattern,
	})
}

// Handler returns the fully wrapped root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the port and begins serving. It returns once the listener is
// bound so the caller knows the port is ready; serving continues in a goroutine.
func (s *Server) Start(_ context.Context) error {
	s.log.Info("Starting HTTP server", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	s.log.Info("HTTP server started", map[string]interface{}{
		"addr": s.Addr(),
	})
	return nil
}

// Stop gracefully shuts down the server. In-flight analyses are given until
// ctx ends, capped at the write timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout+time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server shutdown error", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.log.Info("HTTP server shut down successfully")
	return nil
}

// Addr returns the bound listen address once started, the configured one before.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Auth returns the bearer token middleware for protected route groups.
// It passes everything through when no token is configured.
func (s *Server) Auth() gin.HandlerFunc {
	return middleware.Auth(middleware.AuthConfig{Token: s.config.AuthToken})
}

// ApplyMiddleware wraps the root handler with the standard stack: request id,
// request logging, panic recovery, CORS, rate limiting and body-size limit.
func (s *Server) ApplyMiddleware() {
	stack := []middleware.Middleware{
		middleware.RequestID(),
		middleware.RequestLogger(s.log),
		middleware.Recovery(s.log),
		middleware.CORS(&s.config.CORS),
	}
	if s.config.RateLimit.Enabled {
		stack = append(stack, middleware.RateLimit(s.config.RateLimit))
	}
	if s.config.MaxBodySize != "" {
		stack = append(stack, middleware.BodySizeLimit(s.config.MaxBodySize))
	}
	s.httpServer.Handler = h2cHandler(middleware.Chain(stack...)(s.mux))
}

// Endpoints carries the hooks behind the operational endpoints.
type Endpoints struct {
	Checker endpoint.HealthChecker
	Info    endpoint.InfoFunc
	Stats   []endpoint.StatsFunc
}

// RegisterDefaultEndpoints registers /health, /alive, /ready, /info, /version
// and /metrics.
func (s *Server) RegisterDefaultEndpoints(serviceName string, ep Endpoints) {
	s.engine.GET("/health", endpoint.Health(serviceName, ep.Checker))
	s.engine.GET("/alive", endpoint.Liveness(serviceName))
	s.engine.GET("/ready", endpoint.Readiness(serviceName, ep.Checker))
	s.engine.GET("/info", endpoint.Info(serviceName, ep.Info))
	s.engine.GET("/version", endpoint.Version())
	s.engine.GET("/metrics", endpoint.Metrics(ep.Stats...))
}

// ApplyDefaults applies the standard middleware stack and registers default endpoints.
func (s *Server) ApplyDefaults(serviceName string, ep Endpoints) {
	s.ApplyMiddleware()
	s.RegisterDefaultEndpoints(serviceName, ep)
}
