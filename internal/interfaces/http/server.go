// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to the
// workflow engine, the approval chain and the authorization engine.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nordstift/foundation-console/internal/application/port"
	appworkflow "github.com/nordstift/foundation-console/internal/application/workflow"
	"github.com/nordstift/foundation-console/internal/domain/authz"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	WebhookSecret string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	authz      *authz.Engine
	engine     appworkflow.Engine
	chain      *appworkflow.ApprovalChain
	logger     Logger
}

// NewServer creates a new HTTP server over the engines and stores
func NewServer(
	config ServerConfig,
	authzEngine *authz.Engine,
	engine appworkflow.Engine,
	chain *appworkflow.ApprovalChain,
	sideEffects port.SideEffectRepository,
	signatures port.SignatureRepository,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config: config,
		router: router,
		authz:  authzEngine,
		engine: engine,
		chain:  chain,
		logger: logger,
	}

	server.setupMiddleware()
	server.setupRoutes(sideEffects, signatures)

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(sideEffects port.SideEffectRepository, signatures port.SignatureRepository) {
	handlers := NewHandlers(s.authz, s.engine, s.chain, sideEffects, signatures, s.logger)

	// Health check
	s.router.GET("/health", handlers.HealthCheck)

	// Provider callback, authenticated by shared secret rather than
	// an acting role.
	s.router.POST("/webhook/side-effects", handlers.SideEffectWebhook(s.config.WebhookSecret))

	api := s.router.Group("/api/v1")
	{
		api.GET("/me/navigation", handlers.Navigation)

		// The guard admits any role holding at least one workflow
		// screen; handlers then check the screen of the concrete kind.
		workflows := api.Group("/workflows", RouteGuard(s.authz,
			authz.ScreenRegistration, authz.ScreenDocuments, authz.ScreenMeetings))
		{
			workflows.POST("", handlers.StartWorkflow)
			workflows.GET("/:id", handlers.GetWorkflow)
			workflows.POST("/:id/advance", handlers.AdvanceWorkflow)
			workflows.POST("/:id/reject", handlers.RejectWorkflow)
			workflows.POST("/:id/retreat", handlers.RetreatWorkflow)
			workflows.POST("/:id/side-effects/:step/retry", handlers.RetrySideEffect)
		}

		approvals := api.Group("/approvals", RouteGuard(s.authz,
			authz.ScreenDocuments, authz.ScreenMeetings))
		{
			approvals.POST("/:id/decisions", handlers.Decide)
		}
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
