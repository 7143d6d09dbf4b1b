// Package http is the thin HTTP adapter over the service layer.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/incaptta/crm-backend/internal/service"
	"github.com/incaptta/crm-backend/internal/storage"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	profiles   *service.ProfileService
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	orchestrator *service.Orchestrator,
	requests *service.RequestService,
	payments *service.PaymentService,
	reports *service.ReportService,
	profiles *service.ProfileService,
	blobs storage.BlobStore,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: NewHandlers(orchestrator, requests, payments, reports, blobs, logger),
		profiles: profiles,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()
	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.HealthCheck)

	// Token-bearing letter retrieval
	s.router.GET("/files/*path", s.handlers.ServeBlob)

	api := s.router.Group("/api")
	api.Use(actorMiddleware(s.profiles))
	{
		api.POST("/requests/:kind", s.handlers.CreateDraft)
		api.GET("/requests/:kind", s.handlers.ListRequests)
		api.GET("/requests/:kind/:id", s.handlers.GetRequest)
		api.POST("/requests/:kind/:id/submit", s.handlers.SubmitRequest)
		api.POST("/requests/:kind/:id/approve", s.handlers.ApproveRequest)
		api.POST("/requests/:kind/:id/reject", s.handlers.RejectRequest)
		api.POST("/requests/:kind/:id/letter", s.handlers.RegenerateLetter)
		api.POST("/requests/:kind/:id/return", s.handlers.ReturnMaterials)

		api.POST("/payments", s.handlers.RecordPayment)
		api.GET("/reports/:kind/approvals.xlsx", s.handlers.ApprovalRegister)
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("HTTP server starting", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying router for tests
func (s *Server) Router() http.Handler {
	return s.router
}
