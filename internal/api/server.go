package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/uacr-monitor/internal/cache"
	"github.com/uacr-monitor/internal/domain"
	"github.com/uacr-monitor/internal/middleware"
	"github.com/uacr-monitor/internal/repository"
	"github.com/uacr-monitor/internal/service"
)

const version = "1.0.0"

// RunStore records batch run summaries. It is optional.
type RunStore interface {
	Record(ctx context.Context, result *service.BatchResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.RunSummary, error)
	Recent(ctx context.Context, limit int) ([]*repository.RunSummary, error)
}

// breakerReporter is implemented by stores guarded by a circuit breaker.
type breakerReporter interface {
	State() gobreaker.State
}

// Dependencies are the collaborators the HTTP server routes requests to.
type Dependencies struct {
	Evaluator *cache.Evaluator
	Alerts    domain.AlertStore
	Runs      RunStore
	Logger    *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AuditLogger(deps.Logger))
	router.Use(middleware.RateLimit(middleware.NewClientLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)))
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	server := &Server{
		configManager: configManager,
		deps:          deps,
		logger:        deps.Logger,
		router:        router,
	}

	server.setupRoutes([]byte(cfg.Server.JWTSecret))

	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(jwtSecret []byte) {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.BearerAuth(jwtSecret))
	{
		v1.POST("/evaluate", s.handleEvaluate)
		v1.POST("/batch", s.handleBatch)
		v1.GET("/alerts", s.handleListAlerts)
		v1.GET("/alerts/:id", s.handleGetAlert)
		v1.GET("/patients/:id/alerts", s.handlePatientAlerts)
		v1.GET("/export", s.handleExport)
		v1.GET("/runs", s.handleRecentRuns)
		v1.GET("/runs/:id", s.handleGetRun)
	}
}

// handleHealth reports liveness and whether the alert store is reachable.
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	body := gin.H{
		"timestamp":       time.Now().UTC(),
		"version":         version,
		"evaluation_date": s.deps.Evaluator.Monitor().EvaluationDate(),
	}

	if br, ok := s.deps.Alerts.(breakerReporter); ok {
		state := br.State()
		body["alert_store"] = state.String()
		if state == gobreaker.StateOpen {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	body["status"] = status
	c.JSON(code, body)
}
