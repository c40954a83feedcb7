// Package mcp exposes the uACR monitor as Model Context Protocol tools so
// an assistant can evaluate patients and read stored alerts.
package mcp

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/cache"
	"github.com/uacr-monitor/internal/domain"
	"github.com/uacr-monitor/internal/service"
)

const (
	serverName    = "uacr-monitor"
	serverVersion = "v1.0.0"
)

// Server represents the uACR monitor MCP server
type Server struct {
	mcpServer *mcp.Server
	evaluator *cache.Evaluator
	alerts    domain.AlertStore
	exportDir string
	runs      RunRecorder
	logger    *logrus.Logger

	createFile func(name string) (io.WriteCloser, error)
}

// RunRecorder persists batch run summaries.
type RunRecorder interface {
	Record(ctx context.Context, result *service.BatchResult) error
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithExportDir enables the export_alerts tool, writing documents to dir.
func WithExportDir(dir string) ServerOption {
	return func(s *Server) {
		s.exportDir = dir
	}
}

// WithRunRecorder records every evaluate_batch run.
func WithRunRecorder(r RunRecorder) ServerOption {
	return func(s *Server) {
		s.runs = r
	}
}

// NewServer creates a new MCP server instance and registers its tools.
func NewServer(evaluator *cache.Evaluator, alerts domain.AlertStore, logger *logrus.Logger, opts ...ServerOption) *Server {
	s := &Server{
		evaluator: evaluator,
		alerts:    alerts,
		logger:    logger,
	}
	s.createFile = func(name string) (io.WriteCloser, error) {
		return os.Create(name)
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)
	s.registerTools()

	return s
}

// Start serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("transport_type", "stdio").Info("Starting uACR monitor MCP server")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// registerTools registers every tool with the MCP SDK.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolEvaluatePatient,
		Description: "Evaluate one patient's uACR trend, SGLT2-inhibitor adherence and treatment eligibility. Returns a clinical alert when albuminuria is worsening.",
	}, s.handleEvaluatePatient)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolEvaluateBatch,
		Description: "Evaluate a list of patients and return every alert with a run summary.",
	}, s.handleEvaluateBatch)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolPatientAlerts,
		Description: "List stored alerts for a patient, newest first.",
	}, s.handlePatientAlerts)

	registered := 3
	if s.exportDir != "" {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        toolExportAlerts,
			Description: "Write every stored alert to a JSON export document and return its path.",
		}, s.handleExportAlerts)
		registered++
	}

	s.logger.WithField("tool_count", registered).Info("Successfully registered all tools")
}
