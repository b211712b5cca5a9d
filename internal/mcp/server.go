// Package mcp exposes the drug interaction checker to AI agents as MCP tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/drug-conflict-mcp-server/internal/service"
)

const (
	serverName    = "drug-conflict-mcp-server"
	serverVersion = "v0.1.0"
)

// Server represents the drug conflict MCP server
type Server struct {
	engine    *service.RuleEngine
	mcpServer *mcp.Server
	logger    *logrus.Logger
}

// NewServer creates a new MCP server over engine and registers its tools.
func NewServer(engine *service.RuleEngine, logger *logrus.Logger) *Server {
	// Create server info
	serverInfo := &mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}

	server := &Server{
		engine:    engine,
		mcpServer: mcp.NewServer(serverInfo, nil),
		logger:    logger,
	}

	server.registerTools()
	return server
}

// Start serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("generation", s.engine.KnowledgeBase().Generation()).Info("Starting drug conflict MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// registerTools registers the conflict checking tools with the MCP SDK.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolCheckConflicts,
		Description: "Check a prescription for known drug-drug and drug-condition interactions. Returns conflicts ordered from most to least severe.",
	}, s.handleCheckConflicts)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolConditionTokens,
		Description: "Show the condition tokens derived from a patient's conditions and allergies, as matched against drug-condition rules.",
	}, s.handleConditionTokens)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolCacheStats,
		Description: "Report conflict cache hit and miss counters.",
	}, s.handleCacheStats)

	s.logger.WithField("tool_count", 3).Debug("Registered MCP tools")
}
