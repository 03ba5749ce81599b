// Package mcp exposes fleet introspection over the Model Context
// Protocol, so LLM tooling can inspect a running market the same way
// the report command does.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/gridswap/gridswap"
	"github.com/gridswap/gridswap/internal/logging"
	"github.com/gridswap/gridswap/internal/report"
)

// Server wraps a fleet collector and exposes it as an MCP server.
type Server struct {
	collector *report.Collector
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer builds an MCP server over the given collector.
func NewServer(collector *report.Collector, opts ...Option) *Server {
	s := &Server{
		collector: collector,
		mcpServer: server.NewMCPServer("gridswap-mcp", strings.TrimSpace(gridswap.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves the MCP protocol on stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP protocol over SSE on the given port until
// the context is canceled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening", "address", addr, "transport", "sse")
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("mcp server shutting down")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("stop mcp server: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type agentProfileArgs struct {
	URL string `mapstructure:"url"`
}

func (s *Server) registerTools() {
	// TOOL: get_fleet_snapshot
	snapshotTool := mcp.NewTool("get_fleet_snapshot",
		mcp.WithDescription("Poll every configured agent and return the fleet's current energy positions and negotiation phases."),
		mcp.WithOutputSchema[report.FleetReport](),
	)
	s.mcpServer.AddTool(snapshotTool, mcp.NewStructuredToolHandler(s.handleFleetSnapshot))

	// TOOL: get_agent_profile
	profileTool := mcp.NewTool("get_agent_profile",
		mcp.WithDescription("Fetch the status of a single agent by base URL. The agent does not have to be part of the configured fleet."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Agent base URL, e.g. http://localhost:8001")),
		mcp.WithOutputSchema[report.AgentStatus](),
	)
	s.mcpServer.AddTool(profileTool, mcp.NewStructuredToolHandler(s.handleAgentProfile))

	// TOOL: render_fleet_report
	s.mcpServer.AddTool(mcp.NewTool("render_fleet_report",
		mcp.WithDescription("Return the current fleet snapshot as a markdown report."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		fleet, err := s.collector.Snapshot(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("collect snapshot: %v", err)), nil
		}
		return mcp.NewToolResultText(fleet.Markdown()), nil
	})
}

func (s *Server) handleFleetSnapshot(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (report.FleetReport, error) {
	fleet, err := s.collector.Snapshot(ctx)
	if err != nil {
		return report.FleetReport{}, fmt.Errorf("collect snapshot: %w", err)
	}
	return *fleet, nil
}

func (s *Server) handleAgentProfile(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (report.AgentStatus, error) {
	var args agentProfileArgs
	if err := mapstructure.Decode(raw, &args); err != nil {
		return report.AgentStatus{}, fmt.Errorf("decode arguments: %w", err)
	}
	if args.URL == "" {
		return report.AgentStatus{}, fmt.Errorf("url argument is required")
	}

	status, err := s.collector.Poll(ctx, args.URL)
	if err != nil {
		s.logger.Warn("agent profile poll failed", "url", args.URL, "err", err)
		return report.AgentStatus{}, fmt.Errorf("poll %s: %w", args.URL, err)
	}
	return *status, nil
}

func (s *Server) registerResources() {
	// EXPOSE: gridswap://fleet
	s.mcpServer.AddResource(mcp.NewResource("gridswap://fleet", "Current Fleet Snapshot",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		fleet, err := s.collector.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("collect snapshot: %w", err)
		}
		data, err := json.Marshal(fleet)
		if err != nil {
			return nil, fmt.Errorf("encode snapshot: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "gridswap://fleet",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
