// Package mcpserver exposes the planner as a Model Context Protocol server.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/planner"
	"github.com/hupe1980/tripmesh/tool"
)

// ToolPlanTrip is the name of the planning tool.
const ToolPlanTrip = "plan_trip"

const itineraryURIPrefix = "tripmesh://itineraries/"

// Planner is the part of planner.Gateway the MCP server needs.
type Planner interface {
	Handle(ctx context.Context, req planner.TripRequest) (planner.PlanResponse, error)
	Itinerary(ctx context.Context, id string) ([]byte, error)
}

// Options configures a Server.
type Options struct {
	Name    string
	Version string
	Logger  logging.Logger
}

// Server wraps an MCP server bound to a Planner.
type Server struct {
	planner   Planner
	opts      Options
	mcpServer *server.MCPServer
}

// New creates the MCP server and registers its tools and resources.
func New(p Planner, optFns ...func(o *Options)) *Server {
	opts := Options{
		Name:    "tripmesh",
		Version: "dev",
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		planner:   p,
		opts:      opts,
		mcpServer: server.NewMCPServer(opts.Name, opts.Version, server.WithToolCapabilities(false)),
	}

	s.registerTools()
	s.registerResources()

	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves SSE on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.opts.Logger.Info("mcp.sse.listening", "addr", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		return nil
	}
}

func (s *Server) registerTools() {
	planTool := mcp.NewTool(ToolPlanTrip,
		mcp.WithDescription("Plan a short city trip and return the itinerary as Markdown."),
		mcp.WithString("location", mcp.Required(), mcp.Description("City or area to visit")),
		mcp.WithArray("interests", mcp.Required(), mcp.Description("Things the traveller is interested in"), mcp.WithStringItems()),
		mcp.WithNumber("duration_days", mcp.Required(), mcp.Description("Length of the stay in days"), mcp.Min(0)),
		mcp.WithArray("avoid", mcp.Description("Things to avoid"), mcp.WithStringItems()),
	)

	s.mcpServer.AddTool(planTool, s.handlePlanTrip)
}

func (s *Server) handlePlanTrip(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var req planner.TripRequest
	if err := tool.Decode(request.GetArguments(), &req); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	resp, err := s.planner.Handle(ctx, req)
	if err != nil {
		if errors.Is(err, planner.ErrInvalidRequest) || errors.Is(err, planner.ErrNotReady) {
			return mcp.NewToolResultError(err.Error()), nil
		}

		s.opts.Logger.Error("mcp.plan_trip.failed", "error", err.Error())

		return mcp.NewToolResultError("internal error"), nil
	}

	result := mcp.NewToolResultText(resp.Itinerary)
	if resp.ArtifactID != "" {
		result.Content = append(result.Content, mcp.NewTextContent("Stored as "+itineraryURIPrefix+resp.ArtifactID))
	}

	return result, nil
}

func (s *Server) registerResources() {
	template := mcp.NewResourceTemplate(itineraryURIPrefix+"{id}", "Stored itinerary",
		mcp.WithTemplateDescription("An itinerary produced by plan_trip"),
		mcp.WithTemplateMIMEType("text/markdown"),
	)

	s.mcpServer.AddResourceTemplate(template, s.readItinerary)
}

func (s *Server) readItinerary(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI

	id := strings.TrimPrefix(uri, itineraryURIPrefix)
	if id == uri || id == "" {
		return nil, fmt.Errorf("unknown resource %s", uri)
	}

	data, err := s.planner.Itinerary(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read itinerary %s: %w", id, err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     string(data),
		},
	}, nil
}
