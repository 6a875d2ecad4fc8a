// Package mcp exposes composition tooling over the Model Context Protocol
// so AI clients can discover workflows and draft pipelines.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"flowmarket/backend/internal/catalog"
	"flowmarket/backend/internal/composer"
)

type Server struct {
	mcpServer *server.MCPServer
	composer  *composer.Composer
	catalog   catalog.Catalog
}

func NewServer(comp *composer.Composer, cat catalog.Catalog) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Flow Market",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		composer: comp,
		catalog:  cat,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List marketplace workflows, optionally filtered by category"),
			mcp.WithString("category", mcp.Description("Workflow category to filter by")),
		),
		s.handleListWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"check_compatibility",
			mcp.WithDescription("Check whether one workflow's output schema can feed another's input schema"),
			mcp.WithString("source_workflow_id", mcp.Required(), mcp.Description("The producing workflow id")),
			mcp.WithString("target_workflow_id", mcp.Required(), mcp.Description("The consuming workflow id")),
		),
		s.handleCheckCompatibility,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"compose_pipeline",
			mcp.WithDescription("Compose a multi-step pipeline proposal from a natural-language goal"),
			mcp.WithString("goal", mcp.Required(), mcp.Description("The goal to compose a pipeline for")),
		),
		s.handleComposePipeline,
	)
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	category, _ := args["category"].(string)

	workflows, err := s.catalog.ListWorkflows(ctx, catalog.Filter{Category: category})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(workflows)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleCheckCompatibility(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	sourceID, ok := args["source_workflow_id"].(string)
	if !ok || sourceID == "" {
		return mcp.NewToolResultError("Missing required parameter: source_workflow_id"), nil
	}
	targetID, ok := args["target_workflow_id"].(string)
	if !ok || targetID == "" {
		return mcp.NewToolResultError("Missing required parameter: target_workflow_id"), nil
	}

	report, err := s.composer.CheckWorkflowCompatibility(ctx, sourceID, targetID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check compatibility: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(report)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleComposePipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	goal, ok := args["goal"].(string)
	if !ok || goal == "" {
		return mcp.NewToolResultError("Missing required parameter: goal"), nil
	}

	proposal, err := s.composer.AutoCompose(ctx, goal)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to compose: %v", err)), nil
	}
	if proposal == nil {
		return mcp.NewToolResultText("No pipeline could be composed for this goal; no capability had a matching workflow."), nil
	}

	jsonBytes, _ := json.Marshal(proposal)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
