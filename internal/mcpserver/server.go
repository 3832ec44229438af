// Package mcpserver отдаёт research-агента как MCP инструмент "research".
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ilkoid/poncho-research/pkg/chain"
	"github.com/ilkoid/poncho-research/pkg/utils"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// ToolName содержит имя MCP инструмента.
const ToolName = "research"

var researchSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {
      "type": "string",
      "description": "The research objective, e.g. \"research the latest advances in battery technology\""
    }
  },
  "required": ["query"]
}`)

// Researcher описывает то, что умеет MCP фронт (agent.Client).
type Researcher interface {
	Execute(ctx context.Context, objective string) (chain.ChainOutput, error)
}

// Server связывает MCP runtime с агентом.
type Server struct {
	researcher Researcher
	mcpServer  *mcpserver.MCPServer
}

// New создаёт MCP сервер с одним инструментом.
func New(name, version string, researcher Researcher) *Server {
	mcpSrv := mcpserver.NewMCPServer(
		name,
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	s := &Server{
		researcher: researcher,
		mcpServer:  mcpSrv,
	}

	tool := mcp.NewToolWithRawSchema(ToolName,
		"Research a topic on the web: searches, reads relevant pages and returns a fact-based answer with source links.",
		researchSchema)
	mcpSrv.AddTool(tool, s.handleResearch)
	return s
}

// Start слушает stdio до отмены ctx.
func (s *Server) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer возвращает runtime для встраивания в другой транспорт.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) handleResearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return errorResult("query must be a non-empty string"), nil
	}

	out, err := s.researcher.Execute(ctx, query)
	if err != nil {
		utils.Warn("MCP research failed", "error", err)
		return errorResult(fmt.Sprintf("research failed: %v", err)), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(out.Result)},
	}, nil
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
		IsError: true,
	}
}
