// Package mcp bridges the agent tool registry to the Model Context
// Protocol. Server publishes registered tools over MCP stdio so other
// MCP hosts can call them, and ToolAdapter wires tools discovered on
// external MCP servers back into the registry.
package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/gnosis/pkg/tools"
)

// Server exposes a tool registry over the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer builds an MCP server publishing every tool in the registry.
func NewServer(name, version string, registry *tools.Registry) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version),
	}
	if registry != nil {
		for _, toolName := range registry.Names() {
			if t, ok := registry.Get(toolName); ok {
				s.mcpServer.AddTool(toolDefinition(t), toolHandler(t))
			}
		}
	}
	return s
}

// ServeStdio starts serving MCP requests on stdin/stdout. It blocks
// until the host closes the stream.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// toolDefinition renders a registry tool as an MCP tool declaration,
// carrying the tool's JSON schema verbatim.
func toolDefinition(t tools.Tool) mcp.Tool {
	if params := t.Parameters(); params != nil {
		if schema, err := json.Marshal(params); err == nil {
			return mcp.Tool{
				Name:           t.Name(),
				Description:    t.Description(),
				RawInputSchema: schema,
			}
		}
	}
	return mcp.NewTool(t.Name(), mcp.WithDescription(t.Description()))
}

// toolHandler adapts one registry tool to the MCP call signature.
// Registry tools report failures as text starting with "Error", which
// maps onto the MCP error flag.
func toolHandler(t tools.Tool) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})
		if args == nil {
			args = map[string]interface{}{}
		}
		encoded, err := json.Marshal(args)
		if err != nil {
			return textResult("Error: invalid tool arguments.", true), nil
		}
		output := t.Call(ctx, string(encoded))
		return textResult(output, strings.HasPrefix(output, "Error")), nil
	}
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: isError,
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}
