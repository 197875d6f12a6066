package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/gnosis/pkg/tools"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// ToolAdapter exposes a tool served by an external MCP server as a
// registry tool, so the agent can call it alongside the built-ins.
type ToolAdapter struct {
	tool   mcp.Tool
	caller ToolCaller
}

// NewToolAdapter wraps an MCP tool definition and the caller that
// executes it.
func NewToolAdapter(tool mcp.Tool, caller ToolCaller) (*ToolAdapter, error) {
	if tool.Name == "" {
		return nil, errors.New("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.New("tool caller is required")
	}
	return &ToolAdapter{
		tool:   tool,
		caller: caller,
	}, nil
}

// Name returns the MCP tool name.
func (t *ToolAdapter) Name() string { return t.tool.Name }

// Description returns the MCP tool description.
func (t *ToolAdapter) Description() string { return t.tool.Description }

// Parameters returns the tool's input schema as a generic map, the
// shape the model-facing tool declarations expect.
func (t *ToolAdapter) Parameters() map[string]any {
	if t.tool.RawInputSchema != nil {
		var params map[string]any
		if err := json.Unmarshal(t.tool.RawInputSchema, &params); err == nil {
			return params
		}
	}
	encoded, err := json.Marshal(t.tool.InputSchema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var params map[string]any
	if err := json.Unmarshal(encoded, &params); err != nil {
		return map[string]any{"type": "object"}
	}
	return params
}

// Call invokes the remote tool. Failures come back as text so the
// agent loop can surface them to the model, matching the built-in
// tools.
func (t *ToolAdapter) Call(ctx context.Context, args string) string {
	decoded, err := decodeToolArgs(args)
	if err != nil {
		return fmt.Sprintf("Error: invalid arguments for tool '%s': %v", t.tool.Name, err)
	}
	if err := validateRequiredArgs(t.tool, decoded); err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	result, err := t.caller.CallTool(ctx, t.tool.Name, decoded)
	if err != nil {
		return fmt.Sprintf("Error calling tool '%s': %v", t.tool.Name, err)
	}
	return toolResultToText(result)
}

// AdaptTools lists the tools available on an MCP server and wraps each
// one as a registry tool.
func AdaptTools(ctx context.Context, client *Client) ([]tools.Tool, error) {
	listed, err := client.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	adapted := make([]tools.Tool, 0, len(listed))
	for _, tool := range listed {
		adapter, err := NewToolAdapter(tool, client)
		if err != nil {
			return nil, err
		}
		adapted = append(adapted, adapter)
	}
	return adapted, nil
}

func decodeToolArgs(args string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(args)
	if trimmed == "" {
		return map[string]interface{}{}, nil
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return nil, err
	}
	if decoded == nil {
		decoded = map[string]interface{}{}
	}
	return decoded, nil
}

func validateRequiredArgs(tool mcp.Tool, args map[string]interface{}) error {
	schema := tool.InputSchema
	if schema.Type != "" && schema.Type != "object" {
		return nil
	}
	for _, key := range schema.Required {
		if _, ok := args[key]; !ok {
			return fmt.Errorf("tool '%s' missing required field %q", tool.Name, key)
		}
	}
	return nil
}

func toolResultToText(result *mcp.CallToolResult) string {
	if result == nil {
		return "Error: tool returned no result."
	}
	if result.IsError {
		msg := extractTextContent(result.Content)
		if msg == "" {
			return "Error: unknown tool error"
		}
		if strings.HasPrefix(msg, "Error") {
			return msg
		}
		return "Error: " + msg
	}
	if result.StructuredContent != nil {
		if encoded, err := json.Marshal(result.StructuredContent); err == nil {
			return string(encoded)
		}
	}
	return extractTextContent(result.Content)
}

func extractTextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var _ tools.Tool = (*ToolAdapter)(nil)
