package mcp

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/jllopis/gnosis/pkg/tools"
)

const mcpStdioHelperEnv = "GNOSIS_MCP_STDIO_HELPER"

// TestHelperServeStdio is not a real test. The stdio client test below
// re-executes the test binary with this helper selected so it can talk
// to a live MCP server subprocess.
func TestHelperServeStdio(t *testing.T) {
	if os.Getenv(mcpStdioHelperEnv) != "1" {
		return
	}

	registry := tools.NewRegistry(
		&stubRegistryTool{
			name:  "ping",
			desc:  "Replies with pong",
			reply: "pong",
			params: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
			},
		},
		&stubRegistryTool{
			name:  "broken",
			desc:  "Always fails",
			reply: "Error: tool is broken.",
		},
	)

	if err := NewServer("gnosis-test", "0.0.1", registry).ServeStdio(); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func TestClient_Stdio_AdaptsServedTools(t *testing.T) {
	t.Setenv(mcpStdioHelperEnv, "1")

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}

	client, err := NewStdioClient(exe, []string{"-test.run", "TestHelperServeStdio"})
	if err != nil {
		t.Fatalf("NewStdioClient error: %v", err)
	}
	defer client.Close()

	adapted, err := AdaptTools(context.Background(), client)
	if err != nil {
		t.Fatalf("AdaptTools error: %v", err)
	}
	if len(adapted) != 2 {
		t.Fatalf("Expected 2 adapted tools, got %d", len(adapted))
	}

	byName := map[string]tools.Tool{}
	for _, tool := range adapted {
		byName[tool.Name()] = tool
	}

	ping, ok := byName["ping"]
	if !ok {
		t.Fatalf("Expected ping tool, got %v", byName)
	}
	if ping.Description() != "Replies with pong" {
		t.Fatalf("Unexpected description %q", ping.Description())
	}
	if params := ping.Parameters(); params["type"] != "object" {
		t.Fatalf("Expected object schema, got %v", params)
	}

	if output := ping.Call(context.Background(), `{"query":"hello"}`); output != "pong" {
		t.Fatalf("Expected 'pong', got %q", output)
	}

	broken, ok := byName["broken"]
	if !ok {
		t.Fatalf("Expected broken tool, got %v", byName)
	}
	output := broken.Call(context.Background(), "{}")
	if !strings.HasPrefix(output, "Error") || !strings.Contains(output, "broken") {
		t.Fatalf("Expected error text, got %q", output)
	}
}
