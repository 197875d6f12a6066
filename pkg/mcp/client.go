package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultRetries  = 2
	defaultBackoff  = 200 * time.Millisecond
	defaultCacheTTL = 30 * time.Second
)

// ClientOption customizes client behavior.
type ClientOption func(*Client)

// WithTimeout bounds each individual request to the server.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry sets how many times a failed request is retried and the
// starting backoff, which doubles per attempt.
func WithRetry(retries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if retries >= 0 {
			c.maxRetries = retries
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithToolCacheTTL sets the tool discovery cache TTL. Use 0 to disable
// caching.
func WithToolCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl >= 0 {
			c.cacheTTL = ttl
		}
	}
}

// Client talks to one external MCP server, adding per-request
// timeouts, retries with backoff, and tool discovery caching on top of
// the raw mcp-go client.
type Client struct {
	mcpClient  client.MCPClient
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	cacheTTL   time.Duration

	mu          sync.Mutex
	toolsCache  []mcp.Tool
	cacheExpiry time.Time
}

// NewClient wraps an already connected MCP client implementation.
func NewClient(c client.MCPClient, opts ...ClientOption) *Client {
	wrapped := &Client{
		mcpClient:  c,
		timeout:    defaultTimeout,
		maxRetries: defaultRetries,
		backoff:    defaultBackoff,
		cacheTTL:   defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(wrapped)
	}
	return wrapped
}

// NewStdioClient launches command as an MCP server subprocess,
// completes the protocol handshake, and returns a ready client.
func NewStdioClient(command string, args []string, opts ...ClientOption) (*Client, error) {
	stdioClient, err := client.NewStdioMCPClient(command, nil, args...)
	if err != nil {
		return nil, err
	}

	if err := stdioClient.Start(context.Background()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "gnosis",
		Version: "0.1.0",
	}

	if _, err := stdioClient.Initialize(ctx, initRequest); err != nil {
		stdioClient.Close()
		return nil, err
	}

	return NewClient(stdioClient, opts...), nil
}

// ListTools returns the server's tool list, served from the discovery
// cache while it is fresh.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if cached := c.cachedTools(); cached != nil {
		return cached, nil
	}
	var resp *mcp.ListToolsResult
	err := c.withRetry(ctx, "list tools", func(reqCtx context.Context) error {
		var err error
		resp, err = c.mcpClient.ListTools(reqCtx, mcp.ListToolsRequest{})
		return err
	})
	if err != nil {
		return nil, err
	}
	c.storeTools(resp.Tools)
	return resp.Tools, nil
}

// CallTool invokes name on the server with args.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	var resp *mcp.CallToolResult
	err := c.withRetry(ctx, fmt.Sprintf("call tool %q", name), func(reqCtx context.Context) error {
		var err error
		resp, err = c.mcpClient.CallTool(reqCtx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Close closes the client connection. For stdio clients this ends the
// server subprocess.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

// withRetry runs fn under the per-request timeout, retrying transient
// failures with exponential backoff. Context cancellation is never
// retried.
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	attempts := c.maxRetries + 1
	for i := 0; i < attempts; i++ {
		reqCtx, cancel := c.requestContext(ctx)
		err := fn(reqCtx)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		if err := c.sleepBackoff(ctx, i); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

// cachedTools returns a copy of the discovery cache, or nil when the
// cache is disabled, empty or expired.
func (c *Client) cachedTools() []mcp.Tool {
	if c.cacheTTL == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.toolsCache) == 0 || time.Now().After(c.cacheExpiry) {
		return nil
	}
	out := make([]mcp.Tool, len(c.toolsCache))
	copy(out, c.toolsCache)
	return out
}

// storeTools caches a private copy of tools for the configured TTL.
func (c *Client) storeTools(tools []mcp.Tool) {
	if c.cacheTTL == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolsCache = make([]mcp.Tool, len(tools))
	copy(c.toolsCache, tools)
	c.cacheExpiry = time.Now().Add(c.cacheTTL)
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	wait := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
