// Package mcptools adapts tools exposed by an external MCP (Model Context
// Protocol) server into toolregistry.ToolInfo entries the Task Runner can
// dispatch like any other tool, grounded on hector's
// pkg/tool/mcptoolset/mcptoolset.go (lazy connect-on-first-use, stdio
// transport via mcp-go, tool listing and wrapping), narrowed to the
// stdio transport since that is the transport this repository's demo
// tool set (cmd/taskgraphd) needs.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/haasonsaas/taskgraph/internal/toolregistry"
)

// Config configures a stdio-transport MCP source.
type Config struct {
	// Name identifies the server in error messages. Imported tools keep the
	// names the server advertises; Name is not prefixed onto them.
	Name string
	// Command and Args launch the MCP server subprocess.
	Command string
	Args    []string
	Env     map[string]string
	// Filter limits which server-advertised tools are imported; empty
	// imports all of them.
	Filter []string
}

// stdioClient captures the subset of *client.Client this package depends
// on, so tests can substitute a fake without spawning a subprocess.
type stdioClient interface {
	Start(ctx context.Context) error
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Source lazily connects to one MCP server and, once connected, exposes
// its tools as toolregistry.ToolInfo values.
type Source struct {
	cfg       Config
	dial      func() (stdioClient, error)
	filterSet map[string]bool

	mu        sync.Mutex
	conn      stdioClient
	connected bool
}

// New constructs a Source that spawns cfg.Command on first use.
func New(cfg Config) (*Source, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("mcptools: command is required")
	}
	return newWithDialer(cfg, func() (stdioClient, error) {
		c, err := client.NewStdioMCPClient(cfg.Command, envSlice(cfg.Env), cfg.Args...)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

func newWithDialer(cfg Config, dial func() (stdioClient, error)) (*Source, error) {
	var filterSet map[string]bool
	if len(cfg.Filter) > 0 {
		filterSet = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filterSet[name] = true
		}
	}
	return &Source{cfg: cfg, dial: dial, filterSet: filterSet}, nil
}

// Tools connects (if not already connected) and returns one ToolInfo per
// server-advertised tool that survives Filter.
func (s *Source) Tools(ctx context.Context) ([]toolregistry.ToolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		if err := s.connect(ctx); err != nil {
			return nil, fmt.Errorf("mcptools: connect to %q: %w", s.cfg.Name, err)
		}
	}

	listResp, err := s.conn.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcptools: list tools on %q: %w", s.cfg.Name, err)
	}

	out := make([]toolregistry.ToolInfo, 0, len(listResp.Tools))
	for _, t := range listResp.Tools {
		if s.filterSet != nil && !s.filterSet[t.Name] {
			continue
		}
		out = append(out, s.wrap(t))
	}
	return out, nil
}

func (s *Source) connect(ctx context.Context) error {
	conn, err := s.dial()
	if err != nil {
		return err
	}
	if err := conn.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "taskgraph", Version: "1.0.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := conn.Initialize(ctx, initReq); err != nil {
		conn.Close()
		return fmt.Errorf("initialize: %w", err)
	}
	s.conn = conn
	s.connected = true
	return nil
}

// Close tears down the underlying subprocess connection, if one was made.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.connected = false
	return err
}

func (s *Source) wrap(t mcp.Tool) toolregistry.ToolInfo {
	name := t.Name
	schema := convertSchema(t.InputSchema)
	return toolregistry.ToolInfo{
		Name:        name,
		Description: t.Description,
		Parameters:  schema,
		Func: func(ctx context.Context, args json.RawMessage) (any, error) {
			var argMap map[string]any
			if len(args) > 0 {
				if err := json.Unmarshal(args, &argMap); err != nil {
					return nil, fmt.Errorf("mcptools: decode arguments for %q: %w", name, err)
				}
			}

			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()
			if conn == nil {
				return nil, fmt.Errorf("mcptools: %q is not connected", name)
			}

			req := mcp.CallToolRequest{}
			req.Params.Name = name
			req.Params.Arguments = argMap

			resp, err := conn.CallTool(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("mcptools: call %q: %w", name, err)
			}
			text := collectText(resp)
			if resp.IsError {
				return nil, fmt.Errorf("%s", text)
			}
			return text, nil
		},
	}
}

func collectText(resp *mcp.CallToolResult) string {
	var out string
	for _, c := range resp.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			if out != "" {
				out += "\n"
			}
			out += tc.Text
		}
	}
	return out
}

func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return map[string]any{"type": "object"}
	}
	return result
}

func envSlice(env map[string]string) []string {
	if env == nil {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}
