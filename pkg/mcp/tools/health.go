package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// StorePinger reports relation store connectivity for the health tool.
type StorePinger interface {
	Driver() string
	Ping(ctx context.Context) error
}

type healthResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   string `json:"store,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status and version, and pings the store when
// one is given.
func RegisterHealthTool(s *server.MCPServer, version string, store StorePinger) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		health := healthResult{Status: "ok", Version: version}
		if store != nil {
			health.Store = store.Driver()
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := store.Ping(pingCtx); err != nil {
				health.Status = "store_unavailable"
			}
		}

		result, err := json.Marshal(health)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
