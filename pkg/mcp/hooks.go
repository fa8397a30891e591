package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/metrics"
)

// ToolObserver records metrics and logs for MCP tool calls.
type ToolObserver struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewToolObserver creates a ToolObserver.
func NewToolObserver(logger *zap.Logger) *ToolObserver {
	return &ToolObserver{logger: logger.Named("mcp-tools")}
}

// Hooks returns mcp-go Hooks configured to observe tool call events.
func (o *ToolObserver) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(o.beforeCallTool)
	hooks.AddAfterCallTool(o.afterCallTool)
	hooks.AddOnError(o.onError)
	return hooks
}

func (o *ToolObserver) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	o.startTimes.Store(id, time.Now())
}

func (o *ToolObserver) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	outcome := metrics.ToolOK
	if result != nil && result.IsError {
		outcome = metrics.ToolErrorText
	}
	o.observe(id, req.Params.Name, outcome)
}

func (o *ToolObserver) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	o.observe(id, req.Params.Name, metrics.ToolFailure)
	o.logger.Error("MCP tool call failed", zap.String("tool", req.Params.Name), zap.Error(err))
}

func (o *ToolObserver) observe(id any, tool, outcome string) {
	started := time.Now()
	if v, ok := o.startTimes.LoadAndDelete(id); ok {
		started = v.(time.Time)
	}
	elapsed := time.Since(started)

	metrics.MCPToolCalls.WithLabelValues(tool, outcome).Inc()
	metrics.MCPToolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
	o.logger.Debug("MCP tool call",
		zap.String("tool", tool),
		zap.String("result", outcome),
		zap.Duration("duration", elapsed))
}
