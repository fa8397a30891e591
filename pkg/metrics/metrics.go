// Package metrics holds the prometheus collectors of the discograph server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "discograph"

// Cache results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// MCP tool call results.
const (
	ToolOK        = "ok"
	ToolErrorText = "tool_error"
	ToolFailure   = "error"
)

// Build results.
const (
	BuildOK        = "ok"
	BuildNotFound  = "not_found"
	BuildError     = "error"
	BuildTruncated = "truncated"
)

var (
	// NetworkBuilds counts network builds.
	// Labels: result (ok, truncated, not_found, error)
	NetworkBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "network",
		Name:      "builds_total",
		Help:      "Total network builds by result",
	}, []string{"result"})

	// NetworkBuildDuration measures end-to-end build time, cache misses only.
	NetworkBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "network",
		Name:      "build_duration_seconds",
		Help:      "Network build latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// NetworkNodes tracks the size of built networks.
	NetworkNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "network",
		Name:      "nodes",
		Help:      "Number of nodes in built networks",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	// ExpansionSteps counts frontier expansions, one store query batch each.
	ExpansionSteps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "network",
		Name:      "expansion_steps_total",
		Help:      "Total frontier expansion steps",
	})

	// CacheRequests counts result cache lookups.
	// Labels: backend (disk, redis, memory, none), result (hit, miss, error)
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Total result cache lookups by result",
	}, []string{"backend", "result"})

	// CacheWriteErrors counts cache writes that failed and were skipped.
	// Labels: backend
	CacheWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "write_errors_total",
		Help:      "Total failed result cache writes",
	}, []string{"backend"})

	// BootstrapRows counts rows written by the bootstrapper.
	// Labels: table (relation, entity)
	BootstrapRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bootstrap",
		Name:      "rows_total",
		Help:      "Total rows bulk-inserted by the bootstrapper",
	}, []string{"table"})

	// HTTPRequests counts handled HTTP requests.
	// Labels: method, status (status code class, e.g. 2xx)
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by method and status class",
	}, []string{"method", "status"})

	// HTTPDuration measures HTTP request latency.
	// Labels: method
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	// MCPToolCalls counts MCP tool calls.
	// Labels: tool, result (ok, tool_error, error)
	MCPToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mcp",
		Name:      "tool_calls_total",
		Help:      "Total MCP tool calls by tool and result",
	}, []string{"tool", "result"})

	// MCPToolDuration measures MCP tool call latency.
	// Labels: tool
	MCPToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "mcp",
		Name:      "tool_duration_seconds",
		Help:      "MCP tool call latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})
)

// StatusClass renders an HTTP status code as its class label, e.g. 404 -> "4xx".
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	}
	return "1xx"
}
