package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// Returning caller mistakes as a successful tool result keeps the error
// details visible to the model instead of being swallowed by the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable errors the caller can fix (invalid parameters,
// unknown entity). System failures such as an unavailable store are returned
// as Go errors instead.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
//
// Example:
//
//	return NewErrorResultWithDetails(
//	    "invalid_role",
//	    `unknown role "Kazoo"`,
//	    map[string]any{"valid_roles": models.KnownRoles()},
//	), nil
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// serviceErrorResult turns a query service error into a tool error result when
// the caller can act on it. ok is false for system failures, which the tool
// should return as an error.
func serviceErrorResult(err error) (result *mcp.CallToolResult, ok bool) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("entity_not_found", err.Error()), true
	case errors.Is(err, apperrors.ErrEmptyStore):
		return NewErrorResult("no_relations", "no relation matches the requested roles"), true
	case errors.Is(err, apperrors.ErrInvalidRole):
		return NewErrorResultWithDetails("invalid_role", err.Error(), map[string]any{"valid_roles": knownRoleNames()}), true
	case errors.Is(err, apperrors.ErrInvalidEntityKind):
		return NewErrorResult("invalid_entity_kind", err.Error()+` (expected "artist" or "label")`), true
	case errors.Is(err, apperrors.ErrInvalidYearFilter):
		return NewErrorResult("invalid_year", err.Error()+` (expected "1990" or "1990-1995")`), true
	case errors.Is(err, apperrors.ErrInvalidParameter):
		return NewErrorResult("invalid_parameters", err.Error()), true
	}
	return nil, false
}
