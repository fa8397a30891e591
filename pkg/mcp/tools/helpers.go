package tools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
	"github.com/ekaya-inc/discograph/pkg/models"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

func arguments(req mcp.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	return args
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	val, _ := arguments(req)[key].(string)
	return strings.TrimSpace(val)
}

// getOptionalInt extracts an optional integer argument. JSON numbers arrive as
// float64; fractional values are rejected.
func getOptionalInt(req mcp.CallToolRequest, key string, def int) (int, error) {
	raw, ok := arguments(req)[key]
	if !ok || raw == nil {
		return def, nil
	}
	f, ok := raw.(float64)
	if !ok || f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %s must be an integer", apperrors.ErrInvalidParameter, key)
	}
	return int(f), nil
}

// getOptionalBool extracts an optional boolean argument from the request.
func getOptionalBool(req mcp.CallToolRequest, key string) bool {
	val, _ := arguments(req)[key].(bool)
	return val
}

// getStringSlice extracts an optional array-of-strings argument. A single
// string is accepted too and split on commas.
func getStringSlice(req mcp.CallToolRequest, key string) []string {
	switch val := arguments(req)[key].(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		return strings.Split(val, ",")
	}
	return nil
}

// getRoles parses the roles argument. Returns nil when absent and the whole
// vocabulary for "all".
func getRoles(req mcp.CallToolRequest) ([]models.Role, error) {
	names := getStringSlice(req, "roles")
	if len(names) == 0 {
		return nil, nil
	}
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), "all") {
			return models.KnownRoles(), nil
		}
	}
	return models.ParseRoles(names)
}

func knownRoleNames() []string {
	return models.RoleNames(models.KnownRoles())
}
