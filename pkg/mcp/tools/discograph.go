// Package tools provides the MCP tools of the discograph server.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
	"github.com/ekaya-inc/discograph/pkg/models"
	"github.com/ekaya-inc/discograph/pkg/services"
)

// DiscographToolDeps contains dependencies for the query tools.
type DiscographToolDeps struct {
	Service services.DiscographService
	Logger  *zap.Logger
}

// RegisterDiscographTools registers get_network, relation_counts,
// search_entities and random_entity.
func RegisterDiscographTools(s *server.MCPServer, deps *DiscographToolDeps) {
	registerGetNetworkTool(s, deps)
	registerRelationCountsTool(s, deps)
	registerSearchEntitiesTool(s, deps)
	registerRandomEntityTool(s, deps)
}

func registerGetNetworkTool(s *server.MCPServer, deps *DiscographToolDeps) {
	tool := mcp.NewTool(
		"get_network",
		mcp.WithDescription(
			"Returns the social network around an artist or label: every entity reachable "+
				"through relations with the given roles, up to a depth and size budget. "+
				"Nodes carry their distance from the center; links carry role and year. "+
				"truncated=true means a budget stopped the expansion. "+
				"Example: get_network(kind='artist', id=12, roles=['Member Of'], degree=2)",
		),
		mcp.WithString(
			"kind",
			mcp.Required(),
			mcp.Description("Entity kind: 'artist' or 'label'"),
		),
		mcp.WithNumber(
			"id",
			mcp.Required(),
			mcp.Description("Entity id"),
		),
		mcp.WithArray(
			"roles",
			mcp.Description("Optional: relation roles to follow (e.g. 'Alias', 'Member Of', 'Producer'), or ['all']. Defaults to the server's configured roles."),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithNumber(
			"degree",
			mcp.Description("Optional: maximum distance from the center (default from server config, max 50)"),
		),
		mcp.WithNumber(
			"nodes",
			mcp.Description("Optional: maximum number of nodes"),
		),
		mcp.WithNumber(
			"links",
			mcp.Description("Optional: maximum number of links"),
		),
		mcp.WithBoolean(
			"aliases",
			mcp.Description("Include the center's aliases at distance 0 (default: false)"),
		),
		mcp.WithString(
			"year",
			mcp.Description("Optional: only follow relations from this year or range, e.g. '1990' or '1990-1995'. Relations without a year always pass."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		netReq, err := networkRequestFromTool(req, deps.Service)
		if err != nil {
			if result, ok := serviceErrorResult(err); ok {
				return result, nil
			}
			return nil, err
		}

		network, err := deps.Service.GetNetwork(ctx, netReq)
		if err != nil {
			if result, ok := serviceErrorResult(err); ok {
				return result, nil
			}
			return nil, fmt.Errorf("failed to get network: %w", err)
		}

		return jsonResult(network)
	})
}

// entityFromTool reads the kind and id arguments.
func entityFromTool(req mcp.CallToolRequest) (models.Entity, error) {
	kind, err := models.ParseEntityKind(getOptionalString(req, "kind"))
	if err != nil {
		return models.Entity{}, err
	}
	id, err := getOptionalInt(req, "id", 0)
	if err != nil {
		return models.Entity{}, err
	}
	if id <= 0 {
		return models.Entity{}, fmt.Errorf("%w: id must be a positive integer", apperrors.ErrInvalidParameter)
	}
	return models.Entity{Kind: kind, ID: int64(id)}, nil
}

func networkRequestFromTool(req mcp.CallToolRequest, service services.DiscographService) (*models.NetworkRequest, error) {
	center, err := entityFromTool(req)
	if err != nil {
		return nil, err
	}
	netReq := service.NewNetworkRequest(center)

	if netReq.MaxDegree, err = getOptionalInt(req, "degree", netReq.MaxDegree); err != nil {
		return nil, err
	}
	if netReq.MaxNodes, err = getOptionalInt(req, "nodes", netReq.MaxNodes); err != nil {
		return nil, err
	}
	if netReq.MaxLinks, err = getOptionalInt(req, "links", netReq.MaxLinks); err != nil {
		return nil, err
	}
	netReq.IncludeAliases = getOptionalBool(req, "aliases")
	if netReq.Year, err = models.ParseYearFilter(getOptionalString(req, "year")); err != nil {
		return nil, err
	}

	roles, err := getRoles(req)
	if err != nil {
		return nil, err
	}
	if roles != nil {
		netReq.Roles = roles
	}
	return netReq, nil
}

func registerRelationCountsTool(s *server.MCPServer, deps *DiscographToolDeps) {
	tool := mcp.NewTool(
		"relation_counts",
		mcp.WithDescription(
			"Counts the relations of an artist or label per year and role. "+
				"Relations without a year are not counted. With aliases=true the relations "+
				"of its direct aliases are counted too, each relation once. "+
				"Example: relation_counts(kind='artist', id=12, aliases=true)",
		),
		mcp.WithString(
			"kind",
			mcp.Required(),
			mcp.Description("Entity kind: 'artist' or 'label'"),
		),
		mcp.WithNumber(
			"id",
			mcp.Required(),
			mcp.Description("Entity id"),
		),
		mcp.WithBoolean(
			"aliases",
			mcp.Description("Also count the relations of the entity's aliases (default: false)"),
		),
		mcp.WithArray(
			"roles",
			mcp.Description("Optional: only count relations with these roles. Defaults to every role."),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		center, err := entityFromTool(req)
		if err != nil {
			result, _ := serviceErrorResult(err)
			return result, nil
		}
		roles, err := getRoles(req)
		if err != nil {
			result, _ := serviceErrorResult(err)
			return result, nil
		}

		timeline, err := deps.Service.RelationCounts(ctx, center, getOptionalBool(req, "aliases"), roles)
		if err != nil {
			if result, ok := serviceErrorResult(err); ok {
				return result, nil
			}
			return nil, fmt.Errorf("failed to count relations: %w", err)
		}

		return jsonResult(timeline)
	})
}

type searchEntitiesResult struct {
	Query   string                `json:"query"`
	Results []models.SearchResult `json:"results"`
}

func registerSearchEntitiesTool(s *server.MCPServer, deps *DiscographToolDeps) {
	tool := mcp.NewTool(
		"search_entities",
		mcp.WithDescription(
			"Case-insensitive name search over artists and labels. Returns entity keys "+
				"('artist-<id>' or 'label-<id>') usable with get_network. "+
				"Example: search_entities(query='aphex twin')",
		),
		mcp.WithString(
			"query",
			mcp.Required(),
			mcp.Description("Name or part of a name"),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description("Maximum number of results to return (default 10, max 100)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return nil, err
		}
		query = trimString(query)
		if query == "" {
			return NewErrorResult("invalid_parameters", "query parameter cannot be empty"), nil
		}

		limit, err := getOptionalInt(req, "limit", 0)
		if err != nil {
			result, _ := serviceErrorResult(err)
			return result, nil
		}

		results, err := deps.Service.Search(ctx, query, limit)
		if err != nil {
			if result, ok := serviceErrorResult(err); ok {
				return result, nil
			}
			return nil, fmt.Errorf("failed to search entities: %w", err)
		}

		return jsonResult(searchEntitiesResult{Query: query, Results: results})
	})
}

type randomEntityResult struct {
	Key  string            `json:"key"`
	Kind models.EntityKind `json:"kind"`
	ID   int64             `json:"id"`
}

func registerRandomEntityTool(s *server.MCPServer, deps *DiscographToolDeps) {
	tool := mcp.NewTool(
		"random_entity",
		mcp.WithDescription(
			"Picks a random artist or label that takes part in at least one relation. "+
				"Optionally restricted to relations with the given roles.",
		),
		mcp.WithArray(
			"roles",
			mcp.Description("Optional: only sample relations with these roles"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		roles, err := getRoles(req)
		if err != nil {
			result, _ := serviceErrorResult(err)
			return result, nil
		}

		entity, err := deps.Service.RandomEntity(ctx, roles)
		if err != nil {
			if result, ok := serviceErrorResult(err); ok {
				return result, nil
			}
			return nil, fmt.Errorf("failed to pick random entity: %w", err)
		}

		return jsonResult(randomEntityResult{Key: entity.Key(), Kind: entity.Kind, ID: entity.ID})
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
