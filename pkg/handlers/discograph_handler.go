package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/models"
	"github.com/ekaya-inc/discograph/pkg/retry"
	"github.com/ekaya-inc/discograph/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// SearchResponse for GET /api/search/{query}
type SearchResponse struct {
	Results []models.SearchResult `json:"results"`
}

// RandomResponse for GET /api/random
type RandomResponse struct {
	Center string            `json:"center"`
	Kind   models.EntityKind `json:"kind"`
	ID     int64             `json:"id"`
}

// ============================================================================
// Handler
// ============================================================================

// DefaultRetryConfig retries a query that failed with the store unavailable:
// three attempts in total.
func DefaultRetryConfig() *retry.Config {
	return &retry.Config{
		MaxRetries:       2,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 3,
	}
}

// DiscographHandler serves the network, search and random-entity queries.
type DiscographHandler struct {
	service     services.DiscographService
	retryConfig *retry.Config
	logger      *zap.Logger
}

// NewDiscographHandler creates a new discograph handler. A nil retryConfig
// uses DefaultRetryConfig.
func NewDiscographHandler(service services.DiscographService, retryConfig *retry.Config, logger *zap.Logger) *DiscographHandler {
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}
	return &DiscographHandler{
		service:     service,
		retryConfig: retryConfig,
		logger:      logger.Named("discograph-handler"),
	}
}

// RegisterRoutes registers the discograph handler's routes on the given mux.
func (h *DiscographHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/{kind}/network/{id}", h.GetNetwork)
	mux.HandleFunc("GET /api/{kind}/timeline/{id}", h.GetTimeline)
	mux.HandleFunc("GET /api/search/{query}", h.Search)
	mux.HandleFunc("GET /api/random", h.Random)
}

// GetNetwork handles GET /api/{kind}/network/{id}
func (h *DiscographHandler) GetNetwork(w http.ResponseWriter, r *http.Request) {
	req, err := h.networkRequest(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	var network *models.Network
	err = h.withRetry(r.Context(), func(ctx context.Context) error {
		var err error
		network, err = h.service.GetNetwork(ctx, req)
		return err
	})
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: network}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// networkRequest builds a request from the path and query string on top of
// the service defaults.
func (h *DiscographHandler) networkRequest(r *http.Request) (*models.NetworkRequest, error) {
	center, err := ParseEntityPath(r)
	if err != nil {
		return nil, err
	}
	req := h.service.NewNetworkRequest(center)

	if req.MaxDegree, err = parseIntParam(r, "degree", req.MaxDegree); err != nil {
		return nil, err
	}
	if req.MaxNodes, err = parseIntParam(r, "nodes", req.MaxNodes); err != nil {
		return nil, err
	}
	if req.MaxLinks, err = parseIntParam(r, "links", req.MaxLinks); err != nil {
		return nil, err
	}
	if req.IncludeAliases, err = parseBoolParam(r, "aliases"); err != nil {
		return nil, err
	}
	if req.Year, err = models.ParseYearFilter(r.URL.Query().Get("year")); err != nil {
		return nil, err
	}

	roles, err := parseRolesParam(r)
	if err != nil {
		return nil, err
	}
	if roles != nil {
		req.Roles = roles
	}
	return req, nil
}

// GetTimeline handles GET /api/{kind}/timeline/{id}
func (h *DiscographHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	center, err := ParseEntityPath(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	includeAliases, err := parseBoolParam(r, "aliases")
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	roles, err := parseRolesParam(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	var timeline *models.RelationTimeline
	err = h.withRetry(r.Context(), func(ctx context.Context) error {
		var err error
		timeline, err = h.service.RelationCounts(ctx, center, includeAliases, roles)
		return err
	})
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: timeline}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Search handles GET /api/search/{query}
func (h *DiscographHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r, "limit", 0)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	var results []models.SearchResult
	err = h.withRetry(r.Context(), func(ctx context.Context) error {
		var err error
		results, err = h.service.Search(ctx, r.PathValue("query"), limit)
		return err
	})
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: SearchResponse{Results: results}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Random handles GET /api/random
func (h *DiscographHandler) Random(w http.ResponseWriter, r *http.Request) {
	roles, err := parseRolesParam(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	var entity models.Entity
	err = h.withRetry(r.Context(), func(ctx context.Context) error {
		var err error
		entity, err = h.service.RandomEntity(ctx, roles)
		return err
	})
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	response := RandomResponse{Center: entity.Key(), Kind: entity.Kind, ID: entity.ID}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// withRetry runs fn again while it fails with a transient store error.
func (h *DiscographHandler) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0
	return retry.DoIfRetryable(ctx, h.retryConfig, func() error {
		attempt++
		err := fn(ctx)
		if err != nil && attempt > 1 {
			h.logger.Debug("Query retry failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
}
