package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/config"
	"github.com/ekaya-inc/discograph/pkg/models"
)

// ConfigResponse contains the public query defaults for clients.
type ConfigResponse struct {
	Version      string   `json:"version"`
	Roles        []string `json:"roles"`
	DefaultRoles []string `json:"default_roles"`
	MaxDegree    int      `json:"max_degree"`
	MaxNodes     int      `json:"max_nodes"`
	MaxLinks     int      `json:"max_links"`
	SearchLimit  int      `json:"search_limit"`
	MCPEnabled   bool     `json:"mcp_enabled"`
}

// ConfigHandler handles configuration requests.
type ConfigHandler struct {
	config *config.Config
	logger *zap.Logger
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(cfg *config.Config, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
		logger: logger,
	}
}

// RegisterRoutes registers the config handler's routes on the given mux.
func (h *ConfigHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/config", h.Get)
}

// Get returns the role vocabulary and the defaults applied to network
// requests that leave parameters unset.
// GET /api/config
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		Version:      h.config.Version,
		Roles:        models.RoleNames(models.KnownRoles()),
		DefaultRoles: models.RoleNames(h.config.Network.Roles),
		MaxDegree:    h.config.Network.MaxDegree,
		MaxNodes:     h.config.Network.MaxNodes,
		MaxLinks:     h.config.Network.MaxLinks,
		SearchLimit:  h.config.Search.Limit,
		MCPEnabled:   h.config.MCP.Enabled,
	}

	w.Header().Set("Cache-Control", "public, max-age=300") // Cache for 5 minutes

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode config response", zap.Error(err))
		return
	}
}
