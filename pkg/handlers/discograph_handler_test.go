package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
	"github.com/ekaya-inc/discograph/pkg/models"
	"github.com/ekaya-inc/discograph/pkg/retry"
	"github.com/ekaya-inc/discograph/pkg/services"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockDiscographService implements services.DiscographService for handler tests.
type mockDiscographService struct {
	mu sync.Mutex

	network   *models.Network
	results   []models.SearchResult
	random    models.Entity
	timeline  *models.RelationTimeline
	errs      []error // returned in order by each call, then nil
	calls     int
	lastReq   *models.NetworkRequest
	lastText  string
	lastLimit int
	lastRoles []models.Role

	lastCenter  models.Entity
	lastAliases bool
}

var _ services.DiscographService = (*mockDiscographService)(nil)

func (m *mockDiscographService) nextErr() error {
	m.calls++
	if len(m.errs) == 0 {
		return nil
	}
	err := m.errs[0]
	m.errs = m.errs[1:]
	return err
}

func (m *mockDiscographService) NewNetworkRequest(center models.Entity) *models.NetworkRequest {
	return &models.NetworkRequest{
		Center:    center,
		Roles:     []models.Role{models.RoleAlias, models.RoleMemberOf},
		MaxDegree: 12,
		MaxNodes:  100,
		MaxLinks:  200,
	}
}

func (m *mockDiscographService) GetNetwork(ctx context.Context, req *models.NetworkRequest) (*models.Network, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReq = req
	if err := m.nextErr(); err != nil {
		return nil, err
	}
	return m.network, nil
}

func (m *mockDiscographService) Search(ctx context.Context, text string, limit int) ([]models.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastText, m.lastLimit = text, limit
	if err := m.nextErr(); err != nil {
		return nil, err
	}
	return m.results, nil
}

func (m *mockDiscographService) RandomEntity(ctx context.Context, roles []models.Role) (models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRoles = roles
	if err := m.nextErr(); err != nil {
		return models.Entity{}, err
	}
	return m.random, nil
}

func (m *mockDiscographService) RelationCounts(ctx context.Context, center models.Entity, includeAliases bool, roles []models.Role) (*models.RelationTimeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCenter, m.lastAliases, m.lastRoles = center, includeAliases, roles
	if err := m.nextErr(); err != nil {
		return nil, err
	}
	return m.timeline, nil
}

func fastRetry() *retry.Config {
	return &retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, MaxSameErrorType: 3}
}

func serve(t *testing.T, svc *mockDiscographService, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewDiscographHandler(svc, fastRetry(), zap.NewNop()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var response struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.True(t, response.Success)
	return response.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var errResp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	return errResp["error"]
}

// ============================================================================
// GetNetwork Handler Tests
// ============================================================================

func TestDiscographHandler_GetNetwork_Defaults(t *testing.T) {
	svc := &mockDiscographService{network: &models.Network{
		Center: "artist-12",
		Nodes:  []models.NetworkNode{{Key: "artist-12", Kind: models.EntityKindArtist, ID: 12}},
		Links:  []models.NetworkLink{},
	}}

	rec := serve(t, svc, "/api/artist/network/12")

	require.Equal(t, http.StatusOK, rec.Code)
	network := decodeData[models.Network](t, rec)
	assert.Equal(t, "artist-12", network.Center)

	require.NotNil(t, svc.lastReq)
	assert.Equal(t, models.NewArtist(12), svc.lastReq.Center)
	assert.Equal(t, 12, svc.lastReq.MaxDegree)
	assert.Equal(t, []models.Role{models.RoleAlias, models.RoleMemberOf}, svc.lastReq.Roles)
	assert.False(t, svc.lastReq.IncludeAliases)
	assert.Nil(t, svc.lastReq.Year)
}

func TestDiscographHandler_GetNetwork_QueryParameters(t *testing.T) {
	svc := &mockDiscographService{network: &models.Network{Center: "label-3"}}

	rec := serve(t, svc, "/api/label/network/3?degree=2&nodes=50&links=0&aliases=1&year=1990-1995&roles=Producer,Member%20Of")

	require.Equal(t, http.StatusOK, rec.Code)
	req := svc.lastReq
	assert.Equal(t, models.NewLabel(3), req.Center)
	assert.Equal(t, 2, req.MaxDegree)
	assert.Equal(t, 50, req.MaxNodes)
	assert.Equal(t, 0, req.MaxLinks)
	assert.True(t, req.IncludeAliases)
	assert.Equal(t, &models.YearFilter{Start: 1990, End: 1995}, req.Year)
	assert.Equal(t, []models.Role{models.RoleMemberOf, models.RoleProducer}, req.Roles)
}

func TestDiscographHandler_GetNetwork_AllRoles(t *testing.T) {
	svc := &mockDiscographService{network: &models.Network{}}

	rec := serve(t, svc, "/api/artist/network/1?roles=all")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.KnownRoles(), svc.lastReq.Roles)
}

func TestDiscographHandler_GetNetwork_BadRequests(t *testing.T) {
	tests := []struct {
		target string
		code   string
	}{
		{"/api/release/network/1", "invalid_entity_kind"},
		{"/api/artist/network/abc", "invalid_parameter"},
		{"/api/artist/network/0", "invalid_parameter"},
		{"/api/artist/network/1?degree=many", "invalid_parameter"},
		{"/api/artist/network/1?aliases=maybe", "invalid_parameter"},
		{"/api/artist/network/1?year=1995-1990", "invalid_year"},
		{"/api/artist/network/1?roles=Spoons", "invalid_role"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			svc := &mockDiscographService{}

			rec := serve(t, svc, tt.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec))
			assert.Zero(t, svc.calls, "service must not be called")
		})
	}
}

func TestDiscographHandler_GetNetwork_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("artist-9: %w", apperrors.ErrNotFound), http.StatusNotFound, "entity_not_found"},
		{"invalid budget", fmt.Errorf("%w: MaxDegree must be lte 50", apperrors.ErrInvalidParameter), http.StatusBadRequest, "invalid_parameter"},
		{"unexpected", fmt.Errorf("syntax error at or near SELECT"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockDiscographService{errs: []error{tt.err}}

			rec := serve(t, svc, "/api/artist/network/9")

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec))
			assert.Equal(t, 1, svc.calls, "permanent errors are not retried")
		})
	}
}

func TestDiscographHandler_GetNetwork_RetriesUnavailableStore(t *testing.T) {
	unavailable := fmt.Errorf("failed to search relations: %w", apperrors.ErrStoreUnavailable)
	svc := &mockDiscographService{
		network: &models.Network{Center: "artist-1"},
		errs:    []error{unavailable, unavailable},
	}

	rec := serve(t, svc, "/api/artist/network/1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, svc.calls)
}

func TestDiscographHandler_GetNetwork_UnavailableAfterRetries(t *testing.T) {
	unavailable := fmt.Errorf("failed to search relations: %w", apperrors.ErrStoreUnavailable)
	svc := &mockDiscographService{errs: []error{unavailable, unavailable, unavailable, unavailable}}

	rec := serve(t, svc, "/api/artist/network/1")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "store_unavailable", decodeError(t, rec))
	assert.Equal(t, 3, svc.calls)
}

// ============================================================================
// GetTimeline Handler Tests
// ============================================================================

func TestDiscographHandler_GetTimeline(t *testing.T) {
	svc := &mockDiscographService{timeline: &models.RelationTimeline{
		Entity:   "artist-4",
		Entities: []string{"artist-4", "artist-8"},
		Years: []models.YearTotals{
			{Year: 1990, Total: 3, Roles: []models.RoleTotal{{Role: models.RoleMemberOf, Total: 3}}},
		},
		Total: 3,
	}}

	rec := serve(t, svc, "/api/artist/timeline/4?aliases=true&roles=Member%20Of")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.NewArtist(4), svc.lastCenter)
	assert.True(t, svc.lastAliases)
	assert.Equal(t, []models.Role{models.RoleMemberOf}, svc.lastRoles)

	timeline := decodeData[models.RelationTimeline](t, rec)
	assert.Equal(t, *svc.timeline, timeline)
}

func TestDiscographHandler_GetTimeline_BadRequests(t *testing.T) {
	tests := []struct {
		target string
		code   string
	}{
		{"/api/release/timeline/1", "invalid_entity_kind"},
		{"/api/label/timeline/x", "invalid_parameter"},
		{"/api/label/timeline/1?aliases=sometimes", "invalid_parameter"},
		{"/api/label/timeline/1?roles=Spoons", "invalid_role"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			svc := &mockDiscographService{}

			rec := serve(t, svc, tt.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec))
			assert.Zero(t, svc.calls, "service must not be called")
		})
	}
}

func TestDiscographHandler_GetTimeline_NotFoundAndRetry(t *testing.T) {
	svc := &mockDiscographService{errs: []error{fmt.Errorf("label-9: %w", apperrors.ErrNotFound)}}
	rec := serve(t, svc, "/api/label/timeline/9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "entity_not_found", decodeError(t, rec))

	unavailable := fmt.Errorf("failed to count relations: %w", apperrors.ErrStoreUnavailable)
	svc = &mockDiscographService{
		timeline: &models.RelationTimeline{Entity: "label-9", Years: []models.YearTotals{}},
		errs:     []error{unavailable},
	}
	rec = serve(t, svc, "/api/label/timeline/9")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, svc.calls)
}

// ============================================================================
// Search Handler Tests
// ============================================================================

func TestDiscographHandler_Search(t *testing.T) {
	svc := &mockDiscographService{results: []models.SearchResult{{Key: "artist-1", Name: "Daft Punk"}}}

	rec := serve(t, svc, "/api/search/daft%20punk?limit=5")

	require.Equal(t, http.StatusOK, rec.Code)
	response := decodeData[SearchResponse](t, rec)
	assert.Equal(t, []models.SearchResult{{Key: "artist-1", Name: "Daft Punk"}}, response.Results)
	assert.Equal(t, "daft punk", svc.lastText)
	assert.Equal(t, 5, svc.lastLimit)
}

func TestDiscographHandler_Search_InvalidLimit(t *testing.T) {
	svc := &mockDiscographService{errs: []error{fmt.Errorf("%w: limit must be at most 100", apperrors.ErrInvalidParameter)}}

	rec := serve(t, svc, "/api/search/daft?limit=500")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, &mockDiscographService{}, "/api/search/daft?limit=ten")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================================================
// Random Handler Tests
// ============================================================================

func TestDiscographHandler_Random(t *testing.T) {
	svc := &mockDiscographService{random: models.NewLabel(77)}

	rec := serve(t, svc, "/api/random?roles=Released%20On")

	require.Equal(t, http.StatusOK, rec.Code)
	response := decodeData[RandomResponse](t, rec)
	assert.Equal(t, RandomResponse{Center: "label-77", Kind: models.EntityKindLabel, ID: 77}, response)
	assert.Equal(t, []models.Role{models.RoleReleasedOn}, svc.lastRoles)
}

func TestDiscographHandler_Random_EmptyStore(t *testing.T) {
	svc := &mockDiscographService{errs: []error{apperrors.ErrEmptyStore}}

	rec := serve(t, svc, "/api/random")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no_relations", decodeError(t, rec))
	assert.Nil(t, svc.lastRoles)
}
