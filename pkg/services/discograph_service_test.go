package services

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
	"github.com/ekaya-inc/discograph/pkg/cache"
	"github.com/ekaya-inc/discograph/pkg/models"
)

// ============================================================================
// Test harness
// ============================================================================

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type serviceFixture struct {
	relations *mockRelationRepo
	entities  *mockEntityRepo
	clock     *testClock
	backend   *cache.MemoryBackend
	service   DiscographService
}

func testDiscographConfig() DiscographConfig {
	return DiscographConfig{
		Network: cache.NetworkDefaults{
			Roles:     []models.Role{models.RoleAlias, models.RoleMemberOf, models.RoleProducer},
			MaxDegree: 3,
			MaxNodes:  100,
			MaxLinks:  200,
		},
		SearchLimit:  10,
		BuildTimeout: 2 * time.Second,
	}
}

func newServiceFixture(t *testing.T, cfg DiscographConfig, builder NetworkBuilder) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		relations: newMockRelationRepo(),
		entities:  newMockEntityRepo(),
		clock:     &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	f.backend = cache.NewMemoryBackend(f.clock.Now)
	if builder == nil {
		builder = newTestBuilder(f.relations, f.entities)
	}
	f.service = NewDiscographService(cfg, builder, f.relations, f.entities,
		cache.New(f.backend, cache.DefaultTTL, zap.NewNop()),
		rand.New(rand.NewSource(7)), zap.NewNop())
	return f
}

// gatedBuilder blocks every build until release is closed.
type gatedBuilder struct {
	builds  atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedBuilder() *gatedBuilder {
	return &gatedBuilder{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedBuilder) Build(ctx context.Context, req *models.NetworkRequest) (*models.Network, error) {
	g.builds.Add(1)
	g.once.Do(func() { close(g.started) })
	<-g.release
	return &models.Network{
		Center: req.Center.Key(),
		Nodes:  []models.NetworkNode{{Key: req.Center.Key(), Kind: req.Center.Kind, ID: req.Center.ID}},
		Links:  []models.NetworkLink{},
	}, nil
}

// ============================================================================
// GetNetwork
// ============================================================================

func TestDiscographService_NetworkIsCachedUntilExpiry(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)
	f.relations.add(rel(1, artistA, artistB, models.RoleMemberOf, nil))
	ctx := context.Background()

	first, err := f.service.GetNetwork(ctx, f.service.NewNetworkRequest(artistA))
	require.NoError(t, err)
	assert.Equal(t, []string{"artist-1", "artist-2"}, nodeKeys(first))
	callsAfterBuild := f.relations.calls()

	f.relations.add(rel(2, artistA, artistC, models.RoleMemberOf, nil))
	f.clock.Advance(23 * time.Hour)

	stale, err := f.service.GetNetwork(ctx, f.service.NewNetworkRequest(artistA))
	require.NoError(t, err)
	assert.Equal(t, []string{"artist-1", "artist-2"}, nodeKeys(stale), "served from cache")
	assert.Equal(t, callsAfterBuild, f.relations.calls())

	f.clock.Advance(2 * time.Hour)

	fresh, err := f.service.GetNetwork(ctx, f.service.NewNetworkRequest(artistA))
	require.NoError(t, err)
	assert.Equal(t, []string{"artist-1", "artist-2", "artist-3"}, nodeKeys(fresh))
}

func TestDiscographService_EquivalentRequestsShareCacheEntry(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)
	f.relations.add(rel(1, artistA, artistB, models.RoleMemberOf, nil))
	ctx := context.Background()

	_, err := f.service.GetNetwork(ctx, &models.NetworkRequest{Center: artistA, MaxDegree: 3, MaxNodes: 100, MaxLinks: 200})
	require.NoError(t, err)
	calls := f.relations.calls()

	req := f.service.NewNetworkRequest(artistA)
	req.Roles = []models.Role{models.RoleProducer, models.RoleMemberOf, models.RoleAlias, models.RoleMemberOf}
	_, err = f.service.GetNetwork(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, calls, f.relations.calls())
	assert.Equal(t, 1, f.backend.Len())
}

func TestDiscographService_ChangedDefaultsDoNotServeOldEntries(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)
	f.relations.add(
		rel(1, artistA, artistB, models.RoleMemberOf, nil),
		rel(2, artistA, artistC, models.RoleMemberOf, nil),
	)
	ctx := context.Background()

	cfg := testDiscographConfig()
	cfg.Network.MaxNodes = 2
	small := NewDiscographService(cfg, newTestBuilder(f.relations, f.entities), f.relations, f.entities,
		cache.New(f.backend, cache.DefaultTTL, zap.NewNop()), rand.New(rand.NewSource(7)), zap.NewNop())

	network, err := small.GetNetwork(ctx, small.NewNetworkRequest(artistA))
	require.NoError(t, err)
	assert.Equal(t, []string{"artist-1", "artist-2"}, nodeKeys(network))

	network, err = f.service.GetNetwork(ctx, f.service.NewNetworkRequest(artistA))
	require.NoError(t, err)
	assert.Equal(t, []string{"artist-1", "artist-2", "artist-3"}, nodeKeys(network))
	assert.Equal(t, 2, f.backend.Len())
}

func TestDiscographService_DefaultRolesApplyWhenOmitted(t *testing.T) {
	cfg := testDiscographConfig()
	cfg.Network.Roles = []models.Role{models.RoleMemberOf}
	f := newServiceFixture(t, cfg, nil)
	f.relations.add(
		rel(1, artistA, artistB, models.RoleMemberOf, nil),
		rel(2, artistA, artistC, models.RoleProducer, nil),
	)

	network, err := f.service.GetNetwork(context.Background(), &models.NetworkRequest{Center: artistA, MaxDegree: 1, MaxNodes: 10, MaxLinks: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"artist-1", "artist-2"}, nodeKeys(network))
}

func TestDiscographService_FailuresAreNotCached(t *testing.T) {
	cfg := testDiscographConfig()
	cfg.BuildTimeout = 20 * time.Millisecond
	f := newServiceFixture(t, cfg, nil)
	f.relations.add(rel(1, artistA, artistB, models.RoleMemberOf, nil))
	f.relations.searchDelay = time.Second

	_, err := f.service.GetNetwork(context.Background(), f.service.NewNetworkRequest(artistA))
	require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.Zero(t, f.backend.Len())

	f.relations.mu.Lock()
	f.relations.searchDelay = 0
	f.relations.mu.Unlock()

	network, err := f.service.GetNetwork(context.Background(), f.service.NewNetworkRequest(artistA))
	require.NoError(t, err)
	assert.Equal(t, []string{"artist-1", "artist-2"}, nodeKeys(network))
}

func TestDiscographService_UnknownCenterIsNotFound(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)

	_, err := f.service.GetNetwork(context.Background(), f.service.NewNetworkRequest(models.NewLabel(42)))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Zero(t, f.backend.Len())
}

func TestDiscographService_CallerDeadlineBoundsTheWait(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)
	f.relations.add(rel(1, artistA, artistB, models.RoleMemberOf, nil))
	f.relations.searchDelay = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	started := time.Now()
	network, err := f.service.GetNetwork(ctx, f.service.NewNetworkRequest(artistA))
	elapsed := time.Since(started)

	require.Error(t, err)
	assert.Nil(t, network)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestDiscographService_BuildTimeoutBoundsCallerWithoutDeadline(t *testing.T) {
	cfg := testDiscographConfig()
	cfg.BuildTimeout = 30 * time.Millisecond
	f := newServiceFixture(t, cfg, nil)
	f.relations.add(rel(1, artistA, artistB, models.RoleMemberOf, nil))
	f.relations.searchDelay = time.Second

	started := time.Now()
	_, err := f.service.GetNetwork(context.Background(), f.service.NewNetworkRequest(artistA))

	require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.Less(t, time.Since(started), 500*time.Millisecond)
}

func TestDiscographService_CanceledCallerDoesNotAbortBuild(t *testing.T) {
	builder := newGatedBuilder()
	f := newServiceFixture(t, testDiscographConfig(), builder)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := f.service.GetNetwork(ctx, f.service.NewNetworkRequest(artistA))
		errs <- err
	}()

	<-builder.started
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("canceled caller kept waiting for the build")
	}

	close(builder.release)
	require.Eventually(t, func() bool { return f.backend.Len() == 1 }, time.Second, 5*time.Millisecond)

	network, err := f.service.GetNetwork(context.Background(), f.service.NewNetworkRequest(artistA))
	require.NoError(t, err)
	assert.Equal(t, []string{"artist-1"}, nodeKeys(network))
	assert.Equal(t, int32(1), builder.builds.Load())
}

func TestDiscographService_ConcurrentMissesShareOneBuild(t *testing.T) {
	builder := newGatedBuilder()
	f := newServiceFixture(t, testDiscographConfig(), builder)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.GetNetwork(context.Background(), f.service.NewNetworkRequest(artistA))
			errs <- err
		}()
	}

	<-builder.started
	time.Sleep(50 * time.Millisecond)
	close(builder.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), builder.builds.Load())
}

func TestDiscographService_InvalidRequests(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*models.NetworkRequest)
		wantErr error
	}{
		{"negative degree", func(r *models.NetworkRequest) { r.MaxDegree = -1 }, apperrors.ErrInvalidParameter},
		{"negative nodes", func(r *models.NetworkRequest) { r.MaxNodes = -5 }, apperrors.ErrInvalidParameter},
		{"huge links", func(r *models.NetworkRequest) { r.MaxLinks = 1_000_000 }, apperrors.ErrInvalidParameter},
		{"unknown kind", func(r *models.NetworkRequest) { r.Center.Kind = 9 }, apperrors.ErrInvalidEntityKind},
		{"unknown role", func(r *models.NetworkRequest) { r.Roles = []models.Role{"Tambourine Polisher"} }, apperrors.ErrInvalidRole},
		{"inverted years", func(r *models.NetworkRequest) { r.Year = &models.YearFilter{Start: 2000, End: 1990} }, apperrors.ErrInvalidYearFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.service.NewNetworkRequest(artistA)
			tt.mutate(req)

			_, err := f.service.GetNetwork(ctx, req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := f.service.GetNetwork(ctx, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}

// ============================================================================
// Search
// ============================================================================

func TestDiscographService_SearchNormalizesQueryForCaching(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)
	f.entities = newMockEntityRepo(
		models.EntityRecord{Entity: artistA, Name: "Daft Punk"},
		models.EntityRecord{Entity: models.NewLabel(7), Name: "Daft Life"},
	)
	f.service = NewDiscographService(testDiscographConfig(), newTestBuilder(f.relations, f.entities),
		f.relations, f.entities, cache.New(f.backend, time.Hour, zap.NewNop()), nil, zap.NewNop())
	ctx := context.Background()

	first, err := f.service.Search(ctx, "  daft   punk ", 0)
	require.NoError(t, err)
	assert.Equal(t, []models.SearchResult{{Key: "artist-1", Name: "Daft Punk"}}, first)

	second, err := f.service.Search(ctx, "daft punk", 10)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.entities.searchCalls)

	both, err := f.service.Search(ctx, "daft", 1)
	require.NoError(t, err)
	assert.Len(t, both, 1)
	assert.Equal(t, 2, f.entities.searchCalls)
}

func TestDiscographService_SearchLimits(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)

	_, err := f.service.Search(context.Background(), "anything", maxSearchLimit+1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)

	results, err := f.service.Search(context.Background(), "   ", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, f.entities.searchCalls)
}

// ============================================================================
// RandomEntity
// ============================================================================

func TestDiscographService_RandomEntityEmptyStore(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)

	_, err := f.service.RandomEntity(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptyStore)

	f.relations.add(rel(1, artistA, artistB, models.RoleMemberOf, nil))
	_, err = f.service.RandomEntity(context.Background(), []models.Role{models.RoleProducer})
	assert.ErrorIs(t, err, apperrors.ErrEmptyStore)
}

func TestDiscographService_RandomEntityRejectsUnknownRole(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)

	_, err := f.service.RandomEntity(context.Background(), []models.Role{"Kazoo"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRole)
}

func TestDiscographService_RandomEntityPicksEitherEndpoint(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)
	f.relations.add(rel(1, artistA, models.NewLabel(9), models.RoleReleasedOn, nil))

	const draws = 2000
	counts := map[models.Entity]int{}
	for range draws {
		e, err := f.service.RandomEntity(context.Background(), nil)
		require.NoError(t, err)
		counts[e]++
	}

	require.Len(t, counts, 2)
	assert.InDelta(t, draws/2, counts[artistA], 150)
	assert.InDelta(t, draws/2, counts[models.NewLabel(9)], 150)
}

// ============================================================================
// RelationCounts
// ============================================================================

func TestDiscographService_RelationCountsByYear(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)
	f.relations.add(
		rel(1, artistA, artistB, models.RoleMemberOf, intPtr(1990)),
		rel(2, artistC, artistA, models.RoleProducer, intPtr(1990)),
		rel(3, artistA, models.NewLabel(4), models.RoleReleasedOn, intPtr(1993)),
		rel(4, artistA, artistD, models.RoleMemberOf, nil),
	)

	timeline, err := f.service.RelationCounts(context.Background(), artistA, false, nil)
	require.NoError(t, err)
	assert.Equal(t, artistA.Key(), timeline.Entity)
	assert.Equal(t, []string{artistA.Key()}, timeline.Entities)
	assert.Equal(t, int64(3), timeline.Total)
	require.Len(t, timeline.Years, 2)
	assert.Equal(t, 1990, timeline.Years[0].Year)
	assert.Equal(t, int64(2), timeline.Years[0].Total)
	assert.Equal(t, []models.RoleTotal{{Role: models.RoleReleasedOn, Total: 1}}, timeline.Years[1].Roles)
}

func TestDiscographService_RelationCountsIncludeDirectAliases(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)
	alias := models.NewArtist(50)
	f.relations.add(
		rel(1, artistA, alias, models.RoleAlias, intPtr(1995)),
		rel(2, alias, artistB, models.RoleMemberOf, intPtr(1996)),
		rel(3, artistA, artistC, models.RoleMemberOf, intPtr(1996)),
		// alias of the alias is not expanded
		rel(4, alias, models.NewArtist(51), models.RoleAlias, nil),
		rel(5, models.NewArtist(51), artistD, models.RoleMemberOf, intPtr(1996)),
	)
	ctx := context.Background()

	plain, err := f.service.RelationCounts(ctx, artistA, false, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), plain.Total)

	withAliases, err := f.service.RelationCounts(ctx, artistA, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{artistA.Key(), alias.Key()}, withAliases.Entities)
	// the alias relation between the two counts once
	assert.Equal(t, int64(3), withAliases.Total)
	assert.Equal(t, []models.YearTotals{
		{Year: 1995, Total: 1, Roles: []models.RoleTotal{{Role: models.RoleAlias, Total: 1}}},
		{Year: 1996, Total: 2, Roles: []models.RoleTotal{{Role: models.RoleMemberOf, Total: 2}}},
	}, withAliases.Years)

	filtered, err := f.service.RelationCounts(ctx, artistA, true, []models.Role{models.RoleAlias})
	require.NoError(t, err)
	assert.Equal(t, int64(1), filtered.Total)
}

func TestDiscographService_RelationCountsAreCached(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)
	f.relations.add(rel(1, artistA, artistB, models.RoleMemberOf, intPtr(1990)))
	ctx := context.Background()

	first, err := f.service.RelationCounts(ctx, artistA, false, nil)
	require.NoError(t, err)

	f.relations.add(rel(2, artistA, artistC, models.RoleMemberOf, intPtr(1990)))
	second, err := f.service.RelationCounts(ctx, artistA, false, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	f.clock.Advance(cache.DefaultTTL + time.Second)
	fresh, err := f.service.RelationCounts(ctx, artistA, false, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh.Total)
}

func TestDiscographService_RelationCountsErrors(t *testing.T) {
	f := newServiceFixture(t, testDiscographConfig(), nil)
	ctx := context.Background()

	_, err := f.service.RelationCounts(ctx, artistA, false, nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.service.RelationCounts(ctx, models.Entity{Kind: models.EntityKind(9), ID: 1}, false, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidEntityKind)

	_, err = f.service.RelationCounts(ctx, artistA, false, []models.Role{"Kazoo"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRole)
}
