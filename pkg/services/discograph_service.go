package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
	"github.com/ekaya-inc/discograph/pkg/cache"
	"github.com/ekaya-inc/discograph/pkg/metrics"
	"github.com/ekaya-inc/discograph/pkg/models"
	"github.com/ekaya-inc/discograph/pkg/repositories"
)

// maxSearchLimit caps the number of search hits a caller may ask for.
const maxSearchLimit = 100

// DiscographConfig holds the query defaults of the service.
type DiscographConfig struct {
	Network      cache.NetworkDefaults
	SearchLimit  int
	BuildTimeout time.Duration
}

// DiscographService answers network, search and random-entity queries.
type DiscographService interface {
	// NewNetworkRequest returns a request for center carrying the configured defaults.
	NewNetworkRequest(center models.Entity) *models.NetworkRequest

	// GetNetwork returns the cached network for req, building it on a miss.
	// Returns apperrors.ErrNotFound when the center does not exist.
	GetNetwork(ctx context.Context, req *models.NetworkRequest) (*models.Network, error)

	// Search returns up to limit entities whose name matches text. A
	// non-positive limit uses the configured default.
	Search(ctx context.Context, text string, limit int) ([]models.SearchResult, error)

	// RandomEntity samples a relation uniformly and returns one of its two
	// endpoints, each with probability one half.
	RandomEntity(ctx context.Context, roles []models.Role) (models.Entity, error)

	// RelationCounts counts the dated relations of center per year and role.
	// With includeAliases the relations of its direct aliases are counted too.
	// Returns apperrors.ErrNotFound when the center does not exist.
	RelationCounts(ctx context.Context, center models.Entity, includeAliases bool, roles []models.Role) (*models.RelationTimeline, error)
}

type discographService struct {
	cfg          DiscographConfig
	builder      NetworkBuilder
	relationRepo repositories.RelationRepository
	entityRepo   repositories.EntityRepository
	resolver     EntityResolver
	cache        *cache.Cache
	validate     *validator.Validate
	flight       singleflight.Group
	logger       *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDiscographService creates a new DiscographService. rng picks endpoints of
// sampled relations; nil seeds one from the clock.
func NewDiscographService(
	cfg DiscographConfig,
	builder NetworkBuilder,
	relationRepo repositories.RelationRepository,
	entityRepo repositories.EntityRepository,
	resultCache *cache.Cache,
	rng *rand.Rand,
	logger *zap.Logger,
) DiscographService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 10
	}
	return &discographService{
		cfg:          cfg,
		builder:      builder,
		relationRepo: relationRepo,
		entityRepo:   entityRepo,
		resolver:     NewEntityResolver(entityRepo, relationRepo, logger),
		cache:        resultCache,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		rng:          rng,
		logger:       logger.Named("discograph-service"),
	}
}

var _ DiscographService = (*discographService)(nil)

func (s *discographService) NewNetworkRequest(center models.Entity) *models.NetworkRequest {
	return &models.NetworkRequest{
		Center:    center,
		Roles:     append([]models.Role(nil), s.cfg.Network.Roles...),
		MaxDegree: s.cfg.Network.MaxDegree,
		MaxNodes:  s.cfg.Network.MaxNodes,
		MaxLinks:  s.cfg.Network.MaxLinks,
	}
}

func (s *discographService) GetNetwork(ctx context.Context, req *models.NetworkRequest) (*models.Network, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	key := cache.NetworkKey(req, s.cfg.Network)
	var cached models.Network
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	// Concurrent misses on one key share a single build. The build outlives a
	// caller that gives up, so later callers still find it in the cache.
	ch := s.flight.DoChan(key, func() (any, error) {
		buildCtx, cancel := s.buildContext(ctx)
		defer cancel()

		started := time.Now()
		network, err := s.builder.Build(buildCtx, req)
		metrics.NetworkBuildDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			metrics.NetworkBuilds.WithLabelValues(buildResult(err)).Inc()
			return nil, err
		}

		outcome := metrics.BuildOK
		if network.Truncated {
			outcome = metrics.BuildTruncated
		}
		metrics.NetworkBuilds.WithLabelValues(outcome).Inc()

		s.cache.Set(buildCtx, key, network)
		return network, nil
	})

	select {
	case <-ctx.Done():
		s.logger.Debug("Caller gave up waiting for network build",
			zap.String("key", key),
			zap.Error(ctx.Err()))
		return nil, fmt.Errorf("failed to build network for %s: %w: %w",
			req.Center.Key(), apperrors.ErrStoreUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			if !errors.Is(res.Err, apperrors.ErrNotFound) {
				s.logger.Error("Network build failed",
					zap.String("center", req.Center.Key()),
					zap.Error(res.Err))
			}
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("Shared network build", zap.String("key", key))
		}
		return res.Val.(*models.Network), nil
	}
}

// buildContext detaches a build from the caller's cancellation and bounds it
// by the earlier of the caller's deadline and the build timeout.
func (s *discographService) buildContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	deadline, hasDeadline := ctx.Deadline()
	if s.cfg.BuildTimeout > 0 {
		if limit := time.Now().Add(s.cfg.BuildTimeout); !hasDeadline || limit.Before(deadline) {
			deadline, hasDeadline = limit, true
		}
	}
	if !hasDeadline {
		return context.WithCancel(detached)
	}
	return context.WithDeadline(detached, deadline)
}

// normalize validates req and returns a copy with defaults filled in and
// roles sorted and deduplicated.
func (s *discographService) normalize(req *models.NetworkRequest) (*models.NetworkRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: missing network request", apperrors.ErrInvalidParameter)
	}
	if !req.Center.Kind.Valid() {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrInvalidEntityKind, int(req.Center.Kind))
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidParameter, validationMessage(err))
	}

	out := *req
	if len(out.Roles) == 0 {
		out.Roles = s.cfg.Network.Roles
	}
	roles, err := models.ParseRoles(models.RoleNames(out.Roles))
	if err != nil {
		return nil, err
	}
	out.Roles = roles
	if out.Year != nil && out.Year.Start > out.Year.End {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidYearFilter, out.Year)
	}
	return &out, nil
}

func (s *discographService) Search(ctx context.Context, text string, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = s.cfg.SearchLimit
	}
	if limit > maxSearchLimit {
		return nil, fmt.Errorf("%w: limit must be at most %d", apperrors.ErrInvalidParameter, maxSearchLimit)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []models.SearchResult{}, nil
	}

	key := cache.SearchKey(text, limit, s.cfg.SearchLimit)
	var cached []models.SearchResult
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	searchCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	records, err := s.entityRepo.Search(searchCtx, strings.Join(words, " "), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}

	results := make([]models.SearchResult, len(records))
	for i, rec := range records {
		results[i] = models.SearchResult{Key: rec.Entity.Key(), Name: rec.Name}
	}

	s.cache.Set(searchCtx, key, results)
	return results, nil
}

func (s *discographService) RandomEntity(ctx context.Context, roles []models.Role) (models.Entity, error) {
	for _, r := range roles {
		if !r.Valid() {
			return models.Entity{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidRole, r)
		}
	}

	sampleCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	rel, err := s.relationRepo.SampleOne(sampleCtx, roles)
	if err != nil {
		return models.Entity{}, err
	}

	s.mu.Lock()
	first := s.rng.Intn(2) == 0
	s.mu.Unlock()

	if first {
		return rel.EntityOne, nil
	}
	return rel.EntityTwo, nil
}

func (s *discographService) RelationCounts(ctx context.Context, center models.Entity, includeAliases bool, roles []models.Role) (*models.RelationTimeline, error) {
	if !center.Kind.Valid() {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrInvalidEntityKind, int(center.Kind))
	}
	roles, err := models.ParseRoles(models.RoleNames(roles))
	if err != nil {
		return nil, err
	}

	key := cache.TimelineKey(center, includeAliases, roles)
	var cached models.RelationTimeline
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	countCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.resolver.Resolve(countCtx, center); err != nil {
		return nil, err
	}

	entities := []models.Entity{center}
	if includeAliases {
		set, err := s.resolver.ExpandAliases(countCtx, center)
		if err != nil {
			return nil, err
		}
		entities = set.Entities
	}

	counts, err := s.relationRepo.CountByYear(countCtx, entities, roles)
	if err != nil {
		return nil, fmt.Errorf("failed to count relations of %s: %w", center.Key(), err)
	}

	timeline := models.NewRelationTimeline(center, entities, counts)
	s.logger.Debug("Counted relations",
		zap.String("center", center.Key()),
		zap.Int("entities", len(entities)),
		zap.Int64("total", timeline.Total))

	s.cache.Set(countCtx, key, timeline)
	return timeline, nil
}

func (s *discographService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.BuildTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.BuildTimeout)
}

func buildResult(err error) string {
	if errors.Is(err, apperrors.ErrNotFound) {
		return metrics.BuildNotFound
	}
	return metrics.BuildError
}

// validationMessage renders validator errors as "field must be gte 0".
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		parts[i] = fmt.Sprintf("%s must be %s %s", fe.Field(), fe.Tag(), fe.Param())
	}
	return strings.Join(parts, "; ")
}
