package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
	"github.com/ekaya-inc/discograph/pkg/models"
	"github.com/ekaya-inc/discograph/pkg/repositories"
)

// ============================================================================
// In-memory relation store
// ============================================================================

type mockRelationRepo struct {
	mu        sync.Mutex
	relations []*models.Relation

	searchErr   error
	searchDelay time.Duration
	searchCalls int
	sampleIndex int
	truncated   int
}

func newMockRelationRepo(relations ...*models.Relation) *mockRelationRepo {
	return &mockRelationRepo{relations: relations}
}

var _ repositories.RelationRepository = (*mockRelationRepo)(nil)

func (m *mockRelationRepo) add(relations ...*models.Relation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relations = append(m.relations, relations...)
}

func (m *mockRelationRepo) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchCalls
}

func (m *mockRelationRepo) SearchOne(ctx context.Context, entity models.Entity, roles []models.Role) ([]*models.Relation, error) {
	return m.SearchMany(ctx, []models.Entity{entity}, roles, nil)
}

func (m *mockRelationRepo) SearchMany(ctx context.Context, entities []models.Entity, roles []models.Role, year *models.YearFilter) ([]*models.Relation, error) {
	m.mu.Lock()
	m.searchCalls++
	delay, searchErr := m.searchDelay, m.searchErr
	relations := slices.Clone(m.relations)
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to search relations: %w: %w", apperrors.ErrStoreUnavailable, ctx.Err())
		}
	}
	if searchErr != nil {
		return nil, searchErr
	}

	set := make(map[models.Entity]struct{}, len(entities))
	for _, e := range entities {
		set[e] = struct{}{}
	}

	result := []*models.Relation{}
	for _, rel := range relations {
		_, one := set[rel.EntityOne]
		_, two := set[rel.EntityTwo]
		if !one && !two {
			continue
		}
		if len(roles) > 0 && !slices.Contains(roles, rel.Role) {
			continue
		}
		if !year.Matches(rel.Year) {
			continue
		}
		result = append(result, rel)
	}
	slices.SortFunc(result, func(a, b *models.Relation) int { return int(a.ID - b.ID) })
	return result, nil
}

func (m *mockRelationRepo) SampleOne(ctx context.Context, roles []models.Role) (*models.Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matching []*models.Relation
	for _, rel := range m.relations {
		if len(roles) == 0 || slices.Contains(roles, rel.Role) {
			matching = append(matching, rel)
		}
	}
	if len(matching) == 0 {
		return nil, apperrors.ErrEmptyStore
	}
	rel := matching[m.sampleIndex%len(matching)]
	m.sampleIndex++
	return rel, nil
}

func (m *mockRelationRepo) CountByYear(ctx context.Context, entities []models.Entity, roles []models.Role) ([]models.YearRoleCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}

	byKey := map[models.YearRoleCount]int64{}
	for _, rel := range m.relations {
		if rel.Year == nil || (len(roles) > 0 && !slices.Contains(roles, rel.Role)) {
			continue
		}
		if slices.ContainsFunc(entities, rel.Touches) {
			byKey[models.YearRoleCount{Year: *rel.Year, Role: rel.Role}]++
		}
	}

	counts := []models.YearRoleCount{}
	for k, n := range byKey {
		k.Count = n
		counts = append(counts, k)
	}
	slices.SortFunc(counts, func(a, b models.YearRoleCount) int {
		if a.Year != b.Year {
			return a.Year - b.Year
		}
		return strings.Compare(string(a.Role), string(b.Role))
	})
	return counts, nil
}

func (m *mockRelationRepo) Exists(ctx context.Context, entity models.Entity) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rel := range m.relations {
		if rel.Touches(entity) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRelationRepo) BulkInsert(ctx context.Context, rows []models.RelationRow) (int64, error) {
	for _, row := range rows {
		m.add(&models.Relation{
			ID:        row.ID,
			EntityOne: row.EntityOne,
			EntityTwo: row.EntityTwo,
			Role:      row.Role,
			Year:      row.Year,
			ReleaseID: row.ReleaseID,
		})
	}
	return int64(len(rows)), nil
}

func (m *mockRelationRepo) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.relations)), nil
}

func (m *mockRelationRepo) Truncate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relations = nil
	m.truncated++
	return nil
}

// ============================================================================
// In-memory entity store
// ============================================================================

type mockEntityRepo struct {
	mu          sync.Mutex
	names       map[models.Entity]string
	getManyErr  error
	searchCalls int
	truncated   int
}

func newMockEntityRepo(records ...models.EntityRecord) *mockEntityRepo {
	m := &mockEntityRepo{names: make(map[models.Entity]string)}
	for _, rec := range records {
		m.names[rec.Entity] = rec.Name
	}
	return m
}

var _ repositories.EntityRepository = (*mockEntityRepo)(nil)

func (m *mockEntityRepo) Get(ctx context.Context, entity models.Entity) (*models.EntityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.names[entity]
	if !ok {
		return nil, fmt.Errorf("%s: %w", entity.Key(), apperrors.ErrNotFound)
	}
	return &models.EntityRecord{Entity: entity, Name: name}, nil
}

func (m *mockEntityRepo) GetMany(ctx context.Context, entities []models.Entity) (map[models.Entity]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getManyErr != nil {
		return nil, m.getManyErr
	}
	out := make(map[models.Entity]string)
	for _, e := range entities {
		if name, ok := m.names[e]; ok {
			out[e] = name
		}
	}
	return out, nil
}

func (m *mockEntityRepo) Search(ctx context.Context, text string, limit int) ([]*models.EntityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++

	var found []*models.EntityRecord
	for e, name := range m.names {
		if strings.Contains(strings.ToLower(name), strings.ToLower(text)) {
			found = append(found, &models.EntityRecord{Entity: e, Name: name})
		}
	}
	slices.SortFunc(found, func(a, b *models.EntityRecord) int {
		if len(a.Name) != len(b.Name) {
			return len(a.Name) - len(b.Name)
		}
		return int(a.Entity.ID - b.Entity.ID)
	})
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (m *mockEntityRepo) BulkInsert(ctx context.Context, records []models.EntityRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.names[rec.Entity] = rec.Name
	}
	return int64(len(records)), nil
}

func (m *mockEntityRepo) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.names)), nil
}

func (m *mockEntityRepo) Truncate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = make(map[models.Entity]string)
	m.truncated++
	return nil
}

// ============================================================================
// Fixtures
// ============================================================================

var (
	artistA = models.NewArtist(1)
	artistB = models.NewArtist(2)
	artistC = models.NewArtist(3)
	artistD = models.NewArtist(4)
)

func intPtr(v int) *int { return &v }

func rel(id int64, one, two models.Entity, role models.Role, year *int) *models.Relation {
	return &models.Relation{ID: id, EntityOne: one, EntityTwo: two, Role: role, Year: year}
}

func allRolesRequest(center models.Entity, degree, nodes, links int) *models.NetworkRequest {
	return &models.NetworkRequest{
		Center:    center,
		MaxDegree: degree,
		MaxNodes:  nodes,
		MaxLinks:  links,
	}
}

func nodeKeys(n *models.Network) []string {
	keys := make([]string, len(n.Nodes))
	for i, node := range n.Nodes {
		keys[i] = node.Key
	}
	return keys
}

func linkIDs(n *models.Network) []int64 {
	ids := make([]int64, len(n.Links))
	for i, link := range n.Links {
		ids[i] = link.ID
	}
	return ids
}

// ============================================================================
// Scripted frontier expander
// ============================================================================

// scriptedExpander replays one prepared Expansion per call and records the
// frontiers it was asked to expand. Calls beyond the script expand to nothing.
type scriptedExpander struct {
	steps     []*Expansion
	frontiers [][]models.Entity
}

var _ FrontierExpander = (*scriptedExpander)(nil)

func (e *scriptedExpander) Expand(ctx context.Context, frontier []models.Entity, known map[models.Entity]struct{}, roles []models.Role, year *models.YearFilter) (*Expansion, error) {
	e.frontiers = append(e.frontiers, slices.Clone(frontier))
	if len(e.frontiers) > len(e.steps) {
		return &Expansion{}, nil
	}
	return e.steps[len(e.frontiers)-1], nil
}
