package repositories

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
	"github.com/ekaya-inc/discograph/pkg/models"
)

// RelationRepository provides indexed access to the relation table.
//
// Every search result is ordered by relation id ascending, after merging the
// per-kind and per-orientation sub-results and removing duplicates. Builds over
// an unchanged table are therefore reproducible.
type RelationRepository interface {
	// SearchOne returns all relations touching entity on either endpoint,
	// optionally restricted to the given roles.
	SearchOne(ctx context.Context, entity models.Entity, roles []models.Role) ([]*models.Relation, error)

	// SearchMany is the batched form of SearchOne for a set of entities, with an
	// optional year filter. Relations with unknown year always match.
	// An empty entity set yields an empty result.
	SearchMany(ctx context.Context, entities []models.Entity, roles []models.Role, year *models.YearFilter) ([]*models.Relation, error)

	// SampleOne returns one relation drawn uniformly among the rows matching roles.
	// Returns apperrors.ErrEmptyStore when no row matches.
	SampleOne(ctx context.Context, roles []models.Role) (*models.Relation, error)

	// CountByYear counts the dated relations touching any of entities, per year
	// and role, ordered by year then role. A relation between two of the
	// entities counts once. Relations with unknown year are not counted.
	CountByYear(ctx context.Context, entities []models.Entity, roles []models.Role) ([]models.YearRoleCount, error)

	// Exists reports whether any relation touches entity.
	Exists(ctx context.Context, entity models.Entity) (bool, error)

	// BulkInsert writes rows in one round trip. Rows without a Random key get one drawn here.
	BulkInsert(ctx context.Context, rows []models.RelationRow) (int64, error)

	Count(ctx context.Context) (int64, error)
	Truncate(ctx context.Context) error
}

type relationRepository struct {
	backend Backend

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRelationRepository creates a relation repository on backend. rng supplies
// sampling thresholds and insert-time random keys; nil seeds one from the clock.
func NewRelationRepository(backend Backend, rng *rand.Rand) RelationRepository {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &relationRepository{backend: backend, rng: rng}
}

var _ RelationRepository = (*relationRepository)(nil)

func (r *relationRepository) float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

func (r *relationRepository) SearchOne(ctx context.Context, entity models.Entity, roles []models.Role) ([]*models.Relation, error) {
	return r.SearchMany(ctx, []models.Entity{entity}, roles, nil)
}

func (r *relationRepository) SearchMany(ctx context.Context, entities []models.Entity, roles []models.Role, year *models.YearFilter) ([]*models.Relation, error) {
	if len(entities) == 0 {
		return []*models.Relation{}, nil
	}

	seen := make(map[int64]struct{})
	relations := make([]*models.Relation, 0)
	for _, chunk := range chunkEntities(entities) {
		query, args := buildSearchSQL(r.backend, chunk, roles, year)
		found, err := r.queryRelations(ctx, query, args)
		if err != nil {
			return nil, storeError("search relations", err)
		}
		for _, rel := range found {
			if _, dup := seen[rel.ID]; dup {
				continue
			}
			seen[rel.ID] = struct{}{}
			relations = append(relations, rel)
		}
	}

	// Chunks are each ordered; the merged result must be too.
	slices.SortFunc(relations, func(a, b *models.Relation) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return relations, nil
}

func (r *relationRepository) queryRelations(ctx context.Context, query string, args []any) ([]*models.Relation, error) {
	rows, err := r.backend.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var relations []*models.Relation
	for rows.Next() {
		rel, err := scanRelation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		relations = append(relations, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return relations, nil
}

// SampleOne draws a threshold n in [0,1) and returns the first row with
// random > n. When no key exceeds n the smallest key wins, so sampling never
// fails while matching rows exist.
func (r *relationRepository) SampleOne(ctx context.Context, roles []models.Role) (*models.Relation, error) {
	threshold := r.float64()

	query, args := buildSampleSQL(r.backend, roles, &threshold)
	rel, err := scanRelation(r.backend.queryRow(ctx, query, args...))
	if err == nil {
		return rel, nil
	}
	if !r.backend.isNoRows(err) {
		return nil, storeError("sample relation", err)
	}

	query, args = buildSampleSQL(r.backend, roles, nil)
	rel, err = scanRelation(r.backend.queryRow(ctx, query, args...))
	if err != nil {
		if r.backend.isNoRows(err) {
			return nil, apperrors.ErrEmptyStore
		}
		return nil, storeError("sample relation", err)
	}
	return rel, nil
}

func (r *relationRepository) CountByYear(ctx context.Context, entities []models.Entity, roles []models.Role) ([]models.YearRoleCount, error) {
	if len(entities) == 0 {
		return []models.YearRoleCount{}, nil
	}
	if len(entities) > maxEntitiesPerQuery {
		return nil, fmt.Errorf("%w: at most %d entities can be counted together",
			apperrors.ErrInvalidParameter, maxEntitiesPerQuery)
	}

	query, args := buildYearCountSQL(r.backend, entities, roles)
	rows, err := r.backend.query(ctx, query, args...)
	if err != nil {
		return nil, storeError("count relations by year", err)
	}
	defer rows.Close()

	counts := []models.YearRoleCount{}
	for rows.Next() {
		var (
			c    models.YearRoleCount
			role string
		)
		if err := rows.Scan(&c.Year, &role, &c.Count); err != nil {
			return nil, storeError("count relations by year", fmt.Errorf("failed to scan count: %w", err))
		}
		c.Role = models.Role(role)
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("count relations by year", err)
	}
	return counts, nil
}

func (r *relationRepository) Exists(ctx context.Context, entity models.Entity) (bool, error) {
	a := newArgList(r.backend)
	query := fmt.Sprintf(`
		SELECT EXISTS(
			SELECT 1 FROM relation WHERE entity_one_id = %s AND entity_one_type = %s
			UNION ALL
			SELECT 1 FROM relation WHERE entity_two_id = %s AND entity_two_type = %s
		)`,
		a.add(entity.ID), a.add(int(entity.Kind)), a.add(entity.ID), a.add(int(entity.Kind)))

	var exists bool
	if err := r.backend.queryRow(ctx, query, a.args...).Scan(&exists); err != nil {
		return false, storeError("check relation existence", err)
	}
	return exists, nil
}

func (r *relationRepository) BulkInsert(ctx context.Context, rows []models.RelationRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		if !row.Role.Valid() {
			return 0, fmt.Errorf("relation %d: %w: %q", row.ID, apperrors.ErrInvalidRole, row.Role)
		}
		random := r.float64()
		if row.Random != nil {
			random = *row.Random
		}
		values[i] = relationValues(row, random)
	}

	n, err := r.backend.bulkInsert(ctx, relationTable, relationColumns, values)
	if err != nil {
		return 0, storeError("bulk insert relations", err)
	}
	return n, nil
}

func (r *relationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.backend.queryRow(ctx, "SELECT COUNT(*) FROM relation").Scan(&count); err != nil {
		return 0, storeError("count relations", err)
	}
	return count, nil
}

func (r *relationRepository) Truncate(ctx context.Context) error {
	if err := r.backend.truncate(ctx, relationTable); err != nil {
		return storeError("truncate relations", err)
	}
	return nil
}
