package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
	"github.com/ekaya-inc/discograph/pkg/models"
)

const entityTable = "entity"

var entityColumns = []string{"entity_type", "entity_id", "name"}

// EntityRepository stores display names of artists and labels.
type EntityRepository interface {
	// Get returns the record of entity or apperrors.ErrNotFound.
	Get(ctx context.Context, entity models.Entity) (*models.EntityRecord, error)

	// GetMany returns the names of the entities that exist. Missing entities are
	// absent from the map.
	GetMany(ctx context.Context, entities []models.Entity) (map[models.Entity]string, error)

	// Search returns up to limit entities whose name contains text, case-insensitively.
	// Shorter names come first.
	Search(ctx context.Context, text string, limit int) ([]*models.EntityRecord, error)

	BulkInsert(ctx context.Context, records []models.EntityRecord) (int64, error)
	Count(ctx context.Context) (int64, error)
	Truncate(ctx context.Context) error
}

type entityRepository struct {
	backend Backend
}

// NewEntityRepository creates an entity repository on backend.
func NewEntityRepository(backend Backend) EntityRepository {
	return &entityRepository{backend: backend}
}

var _ EntityRepository = (*entityRepository)(nil)

func (r *entityRepository) Get(ctx context.Context, entity models.Entity) (*models.EntityRecord, error) {
	a := newArgList(r.backend)
	query := fmt.Sprintf(`SELECT entity_type, entity_id, name FROM entity WHERE entity_type = %s AND entity_id = %s`,
		a.add(int(entity.Kind)), a.add(entity.ID))

	rec, err := scanEntityRecord(r.backend.queryRow(ctx, query, a.args...))
	if err != nil {
		if r.backend.isNoRows(err) {
			return nil, fmt.Errorf("%s: %w", entity.Key(), apperrors.ErrNotFound)
		}
		return nil, storeError("get entity", err)
	}
	return rec, nil
}

func (r *entityRepository) GetMany(ctx context.Context, entities []models.Entity) (map[models.Entity]string, error) {
	names := make(map[models.Entity]string, len(entities))
	for _, chunk := range chunkEntities(entities) {
		a := newArgList(r.backend)
		kinds, byKind := partitionByKind(chunk)
		clauses := make([]string, 0, len(kinds))
		for _, kind := range kinds {
			clauses = append(clauses, fmt.Sprintf("(entity_type = %s AND entity_id IN %s)",
				a.add(int(kind)), in(a, byKind[kind])))
		}
		query := "SELECT entity_type, entity_id, name FROM entity WHERE " + strings.Join(clauses, " OR ")

		records, err := r.queryRecords(ctx, query, a.args)
		if err != nil {
			return nil, storeError("get entities", err)
		}
		for _, rec := range records {
			names[rec.Entity] = rec.Name
		}
	}
	return names, nil
}

func (r *entityRepository) Search(ctx context.Context, text string, limit int) ([]*models.EntityRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 {
		return []*models.EntityRecord{}, nil
	}

	a := newArgList(r.backend)
	query := fmt.Sprintf(`
		SELECT entity_type, entity_id, name
		FROM entity
		WHERE lower(name) LIKE %s ESCAPE '\'
		ORDER BY length(name), entity_type, entity_id
		LIMIT %s`,
		a.add("%"+escapeLike(strings.ToLower(text))+"%"), a.add(limit))

	records, err := r.queryRecords(ctx, query, a.args)
	if err != nil {
		return nil, storeError("search entities", err)
	}
	if records == nil {
		records = []*models.EntityRecord{}
	}
	return records, nil
}

func (r *entityRepository) queryRecords(ctx context.Context, query string, args []any) ([]*models.EntityRecord, error) {
	rows, err := r.backend.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.EntityRecord
	for rows.Next() {
		rec, err := scanEntityRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *entityRepository) BulkInsert(ctx context.Context, records []models.EntityRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	values := make([][]any, len(records))
	for i, rec := range records {
		if !rec.Entity.Kind.Valid() {
			return 0, fmt.Errorf("entity %d: %w", rec.Entity.ID, apperrors.ErrInvalidEntityKind)
		}
		values[i] = []any{int16(rec.Entity.Kind), rec.Entity.ID, rec.Name}
	}

	n, err := r.backend.bulkInsert(ctx, entityTable, entityColumns, values)
	if err != nil {
		return 0, storeError("bulk insert entities", err)
	}
	return n, nil
}

func (r *entityRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.backend.queryRow(ctx, "SELECT COUNT(*) FROM entity").Scan(&count); err != nil {
		return 0, storeError("count entities", err)
	}
	return count, nil
}

func (r *entityRepository) Truncate(ctx context.Context) error {
	if err := r.backend.truncate(ctx, entityTable); err != nil {
		return storeError("truncate entities", err)
	}
	return nil
}

func scanEntityRecord(row rowScanner) (*models.EntityRecord, error) {
	var (
		code int
		id   int64
		name string
	)
	if err := row.Scan(&code, &id, &name); err != nil {
		return nil, err
	}
	kind, err := models.EntityKindFromCode(code)
	if err != nil {
		return nil, err
	}
	return &models.EntityRecord{Entity: models.Entity{Kind: kind, ID: id}, Name: name}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
