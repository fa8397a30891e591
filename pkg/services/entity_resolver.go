package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
	"github.com/ekaya-inc/discograph/pkg/models"
	"github.com/ekaya-inc/discograph/pkg/repositories"
)

// AliasSet is an entity together with the entities it is aliased to.
type AliasSet struct {
	// Entities holds the entity first, then its aliases in relation order.
	Entities []models.Entity
	// Relations are the Alias relations that connect each alias to the entity.
	Relations []*models.Relation
}

// Aliases returns the entities other than the one expanded.
func (s *AliasSet) Aliases() []models.Entity {
	if len(s.Entities) == 0 {
		return nil
	}
	return s.Entities[1:]
}

// EntityResolver canonicalizes entity references.
type EntityResolver interface {
	// Resolve returns the record of entity, or apperrors.ErrNotFound.
	Resolve(ctx context.Context, entity models.Entity) (*models.EntityRecord, error)

	// ExpandAliases returns entity plus every entity one Alias relation away.
	// Expansion is never transitive.
	ExpandAliases(ctx context.Context, entity models.Entity) (*AliasSet, error)
}

type entityResolver struct {
	entityRepo   repositories.EntityRepository
	relationRepo repositories.RelationRepository
	logger       *zap.Logger
}

// NewEntityResolver creates a new EntityResolver.
func NewEntityResolver(
	entityRepo repositories.EntityRepository,
	relationRepo repositories.RelationRepository,
	logger *zap.Logger,
) EntityResolver {
	return &entityResolver{
		entityRepo:   entityRepo,
		relationRepo: relationRepo,
		logger:       logger.Named("entity-resolver"),
	}
}

var _ EntityResolver = (*entityResolver)(nil)

// Resolve looks the entity up in the entity store. Stores bootstrapped without
// entity names still resolve entities that take part in a relation, with an
// empty name.
func (r *entityResolver) Resolve(ctx context.Context, entity models.Entity) (*models.EntityRecord, error) {
	if !entity.Kind.Valid() {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrInvalidEntityKind, int(entity.Kind))
	}

	rec, err := r.entityRepo.Get(ctx, entity)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve %s: %w", entity.Key(), err)
	}

	exists, err := r.relationRepo.Exists(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", entity.Key(), err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", entity.Key(), apperrors.ErrNotFound)
	}

	r.logger.Debug("Entity has relations but no record", zap.String("entity", entity.Key()))
	return &models.EntityRecord{Entity: entity}, nil
}

func (r *entityResolver) ExpandAliases(ctx context.Context, entity models.Entity) (*AliasSet, error) {
	relations, err := r.relationRepo.SearchOne(ctx, entity, []models.Role{models.RoleAlias})
	if err != nil {
		return nil, fmt.Errorf("failed to expand aliases of %s: %w", entity.Key(), err)
	}

	set := &AliasSet{Entities: []models.Entity{entity}}
	seen := map[models.Entity]struct{}{entity: {}}
	for _, rel := range relations {
		alias := rel.Other(entity)
		if _, dup := seen[alias]; dup {
			continue
		}
		seen[alias] = struct{}{}
		set.Entities = append(set.Entities, alias)
		set.Relations = append(set.Relations, rel)
	}
	return set, nil
}
