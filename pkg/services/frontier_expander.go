package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/metrics"
	"github.com/ekaya-inc/discograph/pkg/models"
	"github.com/ekaya-inc/discograph/pkg/repositories"
)

// Discovery is an entity reached for the first time during an expansion step,
// with the relation that reached it.
type Discovery struct {
	Entity models.Entity
	Via    *models.Relation
}

// Expansion is the result of one frontier expansion step.
type Expansion struct {
	// Discovered lists entities not yet known, in the order the store first
	// returned a relation reaching them.
	Discovered []Discovery
	// Relations are every relation touching the frontier, in store order.
	Relations []*models.Relation
}

// FrontierExpander fetches the relations around a frontier in one batched query.
type FrontierExpander interface {
	Expand(ctx context.Context, frontier []models.Entity, known map[models.Entity]struct{}, roles []models.Role, year *models.YearFilter) (*Expansion, error)
}

type frontierExpander struct {
	relationRepo repositories.RelationRepository
	logger       *zap.Logger
}

// NewFrontierExpander creates a new FrontierExpander.
func NewFrontierExpander(relationRepo repositories.RelationRepository, logger *zap.Logger) FrontierExpander {
	return &frontierExpander{
		relationRepo: relationRepo,
		logger:       logger.Named("frontier-expander"),
	}
}

var _ FrontierExpander = (*frontierExpander)(nil)

func (e *frontierExpander) Expand(ctx context.Context, frontier []models.Entity, known map[models.Entity]struct{}, roles []models.Role, year *models.YearFilter) (*Expansion, error) {
	relations, err := e.relationRepo.SearchMany(ctx, frontier, roles, year)
	if err != nil {
		return nil, fmt.Errorf("failed to expand frontier: %w", err)
	}
	metrics.ExpansionSteps.Inc()

	exp := &Expansion{Relations: relations}
	discovered := make(map[models.Entity]struct{})
	for _, rel := range relations {
		for _, endpoint := range []models.Entity{rel.EntityOne, rel.EntityTwo} {
			if _, ok := known[endpoint]; ok {
				continue
			}
			if _, ok := discovered[endpoint]; ok {
				continue
			}
			discovered[endpoint] = struct{}{}
			exp.Discovered = append(exp.Discovered, Discovery{Entity: endpoint, Via: rel})
		}
	}

	e.logger.Debug("Expanded frontier",
		zap.Int("frontier", len(frontier)),
		zap.Int("relations", len(relations)),
		zap.Int("discovered", len(exp.Discovered)))
	return exp, nil
}
