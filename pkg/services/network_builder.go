package services

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/metrics"
	"github.com/ekaya-inc/discograph/pkg/models"
	"github.com/ekaya-inc/discograph/pkg/repositories"
)

// NetworkBuilder expands the network around a center entity within budgets.
type NetworkBuilder interface {
	// Build resolves the center and expands outward one batched store query per
	// depth level. Budgets stop the expansion; they never cause an error.
	// Any store failure fails the whole build.
	Build(ctx context.Context, req *models.NetworkRequest) (*models.Network, error)
}

type networkBuilder struct {
	resolver   EntityResolver
	expander   FrontierExpander
	entityRepo repositories.EntityRepository
	logger     *zap.Logger
}

// NewNetworkBuilder creates a new NetworkBuilder.
func NewNetworkBuilder(
	resolver EntityResolver,
	expander FrontierExpander,
	entityRepo repositories.EntityRepository,
	logger *zap.Logger,
) NetworkBuilder {
	return &networkBuilder{
		resolver:   resolver,
		expander:   expander,
		entityRepo: entityRepo,
		logger:     logger.Named("network-builder"),
	}
}

var _ NetworkBuilder = (*networkBuilder)(nil)

func (b *networkBuilder) Build(ctx context.Context, req *models.NetworkRequest) (*models.Network, error) {
	started := time.Now()
	logger := b.logger.With(
		zap.String("build_id", uuid.NewString()),
		zap.String("center", req.Center.Key()))

	center, err := b.resolver.Resolve(ctx, req.Center)
	if err != nil {
		return nil, err
	}

	state := newBuildState(req)
	state.admit(req.Center, 0, nil)
	frontier := []models.Entity{req.Center}

	if req.IncludeAliases {
		aliases, err := b.resolver.ExpandAliases(ctx, req.Center)
		if err != nil {
			return nil, err
		}
		frontier = append(frontier, state.step(aliasExpansion(aliases), 0)...)
	}

	for depth := 0; depth < req.MaxDegree && !state.truncated; depth++ {
		exp, err := b.expander.Expand(ctx, frontier, state.known, req.Roles, req.Year)
		if err != nil {
			return nil, err
		}
		frontier = state.step(exp, depth+1)
		logger.Debug("Expansion step",
			zap.Int("depth", depth+1),
			zap.Int("discovered", len(exp.Discovered)),
			zap.Int("admitted", len(frontier)))
		if len(exp.Discovered) == 0 {
			break
		}
	}

	network, err := b.assemble(ctx, state, center)
	if err != nil {
		return nil, err
	}

	metrics.NetworkNodes.Observe(float64(len(network.Nodes)))
	logger.Info("Built network",
		zap.Int("nodes", len(network.Nodes)),
		zap.Int("links", len(network.Links)),
		zap.Int("max_distance", network.MaxDistance),
		zap.Bool("truncated", network.Truncated),
		zap.Duration("elapsed", time.Since(started)))
	return network, nil
}

// assemble hydrates node names and renders the build state as a Network.
func (b *networkBuilder) assemble(ctx context.Context, state *buildState, center *models.EntityRecord) (*models.Network, error) {
	others := make([]models.Entity, 0, len(state.nodes))
	for _, node := range state.nodes[1:] {
		others = append(others, node.Entity())
	}
	names, err := b.entityRepo.GetMany(ctx, others)
	if err != nil {
		return nil, fmt.Errorf("failed to load node names: %w", err)
	}

	network := &models.Network{
		Center:    center.Entity.Key(),
		Nodes:     make([]models.NetworkNode, len(state.nodes)),
		Links:     make([]models.NetworkLink, 0, len(state.edges)),
		Truncated: state.truncated,
	}
	for i, node := range state.nodes {
		node.Name = names[node.Entity()]
		network.Nodes[i] = node
		network.MaxDistance = max(network.MaxDistance, node.Distance)
	}
	network.Nodes[0].Name = center.Name

	for _, rel := range state.edges {
		network.Links = append(network.Links, models.NetworkLink{
			Key:       "relation-" + strconv.FormatInt(rel.ID, 10),
			ID:        rel.ID,
			Source:    rel.EntityOne.Key(),
			Target:    rel.EntityTwo.Key(),
			Role:      rel.Role,
			Year:      rel.Year,
			ReleaseID: rel.ReleaseID,
		})
	}
	slices.SortFunc(network.Links, func(a, b models.NetworkLink) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return network, nil
}

// buildState is owned by a single build; concurrent builds share nothing.
type buildState struct {
	req *models.NetworkRequest

	// nodes in admission order; the center is first.
	nodes []models.NetworkNode
	known map[models.Entity]struct{}
	edges map[int64]*models.Relation

	truncated bool
}

func newBuildState(req *models.NetworkRequest) *buildState {
	return &buildState{
		req:   req,
		known: make(map[models.Entity]struct{}),
		edges: make(map[int64]*models.Relation),
	}
}

func (s *buildState) linksFull() bool { return len(s.edges) >= s.req.MaxLinks }

func (s *buildState) admit(e models.Entity, distance int, via *models.Relation) {
	node := models.NetworkNode{
		Key:      e.Key(),
		Kind:     e.Kind,
		ID:       e.ID,
		Distance: distance,
	}
	if via != nil {
		id := via.ID
		node.DiscoveredBy = &id
	}
	s.nodes = append(s.nodes, node)
	s.known[e] = struct{}{}
}

// aliasExpansion presents one-hop aliases as discoveries at distance 0.
func aliasExpansion(aliases *AliasSet) *Expansion {
	exp := &Expansion{Relations: aliases.Relations}
	for i, alias := range aliases.Aliases() {
		exp.Discovered = append(exp.Discovered, Discovery{Entity: alias, Via: aliases.Relations[i]})
	}
	return exp
}

// step absorbs one expansion at the given distance. Discoveries are admitted
// in order while the node budget has room. Relations are then accepted in
// store order while the link budget has room, as long as both endpoints are
// known or admitted in this step. A discovery whose discovery edge did not fit
// is dropped again. Either budget running out marks the build truncated.
// Returns the admitted entities, which form the next frontier.
func (s *buildState) step(exp *Expansion, distance int) []models.Entity {
	room := max(0, s.req.MaxNodes-len(s.nodes))
	pending := exp.Discovered
	if len(pending) > room {
		pending = pending[:room]
		s.truncated = true
	}
	candidates := make(map[models.Entity]struct{}, len(pending))
	for _, d := range pending {
		candidates[d.Entity] = struct{}{}
	}
	reachable := func(e models.Entity) bool {
		if _, ok := s.known[e]; ok {
			return true
		}
		_, ok := candidates[e]
		return ok
	}

	var added []*models.Relation
	for _, rel := range exp.Relations {
		if _, dup := s.edges[rel.ID]; dup {
			continue
		}
		if !reachable(rel.EntityOne) || !reachable(rel.EntityTwo) {
			continue
		}
		if s.linksFull() {
			s.truncated = true
			break
		}
		s.edges[rel.ID] = rel
		added = append(added, rel)
	}

	admitted := make([]models.Entity, 0, len(pending))
	for _, d := range pending {
		if _, ok := s.edges[d.Via.ID]; !ok {
			delete(candidates, d.Entity)
			continue
		}
		s.admit(d.Entity, distance, d.Via)
		admitted = append(admitted, d.Entity)
	}

	// Relations reaching a dropped discovery go with it.
	for _, rel := range added {
		if !reachable(rel.EntityOne) || !reachable(rel.EntityTwo) {
			delete(s.edges, rel.ID)
		}
	}
	return admitted
}
